package live

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/HendryAvila/tracky/internal/project"
	"github.com/HendryAvila/tracky/internal/telemetry"
)

// SubscriberCounter reports live subscriptions per URI.
type SubscriberCounter interface {
	SubscriberCount(uri string) int
}

// ViewOptions tunes the derived views.
type ViewOptions struct {
	// VelocityDays is the look-back window for burndown velocity.
	VelocityDays int
	// SprintDays is the number of dates in the burndown series.
	SprintDays int
	// PageSize is the default number of events in the event stream view.
	PageSize int
}

// DefaultViewOptions returns the standard window sizes.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{VelocityDays: 7, SprintDays: 14, PageSize: 50}
}

// Builder computes derived views on demand. Nothing is cached: every read
// loads a fresh snapshot.
type Builder struct {
	store   project.DataStore
	events  EventLog
	counter SubscriberCounter
	opts    ViewOptions
	metrics *telemetry.Metrics
}

// NewBuilder creates a builder. events may be nil, in which case event
// stream views are always empty.
func NewBuilder(store project.DataStore, events EventLog, opts ViewOptions, metrics *telemetry.Metrics) *Builder {
	def := DefaultViewOptions()
	if opts.VelocityDays <= 0 {
		opts.VelocityDays = def.VelocityDays
	}
	if opts.SprintDays <= 0 {
		opts.SprintDays = def.SprintDays
	}
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	return &Builder{store: store, events: events, opts: opts, metrics: metrics}
}

// SetCounter wires the subscriber counter shown in project metadata.
func (b *Builder) SetCounter(c SubscriberCounter) {
	b.counter = c
}

// Read builds the view for uri.
func (b *Builder) Read(ctx context.Context, uri string) (any, error) {
	started := time.Now()
	u, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	var view any
	switch u.Scheme {
	case SchemeProject:
		view, err = b.projectView(ctx, u)
	case SchemeDashboard:
		view, err = b.dashboardView(ctx, u)
	case SchemeMetrics:
		view, err = b.metricsView(ctx, u)
	case SchemeEvents:
		view, err = b.eventStreamView(ctx, u)
	default:
		err = fmt.Errorf("%w: unknown resource type %q", project.ErrNotFound, u.Scheme)
	}
	b.metrics.ObserveViewRead(u.Scheme, started, err)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (b *Builder) load(ctx context.Context) (*project.Data, error) {
	data, err := b.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading data: %w", err)
	}
	return data, nil
}

// singleProject reads one project and rejects collections.
func singleProject(data *project.Data, prdID string) (project.ProjectWithEpics, error) {
	projects, err := project.BuildProjects(data, prdID)
	if err != nil {
		return project.ProjectWithEpics{}, err
	}
	if len(projects) != 1 {
		return project.ProjectWithEpics{}, fmt.Errorf("%w: expected single project for id %q, got %d",
			project.ErrInvariantViolation, prdID, len(projects))
	}
	return projects[0], nil
}

// --- Project view ---

// ProjectMeta describes the live state of a project view.
type ProjectMeta struct {
	SubscriberCount int    `json:"subscriberCount"`
	LastUpdated     string `json:"lastUpdated"`
	LiveUpdates     bool   `json:"liveUpdates"`
}

// ProjectStatistics are counts computed over the nested tasks.
type ProjectStatistics struct {
	TotalEpics      int `json:"totalEpics"`
	TotalTasks      int `json:"totalTasks"`
	CompletedTasks  int `json:"completedTasks"`
	InProgressTasks int `json:"inProgressTasks"`
}

// ProjectView is a PRD with nested epics and tasks plus live metadata.
type ProjectView struct {
	project.ProjectWithEpics
	Meta       ProjectMeta       `json:"_meta"`
	Statistics ProjectStatistics `json:"statistics"`
}

func (b *Builder) projectView(ctx context.Context, u ResourceURI) (*ProjectView, error) {
	data, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	p, err := singleProject(data, u.Key)
	if err != nil {
		return nil, err
	}

	stats := ProjectStatistics{TotalEpics: len(p.Epics)}
	for _, e := range p.Epics {
		stats.TotalTasks += len(e.Tasks)
		for _, t := range e.Tasks {
			switch t.Status {
			case project.TaskDone:
				stats.CompletedTasks++
			case project.TaskInProgress:
				stats.InProgressTasks++
			}
		}
	}

	count := 0
	if b.counter != nil {
		count = b.counter.SubscriberCount(ProjectURI(u.Key))
	}
	return &ProjectView{
		ProjectWithEpics: p,
		Meta: ProjectMeta{
			SubscriberCount: count,
			LastUpdated:     timestamp(),
			LiveUpdates:     true,
		},
		Statistics: stats,
	}, nil
}

// --- Dashboard view ---

// TasksByStatus buckets tasks by board column.
type TasksByStatus struct {
	Todo       []project.Task `json:"todo"`
	InProgress []project.Task `json:"in_progress"`
	Review     []project.Task `json:"review"`
	Done       []project.Task `json:"done"`
}

// DashboardSummary counts the filtered tasks.
type DashboardSummary struct {
	TotalTasks      int `json:"totalTasks"`
	TodoCount       int `json:"todoCount"`
	InProgressCount int `json:"inProgressCount"`
	ReviewCount     int `json:"reviewCount"`
	CompletedToday  int `json:"completedToday"`
}

// DashboardProject is a PRD touched by the assignee's tasks.
type DashboardProject struct {
	project.PRD
	TaskCount int `json:"taskCount"`
}

// DashboardView is one assignee's personal dashboard.
type DashboardView struct {
	Assignee          string             `json:"assignee"`
	Summary           DashboardSummary   `json:"summary"`
	TasksByStatus     TasksByStatus      `json:"tasksByStatus"`
	UpcomingDeadlines []project.Task     `json:"upcomingDeadlines"`
	Projects          []DashboardProject `json:"projects"`
}

// maxUpcomingDeadlines caps the deadline list on a dashboard.
const maxUpcomingDeadlines = 5

func (b *Builder) dashboardView(ctx context.Context, u ResourceURI) (*DashboardView, error) {
	data, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	now := timeNow()
	tasks := project.FilterTasksByAssignee(data, u.Key)

	if u.Params.Get("showCompleted") == "false" {
		tasks = filterTasks(tasks, func(t project.Task) bool { return t.Status != project.TaskDone })
	}
	if raw := u.Params.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: 'days' must be an integer, got %q", project.ErrBadInput, raw)
		}
		cutoff := now.AddDate(0, 0, -days)
		tasks = filterTasks(tasks, func(t project.Task) bool {
			updated, err := project.ParseTimestamp(t.UpdatedAt)
			return err == nil && !updated.Before(cutoff)
		})
	}
	if p := u.Params.Get("priority"); p != "" {
		tasks = filterTasks(tasks, func(t project.Task) bool { return string(t.Priority) == p })
	}

	view := &DashboardView{
		Assignee: u.Key,
		TasksByStatus: TasksByStatus{
			Todo:       filterTasks(tasks, hasStatus(project.TaskTodo)),
			InProgress: filterTasks(tasks, hasStatus(project.TaskInProgress)),
			Review:     filterTasks(tasks, hasStatus(project.TaskReview)),
			Done:       filterTasks(tasks, hasStatus(project.TaskDone)),
		},
		UpcomingDeadlines: upcomingDeadlines(tasks, now),
		Projects:          []DashboardProject{},
	}
	view.Summary = DashboardSummary{
		TotalTasks:      len(tasks),
		TodoCount:       len(view.TasksByStatus.Todo),
		InProgressCount: len(view.TasksByStatus.InProgress),
		ReviewCount:     len(view.TasksByStatus.Review),
		CompletedToday:  completedOn(view.TasksByStatus.Done, now),
	}

	// PRDs reached through the filtered tasks' epics, in stored order.
	prdOfEpic := make(map[string]string)
	for _, e := range data.Epics {
		prdOfEpic[e.ID] = e.PRDID
	}
	counts := make(map[string]int)
	for _, t := range tasks {
		if prdID, ok := prdOfEpic[t.EpicID]; ok {
			counts[prdID]++
		}
	}
	for _, prd := range data.PRDs {
		if n, ok := counts[prd.ID]; ok {
			view.Projects = append(view.Projects, DashboardProject{PRD: prd, TaskCount: n})
		}
	}
	return view, nil
}

func filterTasks(tasks []project.Task, keep func(project.Task) bool) []project.Task {
	out := []project.Task{}
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func hasStatus(s project.TaskStatus) func(project.Task) bool {
	return func(t project.Task) bool { return t.Status == s }
}

// completedOn counts tasks last updated on now's local calendar day.
func completedOn(done []project.Task, now time.Time) int {
	y, m, d := now.Local().Date()
	n := 0
	for _, t := range done {
		updated, err := project.ParseTimestamp(t.UpdatedAt)
		if err != nil {
			continue
		}
		ty, tm, td := updated.Local().Date()
		if ty == y && tm == m && td == d {
			n++
		}
	}
	return n
}

// upcomingDeadlines returns tasks due after now, soonest first. Unparseable
// due dates are skipped.
func upcomingDeadlines(tasks []project.Task, now time.Time) []project.Task {
	type dated struct {
		task project.Task
		due  time.Time
	}
	var pending []dated
	for _, t := range tasks {
		if t.DueDate == "" {
			continue
		}
		due, err := project.ParseTimestamp(t.DueDate)
		if err != nil || !due.After(now) {
			continue
		}
		pending = append(pending, dated{task: t, due: due})
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].due.Before(pending[j].due) })

	out := []project.Task{}
	for i := 0; i < len(pending) && i < maxUpcomingDeadlines; i++ {
		out = append(out, pending[i].task)
	}
	return out
}

// --- Metrics view ---

// Burndown is the sprint burndown series.
type Burndown struct {
	Dates       []string `json:"dates"`
	TotalPoints int      `json:"totalPoints"`
	Remaining   int      `json:"remaining"`
	Completed   int      `json:"completed"`
	Velocity    int      `json:"velocity"`
}

// EpicProgress is completion of one epic.
type EpicProgress struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	TotalTasks      int    `json:"totalTasks"`
	CompletedTasks  int    `json:"completedTasks"`
	PercentComplete int    `json:"percentComplete"`
}

// TeamLoad is the open task count of one assignee.
type TeamLoad struct {
	Assignee  string `json:"assignee"`
	TaskCount int    `json:"taskCount"`
}

// MetricsView is the burndown metrics of a project.
type MetricsView struct {
	Burndown     Burndown       `json:"burndown"`
	EpicProgress []EpicProgress `json:"epicProgress"`
	TeamLoad     []TeamLoad     `json:"teamLoad"`
}

func (b *Builder) metricsView(ctx context.Context, u ResourceURI) (*MetricsView, error) {
	data, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	p, err := singleProject(data, u.Key)
	if err != nil {
		return nil, err
	}
	start, err := project.ParseTimestamp(p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: PRD %s has unparseable created_at %q",
			project.ErrInvariantViolation, p.ID, p.CreatedAt)
	}

	var tasks []project.Task
	for _, e := range p.Epics {
		tasks = append(tasks, e.Tasks...)
	}

	view := &MetricsView{
		Burndown: Burndown{
			Dates:       sprintDates(start, b.opts.SprintDays),
			TotalPoints: len(tasks),
			Velocity:    velocity(tasks, b.opts.VelocityDays, timeNow()),
		},
		EpicProgress: make([]EpicProgress, 0, len(p.Epics)),
		TeamLoad:     teamLoad(tasks),
	}
	for _, t := range tasks {
		if t.Status == project.TaskDone {
			view.Burndown.Completed++
		} else {
			view.Burndown.Remaining++
		}
	}

	for _, e := range p.Epics {
		done := len(filterTasks(e.Tasks, hasStatus(project.TaskDone)))
		percent := 0
		if len(e.Tasks) > 0 {
			percent = int(math.Round(float64(done) / float64(len(e.Tasks)) * 100))
		}
		view.EpicProgress = append(view.EpicProgress, EpicProgress{
			ID:              e.ID,
			Title:           e.Title,
			TotalTasks:      len(e.Tasks),
			CompletedTasks:  done,
			PercentComplete: percent,
		})
	}
	return view, nil
}

func sprintDates(start time.Time, days int) []string {
	start = start.UTC()
	dates := make([]string, days)
	for i := range days {
		dates[i] = start.AddDate(0, 0, i).Format(time.DateOnly)
	}
	return dates
}

// velocity is the weekly completion rate over the last days days:
// round(count * 7 / days).
func velocity(tasks []project.Task, days int, now time.Time) int {
	if days <= 0 {
		return 0
	}
	since := now.AddDate(0, 0, -days)
	count := 0
	for _, t := range tasks {
		if t.Status != project.TaskDone {
			continue
		}
		updated, err := project.ParseTimestamp(t.UpdatedAt)
		if err == nil && !updated.Before(since) {
			count++
		}
	}
	return int(math.Round(float64(count) * 7 / float64(days)))
}

// teamLoad counts open tasks per assignee, highest first. Ties keep
// first-seen order.
func teamLoad(tasks []project.Task) []TeamLoad {
	load := []TeamLoad{}
	index := make(map[string]int)
	for _, t := range tasks {
		if t.Assignee == "" || t.Status == project.TaskDone {
			continue
		}
		i, ok := index[t.Assignee]
		if !ok {
			i = len(load)
			index[t.Assignee] = i
			load = append(load, TeamLoad{Assignee: t.Assignee})
		}
		load[i].TaskCount++
	}
	sort.SliceStable(load, func(i, j int) bool { return load[i].TaskCount > load[j].TaskCount })
	return load
}

// --- Event stream view ---

// EventStreamMeta describes the stream encoding.
type EventStreamMeta struct {
	Streaming bool   `json:"streaming"`
	Format    string `json:"format"`
}

// EventStreamView lists a project's recent events.
type EventStreamView struct {
	Events []Event         `json:"events"`
	Meta   EventStreamMeta `json:"_meta"`
}

func (b *Builder) eventStreamView(ctx context.Context, u ResourceURI) (*EventStreamView, error) {
	data, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	if data.FindPRD(u.Key) == nil {
		return nil, fmt.Errorf("%w: PRD with id %s not found", project.ErrNotFound, u.Key)
	}

	limit := b.opts.PageSize
	if raw := u.Params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: 'limit' must be a positive integer, got %q", project.ErrBadInput, raw)
		}
		limit = n
	}

	events := []Event{}
	if b.events != nil {
		events, err = b.events.Recent(ctx, u.Key, limit)
		if err != nil {
			return nil, fmt.Errorf("reading events: %w", err)
		}
	}
	return &EventStreamView{
		Events: events,
		Meta:   EventStreamMeta{Streaming: true, Format: "json-lines"},
	}, nil
}

// --- Catalog ---

// MIME types of the views.
const (
	MIMEJSON        = "application/json"
	MIMEEventStream = "text/event-stream"
)

// ResourceInfo is one concrete, listable resource.
type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType"`
}

// TemplateInfo is one parameterized resource family.
type TemplateInfo struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
}

// Resources lists one project resource per PRD and one dashboard per
// distinct assignee, in first-seen order.
func (b *Builder) Resources(ctx context.Context) ([]ResourceInfo, error) {
	data, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ResourceInfo, 0, len(data.PRDs))
	for _, p := range data.PRDs {
		out = append(out, ResourceInfo{
			URI:         ProjectURI(p.ID),
			Name:        "Project: " + p.Title,
			Description: p.Description,
			MIMEType:    MIMEJSON,
		})
	}
	seen := make(map[string]bool)
	for _, t := range data.Tasks {
		if t.Assignee == "" || seen[t.Assignee] {
			continue
		}
		seen[t.Assignee] = true
		out = append(out, ResourceInfo{
			URI:      DashboardURI(t.Assignee),
			Name:     t.Assignee + "'s Dashboard",
			MIMEType: MIMEJSON,
		})
	}
	return out, nil
}

// Templates returns the four resource templates.
func Templates() []TemplateInfo {
	return []TemplateInfo{
		{
			URITemplate: "project://{prd_id}",
			Name:        "Project State",
			Description: "Live project state with PRD, epics, and tasks",
			MIMEType:    MIMEJSON,
		},
		{
			URITemplate: "dashboard://assignee/{name}",
			Name:        "Personal Dashboard",
			Description: "Real-time task dashboard for an assignee",
			MIMEType:    MIMEJSON,
		},
		{
			URITemplate: "metrics://burndown/{prd_id}",
			Name:        "Burndown Chart",
			Description: "Project burndown metrics",
			MIMEType:    MIMEJSON,
		},
		{
			URITemplate: "events://project/{prd_id}",
			Name:        "Project Event Stream",
			Description: "Real-time event log for project changes",
			MIMEType:    MIMEEventStream,
		},
	}
}
