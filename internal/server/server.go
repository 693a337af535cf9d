// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/tracky/internal/config"
	"github.com/HendryAvila/tracky/internal/live"
	"github.com/HendryAvila/tracky/internal/project"
	"github.com/HendryAvila/tracky/internal/prompts"
	"github.com/HendryAvila/tracky/internal/resources"
	"github.com/HendryAvila/tracky/internal/store"
	"github.com/HendryAvila/tracky/internal/telemetry"
	"github.com/HendryAvila/tracky/internal/tools"
	"github.com/HendryAvila/tracky/internal/watch"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Core is the storage, entity manager and live hub shared by the MCP server
// and the command-line reader.
type Core struct {
	Manager *project.Manager
	Hub     *live.Hub
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	opened *store.Opened
}

// OpenCore opens the configured backend and connects a hub to it.
func OpenCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opened, err := store.Open(ctx, store.Options{
		Backend:     cfg.Store.Backend,
		DataFile:    cfg.Data.File,
		SQLitePath:  cfg.Store.SQLitePath,
		PostgresDSN: cfg.Store.PostgresDSN,
		Retention:   cfg.Events.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	events := opened.Events
	if events == nil {
		events = live.NewMemoryEventLog(cfg.Events.Retention)
	}

	metrics := telemetry.New()
	hub := live.NewHub(live.HubOptions{
		Store:  opened.Store,
		Events: events,
		Views: live.ViewOptions{
			VelocityDays: cfg.Views.VelocityDays,
			SprintDays:   cfg.Views.SprintDays,
			PageSize:     cfg.Events.PageSize,
		},
		Logger:  logger,
		Metrics: metrics,
	})

	manager := project.NewManager(opened.Store, logger)
	manager.SetNotifier(hub)
	manager.SetActor(cfg.Actor)

	return &Core{
		Manager: manager,
		Hub:     hub,
		Metrics: metrics,
		Logger:  logger,
		opened:  opened,
	}, nil
}

// Close drops subscriptions and releases the backend.
func (c *Core) Close() error {
	c.Hub.Close()
	return c.opened.Close()
}

// New creates and configures the MCP server with all tools, prompts and
// resource templates registered. Background work (the data file watcher and
// the metrics endpoint) runs until ctx is cancelled or cleanup is called.
//
// The returned cleanup function is always non-nil and must be called on
// shutdown (typically via defer).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.MCPServer, func(), error) {
	core, err := OpenCore(ctx, cfg, logger)
	if err != nil {
		return nil, noop, err
	}
	logger = core.Logger

	ctx, cancel := context.WithCancel(ctx)
	cleanup := func() {
		cancel()
		if err := core.Close(); err != nil {
			logger.Warn("closing store", "err", err)
		}
	}

	// --- Create the MCP server ---

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		core.Hub.UnsubscribeAll(session.SessionID())
	})

	s := server.NewMCPServer(
		"tracky",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions(serverInstructions()),
	)

	registerTools(s, core)

	// --- Register prompts ---

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	standupPrompt := prompts.NewStandupPrompt()
	s.AddPrompt(standupPrompt.Definition(), standupPrompt.Handle)

	// --- Register resource templates ---

	resourceHandler := resources.NewHandler(core.Hub)
	for _, tmpl := range resourceHandler.Templates() {
		s.AddResourceTemplate(tmpl, resourceHandler.Handle)
	}

	// --- Background work ---

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := core.Metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics endpoint stopped", "addr", cfg.Metrics.Addr, "err", err)
			}
		}()
	}

	if cfg.Watch.Enabled && core.opened.JSONL != nil {
		w, err := watch.New(watch.Options{
			Path:      core.opened.JSONL.Path(),
			Debounce:  cfg.Watch.Debounce,
			Detector:  core.opened.JSONL,
			Refresher: core.Hub,
			Logger:    logger,
			Metrics:   core.Metrics,
		})
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("watching data file: %w", err)
		}
		w.Start(ctx)
		logger.Info("watching data file", "path", core.opened.JSONL.Path(), "polling", w.IsPolling())
		storeCleanup := cleanup
		cleanup = func() {
			if err := w.Close(); err != nil {
				logger.Warn("closing watcher", "err", err)
			}
			storeCleanup()
		}
	}

	logger.Info("server ready",
		"backend", cfg.Store.Backend,
		"data_file", cfg.Data.File,
		"config", cfg.File,
	)
	return s, cleanup, nil
}

func noop() {}

// registerTools adds every entity and resource tool to s.
func registerTools(s *server.MCPServer, core *Core) {
	m := core.Manager

	// --- PRD tools ---

	createPRD := tools.NewCreatePRDTool(m)
	s.AddTool(createPRD.Definition(), createPRD.Handle)

	updatePRD := tools.NewUpdatePRDTool(m)
	s.AddTool(updatePRD.Definition(), updatePRD.Handle)

	deletePRD := tools.NewDeletePRDTool(m)
	s.AddTool(deletePRD.Definition(), deletePRD.Handle)

	// --- Epic tools ---

	createEpics := tools.NewCreateEpicsTool(m)
	s.AddTool(createEpics.Definition(), createEpics.Handle)

	updateEpic := tools.NewUpdateEpicTool(m)
	s.AddTool(updateEpic.Definition(), updateEpic.Handle)

	deleteEpics := tools.NewDeleteEpicsTool(m)
	s.AddTool(deleteEpics.Definition(), deleteEpics.Handle)

	// --- Task tools ---

	createTasks := tools.NewCreateTasksTool(m)
	s.AddTool(createTasks.Definition(), createTasks.Handle)

	updateTask := tools.NewUpdateTaskTool(m)
	s.AddTool(updateTask.Definition(), updateTask.Handle)

	addNotes := tools.NewAddTaskNotesTool(m)
	s.AddTool(addNotes.Definition(), addNotes.Handle)

	deleteTasks := tools.NewDeleteTasksTool(m)
	s.AddTool(deleteTasks.Definition(), deleteTasks.Handle)

	// --- Query tools ---

	readProject := tools.NewReadProjectTool(m)
	s.AddTool(readProject.Definition(), readProject.Handle)

	search := tools.NewSearchItemsTool(m)
	s.AddTool(search.Definition(), search.Handle)

	byStatus := tools.NewTasksByStatusTool(m)
	s.AddTool(byStatus.Definition(), byStatus.Handle)

	byAssignee := tools.NewTasksByAssigneeTool(m)
	s.AddTool(byAssignee.Definition(), byAssignee.Handle)

	// --- Live resource tools ---
	//
	// resources/subscribe is not advertised, so these tools are the only way
	// to subscribe. Updates go back to the calling session as
	// resource-updated notifications.

	subscribe := tools.NewSubscribeResourceTool(core.Hub, s)
	s.AddTool(subscribe.Definition(), subscribe.Handle)

	unsubscribe := tools.NewUnsubscribeResourceTool(core.Hub)
	s.AddTool(unsubscribe.Definition(), unsubscribe.Handle)

	readResource := tools.NewReadResourceTool(core.Hub)
	s.AddTool(readResource.Definition(), readResource.Handle)

	listResources := tools.NewListResourcesTool(core.Hub)
	s.AddTool(listResources.Definition(), listResources.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use the tracker.
func serverInstructions() string {
	return `You have access to tracky, a project tracker organized as PRDs, epics and tasks.

## DATA MODEL

- A PRD (product requirements document) is a project. Status: draft, approved, in_progress, completed.
- An epic belongs to one PRD. Status: not_started, in_progress, completed. Priority: low, medium, high.
- A task belongs to one epic. Status: todo, in_progress, review, done. Priority: low, medium, high.
  It may carry an assignee, a due date, dependencies on other task ids and free-form notes.

Deleting a PRD deletes its epics and tasks. Deleting an epic deletes its tasks.

## WORKFLOW

1. create_prd, then create_epics and create_tasks in batches. Batches are all-or-nothing:
   if one item refers to an unknown parent, nothing is created.
2. Move work forward with update_task (status, priority, assignee, due_date, dependencies) and add_task_notes.
3. Answer questions with read_project, search_items, get_tasks_by_status and get_tasks_by_assignee.

## LIVE VIEWS

Derived views are addressed by URI:
- project://{prdId}                  project with epics, tasks and statistics
- dashboard://assignee/{name}        one person's tasks, due dates and workload
- metrics://burndown/{prdId}         burndown series, velocity and team load
- events://project/{prdId}           recent change events

Use read_resource for a one-off read. Use subscribe_resource to receive the current view
immediately and then one notification per change, and unsubscribe_resource when done.
list_resources shows every URI that currently resolves.

The data file may be edited outside this server. When that happens, subscribed views are
pushed again as refresh updates.`
}
