package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/tracky/internal/project"
)

// --- create_tasks ---

// CreateTasksTool handles the create_tasks MCP tool.
type CreateTasksTool struct {
	manager *project.Manager
}

// NewCreateTasksTool creates a CreateTasksTool.
func NewCreateTasksTool(manager *project.Manager) *CreateTasksTool {
	return &CreateTasksTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *CreateTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("create_tasks",
		mcp.WithDescription("Create multiple tasks linked to epics. New tasks start in todo. The batch is all-or-nothing."),
		mcp.WithArray("tasks",
			mcp.Required(),
			mcp.Description("Tasks to create"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"epic_id":      map[string]any{"type": "string", "description": "ID of the parent epic"},
					"title":        map[string]any{"type": "string", "description": "Task title"},
					"description":  map[string]any{"type": "string", "description": "Task description"},
					"priority":     map[string]any{"type": "string", "enum": priorities, "description": "Priority level"},
					"assignee":     map[string]any{"type": "string", "description": "Person assigned to the task"},
					"due_date":     map[string]any{"type": "string", "description": "Due date in ISO format"},
					"dependencies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "IDs of tasks this depends on"},
				},
				"required": []string{"epic_id", "title", "description", "priority"},
			}),
		),
	)
}

// Handle processes the create_tasks tool call.
func (t *CreateTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tasks []project.NewTask
	if err := decodeArg(req, "tasks", &tasks); err != nil {
		return failure(err)
	}
	created, err := t.manager.CreateTasks(ctx, tasks)
	if err != nil {
		return failure(err)
	}
	return jsonResult(created)
}

// --- update_task ---

// UpdateTaskTool handles the update_task MCP tool.
type UpdateTaskTool struct {
	manager *project.Manager
}

// NewUpdateTaskTool creates an UpdateTaskTool.
func NewUpdateTaskTool(manager *project.Manager) *UpdateTaskTool {
	return &UpdateTaskTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("update_task",
		mcp.WithDescription("Update an existing task. Only the fields sent are changed; dependencies replace the whole list."),
		mcp.WithString("id", mcp.Required(), mcp.Description("ID of the task to update")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Enum(taskStatuses...), mcp.Description("New status")),
		mcp.WithString("priority", mcp.Enum(priorities...), mcp.Description("New priority")),
		mcp.WithString("assignee", mcp.Description("New assignee")),
		mcp.WithString("due_date", mcp.Description("New due date in ISO format")),
		mcp.WithArray("dependencies", mcp.Description("Updated dependency task IDs"), stringItems),
	)
}

// Handle processes the update_task tool call.
func (t *UpdateTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requiredString(req, "id")
	if bad != nil {
		return bad, nil
	}

	u := project.TaskUpdate{
		Title:       optionalString(req, "title"),
		Description: optionalString(req, "description"),
		Assignee:    optionalString(req, "assignee"),
		DueDate:     optionalString(req, "due_date"),
	}
	if s := optionalString(req, "status"); s != nil {
		status := project.TaskStatus(*s)
		u.Status = &status
	}
	if p := optionalString(req, "priority"); p != nil {
		priority := project.Priority(*p)
		u.Priority = &priority
	}
	deps, ok, err := stringSlice(req, "dependencies")
	if err != nil {
		return failure(err)
	}
	if ok {
		u.Dependencies = &deps
	}

	task, err := t.manager.UpdateTask(ctx, id, u)
	if err != nil {
		return failure(err)
	}
	return jsonResult(task)
}

// --- add_task_notes ---

// AddTaskNotesTool handles the add_task_notes MCP tool.
type AddTaskNotesTool struct {
	manager *project.Manager
}

// NewAddTaskNotesTool creates an AddTaskNotesTool.
func NewAddTaskNotesTool(manager *project.Manager) *AddTaskNotesTool {
	return &AddTaskNotesTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *AddTaskNotesTool) Definition() mcp.Tool {
	return mcp.NewTool("add_task_notes",
		mcp.WithDescription("Add progress notes to a task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID of the task")),
		mcp.WithArray("notes", mcp.Required(), mcp.Description("Notes to add"), stringItems),
	)
}

// Handle processes the add_task_notes tool call.
func (t *AddTaskNotesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requiredString(req, "task_id")
	if bad != nil {
		return bad, nil
	}
	notes, _, err := stringSlice(req, "notes")
	if err != nil {
		return failure(err)
	}
	task, err := t.manager.AddTaskNotes(ctx, id, notes)
	if err != nil {
		return failure(err)
	}
	return jsonResult(task)
}

// --- delete_tasks ---

// DeleteTasksTool handles the delete_tasks MCP tool.
type DeleteTasksTool struct {
	manager *project.Manager
}

// NewDeleteTasksTool creates a DeleteTasksTool.
func NewDeleteTasksTool(manager *project.Manager) *DeleteTasksTool {
	return &DeleteTasksTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_tasks",
		mcp.WithDescription("Delete multiple tasks"),
		mcp.WithArray("ids", mcp.Required(), mcp.Description("IDs of tasks to delete"), stringItems),
	)
}

// Handle processes the delete_tasks tool call.
func (t *DeleteTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, _, err := stringSlice(req, "ids")
	if err != nil {
		return failure(err)
	}
	if err := t.manager.DeleteTasks(ctx, ids); err != nil {
		return failure(err)
	}
	return mcp.NewToolResultText("Tasks deleted successfully"), nil
}
