package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/tracky/internal/project"
)

// --- read_project ---

// ReadProjectTool handles the read_project MCP tool.
type ReadProjectTool struct {
	manager *project.Manager
}

// NewReadProjectTool creates a ReadProjectTool.
func NewReadProjectTool(manager *project.Manager) *ReadProjectTool {
	return &ReadProjectTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *ReadProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("read_project",
		mcp.WithDescription("Read project hierarchy (PRD with nested epics and tasks). Without prd_id, every project is returned."),
		mcp.WithString("prd_id", mcp.Description("Optional PRD ID to read a specific project")),
	)
}

// Handle processes the read_project tool call.
func (t *ReadProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.manager.ReadProject(ctx, req.GetString("prd_id", ""))
	if err != nil {
		return failure(err)
	}
	return jsonResult(projects)
}

// --- search_items ---

// SearchItemsTool handles the search_items MCP tool.
type SearchItemsTool struct {
	manager *project.Manager
}

// NewSearchItemsTool creates a SearchItemsTool.
func NewSearchItemsTool(manager *project.Manager) *SearchItemsTool {
	return &SearchItemsTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *SearchItemsTool) Definition() mcp.Tool {
	return mcp.NewTool("search_items",
		mcp.WithDescription("Search across PRDs, epics, and tasks (case-insensitive substring match)"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("item_type",
			mcp.Enum(string(project.EntityPRD), string(project.EntityEpic), string(project.EntityTask)),
			mcp.Description("Optional filter by item type"),
		),
	)
}

// Handle processes the search_items tool call.
func (t *SearchItemsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := t.manager.SearchItems(ctx,
		req.GetString("query", ""),
		project.EntityType(req.GetString("item_type", "")),
	)
	if err != nil {
		return failure(err)
	}
	return jsonResult(result)
}

// --- get_tasks_by_status ---

// TasksByStatusTool handles the get_tasks_by_status MCP tool.
type TasksByStatusTool struct {
	manager *project.Manager
}

// NewTasksByStatusTool creates a TasksByStatusTool.
func NewTasksByStatusTool(manager *project.Manager) *TasksByStatusTool {
	return &TasksByStatusTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *TasksByStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("get_tasks_by_status",
		mcp.WithDescription("Get tasks filtered by status"),
		mcp.WithString("status", mcp.Required(), mcp.Enum(taskStatuses...), mcp.Description("Task status to filter by")),
		mcp.WithString("epic_id", mcp.Description("Optional epic ID filter")),
		mcp.WithString("assignee", mcp.Description("Optional assignee filter")),
	)
}

// Handle processes the get_tasks_by_status tool call.
func (t *TasksByStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := t.manager.TasksByStatus(ctx,
		project.TaskStatus(req.GetString("status", "")),
		req.GetString("epic_id", ""),
		req.GetString("assignee", ""),
	)
	if err != nil {
		return failure(err)
	}
	return jsonResult(tasks)
}

// --- get_tasks_by_assignee ---

// TasksByAssigneeTool handles the get_tasks_by_assignee MCP tool.
type TasksByAssigneeTool struct {
	manager *project.Manager
}

// NewTasksByAssigneeTool creates a TasksByAssigneeTool.
func NewTasksByAssigneeTool(manager *project.Manager) *TasksByAssigneeTool {
	return &TasksByAssigneeTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *TasksByAssigneeTool) Definition() mcp.Tool {
	return mcp.NewTool("get_tasks_by_assignee",
		mcp.WithDescription("Get all tasks assigned to a specific person"),
		mcp.WithString("assignee", mcp.Required(), mcp.Description("Assignee name")),
	)
}

// Handle processes the get_tasks_by_assignee tool call.
func (t *TasksByAssigneeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := t.manager.TasksByAssignee(ctx, req.GetString("assignee", ""))
	if err != nil {
		return failure(err)
	}
	return jsonResult(tasks)
}
