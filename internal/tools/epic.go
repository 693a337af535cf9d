package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/tracky/internal/project"
)

// --- create_epics ---

// CreateEpicsTool handles the create_epics MCP tool.
type CreateEpicsTool struct {
	manager *project.Manager
}

// NewCreateEpicsTool creates a CreateEpicsTool.
func NewCreateEpicsTool(manager *project.Manager) *CreateEpicsTool {
	return &CreateEpicsTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *CreateEpicsTool) Definition() mcp.Tool {
	return mcp.NewTool("create_epics",
		mcp.WithDescription("Create multiple epics linked to a PRD. The batch is all-or-nothing."),
		mcp.WithArray("epics",
			mcp.Required(),
			mcp.Description("Epics to create"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prd_id":      map[string]any{"type": "string", "description": "ID of the parent PRD"},
					"title":       map[string]any{"type": "string", "description": "Epic title"},
					"description": map[string]any{"type": "string", "description": "Epic description"},
					"priority":    map[string]any{"type": "string", "enum": priorities, "description": "Priority level"},
				},
				"required": []string{"prd_id", "title", "description", "priority"},
			}),
		),
	)
}

// Handle processes the create_epics tool call.
func (t *CreateEpicsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var epics []project.NewEpic
	if err := decodeArg(req, "epics", &epics); err != nil {
		return failure(err)
	}
	created, err := t.manager.CreateEpics(ctx, epics)
	if err != nil {
		return failure(err)
	}
	return jsonResult(created)
}

// --- update_epic ---

// UpdateEpicTool handles the update_epic MCP tool.
type UpdateEpicTool struct {
	manager *project.Manager
}

// NewUpdateEpicTool creates an UpdateEpicTool.
func NewUpdateEpicTool(manager *project.Manager) *UpdateEpicTool {
	return &UpdateEpicTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateEpicTool) Definition() mcp.Tool {
	return mcp.NewTool("update_epic",
		mcp.WithDescription("Update an existing epic. Only the fields sent are changed."),
		mcp.WithString("id", mcp.Required(), mcp.Description("ID of the epic to update")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status",
			mcp.Enum(string(project.EpicNotStarted), string(project.EpicInProgress), string(project.EpicCompleted)),
			mcp.Description("New status"),
		),
		mcp.WithString("priority", mcp.Enum(priorities...), mcp.Description("New priority")),
	)
}

// Handle processes the update_epic tool call.
func (t *UpdateEpicTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requiredString(req, "id")
	if bad != nil {
		return bad, nil
	}

	u := project.EpicUpdate{
		Title:       optionalString(req, "title"),
		Description: optionalString(req, "description"),
	}
	if s := optionalString(req, "status"); s != nil {
		status := project.EpicStatus(*s)
		u.Status = &status
	}
	if p := optionalString(req, "priority"); p != nil {
		priority := project.Priority(*p)
		u.Priority = &priority
	}

	epic, err := t.manager.UpdateEpic(ctx, id, u)
	if err != nil {
		return failure(err)
	}
	return jsonResult(epic)
}

// --- delete_epics ---

// DeleteEpicsTool handles the delete_epics MCP tool.
type DeleteEpicsTool struct {
	manager *project.Manager
}

// NewDeleteEpicsTool creates a DeleteEpicsTool.
func NewDeleteEpicsTool(manager *project.Manager) *DeleteEpicsTool {
	return &DeleteEpicsTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteEpicsTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_epics",
		mcp.WithDescription("Delete epics and their associated tasks"),
		mcp.WithArray("ids", mcp.Required(), mcp.Description("IDs of epics to delete"), stringItems),
	)
}

// Handle processes the delete_epics tool call.
func (t *DeleteEpicsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, _, err := stringSlice(req, "ids")
	if err != nil {
		return failure(err)
	}
	if err := t.manager.DeleteEpics(ctx, ids); err != nil {
		return failure(err)
	}
	return mcp.NewToolResultText("Epics and associated tasks deleted successfully"), nil
}
