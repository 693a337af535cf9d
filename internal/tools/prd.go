package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/tracky/internal/project"
)

// --- create_prd ---

// CreatePRDTool handles the create_prd MCP tool.
type CreatePRDTool struct {
	manager *project.Manager
}

// NewCreatePRDTool creates a CreatePRDTool.
func NewCreatePRDTool(manager *project.Manager) *CreatePRDTool {
	return &CreatePRDTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *CreatePRDTool) Definition() mcp.Tool {
	return mcp.NewTool("create_prd",
		mcp.WithDescription("Create a new Product Requirements Document. New PRDs start as draft."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the PRD")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Detailed description of the product requirements")),
		mcp.WithString("owner", mcp.Required(), mcp.Description("Owner of the PRD")),
	)
}

// Handle processes the create_prd tool call.
func (t *CreatePRDTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prd, err := t.manager.CreatePRD(ctx,
		req.GetString("title", ""),
		req.GetString("description", ""),
		req.GetString("owner", ""),
	)
	if err != nil {
		return failure(err)
	}
	return jsonResult(prd)
}

// --- update_prd ---

// UpdatePRDTool handles the update_prd MCP tool.
type UpdatePRDTool struct {
	manager *project.Manager
}

// NewUpdatePRDTool creates an UpdatePRDTool.
func NewUpdatePRDTool(manager *project.Manager) *UpdatePRDTool {
	return &UpdatePRDTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdatePRDTool) Definition() mcp.Tool {
	return mcp.NewTool("update_prd",
		mcp.WithDescription("Update an existing PRD. Only the fields sent are changed."),
		mcp.WithString("id", mcp.Required(), mcp.Description("ID of the PRD to update")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status",
			mcp.Enum(string(project.PRDDraft), string(project.PRDApproved),
				string(project.PRDInProgress), string(project.PRDCompleted)),
			mcp.Description("New status"),
		),
		mcp.WithString("owner", mcp.Description("New owner")),
	)
}

// Handle processes the update_prd tool call.
func (t *UpdatePRDTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requiredString(req, "id")
	if bad != nil {
		return bad, nil
	}

	u := project.PRDUpdate{
		Title:       optionalString(req, "title"),
		Description: optionalString(req, "description"),
		Owner:       optionalString(req, "owner"),
	}
	if s := optionalString(req, "status"); s != nil {
		status := project.PRDStatus(*s)
		u.Status = &status
	}

	prd, err := t.manager.UpdatePRD(ctx, id, u)
	if err != nil {
		return failure(err)
	}
	return jsonResult(prd)
}

// --- delete_prd ---

// DeletePRDTool handles the delete_prd MCP tool.
type DeletePRDTool struct {
	manager *project.Manager
}

// NewDeletePRDTool creates a DeletePRDTool.
func NewDeletePRDTool(manager *project.Manager) *DeletePRDTool {
	return &DeletePRDTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *DeletePRDTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_prd",
		mcp.WithDescription("Delete a PRD and all its associated epics and tasks"),
		mcp.WithString("id", mcp.Required(), mcp.Description("ID of the PRD to delete")),
	)
}

// Handle processes the delete_prd tool call.
func (t *DeletePRDTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requiredString(req, "id")
	if bad != nil {
		return bad, nil
	}
	if err := t.manager.DeletePRD(ctx, id); err != nil {
		return failure(err)
	}
	return mcp.NewToolResultText("PRD and all associated items deleted successfully"), nil
}
