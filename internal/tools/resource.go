package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/tracky/internal/live"
)

// ResourceUpdatedMethod is the notification sent to a session for every
// update on a resource it subscribed to.
const ResourceUpdatedMethod = "notifications/resources/updated"

// LiveResources is the part of the live hub the resource tools use.
type LiveResources interface {
	Subscribe(ctx context.Context, uri, subscriberID string, cb live.Callback) error
	Unsubscribe(uri, subscriberID string)
	Read(ctx context.Context, uri string) (any, error)
	Resources(ctx context.Context) ([]live.ResourceInfo, error)
	Templates() []live.TemplateInfo
}

// ClientNotifier delivers a notification to one MCP session.
// *server.MCPServer implements it.
type ClientNotifier interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
}

// sessionID returns the id of the calling MCP session.
func sessionID(ctx context.Context) (string, error) {
	session := server.ClientSessionFromContext(ctx)
	if session == nil || session.SessionID() == "" {
		return "", fmt.Errorf("subscriptions require an MCP client session")
	}
	return session.SessionID(), nil
}

// --- subscribe_resource ---

// SubscribeResourceTool handles the subscribe_resource MCP tool.
type SubscribeResourceTool struct {
	resources LiveResources
	notifier  ClientNotifier
}

// NewSubscribeResourceTool creates a SubscribeResourceTool that pushes
// updates through notifier.
func NewSubscribeResourceTool(resources LiveResources, notifier ClientNotifier) *SubscribeResourceTool {
	return &SubscribeResourceTool{resources: resources, notifier: notifier}
}

// Definition returns the MCP tool definition for registration.
func (t *SubscribeResourceTool) Definition() mcp.Tool {
	return mcp.NewTool("subscribe_resource",
		mcp.WithDescription(
			"Subscribe this session to a live resource. The current view is pushed immediately as a "+
				"'full' update, then every change to the resource arrives as a "+ResourceUpdatedMethod+
				" notification carrying {uri, update}.",
		),
		mcp.WithString("uri",
			mcp.Required(),
			mcp.Description("Resource URI, e.g. project://{prd_id}, dashboard://assignee/{name}, "+
				"metrics://burndown/{prd_id}, events://project/{prd_id}"),
		),
	)
}

// Handle processes the subscribe_resource tool call.
func (t *SubscribeResourceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, bad := requiredString(req, "uri")
	if bad != nil {
		return bad, nil
	}
	id, err := sessionID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	notify := func(u live.Update) error {
		return t.notifier.SendNotificationToSpecificClient(id, ResourceUpdatedMethod, map[string]any{
			"uri":    u.URI,
			"update": u,
		})
	}
	if err := t.resources.Subscribe(ctx, uri, id, notify); err != nil {
		return failure(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Subscribed to %s", uri)), nil
}

// --- unsubscribe_resource ---

// UnsubscribeResourceTool handles the unsubscribe_resource MCP tool.
type UnsubscribeResourceTool struct {
	resources LiveResources
}

// NewUnsubscribeResourceTool creates an UnsubscribeResourceTool.
func NewUnsubscribeResourceTool(resources LiveResources) *UnsubscribeResourceTool {
	return &UnsubscribeResourceTool{resources: resources}
}

// Definition returns the MCP tool definition for registration.
func (t *UnsubscribeResourceTool) Definition() mcp.Tool {
	return mcp.NewTool("unsubscribe_resource",
		mcp.WithDescription("Stop receiving updates for a resource. Unknown subscriptions are ignored."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Resource URI to unsubscribe from")),
	)
}

// Handle processes the unsubscribe_resource tool call.
func (t *UnsubscribeResourceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, bad := requiredString(req, "uri")
	if bad != nil {
		return bad, nil
	}
	id, err := sessionID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.resources.Unsubscribe(uri, id)
	return mcp.NewToolResultText(fmt.Sprintf("Unsubscribed from %s", uri)), nil
}

// --- read_resource ---

// ReadResourceTool handles the read_resource MCP tool.
type ReadResourceTool struct {
	resources LiveResources
}

// NewReadResourceTool creates a ReadResourceTool.
func NewReadResourceTool(resources LiveResources) *ReadResourceTool {
	return &ReadResourceTool{resources: resources}
}

// Definition returns the MCP tool definition for registration.
func (t *ReadResourceTool) Definition() mcp.Tool {
	return mcp.NewTool("read_resource",
		mcp.WithDescription("Build the current view of a resource. Query parameters such as "+
			"?showCompleted=true, ?days=N or ?limit=N are honoured."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Resource URI to read")),
	)
}

// Handle processes the read_resource tool call.
func (t *ReadResourceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, bad := requiredString(req, "uri")
	if bad != nil {
		return bad, nil
	}
	view, err := t.resources.Read(ctx, uri)
	if err != nil {
		return failure(err)
	}
	return jsonResult(view)
}

// --- list_resources ---

// ListResourcesTool handles the list_resources MCP tool.
type ListResourcesTool struct {
	resources LiveResources
}

// NewListResourcesTool creates a ListResourcesTool.
func NewListResourcesTool(resources LiveResources) *ListResourcesTool {
	return &ListResourcesTool{resources: resources}
}

// Definition returns the MCP tool definition for registration.
func (t *ListResourcesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_resources",
		mcp.WithDescription("List concrete resources (one per project and per assignee) and the resource templates"),
	)
}

// resourceCatalog is the list_resources payload.
type resourceCatalog struct {
	Resources []live.ResourceInfo `json:"resources"`
	Templates []live.TemplateInfo `json:"resourceTemplates"`
}

// Handle processes the list_resources tool call.
func (t *ListResourcesTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resources, err := t.resources.Resources(ctx)
	if err != nil {
		return failure(err)
	}
	return jsonResult(resourceCatalog{Resources: resources, Templates: t.resources.Templates()})
}
