// Package resources exposes the live views as MCP resource templates.
//
// Every read builds the view fresh from the store; nothing is cached.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/tracky/internal/live"
)

// Reader builds the current view of a resource URI.
type Reader interface {
	Read(ctx context.Context, uri string) (any, error)
}

// Handler serves resource reads for every template.
type Handler struct {
	reader Reader
}

// NewHandler creates a resource Handler over reader (usually the live hub).
func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// Templates returns the MCP definitions of the four resource templates.
func (h *Handler) Templates() []mcp.ResourceTemplate {
	infos := live.Templates()
	out := make([]mcp.ResourceTemplate, 0, len(infos))
	for _, info := range infos {
		out = append(out, mcp.NewResourceTemplate(info.URITemplate, info.Name,
			mcp.WithTemplateDescription(info.Description),
			mcp.WithTemplateMIMEType(info.MIMEType),
		))
	}
	return out
}

// Handle builds the requested view and returns it as indented JSON.
// Unknown URIs and ids are returned as errors.
func (h *Handler) Handle(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	view, err := h.reader.Read(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: live.MIMEJSON,
			Text:     string(data),
		},
	}, nil
}
