// Package tools implements the MCP tool handlers for the project tracker.
//
// Each tool is a struct that receives its dependencies through its
// constructor, exposes Definition() for registration and Handle() as the
// mcp-go handler. User mistakes (unknown ids, malformed input) come back as
// tool error results; anything else is returned as a Go error.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/tracky/internal/project"
)

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// failure maps err to a tool error result when the caller can fix it.
func failure(err error) (*mcp.CallToolResult, error) {
	if project.IsUserError(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

// requiredString returns the trimmed-nonempty argument or an error result.
func requiredString(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	v := req.GetString(key, "")
	if v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("'%s' is required", key))
	}
	return v, nil
}

// optionalString returns a pointer to the argument when it was sent as a
// string, nil otherwise.
func optionalString(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// stringSlice extracts an array of strings. ok is false when the key is
// absent; a present value that is not an array of strings is an error.
func stringSlice(req mcp.CallToolRequest, key string) (values []string, ok bool, err error) {
	raw, present := req.GetArguments()[key]
	if !present || raw == nil {
		return nil, false, nil
	}
	items, isSlice := raw.([]any)
	if !isSlice {
		if ss, isStrings := raw.([]string); isStrings {
			return ss, true, nil
		}
		return nil, true, fmt.Errorf("%w: '%s' must be an array of strings", project.ErrBadInput, key)
	}
	values = make([]string, 0, len(items))
	for i, item := range items {
		s, isString := item.(string)
		if !isString {
			return nil, true, fmt.Errorf("%w: '%s[%d]' must be a string", project.ErrBadInput, key, i)
		}
		values = append(values, s)
	}
	return values, true, nil
}

// decodeArg re-decodes one argument into target through JSON, for arrays
// of objects.
func decodeArg(req mcp.CallToolRequest, key string, target any) error {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return fmt.Errorf("%w: '%s' is required", project.ErrBadInput, key)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: '%s': %v", project.ErrBadInput, key, err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("%w: '%s': %v", project.ErrBadInput, key, err)
	}
	return nil
}

// stringItems is the array item schema for lists of ids or notes.
var stringItems = mcp.Items(map[string]any{"type": "string"})

// Enumerations shown in tool schemas.
var (
	priorities   = []string{string(project.PriorityLow), string(project.PriorityMedium), string(project.PriorityHigh)}
	taskStatuses = []string{
		string(project.TaskTodo), string(project.TaskInProgress),
		string(project.TaskReview), string(project.TaskDone),
	}
)
