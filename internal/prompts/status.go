// Package prompts implements MCP prompt handlers for the project tracker.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a sequence of tool calls. Unlike tools (which the
// AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the project-status MCP prompt.
// It asks the AI to summarize one project, or all of them.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("project-status",
		mcp.WithPromptDescription(
			"Summarize a project: progress per epic, burndown, who is working on what, "+
				"and what is blocked or overdue.",
		),
		mcp.WithArgument("prd_id",
			mcp.ArgumentDescription("PRD to summarize. Leave empty to summarize every project."),
		),
	)
}

// Handle processes the project-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	prdID := req.Params.Arguments["prd_id"]

	var text string
	if prdID == "" {
		text = "Please run `read_project` with no arguments to load every project.\n\n" +
			"For each project:\n" +
			"1. Give its status and owner in one line\n" +
			"2. Show completed vs total tasks\n" +
			"3. Name the epic furthest behind\n\n" +
			"Finish with the single most important thing to do next across all projects."
	} else {
		text = fmt.Sprintf(
			"Please run `read_resource` with uri `project://%[1]s`, then `read_resource` with uri "+
				"`metrics://burndown/%[1]s`.\n\n"+
				"Then:\n"+
				"1. Show progress per epic as a compact table (completed / total, percent)\n"+
				"2. Report remaining points and the current velocity from the burndown\n"+
				"3. List team load, highlighting anyone with more than twice the average\n"+
				"4. Call out tasks in review and tasks whose due date has passed\n"+
				"5. Suggest what the team should pick up next",
			prdID,
		)
	}

	return &mcp.GetPromptResult{
		Description: "Project Status",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
