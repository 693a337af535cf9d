package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StandupPrompt handles the standup MCP prompt.
// It drafts a daily standup update for one assignee from their dashboard.
type StandupPrompt struct{}

// NewStandupPrompt creates a StandupPrompt.
func NewStandupPrompt() *StandupPrompt {
	return &StandupPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StandupPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("standup",
		mcp.WithPromptDescription(
			"Draft a daily standup update for a team member from their live dashboard.",
		),
		mcp.WithArgument("assignee",
			mcp.ArgumentDescription("Name of the team member"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the standup prompt request.
func (p *StandupPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	assignee := req.Params.Arguments["assignee"]
	if assignee == "" {
		return nil, fmt.Errorf("'assignee' is required")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Standup for %s", assignee),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please run `read_resource` with uri `dashboard://assignee/%s?showCompleted=true`.\n\n"+
						"Then write a standup update with three short sections:\n"+
						"- **Yesterday**: tasks completed today or recently moved to review\n"+
						"- **Today**: tasks in progress, then the highest-priority todo items\n"+
						"- **Blockers**: tasks with unmet dependencies or due dates in the past\n\n"+
						"Keep it under ten lines. If there is nothing to report in a section, say so.",
					assignee,
				)),
			},
		},
	}, nil
}
