// tracky: project tracking MCP server
//
// An MCP server that keeps PRDs, epics and tasks in a local file or
// database and pushes live project views to subscribed clients.
//
// Usage:
//
//	tracky serve             # Start MCP server (stdio transport)
//	tracky read <uri>        # Print one live view as JSON
//	tracky version           # Print the version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tracky",
	Short: "Project tracking MCP server",
	Long: `tracky keeps PRDs, epics and tasks and serves them over the Model Context Protocol.

Add it to your AI tool's MCP config:

  {
    "mcpServers": {
      "tracky": {
        "command": "tracky",
        "args": ["serve"]
      }
    }
  }`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
