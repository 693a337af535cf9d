package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/tracky/internal/logging"
	trackyserver "github.com/HendryAvila/tracky/internal/server"
)

var readCmd = &cobra.Command{
	Use:   "read <uri>",
	Short: "Print one live view as JSON",
	Long: `Build a derived view from the configured store and print it.

Examples:
  tracky read project://prd_1712345678901
  tracky read dashboard://assignee/alice?showCompleted=true
  tracky read metrics://burndown/prd_1712345678901
  tracky read events://project/prd_1712345678901?limit=10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		core, err := trackyserver.OpenCore(cmd.Context(), cfg, logging.Discard())
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		view, err := core.Hub.Read(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding view: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tracky v%s\n", trackyserver.Version)
	},
}

func init() {
	rootCmd.AddCommand(readCmd, versionCmd)
}
