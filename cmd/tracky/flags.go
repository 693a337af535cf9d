package main

import (
	"github.com/spf13/cobra"

	"github.com/HendryAvila/tracky/internal/config"
)

// configPath is the --config flag.
var configPath string

// flagKeys maps persistent flag names to config keys. Only flags the user
// actually set override the config file and environment.
var flagKeys = map[string]string{
	"data-file":    "data.file",
	"backend":      "store.backend",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ./tracky.yaml, then the user config dir)")
	pf.String("data-file", "", "JSON-lines data file for the jsonl backend")
	pf.String("backend", "", "store backend: jsonl, sqlite, postgres or memory")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address")
	pf.String("log-level", "", "log level: debug, info, warn or error")
}

// loadConfig resolves configuration with changed flags as overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		value, err := cmd.Flags().GetString(flag)
		if err != nil {
			return nil, err
		}
		overrides[key] = value
	}
	return config.Load(configPath, overrides)
}
