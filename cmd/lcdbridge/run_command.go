package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lcdbridge/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var debugLog bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the lcdbridge daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.apiFlag != nil {
				if addr := strings.TrimSpace(*ctx.apiFlag); addr != "" {
					cfg.Paths.APIBind = addr
				}
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				DebugLog:    debugLog,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log lines")
	cmd.Flags().BoolVar(&debugLog, "debug-log", false, "Also write DEBUG output to a JSON file under log_dir/debug")
	return cmd
}
