package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lcdbridge/internal/daemon"
	"lcdbridge/internal/preflight"
	"lcdbridge/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, device, and playback status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			info, infoErr := client.info(cmd.Context())
			if jsonOutput {
				if infoErr != nil {
					return infoErr
				}
				return writeJSON(cmd, info)
			}

			stdout := cmd.OutOrStdout()
			out := newStatusPrinter(stdout)

			out.section("Daemon")
			if infoErr != nil {
				out.lines(
					statusLine{Label: "lcdbridge", Kind: statusError, Message: "Not running"},
					statusLine{Label: "Detail", Kind: statusInfo, Message: infoErr.Error()},
				)
			} else {
				out.lines(daemonLines(info, client.base)...)
				if history, err := client.uploads(cmd.Context(), 1); err == nil && len(history.Uploads) > 0 {
					out.lines(uploadLine(history.Uploads[0]))
				}
			}
			fmt.Fprintln(stdout)

			if infoErr == nil {
				out.section("Telemetry")
				fmt.Fprintln(stdout, renderTable(telemetryColumns, telemetryRows(info.Telemetry), ""))
				fmt.Fprintln(stdout)
			}

			out.section("Preflight")
			for _, r := range preflight.RunAll(ctx.configValue()) {
				out.lines(preflightLine(r))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the daemon info response as JSON")
	return cmd
}

func daemonLines(info daemon.InfoResponse, base string) []statusLine {
	lines := []statusLine{
		{Label: "lcdbridge", Kind: statusOK, Message: "Running at " + strings.TrimPrefix(base, "http://")},
	}

	device := fmt.Sprintf("%s %dx%d %s (serial %s)", info.Name, info.Resolution.Width, info.Resolution.Height, info.RenderingMode, info.Serial)
	if info.Online {
		lines = append(lines, statusLine{Label: "Device", Kind: statusOK, Message: device})
	} else {
		lines = append(lines, statusLine{Label: "Device", Kind: statusWarn, Message: "offline: " + device})
	}

	lines = append(lines, statusLine{Label: "Mode", Kind: statusInfo, Message: fmt.Sprintf("%s (%.1f fps)", info.Mode, info.FPS)})

	playback := statusLine{Label: "Playback", Kind: statusInfo, Message: "idle"}
	switch {
	case info.GIFRunning:
		playback.Kind, playback.Message = statusOK, fmt.Sprintf("%s at %.1f fps", filepath.Base(info.GIFPath), info.GIFFPS)
	case info.GIFMode:
		playback.Kind, playback.Message = statusWarn, "uploading "+filepath.Base(info.GIFPath)
	}
	lines = append(lines, playback)
	if cfg := info.GIFConfig; cfg.SourcePath != "" {
		lines = append(lines, statusLine{Label: "Saved animation", Kind: statusInfo, Message: specSummary(cfg)})
	}
	return lines
}

func specSummary(spec state.PlaybackSpec) string {
	parts := []string{spec.SourcePath, string(spec.FitMode), fmt.Sprintf("zoom %d%%", spec.Zoom)}
	if spec.Rotation != 0 {
		parts = append(parts, fmt.Sprintf("rotation %d", spec.Rotation))
	}
	if spec.FPS != "" {
		parts = append(parts, spec.FPS+" fps")
	}
	if spec.OffsetX != 0 || spec.OffsetY != 0 {
		parts = append(parts, fmt.Sprintf("offset %d,%d", spec.OffsetX, spec.OffsetY))
	}
	return strings.Join(parts, ", ")
}

func telemetryRows(t state.Snapshot) [][]string {
	optional := func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f °C", *v)
	}
	return [][]string{
		{"CPU load", fmt.Sprintf("%.0f%%", t.CPULoad)},
		{"Liquid", fmt.Sprintf("%.1f °C", t.Liquid)},
		{"Pump", fmt.Sprintf("%.0f%%", t.Pump)},
		{"CPU temp", optional(t.CPUTemp)},
		{"GPU temp", optional(t.GPUTemp)},
	}
}
