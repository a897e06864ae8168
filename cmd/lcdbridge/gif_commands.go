package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lcdbridge/internal/daemon"
	"lcdbridge/internal/state"
)

// specFlags mirrors the /gif request body.
type specFlags struct {
	fps      string
	fit      string
	zoom     int
	rotation int
	offsetX  int
	offsetY  int
}

func (f *specFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fps, "fps", "", "Target frame rate (empty keeps the source timing)")
	cmd.Flags().StringVar(&f.fit, "fit", string(state.Fill), "Fit mode: Fill, Fit, or Stretch")
	cmd.Flags().IntVar(&f.zoom, "zoom", state.MinZoom, "Zoom percentage")
	cmd.Flags().IntVar(&f.rotation, "rotation", 0, "Rotation in degrees")
	cmd.Flags().IntVar(&f.offsetX, "offset-x", 0, "Horizontal pan percentage")
	cmd.Flags().IntVar(&f.offsetY, "offset-y", 0, "Vertical pan percentage")
}

func (f *specFlags) spec(path string) (state.PlaybackSpec, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return state.PlaybackSpec{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	return state.PlaybackSpec{
		SourcePath: abs,
		Rotation:   f.rotation,
		FPS:        strings.TrimSpace(f.fps),
		FitMode:    state.ParseFitMode(f.fit),
		Zoom:       f.zoom,
		OffsetX:    f.offsetX,
		OffsetY:    f.offsetY,
	}, nil
}

func newGIFCommand(ctx *commandContext) *cobra.Command {
	gifCmd := &cobra.Command{
		Use:   "gif",
		Short: "Control firmware GIF playback",
	}

	var startFlags specFlags
	startCmd := &cobra.Command{
		Use:   "start <path>",
		Short: "Upload an animation and start device playback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := startFlags.spec(args[0])
			if err != nil {
				return err
			}
			ack, err := ctx.client().post(cmd.Context(), "/gif", spec)
			if err != nil {
				return err
			}
			if ack.Status != "started" {
				return fmt.Errorf("daemon did not start playback (status %q); check the daemon log", ack.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Playback starting for %s (session %s)\n", spec.SourcePath, ack.SessionID)
			return nil
		},
	}
	startFlags.register(startCmd)

	var configFlags specFlags
	configCmd := &cobra.Command{
		Use:   "config <path>",
		Short: "Save playback settings without starting playback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := configFlags.spec(args[0])
			if err != nil {
				return err
			}
			ack, err := ctx.client().post(cmd.Context(), "/gif/config", spec)
			if err != nil {
				return err
			}
			if ack.Status != "saved" {
				return fmt.Errorf("daemon did not save playback settings (status %q)", ack.Status)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Playback settings saved")
			return nil
		},
	}
	configFlags.register(configCmd)

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop playback and return to host streaming",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := ctx.client().post(cmd.Context(), "/gif/stop", nil)
			if err != nil {
				return err
			}
			if ack.Status != "stopped" {
				return fmt.Errorf("playback stop incomplete (status %q); check the daemon log", ack.Status)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Playback stopped")
			return nil
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Restart playback from the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := ctx.client().post(cmd.Context(), "/gif/resume", nil)
			if err != nil {
				return err
			}
			if ack.Status != "started" {
				return fmt.Errorf("daemon did not resume playback (status %q); save settings with `lcdbridge gif config` first", ack.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Playback resuming (session %s)\n", ack.SessionID)
			return nil
		},
	}

	var limit int
	var jsonOutput bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent animation uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().uploads(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			stdout := cmd.OutOrStdout()
			if len(resp.Uploads) == 0 {
				fmt.Fprintln(stdout, "No uploads recorded")
				return nil
			}
			caption := fmt.Sprintf("latest %d uploads", len(resp.Uploads))
			if len(resp.Uploads) == 1 {
				caption = "latest upload"
			}
			fmt.Fprintln(stdout, renderTable(historyColumns, historyRows(resp), caption))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of uploads to show")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the history as JSON")

	gifCmd.AddCommand(startCmd, configCmd, stopCmd, resumeCmd, historyCmd)
	return gifCmd
}

func historyRows(resp daemon.HistoryResponse) [][]string {
	rows := make([][]string, 0, len(resp.Uploads))
	for _, up := range resp.Uploads {
		outcome := up.Outcome
		if up.Reason != "" {
			outcome += ": " + up.Reason
		}
		if up.OverCapacity {
			outcome += " (over capacity)"
		}
		session := up.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		rows = append(rows, []string{
			humanize.Time(up.StartedAt),
			session,
			filepath.Base(up.SourcePath),
			strconv.Itoa(up.Colors),
			humanize.IBytes(uint64(up.BlobBytes)),
			strconv.Itoa(up.Passes),
			outcome,
		})
	}
	return rows
}
