package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type brightnessRequest struct {
	Brightness float64 `json:"brightness"`
}

func newBrightnessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "brightness <0-100>",
		Short: "Set the LCD brightness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("brightness must be a number: %w", err)
			}
			if level < 0 || level > 100 {
				return fmt.Errorf("brightness must be between 0 and 100, got %v", level)
			}
			ack, err := ctx.client().post(cmd.Context(), "/brightness", brightnessRequest{Brightness: level})
			if err != nil {
				return err
			}
			if ack.Status != "ok" {
				return fmt.Errorf("daemon did not apply brightness (status %q)", ack.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Brightness set to %v%%\n", level)
			return nil
		},
	}
}
