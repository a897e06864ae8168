package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"lcdbridge/internal/config"
	"lcdbridge/internal/device"
	"lcdbridge/internal/preflight"
)

var skipConfigLoad = map[string]string{"skipConfigLoad": "true"}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check the bridge configuration",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool
	var opts config.SampleOptions

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration, optionally preset for a driver and bind address",
		Annotations: skipConfigLoad,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Driver != "" && !slices.Contains(device.Drivers(), opts.Driver) {
				return fmt.Errorf("unknown device driver %q (available: %s)", opts.Driver, strings.Join(device.Drivers(), ", "))
			}
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Lstat(target); err == nil {
					return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("check %s: %w", target, err)
				}
			}
			if err := config.WriteSample(target, opts); err != nil {
				return err
			}

			// Loading back catches an override the sample cannot carry.
			cfg, _, _, err := config.Load(target)
			if err != nil {
				return fmt.Errorf("written sample does not load: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "  driver %s, API %s, images from %s\n", cfg.Device.Driver, cfg.Paths.APIBind, cfg.Paths.AssetsDir)
			fmt.Fprintln(out, "Copy the device images into the images directory, then start the bridge with `lcdbridge run`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "Preset device.driver")
	cmd.Flags().StringVar(&opts.Bind, "bind", "", "Preset paths.bind (host:port)")
	return cmd
}

// initTarget resolves --path, defaulting to the per-user config location.
func initTarget(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Check the configuration and run the startup preflight checks",
		Annotations: skipConfigLoad,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(stdout, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(stdout, "Device driver: %s (%dx%d %s)\n", cfg.Device.Driver, cfg.Device.Width, cfg.Device.Height, cfg.Device.FrameFormat)
			fmt.Fprintf(stdout, "API bind: %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(stdout, "Hotplug monitoring: %s\n", yesNo(cfg.USB.HotplugEnabled))

			results := preflight.RunAll(cfg)
			out := newStatusPrinter(stdout)
			out.section("Preflight")
			for _, r := range results {
				out.lines(preflightLine(r))
			}
			if failed := preflight.Failed(results); strict && len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			fmt.Fprintln(stdout, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a preflight check fails")
	return cmd
}
