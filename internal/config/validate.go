package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateOverlay(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateUSB(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateDevice() error {
	if err := ensurePositiveMap(map[string]int{
		"device.width":  c.Device.Width,
		"device.height": c.Device.Height,
	}); err != nil {
		return err
	}
	if _, err := c.Device.CapacityBytes(); err != nil {
		return err
	}
	switch c.Device.FrameFormat {
	case "RGBA", "Q565":
	default:
		return fmt.Errorf("device.frame_format must be %s, got %q", supportedFrameFormatsSummary, c.Device.FrameFormat)
	}
	return nil
}

func (c *Config) validateOverlay() error {
	if c.Overlay.Decay <= 1 {
		return errors.New("overlay.decay must be greater than 1")
	}
	if c.Overlay.MinSpeed < 0 || c.Overlay.BaseSpeed < 0 {
		return errors.New("overlay.min_speed and overlay.base_speed must not be negative")
	}
	if c.Overlay.DecayFloor > 255 {
		return errors.New("overlay.decay_floor must be at most 255")
	}
	return nil
}

func (c *Config) validatePlayback() error {
	p := c.Playback
	if p.PaletteMin < minPaletteColors || p.PaletteMax > maxPaletteColors {
		return fmt.Errorf("playback palette bounds must lie within [%d,%d]", minPaletteColors, maxPaletteColors)
	}
	if p.PaletteMin >= p.PaletteMax {
		return errors.New("playback.palette_min must be less than playback.palette_max")
	}
	return nil
}

func (c *Config) validateUSB() error {
	if !c.USB.HotplugEnabled {
		return nil
	}
	if len(c.USB.VendorID) != 4 {
		return fmt.Errorf("usb.vendor_id must be four hex digits, got %q", c.USB.VendorID)
	}
	if _, err := strconv.ParseUint(c.USB.VendorID, 16, 16); err != nil {
		return fmt.Errorf("usb.vendor_id must be hexadecimal, got %q", c.USB.VendorID)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
