// Package config loads, normalizes, and validates lcdbridge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the LCDBRIDGE_BIND environment
// override. The Config type centralizes every knob the daemon and CLI need:
// device driver selection, pipeline sizing, overlay rendering, palette search
// bounds, and playback timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
