package preflight

import (
	"lcdbridge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDriver(cfg.Device.Driver),
	}

	if cfg.Paths.AssetsDir != "" {
		results = append(results, CheckAssets(cfg.Paths.AssetsDir))
	}
	if cfg.Overlay.FontPath != "" {
		results = append(results, CheckReadableFile("Overlay font", cfg.Overlay.FontPath))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
