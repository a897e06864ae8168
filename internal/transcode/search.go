package transcode

import (
	"context"
	"fmt"
)

// EncodeFunc produces the complete animation at the given palette size.
type EncodeFunc func(ctx context.Context, colors int) ([]byte, error)

// SearchOptions bounds the palette search.
type SearchOptions struct {
	MinColors  int
	MaxColors  int
	Iterations int
	// MinWidth ends the search once high-low drops below it.
	MinWidth int
}

// DefaultSearchOptions returns the [16,256] interval with a 20 pass cap.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{MinColors: 16, MaxColors: 256, Iterations: 20, MinWidth: 10}
}

// SearchResult is the blob chosen by the palette search.
type SearchResult struct {
	Blob   []byte
	Colors int
	Passes int
	// OverCapacity is set when no pass fit and Blob is the smallest seen.
	OverCapacity bool
}

type pass struct {
	colors int
	blob   []byte
}

// SearchPalette bisects the palette size for the largest encoding that fits
// capacity. It stops when the interval narrows below MinWidth, when growing
// the palette no longer changes the blob size, when a (colors, size) pair
// recurs, or after Iterations passes.
func SearchPalette(ctx context.Context, encode EncodeFunc, capacity int, opts SearchOptions) (SearchResult, error) {
	def := DefaultSearchOptions()
	if opts.MinColors <= 0 {
		opts.MinColors = def.MinColors
	}
	if opts.MaxColors <= opts.MinColors {
		opts.MaxColors = max(def.MaxColors, opts.MinColors+1)
	}
	if opts.Iterations <= 0 {
		opts.Iterations = def.Iterations
	}
	if opts.MinWidth <= 0 {
		opts.MinWidth = def.MinWidth
	}

	low, high := opts.MinColors, opts.MaxColors
	var (
		fitting  *pass
		smallest *pass
		previous *pass
		passes   int
	)
	seen := make(map[[2]int]bool)

	for passes < opts.Iterations {
		if err := ctx.Err(); err != nil {
			return SearchResult{}, err
		}
		colors := low + (high-low)/2
		blob, err := encode(ctx, colors)
		if err != nil {
			return SearchResult{}, fmt.Errorf("encode %d colors: %w", colors, err)
		}
		passes++
		current := &pass{colors: colors, blob: blob}
		if smallest == nil || len(blob) < len(smallest.blob) {
			smallest = current
		}

		key := [2]int{colors, len(blob)}
		recurring := seen[key]
		seen[key] = true

		if len(blob) > capacity {
			high = colors
		} else {
			fitting = current
			low = colors
			saturated := previous != nil && previous.colors <= colors && len(previous.blob) == len(blob)
			if saturated {
				break
			}
		}
		if recurring || high-low < opts.MinWidth {
			break
		}
		previous = current
	}

	if fitting != nil {
		return SearchResult{Blob: fitting.blob, Colors: fitting.colors, Passes: passes}, nil
	}
	return SearchResult{Blob: smallest.blob, Colors: smallest.colors, Passes: passes, OverCapacity: true}, nil
}
