package transcode

import (
	"context"
	"errors"
	"testing"
)

func linearEncoder(perColor int, calls *[]int) EncodeFunc {
	return func(_ context.Context, colors int) ([]byte, error) {
		*calls = append(*calls, colors)
		return make([]byte, perColor*colors), nil
	}
}

func TestSearchPaletteNarrowsToLargestFit(t *testing.T) {
	var calls []int
	res, err := SearchPalette(context.Background(), linearEncoder(2400, &calls), 500_000, DefaultSearchOptions())
	if err != nil {
		t.Fatalf("SearchPalette: %v", err)
	}
	wantCalls := []int{136, 196, 226, 211, 203}
	if len(calls) != len(wantCalls) {
		t.Fatalf("passes = %v, want %v", calls, wantCalls)
	}
	for i := range wantCalls {
		if calls[i] != wantCalls[i] {
			t.Fatalf("passes = %v, want %v", calls, wantCalls)
		}
	}
	if res.Colors != 203 || len(res.Blob) != 487_200 || res.Passes != 5 || res.OverCapacity {
		t.Fatalf("result = colors %d size %d passes %d over %v", res.Colors, len(res.Blob), res.Passes, res.OverCapacity)
	}
}

func TestSearchPaletteStopsWhenSizeSaturates(t *testing.T) {
	calls := 0
	encode := func(_ context.Context, colors int) ([]byte, error) {
		calls++
		return make([]byte, 480_000), nil
	}
	res, err := SearchPalette(context.Background(), encode, 500_000, DefaultSearchOptions())
	if err != nil {
		t.Fatalf("SearchPalette: %v", err)
	}
	if calls != 2 || res.Colors != 196 || res.OverCapacity {
		t.Fatalf("calls=%d colors=%d over=%v", calls, res.Colors, res.OverCapacity)
	}
}

func TestSearchPaletteFallsBackToSmallest(t *testing.T) {
	var calls []int
	res, err := SearchPalette(context.Background(), linearEncoder(10_000, &calls), 1_000, DefaultSearchOptions())
	if err != nil {
		t.Fatalf("SearchPalette: %v", err)
	}
	if !res.OverCapacity {
		t.Fatal("expected over-capacity flag")
	}
	if res.Colors != 23 || res.Passes != 5 {
		t.Fatalf("colors=%d passes=%d calls=%v", res.Colors, res.Passes, calls)
	}
}

func TestSearchPaletteRespectsIterationCap(t *testing.T) {
	var calls []int
	opts := SearchOptions{MinColors: 16, MaxColors: 256, Iterations: 2, MinWidth: 1}
	res, err := SearchPalette(context.Background(), linearEncoder(2400, &calls), 500_000, opts)
	if err != nil {
		t.Fatalf("SearchPalette: %v", err)
	}
	if len(calls) != 2 || res.Colors != 196 {
		t.Fatalf("calls=%v colors=%d", calls, res.Colors)
	}
}

func TestSearchPaletteResultWithinCapacityOrFlagged(t *testing.T) {
	for _, capacity := range []int{0, 1, 40_000, 123_457, 300_000, 614_400, 10_000_000} {
		var calls []int
		res, err := SearchPalette(context.Background(), linearEncoder(2400, &calls), capacity, DefaultSearchOptions())
		if err != nil {
			t.Fatalf("capacity %d: %v", capacity, err)
		}
		if len(res.Blob) > capacity && !res.OverCapacity {
			t.Fatalf("capacity %d: %d byte blob not flagged", capacity, len(res.Blob))
		}
		if res.OverCapacity && len(res.Blob) <= capacity {
			t.Fatalf("capacity %d: fitting blob flagged", capacity)
		}
		if len(calls) > 20 {
			t.Fatalf("capacity %d: %d passes", capacity, len(calls))
		}
	}
}

func TestSearchPaletteErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := SearchPalette(context.Background(), func(context.Context, int) ([]byte, error) { return nil, boom }, 10, DefaultSearchOptions())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls []int
	if _, err := SearchPalette(ctx, linearEncoder(1, &calls), 10, DefaultSearchOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("encoded %d times after cancel", len(calls))
	}
}
