package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lcdbridge/internal/state"
)

// LastKnown is the persisted playback spec used for identical restarts.
type LastKnown struct {
	Spec      state.PlaybackSpec
	Active    bool
	UpdatedAt time.Time
}

// SaveLastKnown replaces the stored spec and its active flag.
func (s *Store) SaveLastKnown(ctx context.Context, spec state.PlaybackSpec, active bool) error {
	payload, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO last_known (id, spec_json, active, updated_at) VALUES (1, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET spec_json = excluded.spec_json, active = excluded.active, updated_at = excluded.updated_at`,
		string(payload), boolToInt(active), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save last known spec: %w", err)
	}
	return nil
}

// SetActive flips the active flag without touching the spec. A missing row
// is not an error.
func (s *Store) SetActive(ctx context.Context, active bool) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE last_known SET active = ?, updated_at = ? WHERE id = 1`,
		boolToInt(active), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("update playback flag: %w", err)
	}
	return nil
}

// LoadLastKnown returns the stored spec or ErrNotFound.
func (s *Store) LoadLastKnown(ctx context.Context) (LastKnown, error) {
	var (
		payload string
		active  int
		updated string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT spec_json, active, updated_at FROM last_known WHERE id = 1`,
	).Scan(&payload, &active, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return LastKnown{}, ErrNotFound
	}
	if err != nil {
		return LastKnown{}, fmt.Errorf("load last known spec: %w", err)
	}

	var out LastKnown
	if err := json.Unmarshal([]byte(payload), &out.Spec); err != nil {
		return LastKnown{}, fmt.Errorf("decode last known spec: %w", err)
	}
	out.Active = active != 0
	if ts, err := parseTimeString(updated); err == nil {
		out.UpdatedAt = ts
	}
	return out, nil
}
