package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Upload outcomes.
const (
	OutcomeUploaded = "uploaded"
	OutcomeFailed   = "failed"
	OutcomeStopped  = "stopped"
)

// defaultHistoryLimit caps RecentUploads when the caller passes no limit.
const defaultHistoryLimit = 20

// Upload records one playback session's transcode and upload attempt.
type Upload struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"sessionId"`
	SourcePath   string    `json:"path"`
	Colors       int       `json:"colors"`
	BlobBytes    int       `json:"blobBytes"`
	Passes       int       `json:"passes"`
	OverCapacity bool      `json:"overCapacity"`
	EffectiveFPS float64   `json:"effectiveFps"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

const uploadColumns = `id, session_id, source_path, colors, blob_bytes, passes, over_capacity,
    effective_fps, outcome, reason, started_at, finished_at`

// RecordUpload appends an upload row and returns its id.
func (s *Store) RecordUpload(ctx context.Context, u Upload) (int64, error) {
	if u.FinishedAt.IsZero() {
		u.FinishedAt = time.Now()
	}
	if u.StartedAt.IsZero() {
		u.StartedAt = u.FinishedAt
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO upload_history (
            session_id, source_path, colors, blob_bytes, passes, over_capacity,
            effective_fps, outcome, reason, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.SessionID,
		u.SourcePath,
		u.Colors,
		u.BlobBytes,
		u.Passes,
		boolToInt(u.OverCapacity),
		u.EffectiveFPS,
		u.Outcome,
		nullableString(u.Reason),
		formatTime(u.StartedAt),
		formatTime(u.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// RecentUploads returns up to limit uploads, newest first.
func (s *Store) RecentUploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+uploadColumns+` FROM upload_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return out, nil
}

// PruneUploads keeps the newest keep rows and returns how many were removed.
func (s *Store) PruneUploads(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM upload_history WHERE id NOT IN (SELECT id FROM upload_history ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune uploads: %w", err)
	}
	return res.RowsAffected()
}

func scanUpload(scanner interface{ Scan(dest ...any) error }) (Upload, error) {
	var (
		u        Upload
		over     int
		reason   sql.NullString
		started  string
		finished string
	)
	if err := scanner.Scan(
		&u.ID, &u.SessionID, &u.SourcePath, &u.Colors, &u.BlobBytes, &u.Passes, &over,
		&u.EffectiveFPS, &u.Outcome, &reason, &started, &finished,
	); err != nil {
		return Upload{}, fmt.Errorf("scan upload: %w", err)
	}
	u.OverCapacity = over != 0
	u.Reason = reason.String
	if ts, err := parseTimeString(started); err == nil {
		u.StartedAt = ts
	}
	if ts, err := parseTimeString(finished); err == nil {
		u.FinishedAt = ts
	}
	return u, nil
}
