package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ActionLogRepo struct {
	db *sql.DB
}

func NewActionLogRepo(db *sql.DB) *ActionLogRepo {
	return &ActionLogRepo{db: db}
}

func (r *ActionLogRepo) Insert(ctx context.Context, rec ActionRecord) (int64, error) {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO action_log (action_type, entity_type, entity_id, description, xp_earned, total_xp, level_after, level_up, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ActionType, rec.EntityType, rec.EntityID, rec.Description, rec.XPEarned, rec.TotalXP, rec.LevelAfter, boolToInt(rec.LevelUp), recordedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("action log insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("action log last insert id: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit records, newest first.
func (r *ActionLogRepo) ListRecent(ctx context.Context, limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action_type, entity_type, entity_id, COALESCE(description, ''), xp_earned, total_xp, level_after, level_up, recorded_at
		FROM action_log
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("action log list: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var rec ActionRecord
		var levelUp int
		if err := rows.Scan(&rec.ID, &rec.ActionType, &rec.EntityType, &rec.EntityID, &rec.Description, &rec.XPEarned, &rec.TotalXP, &rec.LevelAfter, &levelUp, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("action log scan: %w", err)
		}
		rec.LevelUp = levelUp != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("action log rows: %w", err)
	}
	return out, nil
}

// SumXPSince totals xp_earned recorded at or after since.
func (r *ActionLogRepo) SumXPSince(ctx context.Context, since time.Time) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(xp_earned), 0)
		FROM action_log
		WHERE recorded_at >= ?
	`, since.UTC())
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("action log sum: %w", err)
	}
	return n, nil
}

func (r *ActionLogRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM action_log`); err != nil {
		return fmt.Errorf("action log clear: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
