package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		// Local record of XP-awarding actions the backend accepted.
		`CREATE TABLE IF NOT EXISTS action_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action_type TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			description TEXT,
			xp_earned INTEGER NOT NULL DEFAULT 0,
			total_xp INTEGER NOT NULL DEFAULT 0,
			level_after INTEGER NOT NULL DEFAULT 0,
			level_up INTEGER NOT NULL DEFAULT 0,
			recorded_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_recorded_at ON action_log(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_action_type ON action_log(action_type);`,
	}

	if err := execAll(ctx, db, stmts...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
