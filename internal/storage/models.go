package storage

import "time"

type KVEntry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

type ActionRecord struct {
	ID          int64
	ActionType  string
	EntityType  string
	EntityID    string
	Description string
	XPEarned    int
	TotalXP     int
	LevelAfter  int
	LevelUp     bool
	RecordedAt  time.Time
}
