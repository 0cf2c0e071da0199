package engine

import (
	"time"

	"finquest/internal/api"
)

type UserProfile struct {
	ID           string
	UserID       string
	TotalXP      int
	CurrentLevel int
	LastUpdated  time.Time
}

type Stats struct {
	TotalXP               int
	CurrentLevel          int
	XPToNextLevel         int
	ProgressPercent       float64
	CompletedAchievements int
	TotalAchievements     int
	CurrentStreak         int
	TotalActions          int
}

// FeatureState is what the backend last reported about feature access.
type FeatureState struct {
	Unlocked map[string]bool
	Locked   map[string]api.LockedFeature
}

func featureStateFrom(r *api.FeaturesResponse) *FeatureState {
	fs := &FeatureState{
		Unlocked: make(map[string]bool, len(r.UnlockedFeatures)),
		Locked:   make(map[string]api.LockedFeature, len(r.LockedFeatures)),
	}
	for _, k := range r.UnlockedFeatures {
		fs.Unlocked[k] = true
	}
	for _, lf := range r.LockedFeatures {
		if lf.FeatureKey == "" {
			continue
		}
		fs.Locked[lf.FeatureKey] = lf
	}
	return fs
}

// State is an immutable snapshot of the engine. Every write installs a new
// State; the pointers inside are shared between snapshots and must not be
// mutated.
type State struct {
	Profile      *UserProfile
	Stats        *Stats
	Achievements []Achievement
	Features     *FeatureState
	LastLoaded   time.Time
	// RefreshTrigger increments whenever dependents should re-read state.
	RefreshTrigger uint64
}

func (s *State) TotalXP() int {
	if s == nil || s.Profile == nil {
		return 0
	}
	return s.Profile.TotalXP
}

func (s *State) Level() int {
	if s == nil || s.Profile == nil {
		return 0
	}
	return s.Profile.CurrentLevel
}

func (s *State) Loaded() bool {
	return s != nil && !s.LastLoaded.IsZero()
}
