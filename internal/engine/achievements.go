package engine

import (
	"time"

	"finquest/internal/api"
)

// Achievement is a badge the backend tracks for the user.
type Achievement struct {
	ID          string
	Type        AchievementType
	Name        string
	Description string
	Progress    int
	Target      int
	Points      int
	UnlockedAt  *time.Time
	completed   bool
}

func achievementFrom(a api.Achievement) Achievement {
	return Achievement{
		ID:          a.ID,
		Type:        AchievementType(a.Type),
		Name:        a.Name,
		Description: a.Description,
		Progress:    a.Progress,
		Target:      a.Target,
		Points:      a.Points,
		UnlockedAt:  a.UnlockedAt,
		completed:   a.Completed,
	}
}

func achievementsFrom(list []api.Achievement) []Achievement {
	out := make([]Achievement, 0, len(list))
	for _, a := range list {
		out = append(out, achievementFrom(a))
	}
	return out
}

// Completed is derived from progress; the backend flag only counts when no
// target is known.
func (a Achievement) Completed() bool {
	if a.Target > 0 {
		return a.Progress >= a.Target
	}
	return a.completed
}

// DisplayProgress clamps progress to the target.
func (a Achievement) DisplayProgress() int {
	if a.Target > 0 && a.Progress > a.Target {
		return a.Target
	}
	if a.Progress < 0 {
		return 0
	}
	return a.Progress
}

func (a Achievement) Icon() string { return a.Type.Icon() }

// mergeAchievements replaces entries by id and appends new ones. The input
// slice is never modified.
func mergeAchievements(current []Achievement, incoming []Achievement) []Achievement {
	out := make([]Achievement, len(current), len(current)+len(incoming))
	copy(out, current)
	index := make(map[string]int, len(out))
	for i, a := range out {
		index[a.ID] = i
	}
	for _, a := range incoming {
		if i, ok := index[a.ID]; ok {
			out[i] = a
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}

// CountCompleted returns how many achievements are completed.
func CountCompleted(list []Achievement) int {
	n := 0
	for _, a := range list {
		if a.Completed() {
			n++
		}
	}
	return n
}
