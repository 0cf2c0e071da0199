package engine

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"finquest/internal/api"
	"finquest/internal/notify"
	"finquest/internal/storage"
)

// ActionResult is the reconciled outcome of a recorded action.
type ActionResult struct {
	ActionType      ActionType
	XPEarned        int
	TotalXP         int
	Level           int
	LevelName       string
	LevelUp         bool
	NewAchievements []Achievement
}

// RecordAction reports an action to the backend and folds the award into
// local state. It returns nil when the same action is already in flight or
// the backend call fails; failures are logged, never returned, so callers'
// primary work is unaffected.
func (s *Service) RecordAction(ctx context.Context, actionType ActionType, entityType, entityID, description string) *ActionResult {
	key := DedupKey(actionType, entityType, entityID)

	s.mu.Lock()
	if _, busy := s.pending[key]; busy {
		s.bumpLocked()
		s.mu.Unlock()
		log.WithField("action", key).Debug("gamification: duplicate action ignored")
		return nil
	}
	s.pending[key] = struct{}{}
	gen := s.generation
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}()

	resp, err := s.backend.RecordAction(ctx, api.ActionRequest{
		ActionType:  string(actionType),
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
	})
	if err != nil {
		log.WithError(err).WithField("action", string(actionType)).Warn("gamification: record action failed")
		return nil
	}

	result, stale := s.reconcile(gen, actionType, resp)
	if stale {
		return result
	}
	s.announce(actionType, result)
	s.remember(ctx, actionType, entityType, entityID, description, result)
	return result
}

// reconcile installs the backend's view of XP, level and achievements. It
// reports stale=true when a logout happened while the call was in flight.
func (s *Service) reconcile(gen uint64, actionType ActionType, resp *api.ActionResponse) (*ActionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	xp, level := prev.TotalXP(), prev.Level()
	if resp.TotalXP != nil {
		xp = max(0, *resp.TotalXP)
	}
	if resp.Level != nil {
		level = max(0, *resp.Level)
	}
	incoming := achievementsFrom(resp.NewAchievements)
	result := &ActionResult{
		ActionType:      actionType,
		XPEarned:        resp.XPEarned,
		TotalXP:         xp,
		Level:           level,
		LevelName:       s.levels.Name(level),
		LevelUp:         resp.LevelUp,
		NewAchievements: incoming,
	}
	if gen != s.generation {
		return result, true
	}

	next := *prev
	if xp != prev.TotalXP() || level != prev.Level() {
		p := UserProfile{}
		if prev.Profile != nil {
			p = *prev.Profile
		}
		p.TotalXP = xp
		p.CurrentLevel = level
		p.LastUpdated = s.now()
		next.Profile = &p

		st := Stats{}
		if prev.Stats != nil {
			st = *prev.Stats
		}
		st.TotalXP = xp
		st.CurrentLevel = level
		next.Stats = &st
	}
	if len(incoming) > 0 {
		next.Achievements = mergeAchievements(prev.Achievements, incoming)
	}
	next.RefreshTrigger++
	s.state = &next
	return result, false
}

func (s *Service) bumpLocked() {
	next := *s.state
	next.RefreshTrigger++
	s.state = &next
}

func (s *Service) announce(actionType ActionType, r *ActionResult) {
	if s.notifier == nil {
		return
	}
	if r.XPEarned > 0 && actionType.notifiesXP() {
		s.notifier.Show(notify.Notification{
			Kind:    notify.KindXPGained,
			Title:   fmt.Sprintf("+%d XP", r.XPEarned),
			Message: fmt.Sprintf("%d XP total", r.TotalXP),
			XP:      r.XPEarned,
		})
	}
	if r.LevelUp {
		s.notifier.Show(notify.Notification{
			Kind:      notify.KindLevelUp,
			Title:     "Level up!",
			Message:   fmt.Sprintf("You reached level %d: %s", r.Level, r.LevelName),
			Level:     r.Level,
			LevelName: r.LevelName,
		})
	}
	for _, a := range r.NewAchievements {
		s.notifier.Show(notify.Notification{
			Kind:          notify.KindAchievementUnlocked,
			Title:         "Achievement unlocked",
			Message:       fmt.Sprintf("%s %s", a.Icon(), a.Name),
			AchievementID: a.ID,
		})
	}
}

func (s *Service) remember(ctx context.Context, actionType ActionType, entityType, entityID, description string, r *ActionResult) {
	if s.history == nil {
		return
	}
	_, err := s.history.Insert(ctx, storage.ActionRecord{
		ActionType:  string(actionType),
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		XPEarned:    r.XPEarned,
		TotalXP:     r.TotalXP,
		LevelAfter:  r.Level,
		LevelUp:     r.LevelUp,
		RecordedAt:  s.now(),
	})
	if err != nil {
		log.WithError(err).Warn("gamification: append action history failed")
	}
}
