package engine

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"finquest/internal/api"
	"finquest/internal/notify"
	"finquest/internal/storage"
)

// DefaultRefreshInterval rate-limits RefreshData.
const DefaultRefreshInterval = 30 * time.Second

// Backend is the gamification slice of the REST adapter. *api.Client
// satisfies it.
type Backend interface {
	GamificationProfile(ctx context.Context) (*api.GamificationProfile, error)
	GamificationStats(ctx context.Context) (*api.GamificationStats, error)
	Achievements(ctx context.Context) ([]api.Achievement, error)
	Features(ctx context.Context) (*api.FeaturesResponse, error)
	RecordAction(ctx context.Context, req api.ActionRequest) (*api.ActionResponse, error)
}

// Notifier receives user-facing events. *notify.Queue satisfies it.
type Notifier interface {
	Show(n notify.Notification)
}

// History keeps a local log of awarded actions. *storage.ActionLogRepo
// satisfies it.
type History interface {
	Insert(ctx context.Context, rec storage.ActionRecord) (int64, error)
	Clear(ctx context.Context) error
}

type Options struct {
	Levels          *LevelTable
	Features        FeatureTable
	Notifier        Notifier
	History         History
	RefreshInterval time.Duration
}

type Service struct {
	backend         Backend
	levels          *LevelTable
	features        FeatureTable
	notifier        Notifier
	history         History
	refreshInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	state   *State
	pending map[string]struct{}
	// generation changes on Clear so results from before a logout are dropped.
	generation uint64

	bg sync.WaitGroup
}

func NewService(backend Backend, opts Options) *Service {
	s := &Service{
		backend:         backend,
		levels:          opts.Levels,
		features:        opts.Features,
		notifier:        opts.Notifier,
		history:         opts.History,
		refreshInterval: opts.RefreshInterval,
		now:             time.Now,
		state:           &State{},
		pending:         map[string]struct{}{},
	}
	if s.levels == nil {
		s.levels = DefaultLevels()
	}
	if s.features == nil {
		s.features = DefaultFeatures()
	}
	if s.refreshInterval <= 0 {
		s.refreshInterval = DefaultRefreshInterval
	}
	return s
}

func (s *Service) Levels() *LevelTable { return s.levels }

// Snapshot returns the current state. Callers must treat it as read-only.
func (s *Service) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress reports level progress for the cached profile.
func (s *Service) Progress() LevelProgress {
	st := s.Snapshot()
	return s.levels.Progress(st.Level(), st.TotalXP())
}

// HandleAuthChange loads state in the background when a session becomes
// authenticated and clears it when the session ends.
func (s *Service) HandleAuthChange(ctx context.Context, authenticated bool) {
	if !authenticated {
		s.Clear(ctx)
		return
	}
	s.goBackground(func() {
		if err := s.RefreshData(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("gamification: load after login failed")
		}
	})
}

// Wait blocks until background work (loads, daily login) has finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

func (s *Service) goBackground(fn func()) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn()
	}()
}

// fetch runs one slice of LoadProfile on g. A backend failure is logged and
// leaves *dst untouched; only cancellation fails the group and stops the
// remaining fetches.
func fetch[T any](ctx context.Context, g *errgroup.Group, what string, call func(context.Context) (T, error), dst *T) {
	g.Go(func() error {
		v, err := call(ctx)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			log.WithError(err).Warnf("gamification: load %s failed", what)
			return nil
		}
		*dst = v
		return nil
	})
}

// LoadProfile fetches profile, achievements, stats and features
// concurrently. A failed fetch leaves that slice empty and is logged; only a
// cancelled ctx is returned as an error.
func (s *Service) LoadProfile(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	var (
		profile      *api.GamificationProfile
		stats        *api.GamificationStats
		achievements []api.Achievement
		features     *api.FeaturesResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	fetch(gctx, g, "profile", s.backend.GamificationProfile, &profile)
	fetch(gctx, g, "achievements", s.backend.Achievements, &achievements)
	fetch(gctx, g, "stats", s.backend.GamificationStats, &stats)
	fetch(gctx, g, "features", s.backend.Features, &features)
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debug("gamification: discarding load that raced a logout")
		return nil
	}
	prev := s.state
	next := &State{
		Achievements:   achievementsFrom(achievements),
		LastLoaded:     prev.LastLoaded,
		RefreshTrigger: prev.RefreshTrigger + 1,
	}
	if profile != nil {
		next.Profile = &UserProfile{
			ID:           profile.ID,
			UserID:       profile.UserID,
			TotalXP:      max(0, profile.TotalXP),
			CurrentLevel: max(0, profile.CurrentLevel),
			LastUpdated:  profile.LastUpdated,
		}
		next.LastLoaded = s.now()
	}
	if stats != nil {
		next.Stats = &Stats{
			TotalXP:               stats.TotalXP,
			CurrentLevel:          stats.CurrentLevel,
			XPToNextLevel:         stats.XPToNextLevel,
			ProgressPercent:       stats.ProgressPercent,
			CompletedAchievements: stats.CompletedAchievements,
			TotalAchievements:     stats.TotalAchievements,
			CurrentStreak:         stats.CurrentStreak,
			TotalActions:          stats.TotalActions,
		}
	}
	if features != nil {
		next.Features = featureStateFrom(features)
	}
	s.state = next
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"level":        next.Level(),
		"total_xp":     next.TotalXP(),
		"achievements": len(next.Achievements),
	}).Debug("gamification: profile loaded")

	if profile == nil {
		return nil
	}
	entityID := profile.UserID
	if entityID == "" {
		entityID = profile.ID
	}
	s.goBackground(func() {
		bg := context.WithoutCancel(ctx)
		if res := s.RecordAction(bg, ActionDailyLogin, "user", entityID, "Daily login"); res == nil {
			log.Debug("gamification: daily login not awarded")
		}
	})
	return nil
}

// RefreshData reloads unless the last successful load is recent.
func (s *Service) RefreshData(ctx context.Context) error {
	st := s.Snapshot()
	if st.Loaded() && s.now().Sub(st.LastLoaded) < s.refreshInterval {
		return nil
	}
	return s.LoadProfile(ctx)
}

// Clear drops all cached state and the local action history.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.state = &State{RefreshTrigger: s.state.RefreshTrigger + 1}
	s.pending = map[string]struct{}{}
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.Clear(ctx); err != nil {
			log.WithError(err).Warn("gamification: clear action history failed")
		}
	}
}
