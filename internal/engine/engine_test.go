package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"finquest/internal/api"
	"finquest/internal/notify"
	"finquest/internal/storage"
)

type fakeBackend struct {
	mu sync.Mutex

	profile      *api.GamificationProfile
	stats        *api.GamificationStats
	achievements []api.Achievement
	features     *api.FeaturesResponse
	achErr       error

	actionResp *api.ActionResponse
	actionErr  error
	// gate, when set, holds RecordAction until closed; entered is signalled
	// first.
	gate    chan struct{}
	entered chan struct{}

	actions      []api.ActionRequest
	profileLoads int
}

func (f *fakeBackend) GamificationProfile(context.Context) (*api.GamificationProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileLoads++
	if f.profile == nil {
		return nil, errors.New("no profile")
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeBackend) GamificationStats(context.Context) (*api.GamificationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stats == nil {
		return nil, errors.New("no stats")
	}
	return f.stats, nil
}

func (f *fakeBackend) Achievements(context.Context) ([]api.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.achievements, f.achErr
}

func (f *fakeBackend) Features(context.Context) (*api.FeaturesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.features == nil {
		return nil, errors.New("no features")
	}
	return f.features, nil
}

func (f *fakeBackend) RecordAction(_ context.Context, req api.ActionRequest) (*api.ActionResponse, error) {
	f.mu.Lock()
	f.actions = append(f.actions, req)
	gate, entered := f.gate, f.entered
	resp, err := f.actionResp, f.actionErr
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return resp, err
}

func (f *fakeBackend) actionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

type recorder struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recorder) Show(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.items...)
}

func newTestHistory(t *testing.T) *storage.ActionLogRepo {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewActionLogRepo(db)
}

func intp(v int) *int { return &v }

func withProfile(svc *Service, level, xp int) {
	svc.state = &State{Profile: &UserProfile{ID: "p-1", UserID: "u-1", TotalXP: xp, CurrentLevel: level}}
}

func TestLevelTableBoundaries(t *testing.T) {
	levels := DefaultLevels()
	if levels.Max() != 10 {
		t.Fatalf("Max()=%d, want 10", levels.Max())
	}
	if got := levels.LevelForTotalXP(0); got != 1 {
		t.Fatalf("LevelForTotalXP(0)=%d, want 1", got)
	}
	if got := levels.LevelForTotalXP(199); got != 2 {
		t.Fatalf("LevelForTotalXP(199)=%d, want 2", got)
	}
	if got := levels.LevelForTotalXP(200); got != 3 {
		t.Fatalf("LevelForTotalXP(200)=%d, want 3", got)
	}
	if got := levels.LevelForTotalXP(1_000_000); got != 10 {
		t.Fatalf("LevelForTotalXP(huge)=%d, want 10", got)
	}
	if levels.Name(0) != levels.Name(1) {
		t.Fatalf("level 0 should display as level 1")
	}
	if got := levels.Name(42); got != "Level 42" {
		t.Fatalf("Name(42)=%q", got)
	}
}

func TestLevelProgress(t *testing.T) {
	levels := DefaultLevels()
	p := levels.Progress(2, 150)
	if p.Current.Level != 2 || p.Next == nil || p.Next.Level != 3 {
		t.Fatalf("progress=%+v", p)
	}
	if p.XPIntoLevel != 50 || p.XPToNext != 50 || p.Percent != 50 {
		t.Fatalf("progress=%+v, want halfway through level 2", p)
	}
	top := levels.Progress(10, 9999)
	if top.Next != nil || top.Percent != 100 {
		t.Fatalf("top progress=%+v", top)
	}
}

func TestParseLevelTableRejectsGaps(t *testing.T) {
	raw := []byte("levels:\n  - {level: 1, name: A, min_xp: 0}\n  - {level: 3, name: C, min_xp: 10}\n")
	if _, err := ParseLevelTable(raw); err == nil {
		t.Fatalf("expected error for missing level 2")
	}
	raw = []byte("levels:\n  - {level: 1, name: A, min_xp: 0}\n  - {level: 2, name: B, min_xp: -5}\n")
	if _, err := ParseLevelTable(raw); err == nil {
		t.Fatalf("expected error for decreasing min_xp")
	}
}

func TestLocalGateFallback(t *testing.T) {
	svc := NewService(&fakeBackend{}, Options{})
	withProfile(svc, 2, 150)

	if svc.IsFeatureUnlocked(FeatureSavingsGoals) {
		t.Fatalf("SAVINGS_GOALS should be locked at level 2")
	}
	access := svc.GetFeatureAccess(FeatureSavingsGoals)
	if access.Unlocked || access.RequiredLevel != 3 || access.UserLevel != 2 || access.XPNeeded != 50 {
		t.Fatalf("access=%+v, want locked with 50 XP needed", access)
	}
	var gate GateError
	if err := svc.RequireFeature(FeatureSavingsGoals); !errors.As(err, &gate) || gate.RequiredLevel != 3 {
		t.Fatalf("RequireFeature err=%v", err)
	}

	withProfile(svc, 3, 200)
	if !svc.IsFeatureUnlocked(FeatureSavingsGoals) {
		t.Fatalf("SAVINGS_GOALS should unlock at level 3")
	}
	if !svc.IsFeatureUnlocked("UNRELEASED_FEATURE") {
		t.Fatalf("unknown features must unlock")
	}
}

func TestBackendFeatureDataIsAuthoritative(t *testing.T) {
	svc := NewService(&fakeBackend{}, Options{})
	trialEnds := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	svc.state = &State{
		Profile: &UserProfile{TotalXP: 5000, CurrentLevel: 10},
		Features: featureStateFrom(&api.FeaturesResponse{
			UnlockedFeatures: []string{FeatureSavingsGoals},
			LockedFeatures: []api.LockedFeature{
				{FeatureKey: FeatureBudgets, RequiredLevel: 12, UserLevel: 4, XPNeeded: 77},
				{FeatureKey: FeatureAIInsights, RequiredLevel: 7, UserLevel: 4, XPNeeded: 300, TrialActive: true, TrialEndsAt: &trialEnds},
			},
		}),
	}

	// Locally level 10 would unlock BUDGETS; the backend says otherwise.
	budgets := svc.GetFeatureAccess(FeatureBudgets)
	if budgets.Unlocked || budgets.RequiredLevel != 12 || budgets.UserLevel != 4 || budgets.XPNeeded != 77 || !budgets.FromBackend {
		t.Fatalf("budgets=%+v, want backend record verbatim", budgets)
	}
	ai := svc.GetFeatureAccess(FeatureAIInsights)
	if !ai.Unlocked || !ai.TrialActive || ai.TrialEndsAt == nil || !ai.TrialEndsAt.Equal(trialEnds) {
		t.Fatalf("ai=%+v, want trial unlock", ai)
	}
	if !svc.IsFeatureUnlocked(FeatureSavingsGoals) {
		t.Fatalf("backend-unlocked feature reported locked")
	}

	svc.state = &State{
		Profile:  &UserProfile{TotalXP: 0, CurrentLevel: 0},
		Features: featureStateFrom(&api.FeaturesResponse{UnlockedFeatures: []string{FeatureAIInsights}}),
	}
	if !svc.IsFeatureUnlocked(FeatureAIInsights) {
		t.Fatalf("backend unlock must win over level 0")
	}
	// Not mentioned by the backend: local table decides.
	if svc.IsFeatureUnlocked(FeatureBudgets) {
		t.Fatalf("BUDGETS should fall back to the local table")
	}
}

// newActionServer serves POST /gamification/actions with a fixed body and
// records request payloads.
func newActionServer(t *testing.T, body string, got *[]map[string]any) *api.Client {
	t.Helper()
	r := chi.NewRouter()
	var mu sync.Mutex
	r.Post("/gamification/actions", func(w http.ResponseWriter, req *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		*got = append(*got, payload)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, srv.Client())
}

func TestRecordActionLevelUpScenario(t *testing.T) {
	var payloads []map[string]any
	client := newActionServer(t, `{"total_xp":210,"current_level":3,"xp_earned":10,"level_up":true}`, &payloads)
	notes := &recorder{}
	history := newTestHistory(t)
	svc := NewService(client, Options{Notifier: notes, History: history})
	withProfile(svc, 2, 200)

	res := svc.RecordAction(context.Background(), ActionCreateExpense, "expense", "e1", "test")
	if res == nil {
		t.Fatalf("RecordAction returned nil")
	}
	if res.TotalXP != 210 || res.Level != 3 || !res.LevelUp || res.XPEarned != 10 {
		t.Fatalf("result=%+v", res)
	}

	if len(payloads) != 1 {
		t.Fatalf("payloads=%d, want 1", len(payloads))
	}
	p := payloads[0]
	if p["action_type"] != "create_expense" || p["entity_type"] != "expense" || p["entity_id"] != "e1" || p["description"] != "test" {
		t.Fatalf("payload=%v", p)
	}
	if _, ok := p["user_id"]; ok || len(p) != 4 {
		t.Fatalf("payload carries extra fields: %v", p)
	}

	got := notes.all()
	if len(got) != 2 {
		t.Fatalf("notifications=%+v, want xp + level up", got)
	}
	if got[0].Kind != notify.KindXPGained || got[0].XP != 10 {
		t.Fatalf("first notification=%+v", got[0])
	}
	if got[1].Kind != notify.KindLevelUp || got[1].LevelName != DefaultLevels().Name(3) {
		t.Fatalf("second notification=%+v", got[1])
	}

	st := svc.Snapshot()
	if st.TotalXP() != 210 || st.Level() != 3 || st.Stats == nil || st.Stats.TotalXP != 210 {
		t.Fatalf("state not reconciled: profile=%+v stats=%+v", st.Profile, st.Stats)
	}

	recs, err := history.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 1 || recs[0].XPEarned != 10 || recs[0].LevelAfter != 3 || !recs[0].LevelUp {
		t.Fatalf("history=%+v", recs)
	}
}

func TestRecordActionNewLevelAlias(t *testing.T) {
	var payloads []map[string]any
	client := newActionServer(t, `{"data":{"total_xp":120,"new_level":2,"xp_earned":20}}`, &payloads)
	svc := NewService(client, Options{})
	withProfile(svc, 1, 100)

	res := svc.RecordAction(context.Background(), ActionCreateIncome, "income", "i1", "salary")
	if res == nil || res.Level != 2 || svc.Snapshot().Level() != 2 {
		t.Fatalf("result=%+v level=%d, want new_level used", res, svc.Snapshot().Level())
	}
}

func TestRecordActionDeduplicatesInFlight(t *testing.T) {
	backend := &fakeBackend{
		actionResp: &api.ActionResponse{XPEarned: 5, TotalXP: intp(105), Level: intp(2)},
		gate:       make(chan struct{}),
		entered:    make(chan struct{}, 1),
	}
	svc := NewService(backend, Options{})
	withProfile(svc, 2, 100)
	ctx := context.Background()

	done := make(chan *ActionResult, 1)
	go func() {
		done <- svc.RecordAction(ctx, ActionDailyLogin, "user", "u-1", "Daily login")
	}()
	<-backend.entered

	before := svc.Snapshot().RefreshTrigger
	if res := svc.RecordAction(ctx, ActionDailyLogin, "user", "u-1", "Daily login"); res != nil {
		t.Fatalf("duplicate call returned %+v, want nil", res)
	}
	if backend.actionCount() != 1 {
		t.Fatalf("network calls=%d, want 1", backend.actionCount())
	}
	if svc.Snapshot().RefreshTrigger != before+1 {
		t.Fatalf("duplicate should still bump the refresh trigger")
	}

	close(backend.gate)
	if res := <-done; res == nil || res.TotalXP != 105 {
		t.Fatalf("first call result=%+v", res)
	}

	// The key is released after completion.
	backend.mu.Lock()
	backend.gate, backend.entered = nil, nil
	backend.mu.Unlock()
	if res := svc.RecordAction(ctx, ActionDailyLogin, "user", "u-1", "Daily login"); res == nil {
		t.Fatalf("call after completion should go through")
	}
	if backend.actionCount() != 2 {
		t.Fatalf("network calls=%d, want 2", backend.actionCount())
	}
}

func TestRecordActionFailureReleasesKey(t *testing.T) {
	backend := &fakeBackend{actionErr: &api.Error{Status: 500, Message: "boom"}}
	notes := &recorder{}
	svc := NewService(backend, Options{Notifier: notes})
	withProfile(svc, 1, 0)
	ctx := context.Background()
	before := svc.Snapshot()

	if res := svc.RecordAction(ctx, ActionCreateBudget, "budget", "b1", "groceries"); res != nil {
		t.Fatalf("failed call returned %+v", res)
	}
	if svc.Snapshot() != before {
		t.Fatalf("failure must not change state")
	}
	if len(notes.all()) != 0 {
		t.Fatalf("failure must not notify")
	}

	backend.mu.Lock()
	backend.actionErr = nil
	backend.actionResp = &api.ActionResponse{XPEarned: 15, TotalXP: intp(15), Level: intp(1)}
	backend.mu.Unlock()
	if res := svc.RecordAction(ctx, ActionCreateBudget, "budget", "b1", "groceries"); res == nil {
		t.Fatalf("retry after failure should reach the backend")
	}
}

func TestIdenticalValuesKeepProfile(t *testing.T) {
	backend := &fakeBackend{actionResp: &api.ActionResponse{XPEarned: 0, TotalXP: intp(150), Level: intp(2)}}
	notes := &recorder{}
	svc := NewService(backend, Options{Notifier: notes})
	withProfile(svc, 2, 150)
	svc.state.Stats = &Stats{TotalXP: 150, CurrentLevel: 2}
	profile, stats := svc.state.Profile, svc.state.Stats

	if res := svc.RecordAction(context.Background(), ActionViewDashboard, "dashboard", "main", "viewed"); res == nil {
		t.Fatalf("RecordAction returned nil")
	}
	st := svc.Snapshot()
	if st.Profile != profile || st.Stats != stats {
		t.Fatalf("identical values must keep the same profile and stats")
	}
	if len(notes.all()) != 0 {
		t.Fatalf("zero XP must not notify: %+v", notes.all())
	}
}

func TestViewInsightIsSilent(t *testing.T) {
	backend := &fakeBackend{actionResp: &api.ActionResponse{
		XPEarned: 5,
		TotalXP:  intp(55),
		NewAchievements: []api.Achievement{
			{ID: "a-1", Type: "insight_master", Name: "Insight Master", Progress: 1, Target: 1},
		},
	}}
	notes := &recorder{}
	svc := NewService(backend, Options{Notifier: notes})
	withProfile(svc, 1, 50)
	svc.state.Achievements = []Achievement{{ID: "a-1", Name: "Insight Master", Target: 1}, {ID: "a-2", Name: "Other"}}

	res := svc.RecordAction(context.Background(), ActionViewInsight, "insight", "x", "opened")
	if res == nil || res.Level != 1 {
		t.Fatalf("result=%+v, want previous level kept", res)
	}
	got := notes.all()
	if len(got) != 1 || got[0].Kind != notify.KindAchievementUnlocked || got[0].AchievementID != "a-1" {
		t.Fatalf("notifications=%+v, want only the achievement", got)
	}
	ach := svc.Snapshot().Achievements
	if len(ach) != 2 || !ach[0].Completed() {
		t.Fatalf("achievements=%+v, want a-1 merged in place", ach)
	}
}

func TestLoadProfileToleratesPartialFailure(t *testing.T) {
	backend := &fakeBackend{
		profile:    &api.GamificationProfile{ID: "p-1", UserID: "u-1", TotalXP: 150, CurrentLevel: 2},
		achErr:     errors.New("achievements down"),
		features:   &api.FeaturesResponse{UnlockedFeatures: []string{FeatureBudgets}},
		actionResp: &api.ActionResponse{XPEarned: 5, TotalXP: intp(155), Level: intp(2)},
	}
	svc := NewService(backend, Options{})

	if err := svc.LoadProfile(context.Background()); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	svc.Wait()

	st := svc.Snapshot()
	if !st.Loaded() || st.Stats != nil || len(st.Achievements) != 0 {
		t.Fatalf("state=%+v", st)
	}
	if !svc.IsFeatureUnlocked(FeatureBudgets) {
		t.Fatalf("features slice should have loaded")
	}
	if backend.actionCount() != 1 || backend.actions[0].ActionType != string(ActionDailyLogin) || backend.actions[0].EntityID != "u-1" {
		t.Fatalf("daily login actions=%+v", backend.actions)
	}
	if st.TotalXP() != 155 {
		t.Fatalf("daily login XP not reconciled: %d", st.TotalXP())
	}
}

func TestRefreshDataIsRateLimited(t *testing.T) {
	backend := &fakeBackend{
		profile:   &api.GamificationProfile{TotalXP: 10, CurrentLevel: 1},
		actionErr: errors.New("daily login already awarded"),
	}
	svc := NewService(backend, Options{})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	if err := svc.RefreshData(ctx); err != nil {
		t.Fatalf("RefreshData: %v", err)
	}
	now = now.Add(10 * time.Second)
	if err := svc.RefreshData(ctx); err != nil {
		t.Fatalf("RefreshData: %v", err)
	}
	now = now.Add(25 * time.Second)
	if err := svc.RefreshData(ctx); err != nil {
		t.Fatalf("RefreshData: %v", err)
	}
	svc.Wait()

	backend.mu.Lock()
	loads := backend.profileLoads
	backend.mu.Unlock()
	if loads != 2 {
		t.Fatalf("profile loads=%d, want 2", loads)
	}
}

func TestLogoutClearsStateAndHistory(t *testing.T) {
	ctx := context.Background()
	history := newTestHistory(t)
	backend := &fakeBackend{actionResp: &api.ActionResponse{XPEarned: 10, TotalXP: intp(60), Level: intp(1)}}
	svc := NewService(backend, Options{History: history})
	withProfile(svc, 1, 50)

	if res := svc.RecordAction(ctx, ActionCreateExpense, "expense", "e9", "coffee"); res == nil {
		t.Fatalf("RecordAction returned nil")
	}
	svc.HandleAuthChange(ctx, false)

	st := svc.Snapshot()
	if st.Profile != nil || st.Loaded() || len(st.Achievements) != 0 {
		t.Fatalf("state not cleared: %+v", st)
	}
	recs, err := history.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("history not cleared: %+v", recs)
	}
}

func TestHandleAuthChangeLoadsInBackground(t *testing.T) {
	backend := &fakeBackend{
		profile:   &api.GamificationProfile{TotalXP: 300, CurrentLevel: 3},
		actionErr: errors.New("skip"),
	}
	svc := NewService(backend, Options{})
	svc.HandleAuthChange(context.Background(), true)
	svc.Wait()
	if svc.Snapshot().Level() != 3 {
		t.Fatalf("profile not loaded after auth change")
	}
}

func TestMergeAchievementsByID(t *testing.T) {
	current := []Achievement{{ID: "a", Progress: 1, Target: 3}, {ID: "b"}}
	merged := mergeAchievements(current, []Achievement{{ID: "a", Progress: 3, Target: 3}, {ID: "c"}})
	if len(merged) != 3 || merged[0].Progress != 3 || merged[2].ID != "c" {
		t.Fatalf("merged=%+v", merged)
	}
	if current[0].Progress != 1 {
		t.Fatalf("input slice was modified")
	}
	if CountCompleted(merged) != 1 {
		t.Fatalf("CountCompleted=%d, want 1", CountCompleted(merged))
	}
}

func TestLoadProfileTreatsNonJSONProfileAsFailed(t *testing.T) {
	var mu sync.Mutex
	actions := 0
	r := chi.NewRouter()
	r.Get("/gamification/profile", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>not the api</body></html>"))
	})
	r.Get("/gamification/features", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unlocked_features":["SAVINGS_GOALS"],"locked_features":[]}`))
	})
	r.Post("/gamification/actions", func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		actions++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"xp_earned":5}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	svc := NewService(api.NewClient(srv.URL, srv.Client()), Options{})

	if err := svc.LoadProfile(context.Background()); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	svc.Wait()

	st := svc.Snapshot()
	if st.Profile != nil || st.Loaded() {
		t.Fatalf("HTML profile was installed: %+v", st)
	}
	if !svc.IsFeatureUnlocked(FeatureSavingsGoals) {
		t.Fatalf("features slice should still load")
	}
	mu.Lock()
	defer mu.Unlock()
	if actions != 0 {
		t.Fatalf("daily login sent %d times after a failed profile fetch", actions)
	}
}

func TestLoadProfileStopsOnCancel(t *testing.T) {
	backend := &fakeBackend{
		profile:    &api.GamificationProfile{UserID: "u-1", TotalXP: 150, CurrentLevel: 2},
		actionResp: &api.ActionResponse{XPEarned: 5},
	}
	svc := NewService(backend, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.LoadProfile(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	svc.Wait()
	if svc.Snapshot().Loaded() {
		t.Fatalf("cancelled load marked the state loaded")
	}
	if backend.actionCount() != 0 {
		t.Fatalf("daily login sent after a cancelled load")
	}
}
