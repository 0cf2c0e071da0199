package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"finquest/internal/api"
	"finquest/internal/credstore"
	"finquest/internal/storage"
)

type fakeBackend struct {
	mu sync.Mutex

	loginResp   *api.AuthResponse
	loginErr    error
	refreshResp *api.AuthResponse
	refreshErr  error
	logoutErr   error
	requires2FA bool
	enabledCode string

	calls map[string]int
	last  api.LoginRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Login(_ context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	f.hit("login")
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) Register(_ context.Context, _ api.RegisterRequest) (*api.AuthResponse, error) {
	f.hit("register")
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) Refresh(_ context.Context, token string) (*api.AuthResponse, error) {
	f.hit("refresh")
	return f.refreshResp, f.refreshErr
}

func (f *fakeBackend) Logout(context.Context) error {
	f.hit("logout")
	return f.logoutErr
}

func (f *fakeBackend) Profile(context.Context) (*api.User, error) {
	f.hit("profile")
	return &api.User{ID: "u-1", Email: "alice@example.com"}, nil
}

func (f *fakeBackend) ChangePassword(context.Context, api.ChangePasswordRequest) error {
	f.hit("change_password")
	return nil
}

func (f *fakeBackend) Setup2FA(context.Context) (*api.TwoFASetup, error) {
	f.hit("setup_2fa")
	return &api.TwoFASetup{Secret: "JBSWY3DPEHPK3PXP", QRCode: "data:image/png;base64,AAAA", BackupCodes: []string{"a1", "b2"}}, nil
}

func (f *fakeBackend) Enable2FA(_ context.Context, code string) error {
	f.hit("enable_2fa")
	f.mu.Lock()
	f.enabledCode = code
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Check2FA(context.Context, string, string) (bool, error) {
	f.hit("check_2fa")
	return f.requires2FA, nil
}

func newTestStore(t *testing.T) *credstore.Store {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "fq.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return credstore.New(storage.NewKVRepo(db))
}

func authResponse(token string, ttl time.Duration) *api.AuthResponse {
	return &api.AuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl).Truncate(time.Second),
		User:      api.User{ID: "u-1", Email: "alice@example.com", FirstName: "Alice"},
	}
}

func TestLoginStoresSessionAndHeaders(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	store := newTestStore(t)
	s := NewSession(backend, store)

	var states []State
	s.Subscribe(func(snap Snapshot) { states = append(states, snap.State) })

	if err := s.Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22", TwoFactorCode: "123456"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if backend.last.TwoFactorCode != "123456" {
		t.Fatalf("two factor code not forwarded: %+v", backend.last)
	}
	if len(states) != 2 || states[0] != StateLoading || states[1] != StateAuthenticated {
		t.Fatalf("states=%v, want [loading authenticated]", states)
	}
	if !s.IsInitialized() {
		t.Fatalf("session should be initialized after login")
	}

	h := s.AuthHeaders(ctx)
	if h["Authorization"] != "Bearer tok-1" || h["X-Caller-ID"] != "u-1" {
		t.Fatalf("headers=%v", h)
	}

	if tok, ok := store.GetToken(ctx); !ok || tok != "tok-1" {
		t.Fatalf("stored token=%q ok=%v", tok, ok)
	}
	user, ok := store.GetUser(ctx)
	if !ok {
		t.Fatalf("user not cached")
	}
	if email := user.String("email"); email == "alice@example.com" || !strings.Contains(email, "***@example.com") {
		t.Fatalf("cached email not masked: %q", email)
	}
}

func TestLoginValidationSkipsBackend(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, newTestStore(t))

	err := s.Login(context.Background(), Credentials{Email: "not-an-email", Password: "", TwoFactorCode: "12ab"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v, want *ValidationError", err)
	}
	for _, field := range []string{"email", "password", "two_factor_code"} {
		if verr.Fields[field] == "" {
			t.Fatalf("missing message for %s: %v", field, verr.Fields)
		}
	}
	if backend.count("login") != 0 {
		t.Fatalf("backend should not be called on invalid input")
	}
}

func TestLoginFailureLeavesUnauthenticated(t *testing.T) {
	backend := newFakeBackend()
	backend.loginErr = &api.Error{Status: 401, Message: "invalid credentials"}
	s := NewSession(backend, newTestStore(t))

	err := s.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "wrong-password"})
	if !api.IsUnauthorized(err) {
		t.Fatalf("err=%v, want wrapped 401", err)
	}
	snap := s.Snapshot()
	if snap.State != StateUnauthenticated || snap.Err == nil {
		t.Fatalf("snapshot=%+v", snap)
	}
	if len(s.AuthHeaders(context.Background())) != 0 {
		t.Fatalf("no headers expected after failed login")
	}
}

func TestRegisterRequiresLongPassword(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, newTestStore(t))
	err := s.Register(context.Background(), Registration{Email: "bob@example.com", Password: "short"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !strings.Contains(verr.Fields["password"], "8") {
		t.Fatalf("err=%v, want password length error", err)
	}
	if backend.count("register") != 0 {
		t.Fatalf("backend should not be called")
	}
}

func TestInitializeRestoresValidSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	if err := NewSession(backend, store).Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	restored := NewSession(backend, store)
	if restored.IsInitialized() {
		t.Fatalf("fresh session reports initialized")
	}
	if err := restored.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	snap := restored.Snapshot()
	if snap.State != StateAuthenticated || !snap.Initialized || snap.User.ID() != "u-1" {
		t.Fatalf("snapshot=%+v", snap)
	}
	if backend.count("refresh") != 0 {
		t.Fatalf("valid token should not be refreshed")
	}
}

func TestInitializeRefreshesNearExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-old", 2*time.Minute)
	backend.refreshResp = authResponse("tok-new", time.Hour)
	if err := NewSession(backend, store).Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	s := NewSession(backend, store)
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if backend.count("refresh") != 1 {
		t.Fatalf("refresh calls=%d, want 1", backend.count("refresh"))
	}
	if h := s.AuthHeaders(ctx); h["Authorization"] != "Bearer tok-new" {
		t.Fatalf("headers=%v", h)
	}
}

func TestRefreshFailureLogsOut(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	backend.refreshErr = &api.Error{Status: 401, Message: "expired"}
	s := NewSession(backend, store)
	if err := s.Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := s.RefreshToken(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	if s.Snapshot().State != StateUnauthenticated {
		t.Fatalf("state=%v, want unauthenticated", s.Snapshot().State)
	}
	if store.HasToken(ctx) {
		t.Fatalf("token should be cleared after failed refresh")
	}
}

func TestLogoutIgnoresBackendError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	backend.logoutErr = errors.New("network down")
	s := NewSession(backend, store)
	if err := s.Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	s.Logout(ctx)
	if backend.count("logout") != 1 {
		t.Fatalf("backend logout not attempted")
	}
	if store.HasToken(ctx) {
		t.Fatalf("token still stored")
	}
	if _, ok := store.GetUser(ctx); ok {
		t.Fatalf("user still cached")
	}
	if s.Snapshot().State != StateUnauthenticated || len(s.AuthHeaders(ctx)) != 0 {
		t.Fatalf("session not reset: %+v", s.Snapshot())
	}
}

func TestIsTokenValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"well ahead", now.Add(time.Hour), true},
		{"just past margin", now.Add(301 * time.Second), true},
		{"at margin", now.Add(300 * time.Second), false},
		{"expired", now.Add(-time.Minute), false},
		{"unknown", time.Time{}, false},
	}
	for _, tc := range cases {
		if got := IsTokenValid(tc.expiresAt, now); got != tc.want {
			t.Fatalf("%s: IsTokenValid=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHeadersEmptyInsideRefreshMargin(t *testing.T) {
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", 4*time.Minute)
	s := NewSession(backend, newTestStore(t))
	if err := s.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if h := s.AuthHeaders(context.Background()); len(h) != 0 {
		t.Fatalf("headers=%v, want none", h)
	}
}

func TestChangePasswordValidation(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	s := NewSession(backend, newTestStore(t))

	if err := s.ChangePassword(ctx, "old-password", "old-password"); err == nil {
		t.Fatalf("expected error for unchanged password")
	}
	var verr *ValidationError
	if err := s.ChangePassword(ctx, "old-password", "short"); !errors.As(err, &verr) || verr.Fields["new_password"] == "" {
		t.Fatalf("err=%v, want new_password error", err)
	}
	if err := s.ChangePassword(ctx, "old-password", "brand-new-password"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err=%v, want ErrNotAuthenticated", err)
	}

	if err := s.Login(ctx, Credentials{Email: "alice@example.com", Password: "old-password"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := s.ChangePassword(ctx, "old-password", "brand-new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if backend.count("change_password") != 1 {
		t.Fatalf("backend not called")
	}
}

func TestTwoFactorFlow(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	backend.requires2FA = true
	s := NewSession(backend, newTestStore(t))

	required, err := s.Check2FA(ctx, "alice@example.com", "hunter22")
	if err != nil || !required {
		t.Fatalf("Check2FA=%v,%v", required, err)
	}
	if _, err := s.Setup2FA(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Setup2FA before login err=%v", err)
	}
	if err := s.Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	prov, err := s.Setup2FA(ctx)
	if err != nil {
		t.Fatalf("Setup2FA: %v", err)
	}
	if prov.Secret != "JBSWY3DPEHPK3PXP" || prov.Issuer != issuer || prov.Digits != 6 || len(prov.BackupCodes) != 2 {
		t.Fatalf("provisioning=%+v", prov)
	}

	var verr *ValidationError
	if err := s.Enable2FA(ctx, "12a456"); !errors.As(err, &verr) {
		t.Fatalf("err=%v, want validation error", err)
	}
	code, err := totp.GenerateCode(prov.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := s.Enable2FA(ctx, code); err != nil {
		t.Fatalf("Enable2FA: %v", err)
	}
	if backend.enabledCode != code {
		t.Fatalf("backend got code %q, want %q", backend.enabledCode, code)
	}
}

func TestParseProvisioningFromURI(t *testing.T) {
	setup := &api.TwoFASetup{
		QRCode: "otpauth://totp/Acme:alice?secret=JBSWY3DPEHPK3PXP&issuer=Acme&digits=8&period=60",
	}
	prov, err := ParseProvisioning(setup, "ignored")
	if err != nil {
		t.Fatalf("ParseProvisioning: %v", err)
	}
	if prov.Issuer != "Acme" || prov.Account != "alice" || prov.Digits != 8 || prov.Period != 60 {
		t.Fatalf("provisioning=%+v", prov)
	}
	if _, err := ParseProvisioning(&api.TwoFASetup{}, "alice"); err == nil {
		t.Fatalf("expected error for empty setup")
	}
}

func TestUnsupportedStore(t *testing.T) {
	s := NewSession(newFakeBackend(), credstore.New(nil))
	if err := s.Initialize(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if snap := s.Snapshot(); snap.State != StateError || !snap.Initialized {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestFailedLoginDropsStoredSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	if err := NewSession(backend, store).Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	backend.loginErr = &api.Error{Status: 401, Message: "invalid credentials"}
	s := NewSession(backend, store)
	var states []State
	s.Subscribe(func(snap Snapshot) { states = append(states, snap.State) })
	if err := s.Login(ctx, Credentials{Email: "bob@example.com", Password: "wrong-password"}); err == nil {
		t.Fatalf("Login succeeded, want error")
	}
	if len(states) == 0 || states[len(states)-1] != StateUnauthenticated {
		t.Fatalf("states=%v, want to end unauthenticated", states)
	}
	if store.HasToken(ctx) {
		t.Fatalf("token still stored after a failed login")
	}
	if _, ok := store.GetUser(ctx); ok {
		t.Fatalf("user still stored after a failed login")
	}

	next := NewSession(backend, store)
	if err := next.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := next.Snapshot().State; got != StateUnauthenticated {
		t.Fatalf("next process state=%s, want unauthenticated", got)
	}
	if backend.count("refresh") != 0 {
		t.Fatalf("nothing stored, refresh should not be attempted")
	}
}

func TestEnable2FASendsTrimmedCode(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.loginResp = authResponse("tok-1", time.Hour)
	s := NewSession(backend, newTestStore(t))
	if err := s.Login(ctx, Credentials{Email: "alice@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := s.Enable2FA(ctx, " 123456\n"); err != nil {
		t.Fatalf("Enable2FA: %v", err)
	}
	backend.mu.Lock()
	sent := backend.enabledCode
	backend.mu.Unlock()
	if sent != "123456" {
		t.Fatalf("backend got %q, want 123456", sent)
	}
}
