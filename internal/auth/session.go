// Package auth owns the login session: credentials in, a cached token and user
// out, and the headers every backend call carries.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"finquest/internal/api"
	"finquest/internal/credstore"
)

type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
	StateError           State = "error"
)

// RefreshMargin is how long before expiry a token stops counting as valid.
const RefreshMargin = 300 * time.Second

const expiryKey = "fq_token_expires_at"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStoreUnavailable = errors.New("credential storage unavailable")
)

// Backend is the slice of the REST adapter the session needs. *api.Client
// satisfies it.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	Refresh(ctx context.Context, token string) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*api.User, error)
	ChangePassword(ctx context.Context, req api.ChangePasswordRequest) error
	Setup2FA(ctx context.Context) (*api.TwoFASetup, error)
	Enable2FA(ctx context.Context, code string) error
	Check2FA(ctx context.Context, email, password string) (bool, error)
}

// Snapshot is a read-only view of the session handed to subscribers.
type Snapshot struct {
	State       State
	User        credstore.CachedUser
	ExpiresAt   time.Time
	Err         error
	Initialized bool
}

func (s Snapshot) Authenticated() bool { return s.State == StateAuthenticated }

type Session struct {
	backend Backend
	store   *credstore.Store
	now     func() time.Time

	mu          sync.Mutex
	state       State
	token       string
	expiresAt   time.Time
	user        credstore.CachedUser
	lastErr     error
	initialized bool
	subs        map[int]func(Snapshot)
	nextSub     int
}

func NewSession(backend Backend, store *credstore.Store) *Session {
	return &Session{
		backend: backend,
		store:   store,
		now:     time.Now,
		state:   StateLoading,
		subs:    map[int]func(Snapshot){},
	}
}

// Subscribe registers fn for every state change and returns a func that
// removes it. Callbacks run outside the session lock.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:       s.state,
		User:        s.user,
		ExpiresAt:   s.expiresAt,
		Err:         s.lastErr,
		Initialized: s.initialized,
	}
}

func (s *Session) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// transition applies fn under the lock and then notifies subscribers.
func (s *Session) transition(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.mu.Unlock()

	log.WithField("state", snap.State).Debug("auth: state changed")
	for _, f := range subs {
		f(snap)
	}
}

// Initialize restores the session from the credential store. A token inside
// the refresh margin is renewed; a failed renewal logs out.
func (s *Session) Initialize(ctx context.Context) error {
	s.transition(func() { s.state = StateLoading })

	if !s.store.Supported() {
		s.transition(func() {
			s.resetLocked()
			s.lastErr = ErrStoreUnavailable
			s.state = StateError
			s.initialized = true
		})
		return ErrStoreUnavailable
	}

	token, ok := s.store.GetToken(ctx)
	if !ok {
		s.transition(func() {
			s.resetLocked()
			s.state = StateUnauthenticated
			s.initialized = true
		})
		return nil
	}
	expiresAt := s.storedExpiry(ctx)
	user, _ := s.store.GetUser(ctx)

	if IsTokenValid(expiresAt, s.now()) {
		s.transition(func() {
			s.token = token
			s.expiresAt = expiresAt
			s.user = user
			s.lastErr = nil
			s.state = StateAuthenticated
			s.initialized = true
		})
		if user == nil {
			s.fillUser(ctx)
		}
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = expiresAt
	s.user = user
	s.mu.Unlock()
	err := s.RefreshToken(ctx)
	s.transition(func() { s.initialized = true })
	if err != nil {
		log.WithError(err).Info("auth: stored session could not be renewed")
	}
	return nil
}

func (s *Session) Login(ctx context.Context, creds Credentials) error {
	if err := validateStruct(creds); err != nil {
		return err
	}
	s.transition(func() { s.state = StateLoading })
	resp, err := s.backend.Login(ctx, api.LoginRequest{
		Email:         creds.Email,
		Password:      creds.Password,
		TwoFactorCode: creds.TwoFactorCode,
	})
	if err != nil {
		s.fail(ctx, err)
		return fmt.Errorf("login: %w", err)
	}
	s.adopt(ctx, resp)
	return nil
}

func (s *Session) Register(ctx context.Context, reg Registration) error {
	if err := validateStruct(reg); err != nil {
		return err
	}
	s.transition(func() { s.state = StateLoading })
	resp, err := s.backend.Register(ctx, api.RegisterRequest{
		Email:     reg.Email,
		Password:  reg.Password,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
	})
	if err != nil {
		s.fail(ctx, err)
		return fmt.Errorf("register: %w", err)
	}
	s.adopt(ctx, resp)
	return nil
}

// Logout tells the backend, ignoring any error, then always clears local state.
func (s *Session) Logout(ctx context.Context) {
	if s.Snapshot().State == StateAuthenticated {
		if err := s.backend.Logout(ctx); err != nil {
			log.WithError(err).Debug("auth: backend logout failed")
		}
	}
	s.store.Clear(ctx)
	s.store.RemovePlain(ctx, expiryKey)
	s.transition(func() {
		s.resetLocked()
		s.state = StateUnauthenticated
	})
}

func (s *Session) RefreshToken(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		token, _ = s.store.GetToken(ctx)
	}
	if token == "" {
		s.Logout(ctx)
		return ErrNotAuthenticated
	}

	s.transition(func() { s.state = StateLoading })
	resp, err := s.backend.Refresh(ctx, token)
	if err != nil {
		s.Logout(ctx)
		return fmt.Errorf("refresh token: %w", err)
	}
	s.adopt(ctx, resp)
	return nil
}

func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	change := PasswordChange{CurrentPassword: current, NewPassword: next}
	if err := validateStruct(change); err != nil {
		return err
	}
	if !s.Snapshot().Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.backend.ChangePassword(ctx, api.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	}); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// Check2FA reports whether logging in with these credentials needs a code.
func (s *Session) Check2FA(ctx context.Context, email, password string) (bool, error) {
	if err := validateStruct(Credentials{Email: email, Password: password}); err != nil {
		return false, err
	}
	required, err := s.backend.Check2FA(ctx, email, password)
	if err != nil {
		return false, fmt.Errorf("check 2fa: %w", err)
	}
	return required, nil
}

func (s *Session) Setup2FA(ctx context.Context) (Provisioning, error) {
	snap := s.Snapshot()
	if !snap.Authenticated() {
		return Provisioning{}, ErrNotAuthenticated
	}
	setup, err := s.backend.Setup2FA(ctx)
	if err != nil {
		return Provisioning{}, fmt.Errorf("setup 2fa: %w", err)
	}
	account := snap.User.String("username")
	if account == "" {
		account = snap.User.ID()
	}
	return ParseProvisioning(setup, account)
}

func (s *Session) Enable2FA(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if err := ValidateTwoFactorCode(code); err != nil {
		return err
	}
	if !s.Snapshot().Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.backend.Enable2FA(ctx, code); err != nil {
		return fmt.Errorf("enable 2fa: %w", err)
	}
	return nil
}

// IsTokenValid reports whether expiresAt is beyond the refresh margin.
func IsTokenValid(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return expiresAt.After(now.Add(RefreshMargin))
}

// AuthHeaders implements api.HeaderSource.
func (s *Session) AuthHeaders(context.Context) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || !IsTokenValid(s.expiresAt, s.now()) {
		return map[string]string{}
	}
	h := map[string]string{"Authorization": "Bearer " + s.token}
	if id := s.user.ID(); id != "" {
		h["X-Caller-ID"] = id
	}
	return h
}

func (s *Session) adopt(ctx context.Context, resp *api.AuthResponse) {
	if ttl := resp.ExpiresAt.Sub(s.now()); ttl > 0 {
		s.store.SetToken(ctx, resp.Token, &ttl)
	} else {
		s.store.SetToken(ctx, resp.Token, nil)
	}
	s.store.SetPlain(ctx, expiryKey, strconv.FormatInt(resp.ExpiresAt.Unix(), 10))
	s.store.SetUser(ctx, resp.User)

	user, err := credstore.SanitizeUser(resp.User)
	if err != nil {
		log.WithError(err).Warn("auth: sanitize user failed")
	}
	s.transition(func() {
		s.token = resp.Token
		s.expiresAt = resp.ExpiresAt
		s.user = user
		s.lastErr = nil
		s.state = StateAuthenticated
		s.initialized = true
	})
}

// fail drops any persisted session along with the in-memory one, so the next
// process does not restore credentials the user just failed to replace.
func (s *Session) fail(ctx context.Context, err error) {
	s.store.Clear(ctx)
	s.store.RemovePlain(ctx, expiryKey)
	s.transition(func() {
		s.resetLocked()
		s.lastErr = err
		s.state = StateUnauthenticated
	})
}

func (s *Session) resetLocked() {
	s.token = ""
	s.expiresAt = time.Time{}
	s.user = nil
	s.lastErr = nil
}

func (s *Session) storedExpiry(ctx context.Context) time.Time {
	raw, ok := s.store.GetPlain(ctx, expiryKey)
	if !ok {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.WithError(err).Warn("auth: stored expiry unreadable")
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// fillUser backfills the cached user when only the token survived.
func (s *Session) fillUser(ctx context.Context) {
	u, err := s.backend.Profile(ctx)
	if err != nil {
		log.WithError(err).Debug("auth: profile backfill failed")
		return
	}
	s.store.SetUser(ctx, u)
	user, err := credstore.SanitizeUser(u)
	if err != nil {
		return
	}
	s.transition(func() { s.user = user })
}
