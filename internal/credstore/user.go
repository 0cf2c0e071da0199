package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"finquest/internal/logging"
)

// userAllowList is every profile field that may be cached locally. Balances,
// incomes and any other financial data are dropped.
var userAllowList = map[string]bool{
	"id":                 true,
	"user_id":            true,
	"userId":             true,
	"_id":                true,
	"sub":                true,
	"username":           true,
	"name":               true,
	"first_name":         true,
	"last_name":          true,
	"email":              true,
	"role":               true,
	"two_factor_enabled": true,
	"created_at":         true,
}

// idFields lists the names backends have used for the user id, in lookup order.
var idFields = []string{"id", "user_id", "userId", "_id", "sub"}

// CachedUser is the sanitized user record kept on disk.
type CachedUser map[string]any

// ID returns the first non-empty id field.
func (u CachedUser) ID() string {
	for _, f := range idFields {
		v, ok := u[f]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = fmt.Sprintf("%.0f", t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func (u CachedUser) String(field string) string {
	if v, ok := u[field].(string); ok {
		return v
	}
	return ""
}

// SanitizeUser reduces any JSON-encodable profile to the allow-listed fields
// and masks the email.
func SanitizeUser(profile any) (CachedUser, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("profile is not an object: %w", err)
	}
	out := make(CachedUser, len(userAllowList))
	for k, v := range all {
		if !userAllowList[k] || v == nil {
			continue
		}
		if k == "email" {
			if email, ok := v.(string); ok {
				v = logging.MaskEmail(email)
			}
		}
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetUser(ctx context.Context, profile any) bool {
	if !s.Supported() {
		return false
	}
	user, err := SanitizeUser(profile)
	if err != nil {
		log.WithError(err).Warn("credstore: sanitize user failed")
		return false
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return false
	}
	return s.setItem(ctx, userKey, string(raw), nil)
}

func (s *Store) GetUser(ctx context.Context) (CachedUser, bool) {
	raw, ok := s.getItem(ctx, userKey)
	if !ok {
		return nil, false
	}
	var u CachedUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.WithError(err).Warn("credstore: cached user unreadable, purged")
		s.remove(ctx, userKey)
		return nil, false
	}
	return u, true
}

func (s *Store) RemoveUser(ctx context.Context) bool {
	return s.remove(ctx, userKey)
}
