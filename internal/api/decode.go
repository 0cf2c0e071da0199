package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

const defaultTokenLifetime = 24 * time.Hour

// unwrapData strips a {"data": {...}} envelope when the backend uses one.
func unwrapData(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	data := gjson.GetBytes(body, "data")
	if data.Exists() && (data.IsObject() || data.IsArray()) {
		return []byte(data.Raw)
	}
	return body
}

// parseObject rejects bodies that are not a JSON object, such as an HTML page
// served with a 200.
func parseObject(path string, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("decode %s: response is not JSON", path)
	}
	r := gjson.ParseBytes(body)
	if !r.IsObject() {
		return gjson.Result{}, fmt.Errorf("decode %s: expected an object", path)
	}
	return r, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// parseTimestamp accepts epoch seconds, epoch millis and the common string
// layouts backends emit.
func parseTimestamp(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if n > 1e12 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	case gjson.String:
		s := strings.TrimSpace(v.String())
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// firstString returns the first path that holds a string or number.
func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := r.Get(p)
		if !v.Exists() {
			continue
		}
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return ""
}

func optionalInt(r gjson.Result, paths ...string) *int {
	for _, p := range paths {
		v := r.Get(p)
		if v.Exists() && v.Type == gjson.Number {
			n := int(v.Int())
			return &n
		}
	}
	return nil
}

func decodeUser(r gjson.Result) User {
	return User{
		ID:               firstString(r, "id", "user_id", "userId", "_id"),
		Email:            firstString(r, "email"),
		Username:         firstString(r, "username"),
		FirstName:        firstString(r, "first_name", "firstName"),
		LastName:         firstString(r, "last_name", "lastName"),
		Role:             firstString(r, "role"),
		TwoFactorEnabled: r.Get("two_factor_enabled").Bool(),
		CreatedAt:        firstString(r, "created_at"),
	}
}

func (c *Client) decodeAuth(body []byte) (*AuthResponse, error) {
	r, err := parseObject("auth response", body)
	if err != nil {
		return nil, err
	}
	token := firstString(r, "token", "access_token")
	if token == "" {
		return nil, &Error{Status: 200, Message: "auth response carried no token"}
	}
	out := &AuthResponse{Token: token, User: decodeUser(r.Get("user"))}
	out.ExpiresAt = c.expiryFrom(r.Get("expires_at"), token)
	return out, nil
}

// expiryFrom reads expires_at as epoch seconds, epoch millis or RFC3339, then
// falls back to the JWT exp claim, then to a fixed lifetime.
func (c *Client) expiryFrom(v gjson.Result, token string) time.Time {
	if t, ok := parseTimestamp(v); ok {
		return t
	}
	if exp, ok := tokenExpiry(token); ok {
		return exp
	}
	return c.now().Add(defaultTokenLifetime)
}

// tokenExpiry reads exp without verifying the signature; the client has no key
// and only uses it to schedule refreshes.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func decodeActionResponse(body []byte) (*ActionResponse, error) {
	r, err := parseObject("/gamification/actions", body)
	if err != nil {
		return nil, err
	}
	out := &ActionResponse{
		XPEarned: int(r.Get("xp_earned").Int()),
		TotalXP:  optionalInt(r, "total_xp"),
		Level:    optionalInt(r, "current_level", "new_level"),
		LevelUp:  r.Get("level_up").Bool(),
	}
	if ach := r.Get("new_achievements"); ach.IsArray() {
		if err := json.Unmarshal([]byte(ach.Raw), &out.NewAchievements); err != nil {
			return nil, fmt.Errorf("decode /gamification/actions: %w", err)
		}
	}
	return out, nil
}
