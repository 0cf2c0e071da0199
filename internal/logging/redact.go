package logging

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

const Redacted = "[REDACTED]"

// Keys containing any of these fragments are redacted.
var sensitiveFragments = []string{
	"token",
	"password",
	"authorization",
	"secret",
	"backup_codes",
	"two_factor",
	"cookie",
	"card_number",
	"account_number",
	"cvv",
}

// Short names that only match exactly.
var sensitiveExact = map[string]bool{
	"code": true,
	"pin":  true,
	"card": true,
	"otp":  true,
}

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9\-._~+/]+=*`)
	jwtPattern    = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]*`)
	emailPattern  = regexp.MustCompile(`([a-zA-Z0-9._%+-]+)@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// IsSensitiveKey reports whether a field name should never be logged verbatim.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	if sensitiveExact[k] {
		return true
	}
	for _, f := range sensitiveFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// MaskEmail keeps the first two characters of the local part: ab***@domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return local[:keep] + "***@" + domain
}

// RedactString scrubs bearer tokens, JWTs and email addresses from free text.
func RedactString(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer "+Redacted)
	s = jwtPattern.ReplaceAllString(s, Redacted)
	return emailPattern.ReplaceAllStringFunc(s, MaskEmail)
}

// Redact returns a copy of v safe to log. Structs are converted through their
// JSON form so json tags decide the field names that get checked.
func Redact(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return RedactString(t)
	case error:
		return RedactString(t.Error())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if IsSensitiveKey(k) {
				out[k] = Redacted
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = Redact(t[i])
		}
		return out
	case bool, int, int64, float64:
		return t
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return RedactString(fmt.Sprint(v))
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return RedactString(string(raw))
	}
	return Redact(generic)
}

// RedactHook rewrites every entry before it reaches a writer.
type RedactHook struct{}

func NewRedactHook() *RedactHook { return &RedactHook{} }

func (h *RedactHook) Levels() []log.Level { return log.AllLevels }

func (h *RedactHook) Fire(entry *log.Entry) error {
	entry.Message = RedactString(entry.Message)
	if len(entry.Data) == 0 {
		return nil
	}
	data := make(log.Fields, len(entry.Data))
	for k, v := range entry.Data {
		if IsSensitiveKey(k) {
			data[k] = Redacted
			continue
		}
		if k == log.ErrorKey {
			if err, ok := v.(error); ok {
				data[k] = RedactString(err.Error())
				continue
			}
		}
		data[k] = Redact(v)
	}
	entry.Data = data
	return nil
}
