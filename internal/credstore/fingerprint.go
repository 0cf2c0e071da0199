package credstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

const installIDKey = "fq_install_id"

// deviceFingerprint mixes locally observable machine traits with a random
// per-install ID. Anything running as the same OS user can recompute it, so
// the derived key only hides values from casual inspection of the DB file.
func (s *Store) deviceFingerprint(ctx context.Context) string {
	parts := []string{
		runtime.GOOS,
		runtime.GOARCH,
		hostname(),
		username(),
		locale(),
		tzOffset(s.now()),
		s.installID(ctx),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (s *Store) installID(ctx context.Context) string {
	if s.backend == nil {
		return ""
	}
	if id, ok, err := s.backend.Get(ctx, installIDKey); err == nil && ok && id != "" {
		return id
	}
	id := uuid.NewString()
	if err := s.backend.Set(ctx, installIDKey, id); err != nil {
		return ""
	}
	return id
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}

func username() string {
	u, err := user.Current()
	if err != nil {
		return os.Getenv("USER")
	}
	return u.Username
}

func locale() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return "C"
}

func tzOffset(now time.Time) string {
	_, offset := now.Zone()
	return time.Duration(offset * int(time.Second)).String()
}
