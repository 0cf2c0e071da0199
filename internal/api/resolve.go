package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const probeTimeout = 3 * time.Second

// Resolution is the outcome of ResolveBaseURL.
type Resolution struct {
	BaseURL string
	Runtime *RuntimeConfig
	Probed  bool
}

// ResolveBaseURL probes each candidate's /config endpoint and returns the
// first that answers; a non-empty api_base_url in that answer wins over the
// candidate itself. Fallbacks are probed the same way except the last, which
// is returned unprobed when everything else failed.
func ResolveBaseURL(ctx context.Context, httpClient *http.Client, candidates, fallbacks []string) Resolution {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: probeTimeout}
	}
	all := append(append([]string{}, candidates...), fallbacks...)
	for i, candidate := range all {
		candidate = strings.TrimRight(strings.TrimSpace(candidate), "/")
		if candidate == "" {
			continue
		}
		if i == len(all)-1 && len(fallbacks) > 0 {
			return Resolution{BaseURL: candidate}
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		rc, err := NewClient(candidate, httpClient).RuntimeConfig(probeCtx)
		cancel()
		if err != nil {
			log.WithError(err).WithField("candidate", candidate).Debug("api: base url probe failed")
			continue
		}
		base := candidate
		if u := strings.TrimRight(strings.TrimSpace(rc.APIBaseURL), "/"); u != "" {
			base = u
		}
		return Resolution{BaseURL: base, Runtime: rc, Probed: true}
	}
	return Resolution{}
}
