package registry

import (
	"context"
	"net/http"
	"time"

	"github.com/giantswarm/fedctl/pkg/logging"
)

// DefaultProbeInterval is used when the caller does not supply one.
const DefaultProbeInterval = 15 * time.Second

// DefaultProbeTimeout bounds a single /health request.
const DefaultProbeTimeout = 3 * time.Second

// ProbeLoop periodically GETs {endpoint}/health for every registered MCP
// and feeds the result into RecordOutcome, the same hysteresis machinery
// used for passive, dispatch-driven health tracking. It blocks until ctx
// is cancelled.
func (r *Registry) ProbeLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	client := &http.Client{Timeout: DefaultProbeTimeout}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probeOnce(ctx, client)
		}
	}
}

func (r *Registry) probeOnce(ctx context.Context, client *http.Client) {
	for _, desc := range r.All() {
		go r.probeOne(ctx, client, desc.ID, desc.Endpoint)
	}
}

func (r *Registry) probeOne(ctx context.Context, client *http.Client, id, endpoint string) {
	reqCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	started := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		logging.Warn("Registry", "probe request for %s malformed: %v", id, err)
		return
	}

	resp, err := client.Do(req)
	latency := time.Since(started)
	if err != nil {
		r.RecordOutcome(id, latency, false)
		return
	}
	defer resp.Body.Close()

	r.RecordOutcome(id, latency, resp.StatusCode >= 200 && resp.StatusCode < 300)
}
