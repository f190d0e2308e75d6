package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// ReadyHandler reports whether the service's dependencies are reachable
type ReadyHandler struct {
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewReadyHandler creates a readiness handler over named dependency checks
func NewReadyHandler(checks map[string]CheckFunc) *ReadyHandler {
	return &ReadyHandler{checks: checks, timeout: 5 * time.Second}
}

// Ready runs every check and responds 503 if any failed
func (h *ReadyHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			log.Warnf("ready: %s unavailable: %v", name, err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	respondJSON(w, status, map[string]any{
		"status": overall,
		"checks": results,
	})
}
