package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charukad/traceiq/internal/constants"
	"github.com/charukad/traceiq/internal/database"
)

// statsCache holds cached stats per window with expiry
type statsCache struct {
	mu      sync.RWMutex
	entries map[int]statsEntry
}

type statsEntry struct {
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get(hours int, now time.Time) (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[hours]
	if !ok || now.After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (c *statsCache) set(hours int, data *StatsResponse, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[int]statsEntry)
	}
	c.entries[hours] = statsEntry{data: data, expiresAt: now.Add(constants.StatsCacheTTL)}
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	audit database.AuditReader
	faces database.FaceReader
	cache statsCache
	now   func() time.Time
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(audit database.AuditReader, faces database.FaceReader) *StatsHandler {
	return &StatsHandler{
		audit: audit,
		faces: faces,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// StatsResponse represents the identification statistics response
type StatsResponse struct {
	WindowHours     int       `json:"window_hours"`
	Since           time.Time `json:"since"`
	Identifications int       `json:"identifications"`
	EnrolledFaces   int       `json:"enrolled_faces"`
}

// Identifications returns how many identifications ran in the last ?hours= hours (default 24)
func (h *StatsHandler) Identifications(w http.ResponseWriter, r *http.Request) {
	hours := constants.DefaultStatsWindowHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > constants.MaxStatsWindowHours {
			respondError(w, http.StatusBadRequest, "hours must be between 1 and "+strconv.Itoa(constants.MaxStatsWindowHours))
			return
		}
		hours = n
	}

	now := h.now()
	if cached, ok := h.cache.get(hours, now); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	since := now.Add(-time.Duration(hours) * time.Hour)
	count, err := h.audit.CountSince(r.Context(), database.AuditIdentify, since)
	if err != nil {
		log.Errorf("stats: failed to count identifications: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	faces, err := h.faces.Count(r.Context())
	if err != nil {
		log.Errorf("stats: failed to count faces: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	stats := &StatsResponse{
		WindowHours:     hours,
		Since:           since,
		Identifications: count,
		EnrolledFaces:   faces,
	}
	h.cache.set(hours, stats, now)
	respondJSON(w, http.StatusOK, stats)
}
