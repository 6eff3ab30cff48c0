package monitoring

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"bluff-lite/bluff/npc"
)

// LearningSource reports policy learning progress.
type LearningSource interface {
	LearningProgress() npc.LearningProgress
}

type HTTPHandler struct {
	monitor  *Monitor
	learning LearningSource
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(monitor *Monitor, learning LearningSource) *HTTPHandler {
	return &HTTPHandler{
		monitor:  monitor,
		learning: learning,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/monitoring/performance", h.get(h.handlePerformance))
	mux.HandleFunc("/api/monitoring/recent-decisions", h.get(h.handleRecent))
	mux.HandleFunc("/api/monitoring/decision-distribution", h.get(h.handleDistribution))
	mux.HandleFunc("/api/monitoring/learning-progress", h.get(h.handleLearningProgress))
}

func (h *HTTPHandler) get(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

func (h *HTTPHandler) handlePerformance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Performance())
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]any{
		"items": h.monitor.Recent(limit),
	})
}

func (h *HTTPHandler) handleDistribution(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Distribution())
}

func (h *HTTPHandler) handleLearningProgress(w http.ResponseWriter, _ *http.Request) {
	if h.learning == nil {
		writeError(w, http.StatusServiceUnavailable, "learning progress unavailable")
		return
	}
	writeJSON(w, http.StatusOK, h.learning.LearningProgress())
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRecentLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultRecentLimit
	}
	if n > 100 {
		return 100
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
