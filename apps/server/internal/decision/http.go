package decision

import (
	"encoding/json"
	"errors"
	"net/http"

	"bluff-lite/apps/server/internal/lock"
	"bluff-lite/bluff"
	"bluff-lite/bluff/npc"
)

const maxRequestBytes = 1 << 20

type HTTPHandler struct {
	decider *Decider
}

type errorResponse struct {
	Error string `json:"error"`
}

type decideRequest struct {
	Session
	GameState bluff.GameState `json:"gameState"`
	Message   string          `json:"message,omitempty"`
}

type outcomeRequest struct {
	Session
	Outcome
}

type observeRequest struct {
	Session
	Observation npc.Observation `json:"observation"`
}

type gameEndRequest struct {
	Session
	AIWon bool `json:"aiWon"`
}

func NewHTTPHandler(decider *Decider) *HTTPHandler {
	return &HTTPHandler{decider: decider}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/decisions", h.post(h.handleDecide))
	mux.HandleFunc("/api/decisions/outcome", h.post(h.handleOutcome))
	mux.HandleFunc("/api/opponents/observe", h.post(h.handleObserve))
	mux.HandleFunc("/api/games/end", h.post(h.handleGameEnd))
}

func (h *HTTPHandler) post(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		next(w, r)
	}
}

func (h *HTTPHandler) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.decider.Decide(r.Context(), req.Session, req.GameState, req.Message))
}

func (h *HTTPHandler) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.decider.RecordOutcome(r.Context(), req.Session, req.Outcome); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *HTTPHandler) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.decider.ObserveOpponent(r.Context(), req.Session, req.Observation); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *HTTPHandler) handleGameEnd(w http.ResponseWriter, r *http.Request) {
	var req gameEndRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.decider.RecordGameEnd(r.Context(), req.Session, req.AIWon)
	writeJSON(w, http.StatusOK, h.decider.PerformanceSnapshot())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps a RecordOutcome or ObserveOpponent error to a response
// code. Lock contention is reported as a conflict the caller may retry.
func statusFor(err error) int {
	switch {
	case bluff.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
