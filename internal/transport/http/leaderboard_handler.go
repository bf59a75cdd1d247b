package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/domain"
)

// AdminPasswordHeader carries the administrator password on admin requests.
const AdminPasswordHeader = "X-Admin-Password"

// LeaderboardHandler serves the ranked list and the administrative reset.
type LeaderboardHandler struct {
	board   *app.Leaderboard
	gate    *app.AdminGate
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewLeaderboardHandler allows a burst of 5 admin attempts, refilled one every 2 seconds.
func NewLeaderboardHandler(board *app.Leaderboard, gate *app.AdminGate, logger *slog.Logger) *LeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardHandler{
		board:   board,
		gate:    gate,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		logger:  logger,
	}
}

// Register mounts the handler's routes on mux.
func (h *LeaderboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /leaderboard", h.ServeLeaderboard)
	mux.HandleFunc("POST /admin/leaderboard/reset", h.ServeReset)
}

func (h *LeaderboardHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseLeaderboardFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: err.Error()})
		return
	}
	board, err := h.board.Query(r.Context(), filter)
	if err != nil {
		h.logger.Warn("leaderboard query failed", slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, errorPayload{Message: "leaderboard unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type resetResponse struct {
	Removed int `json:"removed"`
}

func (h *LeaderboardHandler) ServeReset(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorPayload{Message: "too many attempts"})
		return
	}
	if err := h.gate.Authorize(r.Header.Get(AdminPasswordHeader)); err != nil {
		h.logger.Warn("admin reset refused", slog.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, errorPayload{Message: err.Error()})
		return
	}
	removed, err := h.board.ResetAll(r.Context())
	if err != nil {
		h.logger.Error("leaderboard reset failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorPayload{Message: domain.ErrBulkResetFailed.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Removed: removed})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
