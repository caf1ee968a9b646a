package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/points"
	"github.com/cwinters/pocketmoney/internal/schedule"
	"github.com/cwinters/pocketmoney/internal/store"
	"github.com/cwinters/pocketmoney/internal/websocket"
)

type PointsHandler struct {
	ledger   *store.LedgerStore
	users    *store.UserStore
	settings *store.SettingsStore
	hub      *websocket.Hub
	logger   *slog.Logger
	now      func() time.Time
}

func NewPointsHandler(ls *store.LedgerStore, us *store.UserStore, ss *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{
		ledger:   ls,
		users:    us,
		settings: ss,
		hub:      hub,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *PointsHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

// MyPoints returns the caller's balance and recent ledger history.
func (h *PointsHandler) MyPoints(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	h.writePoints(w, id.UserID)
}

// UserPoints returns any user's balance and history, for admins.
func (h *PointsHandler) UserPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	h.writePoints(w, userID)
}

func (h *PointsHandler) writePoints(w http.ResponseWriter, userID int64) {
	balance, err := h.ledger.Balance(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load points")
		return
	}
	history, err := h.ledger.History(userID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load points")
		return
	}
	if history == nil {
		history = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": balance,
		"history": history,
	})
}

type bonusRequest struct {
	UserID int64  `json:"user_id"`
	Points int    `json:"points"`
	Note   string `json:"note"`
}

// Bonus lets an admin grant extra points outside task verification.
func (h *PointsHandler) Bonus(w http.ResponseWriter, r *http.Request) {
	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "points must be positive")
		return
	}

	u, err := h.users.GetByID(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if u == nil || !u.Active {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	id, _ := auth.FromContext(r.Context())
	entry, err := h.ledger.Append(model.LedgerEntry{
		UserID:      req.UserID,
		SourceType:  model.SourceBonus,
		PointsDelta: req.Points,
		Note:        req.Note,
		CreatedBy:   id.UserID,
	})
	if err != nil {
		writeStoreError(w, err, "failed to grant bonus")
		return
	}

	h.broadcast(websocket.Event{Type: websocket.EventPointsChanged, UserID: req.UserID})
	writeJSON(w, http.StatusCreated, entry)
}

// ResetPoints zeroes a user's balance with a compensating adjustment.
func (h *PointsHandler) ResetPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	id, _ := auth.FromContext(r.Context())
	entry, err := h.ledger.ResetPoints(userID, id.UserID, "balance reset")
	if err != nil {
		writeStoreError(w, err, "failed to reset points")
		return
	}

	h.broadcast(websocket.Event{Type: websocket.EventPointsChanged, UserID: userID})
	writeJSON(w, http.StatusOK, map[string]any{"adjustment": entry})
}

// Leaderboard ranks active users by points over a period: week, month,
// or all time.
func (h *PointsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if settings == nil {
		settings = &model.FamilySettings{Timezone: "UTC", WeekStartsOn: time.Monday}
	}

	rows, err := h.leaderboardRows(r.URL.Query().Get("period"), settings)
	if err != nil {
		h.logger.Error("build leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Scoreboard is the anonymous variant shown on a wall display. It is
// only served when the family has opted in.
func (h *PointsHandler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if settings == nil || !settings.EnableScoreboard {
		writeError(w, http.StatusNotFound, "scoreboard disabled")
		return
	}

	rows, err := h.leaderboardRows(r.URL.Query().Get("period"), settings)
	if err != nil {
		h.logger.Error("build scoreboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load scoreboard")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *PointsHandler) leaderboardRows(period string, settings *model.FamilySettings) ([]model.UserPoints, error) {
	today, _ := schedule.LocalToday(h.now(), settings.Location())

	var since time.Time
	switch period {
	case "week":
		since = schedule.WeekStart(today, settings.WeekStartsOn)
	case "month":
		since = schedule.MonthStart(today)
	default:
		// all time
	}

	rows, err := h.ledger.Totals(since, settings.IncludeAdminsInAssignments)
	if err != nil {
		return nil, err
	}
	return points.Rank(rows), nil
}

func parseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}
