package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/points"
	"github.com/cwinters/pocketmoney/internal/store"
	"github.com/cwinters/pocketmoney/internal/websocket"
)

type PayoutHandler struct {
	payouts  *store.PayoutStore
	settings *store.SettingsStore
	users    *store.UserStore
	hub      *websocket.Hub
	logger   *slog.Logger
	now      func() time.Time
}

func NewPayoutHandler(ps *store.PayoutStore, ss *store.SettingsStore, us *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts:  ps,
		settings: ss,
		users:    us,
		hub:      hub,
		logger:   logger,
		now:      time.Now,
	}
}

type payoutPreview struct {
	UserID      int64     `json:"user_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	NetPoints   int       `json:"net_points"`
	Payable     int       `json:"payable_points"`
	RateCents   int64     `json:"rate_cents"`
	MoneyCents  int64     `json:"money_cents"`
}

func toPreview(userID int64, rateCents int64, s points.PeriodSummary) payoutPreview {
	return payoutPreview{
		UserID:      userID,
		PeriodStart: s.PeriodStart,
		PeriodEnd:   s.PeriodEnd,
		NetPoints:   s.NetPoints,
		Payable:     s.PayablePoints,
		RateCents:   rateCents,
		MoneyCents:  s.MoneyCents,
	}
}

// Preview shows what each active user would be paid for their open
// period at the configured rate, without writing anything. A payout rate
// must be configured first.
func (h *PayoutHandler) Preview(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Require()
	if err != nil {
		writeStoreError(w, err, "failed to load settings")
		return
	}

	users, err := h.users.ListActive()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	now := h.now().UTC()
	previews := []payoutPreview{}
	for _, u := range users {
		if u.Role != model.RoleUser {
			continue
		}
		summary, err := h.payouts.Preview(u.ID, settings.RateCents, now)
		if err != nil {
			h.logger.Error("preview payout", "user_id", u.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to preview payouts")
			return
		}
		previews = append(previews, toPreview(u.ID, settings.RateCents, summary))
	}
	writeJSON(w, http.StatusOK, previews)
}

type executeRequest struct {
	UserIDs []int64 `json:"user_ids"`
	Note    string  `json:"note"`
}

type executeResult struct {
	Payout  *model.Payout `json:"payout"`
	Summary payoutPreview `json:"summary"`
}

// Execute closes the open period for the named users, or every active
// non-admin user when user_ids is omitted. Each payout records the net
// (when nonzero) and advances the user's watermark so the same points
// can never be paid twice.
func (h *PayoutHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	settings, err := h.settings.Require()
	if err != nil {
		writeStoreError(w, err, "failed to load settings")
		return
	}
	if settings.RateCents <= 0 {
		writeError(w, http.StatusBadRequest, "payout rate not configured")
		return
	}

	targets := req.UserIDs
	if len(targets) == 0 {
		users, err := h.users.ListActive()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		for _, u := range users {
			if u.Role == model.RoleUser {
				targets = append(targets, u.ID)
			}
		}
	} else {
		for _, userID := range targets {
			u, err := h.users.GetByID(userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}
			if u == nil || !u.Active {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
		}
	}

	id, _ := auth.FromContext(r.Context())
	now := h.now().UTC()
	// One transaction for the whole batch: either every user's payout
	// and watermark commit together or none do.
	batch, err := h.payouts.ExecuteBatch(targets, id.UserID, settings.RateCents, now, req.Note)
	if err != nil {
		h.logger.Error("execute payouts", "error", err)
		writeStoreError(w, err, "failed to execute payouts")
		return
	}

	results := []executeResult{}
	for _, res := range batch {
		results = append(results, executeResult{Payout: res.Payout, Summary: toPreview(res.UserID, settings.RateCents, res.Summary)})
		if h.hub != nil {
			h.hub.Broadcast(websocket.Event{Type: websocket.EventPayoutExecuted, UserID: res.UserID})
		}
	}

	writeJSON(w, http.StatusOK, results)
}

// History lists executed payouts, newest first, optionally filtered with
// ?user_id=.
func (h *PayoutHandler) History(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = &parsed
	}

	history, err := h.payouts.History(userID, parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load payout history")
		return
	}
	if history == nil {
		history = []model.Payout{}
	}
	writeJSON(w, http.StatusOK, history)
}
