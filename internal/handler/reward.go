package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/store"
	"github.com/cwinters/pocketmoney/internal/websocket"
)

type RewardHandler struct {
	rewards *store.RewardStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, hub: hub, logger: logger}
}

// List returns active rewards, or everything with ?all for admins
// managing the catalog.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := !r.URL.Query().Has("all")
	rewards, err := h.rewards.List(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

type rewardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CostPoints  int    `json:"cost_points"`
	Active      *bool  `json:"active"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	reward, err := h.rewards.Create(req.Title, req.Description, req.CostPoints)
	if err != nil {
		writeStoreError(w, err, "failed to create reward")
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reward id")
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewards.Update(id, req.Title, req.Description, req.CostPoints, active)
	if err != nil {
		writeStoreError(w, err, "failed to update reward")
		return
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reward id")
		return
	}
	if err := h.rewards.Deactivate(id); err != nil {
		writeStoreError(w, err, "failed to deactivate reward")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redeem spends the caller's points on a reward. The point debit and
// the redemption record are written atomically.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reward id")
		return
	}

	identity, _ := auth.FromContext(r.Context())
	redemption, err := h.rewards.Redeem(id, identity.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "reward not found")
			return
		}
		writeStoreError(w, err, "failed to redeem reward")
		return
	}

	h.logger.Info("reward redeemed", "reward_id", id, "user_id", identity.UserID, "points", redemption.PointsSpent)
	if h.hub != nil {
		h.hub.Broadcast(websocket.Event{Type: websocket.EventRewardRedeemed, UserID: identity.UserID, ID: redemption.ID})
		h.hub.Broadcast(websocket.Event{Type: websocket.EventPointsChanged, UserID: identity.UserID})
	}
	writeJSON(w, http.StatusCreated, redemption)
}

// MyRedemptions lists the caller's redemption history, newest first.
func (h *RewardHandler) MyRedemptions(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	redemptions, err := h.rewards.Redemptions(identity.UserID, parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load redemptions")
		return
	}
	if redemptions == nil {
		redemptions = []model.RewardRedemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}
