package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/push"
	"github.com/cwinters/pocketmoney/internal/store"
)

type PushHandler struct {
	push    *store.PushStore
	service *push.Service
	logger  *slog.Logger
}

// NewPushHandler wires the push endpoints. service may be nil when the
// server runs without VAPID keys configured.
func NewPushHandler(ps *store.PushStore, service *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{push: ps, service: service, logger: logger}
}

// PublicKey hands the client the VAPID public key it needs to create a
// browser subscription.
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe stores a browser push subscription for the caller. Posting
// the same endpoint again refreshes its keys.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	identity, _ := auth.FromContext(r.Context())
	if err := h.push.Subscribe(identity.UserID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	h.logger.Info("push subscription saved", "user_id", identity.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions returns the caller's registered devices.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	subs, err := h.push.ListForUser(identity.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// DeleteSubscription removes one of the caller's subscriptions by id.
func (h *PushHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}
	identity, _ := auth.FromContext(r.Context())
	deleted, err := h.push.DeleteByID(identity.UserID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if err := h.push.Unsubscribe(req.Endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
