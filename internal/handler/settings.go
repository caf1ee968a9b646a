package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwinters/pocketmoney/internal/store"
	"github.com/cwinters/pocketmoney/internal/websocket"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, hub: hub, logger: logger}
}

// Get returns the family settings, or defaults when nothing has been
// configured yet so the client always has something to render.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if settings == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"configured":     false,
			"timezone":       "UTC",
			"week_starts_on": int(time.Monday),
		})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type settingsRequest struct {
	Timezone                   *string `json:"timezone"`
	RateCents                  *int64  `json:"rate_cents"`
	WeekStartsOn               *int    `json:"week_starts_on"`
	EnableScoreboard           *bool   `json:"enable_scoreboard"`
	IncludeAdminsInAssignments *bool   `json:"include_admins_in_assignments"`
}

// Update applies a partial settings change. Admin only.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	upd := store.SettingsUpdate{
		Timezone:                   req.Timezone,
		RateCents:                  req.RateCents,
		EnableScoreboard:           req.EnableScoreboard,
		IncludeAdminsInAssignments: req.IncludeAdminsInAssignments,
	}
	if req.WeekStartsOn != nil {
		day := time.Weekday(*req.WeekStartsOn)
		upd.WeekStartsOn = &day
	}

	settings, err := h.settings.Save(upd)
	if err != nil {
		writeStoreError(w, err, "failed to save settings")
		return
	}

	h.logger.Info("settings updated", "timezone", settings.Timezone, "rate_cents", settings.RateCents)
	if h.hub != nil {
		h.hub.Broadcast(websocket.Event{Type: websocket.EventSettingsChanged})
	}
	writeJSON(w, http.StatusOK, settings)
}
