package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/store"
	"github.com/cwinters/pocketmoney/internal/websocket"
)

type VerificationHandler struct {
	completions *store.CompletionStore
	tasks       *store.TaskStore
	users       *store.UserStore
	ledger      *store.LedgerStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewVerificationHandler(cs *store.CompletionStore, ts *store.TaskStore, us *store.UserStore, ls *store.LedgerStore, hub *websocket.Hub, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{
		completions: cs,
		tasks:       ts,
		users:       us,
		ledger:      ls,
		hub:         hub,
		logger:      logger,
	}
}

func (h *VerificationHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type pendingItem struct {
	Completion model.TaskCompletion `json:"completion"`
	TaskTitle  string               `json:"task_title"`
	Points     int                  `json:"points"`
	UserName   string               `json:"user_name"`
}

// Pending lists completions waiting for an admin decision, oldest first.
func (h *VerificationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.completions.ListPending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending completions")
		return
	}

	items := []pendingItem{}
	for _, c := range pending {
		item := pendingItem{Completion: c}
		if a, err := h.tasks.GetAssignment(c.AssignmentID); err == nil && a != nil {
			if def, err := h.tasks.GetDefinition(a.TaskDefinitionID); err == nil && def != nil {
				item.TaskTitle = def.Title
				item.Points = def.DefaultPoints
			}
		}
		if u, err := h.users.GetByID(c.CompletedBy); err == nil && u != nil {
			item.UserName = u.DisplayName
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

type verifyRequest struct {
	Points *int `json:"points"`
}

// Verify confirms a completion and credits the task's points to whoever
// completed it. An optional points value in the body overrides the
// task's default. Verifying twice is a conflict and never double-awards:
// the ledger is also checked for an existing entry for this completion.
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	completionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Points != nil && *req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "points must be positive")
		return
	}

	id, _ := auth.FromContext(r.Context())

	c, err := h.completions.Verify(completionID, id.UserID)
	if err != nil {
		writeStoreError(w, err, "failed to verify completion")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "completion not found")
		return
	}

	awarded, err := h.ledger.HasEntry(model.SourceTaskVerified, completionID)
	if err != nil {
		h.logger.Error("check prior award", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to award points")
		return
	}

	var entry *model.LedgerEntry
	if !awarded {
		points := 0
		var title string
		if a, err := h.tasks.GetAssignment(c.AssignmentID); err == nil && a != nil {
			if def, err := h.tasks.GetDefinition(a.TaskDefinitionID); err == nil && def != nil {
				points = def.DefaultPoints
				title = def.Title
			}
		}
		if req.Points != nil {
			points = *req.Points
		}

		entry, err = h.ledger.Append(model.LedgerEntry{
			UserID:      c.CompletedBy,
			SourceType:  model.SourceTaskVerified,
			SourceID:    &completionID,
			PointsDelta: points,
			Note:        title,
			CreatedBy:   id.UserID,
		})
		if err != nil {
			h.logger.Error("award points", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to award points")
			return
		}
	}

	h.broadcast(websocket.Event{Type: websocket.EventTaskVerified, UserID: c.CompletedBy, ID: c.ID})
	h.broadcast(websocket.Event{Type: websocket.EventPointsChanged, UserID: c.CompletedBy})

	writeJSON(w, http.StatusOK, map[string]any{
		"completion": c,
		"award":      entry,
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject turns a completion down with a reason shown to the user. No
// points move.
func (h *VerificationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	completionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	id, _ := auth.FromContext(r.Context())
	c, err := h.completions.Reject(completionID, id.UserID, req.Reason)
	if err != nil {
		writeStoreError(w, err, "failed to reject completion")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "completion not found")
		return
	}

	h.broadcast(websocket.Event{Type: websocket.EventTaskRejected, UserID: c.CompletedBy, ID: c.ID})
	writeJSON(w, http.StatusOK, c)
}
