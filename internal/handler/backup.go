package handler

import (
	"log/slog"
	"net/http"

	"github.com/cwinters/pocketmoney/internal/backup"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/store"
)

type BackupHandler struct {
	backups *store.BackupStore
	manager *backup.Manager
	logger  *slog.Logger
}

// NewBackupHandler wires the backup endpoints. manager may be nil when
// no backup destination is configured.
func NewBackupHandler(bs *store.BackupStore, manager *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: bs, manager: manager, logger: logger}
}

// Status reports whether backups are configured and when one last ran.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"enabled": h.manager != nil}
	if h.manager != nil {
		resp["last_run"] = h.manager.LastRun()
	}
	writeJSON(w, http.StatusOK, resp)
}

// List returns recent backup records, newest first.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// RunNow triggers an immediate encrypted backup upload.
func (h *BackupHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusBadRequest, "backups are not configured")
		return
	}
	record, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("manual backup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}
