package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/store"
)

type UserHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewUserHandler(us *store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, logger: logger}
}

// List returns all active users. Admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListActive()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username           string     `json:"username"`
	DisplayName        string     `json:"display_name"`
	Password           string     `json:"password"`
	Role               model.Role `json:"role"`
	NoPasswordRequired bool       `json:"no_password_required"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Username == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "username and display_name are required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if !req.NoPasswordRequired && len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	u, err := h.users.Create(req.Username, req.DisplayName, req.Password, req.Role, req.NoPasswordRequired)
	if err != nil {
		writeStoreError(w, err, "failed to create user")
		return
	}
	h.logger.Info("user created", "user_id", u.ID, "username", u.Username, "role", u.Role)
	writeJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	DisplayName        *string     `json:"display_name"`
	Role               *model.Role `json:"role"`
	Active             *bool       `json:"active"`
	PreferredLanguage  *string     `json:"preferred_language"`
	PrefersDarkMode    *bool       `json:"prefers_dark_mode"`
	NoPasswordRequired *bool       `json:"no_password_required"`
}

// Update applies a partial update. Demoting or deactivating the last
// admin maps to a conflict.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	u, err := h.users.Update(id, store.UserUpdate{
		DisplayName:        req.DisplayName,
		Role:               req.Role,
		Active:             req.Active,
		PreferredLanguage:  req.PreferredLanguage,
		PrefersDarkMode:    req.PrefersDarkMode,
		NoPasswordRequired: req.NoPasswordRequired,
	})
	if err != nil {
		writeStoreError(w, err, "failed to update user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	identity, _ := auth.FromContext(r.Context())
	if identity.UserID == id {
		writeError(w, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}

	if err := h.users.Deactivate(id); err != nil {
		writeStoreError(w, err, "failed to deactivate user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword lets an admin set a new password for any user.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	u, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.users.SetPassword(id, req.Password); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set password")
		return
	}
	h.logger.Info("password reset", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type preferencesRequest struct {
	PreferredLanguage *string `json:"preferred_language"`
	PrefersDarkMode   *bool   `json:"prefers_dark_mode"`
}

// UpdatePreferences lets a signed-in user change their own language and
// theme preferences.
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.PreferredLanguage != nil {
		if err := h.users.SetPreferredLanguage(identity.UserID, *req.PreferredLanguage); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update language")
			return
		}
	}
	if req.PrefersDarkMode != nil {
		if err := h.users.SetPrefersDarkMode(identity.UserID, *req.PrefersDarkMode); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update theme")
			return
		}
	}

	u, err := h.users.GetByID(identity.UserID)
	if err != nil || u == nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
