package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/store"
)

type AuthHandler struct {
	users  *store.UserStore
	ledger *store.LedgerStore
	tokens *auth.TokenIssuer
	logger *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ls *store.LedgerStore, tokens *auth.TokenIssuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: us, ledger: ls, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Login checks credentials and hands out a bearer token. Failures are
// deliberately indistinguishable between unknown user and bad password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	u, err := h.users.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if u == nil || !u.Active || !h.users.VerifyPassword(u, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(u, time.Now())
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if err := h.users.TouchLastLogin(u.ID); err != nil {
		h.logger.Warn("touch last login", "error", err)
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
	})
}

// LoginUsers lists users who can log in by tapping their name, for the
// shared-tablet login screen.
func (h *AuthHandler) LoginUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListNoPassword()
	if err != nil {
		h.logger.Error("list no-password users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	type entry struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	}
	out := make([]entry, 0, len(users))
	for _, u := range users {
		out = append(out, entry{Username: u.Username, DisplayName: u.DisplayName})
	}
	writeJSON(w, http.StatusOK, out)
}

// Me returns the caller's profile and current point balance.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	u, err := h.users.GetByID(id.UserID)
	if err != nil || u == nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	balance, err := h.ledger.Balance(id.UserID)
	if err != nil {
		h.logger.Error("load balance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   u,
		"points": balance,
	})
}
