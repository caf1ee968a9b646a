package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
)

func newAuthHandler(e *testEnv) *AuthHandler {
	tokens := auth.NewTokenIssuer([]byte("test-secret-that-is-long-enough"), "pocketmoney", "pocketmoney-api")
	return NewAuthHandler(e.users, e.ledger, tokens, e.logger)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	u := e.mustUser(t, "casey", model.RoleUser)
	h := newAuthHandler(e)

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/auth/login", auth.Identity{}, map[string]string{
		"username": "casey",
		"password": "secret123",
	}, "")
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		Token       string `json:"token"`
		UserID      int64  `json:"user_id"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if resp.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", resp.UserID, u.ID)
	}
	if resp.Role != "user" {
		t.Errorf("role = %q, want user", resp.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.mustUser(t, "casey", model.RoleUser)
	h := newAuthHandler(e)

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/auth/login", auth.Identity{}, map[string]string{
		"username": "casey",
		"password": "wrong",
	}, "")
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	e := newTestEnv(t)
	h := newAuthHandler(e)

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/auth/login", auth.Identity{}, map[string]string{
		"username": "nobody",
		"password": "secret123",
	}, "")
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginDeactivatedUser(t *testing.T) {
	e := newTestEnv(t)
	e.mustUser(t, "admin", model.RoleAdmin)
	u := e.mustUser(t, "casey", model.RoleUser)
	if err := e.users.Deactivate(u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	h := newAuthHandler(e)

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/auth/login", auth.Identity{}, map[string]string{
		"username": "casey",
		"password": "secret123",
	}, "")
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginNoPasswordUser(t *testing.T) {
	e := newTestEnv(t)
	u, err := e.users.Create("kiddo", "Kiddo", "", model.RoleUser, true)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h := newAuthHandler(e)

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodPost, "/api/auth/login", auth.Identity{}, map[string]string{
		"username": "kiddo",
	}, "")
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		UserID int64 `json:"user_id"`
	}
	decodeJSON(t, rec, &resp)
	if resp.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", resp.UserID, u.ID)
	}
}

func TestLoginUsersListsOnlyNoPassword(t *testing.T) {
	e := newTestEnv(t)
	e.mustUser(t, "admin", model.RoleAdmin)
	if _, err := e.users.Create("kiddo", "Kiddo", "", model.RoleUser, true); err != nil {
		t.Fatalf("create user: %v", err)
	}
	h := newAuthHandler(e)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/users", nil)
	h.LoginUsers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp []struct {
		Username string `json:"username"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp) != 1 || resp[0].Username != "kiddo" {
		t.Errorf("login users = %+v, want just kiddo", resp)
	}
}

func TestMe(t *testing.T) {
	e := newTestEnv(t)
	u := e.mustUser(t, "casey", model.RoleUser)
	h := newAuthHandler(e)

	rec := httptest.NewRecorder()
	req := jsonRequest(t, http.MethodGet, "/api/me", identityFor(u), nil, "")
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}
