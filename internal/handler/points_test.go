package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/store"
)

func newPointsHandler(e *testEnv) *PointsHandler {
	return NewPointsHandler(e.ledger, e.users, e.settings, nil, e.logger)
}

func TestMyPoints(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 25)

	h := newPointsHandler(e)
	rec := httptest.NewRecorder()
	h.MyPoints(rec, jsonRequest(t, http.MethodGet, "/api/me/points", identityFor(kid), nil, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Balance int                 `json:"balance"`
		History []model.LedgerEntry `json:"history"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Balance != 25 {
		t.Errorf("balance = %d, want 25", resp.Balance)
	}
	if len(resp.History) != 1 {
		t.Errorf("history = %d entries, want 1", len(resp.History))
	}
}

func TestBonus(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)

	h := newPointsHandler(e)
	rec := httptest.NewRecorder()
	h.Bonus(rec, jsonRequest(t, http.MethodPost, "/api/users/bonus", identityFor(admin),
		map[string]any{"user_id": kid.ID, "points": 10, "note": "helped with groceries"}, ""))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	balance, _ := e.ledger.Balance(kid.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

func TestBonusRejectsNonPositivePoints(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)

	h := newPointsHandler(e)
	for _, points := range []int{0, -5} {
		rec := httptest.NewRecorder()
		h.Bonus(rec, jsonRequest(t, http.MethodPost, "/api/users/bonus", identityFor(admin),
			map[string]any{"user_id": kid.ID, "points": points}, ""))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("points=%d: status = %d, want %d", points, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestResetPoints(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 40)

	h := newPointsHandler(e)
	rec := httptest.NewRecorder()
	h.ResetPoints(rec, jsonRequest(t, http.MethodPost, "/api/users/1/reset-points", identityFor(admin), nil, strconv.FormatInt(kid.ID, 10)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	balance, _ := e.ledger.Balance(kid.ID)
	if balance != 0 {
		t.Errorf("balance = %d, want 0 after reset", balance)
	}
}

func TestLeaderboardExcludesAdmins(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	other := e.mustUser(t, "other", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 30)
	e.mustAward(t, other.ID, admin.ID, 50)
	e.mustAward(t, admin.ID, admin.ID, 100)

	h := newPointsHandler(e)
	rec := httptest.NewRecorder()
	h.Leaderboard(rec, jsonRequest(t, http.MethodGet, "/api/leaderboard", identityFor(kid), nil, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rows []model.UserPoints
	decodeJSON(t, rec, &rows)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].UserID != other.ID || rows[0].Rank != 1 {
		t.Errorf("top row = %+v, want other ranked first", rows[0])
	}
	if rows[1].UserID != kid.ID || rows[1].Rank != 2 {
		t.Errorf("second row = %+v, want kid ranked second", rows[1])
	}
}

func TestScoreboardGatedBySettings(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	kid := e.mustUser(t, "kid", model.RoleUser)

	h := newPointsHandler(e)
	rec := httptest.NewRecorder()
	h.Scoreboard(rec, jsonRequest(t, http.MethodGet, "/api/scoreboard", identityFor(kid), nil, ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d while disabled", rec.Code, http.StatusNotFound)
	}

	enabled := true
	if _, err := e.settings.Save(store.SettingsUpdate{EnableScoreboard: &enabled}); err != nil {
		t.Fatalf("enable scoreboard: %v", err)
	}

	rec = httptest.NewRecorder()
	h.Scoreboard(rec, jsonRequest(t, http.MethodGet, "/api/scoreboard", identityFor(kid), nil, ""))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d once enabled", rec.Code, http.StatusOK)
	}
}

func TestLeaderboardWeekPeriod(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 15)

	h := newPointsHandler(e)
	h.now = func() time.Time { return time.Now() }
	rec := httptest.NewRecorder()
	h.Leaderboard(rec, jsonRequest(t, http.MethodGet, "/api/leaderboard?period=week", identityFor(kid), nil, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rows []model.UserPoints
	decodeJSON(t, rec, &rows)
	if len(rows) != 1 || rows[0].TotalPoints != 15 {
		t.Errorf("rows = %+v, want kid with 15 this week", rows)
	}
}
