package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

func newPayoutHandler(e *testEnv, now time.Time) *PayoutHandler {
	h := NewPayoutHandler(e.payouts, e.settings, e.users, nil, e.logger)
	h.now = func() time.Time { return now }
	return h
}

func (e *testEnv) mustAward(t *testing.T, userID, by int64, delta int) {
	t.Helper()
	if _, err := e.ledger.Append(model.LedgerEntry{
		UserID:      userID,
		SourceType:  model.SourceBonus,
		PointsDelta: delta,
		CreatedBy:   by,
	}); err != nil {
		t.Fatalf("append ledger entry: %v", err)
	}
}

func TestPayoutPreviewWithoutSettings(t *testing.T) {
	e := newTestEnv(t)
	admin := e.mustUser(t, "admin", model.RoleAdmin)

	h := newPayoutHandler(e, time.Now())
	rec := httptest.NewRecorder()
	h.Preview(rec, jsonRequest(t, http.MethodGet, "/api/payouts/preview", identityFor(admin), nil, ""))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d when settings are missing", rec.Code, http.StatusBadRequest)
	}
}

func TestPayoutPreviewRateScenario(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 150)

	h := newPayoutHandler(e, time.Now().Add(time.Minute))
	rec := httptest.NewRecorder()
	h.Preview(rec, jsonRequest(t, http.MethodGet, "/api/payouts/preview", identityFor(admin), nil, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var previews []payoutPreview
	decodeJSON(t, rec, &previews)
	if len(previews) != 1 {
		t.Fatalf("previews = %d, want 1", len(previews))
	}
	// 150 points at 10 cents per point pays 15.00.
	if previews[0].NetPoints != 150 || previews[0].MoneyCents != 1500 {
		t.Errorf("preview = %d points / %d cents, want 150 / 1500", previews[0].NetPoints, previews[0].MoneyCents)
	}
}

func TestPayoutExecuteAllUsers(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 150)

	h := newPayoutHandler(e, time.Now().Add(time.Minute))
	rec := httptest.NewRecorder()
	h.Execute(rec, jsonRequest(t, http.MethodPost, "/api/payouts/execute", identityFor(admin), nil, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var results []executeResult
	decodeJSON(t, rec, &results)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Payout == nil || results[0].Payout.MoneyPaidCents != 1500 {
		t.Errorf("payout = %+v, want 1500 cents", results[0].Payout)
	}

	// Executing again immediately pays nothing: the watermark moved.
	h.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	rec = httptest.NewRecorder()
	h.Execute(rec, jsonRequest(t, http.MethodPost, "/api/payouts/execute", identityFor(admin), nil, ""))
	results = nil
	decodeJSON(t, rec, &results)
	if len(results) != 1 {
		t.Fatalf("second run results = %d, want 1", len(results))
	}
	if results[0].Payout != nil {
		t.Errorf("second run payout = %+v, want none", results[0].Payout)
	}
}

func TestPayoutExecuteRollsBackWholeBatch(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	alice := e.mustUser(t, "alice", model.RoleUser)
	bob := e.mustUser(t, "bob", model.RoleUser)
	e.mustAward(t, alice.ID, admin.ID, 100)
	e.mustAward(t, bob.ID, admin.ID, 100)

	// Make bob's payout insert fail mid-batch.
	_, err := e.db.Exec(fmt.Sprintf(
		`CREATE TRIGGER block_bob BEFORE INSERT ON payouts WHEN NEW.user_id = %d
		 BEGIN SELECT RAISE(ABORT, 'blocked'); END`, bob.ID))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	h := newPayoutHandler(e, time.Now().Add(time.Minute))
	rec := httptest.NewRecorder()
	h.Execute(rec, jsonRequest(t, http.MethodPost, "/api/payouts/execute", identityFor(admin),
		map[string]any{"user_ids": []int64{alice.ID, bob.ID}}, ""))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	// Nothing from the failed batch may survive: no payout row and no
	// advanced watermark for alice, or her points would be lost.
	var payoutRows int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM payouts`).Scan(&payoutRows); err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if payoutRows != 0 {
		t.Errorf("payout rows = %d, want 0 after rollback", payoutRows)
	}
	state, err := e.payouts.State(alice.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != nil {
		t.Errorf("alice's watermark = %+v, want none after rollback", state)
	}
}

func TestPayoutExecuteSubset(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	other := e.mustUser(t, "other", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 20)
	e.mustAward(t, other.ID, admin.ID, 30)

	h := newPayoutHandler(e, time.Now().Add(time.Minute))
	rec := httptest.NewRecorder()
	h.Execute(rec, jsonRequest(t, http.MethodPost, "/api/payouts/execute", identityFor(admin),
		map[string]any{"user_ids": []int64{kid.ID}}, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var results []executeResult
	decodeJSON(t, rec, &results)
	if len(results) != 1 || results[0].Payout == nil || results[0].Payout.UserID != kid.ID {
		t.Fatalf("results = %+v, want one payout for kid", results)
	}

	// The other user's points are untouched.
	state, err := e.payouts.State(other.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != nil {
		t.Errorf("other user's watermark = %+v, want none", state)
	}
}

func TestPayoutExecuteUnknownUser(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)

	h := newPayoutHandler(e, time.Now())
	rec := httptest.NewRecorder()
	h.Execute(rec, jsonRequest(t, http.MethodPost, "/api/payouts/execute", identityFor(admin),
		map[string]any{"user_ids": []int64{999}}, ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPayoutHistoryFilter(t *testing.T) {
	e := newTestEnv(t)
	e.mustSettings(t, 10)
	admin := e.mustUser(t, "admin", model.RoleAdmin)
	kid := e.mustUser(t, "kid", model.RoleUser)
	e.mustAward(t, kid.ID, admin.ID, 10)

	h := newPayoutHandler(e, time.Now().Add(time.Minute))
	rec := httptest.NewRecorder()
	h.Execute(rec, jsonRequest(t, http.MethodPost, "/api/payouts/execute", identityFor(admin), nil, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.History(rec, jsonRequest(t, http.MethodGet, "/api/payouts?user_id=999", identityFor(admin), nil, ""))
	var history []model.Payout
	decodeJSON(t, rec, &history)
	if len(history) != 0 {
		t.Errorf("history for unknown user = %d rows, want 0", len(history))
	}

	rec = httptest.NewRecorder()
	h.History(rec, jsonRequest(t, http.MethodGet, "/api/payouts", identityFor(admin), nil, ""))
	history = nil
	decodeJSON(t, rec, &history)
	if len(history) != 1 {
		t.Errorf("history = %d rows, want 1", len(history))
	}
}
