package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/database"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/store"
)

type testEnv struct {
	db          *sql.DB
	users       *store.UserStore
	settings    *store.SettingsStore
	tasks       *store.TaskStore
	completions *store.CompletionStore
	ledger      *store.LedgerStore
	payouts     *store.PayoutStore
	rewards     *store.RewardStore
	logger      *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		db:          db,
		users:       store.NewUserStore(db),
		settings:    store.NewSettingsStore(db),
		tasks:       store.NewTaskStore(db),
		completions: store.NewCompletionStore(db),
		ledger:      store.NewLedgerStore(db),
		payouts:     store.NewPayoutStore(db),
		rewards:     store.NewRewardStore(db),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *testEnv) mustUser(t *testing.T, username string, role model.Role) *model.User {
	t.Helper()
	u, err := e.users.Create(username, username, "secret123", role, false)
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func (e *testEnv) mustSettings(t *testing.T, rateCents int64) {
	t.Helper()
	tz := "UTC"
	if _, err := e.settings.Save(store.SettingsUpdate{Timezone: &tz, RateCents: &rateCents}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
}

func identityFor(u *model.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}
}

// jsonRequest builds a request carrying the given identity and an
// optional JSON body. pathID, when nonempty, populates the {id} path
// value the way the mux would.
func jsonRequest(t *testing.T, method, target string, id auth.Identity, body any, pathID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
