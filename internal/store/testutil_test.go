package store

import (
	"database/sql"
	"testing"

	"github.com/cwinters/pocketmoney/internal/database"
	"github.com/cwinters/pocketmoney/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateUser(t *testing.T, us *UserStore, username string, role model.Role) *model.User {
	t.Helper()
	u, err := us.Create(username, username, "secret123", role, false)
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}
