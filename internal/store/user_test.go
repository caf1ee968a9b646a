package store

import (
	"errors"
	"testing"

	"github.com/cwinters/pocketmoney/internal/model"
)

func TestUserCreateAndGet(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.Create("milo", "Milo", "hunter2secret", model.RoleUser, false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Username != "milo" {
		t.Errorf("username = %q, want %q", u.Username, "milo")
	}
	if u.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", u.Role, model.RoleUser)
	}
	if !u.Active {
		t.Error("expected new user to be active")
	}
	if u.PasswordHash == "hunter2secret" {
		t.Error("password stored in plaintext")
	}

	got, err := us.GetByUsername("milo")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("get by username = %+v, want id %d", got, u.ID)
	}

	missing, err := us.GetByID(9999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestUserDuplicateUsername(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	mustCreateUser(t, us, "milo", model.RoleUser)

	_, err := us.Create("milo", "Other Milo", "secret123", model.RoleUser, false)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username err = %v, want ErrConflict", err)
	}
}

func TestUserVerifyPassword(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.Create("milo", "Milo", "hunter2secret", model.RoleUser, false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !us.VerifyPassword(u, "hunter2secret") {
		t.Error("correct password rejected")
	}
	if us.VerifyPassword(u, "wrong") {
		t.Error("wrong password accepted")
	}
	if us.VerifyPassword(u, "") {
		t.Error("empty password accepted for password-required user")
	}
}

func TestUserNoPasswordLogin(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.Create("kid", "Kid", "", model.RoleUser, true)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !us.VerifyPassword(u, "") {
		t.Error("no-password user rejected with empty password")
	}

	list, err := us.ListNoPassword()
	if err != nil {
		t.Fatalf("list no-password users: %v", err)
	}
	if len(list) != 1 || list[0].Username != "kid" {
		t.Errorf("no-password list = %+v, want [kid]", list)
	}
}

func TestUserLastAdminGuard(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	admin := mustCreateUser(t, us, "mom", model.RoleAdmin)

	// Only admin: cannot deactivate or demote.
	if err := us.Deactivate(admin.ID); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("deactivate last admin err = %v, want ErrLastAdmin", err)
	}
	role := model.RoleUser
	if _, err := us.Update(admin.ID, UserUpdate{Role: &role}); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("demote last admin err = %v, want ErrLastAdmin", err)
	}

	// With a second admin both operations go through.
	mustCreateUser(t, us, "dad", model.RoleAdmin)
	updated, err := us.Update(admin.ID, UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("demote admin with backup: %v", err)
	}
	if updated.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", updated.Role, model.RoleUser)
	}
}

func TestUserUpdatePartial(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	u := mustCreateUser(t, us, "milo", model.RoleUser)

	name := "Milo T."
	dark := true
	updated, err := us.Update(u.ID, UserUpdate{DisplayName: &name, PrefersDarkMode: &dark})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DisplayName != "Milo T." {
		t.Errorf("display name = %q, want %q", updated.DisplayName, "Milo T.")
	}
	if !updated.PrefersDarkMode {
		t.Error("expected dark mode on")
	}
	// Untouched fields survive.
	if updated.Username != "milo" || updated.Role != model.RoleUser {
		t.Errorf("unrelated fields changed: %+v", updated)
	}
}

func TestUserDeactivateHidesFromList(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	mustCreateUser(t, us, "mom", model.RoleAdmin)
	u := mustCreateUser(t, us, "milo", model.RoleUser)

	if err := us.Deactivate(u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	list, err := us.ListActive()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, lu := range list {
		if lu.ID == u.ID {
			t.Error("deactivated user still listed")
		}
	}

	// The row itself survives for history.
	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get deactivated: %v", err)
	}
	if got == nil || got.Active {
		t.Errorf("deactivated user = %+v, want inactive row", got)
	}
}

func TestUserSetPassword(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	u := mustCreateUser(t, us, "milo", model.RoleUser)

	if err := us.SetPassword(u.ID, "newsecret99"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	got, err := us.GetByID(u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !us.VerifyPassword(got, "newsecret99") {
		t.Error("new password rejected")
	}
	if us.VerifyPassword(got, "secret123") {
		t.Error("old password still accepted")
	}
}
