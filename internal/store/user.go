package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var active, darkMode, noPassword int
	var lastLogin sql.NullTime

	err := scanner.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role,
		&active, &u.PreferredLanguage, &darkMode, &noPassword,
		&u.CreatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}

	u.Active = active != 0
	u.PrefersDarkMode = darkMode != 0
	u.NoPasswordRequired = noPassword != 0
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

const userCols = `id, username, display_name, password_hash, role, active, preferred_language, prefers_dark_mode, no_password_required, created_at, last_login_at`

// Create inserts a new user with a bcrypt-hashed password. No-password
// users still get a hash of a throwaway secret so the column stays
// non-empty.
func (s *UserStore) Create(username, displayName, password string, role model.Role, noPasswordRequired bool) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	secret := password
	if noPasswordRequired && secret == "" {
		secret = fmt.Sprintf("disabled-%d", time.Now().UnixNano())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO users (username, display_name, password_hash, role, no_password_required) VALUES (?, ?, ?, ?, ?)`,
		username, displayName, string(hash), role, boolToInt(noPasswordRequired),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("username %q: %w", username, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// ListActive returns active users ordered by display name.
func (s *UserStore) ListActive() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users WHERE active = 1 ORDER BY display_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListNoPassword returns active users who may log in without a password.
func (s *UserStore) ListNoPassword() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users WHERE active = 1 AND no_password_required = 1 ORDER BY display_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list no-password users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type UserUpdate struct {
	DisplayName        *string
	Role               *model.Role
	Active             *bool
	PreferredLanguage  *string
	PrefersDarkMode    *bool
	NoPasswordRequired *bool
}

// Update applies the provided fields. Demoting or deactivating the last
// active admin is refused before any write.
func (s *UserStore) Update(id int64, upd UserUpdate) (*model.User, error) {
	u, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}

	demoting := upd.Role != nil && *upd.Role != model.RoleAdmin
	deactivating := upd.Active != nil && !*upd.Active
	if u.Role == model.RoleAdmin && u.Active && (demoting || deactivating) {
		if err := s.checkNotLastAdmin(); err != nil {
			return nil, err
		}
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", *upd.Role)
	}

	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.Active != nil {
		u.Active = *upd.Active
	}
	if upd.PreferredLanguage != nil {
		u.PreferredLanguage = *upd.PreferredLanguage
	}
	if upd.PrefersDarkMode != nil {
		u.PrefersDarkMode = *upd.PrefersDarkMode
	}
	if upd.NoPasswordRequired != nil {
		u.NoPasswordRequired = *upd.NoPasswordRequired
	}

	_, err = s.db.Exec(
		`UPDATE users SET display_name = ?, role = ?, active = ?, preferred_language = ?, prefers_dark_mode = ?, no_password_required = ? WHERE id = ?`,
		u.DisplayName, u.Role, boolToInt(u.Active), u.PreferredLanguage,
		boolToInt(u.PrefersDarkMode), boolToInt(u.NoPasswordRequired), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

// Deactivate soft-deletes a user, refusing to remove the last admin.
func (s *UserStore) Deactivate(id int64) error {
	u, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if u == nil {
		return sql.ErrNoRows
	}
	if u.Role == model.RoleAdmin && u.Active {
		if err := s.checkNotLastAdmin(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(`UPDATE users SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

func (s *UserStore) checkNotLastAdmin() error {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = 'admin' AND active = 1`).Scan(&count)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// VerifyPassword checks a candidate password against the stored hash.
func (s *UserStore) VerifyPassword(u *model.User, password string) bool {
	if u.NoPasswordRequired && password == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (s *UserStore) SetPassword(id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (s *UserStore) TouchLastLogin(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func (s *UserStore) SetPreferredLanguage(id int64, lang string) error {
	_, err := s.db.Exec(`UPDATE users SET preferred_language = ? WHERE id = ?`, lang, id)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

func (s *UserStore) SetPrefersDarkMode(id int64, dark bool) error {
	_, err := s.db.Exec(`UPDATE users SET prefers_dark_mode = ? WHERE id = ?`, boolToInt(dark), id)
	if err != nil {
		return fmt.Errorf("set dark mode: %w", err)
	}
	return nil
}
