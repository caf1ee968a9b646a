package model

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	DisplayName        string     `json:"display_name"`
	PasswordHash       string     `json:"-"`
	Role               Role       `json:"role"`
	Active             bool       `json:"active"`
	PreferredLanguage  string     `json:"preferred_language"`
	PrefersDarkMode    bool       `json:"prefers_dark_mode"`
	NoPasswordRequired bool       `json:"no_password_required"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}
