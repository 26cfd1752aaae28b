package models

import "gorm.io/gorm"

// Roles a user account can have.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a user in the system.
type User struct {
	gorm.Model
	Nickname     string `gorm:"size:255;unique;not null"`
	Email        string `gorm:"size:255;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         string `gorm:"size:50;not null;default:'user';index"`
}

// SecurityLevel maps the role onto the permission levels lobbies check.
func (u User) SecurityLevel() int {
	if u.Role == RoleAdmin {
		return 10
	}
	return 0
}
