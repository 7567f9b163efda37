package models

import (
	"time"

	"wallet-ledger/internal/domain"

	"gorm.io/gorm"
)

// User is the slice of the platform account the ledger needs: identity and role.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role      string         `gorm:"size:20;not null;index" json:"role"` // USER | ADMIN | PLATFORM
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool    { return u.Role == domain.RoleAdmin }
func (u *User) IsPlatform() bool { return u.Role == domain.RolePlatform }
