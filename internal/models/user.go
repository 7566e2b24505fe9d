package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleViewer:
		return true
	}
	return false
}

// User is an operator profile. The WhatsApp fields are the per-user consent
// settings the dispatcher consults before delivering to a personal number:
// the saved phone overrides whatever phone a channel row carries.
type User struct {
	gorm.Model
	OrgID         uint   `json:"org_id" gorm:"index"`
	Username      string `gorm:"uniqueIndex;not null" json:"username"`
	Password      string `gorm:"not null" json:"-"`
	FullName      string `json:"full_name"`
	Role          Role   `gorm:"not null;default:viewer" json:"role"`
	Email         string `gorm:"uniqueIndex" json:"email"`
	ApiKey        string `gorm:"uniqueIndex" json:"-"`
	IsActive      bool   `gorm:"default:true" json:"is_active"`
	WhatsAppOptIn bool   `gorm:"default:false" json:"whatsapp_opt_in"`
	WhatsAppPhone string `json:"whatsapp_phone"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// CanManageAlerts reports whether the user may acknowledge, resolve or
// dismiss alerts. Viewers are read-only.
func (u *User) CanManageAlerts() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}
