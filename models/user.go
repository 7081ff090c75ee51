package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the typed role of an authenticated actor
type Role string

const (
	RoleAdmin             Role = "ADMIN"
	RoleOperationsManager Role = "OPERATIONS_MANAGER"
	RoleFinanceManager    Role = "FINANCE_MANAGER"
	RoleClient            Role = "CLIENT"
)

var AllRoles = []Role{RoleAdmin, RoleOperationsManager, RoleFinanceManager, RoleClient}

func (r Role) String() string { return string(r) }

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperationsManager, RoleFinanceManager, RoleClient:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to the forwarder's own personnel
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleOperationsManager, RoleFinanceManager:
		return true
	}
	return false
}

// DisplayName maps every role to its label; unknown roles have no label
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleOperationsManager:
		return "Operations manager"
	case RoleFinanceManager:
		return "Finance manager"
	case RoleClient:
		return "Client"
	}
	return ""
}

func (r *Role) Scan(value any) error { return scanEnum(r, value, "Role") }

func (r Role) Value() (driver.Value, error) { return valueEnum(r, r.Valid(), "Role") }

// ParseRole rejects anything outside the known role set
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is an account known to the platform. Authentication is handled by the identity provider.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;uniqueIndex:uk_users_uuid;not null" json:"uuid"`
	Email     string    `gorm:"size:255;uniqueIndex:uk_users_email;not null" json:"email"`
	Phone     *string   `gorm:"size:32;index:idx_users_phone" json:"phone,omitempty"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Role      Role      `gorm:"type:varchar(32);not null;default:'CLIENT';index:idx_users_role" json:"role"`
	CompanyID *uint     `gorm:"index:idx_users_company_id" json:"company_id,omitempty"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleClient
	}
	if u.IsActive == nil {
		u.IsActive = utils.ToPtr(true)
	}
	return nil
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID        *uint
	UUID      *uuid.UUID
	Email     *string
	Phone     *string
	Role      *Role
	CompanyID *uint
	IsActive  *bool
}
