package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Prospect is the contact behind guest submissions. It is matched to a user by email or phone.
type Prospect struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UUID                uuid.UUID  `gorm:"type:uuid;uniqueIndex:uk_prospects_uuid;not null" json:"uuid"`
	FullName            string     `gorm:"size:255;not null" json:"full_name"`
	Email               *string    `gorm:"size:255;index:idx_prospects_email" json:"email,omitempty"`
	Phone               *string    `gorm:"size:32;index:idx_prospects_phone" json:"phone,omitempty"`
	InvitationTokenHash *string    `gorm:"size:255" json:"-"`
	InvitationExpiresAt *time.Time `json:"invitation_expires_at,omitempty"`
	InvitedAt           *time.Time `json:"invited_at,omitempty"`
	InvitedByID         *uint      `json:"invited_by_id,omitempty"`
	ConvertedUserID     *uint      `gorm:"index:idx_prospects_converted_user_id" json:"converted_user_id,omitempty"`
	ConvertedAt         *time.Time `json:"converted_at,omitempty"`
	CreatedAt           time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Prospect) TableName() string {
	return "prospects"
}

func (p *Prospect) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	return nil
}

func (p *Prospect) IsConverted() bool {
	return p.ConvertedUserID != nil
}

// ProspectFilter represents filter criteria for prospect queries
type ProspectFilter struct {
	ID        *uint
	UUID      *uuid.UUID
	Email     *string
	Phone     *string
	Converted *bool
}
