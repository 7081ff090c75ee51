package models

import (
	"time"

	"github.com/amirphl/kargo/utils"
	"gorm.io/gorm"
)

// PricingConfig is the rate/surcharge configuration consumed by the pricing engine.
// Rows are versioned; exactly one row is active and older versions are kept.
type PricingConfig struct {
	ID                         uint               `gorm:"primaryKey" json:"id"`
	Version                    int                `gorm:"not null;uniqueIndex:uk_pricing_configs_version" json:"version"`
	IsActive                   bool               `gorm:"not null;default:false;index:idx_pricing_configs_active" json:"is_active"`
	Currency                   string             `gorm:"size:3;not null" json:"currency"`
	DefaultRatePerKg           float64            `gorm:"type:numeric(12,4);not null" json:"default_rate_per_kg"`
	DefaultRatePerM3           float64            `gorm:"type:numeric(12,4);not null" json:"default_rate_per_m3"`
	VolumetricWeightRatios     ModeRatios         `gorm:"type:jsonb;not null" json:"volumetric_weight_ratios"`
	UseVolumetricWeightPerMode ModeFlags          `gorm:"type:jsonb;not null" json:"use_volumetric_weight_per_mode"`
	TransportMultipliers       ModeRatios         `gorm:"type:jsonb;not null" json:"transport_multipliers"`
	CargoTypeSurcharges        CargoSurcharges    `gorm:"type:jsonb;not null" json:"cargo_type_surcharges"`
	PrioritySurcharges         PrioritySurcharges `gorm:"type:jsonb;not null" json:"priority_surcharges"`
	DeliverySpeedsPerMode      DeliverySpeeds     `gorm:"type:jsonb;not null" json:"delivery_speeds_per_mode"`
	UpdatedByID                *uint              `gorm:"index:idx_pricing_configs_updated_by" json:"updated_by_id,omitempty"`
	CreatedAt                  time.Time          `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                  time.Time          `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PricingConfig) TableName() string {
	return "pricing_configs"
}

func (p *PricingConfig) BeforeCreate(tx *gorm.DB) error {
	if p.Currency == "" {
		p.Currency = utils.DefaultCurrency
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return nil
}

// PricingConfigFilter represents filter criteria for pricing config queries
type PricingConfigFilter struct {
	ID       *uint
	Version  *int
	IsActive *bool
}
