package models

import (
	"strings"
	"time"

	"github.com/amirphl/kargo/utils"
	"gorm.io/gorm"
)

// TransportRate is the negotiated rate for one route and transport mode
type TransportRate struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	OriginCountry      string        `gorm:"size:2;not null;uniqueIndex:uk_transport_rates_route_mode,priority:1" json:"origin_country"`
	DestinationCountry string        `gorm:"size:2;not null;uniqueIndex:uk_transport_rates_route_mode,priority:2" json:"destination_country"`
	TransportMode      TransportMode `gorm:"type:varchar(16);not null;uniqueIndex:uk_transport_rates_route_mode,priority:3" json:"transport_mode"`
	RatePerKg          float64       `gorm:"type:numeric(12,4);not null" json:"rate_per_kg"`
	RatePerM3          float64       `gorm:"type:numeric(12,4);not null;default:0" json:"rate_per_m3"`
	Notes              *string       `gorm:"type:text" json:"notes,omitempty"`
	IsActive           *bool         `gorm:"default:true;index:idx_transport_rates_active" json:"is_active"`
	CreatedAt          time.Time     `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TransportRate) TableName() string {
	return "transport_rates"
}

func (r *TransportRate) BeforeCreate(tx *gorm.DB) error {
	r.OriginCountry = strings.ToUpper(r.OriginCountry)
	r.DestinationCountry = strings.ToUpper(r.DestinationCountry)
	if r.IsActive == nil {
		r.IsActive = utils.ToPtr(true)
	}
	return nil
}

// RateKey identifies a route and transport mode
type RateKey struct {
	OriginCountry      string
	DestinationCountry string
	TransportMode      TransportMode
}

// Key returns the lookup key of the rate
func (r *TransportRate) Key() RateKey {
	return RateKey{
		OriginCountry:      strings.ToUpper(r.OriginCountry),
		DestinationCountry: strings.ToUpper(r.DestinationCountry),
		TransportMode:      r.TransportMode,
	}
}

// TransportRateFilter represents filter criteria for transport rate queries
type TransportRateFilter struct {
	ID                 *uint
	OriginCountry      *string
	DestinationCountry *string
	TransportMode      *TransportMode
	IsActive           *bool
}
