package dto

// DeliverySpeedDTO is a transit-time range in days
type DeliverySpeedDTO struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// UpdatePricingConfigRequest replaces the active pricing configuration with a new version.
// Map keys are transport modes, cargo types or priorities; unknown keys are rejected.
// ExpectedVersion, when set, must match the active version.
type UpdatePricingConfigRequest struct {
	ExpectedVersion            *int                        `json:"expected_version,omitempty" validate:"omitempty,gte=1"`
	Currency                   string                      `json:"currency" validate:"required,len=3"`
	DefaultRatePerKg           float64                     `json:"default_rate_per_kg" validate:"gt=0"`
	DefaultRatePerM3           float64                     `json:"default_rate_per_m3" validate:"gte=0"`
	VolumetricWeightRatios     map[string]float64          `json:"volumetric_weight_ratios" validate:"required"`
	UseVolumetricWeightPerMode map[string]bool             `json:"use_volumetric_weight_per_mode"`
	TransportMultipliers       map[string]float64          `json:"transport_multipliers" validate:"required"`
	CargoTypeSurcharges        map[string]float64          `json:"cargo_type_surcharges"`
	PrioritySurcharges         map[string]float64          `json:"priority_surcharges"`
	DeliverySpeedsPerMode      map[string]DeliverySpeedDTO `json:"delivery_speeds_per_mode" validate:"required"`
}

// PricingConfigResponse is one version of the pricing configuration
type PricingConfigResponse struct {
	Version                    int                         `json:"version"`
	IsActive                   bool                        `json:"is_active"`
	Currency                   string                      `json:"currency"`
	DefaultRatePerKg           float64                     `json:"default_rate_per_kg"`
	DefaultRatePerM3           float64                     `json:"default_rate_per_m3"`
	VolumetricWeightRatios     map[string]float64          `json:"volumetric_weight_ratios"`
	UseVolumetricWeightPerMode map[string]bool             `json:"use_volumetric_weight_per_mode"`
	TransportMultipliers       map[string]float64          `json:"transport_multipliers"`
	CargoTypeSurcharges        map[string]float64          `json:"cargo_type_surcharges"`
	PrioritySurcharges         map[string]float64          `json:"priority_surcharges"`
	DeliverySpeedsPerMode      map[string]DeliverySpeedDTO `json:"delivery_speeds_per_mode"`
	UpdatedByID                *uint                       `json:"updated_by_id,omitempty"`
	CreatedAt                  string                      `json:"created_at"`
	UpdatedAt                  string                      `json:"updated_at"`
}

// ListPricingConfigVersionsRequest pages through superseded configurations
type ListPricingConfigVersionsRequest struct {
	Page     uint `json:"page,omitempty"`
	PageSize uint `json:"page_size,omitempty"`
}

// ListPricingConfigVersionsResponse lists configuration versions, newest first
type ListPricingConfigVersionsResponse struct {
	Items      []PricingConfigResponse `json:"items"`
	Pagination PaginationInfo          `json:"pagination"`
}

// SaveTransportRateRequest creates or replaces the rate of a route and mode
type SaveTransportRateRequest struct {
	OriginCountry      string  `json:"origin_country" validate:"required,country_code"`
	DestinationCountry string  `json:"destination_country" validate:"required,country_code"`
	TransportMode      string  `json:"transport_mode" validate:"required,transport_mode"`
	RatePerKg          float64 `json:"rate_per_kg" validate:"gt=0"`
	RatePerM3          float64 `json:"rate_per_m3" validate:"gte=0"`
	Notes              *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
	IsActive           *bool   `json:"is_active,omitempty"`
}

// SetActiveRequest toggles an entity on or off
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// TransportRateDTO is a route rate
type TransportRateDTO struct {
	ID                 uint    `json:"id"`
	OriginCountry      string  `json:"origin_country"`
	DestinationCountry string  `json:"destination_country"`
	TransportMode      string  `json:"transport_mode"`
	RatePerKg          float64 `json:"rate_per_kg"`
	RatePerM3          float64 `json:"rate_per_m3"`
	Notes              *string `json:"notes,omitempty"`
	IsActive           bool    `json:"is_active"`
	UpdatedAt          string  `json:"updated_at"`
}

// ListTransportRatesRequest filters route rates
type ListTransportRatesRequest struct {
	OriginCountry      *string `json:"origin_country,omitempty"`
	DestinationCountry *string `json:"destination_country,omitempty"`
	TransportMode      *string `json:"transport_mode,omitempty"`
	IsActive           *bool   `json:"is_active,omitempty"`
	Page               uint    `json:"page,omitempty"`
	PageSize           uint    `json:"page_size,omitempty"`
}

// ListTransportRatesResponse is one page of route rates
type ListTransportRatesResponse struct {
	Items      []TransportRateDTO `json:"items"`
	Pagination PaginationInfo     `json:"pagination"`
}

// ImportRowError points at a workbook row that could not be imported
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportTransportRatesResponse summarizes a workbook import.
// Rows are imported all-or-nothing: any row error rejects the whole workbook.
type ImportTransportRatesResponse struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
}
