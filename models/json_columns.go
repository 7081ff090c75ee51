package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ModeRatios maps a transport mode to a numeric factor (volumetric ratio, multiplier)
type ModeRatios map[TransportMode]float64

// ModeFlags maps a transport mode to an on/off switch
type ModeFlags map[TransportMode]bool

// CargoSurcharges maps a cargo type to a multiplicative coefficient (0.5 = +50%)
type CargoSurcharges map[CargoType]float64

// PrioritySurcharges maps a priority to a multiplicative coefficient applied once per order
type PrioritySurcharges map[Priority]float64

// DeliverySpeed is a transit-time range in days
type DeliverySpeed struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DeliverySpeeds maps a transport mode to its transit-time range
type DeliverySpeeds map[TransportMode]DeliverySpeed

func (m *ModeRatios) Scan(value any) error { return scanJSON(m, value) }

func (m ModeRatios) Value() (driver.Value, error) { return valueJSON(m) }

func (m *ModeFlags) Scan(value any) error { return scanJSON(m, value) }

func (m ModeFlags) Value() (driver.Value, error) { return valueJSON(m) }

func (m *CargoSurcharges) Scan(value any) error { return scanJSON(m, value) }

func (m CargoSurcharges) Value() (driver.Value, error) { return valueJSON(m) }

func (m *PrioritySurcharges) Scan(value any) error { return scanJSON(m, value) }

func (m PrioritySurcharges) Value() (driver.Value, error) { return valueJSON(m) }

func (m *DeliverySpeeds) Scan(value any) error { return scanJSON(m, value) }

func (m DeliverySpeeds) Value() (driver.Value, error) { return valueJSON(m) }

// QuotePackageLine is one line of a quote request: quantity identical units
type QuotePackageLine struct {
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	CargoType   CargoType `json:"cargo_type"`
	Weight      float64   `json:"weight"`
	Length      *float64  `json:"length,omitempty"`
	Width       *float64  `json:"width,omitempty"`
	Height      *float64  `json:"height,omitempty"`
}

// QuotePackages is the jsonb list of package lines stored on a quote
type QuotePackages []QuotePackageLine

func (p *QuotePackages) Scan(value any) error { return scanJSON(p, value) }

func (p QuotePackages) Value() (driver.Value, error) { return valueJSON(p) }

// QuoteEstimateLine is the priced counterpart of a package line
type QuoteEstimateLine struct {
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity"`
	CargoType      CargoType `json:"cargo_type"`
	Weight         float64   `json:"weight"`
	BillableWeight float64   `json:"billable_weight"`
	RatePerKg      float64   `json:"rate_per_kg"`
	UnitPrice      float64   `json:"unit_price"`
	LineTotal      float64   `json:"line_total"`
}

// QuoteEstimateLines is the jsonb price breakdown stored on a quote
type QuoteEstimateLines []QuoteEstimateLine

func (l *QuoteEstimateLines) Scan(value any) error { return scanJSON(l, value) }

func (l QuoteEstimateLines) Value() (driver.Value, error) { return valueJSON(l) }

func scanJSON(dst any, value any) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dst)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func valueJSON(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
