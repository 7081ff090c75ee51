// Package models contains domain entities and persistence models for the freight-forwarding backend
package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// TransportMode is the carriage mode of a quote or shipment
type TransportMode string

const (
	TransportModeRoad TransportMode = "ROAD"
	TransportModeSea  TransportMode = "SEA"
	TransportModeAir  TransportMode = "AIR"
	TransportModeRail TransportMode = "RAIL"
)

// AllTransportModes lists every transport mode in display order
var AllTransportModes = []TransportMode{TransportModeRoad, TransportModeSea, TransportModeAir, TransportModeRail}

func (m TransportMode) String() string { return string(m) }

func (m TransportMode) Valid() bool {
	switch m {
	case TransportModeRoad, TransportModeSea, TransportModeAir, TransportModeRail:
		return true
	}
	return false
}

func (m *TransportMode) Scan(value any) error { return scanEnum(m, value, "TransportMode") }

func (m TransportMode) Value() (driver.Value, error) { return valueEnum(m, m.Valid(), "TransportMode") }

// ParseTransportMode converts user input into a TransportMode, rejecting unknown values
func ParseTransportMode(s string) (TransportMode, error) {
	m := TransportMode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown transport mode %q", s)
	}
	return m, nil
}

// CargoType classifies goods for surcharge purposes
type CargoType string

const (
	CargoTypeGeneral     CargoType = "GENERAL"
	CargoTypeFragile     CargoType = "FRAGILE"
	CargoTypeDangerous   CargoType = "DANGEROUS"
	CargoTypePerishable  CargoType = "PERISHABLE"
	CargoTypeElectronics CargoType = "ELECTRONICS"
	CargoTypeOversized   CargoType = "OVERSIZED"
	CargoTypeBulk        CargoType = "BULK"
)

var AllCargoTypes = []CargoType{
	CargoTypeGeneral, CargoTypeFragile, CargoTypeDangerous, CargoTypePerishable,
	CargoTypeElectronics, CargoTypeOversized, CargoTypeBulk,
}

func (c CargoType) String() string { return string(c) }

func (c CargoType) Valid() bool {
	switch c {
	case CargoTypeGeneral, CargoTypeFragile, CargoTypeDangerous, CargoTypePerishable,
		CargoTypeElectronics, CargoTypeOversized, CargoTypeBulk:
		return true
	}
	return false
}

func (c *CargoType) Scan(value any) error { return scanEnum(c, value, "CargoType") }

func (c CargoType) Value() (driver.Value, error) { return valueEnum(c, c.Valid(), "CargoType") }

func ParseCargoType(s string) (CargoType, error) {
	c := CargoType(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown cargo type %q", s)
	}
	return c, nil
}

// Priority is the requested delivery urgency
type Priority string

const (
	PriorityEconomy  Priority = "ECONOMY"
	PriorityStandard Priority = "STANDARD"
	PriorityExpress  Priority = "EXPRESS"
	PriorityUrgent   Priority = "URGENT"
)

var AllPriorities = []Priority{PriorityEconomy, PriorityStandard, PriorityExpress, PriorityUrgent}

func (p Priority) String() string { return string(p) }

func (p Priority) Valid() bool {
	switch p {
	case PriorityEconomy, PriorityStandard, PriorityExpress, PriorityUrgent:
		return true
	}
	return false
}

func (p *Priority) Scan(value any) error { return scanEnum(p, value, "Priority") }

func (p Priority) Value() (driver.Value, error) { return valueEnum(p, p.Valid(), "Priority") }

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// PaymentMethod is the settlement method chosen by the client on acceptance
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodOnDelivery   PaymentMethod = "ON_DELIVERY"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentMethodCash, PaymentMethodOnDelivery, PaymentMethodBankTransfer:
		return true
	}
	return false
}

func (p *PaymentMethod) Scan(value any) error { return scanEnum(p, value, "PaymentMethod") }

func (p PaymentMethod) Value() (driver.Value, error) { return valueEnum(p, p.Valid(), "PaymentMethod") }

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	p := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return p, nil
}

// EntityType names the workflow entity a status history row belongs to
type EntityType string

const (
	EntityTypeQuote           EntityType = "quote"
	EntityTypePickupRequest   EntityType = "pickup_request"
	EntityTypePurchaseRequest EntityType = "purchase_request"
	EntityTypeShipment        EntityType = "shipment"
)

func (e EntityType) String() string { return string(e) }

func (e EntityType) Valid() bool {
	switch e {
	case EntityTypeQuote, EntityTypePickupRequest, EntityTypePurchaseRequest, EntityTypeShipment:
		return true
	}
	return false
}

func (e *EntityType) Scan(value any) error { return scanEnum(e, value, "EntityType") }

func (e EntityType) Value() (driver.Value, error) { return valueEnum(e, e.Valid(), "EntityType") }

func scanEnum[T ~string](dst *T, value any, name string) error {
	if value == nil {
		*dst = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*dst = T(v)
	case []byte:
		*dst = T(string(v))
	default:
		return fmt.Errorf("cannot scan %T into %s", value, name)
	}

	return nil
}

func valueEnum[T ~string](v T, valid bool, name string) (driver.Value, error) {
	if !valid {
		return nil, fmt.Errorf("invalid %s: %s", name, string(v))
	}
	return string(v), nil
}
