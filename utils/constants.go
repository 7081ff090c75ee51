package utils

import (
	"time"
)

// Token time constants
const (
	// GuestTrackingTokenTTL is how long a guest can follow a pickup/purchase request (72 hours)
	GuestTrackingTokenTTL = 72 * time.Hour

	// ProspectInvitationTTL is the validity of a prospect invitation (7 days)
	ProspectInvitationTTL = 7 * 24 * time.Hour
)

// Business constants
const (
	// DefaultCurrency is used when the pricing configuration carries none
	DefaultCurrency = "XOF"

	// PurchaseServiceFeeRate is the share of the actual product cost charged as service fee (15%)
	PurchaseServiceFeeRate = 0.15

	// PurchaseServiceFeeFloor is the minimum service fee for a purchase request
	PurchaseServiceFeeFloor = 5000.0

	// QuoteValidity is how long a sent quote can be accepted
	QuoteValidity = 30 * 24 * time.Hour

	// MinReasonLength is the minimum length of a rejection/cancellation reason
	MinReasonLength = 10

	// MaxSequenceValue is the largest NNNNN suffix of a daily sequence number
	MaxSequenceValue = 99999
)

// Sequence number prefixes
const (
	QuoteNumberPrefix    = "QT"
	PickupNumberPrefix   = "PU"
	PurchaseNumberPrefix = "PR"
	TrackingNumberPrefix = "TRK"
)

// Cache keys
const (
	ActivePricingConfigCacheKey = "pricing_config:active"
	CaptchaChallengeCacheKey    = "captcha:"
)
