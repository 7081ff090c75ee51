package dto

// PackageLineRequest is one line of a quote request: Quantity identical units.
// Dimensions are in centimetres and only count when all three are given.
type PackageLineRequest struct {
	Description string   `json:"description" validate:"max=255"`
	Quantity    int      `json:"quantity" validate:"required,gte=1"`
	CargoType   string   `json:"cargo_type" validate:"required,cargo_type"`
	Weight      float64  `json:"weight" validate:"required,gt=0"`
	Length      *float64 `json:"length,omitempty" validate:"omitempty,gt=0"`
	Width       *float64 `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height      *float64 `json:"height,omitempty" validate:"omitempty,gt=0"`
}

// QuoteEstimateRequest asks for a price without persisting anything
type QuoteEstimateRequest struct {
	OriginCountry      string               `json:"origin_country" validate:"required,country_code"`
	OriginCity         *string              `json:"origin_city,omitempty" validate:"omitempty,max=100"`
	DestinationCountry string               `json:"destination_country" validate:"required,country_code"`
	DestinationCity    *string              `json:"destination_city,omitempty" validate:"omitempty,max=100"`
	TransportModes     []string             `json:"transport_modes" validate:"required,min=1,dive,transport_mode"`
	Priority           string               `json:"priority" validate:"required,priority"`
	Packages           []PackageLineRequest `json:"packages" validate:"required,min=1,dive"`
}

// EstimateLineDTO is the priced counterpart of a package line
type EstimateLineDTO struct {
	Description    string  `json:"description"`
	Quantity       int     `json:"quantity"`
	CargoType      string  `json:"cargo_type"`
	Weight         float64 `json:"weight"`
	BillableWeight float64 `json:"billable_weight"`
	RatePerKg      float64 `json:"rate_per_kg"`
	UnitPrice      float64 `json:"unit_price"`
	LineTotal      float64 `json:"line_total"`
}

// QuoteEstimateResponse is the priced result of an estimate request
type QuoteEstimateResponse struct {
	Lines                    []EstimateLineDTO `json:"lines"`
	TransportModes           []string          `json:"transport_modes"`
	RatingMode               string            `json:"rating_mode"`
	Priority                 string            `json:"priority"`
	PrioritySurcharge        float64           `json:"priority_surcharge"`
	TotalWeight              float64           `json:"total_weight"`
	TotalBillableWeight      float64           `json:"total_billable_weight"`
	TotalPackageCount        int               `json:"total_package_count"`
	TotalBeforePriority      float64           `json:"total_before_priority"`
	TotalPrice               float64           `json:"total_price"`
	DominantCargoType        string            `json:"dominant_cargo_type"`
	EstimatedDeliveryDays    int               `json:"estimated_delivery_days"`
	EstimatedDeliveryDaysMin int               `json:"estimated_delivery_days_min"`
	Currency                 string            `json:"currency"`
	PricingConfigVersion     int               `json:"pricing_config_version"`
}

// CreateQuoteRequest persists a priced quote for the caller.
// SaveAsDraft keeps the quote in DRAFT until the owner submits it.
type CreateQuoteRequest struct {
	QuoteEstimateRequest
	SaveAsDraft bool `json:"save_as_draft,omitempty"`
}

// QuoteDTO is a quote as seen by its owner or by staff
type QuoteDTO struct {
	UUID                   string               `json:"uuid"`
	QuoteNumber            string               `json:"quote_number"`
	Status                 string               `json:"status"`
	ClientID               uint                 `json:"client_id"`
	CompanyID              *uint                `json:"company_id,omitempty"`
	OriginCountry          string               `json:"origin_country"`
	OriginCity             *string              `json:"origin_city,omitempty"`
	DestinationCountry     string               `json:"destination_country"`
	DestinationCity        *string              `json:"destination_city,omitempty"`
	TransportModes         []string             `json:"transport_modes"`
	Priority               string               `json:"priority"`
	Packages               []PackageLineRequest `json:"packages"`
	Lines                  []EstimateLineDTO    `json:"lines"`
	TotalWeight            float64              `json:"total_weight"`
	TotalPackageCount      int                  `json:"total_package_count"`
	DominantCargoType      string               `json:"dominant_cargo_type"`
	TotalBeforePriority    float64              `json:"total_before_priority"`
	EstimatedCost          float64              `json:"estimated_cost"`
	EstimatedDeliveryDays  int                  `json:"estimated_delivery_days"`
	Currency               string               `json:"currency"`
	PricingConfigVersion   int                  `json:"pricing_config_version"`
	PaymentMethod          *string              `json:"payment_method,omitempty"`
	SentAt                 *string              `json:"sent_at,omitempty"`
	ValidUntil             *string              `json:"valid_until,omitempty"`
	AcceptedAt             *string              `json:"accepted_at,omitempty"`
	RejectionReason        *string              `json:"rejection_reason,omitempty"`
	TreatmentStartedAt     *string              `json:"treatment_started_at,omitempty"`
	TreatmentComment       *string              `json:"treatment_comment,omitempty"`
	ValidatedAt            *string              `json:"validated_at,omitempty"`
	PaymentReceivedAt      *string              `json:"payment_received_at,omitempty"`
	CancellationReason     *string              `json:"cancellation_reason,omitempty"`
	CancelledAt            *string              `json:"cancelled_at,omitempty"`
	ShipmentTrackingNumber *string              `json:"shipment_tracking_number,omitempty"`
	AvailableActions       []string             `json:"available_actions"`
	CreatedAt              string               `json:"created_at"`
	UpdatedAt              string               `json:"updated_at"`
}

// ListQuotesRequest filters quotes. Clients only ever see their own.
type ListQuotesRequest struct {
	Status   *string `json:"status,omitempty"`
	ClientID *uint   `json:"client_id,omitempty"`
	Page     uint    `json:"page,omitempty"`
	PageSize uint    `json:"page_size,omitempty"`
}

// ListQuotesResponse is one page of quotes, newest first
type ListQuotesResponse struct {
	Items      []QuoteDTO     `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// AcceptQuoteRequest carries the payment method chosen by the client
type AcceptQuoteRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,payment_method"`
}

// StartTreatmentRequest carries the optional agent comment
type StartTreatmentRequest struct {
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// ValidateQuoteRequest finalizes a quote and registers its shipment
type ValidateQuoteRequest struct {
	PackageCount     int     `json:"package_count" validate:"required,gte=1"`
	CargoDescription *string `json:"cargo_description,omitempty" validate:"omitempty,max=1000"`
	Comment          *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
	// HoldUnpublished keeps the shipment in DRAFT, off the public tracking page, until it is published
	HoldUnpublished bool `json:"hold_unpublished,omitempty"`
}

// ValidateQuoteResponse returns the validated quote and the shipment created with it
type ValidateQuoteResponse struct {
	Quote    QuoteDTO    `json:"quote"`
	Shipment ShipmentDTO `json:"shipment"`
}

// ChangePaymentMethodRequest replaces the payment method of an accepted quote
type ChangePaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,payment_method"`
}
