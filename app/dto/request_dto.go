package dto

import "time"

// ContactDetails identifies the person behind a pickup or purchase request
type ContactDetails struct {
	ContactName  string  `json:"contact_name" validate:"required,min=2,max=255"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email,max=255"`
	ContactPhone string  `json:"contact_phone" validate:"required,min=6,max=32"`
}

// CreatePickupRequestRequest asks for goods to be collected
type CreatePickupRequestRequest struct {
	ContactDetails
	PickupAddress      string     `json:"pickup_address" validate:"required,max=500"`
	PickupCity         string     `json:"pickup_city" validate:"required,max=100"`
	PickupCountry      string     `json:"pickup_country" validate:"required,country_code"`
	DestinationCountry *string    `json:"destination_country,omitempty" validate:"omitempty,country_code"`
	CargoDescription   string     `json:"cargo_description" validate:"required,max=1000"`
	CargoType          string     `json:"cargo_type" validate:"required,cargo_type"`
	PackageCount       int        `json:"package_count" validate:"required,gte=1"`
	EstimatedWeight    *float64   `json:"estimated_weight,omitempty" validate:"omitempty,gt=0"`
	PreferredDate      *time.Time `json:"preferred_date,omitempty"`
}

// SchedulePickupRequest fixes the collection date
type SchedulePickupRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
	Note          *string   `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// PickupRequestDTO is a pickup request as seen by its owner or by staff
type PickupRequestDTO struct {
	UUID               string   `json:"uuid"`
	RequestNumber      string   `json:"request_number"`
	Status             string   `json:"status"`
	UserID             *uint    `json:"user_id,omitempty"`
	ContactName        string   `json:"contact_name"`
	ContactEmail       *string  `json:"contact_email,omitempty"`
	ContactPhone       string   `json:"contact_phone"`
	PickupAddress      string   `json:"pickup_address"`
	PickupCity         string   `json:"pickup_city"`
	PickupCountry      string   `json:"pickup_country"`
	DestinationCountry *string  `json:"destination_country,omitempty"`
	CargoDescription   string   `json:"cargo_description"`
	CargoType          string   `json:"cargo_type"`
	PackageCount       int      `json:"package_count"`
	EstimatedWeight    *float64 `json:"estimated_weight,omitempty"`
	PreferredDate      *string  `json:"preferred_date,omitempty"`
	ScheduledDate      *string  `json:"scheduled_date,omitempty"`
	CompletedAt        *string  `json:"completed_at,omitempty"`
	CancellationReason *string  `json:"cancellation_reason,omitempty"`
	CancelledAt        *string  `json:"cancelled_at,omitempty"`
	AvailableActions   []string `json:"available_actions"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// CreatePurchaseRequestRequest asks the forwarder to buy and ship a product
type CreatePurchaseRequestRequest struct {
	ContactDetails
	ProductName          string   `json:"product_name" validate:"required,max=255"`
	ProductURL           *string  `json:"product_url,omitempty" validate:"omitempty,url,max=2048"`
	ProductDescription   *string  `json:"product_description,omitempty" validate:"omitempty,max=2000"`
	Quantity             int      `json:"quantity" validate:"required,gte=1"`
	EstimatedProductCost *float64 `json:"estimated_product_cost,omitempty" validate:"omitempty,gte=0"`
	DeliveryAddress      string   `json:"delivery_address" validate:"required,max=500"`
	DeliveryCity         string   `json:"delivery_city" validate:"required,max=100"`
	DeliveryCountry      string   `json:"delivery_country" validate:"required,country_code"`
}

// CompletePurchaseRequest records the final costs of a delivered purchase
type CompletePurchaseRequest struct {
	ActualProductCost float64 `json:"actual_product_cost" validate:"gte=0"`
	DeliveryCost      float64 `json:"delivery_cost" validate:"gte=0"`
	Note              *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// PurchaseRequestDTO is a purchase request as seen by its owner or by staff
type PurchaseRequestDTO struct {
	UUID                 string   `json:"uuid"`
	RequestNumber        string   `json:"request_number"`
	Status               string   `json:"status"`
	UserID               *uint    `json:"user_id,omitempty"`
	ContactName          string   `json:"contact_name"`
	ContactEmail         *string  `json:"contact_email,omitempty"`
	ContactPhone         string   `json:"contact_phone"`
	ProductName          string   `json:"product_name"`
	ProductURL           *string  `json:"product_url,omitempty"`
	ProductDescription   *string  `json:"product_description,omitempty"`
	Quantity             int      `json:"quantity"`
	EstimatedProductCost *float64 `json:"estimated_product_cost,omitempty"`
	DeliveryAddress      string   `json:"delivery_address"`
	DeliveryCity         string   `json:"delivery_city"`
	DeliveryCountry      string   `json:"delivery_country"`
	ActualProductCost    *float64 `json:"actual_product_cost,omitempty"`
	DeliveryCost         *float64 `json:"delivery_cost,omitempty"`
	ServiceFee           *float64 `json:"service_fee,omitempty"`
	TotalCost            *float64 `json:"total_cost,omitempty"`
	Currency             string   `json:"currency"`
	TreatmentStartedAt   *string  `json:"treatment_started_at,omitempty"`
	TreatmentComment     *string  `json:"treatment_comment,omitempty"`
	DeliveredAt          *string  `json:"delivered_at,omitempty"`
	CancellationReason   *string  `json:"cancellation_reason,omitempty"`
	CancelledAt          *string  `json:"cancelled_at,omitempty"`
	AvailableActions     []string `json:"available_actions"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

// ListRequestsRequest filters pickup or purchase requests. Clients only ever see their own.
type ListRequestsRequest struct {
	Status   *string `json:"status,omitempty"`
	UserID   *uint   `json:"user_id,omitempty"`
	Page     uint    `json:"page,omitempty"`
	PageSize uint    `json:"page_size,omitempty"`
}

// ListPickupRequestsResponse is one page of pickup requests, newest first
type ListPickupRequestsResponse struct {
	Items      []PickupRequestDTO `json:"items"`
	Pagination PaginationInfo     `json:"pagination"`
}

// ListPurchaseRequestsResponse is one page of purchase requests, newest first
type ListPurchaseRequestsResponse struct {
	Items      []PurchaseRequestDTO `json:"items"`
	Pagination PaginationInfo       `json:"pagination"`
}

// CaptchaAnswer is the solved rotate challenge attached to guest submissions
type CaptchaAnswer struct {
	CaptchaID    string  `json:"captcha_id" validate:"required"`
	CaptchaAngle float64 `json:"captcha_angle" validate:"gte=0,lte=360"`
}

// GuestPickupRequest is an anonymous pickup submission
type GuestPickupRequest struct {
	CaptchaAnswer
	CreatePickupRequestRequest
}

// GuestPurchaseRequest is an anonymous purchase submission
type GuestPurchaseRequest struct {
	CaptchaAnswer
	CreatePurchaseRequestRequest
}

// GuestSubmissionResponse returns the token a guest uses to follow the request
type GuestSubmissionResponse struct {
	RequestNumber  string `json:"request_number"`
	Status         string `json:"status"`
	TrackingToken  string `json:"tracking_token"`
	TokenExpiresAt string `json:"token_expires_at"`
}

// GuestTimelineEntry is one status change visible to a guest
type GuestTimelineEntry struct {
	Status string `json:"status"`
	At     string `json:"at"`
}

// GuestRequestView is the sanitized view of a request followed with a guest token
type GuestRequestView struct {
	Kind          string               `json:"kind"`
	RequestNumber string               `json:"request_number"`
	Status        string               `json:"status"`
	CreatedAt     string               `json:"created_at"`
	Timeline      []GuestTimelineEntry `json:"timeline"`
}

// CaptchaChallengeResponse is a rotate captcha challenge
type CaptchaChallengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	MasterImage string `json:"master_image"`
	ThumbImage  string `json:"thumb_image"`
	ThumbSize   int    `json:"thumb_size"`
}
