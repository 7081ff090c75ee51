package testing

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/utils"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

func randomDigits(n int) string {
	return fmt.Sprintf("%0*d", n, rand.Int63n(pow10(n)))
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// CreateTestUser creates an active user with the given role and a random email
func (tf *TestFixtures) CreateTestUser(role models.Role) (*models.User, error) {
	digits := randomDigits(9)
	phone := "+2267" + digits[:7]

	user := &models.User{
		Email:    fmt.Sprintf("%s.%s@example.com", strings.ToLower(string(role)), digits),
		Phone:    &phone,
		FullName: "Awa Ouedraogo",
		Role:     role,
		IsActive: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestQuote creates a FR->BF road quote owned by client in the given status
func (tf *TestFixtures) CreateTestQuote(client *models.User, status models.QuoteStatus) (*models.Quote, error) {
	now := utils.UTCNow()
	quote := &models.Quote{
		QuoteNumber:        fmt.Sprintf("%s-%s-%s", utils.QuoteNumberPrefix, utils.DayStamp(now), randomDigits(5)),
		ClientID:           client.ID,
		CompanyID:          client.CompanyID,
		OriginCountry:      "FR",
		DestinationCountry: "BF",
		TransportModes:     pq.StringArray{string(models.TransportModeRoad)},
		Priority:           models.PriorityStandard,
		Packages: models.QuotePackages{
			{Description: "Cartons", Quantity: 2, CargoType: models.CargoTypeGeneral, Weight: 10},
		},
		TotalWeight:           20,
		TotalPackageCount:     2,
		DominantCargoType:     models.CargoTypeGeneral,
		TotalBeforePriority:   30000,
		EstimatedCost:         30000,
		EstimatedDeliveryDays: 10,
		Currency:              utils.DefaultCurrency,
		PricingConfigVersion:  1,
		Status:                status,
	}

	switch status {
	case models.QuoteStatusSent:
		quote.SentAt = &now
		quote.ValidUntil = utils.ToPtr(now.Add(utils.QuoteValidity))
	case models.QuoteStatusAccepted, models.QuoteStatusInTreatment:
		quote.SentAt = &now
		quote.ValidUntil = utils.ToPtr(now.Add(utils.QuoteValidity))
		quote.AcceptedAt = &now
		quote.AcceptedByID = &client.ID
		quote.PaymentMethod = utils.ToPtr(models.PaymentMethodCash)
		if status == models.QuoteStatusInTreatment {
			quote.TreatmentStartedAt = &now
		}
	}

	if err := tf.DB.DB.Create(quote).Error; err != nil {
		return nil, fmt.Errorf("failed to create test quote: %w", err)
	}
	return quote, nil
}

// CreateTestShipment creates a shipment for quote with the given status and tracking number
func (tf *TestFixtures) CreateTestShipment(quote *models.Quote, status models.ShipmentStatus, trackingNumber string) (*models.Shipment, error) {
	notes := "fragile pallet, call before delivery"
	shipment := &models.Shipment{
		TrackingNumber:     trackingNumber,
		QuoteID:            quote.ID,
		ClientID:           quote.ClientID,
		OriginCountry:      quote.OriginCountry,
		DestinationCountry: quote.DestinationCountry,
		TransportMode:      models.TransportModeRoad,
		PackageCount:       quote.TotalPackageCount,
		TotalWeight:        quote.TotalWeight,
		EstimatedCost:      quote.EstimatedCost,
		Currency:           quote.Currency,
		InternalNotes:      &notes,
		Status:             status,
	}

	if err := tf.DB.DB.Create(shipment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test shipment: %w", err)
	}
	return shipment, nil
}

// CreateTestTrackingEvent records a checkpoint with coordinates and an internal note
func (tf *TestFixtures) CreateTestTrackingEvent(shipment *models.Shipment, location string, occurredAt time.Time) (*models.TrackingEvent, error) {
	note := "seal number 884120"
	event := &models.TrackingEvent{
		ShipmentID:   shipment.ID,
		Status:       shipment.Status,
		LocationName: location,
		Latitude:     utils.ToPtr(12.3714),
		Longitude:    utils.ToPtr(-1.5197),
		InternalNote: &note,
		OccurredAt:   occurredAt,
	}

	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tracking event: %w", err)
	}
	return event, nil
}

// CreateTestProspect creates an unconverted prospect
func (tf *TestFixtures) CreateTestProspect(email, phone string) (*models.Prospect, error) {
	prospect := &models.Prospect{
		FullName: "Guest Sender",
		Email:    utils.NilIfEmpty(utils.NormalizeEmail(email)),
		Phone:    utils.NilIfEmpty(utils.NormalizePhone(phone)),
	}

	if err := tf.DB.DB.Create(prospect).Error; err != nil {
		return nil, fmt.Errorf("failed to create test prospect: %w", err)
	}
	return prospect, nil
}

// CreateTestPickupRequest creates a pickup request owned by a user or a prospect
func (tf *TestFixtures) CreateTestPickupRequest(userID, prospectID *uint, status models.PickupStatus) (*models.PickupRequest, error) {
	request := &models.PickupRequest{
		RequestNumber:    fmt.Sprintf("%s-%s-%s", utils.PickupNumberPrefix, utils.DayStamp(utils.UTCNow()), randomDigits(5)),
		UserID:           userID,
		ProspectID:       prospectID,
		ContactName:      "Guest Sender",
		ContactPhone:     "+22670000000",
		PickupAddress:    "12 rue de la Gare",
		PickupCity:       "Lyon",
		PickupCountry:    "FR",
		CargoDescription: "Household goods",
		CargoType:        models.CargoTypeGeneral,
		PackageCount:     3,
		Status:           status,
	}

	if err := tf.DB.DB.Create(request).Error; err != nil {
		return nil, fmt.Errorf("failed to create test pickup request: %w", err)
	}
	return request, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(actorID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		ActorID:     actorID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}
	return audit, nil
}
