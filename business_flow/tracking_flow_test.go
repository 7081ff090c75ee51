package businessflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleShipment(status models.ShipmentStatus) *models.Shipment {
	return &models.Shipment{
		ID:                 11,
		TrackingNumber:     "TRK-20250301-00012",
		QuoteID:            5,
		ClientID:           77,
		OriginCountry:      "CN",
		DestinationCountry: "SN",
		TransportMode:      models.TransportModeSea,
		PackageCount:       3,
		CargoDescription:   utils.ToPtr("spare parts"),
		TotalWeight:        120.5,
		EstimatedCost:      980,
		ActualCost:         utils.ToPtr(1010.0),
		Currency:           "XOF",
		InternalNotes:      utils.ToPtr("client pays late"),
		Status:             status,
	}
}

func TestToPublicViewStripsInternalFields(t *testing.T) {
	occurred := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	events := []*models.TrackingEvent{{
		ShipmentID:   11,
		Status:       models.ShipmentStatusInTransit,
		LocationName: "Port of Shanghai",
		Latitude:     utils.ToPtr(31.23),
		Longitude:    utils.ToPtr(121.47),
		InternalNote: utils.ToPtr("container 4 damaged"),
		RecordedByID: utils.ToPtr(uint(2)),
		OccurredAt:   occurred,
	}}

	view := ToPublicView(sampleShipment(models.ShipmentStatusInTransit), events, "en")
	require.NotNil(t, view)
	assert.Equal(t, "TRK-20250301-00012", view.TrackingNumber)
	assert.Equal(t, "IN_TRANSIT", view.Status)
	assert.Equal(t, "In transit", view.StatusLabel)
	assert.Equal(t, 3, view.Cargo.PackageCount)
	require.Len(t, view.Events, 1)
	assert.Equal(t, "Port of Shanghai", view.Events[0].Location)
	assert.Equal(t, "2025-03-02T08:00:00Z", view.Events[0].OccurredAt)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	body := string(raw)
	for _, leaked := range []string{"1010", "980", "client pays late", "container 4 damaged", "31.23", "latitude", "client_id", "recorded_by"} {
		assert.NotContains(t, body, leaked)
	}
}

func TestToPublicViewHidesDrafts(t *testing.T) {
	assert.Nil(t, ToPublicView(sampleShipment(models.ShipmentStatusDraft), nil, "fr"))
	assert.Nil(t, ToPublicView(nil, nil, "fr"))
	assert.Nil(t, ToPublicView(sampleShipment(models.ShipmentStatus("LOST")), nil, "fr"))

	view := ToPublicView(sampleShipment(models.ShipmentStatusRegistered), nil, "fr")
	require.NotNil(t, view)
	assert.NotNil(t, view.Events)
	assert.Empty(t, view.Events)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "En douane", StatusLabel(models.ShipmentStatusAtCustoms, "fr"))
	assert.Equal(t, "At customs", StatusLabel(models.ShipmentStatusAtCustoms, " EN "))
	assert.Equal(t, "Livré", StatusLabel(models.ShipmentStatusDelivered, "de"))
	assert.Equal(t, "Livré", StatusLabel(models.ShipmentStatusDelivered, ""))
	assert.Equal(t, "LOST", StatusLabel(models.ShipmentStatus("LOST"), "en"))

	for _, s := range models.ShipmentMachine.States() {
		assert.NotEqual(t, string(s), StatusLabel(s, "fr"), "missing french label for %s", s)
		assert.NotEqual(t, string(s), StatusLabel(s, "en"), "missing english label for %s", s)
	}
}

func TestNormalizeTrackingNumber(t *testing.T) {
	got, err := NormalizeTrackingNumber("  trk-20250301-00012 ")
	require.NoError(t, err)
	assert.Equal(t, "TRK-20250301-00012", got)

	for _, bad := range []string{"", "TRK-2025031-00012", "QT-20250301-00012", "TRK-20250301-0012", "TRK-20250301-00012x", "TRK 20250301 00012"} {
		_, err := NormalizeTrackingNumber(bad)
		assert.True(t, IsValidation(err), "expected %q to be rejected", bad)
	}
}
