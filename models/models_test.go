package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteMachine(t *testing.T) {
	legal := map[string]QuoteStatus{
		"DRAFT/submit":             QuoteStatusSubmitted,
		"SUBMITTED/send":           QuoteStatusSent,
		"SENT/accept":              QuoteStatusAccepted,
		"SENT/reject":              QuoteStatusRejected,
		"SENT/expire":              QuoteStatusExpired,
		"ACCEPTED/start_treatment": QuoteStatusInTreatment,
		"IN_TREATMENT/validate":    QuoteStatusValidated,
		"DRAFT/cancel":             QuoteStatusCancelled,
		"SUBMITTED/cancel":         QuoteStatusCancelled,
		"SENT/cancel":              QuoteStatusCancelled,
		"ACCEPTED/cancel":          QuoteStatusCancelled,
		"IN_TREATMENT/cancel":      QuoteStatusCancelled,
	}

	for _, from := range QuoteMachine.States() {
		for _, action := range QuoteActions {
			key := fmt.Sprintf("%s/%s", from, action)
			t.Run(key, func(t *testing.T) {
				to, ok := QuoteMachine.Next(from, action)
				want, isLegal := legal[key]
				assert.Equal(t, isLegal, ok)
				if isLegal {
					assert.Equal(t, want, to)
				}
			})
		}
	}
}

func TestQuoteMachineTerminalStates(t *testing.T) {
	for _, s := range []QuoteStatus{QuoteStatusRejected, QuoteStatusExpired, QuoteStatusValidated, QuoteStatusCancelled} {
		assert.True(t, QuoteMachine.IsTerminal(s), s)
		assert.Empty(t, QuoteMachine.AvailableActions(s, QuoteActions), s)
	}
	assert.False(t, QuoteMachine.IsTerminal(QuoteStatusSent))
	assert.Equal(t,
		[]QuoteAction{QuoteActionAccept, QuoteActionReject, QuoteActionExpire, QuoteActionCancel},
		QuoteMachine.AvailableActions(QuoteStatusSent, QuoteActions))
}

func TestStateMachineTarget(t *testing.T) {
	to, ok := QuoteMachine.Target(QuoteActionCancel)
	require.True(t, ok)
	assert.Equal(t, QuoteStatusCancelled, to)

	shipmentTo, ok := ShipmentMachine.Target(ShipmentActionDepart)
	require.True(t, ok)
	assert.Equal(t, ShipmentStatusInTransit, shipmentTo)

	_, ok = QuoteMachine.Target(QuoteAction("unknown"))
	assert.False(t, ok)
}

func TestPickupMachine(t *testing.T) {
	tests := []struct {
		from   PickupStatus
		action PickupAction
		to     PickupStatus
		ok     bool
	}{
		{PickupStatusRequested, PickupActionSchedule, PickupStatusScheduled, true},
		{PickupStatusRequested, PickupActionComplete, "", false},
		{PickupStatusRequested, PickupActionCancel, PickupStatusCancelled, true},
		{PickupStatusScheduled, PickupActionComplete, PickupStatusCompleted, true},
		{PickupStatusScheduled, PickupActionSchedule, "", false},
		{PickupStatusScheduled, PickupActionCancel, PickupStatusCancelled, true},
		{PickupStatusCompleted, PickupActionCancel, "", false},
		{PickupStatusCancelled, PickupActionSchedule, "", false},
		{PickupStatusCancelled, PickupActionCancel, "", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.from, tt.action), func(t *testing.T) {
			to, ok := PickupMachine.Next(tt.from, tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestPurchaseMachine(t *testing.T) {
	tests := []struct {
		from   PurchaseStatus
		action PurchaseAction
		to     PurchaseStatus
		ok     bool
	}{
		{PurchaseStatusRequested, PurchaseActionStartTreatment, PurchaseStatusInTreatment, true},
		{PurchaseStatusRequested, PurchaseActionComplete, "", false},
		{PurchaseStatusRequested, PurchaseActionCancel, PurchaseStatusCancelled, true},
		{PurchaseStatusInTreatment, PurchaseActionComplete, PurchaseStatusDelivered, true},
		{PurchaseStatusInTreatment, PurchaseActionCancel, PurchaseStatusCancelled, true},
		{PurchaseStatusDelivered, PurchaseActionCancel, "", false},
		{PurchaseStatusCancelled, PurchaseActionStartTreatment, "", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.from, tt.action), func(t *testing.T) {
			to, ok := PurchaseMachine.Next(tt.from, tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestShipmentMachine(t *testing.T) {
	path := []struct {
		action ShipmentAction
		to     ShipmentStatus
	}{
		{ShipmentActionPublish, ShipmentStatusRegistered},
		{ShipmentActionDepart, ShipmentStatusInTransit},
		{ShipmentActionHoldAtCustoms, ShipmentStatusAtCustoms},
		{ShipmentActionDepart, ShipmentStatusInTransit},
		{ShipmentActionDispatch, ShipmentStatusOutForDelivery},
		{ShipmentActionDeliver, ShipmentStatusDelivered},
	}

	current := ShipmentStatusDraft
	for _, step := range path {
		to, ok := ShipmentMachine.Next(current, step.action)
		require.True(t, ok, "%s from %s", step.action, current)
		require.Equal(t, step.to, to)
		current = to
	}

	_, ok := ShipmentMachine.Next(ShipmentStatusDelivered, ShipmentActionCancel)
	assert.False(t, ok)
	_, ok = ShipmentMachine.Next(ShipmentStatusRegistered, ShipmentActionDeliver)
	assert.False(t, ok)
	assert.False(t, ShipmentStatusDraft.IsPublished())
	assert.True(t, ShipmentStatusRegistered.IsPublished())
}

func TestParseEnums(t *testing.T) {
	m, err := ParseTransportMode(" road ")
	require.NoError(t, err)
	assert.Equal(t, TransportModeRoad, m)

	_, err = ParseTransportMode("BOAT")
	assert.Error(t, err)

	c, err := ParseCargoType("dangerous")
	require.NoError(t, err)
	assert.Equal(t, CargoTypeDangerous, c)

	_, err = ParsePriority("")
	assert.Error(t, err)

	p, err := ParsePaymentMethod("bank_transfer")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodBankTransfer, p)

	r, err := ParseRole("operations_manager")
	require.NoError(t, err)
	assert.Equal(t, RoleOperationsManager, r)
	assert.True(t, r.IsStaff())
	assert.False(t, RoleClient.IsStaff())

	_, err = ParseRole("SUPERUSER")
	assert.Error(t, err)
	assert.Empty(t, Role("SUPERUSER").DisplayName())
}

func TestEnumValueRejectsUnknown(t *testing.T) {
	_, err := TransportMode("BOAT").Value()
	assert.Error(t, err)

	v, err := QuoteStatusSent.Value()
	require.NoError(t, err)
	assert.Equal(t, "SENT", v)

	var s QuoteStatus
	require.NoError(t, s.Scan([]byte("VALIDATED")))
	assert.Equal(t, QuoteStatusValidated, s)
}

func TestJSONColumns(t *testing.T) {
	ratios := ModeRatios{TransportModeAir: 6000, TransportModeRoad: 5000}
	v, err := ratios.Value()
	require.NoError(t, err)

	var back ModeRatios
	require.NoError(t, back.Scan([]byte(v.(string))))
	assert.Equal(t, ratios, back)

	var speeds DeliverySpeeds
	require.NoError(t, speeds.Scan(`{"SEA":{"min":20,"max":35}}`))
	assert.Equal(t, DeliverySpeed{Min: 20, Max: 35}, speeds[TransportModeSea])

	var empty QuotePackages
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}
