package businessflow

import (
	"errors"
	"testing"

	"github.com/amirphl/kargo/models"
	"github.com/stretchr/testify/assert"
)

func TestAuthorizeQuoteActions(t *testing.T) {
	owner := uint(7)
	company := uint(3)
	subject := Subject{OwnerID: &owner, CompanyID: &company}

	client := Actor{UserID: owner, Role: models.RoleClient, CompanyID: &company}
	colleague := Actor{UserID: 8, Role: models.RoleClient, CompanyID: &company}
	stranger := Actor{UserID: 9, Role: models.RoleClient}
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	ops := Actor{UserID: 2, Role: models.RoleOperationsManager}
	financeMgr := Actor{UserID: 4, Role: models.RoleFinanceManager}

	tests := []struct {
		name    string
		action  string
		actor   Actor
		allowed bool
	}{
		{"owner submits", string(models.QuoteActionSubmit), client, true},
		{"admin cannot submit for client", string(models.QuoteActionSubmit), admin, false},
		{"owner accepts", string(models.QuoteActionAccept), client, true},
		{"colleague cannot accept", string(models.QuoteActionAccept), colleague, false},
		{"stranger cannot reject", string(models.QuoteActionReject), stranger, false},
		{"ops sends", string(models.QuoteActionSend), ops, true},
		{"finance cannot send", string(models.QuoteActionSend), financeMgr, false},
		{"client cannot validate", string(models.QuoteActionValidate), client, false},
		{"admin validates", string(models.QuoteActionValidate), admin, true},
		{"system expires", string(models.QuoteActionExpire), SystemActor, true},
		{"client cannot expire", string(models.QuoteActionExpire), client, false},
		{"ops cancels", string(models.QuoteActionCancel), ops, true},
		{"colleague views", GuardActionView, colleague, true},
		{"stranger cannot view", GuardActionView, stranger, false},
		{"finance views", GuardActionView, financeMgr, true},
		{"owner changes payment method", GuardActionChangePaymentMethod, client, true},
		{"admin changes payment method", GuardActionChangePaymentMethod, admin, true},
		{"ops cannot change payment method", GuardActionChangePaymentMethod, ops, false},
		{"finance records payment", GuardActionRecordPayment, financeMgr, true},
		{"client cannot record payment", GuardActionRecordPayment, client, false},
		{"anonymous cannot accept", string(models.QuoteActionAccept), Actor{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(models.EntityTypeQuote, tt.action, tt.actor, subject)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestAuthorizeShipmentActions(t *testing.T) {
	financeMgr := Actor{UserID: 4, Role: models.RoleFinanceManager}
	ops := Actor{UserID: 2, Role: models.RoleOperationsManager}
	client := Actor{UserID: 7, Role: models.RoleClient}

	assert.True(t, Authorize(models.EntityTypeShipment, GuardActionView, financeMgr, Subject{}).Allowed)
	assert.False(t, Authorize(models.EntityTypeShipment, GuardActionView, client, Subject{}).Allowed)
	assert.True(t, Authorize(models.EntityTypeShipment, string(models.ShipmentActionDepart), ops, Subject{}).Allowed)
	assert.False(t, Authorize(models.EntityTypeShipment, string(models.ShipmentActionDepart), financeMgr, Subject{}).Allowed)
	assert.True(t, Authorize(models.EntityTypeShipment, GuardActionRecordCost, financeMgr, Subject{}).Allowed)
	assert.False(t, Authorize(models.EntityTypeShipment, GuardActionRecordCost, ops, Subject{}).Allowed)
}

func TestAuthorizeUnknownPairIsDenied(t *testing.T) {
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	d := Authorize(models.EntityTypeQuote, "teleport", admin, Subject{})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "teleport")
}

func TestAuthorizeErrorWrapsForbidden(t *testing.T) {
	err := authorize(models.EntityTypePickupRequest, string(models.PickupActionSchedule), Actor{UserID: 5, Role: models.RoleClient}, Subject{})
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.True(t, IsForbidden(err))
}

func TestRequireRoles(t *testing.T) {
	assert.ErrorIs(t, requireRoles(Actor{}, models.RoleAdmin), ErrUnauthenticated)
	assert.ErrorIs(t, requireRoles(Actor{UserID: 2, Role: models.RoleClient}, models.RoleAdmin), ErrForbidden)
	assert.NoError(t, requireRoles(Actor{UserID: 1, Role: models.RoleAdmin}, models.RoleAdmin, models.RoleFinanceManager))
}
