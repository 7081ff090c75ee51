package businessflow

import (
	"fmt"

	"github.com/amirphl/kargo/models"
)

// Actions guarded in addition to the state machine actions
const (
	GuardActionView                = "view"
	GuardActionChangePaymentMethod = "change_payment_method"
	GuardActionRecordPayment       = "record_payment"
	GuardActionAddEvent            = "add_event"
	GuardActionRecordCost          = "record_cost"
)

// Subject carries the ownership facts a guard needs about the target entity
type Subject struct {
	OwnerID   *uint
	CompanyID *uint
}

// GuardDecision is the outcome of Authorize
type GuardDecision struct {
	Allowed bool
	Reason  string
}

func allow() GuardDecision { return GuardDecision{Allowed: true} }

func deny(reason string) GuardDecision { return GuardDecision{Reason: reason} }

type guardRule func(actor Actor, subject Subject) GuardDecision

type guardKey struct {
	entity models.EntityType
	action string
}

func rolesRule(roles ...models.Role) guardRule {
	return func(actor Actor, _ Subject) GuardDecision {
		if actor.HasRole(roles...) {
			return allow()
		}
		return deny(fmt.Sprintf("role %s may not perform this action", displayRole(actor.Role)))
	}
}

func ownerRule(actor Actor, subject Subject) GuardDecision {
	if actor.IsAnonymous() {
		return deny("authentication required")
	}
	if subject.OwnerID != nil && *subject.OwnerID == actor.UserID {
		return allow()
	}
	return deny("only the owner may perform this action")
}

func systemOr(rule guardRule) guardRule {
	return func(actor Actor, subject Subject) GuardDecision {
		if actor.System {
			return allow()
		}
		return rule(actor, subject)
	}
}

func anyOf(rules ...guardRule) guardRule {
	return func(actor Actor, subject Subject) GuardDecision {
		var last GuardDecision
		for _, r := range rules {
			if last = r(actor, subject); last.Allowed {
				return last
			}
		}
		return last
	}
}

// viewRule lets staff see everything and clients see their own or their company's records
func viewRule(actor Actor, subject Subject) GuardDecision {
	if actor.Role.IsStaff() {
		return allow()
	}
	if d := ownerRule(actor, subject); d.Allowed {
		return d
	}
	if actor.CompanyID != nil && subject.CompanyID != nil && *actor.CompanyID == *subject.CompanyID {
		return allow()
	}
	return deny("not visible to this account")
}

var (
	operators = rolesRule(models.RoleAdmin, models.RoleOperationsManager)
	finance   = rolesRule(models.RoleAdmin, models.RoleOperationsManager, models.RoleFinanceManager)
)

var guardTable = map[guardKey]guardRule{
	{models.EntityTypeQuote, GuardActionView}:                          viewRule,
	{models.EntityTypeQuote, string(models.QuoteActionSubmit)}:         ownerRule,
	{models.EntityTypeQuote, string(models.QuoteActionSend)}:           operators,
	{models.EntityTypeQuote, string(models.QuoteActionAccept)}:         ownerRule,
	{models.EntityTypeQuote, string(models.QuoteActionReject)}:         ownerRule,
	{models.EntityTypeQuote, string(models.QuoteActionExpire)}:         systemOr(operators),
	{models.EntityTypeQuote, string(models.QuoteActionStartTreatment)}: operators,
	{models.EntityTypeQuote, string(models.QuoteActionValidate)}:       operators,
	{models.EntityTypeQuote, string(models.QuoteActionCancel)}:         operators,
	{models.EntityTypeQuote, GuardActionChangePaymentMethod}:           anyOf(ownerRule, rolesRule(models.RoleAdmin)),
	{models.EntityTypeQuote, GuardActionRecordPayment}:                 finance,

	{models.EntityTypePickupRequest, GuardActionView}:                     viewRule,
	{models.EntityTypePickupRequest, string(models.PickupActionSchedule)}: operators,
	{models.EntityTypePickupRequest, string(models.PickupActionComplete)}: operators,
	{models.EntityTypePickupRequest, string(models.PickupActionCancel)}:   operators,

	{models.EntityTypePurchaseRequest, GuardActionView}:                             viewRule,
	{models.EntityTypePurchaseRequest, string(models.PurchaseActionStartTreatment)}: operators,
	{models.EntityTypePurchaseRequest, string(models.PurchaseActionComplete)}:       operators,
	{models.EntityTypePurchaseRequest, string(models.PurchaseActionCancel)}:         operators,

	{models.EntityTypeShipment, GuardActionView}:                            finance,
	{models.EntityTypeShipment, string(models.ShipmentActionPublish)}:       operators,
	{models.EntityTypeShipment, string(models.ShipmentActionDepart)}:        operators,
	{models.EntityTypeShipment, string(models.ShipmentActionHoldAtCustoms)}: operators,
	{models.EntityTypeShipment, string(models.ShipmentActionDispatch)}:      operators,
	{models.EntityTypeShipment, string(models.ShipmentActionDeliver)}:       operators,
	{models.EntityTypeShipment, string(models.ShipmentActionCancel)}:        operators,
	{models.EntityTypeShipment, GuardActionAddEvent}:                        operators,
	{models.EntityTypeShipment, GuardActionRecordCost}:                      rolesRule(models.RoleAdmin, models.RoleFinanceManager),
}

// Authorize decides whether actor may perform action on an entity of the given type.
// Unknown (entity, action) pairs are denied.
func Authorize(entity models.EntityType, action string, actor Actor, subject Subject) GuardDecision {
	rule, ok := guardTable[guardKey{entity, action}]
	if !ok {
		return deny(fmt.Sprintf("no rule for %s/%s", entity, action))
	}
	return rule(actor, subject)
}

// authorize turns a denial into a forbidden business error
func authorize(entity models.EntityType, action string, actor Actor, subject Subject) error {
	d := Authorize(entity, action, actor, subject)
	if d.Allowed {
		return nil
	}
	return NewBusinessError("FORBIDDEN", d.Reason, ErrForbidden)
}

func displayRole(r models.Role) string {
	if r == "" {
		return "anonymous"
	}
	return r.DisplayName()
}

// requireRoles guards administrative operations that are not state transitions
func requireRoles(actor Actor, roles ...models.Role) error {
	if actor.IsAnonymous() {
		return NewBusinessError("UNAUTHENTICATED", "authentication required", ErrUnauthenticated)
	}
	if !actor.HasRole(roles...) {
		return NewBusinessErrorf("FORBIDDEN", "role %s may not perform this action", ErrForbidden, displayRole(actor.Role))
	}
	return nil
}
