package businessflow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// transition describes one state change of a workflow entity of type T
type transition[T any, S ~string, A ~string] struct {
	entity   models.EntityType
	machine  *models.StateMachine[S, A]
	action   A
	actor    Actor
	note     *string
	metadata map[string]any

	// lock loads the entity FOR UPDATE; nil means not found
	lock     func(ctx context.Context, id uuid.UUID) (*T, error)
	update   func(ctx context.Context, e *T) error
	notFound error

	id        func(e *T) uint
	status    func(e *T) S
	setStatus func(e *T, s S)
	subject   func(e *T) Subject

	// replayed reports whether e already reflects this exact request. A nil func
	// turns every repeat into a state conflict.
	replayed func(e *T) bool
	// precheck rejects the action for reasons beyond the transition table
	precheck func(e *T) error
	// apply runs the side effects on the locked entity before its status changes
	apply func(ctx context.Context, e *T) error
}

// transitionResult is the entity after the transaction and whether a new state was written
type transitionResult[T any] struct {
	Entity   *T
	Replayed bool
}

// runTransition locks the entity, checks the guard and the transition table, applies the
// side effects, updates the status and appends exactly one history row, all in one transaction
func runTransition[T any, S ~string, A ~string](
	ctx context.Context,
	db *gorm.DB,
	historyRepo repository.StatusHistoryRepository,
	entityUUID uuid.UUID,
	t transition[T, S, A],
	metadata *ClientMetadata,
) (*transitionResult[T], error) {
	var res transitionResult[T]
	err := repository.WithTransaction(ctx, db, func(txCtx context.Context) error {
		e, err := t.lock(txCtx, entityUUID)
		if err != nil {
			return NewBusinessError("LOAD_FAILED", "Failed to load "+string(t.entity), err)
		}
		if e == nil {
			return t.notFound
		}

		if err := authorize(t.entity, string(t.action), t.actor, t.subject(e)); err != nil {
			return err
		}

		from := t.status(e)
		if target, ok := t.machine.Target(t.action); ok && from == target && t.replayed != nil && t.replayed(e) {
			res = transitionResult[T]{Entity: e, Replayed: true}
			return nil
		}

		to, ok := t.machine.Next(from, t.action)
		if !ok {
			reason := ""
			if t.machine.IsTerminal(from) {
				reason = "status is terminal"
			}
			return newStateConflict(string(t.entity), from, t.action, reason)
		}

		if t.precheck != nil {
			if err := t.precheck(e); err != nil {
				return err
			}
		}
		if t.apply != nil {
			if err := t.apply(txCtx, e); err != nil {
				return err
			}
		}

		t.setStatus(e, to)
		if err := t.update(txCtx, e); err != nil {
			return NewBusinessError("UPDATE_FAILED", "Failed to update "+string(t.entity), err)
		}

		entry := &models.StatusHistory{
			EntityType: t.entity,
			EntityID:   t.id(e),
			Action:     string(t.action),
			OldStatus:  string(from),
			NewStatus:  string(to),
			ActorID:    t.actor.idPtr(),
			ActorRole:  t.actor.rolePtr(),
			Note:       t.note,
			RequestID:  requestIDFrom(txCtx, metadata),
		}
		if t.actor.System {
			entry.ActorRole = &systemRole
		}
		if len(t.metadata) > 0 {
			raw, err := json.Marshal(t.metadata)
			if err != nil {
				return NewBusinessError("HISTORY_WRITE_FAILED", "Failed to encode history metadata", err)
			}
			entry.Metadata = raw
		}
		if err := historyRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("HISTORY_WRITE_FAILED", "Failed to record status history", err)
		}

		res = transitionResult[T]{Entity: e}
		return nil
	})

	workflowTransitionsTotal.WithLabelValues(string(t.entity), string(t.action), transitionOutcome(err, res.Replayed)).Inc()
	if err != nil {
		logSystemError(ctx, string(t.entity)+"."+string(t.action), err)
		return nil, err
	}
	return &res, nil
}

var systemRole = "SYSTEM"

// sameText compares optional free text after trimming
func sameText(a *string, b string) bool {
	return a != nil && strings.TrimSpace(*a) == strings.TrimSpace(b)
}
