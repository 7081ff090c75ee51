// Package businessflow contains the core business logic and use cases of the freight workflows
package businessflow

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every business failure wraps exactly one of these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrForbidden       = errors.New("forbidden")
	ErrStateConflict   = errors.New("state conflict")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Business flow error constants
var (
	// Lookup errors
	ErrQuoteNotFound           = fmt.Errorf("quote %w", ErrNotFound)
	ErrShipmentNotFound        = fmt.Errorf("shipment %w", ErrNotFound)
	ErrPickupRequestNotFound   = fmt.Errorf("pickup request %w", ErrNotFound)
	ErrPurchaseRequestNotFound = fmt.Errorf("purchase request %w", ErrNotFound)
	ErrProspectNotFound        = fmt.Errorf("prospect %w", ErrNotFound)
	ErrUserNotFound            = fmt.Errorf("user %w", ErrNotFound)
	ErrTransportRateNotFound   = fmt.Errorf("transport rate %w", ErrNotFound)

	// Configuration errors
	ErrPricingConfigMissing = errors.New("no active pricing configuration")
	ErrCacheNotAvailable    = errors.New("cache not available")

	// Sequence errors
	ErrSequenceExhausted = errors.New("daily sequence exhausted")

	// Guest and invitation errors
	ErrCaptchaInvalid           = fmt.Errorf("captcha answer rejected: %w", ErrValidation)
	ErrGuestTokenInvalid        = fmt.Errorf("guest tracking token is invalid or expired: %w", ErrUnauthenticated)
	ErrInvitationInvalid        = fmt.Errorf("invitation token is invalid or expired: %w", ErrForbidden)
	ErrProspectAlreadyConverted = errors.New("prospect already converted")
	ErrProspectContactRequired  = fmt.Errorf("email or phone is required: %w", ErrValidation)

	// User errors
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrAccountInactive    = fmt.Errorf("account is inactive: %w", ErrForbidden)

	// Import errors
	ErrRateImportEmpty = fmt.Errorf("workbook has no rate rows: %w", ErrValidation)
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// FieldError is a single invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field-level failures of one request
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field failure
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Addf appends a field failure with a formatted message
func (v *ValidationErrors) Addf(field, format string, args ...any) {
	v.Add(field, fmt.Sprintf(format, args...))
}

// Err returns nil when nothing was collected
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func fieldError(field, message string) error {
	return ValidationErrors{{Field: field, Message: message}}
}

// StateConflictError reports an action that is not legal from the entity's current status
type StateConflictError struct {
	Entity        string `json:"entity"`
	CurrentStatus string `json:"current_status"`
	Action        string `json:"action"`
	Reason        string `json:"reason,omitempty"`
}

func (e *StateConflictError) Error() string {
	msg := fmt.Sprintf("%s: action %q not allowed in status %s", e.Entity, e.Action, e.CurrentStatus)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

func newStateConflict[S ~string, A ~string](entity string, current S, action A, reason string) *StateConflictError {
	return &StateConflictError{
		Entity:        entity,
		CurrentStatus: string(current),
		Action:        string(action),
		Reason:        reason,
	}
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ValidationDetails extracts the field failures of err, if any
func ValidationDetails(err error) ValidationErrors {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v
	}
	return nil
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// StateConflictDetails extracts the conflict of err, if any
func StateConflictDetails(err error) *StateConflictError {
	var sc *StateConflictError
	if errors.As(err, &sc) {
		return sc
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func IsQuoteNotFound(err error) bool {
	return errors.Is(err, ErrQuoteNotFound)
}

func IsShipmentNotFound(err error) bool {
	return errors.Is(err, ErrShipmentNotFound)
}

func IsPricingConfigMissing(err error) bool {
	return errors.Is(err, ErrPricingConfigMissing)
}

func IsSequenceExhausted(err error) bool {
	return errors.Is(err, ErrSequenceExhausted)
}

func IsCaptchaInvalid(err error) bool {
	return errors.Is(err, ErrCaptchaInvalid)
}

func IsGuestTokenInvalid(err error) bool {
	return errors.Is(err, ErrGuestTokenInvalid)
}

func IsInvitationInvalid(err error) bool {
	return errors.Is(err, ErrInvitationInvalid)
}

func IsProspectAlreadyConverted(err error) bool {
	return errors.Is(err, ErrProspectAlreadyConverted)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}
