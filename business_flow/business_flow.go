// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"log"

	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
)

const RequestIDKey = "X-Request-ID"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Actor is the authenticated caller of an operation. The zero value is an anonymous caller.
type Actor struct {
	UserID    uint        `json:"user_id"`
	Role      models.Role `json:"role"`
	CompanyID *uint       `json:"company_id,omitempty"`
	System    bool        `json:"-"`
}

// SystemActor is used for transitions triggered by the platform itself
var SystemActor = Actor{System: true}

// IsAnonymous reports whether no user is attached
func (a Actor) IsAnonymous() bool {
	return a.UserID == 0
}

// HasRole reports whether the actor holds one of roles
func (a Actor) HasRole(roles ...models.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

func (a Actor) idPtr() *uint {
	if a.IsAnonymous() {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) rolePtr() *string {
	if a.Role == "" {
		return nil
	}
	r := string(a.Role)
	return &r
}

// WithActor stores actor in ctx
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, utils.ActorKey, actor)
}

// ActorFromContext returns the actor stored in ctx, or the anonymous actor
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(utils.ActorKey).(Actor); ok {
		return actor
	}
	return Actor{}
}

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func requestIDFrom(ctx context.Context, metadata *ClientMetadata) *string {
	if metadata != nil && metadata.RequestID != "" {
		id := metadata.RequestID
		return &id
	}
	if id, ok := ctx.Value(utils.RequestIDKey).(string); ok && id != "" {
		return &id
	}
	return nil
}

// normalizePaging applies the default and maximum page size
func normalizePaging(page, pageSize uint) (uint, uint) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func pageOffset(page, pageSize uint) int {
	return int((page - 1) * pageSize)
}

func totalPages(total int64, pageSize uint) uint {
	if pageSize == 0 {
		return 0
	}
	return uint((total + int64(pageSize) - 1) / int64(pageSize))
}

// auditRecord describes one administrative event
type auditRecord struct {
	Action      string
	EntityType  string
	EntityID    uint
	Description string
	Metadata    map[string]any
	Err         error
}

// writeAuditLog persists an audit row in the transaction carried by ctx, if any
func writeAuditLog(ctx context.Context, repo repository.AuditLogRepository, actor Actor, rec auditRecord, metadata *ClientMetadata) error {
	audit := &models.AuditLog{
		ActorID:     actor.idPtr(),
		Action:      rec.Action,
		Description: utils.NilIfEmpty(rec.Description),
		Success:     utils.ToPtr(rec.Err == nil),
		RequestID:   requestIDFrom(ctx, metadata),
	}
	if rec.EntityType != "" {
		audit.EntityType = utils.ToPtr(rec.EntityType)
		audit.EntityID = utils.ToPtr(rec.EntityID)
	}
	if metadata != nil {
		audit.IPAddress = utils.NilIfEmpty(metadata.IPAddress)
		audit.UserAgent = utils.NilIfEmpty(metadata.UserAgent)
	}
	if rec.Err != nil {
		msg := rec.Err.Error()
		audit.ErrorMessage = &msg
	}
	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return err
		}
		audit.Metadata = raw
	}
	return repo.Save(ctx, audit)
}

// logSystemError records an infrastructure failure; validation and business failures are not logged
func logSystemError(ctx context.Context, op string, err error) {
	if err == nil || IsValidation(err) || IsForbidden(err) || IsStateConflict(err) || IsNotFound(err) {
		return
	}
	requestID := ""
	if id, ok := ctx.Value(utils.RequestIDKey).(string); ok {
		requestID = id
	}
	log.Printf(`{"level":"error","op":%q,"request_id":%q,"error":%q}`, op, requestID, err.Error())
}
