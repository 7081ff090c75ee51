package businessflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/services"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShipmentFlow handles the back-office side of shipments
type ShipmentFlow interface {
	ListShipments(ctx context.Context, actor Actor, req *dto.ListShipmentsRequest) (*dto.ListShipmentsResponse, error)
	GetShipment(ctx context.Context, actor Actor, shipmentUUID uuid.UUID) (*dto.ShipmentDTO, error)
	GetShipmentHistory(ctx context.Context, actor Actor, shipmentUUID uuid.UUID) (*dto.StatusHistoryResponse, error)
	AddTrackingEvent(ctx context.Context, actor Actor, shipmentUUID uuid.UUID, req *dto.AddTrackingEventRequest, metadata *ClientMetadata) (*dto.ShipmentDTO, error)
	TransitionShipment(ctx context.Context, actor Actor, shipmentUUID uuid.UUID, req *dto.ShipmentTransitionRequest, metadata *ClientMetadata) (*dto.ShipmentDTO, error)
	RecordActualCost(ctx context.Context, actor Actor, shipmentUUID uuid.UUID, req *dto.RecordActualCostRequest, metadata *ClientMetadata) (*dto.ShipmentDTO, error)
}

// ShipmentFlowImpl implements the shipment business flow
type ShipmentFlowImpl struct {
	shipmentRepo repository.ShipmentRepository
	eventRepo    repository.TrackingEventRepository
	quoteRepo    repository.QuoteRepository
	historyRepo  repository.StatusHistoryRepository
	auditRepo    repository.AuditLogRepository
	userRepo     repository.UserRepository
	notifier     services.NotificationService
	db           *gorm.DB
}

// NewShipmentFlow creates a new shipment flow
func NewShipmentFlow(
	shipmentRepo repository.ShipmentRepository,
	eventRepo repository.TrackingEventRepository,
	quoteRepo repository.QuoteRepository,
	historyRepo repository.StatusHistoryRepository,
	auditRepo repository.AuditLogRepository,
	userRepo repository.UserRepository,
	notifier services.NotificationService,
	db *gorm.DB,
) ShipmentFlow {
	return &ShipmentFlowImpl{
		shipmentRepo: shipmentRepo,
		eventRepo:    eventRepo,
		quoteRepo:    quoteRepo,
		historyRepo:  historyRepo,
		auditRepo:    auditRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		db:           db,
	}
}

func shipmentSubject(s *models.Shipment) Subject {
	return Subject{OwnerID: &s.ClientID}
}

func (f *ShipmentFlowImpl) ListShipments(ctx context.Context, actor Actor, req *dto.ListShipmentsRequest) (*dto.ListShipmentsResponse, error) {
	if err := authorize(models.EntityTypeShipment, GuardActionView, actor, Subject{}); err != nil {
		return nil, err
	}

	filter := models.ShipmentFilter{ClientID: req.ClientID}
	if req.Status != nil {
		s := models.ShipmentStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if !s.Valid() {
			return nil, fieldError("status", fmt.Sprintf("unknown shipment status %q", *req.Status))
		}
		filter.Status = &s
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.shipmentRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("SHIPMENT_LIST_FAILED", "Failed to count shipments", err)
	}
	rows, err := f.shipmentRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		return nil, NewBusinessError("SHIPMENT_LIST_FAILED", "Failed to list shipments", err)
	}

	items := make([]dto.ShipmentDTO, 0, len(rows))
	for _, s := range rows {
		items = append(items, ToShipmentDTO(s, nil, actor))
	}
	return &dto.ListShipmentsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

func (f *ShipmentFlowImpl) loadVisible(ctx context.Context, actor Actor, shipmentUUID uuid.UUID) (*models.Shipment, error) {
	s, err := f.shipmentRepo.ByUUID(ctx, shipmentUUID)
	if err != nil {
		return nil, NewBusinessError("SHIPMENT_LOAD_FAILED", "Failed to load shipment", err)
	}
	if s == nil {
		return nil, ErrShipmentNotFound
	}
	if err := authorize(models.EntityTypeShipment, GuardActionView, actor, shipmentSubject(s)); err != nil {
		return nil, err
	}
	return s, nil
}

// detail renders s with its quote reference and checkpoints
func (f *ShipmentFlowImpl) detail(ctx context.Context, actor Actor, s *models.Shipment) (*dto.ShipmentDTO, error) {
	if s.Quote == nil {
		q, err := f.quoteRepo.ByID(ctx, s.QuoteID)
		if err != nil {
			return nil, NewBusinessError("QUOTE_LOAD_FAILED", "Failed to load quote", err)
		}
		s.Quote = q
	}
	events, err := f.eventRepo.ListByShipment(ctx, s.ID)
	if err != nil {
		return nil, NewBusinessError("TRACKING_EVENT_LOAD_FAILED", "Failed to load tracking events", err)
	}
	if events == nil {
		events = []*models.TrackingEvent{}
	}
	out := ToShipmentDTO(s, events, actor)
	return &out, nil
}

func (f *ShipmentFlowImpl) GetShipment(ctx context.Context, actor Actor, shipmentUUID uuid.UUID) (*dto.ShipmentDTO, error) {
	s, err := f.loadVisible(ctx, actor, shipmentUUID)
	if err != nil {
		return nil, err
	}
	return f.detail(ctx, actor, s)
}

func (f *ShipmentFlowImpl) GetShipmentHistory(ctx context.Context, actor Actor, shipmentUUID uuid.UUID) (*dto.StatusHistoryResponse, error) {
	s, err := f.loadVisible(ctx, actor, shipmentUUID)
	if err != nil {
		return nil, err
	}
	rows, err := f.historyRepo.ListByEntity(ctx, models.EntityTypeShipment, s.ID)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOAD_FAILED", "Failed to load status history", err)
	}
	return &dto.StatusHistoryResponse{
		EntityType: string(models.EntityTypeShipment),
		EntityUUID: s.UUID.String(),
		Items:      ToStatusHistoryItems(rows),
	}, nil
}

func (f *ShipmentFlowImpl) lockShipment(ctx context.Context, shipmentUUID uuid.UUID) (*models.Shipment, error) {
	s, err := f.shipmentRepo.LockByUUID(ctx, shipmentUUID)
	if err != nil {
		return nil, NewBusinessError("SHIPMENT_LOAD_FAILED", "Failed to load shipment", err)
	}
	if s == nil {
		return nil, ErrShipmentNotFound
	}
	return s, nil
}

// AddTrackingEvent records a checkpoint tagged with the shipment's current status
func (f *ShipmentFlowImpl) AddTrackingEvent(ctx context.Context, actor Actor, shipmentUUID uuid.UUID, req *dto.AddTrackingEventRequest, metadata *ClientMetadata) (*dto.ShipmentDTO, error) {
	location := strings.TrimSpace(req.LocationName)
	if location == "" {
		return nil, fieldError("location_name", "is required")
	}

	var shipment *models.Shipment
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		s, err := f.lockShipment(txCtx, shipmentUUID)
		if err != nil {
			return err
		}
		if err := authorize(models.EntityTypeShipment, GuardActionAddEvent, actor, shipmentSubject(s)); err != nil {
			return err
		}
		if s.Status == models.ShipmentStatusCancelled {
			return newStateConflict(string(models.EntityTypeShipment), s.Status, GuardActionAddEvent, "shipment is cancelled")
		}

		occurredAt := utils.UTCNow()
		if req.OccurredAt != nil && !req.OccurredAt.IsZero() {
			occurredAt = req.OccurredAt.UTC()
		}
		event := &models.TrackingEvent{
			ShipmentID:   s.ID,
			Status:       s.Status,
			LocationName: location,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			InternalNote: trimmedPtr(req.InternalNote),
			RecordedByID: actor.idPtr(),
			OccurredAt:   occurredAt,
		}
		if err := f.eventRepo.Save(txCtx, event); err != nil {
			return NewBusinessError("TRACKING_EVENT_CREATE_FAILED", "Failed to record tracking event", err)
		}
		shipment = s
		return nil
	})
	if err != nil {
		logSystemError(ctx, "AddTrackingEvent", err)
		return nil, err
	}
	return f.detail(ctx, actor, shipment)
}

func (f *ShipmentFlowImpl) TransitionShipment(ctx context.Context, actor Actor, shipmentUUID uuid.UUID, req *dto.ShipmentTransitionRequest, metadata *ClientMetadata) (*dto.ShipmentDTO, error) {
	action := models.ShipmentAction(strings.ToLower(strings.TrimSpace(req.Action)))
	if !slices.Contains(models.ShipmentActions, action) {
		return nil, fieldError("action", fmt.Sprintf("unknown shipment action %q", req.Action))
	}
	note := trimmedPtr(req.Note)
	if action == models.ShipmentActionCancel {
		if len([]rune(utils.Deref(note))) < utils.MinReasonLength {
			return nil, fieldError("note", fmt.Sprintf("a cancellation reason of at least %d characters is required", utils.MinReasonLength))
		}
	}

	t := transition[models.Shipment, models.ShipmentStatus, models.ShipmentAction]{
		entity:    models.EntityTypeShipment,
		machine:   models.ShipmentMachine,
		action:    action,
		actor:     actor,
		note:      note,
		lock:      f.shipmentRepo.LockByUUID,
		update:    f.shipmentRepo.Update,
		notFound:  ErrShipmentNotFound,
		id:        func(s *models.Shipment) uint { return s.ID },
		status:    func(s *models.Shipment) models.ShipmentStatus { return s.Status },
		setStatus: func(s *models.Shipment, st models.ShipmentStatus) { s.Status = st },
		subject:   shipmentSubject,
		replayed:  func(*models.Shipment) bool { return true },
	}
	if action == models.ShipmentActionDeliver {
		t.apply = func(_ context.Context, s *models.Shipment) error {
			s.DeliveredAt = utils.UTCNowPtr()
			return nil
		}
	}

	res, err := runTransition(ctx, f.db, f.historyRepo, shipmentUUID, t, metadata)
	if err != nil {
		return nil, err
	}

	s := res.Entity
	if !res.Replayed && (s.Status != models.ShipmentStatusRegistered || action == models.ShipmentActionPublish) {
		f.notifyClient(ctx, s)
	}
	return f.detail(ctx, actor, s)
}

func (f *ShipmentFlowImpl) RecordActualCost(ctx context.Context, actor Actor, shipmentUUID uuid.UUID, req *dto.RecordActualCostRequest, metadata *ClientMetadata) (*dto.ShipmentDTO, error) {
	if !finite(req.ActualCost) || req.ActualCost < 0 {
		return nil, fieldError("actual_cost", "must be zero or positive")
	}

	var shipment *models.Shipment
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		s, err := f.lockShipment(txCtx, shipmentUUID)
		if err != nil {
			return err
		}
		if err := authorize(models.EntityTypeShipment, GuardActionRecordCost, actor, shipmentSubject(s)); err != nil {
			return err
		}

		var previous any
		if s.ActualCost != nil {
			previous = *s.ActualCost
		}
		s.ActualCost = utils.ToPtr(req.ActualCost)
		if err := f.shipmentRepo.Update(txCtx, s); err != nil {
			return NewBusinessError("SHIPMENT_UPDATE_FAILED", "Failed to update shipment", err)
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionShipmentCostRecorded,
			EntityType:  string(models.EntityTypeShipment),
			EntityID:    s.ID,
			Description: fmt.Sprintf("Actual cost of %s set to %.2f %s", s.TrackingNumber, req.ActualCost, s.Currency),
			Metadata:    map[string]any{"from": previous, "to": req.ActualCost},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		shipment = s
		return nil
	})
	if err != nil {
		logSystemError(ctx, "RecordActualCost", err)
		return nil, err
	}
	return f.detail(ctx, actor, shipment)
}

func (f *ShipmentFlowImpl) notifyClient(ctx context.Context, s *models.Shipment) {
	if f.notifier == nil {
		return
	}
	user, err := f.userRepo.ByID(ctx, s.ClientID)
	if err != nil || user == nil {
		return
	}
	label := StatusLabel(s.Status, "en")
	notifyContact(ctx, f.notifier, &user.Email, user.Phone, fmt.Sprintf("Shipment %s", s.TrackingNumber),
		fmt.Sprintf("Your shipment %s is now: %s.", s.TrackingNumber, label))
}
