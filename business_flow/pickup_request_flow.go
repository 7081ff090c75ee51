package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/services"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PickupRequestFlow handles collection requests and their lifecycle
type PickupRequestFlow interface {
	CreatePickupRequest(ctx context.Context, actor Actor, req *dto.CreatePickupRequestRequest, metadata *ClientMetadata) (*dto.PickupRequestDTO, error)
	ListPickupRequests(ctx context.Context, actor Actor, req *dto.ListRequestsRequest) (*dto.ListPickupRequestsResponse, error)
	GetPickupRequest(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.PickupRequestDTO, error)
	GetPickupRequestHistory(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.StatusHistoryResponse, error)
	SchedulePickup(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.SchedulePickupRequest, metadata *ClientMetadata) (*dto.PickupRequestDTO, error)
	CompletePickup(ctx context.Context, actor Actor, requestUUID uuid.UUID, note *string, metadata *ClientMetadata) (*dto.PickupRequestDTO, error)
	CancelPickup(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.PickupRequestDTO, error)
}

// PickupRequestFlowImpl implements the pickup request business flow
type PickupRequestFlowImpl struct {
	pickupRepo  repository.PickupRequestRepository
	historyRepo repository.StatusHistoryRepository
	sequence    SequenceGenerator
	notifier    services.NotificationService
	db          *gorm.DB
}

// NewPickupRequestFlow creates a new pickup request flow
func NewPickupRequestFlow(
	pickupRepo repository.PickupRequestRepository,
	historyRepo repository.StatusHistoryRepository,
	sequence SequenceGenerator,
	notifier services.NotificationService,
	db *gorm.DB,
) PickupRequestFlow {
	return &PickupRequestFlowImpl{
		pickupRepo:  pickupRepo,
		historyRepo: historyRepo,
		sequence:    sequence,
		notifier:    notifier,
		db:          db,
	}
}

// newPickupRequest builds an unsaved request from a submission
func newPickupRequest(req *dto.CreatePickupRequestRequest) (*models.PickupRequest, error) {
	var errs ValidationErrors
	cargo, err := models.ParseCargoType(req.CargoType)
	if err != nil {
		errs.Add("cargo_type", err.Error())
	}
	country := strings.ToUpper(strings.TrimSpace(req.PickupCountry))
	if !isCountryCode(country) {
		errs.Add("pickup_country", "must be a 2-letter country code")
	}
	var dest *string
	if req.DestinationCountry != nil {
		d := strings.ToUpper(strings.TrimSpace(*req.DestinationCountry))
		if !isCountryCode(d) {
			errs.Add("destination_country", "must be a 2-letter country code")
		}
		dest = &d
	}
	if req.PackageCount < 1 {
		errs.Add("package_count", "must be at least 1")
	}
	if strings.TrimSpace(req.ContactPhone) == "" {
		errs.Add("contact_phone", "is required")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	return &models.PickupRequest{
		ContactName:        strings.TrimSpace(req.ContactName),
		ContactEmail:       normalizedEmail(req.ContactEmail),
		ContactPhone:       utils.NormalizePhone(req.ContactPhone),
		PickupAddress:      strings.TrimSpace(req.PickupAddress),
		PickupCity:         strings.TrimSpace(req.PickupCity),
		PickupCountry:      country,
		DestinationCountry: dest,
		CargoDescription:   strings.TrimSpace(req.CargoDescription),
		CargoType:          cargo,
		PackageCount:       req.PackageCount,
		EstimatedWeight:    req.EstimatedWeight,
		PreferredDate:      utils.TimeToUTCPtr(req.PreferredDate),
		Status:             models.PickupStatusRequested,
	}, nil
}

// savePickupRequest numbers and persists p inside the transaction carried by ctx
func savePickupRequest(ctx context.Context, repo repository.PickupRequestRepository, sequence SequenceGenerator, p *models.PickupRequest) error {
	number, err := sequence.Next(ctx, utils.PickupNumberPrefix)
	if err != nil {
		return err
	}
	p.RequestNumber = number
	if err := repo.Save(ctx, p); err != nil {
		return NewBusinessError("PICKUP_REQUEST_CREATE_FAILED", "Failed to create pickup request", err)
	}
	return nil
}

func (f *PickupRequestFlowImpl) CreatePickupRequest(ctx context.Context, actor Actor, req *dto.CreatePickupRequestRequest, metadata *ClientMetadata) (*dto.PickupRequestDTO, error) {
	if actor.IsAnonymous() {
		return nil, NewBusinessError("UNAUTHENTICATED", "authentication required", ErrUnauthenticated)
	}
	p, err := newPickupRequest(req)
	if err != nil {
		return nil, err
	}
	p.UserID = utils.ToPtr(actor.UserID)

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return savePickupRequest(txCtx, f.pickupRepo, f.sequence, p)
	})
	if err != nil {
		logSystemError(ctx, "CreatePickupRequest", err)
		return nil, err
	}

	out := ToPickupRequestDTO(p, actor)
	return &out, nil
}

func (f *PickupRequestFlowImpl) ListPickupRequests(ctx context.Context, actor Actor, req *dto.ListRequestsRequest) (*dto.ListPickupRequestsResponse, error) {
	if actor.IsAnonymous() {
		return nil, NewBusinessError("UNAUTHENTICATED", "authentication required", ErrUnauthenticated)
	}

	filter := models.PickupRequestFilter{}
	if req.Status != nil {
		s := models.PickupStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if !s.Valid() {
			return nil, fieldError("status", fmt.Sprintf("unknown pickup status %q", *req.Status))
		}
		filter.Status = &s
	}
	if actor.Role.IsStaff() {
		filter.UserID = req.UserID
	} else {
		filter.UserID = utils.ToPtr(actor.UserID)
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.pickupRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("PICKUP_REQUEST_LIST_FAILED", "Failed to count pickup requests", err)
	}
	rows, err := f.pickupRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		return nil, NewBusinessError("PICKUP_REQUEST_LIST_FAILED", "Failed to list pickup requests", err)
	}

	items := make([]dto.PickupRequestDTO, 0, len(rows))
	for _, p := range rows {
		items = append(items, ToPickupRequestDTO(p, actor))
	}
	return &dto.ListPickupRequestsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

func (f *PickupRequestFlowImpl) loadVisible(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*models.PickupRequest, error) {
	p, err := f.pickupRepo.ByUUID(ctx, requestUUID)
	if err != nil {
		return nil, NewBusinessError("PICKUP_REQUEST_LOAD_FAILED", "Failed to load pickup request", err)
	}
	if p == nil {
		return nil, ErrPickupRequestNotFound
	}
	if err := authorize(models.EntityTypePickupRequest, GuardActionView, actor, Subject{OwnerID: p.UserID}); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *PickupRequestFlowImpl) GetPickupRequest(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.PickupRequestDTO, error) {
	p, err := f.loadVisible(ctx, actor, requestUUID)
	if err != nil {
		return nil, err
	}
	out := ToPickupRequestDTO(p, actor)
	return &out, nil
}

func (f *PickupRequestFlowImpl) GetPickupRequestHistory(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.StatusHistoryResponse, error) {
	p, err := f.loadVisible(ctx, actor, requestUUID)
	if err != nil {
		return nil, err
	}
	rows, err := f.historyRepo.ListByEntity(ctx, models.EntityTypePickupRequest, p.ID)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOAD_FAILED", "Failed to load status history", err)
	}
	return &dto.StatusHistoryResponse{
		EntityType: string(models.EntityTypePickupRequest),
		EntityUUID: p.UUID.String(),
		Items:      ToStatusHistoryItems(rows),
	}, nil
}

func (f *PickupRequestFlowImpl) pickupTransition(actor Actor, action models.PickupAction) transition[models.PickupRequest, models.PickupStatus, models.PickupAction] {
	return transition[models.PickupRequest, models.PickupStatus, models.PickupAction]{
		entity:    models.EntityTypePickupRequest,
		machine:   models.PickupMachine,
		action:    action,
		actor:     actor,
		lock:      f.pickupRepo.LockByUUID,
		update:    f.pickupRepo.Update,
		notFound:  ErrPickupRequestNotFound,
		id:        func(p *models.PickupRequest) uint { return p.ID },
		status:    func(p *models.PickupRequest) models.PickupStatus { return p.Status },
		setStatus: func(p *models.PickupRequest, s models.PickupStatus) { p.Status = s },
		subject:   func(p *models.PickupRequest) Subject { return Subject{OwnerID: p.UserID} },
	}
}

func (f *PickupRequestFlowImpl) run(ctx context.Context, requestUUID uuid.UUID, t transition[models.PickupRequest, models.PickupStatus, models.PickupAction], metadata *ClientMetadata, message func(*models.PickupRequest) string) (*dto.PickupRequestDTO, error) {
	res, err := runTransition(ctx, f.db, f.historyRepo, requestUUID, t, metadata)
	if err != nil {
		return nil, err
	}
	p := res.Entity
	if !res.Replayed && message != nil {
		notifyContact(ctx, f.notifier, p.ContactEmail, &p.ContactPhone, fmt.Sprintf("Pickup request %s", p.RequestNumber), message(p))
	}
	out := ToPickupRequestDTO(p, t.actor)
	return &out, nil
}

func (f *PickupRequestFlowImpl) SchedulePickup(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.SchedulePickupRequest, metadata *ClientMetadata) (*dto.PickupRequestDTO, error) {
	if req.ScheduledDate.IsZero() {
		return nil, fieldError("scheduled_date", "is required")
	}
	date := req.ScheduledDate.UTC()

	t := f.pickupTransition(actor, models.PickupActionSchedule)
	t.note = trimmedPtr(req.Note)
	t.metadata = map[string]any{"scheduled_date": formatTime(date)}
	t.replayed = func(p *models.PickupRequest) bool {
		return p.ScheduledDate != nil && p.ScheduledDate.Equal(date)
	}
	t.apply = func(_ context.Context, p *models.PickupRequest) error {
		p.ScheduledDate = &date
		return nil
	}
	return f.run(ctx, requestUUID, t, metadata, func(p *models.PickupRequest) string {
		return fmt.Sprintf("Your pickup %s is scheduled for %s.", p.RequestNumber, date.Format("2006-01-02"))
	})
}

func (f *PickupRequestFlowImpl) CompletePickup(ctx context.Context, actor Actor, requestUUID uuid.UUID, note *string, metadata *ClientMetadata) (*dto.PickupRequestDTO, error) {
	t := f.pickupTransition(actor, models.PickupActionComplete)
	t.note = trimmedPtr(note)
	t.replayed = func(*models.PickupRequest) bool { return true }
	t.apply = func(_ context.Context, p *models.PickupRequest) error {
		p.CompletedAt = utils.UTCNowPtr()
		return nil
	}
	return f.run(ctx, requestUUID, t, metadata, func(p *models.PickupRequest) string {
		return fmt.Sprintf("Your goods for pickup %s have been collected.", p.RequestNumber)
	})
}

func (f *PickupRequestFlowImpl) CancelPickup(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.PickupRequestDTO, error) {
	reason, err := requireReason(req)
	if err != nil {
		return nil, err
	}

	t := f.pickupTransition(actor, models.PickupActionCancel)
	t.note = &reason
	t.replayed = func(p *models.PickupRequest) bool { return sameText(p.CancellationReason, reason) }
	t.apply = func(_ context.Context, p *models.PickupRequest) error {
		p.CancellationReason = &reason
		p.CancelledAt = utils.UTCNowPtr()
		return nil
	}
	return f.run(ctx, requestUUID, t, metadata, func(p *models.PickupRequest) string {
		return fmt.Sprintf("Your pickup %s was cancelled: %s", p.RequestNumber, reason)
	})
}

func normalizedEmail(email *string) *string {
	if email == nil {
		return nil
	}
	return utils.NilIfEmpty(utils.NormalizeEmail(*email))
}
