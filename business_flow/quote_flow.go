package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/services"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// QuoteFlow handles pricing requests and the quote lifecycle
type QuoteFlow interface {
	EstimateQuote(ctx context.Context, req *dto.QuoteEstimateRequest) (*dto.QuoteEstimateResponse, error)
	CreateQuote(ctx context.Context, actor Actor, req *dto.CreateQuoteRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	ListQuotes(ctx context.Context, actor Actor, req *dto.ListQuotesRequest) (*dto.ListQuotesResponse, error)
	GetQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID) (*dto.QuoteDTO, error)
	GetQuoteHistory(ctx context.Context, actor Actor, quoteUUID uuid.UUID) (*dto.StatusHistoryResponse, error)

	SubmitQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, note *string, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	SendQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, note *string, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	AcceptQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.AcceptQuoteRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	RejectQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	ExpireQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	StartTreatment(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.StartTreatmentRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	ValidateQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ValidateQuoteRequest, metadata *ClientMetadata) (*dto.ValidateQuoteResponse, error)
	CancelQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error)

	ChangePaymentMethod(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ChangePaymentMethodRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error)
	RecordPaymentReceived(ctx context.Context, actor Actor, quoteUUID uuid.UUID, metadata *ClientMetadata) (*dto.QuoteDTO, error)

	ExpireOverdueQuotes(ctx context.Context, limit int) (int, error)
}

// QuoteFlowImpl implements the quote business flow
type QuoteFlowImpl struct {
	quoteRepo     repository.QuoteRepository
	shipmentRepo  repository.ShipmentRepository
	rateRepo      repository.TransportRateRepository
	historyRepo   repository.StatusHistoryRepository
	auditRepo     repository.AuditLogRepository
	userRepo      repository.UserRepository
	pricing       PricingConfigFlow
	sequence      SequenceGenerator
	notifier      services.NotificationService
	db            *gorm.DB
	quoteValidity time.Duration
}

// NewQuoteFlow creates a new quote flow. A zero quoteValidity falls back to the default window.
func NewQuoteFlow(
	quoteRepo repository.QuoteRepository,
	shipmentRepo repository.ShipmentRepository,
	rateRepo repository.TransportRateRepository,
	historyRepo repository.StatusHistoryRepository,
	auditRepo repository.AuditLogRepository,
	userRepo repository.UserRepository,
	pricing PricingConfigFlow,
	sequence SequenceGenerator,
	notifier services.NotificationService,
	db *gorm.DB,
	quoteValidity time.Duration,
) QuoteFlow {
	if quoteValidity <= 0 {
		quoteValidity = utils.QuoteValidity
	}
	return &QuoteFlowImpl{
		quoteRepo:     quoteRepo,
		shipmentRepo:  shipmentRepo,
		rateRepo:      rateRepo,
		historyRepo:   historyRepo,
		auditRepo:     auditRepo,
		userRepo:      userRepo,
		pricing:       pricing,
		sequence:      sequence,
		notifier:      notifier,
		db:            db,
		quoteValidity: quoteValidity,
	}
}

type estimateInput struct {
	route    Route
	packages []models.QuotePackageLine
	modes    []models.TransportMode
	priority models.Priority
}

func estimateInputFromRequest(req *dto.QuoteEstimateRequest) estimateInput {
	in := estimateInput{
		route: Route{
			OriginCountry:      strings.ToUpper(strings.TrimSpace(req.OriginCountry)),
			DestinationCountry: strings.ToUpper(strings.TrimSpace(req.DestinationCountry)),
		},
		priority: models.Priority(strings.ToUpper(strings.TrimSpace(req.Priority))),
	}
	for _, m := range req.TransportModes {
		in.modes = append(in.modes, models.TransportMode(strings.ToUpper(strings.TrimSpace(m))))
	}
	for _, p := range req.Packages {
		in.packages = append(in.packages, models.QuotePackageLine{
			Description: strings.TrimSpace(p.Description),
			Quantity:    p.Quantity,
			CargoType:   models.CargoType(strings.ToUpper(strings.TrimSpace(p.CargoType))),
			Weight:      p.Weight,
			Length:      p.Length,
			Width:       p.Width,
			Height:      p.Height,
		})
	}
	return in
}

// estimate loads the active configuration and route rates, then prices the request
func (f *QuoteFlowImpl) estimate(ctx context.Context, in estimateInput) (*QuoteEstimate, error) {
	cfg, err := f.pricing.GetActiveConfig(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := f.rateRepo.ActiveForRoute(ctx, in.route.OriginCountry, in.route.DestinationCountry)
	if err != nil {
		return nil, NewBusinessError("TRANSPORT_RATE_LOAD_FAILED", "Failed to load route rates", err)
	}
	return EstimateMultiPackage(in.route, in.packages, in.modes, in.priority, cfg, NewRateTable(rates))
}

func (f *QuoteFlowImpl) EstimateQuote(ctx context.Context, req *dto.QuoteEstimateRequest) (*dto.QuoteEstimateResponse, error) {
	est, err := f.estimate(ctx, estimateInputFromRequest(req))
	observeEstimate(err)
	if err != nil {
		logSystemError(ctx, "EstimateQuote", err)
		return nil, err
	}
	resp := ToEstimateResponse(est)
	return &resp, nil
}

func (f *QuoteFlowImpl) CreateQuote(ctx context.Context, actor Actor, req *dto.CreateQuoteRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	if actor.IsAnonymous() {
		return nil, NewBusinessError("UNAUTHENTICATED", "authentication required", ErrUnauthenticated)
	}

	in := estimateInputFromRequest(&req.QuoteEstimateRequest)
	est, err := f.estimate(ctx, in)
	observeEstimate(err)
	if err != nil {
		logSystemError(ctx, "CreateQuote", err)
		return nil, err
	}

	status := models.QuoteStatusSubmitted
	if req.SaveAsDraft {
		status = models.QuoteStatusDraft
	}

	modes := make(pq.StringArray, 0, len(est.TransportModes))
	for _, m := range est.TransportModes {
		modes = append(modes, string(m))
	}

	quote := &models.Quote{
		ClientID:              actor.UserID,
		CompanyID:             actor.CompanyID,
		OriginCountry:         in.route.OriginCountry,
		OriginCity:            trimmedPtr(req.OriginCity),
		DestinationCountry:    in.route.DestinationCountry,
		DestinationCity:       trimmedPtr(req.DestinationCity),
		TransportModes:        modes,
		Priority:              est.Priority,
		Packages:              in.packages,
		EstimateLines:         est.Lines,
		TotalWeight:           est.TotalWeight,
		TotalPackageCount:     est.TotalPackageCount,
		DominantCargoType:     est.DominantCargoType,
		TotalBeforePriority:   est.TotalBeforePriority,
		EstimatedCost:         est.TotalPrice,
		EstimatedDeliveryDays: est.EstimatedDeliveryDays,
		Currency:              est.Currency,
		PricingConfigVersion:  est.PricingConfigVersion,
		Status:                status,
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		number, err := f.sequence.Next(txCtx, utils.QuoteNumberPrefix)
		if err != nil {
			return err
		}
		quote.QuoteNumber = number
		if err := f.quoteRepo.Save(txCtx, quote); err != nil {
			return NewBusinessError("QUOTE_CREATE_FAILED", "Failed to create quote", err)
		}
		return nil
	})
	if err != nil {
		logSystemError(ctx, "CreateQuote", err)
		return nil, err
	}

	out := ToQuoteDTO(quote, actor, nil)
	return &out, nil
}

func (f *QuoteFlowImpl) ListQuotes(ctx context.Context, actor Actor, req *dto.ListQuotesRequest) (*dto.ListQuotesResponse, error) {
	if actor.IsAnonymous() {
		return nil, NewBusinessError("UNAUTHENTICATED", "authentication required", ErrUnauthenticated)
	}

	filter := models.QuoteFilter{}
	if req.Status != nil {
		s := models.QuoteStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if !s.Valid() {
			return nil, fieldError("status", fmt.Sprintf("unknown quote status %q", *req.Status))
		}
		filter.Status = &s
	}
	if actor.Role.IsStaff() {
		filter.ClientID = req.ClientID
	} else {
		filter.ClientID = utils.ToPtr(actor.UserID)
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.quoteRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LIST_FAILED", "Failed to count quotes", err)
	}
	rows, err := f.quoteRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		return nil, NewBusinessError("QUOTE_LIST_FAILED", "Failed to list quotes", err)
	}

	items := make([]dto.QuoteDTO, 0, len(rows))
	for _, q := range rows {
		tracking, err := f.trackingNumberOf(ctx, q)
		if err != nil {
			return nil, err
		}
		items = append(items, ToQuoteDTO(q, actor, tracking))
	}

	return &dto.ListQuotesResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

// loadVisible fetches a quote and applies the view guard
func (f *QuoteFlowImpl) loadVisible(ctx context.Context, actor Actor, quoteUUID uuid.UUID) (*models.Quote, error) {
	q, err := f.quoteRepo.ByUUID(ctx, quoteUUID)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LOAD_FAILED", "Failed to load quote", err)
	}
	if q == nil {
		return nil, ErrQuoteNotFound
	}
	if err := authorize(models.EntityTypeQuote, GuardActionView, actor, quoteSubject(q)); err != nil {
		return nil, err
	}
	return q, nil
}

func (f *QuoteFlowImpl) trackingNumberOf(ctx context.Context, q *models.Quote) (*string, error) {
	if q.Status != models.QuoteStatusValidated {
		return nil, nil
	}
	s, err := f.shipmentRepo.ByQuoteID(ctx, q.ID)
	if err != nil {
		return nil, NewBusinessError("SHIPMENT_LOAD_FAILED", "Failed to load shipment", err)
	}
	if s == nil {
		return nil, nil
	}
	return &s.TrackingNumber, nil
}

func (f *QuoteFlowImpl) render(ctx context.Context, actor Actor, q *models.Quote) (*dto.QuoteDTO, error) {
	tracking, err := f.trackingNumberOf(ctx, q)
	if err != nil {
		return nil, err
	}
	out := ToQuoteDTO(q, actor, tracking)
	return &out, nil
}

func (f *QuoteFlowImpl) GetQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID) (*dto.QuoteDTO, error) {
	q, err := f.loadVisible(ctx, actor, quoteUUID)
	if err != nil {
		return nil, err
	}
	return f.render(ctx, actor, q)
}

func (f *QuoteFlowImpl) GetQuoteHistory(ctx context.Context, actor Actor, quoteUUID uuid.UUID) (*dto.StatusHistoryResponse, error) {
	q, err := f.loadVisible(ctx, actor, quoteUUID)
	if err != nil {
		return nil, err
	}
	rows, err := f.historyRepo.ListByEntity(ctx, models.EntityTypeQuote, q.ID)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOAD_FAILED", "Failed to load status history", err)
	}
	return &dto.StatusHistoryResponse{
		EntityType: string(models.EntityTypeQuote),
		EntityUUID: q.UUID.String(),
		Items:      ToStatusHistoryItems(rows),
	}, nil
}

// quoteTransition prefills the quote-specific parts of a transition
func (f *QuoteFlowImpl) quoteTransition(actor Actor, action models.QuoteAction) transition[models.Quote, models.QuoteStatus, models.QuoteAction] {
	return transition[models.Quote, models.QuoteStatus, models.QuoteAction]{
		entity:    models.EntityTypeQuote,
		machine:   models.QuoteMachine,
		action:    action,
		actor:     actor,
		lock:      f.quoteRepo.LockByUUID,
		update:    f.quoteRepo.Update,
		notFound:  ErrQuoteNotFound,
		id:        func(q *models.Quote) uint { return q.ID },
		status:    func(q *models.Quote) models.QuoteStatus { return q.Status },
		setStatus: func(q *models.Quote, s models.QuoteStatus) { q.Status = s },
		subject:   quoteSubject,
	}
}

func (f *QuoteFlowImpl) runQuote(ctx context.Context, quoteUUID uuid.UUID, t transition[models.Quote, models.QuoteStatus, models.QuoteAction], metadata *ClientMetadata) (*dto.QuoteDTO, bool, error) {
	res, err := runTransition(ctx, f.db, f.historyRepo, quoteUUID, t, metadata)
	if err != nil {
		return nil, false, err
	}
	out, err := f.render(ctx, t.actor, res.Entity)
	if err != nil {
		return nil, false, err
	}
	return out, !res.Replayed, nil
}

func (f *QuoteFlowImpl) SubmitQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, note *string, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	t := f.quoteTransition(actor, models.QuoteActionSubmit)
	t.note = trimmedPtr(note)
	t.replayed = func(*models.Quote) bool { return true }
	out, _, err := f.runQuote(ctx, quoteUUID, t, metadata)
	return out, err
}

func (f *QuoteFlowImpl) SendQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, note *string, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	t := f.quoteTransition(actor, models.QuoteActionSend)
	t.note = trimmedPtr(note)
	t.replayed = func(*models.Quote) bool { return true }
	t.apply = func(_ context.Context, q *models.Quote) error {
		now := utils.UTCNow()
		q.SentAt = &now
		q.ValidUntil = utils.ToPtr(now.Add(f.quoteValidity))
		return nil
	}
	t.metadata = map[string]any{"validity_days": int(f.quoteValidity.Hours() / 24)}

	out, changed, err := f.runQuote(ctx, quoteUUID, t, metadata)
	if err != nil {
		return nil, err
	}
	if changed {
		f.notifyClient(ctx, out.ClientID, fmt.Sprintf("Quote %s", out.QuoteNumber),
			fmt.Sprintf("Your quote %s is ready: %.2f %s, valid until %s.", out.QuoteNumber, out.EstimatedCost, out.Currency, utils.Deref(out.ValidUntil)))
	}
	return out, nil
}

func (f *QuoteFlowImpl) AcceptQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.AcceptQuoteRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, fieldError("payment_method", err.Error())
	}

	t := f.quoteTransition(actor, models.QuoteActionAccept)
	t.metadata = map[string]any{"payment_method": string(method)}
	t.replayed = func(q *models.Quote) bool {
		return q.PaymentMethod != nil && *q.PaymentMethod == method
	}
	t.precheck = func(q *models.Quote) error {
		if q.ValidUntil != nil && utils.IsExpiredPtr(q.ValidUntil) {
			return newStateConflict(string(models.EntityTypeQuote), q.Status, models.QuoteActionAccept, "quote validity has elapsed")
		}
		return nil
	}
	t.apply = func(_ context.Context, q *models.Quote) error {
		q.PaymentMethod = &method
		q.AcceptedAt = utils.UTCNowPtr()
		q.AcceptedByID = actor.idPtr()
		return nil
	}
	out, _, err := f.runQuote(ctx, quoteUUID, t, metadata)
	return out, err
}

func (f *QuoteFlowImpl) RejectQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	reason, err := requireReason(req)
	if err != nil {
		return nil, err
	}

	t := f.quoteTransition(actor, models.QuoteActionReject)
	t.note = &reason
	t.replayed = func(q *models.Quote) bool { return sameText(q.RejectionReason, reason) }
	t.apply = func(_ context.Context, q *models.Quote) error {
		q.RejectionReason = &reason
		return nil
	}
	out, _, err := f.runQuote(ctx, quoteUUID, t, metadata)
	return out, err
}

func (f *QuoteFlowImpl) ExpireQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	t := f.quoteTransition(actor, models.QuoteActionExpire)
	t.replayed = func(*models.Quote) bool { return true }
	out, _, err := f.runQuote(ctx, quoteUUID, t, metadata)
	return out, err
}

// ExpireOverdueQuotes moves up to limit SENT quotes whose validity has elapsed to EXPIRED
// as the system actor. A quote that changed state in the meantime is skipped.
func (f *QuoteFlowImpl) ExpireOverdueQuotes(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := models.QuoteFilter{
		Status:      utils.ToPtr(models.QuoteStatusSent),
		ValidBefore: utils.ToPtr(utils.UTCNow()),
	}
	rows, err := f.quoteRepo.ByFilter(ctx, filter, "valid_until ASC, id ASC", limit, 0)
	if err != nil {
		logSystemError(ctx, "ExpireOverdueQuotes", err)
		return 0, NewBusinessError("QUOTE_LIST_FAILED", "Failed to list overdue quotes", err)
	}

	expired := 0
	for _, q := range rows {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if _, err := f.ExpireQuote(ctx, SystemActor, q.UUID, nil); err != nil {
			if IsStateConflict(err) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (f *QuoteFlowImpl) StartTreatment(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.StartTreatmentRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	comment := trimmedPtr(req.Comment)

	t := f.quoteTransition(actor, models.QuoteActionStartTreatment)
	t.note = comment
	t.replayed = func(q *models.Quote) bool {
		if comment == nil {
			return q.TreatmentComment == nil
		}
		return sameText(q.TreatmentComment, *comment)
	}
	t.precheck = func(q *models.Quote) error {
		if q.PaymentMethod == nil {
			return newStateConflict(string(models.EntityTypeQuote), q.Status, models.QuoteActionStartTreatment, "payment method not chosen")
		}
		return nil
	}
	t.apply = func(_ context.Context, q *models.Quote) error {
		q.TreatmentStartedAt = utils.UTCNowPtr()
		q.TreatmentComment = comment
		return nil
	}
	out, _, err := f.runQuote(ctx, quoteUUID, t, metadata)
	return out, err
}

// ValidateQuote finalizes a quote and registers its shipment in the same transaction.
// Repeating it is a state conflict so a quote never yields a second shipment.
func (f *QuoteFlowImpl) ValidateQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ValidateQuoteRequest, metadata *ClientMetadata) (*dto.ValidateQuoteResponse, error) {
	if req.PackageCount < 1 {
		return nil, fieldError("package_count", "must be at least 1")
	}

	var shipment *models.Shipment
	t := f.quoteTransition(actor, models.QuoteActionValidate)
	t.note = trimmedPtr(req.Comment)
	t.apply = func(txCtx context.Context, q *models.Quote) error {
		existing, err := f.shipmentRepo.ByQuoteID(txCtx, q.ID)
		if err != nil {
			return NewBusinessError("SHIPMENT_LOAD_FAILED", "Failed to load shipment", err)
		}
		if existing != nil {
			return newStateConflict(string(models.EntityTypeQuote), q.Status, models.QuoteActionValidate, "quote already has a shipment")
		}

		number, err := f.sequence.Next(txCtx, utils.TrackingNumberPrefix)
		if err != nil {
			return err
		}
		status := models.ShipmentStatusRegistered
		if req.HoldUnpublished {
			status = models.ShipmentStatusDraft
		}
		mode := models.TransportModeRoad
		if len(q.TransportModes) > 0 {
			mode = models.TransportMode(q.TransportModes[0])
		}
		shipment = &models.Shipment{
			TrackingNumber:     number,
			QuoteID:            q.ID,
			ClientID:           q.ClientID,
			OriginCountry:      q.OriginCountry,
			OriginCity:         q.OriginCity,
			DestinationCountry: q.DestinationCountry,
			DestinationCity:    q.DestinationCity,
			TransportMode:      mode,
			PackageCount:       req.PackageCount,
			CargoDescription:   trimmedPtr(req.CargoDescription),
			TotalWeight:        q.TotalWeight,
			EstimatedCost:      q.EstimatedCost,
			Currency:           q.Currency,
			Status:             status,
			CreatedByID:        actor.idPtr(),
		}
		if err := f.shipmentRepo.Save(txCtx, shipment); err != nil {
			return NewBusinessError("SHIPMENT_CREATE_FAILED", "Failed to create shipment", err)
		}

		q.ValidatedAt = utils.UTCNowPtr()
		q.ValidatedByID = actor.idPtr()
		return nil
	}
	t.metadata = map[string]any{"package_count": req.PackageCount, "hold_unpublished": req.HoldUnpublished}

	res, err := runTransition(ctx, f.db, f.historyRepo, quoteUUID, t, metadata)
	if err != nil {
		return nil, err
	}

	q := res.Entity
	if shipment.Status.IsPublished() {
		f.notifyClient(ctx, q.ClientID, fmt.Sprintf("Shipment %s", shipment.TrackingNumber),
			fmt.Sprintf("Your quote %s is confirmed. Track your shipment with %s.", q.QuoteNumber, shipment.TrackingNumber))
	}

	shipment.Quote = q
	return &dto.ValidateQuoteResponse{
		Quote:    ToQuoteDTO(q, actor, &shipment.TrackingNumber),
		Shipment: ToShipmentDTO(shipment, nil, actor),
	}, nil
}

func (f *QuoteFlowImpl) CancelQuote(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	reason, err := requireReason(req)
	if err != nil {
		return nil, err
	}

	t := f.quoteTransition(actor, models.QuoteActionCancel)
	t.note = &reason
	t.replayed = func(q *models.Quote) bool { return sameText(q.CancellationReason, reason) }
	t.apply = func(_ context.Context, q *models.Quote) error {
		q.CancellationReason = &reason
		q.CancelledAt = utils.UTCNowPtr()
		return nil
	}
	out, changed, err := f.runQuote(ctx, quoteUUID, t, metadata)
	if err != nil {
		return nil, err
	}
	if changed {
		f.notifyClient(ctx, out.ClientID, fmt.Sprintf("Quote %s cancelled", out.QuoteNumber),
			fmt.Sprintf("Your quote %s was cancelled: %s", out.QuoteNumber, reason))
	}
	return out, nil
}

var paymentMethodStatuses = map[models.QuoteStatus]bool{
	models.QuoteStatusAccepted:    true,
	models.QuoteStatusInTreatment: true,
	models.QuoteStatusValidated:   true,
}

func (f *QuoteFlowImpl) ChangePaymentMethod(ctx context.Context, actor Actor, quoteUUID uuid.UUID, req *dto.ChangePaymentMethodRequest, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, fieldError("payment_method", err.Error())
	}

	var quote *models.Quote
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		q, err := f.lockQuote(txCtx, quoteUUID)
		if err != nil {
			return err
		}
		if err := authorize(models.EntityTypeQuote, GuardActionChangePaymentMethod, actor, quoteSubject(q)); err != nil {
			return err
		}
		if !paymentMethodStatuses[q.Status] {
			return newStateConflict(string(models.EntityTypeQuote), q.Status, GuardActionChangePaymentMethod, "")
		}
		if q.PaymentReceivedAt != nil {
			return newStateConflict(string(models.EntityTypeQuote), q.Status, GuardActionChangePaymentMethod, "payment already received")
		}
		quote = q
		if q.PaymentMethod != nil && *q.PaymentMethod == method {
			return nil
		}

		previous := ""
		if q.PaymentMethod != nil {
			previous = string(*q.PaymentMethod)
		}
		q.PaymentMethod = &method
		if err := f.quoteRepo.Update(txCtx, q); err != nil {
			return NewBusinessError("QUOTE_UPDATE_FAILED", "Failed to update quote", err)
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionPaymentMethodChanged,
			EntityType:  string(models.EntityTypeQuote),
			EntityID:    q.ID,
			Description: fmt.Sprintf("Payment method of %s changed to %s", q.QuoteNumber, method),
			Metadata:    map[string]any{"from": previous, "to": string(method)},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		logSystemError(ctx, "ChangePaymentMethod", err)
		return nil, err
	}
	return f.render(ctx, actor, quote)
}

func (f *QuoteFlowImpl) RecordPaymentReceived(ctx context.Context, actor Actor, quoteUUID uuid.UUID, metadata *ClientMetadata) (*dto.QuoteDTO, error) {
	var quote *models.Quote
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		q, err := f.lockQuote(txCtx, quoteUUID)
		if err != nil {
			return err
		}
		if err := authorize(models.EntityTypeQuote, GuardActionRecordPayment, actor, quoteSubject(q)); err != nil {
			return err
		}
		if q.Status != models.QuoteStatusValidated {
			return newStateConflict(string(models.EntityTypeQuote), q.Status, GuardActionRecordPayment, "quote is not validated")
		}
		if q.PaymentReceivedAt != nil {
			return newStateConflict(string(models.EntityTypeQuote), q.Status, GuardActionRecordPayment, "payment already received")
		}

		q.PaymentReceivedAt = utils.UTCNowPtr()
		q.PaymentReceivedByID = actor.idPtr()
		if err := f.quoteRepo.Update(txCtx, q); err != nil {
			return NewBusinessError("QUOTE_UPDATE_FAILED", "Failed to update quote", err)
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionPaymentReceived,
			EntityType:  string(models.EntityTypeQuote),
			EntityID:    q.ID,
			Description: fmt.Sprintf("Payment received for %s", q.QuoteNumber),
			Metadata:    map[string]any{"amount": q.EstimatedCost, "currency": q.Currency},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		quote = q
		return nil
	})
	if err != nil {
		logSystemError(ctx, "RecordPaymentReceived", err)
		return nil, err
	}
	return f.render(ctx, actor, quote)
}

func (f *QuoteFlowImpl) lockQuote(ctx context.Context, quoteUUID uuid.UUID) (*models.Quote, error) {
	q, err := f.quoteRepo.LockByUUID(ctx, quoteUUID)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LOAD_FAILED", "Failed to load quote", err)
	}
	if q == nil {
		return nil, ErrQuoteNotFound
	}
	return q, nil
}

// notifyClient tells the owner of a quote about a change, after the transaction committed
func (f *QuoteFlowImpl) notifyClient(ctx context.Context, clientID uint, subject, message string) {
	if f.notifier == nil {
		return
	}
	user, err := f.userRepo.ByID(ctx, clientID)
	if err != nil || user == nil {
		return
	}
	notifyContact(ctx, f.notifier, &user.Email, user.Phone, subject, message)
}

// requireReason enforces the minimum length of reject and cancel justifications
func requireReason(req *dto.ReasonRequest) (string, error) {
	if req == nil {
		return "", fieldError("reason", "is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if len([]rune(reason)) < utils.MinReasonLength {
		return "", fieldError("reason", fmt.Sprintf("must be at least %d characters", utils.MinReasonLength))
	}
	return reason, nil
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return utils.NilIfEmpty(strings.TrimSpace(*s))
}
