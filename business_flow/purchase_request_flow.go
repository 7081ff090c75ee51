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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseRequestFlow handles buy-and-ship requests and their lifecycle
type PurchaseRequestFlow interface {
	CreatePurchaseRequest(ctx context.Context, actor Actor, req *dto.CreatePurchaseRequestRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error)
	ListPurchaseRequests(ctx context.Context, actor Actor, req *dto.ListRequestsRequest) (*dto.ListPurchaseRequestsResponse, error)
	GetPurchaseRequest(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.PurchaseRequestDTO, error)
	GetPurchaseRequestHistory(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.StatusHistoryResponse, error)
	StartPurchaseTreatment(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.StartTreatmentRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error)
	CompletePurchase(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.CompletePurchaseRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error)
	CancelPurchase(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error)
}

// PurchaseFeePolicy is the service fee charged on delivered purchases: Rate of the
// actual product cost, never less than Floor
type PurchaseFeePolicy struct {
	Rate  float64
	Floor float64
}

// DefaultPurchaseFeePolicy is 15% with the configured minimum
var DefaultPurchaseFeePolicy = PurchaseFeePolicy{
	Rate:  utils.PurchaseServiceFeeRate,
	Floor: utils.PurchaseServiceFeeFloor,
}

// PurchaseCosts is the cost breakdown of a delivered purchase
type PurchaseCosts struct {
	ServiceFee float64
	Total      float64
}

// Compute returns the fee and the total for the given costs, rounded to 2 decimals
func (p PurchaseFeePolicy) Compute(productCost, deliveryCost float64) PurchaseCosts {
	product := decimal.NewFromFloat(productCost)
	fee := product.Mul(decimal.NewFromFloat(p.Rate))
	if floor := decimal.NewFromFloat(p.Floor); fee.LessThan(floor) {
		fee = floor
	}
	fee = clampZero(fee).Round(moneyPlaces)
	total := product.Add(decimal.NewFromFloat(deliveryCost)).Add(fee).Round(moneyPlaces)
	return PurchaseCosts{
		ServiceFee: fee.InexactFloat64(),
		Total:      total.InexactFloat64(),
	}
}

// PurchaseRequestFlowImpl implements the purchase request business flow
type PurchaseRequestFlowImpl struct {
	purchaseRepo repository.PurchaseRequestRepository
	historyRepo  repository.StatusHistoryRepository
	sequence     SequenceGenerator
	notifier     services.NotificationService
	db           *gorm.DB
	fees         PurchaseFeePolicy
	currency     string
}

// NewPurchaseRequestFlow creates a new purchase request flow
func NewPurchaseRequestFlow(
	purchaseRepo repository.PurchaseRequestRepository,
	historyRepo repository.StatusHistoryRepository,
	sequence SequenceGenerator,
	notifier services.NotificationService,
	db *gorm.DB,
	fees PurchaseFeePolicy,
	currency string,
) PurchaseRequestFlow {
	if currency == "" {
		currency = utils.DefaultCurrency
	}
	return &PurchaseRequestFlowImpl{
		purchaseRepo: purchaseRepo,
		historyRepo:  historyRepo,
		sequence:     sequence,
		notifier:     notifier,
		db:           db,
		fees:         fees,
		currency:     currency,
	}
}

// newPurchaseRequest builds an unsaved request from a submission
func newPurchaseRequest(req *dto.CreatePurchaseRequestRequest, currency string) (*models.PurchaseRequest, error) {
	var errs ValidationErrors
	country := strings.ToUpper(strings.TrimSpace(req.DeliveryCountry))
	if !isCountryCode(country) {
		errs.Add("delivery_country", "must be a 2-letter country code")
	}
	if req.Quantity < 1 {
		errs.Add("quantity", "must be at least 1")
	}
	if req.EstimatedProductCost != nil && *req.EstimatedProductCost < 0 {
		errs.Add("estimated_product_cost", "must be zero or positive")
	}
	if strings.TrimSpace(req.ContactPhone) == "" {
		errs.Add("contact_phone", "is required")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	return &models.PurchaseRequest{
		ContactName:          strings.TrimSpace(req.ContactName),
		ContactEmail:         normalizedEmail(req.ContactEmail),
		ContactPhone:         utils.NormalizePhone(req.ContactPhone),
		ProductName:          strings.TrimSpace(req.ProductName),
		ProductURL:           trimmedPtr(req.ProductURL),
		ProductDescription:   trimmedPtr(req.ProductDescription),
		Quantity:             req.Quantity,
		EstimatedProductCost: req.EstimatedProductCost,
		DeliveryAddress:      strings.TrimSpace(req.DeliveryAddress),
		DeliveryCity:         strings.TrimSpace(req.DeliveryCity),
		DeliveryCountry:      country,
		Currency:             currency,
		Status:               models.PurchaseStatusRequested,
	}, nil
}

// savePurchaseRequest numbers and persists p inside the transaction carried by ctx
func savePurchaseRequest(ctx context.Context, repo repository.PurchaseRequestRepository, sequence SequenceGenerator, p *models.PurchaseRequest) error {
	number, err := sequence.Next(ctx, utils.PurchaseNumberPrefix)
	if err != nil {
		return err
	}
	p.RequestNumber = number
	if err := repo.Save(ctx, p); err != nil {
		return NewBusinessError("PURCHASE_REQUEST_CREATE_FAILED", "Failed to create purchase request", err)
	}
	return nil
}

func (f *PurchaseRequestFlowImpl) CreatePurchaseRequest(ctx context.Context, actor Actor, req *dto.CreatePurchaseRequestRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error) {
	if actor.IsAnonymous() {
		return nil, NewBusinessError("UNAUTHENTICATED", "authentication required", ErrUnauthenticated)
	}
	p, err := newPurchaseRequest(req, f.currency)
	if err != nil {
		return nil, err
	}
	p.UserID = utils.ToPtr(actor.UserID)

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return savePurchaseRequest(txCtx, f.purchaseRepo, f.sequence, p)
	})
	if err != nil {
		logSystemError(ctx, "CreatePurchaseRequest", err)
		return nil, err
	}

	out := ToPurchaseRequestDTO(p, actor)
	return &out, nil
}

func (f *PurchaseRequestFlowImpl) ListPurchaseRequests(ctx context.Context, actor Actor, req *dto.ListRequestsRequest) (*dto.ListPurchaseRequestsResponse, error) {
	if actor.IsAnonymous() {
		return nil, NewBusinessError("UNAUTHENTICATED", "authentication required", ErrUnauthenticated)
	}

	filter := models.PurchaseRequestFilter{}
	if req.Status != nil {
		s := models.PurchaseStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if !s.Valid() {
			return nil, fieldError("status", fmt.Sprintf("unknown purchase status %q", *req.Status))
		}
		filter.Status = &s
	}
	if actor.Role.IsStaff() {
		filter.UserID = req.UserID
	} else {
		filter.UserID = utils.ToPtr(actor.UserID)
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.purchaseRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("PURCHASE_REQUEST_LIST_FAILED", "Failed to count purchase requests", err)
	}
	rows, err := f.purchaseRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		return nil, NewBusinessError("PURCHASE_REQUEST_LIST_FAILED", "Failed to list purchase requests", err)
	}

	items := make([]dto.PurchaseRequestDTO, 0, len(rows))
	for _, p := range rows {
		items = append(items, ToPurchaseRequestDTO(p, actor))
	}
	return &dto.ListPurchaseRequestsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

func (f *PurchaseRequestFlowImpl) loadVisible(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*models.PurchaseRequest, error) {
	p, err := f.purchaseRepo.ByUUID(ctx, requestUUID)
	if err != nil {
		return nil, NewBusinessError("PURCHASE_REQUEST_LOAD_FAILED", "Failed to load purchase request", err)
	}
	if p == nil {
		return nil, ErrPurchaseRequestNotFound
	}
	if err := authorize(models.EntityTypePurchaseRequest, GuardActionView, actor, Subject{OwnerID: p.UserID}); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *PurchaseRequestFlowImpl) GetPurchaseRequest(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.PurchaseRequestDTO, error) {
	p, err := f.loadVisible(ctx, actor, requestUUID)
	if err != nil {
		return nil, err
	}
	out := ToPurchaseRequestDTO(p, actor)
	return &out, nil
}

func (f *PurchaseRequestFlowImpl) GetPurchaseRequestHistory(ctx context.Context, actor Actor, requestUUID uuid.UUID) (*dto.StatusHistoryResponse, error) {
	p, err := f.loadVisible(ctx, actor, requestUUID)
	if err != nil {
		return nil, err
	}
	rows, err := f.historyRepo.ListByEntity(ctx, models.EntityTypePurchaseRequest, p.ID)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOAD_FAILED", "Failed to load status history", err)
	}
	return &dto.StatusHistoryResponse{
		EntityType: string(models.EntityTypePurchaseRequest),
		EntityUUID: p.UUID.String(),
		Items:      ToStatusHistoryItems(rows),
	}, nil
}

func (f *PurchaseRequestFlowImpl) purchaseTransition(actor Actor, action models.PurchaseAction) transition[models.PurchaseRequest, models.PurchaseStatus, models.PurchaseAction] {
	return transition[models.PurchaseRequest, models.PurchaseStatus, models.PurchaseAction]{
		entity:    models.EntityTypePurchaseRequest,
		machine:   models.PurchaseMachine,
		action:    action,
		actor:     actor,
		lock:      f.purchaseRepo.LockByUUID,
		update:    f.purchaseRepo.Update,
		notFound:  ErrPurchaseRequestNotFound,
		id:        func(p *models.PurchaseRequest) uint { return p.ID },
		status:    func(p *models.PurchaseRequest) models.PurchaseStatus { return p.Status },
		setStatus: func(p *models.PurchaseRequest, s models.PurchaseStatus) { p.Status = s },
		subject:   func(p *models.PurchaseRequest) Subject { return Subject{OwnerID: p.UserID} },
	}
}

func (f *PurchaseRequestFlowImpl) run(ctx context.Context, requestUUID uuid.UUID, t transition[models.PurchaseRequest, models.PurchaseStatus, models.PurchaseAction], metadata *ClientMetadata, message func(*models.PurchaseRequest) string) (*dto.PurchaseRequestDTO, error) {
	res, err := runTransition(ctx, f.db, f.historyRepo, requestUUID, t, metadata)
	if err != nil {
		return nil, err
	}
	p := res.Entity
	if !res.Replayed && message != nil {
		notifyContact(ctx, f.notifier, p.ContactEmail, &p.ContactPhone, fmt.Sprintf("Purchase request %s", p.RequestNumber), message(p))
	}
	out := ToPurchaseRequestDTO(p, t.actor)
	return &out, nil
}

func (f *PurchaseRequestFlowImpl) StartPurchaseTreatment(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.StartTreatmentRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error) {
	comment := trimmedPtr(req.Comment)

	t := f.purchaseTransition(actor, models.PurchaseActionStartTreatment)
	t.note = comment
	t.replayed = func(p *models.PurchaseRequest) bool {
		if comment == nil {
			return p.TreatmentComment == nil
		}
		return sameText(p.TreatmentComment, *comment)
	}
	t.apply = func(_ context.Context, p *models.PurchaseRequest) error {
		p.TreatmentStartedAt = utils.UTCNowPtr()
		p.TreatmentComment = comment
		return nil
	}
	return f.run(ctx, requestUUID, t, metadata, func(p *models.PurchaseRequest) string {
		return fmt.Sprintf("We are now buying %s for request %s.", p.ProductName, p.RequestNumber)
	})
}

func (f *PurchaseRequestFlowImpl) CompletePurchase(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.CompletePurchaseRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error) {
	var errs ValidationErrors
	if !finite(req.ActualProductCost) || req.ActualProductCost < 0 {
		errs.Add("actual_product_cost", "must be zero or positive")
	}
	if !finite(req.DeliveryCost) || req.DeliveryCost < 0 {
		errs.Add("delivery_cost", "must be zero or positive")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	costs := f.fees.Compute(req.ActualProductCost, req.DeliveryCost)

	t := f.purchaseTransition(actor, models.PurchaseActionComplete)
	t.note = trimmedPtr(req.Note)
	t.metadata = map[string]any{
		"actual_product_cost": req.ActualProductCost,
		"delivery_cost":       req.DeliveryCost,
		"service_fee":         costs.ServiceFee,
		"total_cost":          costs.Total,
	}
	t.replayed = func(p *models.PurchaseRequest) bool {
		return p.ActualProductCost != nil && *p.ActualProductCost == req.ActualProductCost &&
			p.DeliveryCost != nil && *p.DeliveryCost == req.DeliveryCost
	}
	t.apply = func(_ context.Context, p *models.PurchaseRequest) error {
		p.ActualProductCost = utils.ToPtr(req.ActualProductCost)
		p.DeliveryCost = utils.ToPtr(req.DeliveryCost)
		p.ServiceFee = utils.ToPtr(costs.ServiceFee)
		p.TotalCost = utils.ToPtr(costs.Total)
		p.DeliveredAt = utils.UTCNowPtr()
		return nil
	}
	return f.run(ctx, requestUUID, t, metadata, func(p *models.PurchaseRequest) string {
		return fmt.Sprintf("Your purchase %s was delivered. Total: %.2f %s.", p.RequestNumber, costs.Total, p.Currency)
	})
}

func (f *PurchaseRequestFlowImpl) CancelPurchase(ctx context.Context, actor Actor, requestUUID uuid.UUID, req *dto.ReasonRequest, metadata *ClientMetadata) (*dto.PurchaseRequestDTO, error) {
	reason, err := requireReason(req)
	if err != nil {
		return nil, err
	}

	t := f.purchaseTransition(actor, models.PurchaseActionCancel)
	t.note = &reason
	t.replayed = func(p *models.PurchaseRequest) bool { return sameText(p.CancellationReason, reason) }
	t.apply = func(_ context.Context, p *models.PurchaseRequest) error {
		p.CancellationReason = &reason
		p.CancelledAt = utils.UTCNowPtr()
		return nil
	}
	return f.run(ctx, requestUUID, t, metadata, func(p *models.PurchaseRequest) string {
		return fmt.Sprintf("Your purchase request %s was cancelled: %s", p.RequestNumber, reason)
	})
}
