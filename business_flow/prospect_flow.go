package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/services"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ProspectFlow handles anonymous submissions and the conversion of guests into clients
type ProspectFlow interface {
	GenerateCaptcha(ctx context.Context) (*dto.CaptchaChallengeResponse, error)
	GuestCreatePickupRequest(ctx context.Context, req *dto.GuestPickupRequest, metadata *ClientMetadata) (*dto.GuestSubmissionResponse, error)
	GuestCreatePurchaseRequest(ctx context.Context, req *dto.GuestPurchaseRequest, metadata *ClientMetadata) (*dto.GuestSubmissionResponse, error)
	GuestTrackRequest(ctx context.Context, token string) (*dto.GuestRequestView, error)

	ListProspects(ctx context.Context, actor Actor, req *dto.ListProspectsRequest) (*dto.ListProspectsResponse, error)
	InviteProspect(ctx context.Context, actor Actor, prospectUUID uuid.UUID, metadata *ClientMetadata) (*dto.InviteProspectResponse, error)
	RegisterProspect(ctx context.Context, prospectUUID uuid.UUID, req *dto.RegisterProspectRequest, metadata *ClientMetadata) (*dto.CreateUserResponse, error)
}

// ProspectFlowImpl implements the guest and prospect business flow
type ProspectFlowImpl struct {
	prospectRepo  repository.ProspectRepository
	pickupRepo    repository.PickupRequestRepository
	purchaseRepo  repository.PurchaseRequestRepository
	userRepo      repository.UserRepository
	historyRepo   repository.StatusHistoryRepository
	auditRepo     repository.AuditLogRepository
	sequence      SequenceGenerator
	captcha       services.CaptchaService
	tokens        services.TokenService
	notifier      services.NotificationService
	db            *gorm.DB
	currency      string
	invitationTTL time.Duration
	portalURL     string
}

// NewProspectFlow creates a new prospect flow
func NewProspectFlow(
	prospectRepo repository.ProspectRepository,
	pickupRepo repository.PickupRequestRepository,
	purchaseRepo repository.PurchaseRequestRepository,
	userRepo repository.UserRepository,
	historyRepo repository.StatusHistoryRepository,
	auditRepo repository.AuditLogRepository,
	sequence SequenceGenerator,
	captcha services.CaptchaService,
	tokens services.TokenService,
	notifier services.NotificationService,
	db *gorm.DB,
	currency string,
	invitationTTL time.Duration,
	portalURL string,
) ProspectFlow {
	if currency == "" {
		currency = utils.DefaultCurrency
	}
	if invitationTTL <= 0 {
		invitationTTL = utils.ProspectInvitationTTL
	}
	return &ProspectFlowImpl{
		prospectRepo:  prospectRepo,
		pickupRepo:    pickupRepo,
		purchaseRepo:  purchaseRepo,
		userRepo:      userRepo,
		historyRepo:   historyRepo,
		auditRepo:     auditRepo,
		sequence:      sequence,
		captcha:       captcha,
		tokens:        tokens,
		notifier:      notifier,
		db:            db,
		currency:      currency,
		invitationTTL: invitationTTL,
		portalURL:     strings.TrimRight(portalURL, "/"),
	}
}

func (f *ProspectFlowImpl) GenerateCaptcha(ctx context.Context) (*dto.CaptchaChallengeResponse, error) {
	ch, err := f.captcha.GenerateRotate(ctx)
	if err != nil {
		logSystemError(ctx, "GenerateCaptcha", err)
		return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}
	return &dto.CaptchaChallengeResponse{
		ChallengeID: ch.ID,
		MasterImage: ch.MasterImageBase64,
		ThumbImage:  ch.ThumbImageBase64,
		ThumbSize:   ch.ThumbSize,
	}, nil
}

func (f *ProspectFlowImpl) verifyCaptcha(ctx context.Context, answer dto.CaptchaAnswer) error {
	if !f.captcha.VerifyRotate(ctx, answer.CaptchaID, answer.CaptchaAngle) {
		return ErrCaptchaInvalid
	}
	return nil
}

// prospectFor returns the prospect a guest submission is filed under, matched or created
// by email or phone. A guest is never attached to an account here, even when the email
// is registered: the account picks the request up when its holder next signs in.
func (f *ProspectFlowImpl) prospectFor(ctx context.Context, contact dto.ContactDetails) (*uint, error) {
	email := normalizedEmail(contact.ContactEmail)
	phone := utils.NilIfEmpty(utils.NormalizePhone(contact.ContactPhone))

	prospect, err := f.prospectRepo.ByContact(ctx, email, phone)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LOAD_FAILED", "Failed to look up prospect", err)
	}
	if prospect == nil {
		prospect = &models.Prospect{
			FullName: contact.ContactName,
			Email:    email,
			Phone:    phone,
		}
		if err := f.prospectRepo.Save(ctx, prospect); err != nil {
			return nil, NewBusinessError("PROSPECT_CREATE_FAILED", "Failed to record prospect", err)
		}
	} else if (prospect.Email == nil && email != nil) || (prospect.Phone == nil && phone != nil) {
		if prospect.Email == nil {
			prospect.Email = email
		}
		if prospect.Phone == nil {
			prospect.Phone = phone
		}
		if err := f.prospectRepo.Update(ctx, prospect); err != nil {
			return nil, NewBusinessError("PROSPECT_UPDATE_FAILED", "Failed to update prospect", err)
		}
	}
	return &prospect.ID, nil
}

func (f *ProspectFlowImpl) guestResponse(kind models.EntityType, requestUUID uuid.UUID, number, status string) (*dto.GuestSubmissionResponse, error) {
	token, expiresAt, err := f.tokens.GenerateGuestToken(string(kind), requestUUID.String())
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to issue tracking token", err)
	}
	return &dto.GuestSubmissionResponse{
		RequestNumber:  number,
		Status:         status,
		TrackingToken:  token,
		TokenExpiresAt: formatTime(expiresAt),
	}, nil
}

func (f *ProspectFlowImpl) GuestCreatePickupRequest(ctx context.Context, req *dto.GuestPickupRequest, metadata *ClientMetadata) (*dto.GuestSubmissionResponse, error) {
	if err := f.verifyCaptcha(ctx, req.CaptchaAnswer); err != nil {
		return nil, err
	}
	p, err := newPickupRequest(&req.CreatePickupRequestRequest)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		prospectID, err := f.prospectFor(txCtx, req.ContactDetails)
		if err != nil {
			return err
		}
		p.ProspectID = prospectID
		return savePickupRequest(txCtx, f.pickupRepo, f.sequence, p)
	})
	if err != nil {
		logSystemError(ctx, "GuestCreatePickupRequest", err)
		return nil, err
	}

	notifyContact(ctx, f.notifier, p.ContactEmail, &p.ContactPhone, fmt.Sprintf("Pickup request %s", p.RequestNumber),
		fmt.Sprintf("We received your pickup request %s.", p.RequestNumber))
	return f.guestResponse(models.EntityTypePickupRequest, p.UUID, p.RequestNumber, string(p.Status))
}

func (f *ProspectFlowImpl) GuestCreatePurchaseRequest(ctx context.Context, req *dto.GuestPurchaseRequest, metadata *ClientMetadata) (*dto.GuestSubmissionResponse, error) {
	if err := f.verifyCaptcha(ctx, req.CaptchaAnswer); err != nil {
		return nil, err
	}
	p, err := newPurchaseRequest(&req.CreatePurchaseRequestRequest, f.currency)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		prospectID, err := f.prospectFor(txCtx, req.ContactDetails)
		if err != nil {
			return err
		}
		p.ProspectID = prospectID
		return savePurchaseRequest(txCtx, f.purchaseRepo, f.sequence, p)
	})
	if err != nil {
		logSystemError(ctx, "GuestCreatePurchaseRequest", err)
		return nil, err
	}

	notifyContact(ctx, f.notifier, p.ContactEmail, &p.ContactPhone, fmt.Sprintf("Purchase request %s", p.RequestNumber),
		fmt.Sprintf("We received your purchase request %s.", p.RequestNumber))
	return f.guestResponse(models.EntityTypePurchaseRequest, p.UUID, p.RequestNumber, string(p.Status))
}

// GuestTrackRequest returns the sanitized view of the request a guest token points to
func (f *ProspectFlowImpl) GuestTrackRequest(ctx context.Context, token string) (*dto.GuestRequestView, error) {
	claims, err := f.tokens.ValidateGuestToken(token)
	if err != nil {
		return nil, ErrGuestTokenInvalid
	}
	requestUUID, err := uuid.Parse(claims.RequestUUID)
	if err != nil {
		return nil, ErrGuestTokenInvalid
	}

	var (
		id        uint
		number    string
		status    string
		initial   string
		createdAt time.Time
	)
	kind := models.EntityType(claims.Kind)
	switch kind {
	case models.EntityTypePickupRequest:
		p, err := f.pickupRepo.ByUUID(ctx, requestUUID)
		if err != nil {
			return nil, NewBusinessError("PICKUP_REQUEST_LOAD_FAILED", "Failed to load pickup request", err)
		}
		if p == nil {
			return nil, ErrPickupRequestNotFound
		}
		id, number, status, createdAt = p.ID, p.RequestNumber, string(p.Status), p.CreatedAt
		initial = string(models.PickupStatusRequested)
	case models.EntityTypePurchaseRequest:
		p, err := f.purchaseRepo.ByUUID(ctx, requestUUID)
		if err != nil {
			return nil, NewBusinessError("PURCHASE_REQUEST_LOAD_FAILED", "Failed to load purchase request", err)
		}
		if p == nil {
			return nil, ErrPurchaseRequestNotFound
		}
		id, number, status, createdAt = p.ID, p.RequestNumber, string(p.Status), p.CreatedAt
		initial = string(models.PurchaseStatusRequested)
	default:
		return nil, ErrGuestTokenInvalid
	}

	rows, err := f.historyRepo.ListByEntity(ctx, kind, id)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOAD_FAILED", "Failed to load status history", err)
	}
	timeline := make([]dto.GuestTimelineEntry, 0, len(rows)+1)
	timeline = append(timeline, dto.GuestTimelineEntry{Status: initial, At: formatTime(createdAt)})
	for _, r := range rows {
		timeline = append(timeline, dto.GuestTimelineEntry{Status: r.NewStatus, At: formatTime(r.CreatedAt)})
	}

	return &dto.GuestRequestView{
		Kind:          string(kind),
		RequestNumber: number,
		Status:        status,
		CreatedAt:     formatTime(createdAt),
		Timeline:      timeline,
	}, nil
}

func (f *ProspectFlowImpl) ListProspects(ctx context.Context, actor Actor, req *dto.ListProspectsRequest) (*dto.ListProspectsResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin, models.RoleOperationsManager); err != nil {
		return nil, err
	}

	filter := models.ProspectFilter{Converted: req.Converted}
	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.prospectRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LIST_FAILED", "Failed to count prospects", err)
	}
	rows, err := f.prospectRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LIST_FAILED", "Failed to list prospects", err)
	}

	items := make([]dto.ProspectDTO, 0, len(rows))
	for _, p := range rows {
		items = append(items, ToProspectDTO(p))
	}
	return &dto.ListProspectsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

// InviteProspect issues a one-time registration token. Only its bcrypt hash is stored;
// a new invitation replaces the previous one.
func (f *ProspectFlowImpl) InviteProspect(ctx context.Context, actor Actor, prospectUUID uuid.UUID, metadata *ClientMetadata) (*dto.InviteProspectResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin, models.RoleOperationsManager); err != nil {
		return nil, err
	}

	token, err := newInvitationToken()
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate invitation token", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to hash invitation token", err)
	}

	var prospect *models.Prospect
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		p, err := f.prospectRepo.LockByUUID(txCtx, prospectUUID)
		if err != nil {
			return NewBusinessError("PROSPECT_LOAD_FAILED", "Failed to load prospect", err)
		}
		if p == nil {
			return ErrProspectNotFound
		}
		if p.IsConverted() {
			return ErrProspectAlreadyConverted
		}
		if p.Email == nil && p.Phone == nil {
			return ErrProspectContactRequired
		}

		now := utils.UTCNow()
		p.InvitationTokenHash = utils.ToPtr(string(hash))
		p.InvitationExpiresAt = utils.ToPtr(now.Add(f.invitationTTL))
		p.InvitedAt = &now
		p.InvitedByID = actor.idPtr()
		if err := f.prospectRepo.Update(txCtx, p); err != nil {
			return NewBusinessError("PROSPECT_UPDATE_FAILED", "Failed to update prospect", err)
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionProspectInvited,
			EntityType:  "prospect",
			EntityID:    p.ID,
			Description: fmt.Sprintf("Prospect %s invited", p.UUID),
			Metadata:    map[string]any{"expires_at": formatTime(*p.InvitationExpiresAt)},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		prospect = p
		return nil
	})
	if err != nil {
		logSystemError(ctx, "InviteProspect", err)
		return nil, err
	}

	body := fmt.Sprintf("Hello %s, register to follow your requests. Prospect: %s Code: %s (valid until %s)",
		prospect.FullName, prospect.UUID, token, formatTime(*prospect.InvitationExpiresAt))
	if link := invitationLink(f.portalURL, prospect.UUID, token); link != "" {
		body = fmt.Sprintf("Hello %s, register to follow your requests: %s (valid until %s)",
			prospect.FullName, link, formatTime(*prospect.InvitationExpiresAt))
	}
	notified := notifyContact(ctx, f.notifier, prospect.Email, prospect.Phone, "Create your account", body)

	return &dto.InviteProspectResponse{
		ProspectUUID:    prospect.UUID.String(),
		InvitationToken: token,
		ExpiresAt:       formatTime(*prospect.InvitationExpiresAt),
		Notified:        notified,
	}, nil
}

// RegisterProspect redeems an invitation: it creates a CLIENT account and moves every
// request of the prospects sharing its email or phone to that account
func (f *ProspectFlowImpl) RegisterProspect(ctx context.Context, prospectUUID uuid.UUID, req *dto.RegisterProspectRequest, metadata *ClientMetadata) (*dto.CreateUserResponse, error) {
	var resp *dto.CreateUserResponse
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		p, err := f.prospectRepo.LockByUUID(txCtx, prospectUUID)
		if err != nil {
			return NewBusinessError("PROSPECT_LOAD_FAILED", "Failed to load prospect", err)
		}
		if p == nil {
			return ErrProspectNotFound
		}
		if p.IsConverted() {
			return ErrProspectAlreadyConverted
		}
		if p.InvitationTokenHash == nil || utils.IsExpiredPtr(p.InvitationExpiresAt) ||
			bcrypt.CompareHashAndPassword([]byte(*p.InvitationTokenHash), []byte(req.Token)) != nil {
			return ErrInvitationInvalid
		}

		email := normalizedEmail(req.Email)
		if email == nil {
			email = p.Email
		}
		if email == nil {
			return fieldError("email", "is required: the invitation carries no email address")
		}
		fullName := p.FullName
		if n := trimmedPtr(req.FullName); n != nil {
			fullName = *n
		}

		user := &models.User{
			Email:    *email,
			Phone:    p.Phone,
			FullName: fullName,
			Role:     models.RoleClient,
			IsActive: utils.ToPtr(true),
		}
		if err := createUser(txCtx, f.userRepo, user); err != nil {
			return err
		}

		// the redeemed prospect is converted even when its contact changed meanwhile
		pickups, purchases, err := attachProspects(txCtx, f.prospectRepo, f.pickupRepo, f.purchaseRepo, user, p)
		if err != nil {
			return err
		}

		if err := writeAuditLog(txCtx, f.auditRepo, Actor{UserID: user.ID, Role: user.Role}, auditRecord{
			Action:      models.AuditActionProspectRegistered,
			EntityType:  "prospect",
			EntityID:    p.ID,
			Description: fmt.Sprintf("Prospect %s registered as user %d", p.UUID, user.ID),
			Metadata:    map[string]any{"pickup_requests": pickups, "purchase_requests": purchases},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}

		resp = &dto.CreateUserResponse{
			User:                     ToUserDTO(user),
			AttachedPickupRequests:   pickups,
			AttachedPurchaseRequests: purchases,
		}
		return nil
	})
	if err != nil {
		logSystemError(ctx, "RegisterProspect", err)
		return nil, err
	}
	return resp, nil
}

// createUser inserts user after checking that its email is free
func createUser(ctx context.Context, userRepo repository.UserRepository, user *models.User) error {
	user.Email = utils.NormalizeEmail(user.Email)
	existing, err := userRepo.ByEmail(ctx, user.Email)
	if err != nil {
		return NewBusinessError("USER_LOAD_FAILED", "Failed to look up account", err)
	}
	if existing != nil {
		return ErrEmailAlreadyExists
	}
	if err := userRepo.Save(ctx, user); err != nil {
		return NewBusinessError("USER_CREATE_FAILED", "Failed to create account", err)
	}
	return nil
}

// attachProspects converts every unconverted prospect sharing the user's email or phone,
// plus the extra prospects given, and moves their requests to the user
func attachProspects(
	ctx context.Context,
	prospectRepo repository.ProspectRepository,
	pickupRepo repository.PickupRequestRepository,
	purchaseRepo repository.PurchaseRequestRepository,
	user *models.User,
	extra ...*models.Prospect,
) (int64, int64, error) {
	email := utils.ToPtr(user.Email)
	matches, err := prospectRepo.ListUnconvertedByContact(ctx, email, user.Phone)
	if err != nil {
		return 0, 0, NewBusinessError("PROSPECT_LOAD_FAILED", "Failed to look up prospects", err)
	}

	seen := make(map[uint]bool, len(matches)+len(extra))
	var prospects []*models.Prospect
	for _, p := range append(matches, extra...) {
		if p == nil || seen[p.ID] || p.IsConverted() {
			continue
		}
		seen[p.ID] = true
		prospects = append(prospects, p)
	}
	if len(prospects) == 0 {
		return 0, 0, nil
	}

	now := utils.UTCNow()
	ids := make([]uint, 0, len(prospects))
	for _, p := range prospects {
		p.ConvertedUserID = &user.ID
		p.ConvertedAt = &now
		p.InvitationTokenHash = nil
		if err := prospectRepo.Update(ctx, p); err != nil {
			return 0, 0, NewBusinessError("PROSPECT_UPDATE_FAILED", "Failed to convert prospect", err)
		}
		ids = append(ids, p.ID)
	}

	pickups, err := pickupRepo.AttachProspectsToUser(ctx, ids, user.ID)
	if err != nil {
		return 0, 0, NewBusinessError("REQUEST_ATTACH_FAILED", "Failed to attach pickup requests", err)
	}
	purchases, err := purchaseRepo.AttachProspectsToUser(ctx, ids, user.ID)
	if err != nil {
		return 0, 0, NewBusinessError("REQUEST_ATTACH_FAILED", "Failed to attach purchase requests", err)
	}
	return pickups, purchases, nil
}

// invitationLink is the portal registration page prefilled with the invitation; empty without a portal
func invitationLink(portalURL string, prospectUUID uuid.UUID, token string) string {
	if portalURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("prospect", prospectUUID.String())
	q.Set("code", token)
	return portalURL + "/register?" + q.Encode()
}

func newInvitationToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
