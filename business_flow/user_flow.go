package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/services"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
	"gorm.io/gorm"
)

// UserFlow handles administrative account management
type UserFlow interface {
	CreateUser(ctx context.Context, actor Actor, req *dto.CreateUserRequest, metadata *ClientMetadata) (*dto.CreateUserResponse, error)
	ListUsers(ctx context.Context, actor Actor, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error)
	ChangeRole(ctx context.Context, actor Actor, userID uint, req *dto.ChangeRoleRequest, metadata *ClientMetadata) (*dto.UserDTO, error)
	SetActive(ctx context.Context, actor Actor, userID uint, active bool, metadata *ClientMetadata) (*dto.UserDTO, error)
	EnsureBootstrapAdmin(ctx context.Context, email, fullName string) (bool, error)
	RefreshSession(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairResponse, error)
}

// UserFlowImpl implements the user management flow
type UserFlowImpl struct {
	userRepo     repository.UserRepository
	prospectRepo repository.ProspectRepository
	pickupRepo   repository.PickupRequestRepository
	purchaseRepo repository.PurchaseRequestRepository
	auditRepo    repository.AuditLogRepository
	tokens       services.TokenService
	db           *gorm.DB
}

// NewUserFlow creates a new user flow
func NewUserFlow(
	userRepo repository.UserRepository,
	prospectRepo repository.ProspectRepository,
	pickupRepo repository.PickupRequestRepository,
	purchaseRepo repository.PurchaseRequestRepository,
	auditRepo repository.AuditLogRepository,
	tokens services.TokenService,
	db *gorm.DB,
) UserFlow {
	return &UserFlowImpl{
		userRepo:     userRepo,
		prospectRepo: prospectRepo,
		pickupRepo:   pickupRepo,
		purchaseRepo: purchaseRepo,
		auditRepo:    auditRepo,
		tokens:       tokens,
		db:           db,
	}
}

// CreateUser registers an account and hands it every guest request filed under the same email or phone
func (f *UserFlowImpl) CreateUser(ctx context.Context, actor Actor, req *dto.CreateUserRequest, metadata *ClientMetadata) (*dto.CreateUserResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, fieldError("role", err.Error())
	}

	user := &models.User{
		Email:     req.Email,
		Phone:     utils.NilIfEmpty(utils.NormalizePhone(utils.Deref(req.Phone))),
		FullName:  req.FullName,
		Role:      role,
		CompanyID: req.CompanyID,
		IsActive:  utils.ToPtr(true),
	}

	var pickups, purchases int64
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := createUser(txCtx, f.userRepo, user); err != nil {
			return err
		}
		if role == models.RoleClient {
			var err error
			pickups, purchases, err = attachProspects(txCtx, f.prospectRepo, f.pickupRepo, f.purchaseRepo, user)
			if err != nil {
				return err
			}
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      models.AuditActionUserCreated,
			EntityType:  "user",
			EntityID:    user.ID,
			Description: fmt.Sprintf("User %s created with role %s", user.Email, user.Role),
			Metadata:    map[string]any{"pickup_requests": pickups, "purchase_requests": purchases},
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		logSystemError(ctx, "CreateUser", err)
		return nil, err
	}

	return &dto.CreateUserResponse{
		User:                     ToUserDTO(user),
		AttachedPickupRequests:   pickups,
		AttachedPurchaseRequests: purchases,
	}, nil
}

func (f *UserFlowImpl) ListUsers(ctx context.Context, actor Actor, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	filter := models.UserFilter{IsActive: req.IsActive}
	if req.Role != nil {
		role, err := models.ParseRole(*req.Role)
		if err != nil {
			return nil, fieldError("role", err.Error())
		}
		filter.Role = &role
	}

	page, pageSize := normalizePaging(req.Page, req.PageSize)
	total, err := f.userRepo.Count(ctx, filter)
	if err != nil {
		logSystemError(ctx, "ListUsers", err)
		return nil, NewBusinessError("USER_LIST_FAILED", "Failed to count users", err)
	}
	rows, err := f.userRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), pageOffset(page, pageSize))
	if err != nil {
		logSystemError(ctx, "ListUsers", err)
		return nil, NewBusinessError("USER_LIST_FAILED", "Failed to list users", err)
	}

	items := make([]dto.UserDTO, 0, len(rows))
	for _, u := range rows {
		items = append(items, ToUserDTO(u))
	}
	return &dto.ListUsersResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(total, pageSize),
		},
	}, nil
}

// ChangeRole assigns a new role. Administrators cannot change their own role.
func (f *UserFlowImpl) ChangeRole(ctx context.Context, actor Actor, userID uint, req *dto.ChangeRoleRequest, metadata *ClientMetadata) (*dto.UserDTO, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, fieldError("role", err.Error())
	}
	if userID == actor.UserID {
		return nil, NewBusinessError("SELF_ROLE_CHANGE", "administrators cannot change their own role", ErrForbidden)
	}

	return f.updateUser(ctx, actor, userID, metadata, "ChangeRole", func(u *models.User) (string, map[string]any, bool) {
		if u.Role == role {
			return "", nil, false
		}
		old := u.Role
		u.Role = role
		return models.AuditActionUserRoleChanged, map[string]any{"old_role": old, "new_role": role}, true
	})
}

// SetActive enables or disables an account. Administrators cannot disable themselves.
func (f *UserFlowImpl) SetActive(ctx context.Context, actor Actor, userID uint, active bool, metadata *ClientMetadata) (*dto.UserDTO, error) {
	if err := requireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if userID == actor.UserID && !active {
		return nil, NewBusinessError("SELF_DEACTIVATION", "administrators cannot deactivate themselves", ErrForbidden)
	}

	return f.updateUser(ctx, actor, userID, metadata, "SetActive", func(u *models.User) (string, map[string]any, bool) {
		if utils.IsTrue(u.IsActive) == active {
			return "", nil, false
		}
		u.IsActive = utils.ToPtr(active)
		if active {
			return models.AuditActionUserActivated, nil, true
		}
		return models.AuditActionUserDeactivated, nil, true
	})
}

// updateUser locks nothing: account edits are admin-only and last write wins
func (f *UserFlowImpl) updateUser(
	ctx context.Context,
	actor Actor,
	userID uint,
	metadata *ClientMetadata,
	op string,
	mutate func(*models.User) (action string, auditMeta map[string]any, changed bool),
) (*dto.UserDTO, error) {
	var user *models.User
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		u, err := f.userRepo.ByID(txCtx, userID)
		if err != nil {
			return NewBusinessError("USER_LOAD_FAILED", "Failed to load user", err)
		}
		if u == nil {
			return ErrUserNotFound
		}
		user = u

		action, auditMeta, changed := mutate(u)
		if !changed {
			return nil
		}
		if err := f.userRepo.Update(txCtx, u); err != nil {
			return NewBusinessError("USER_UPDATE_FAILED", "Failed to update user", err)
		}
		if err := writeAuditLog(txCtx, f.auditRepo, actor, auditRecord{
			Action:      action,
			EntityType:  "user",
			EntityID:    u.ID,
			Description: fmt.Sprintf("User %s updated", u.Email),
			Metadata:    auditMeta,
		}, metadata); err != nil {
			return NewBusinessError("AUDIT_LOG_FAILED", "Failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		logSystemError(ctx, op, err)
		return nil, err
	}
	out := ToUserDTO(user)
	return &out, nil
}

// EnsureBootstrapAdmin creates the first administrator when no account uses email yet.
// It reports whether an account was created.
func (f *UserFlowImpl) EnsureBootstrapAdmin(ctx context.Context, email, fullName string) (bool, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}

	existing, err := f.userRepo.ByEmail(ctx, email)
	if err != nil {
		return false, NewBusinessError("USER_LOAD_FAILED", "Failed to look up bootstrap admin", err)
	}
	if existing != nil {
		if existing.Role != models.RoleAdmin {
			log.Printf(`{"level":"warn","op":"EnsureBootstrapAdmin","email":%q,"role":%q,"message":"account exists without admin role"}`, email, existing.Role)
		}
		return false, nil
	}

	if fullName == "" {
		fullName = "Administrator"
	}
	admin := &models.User{
		Email:    email,
		FullName: fullName,
		Role:     models.RoleAdmin,
		IsActive: utils.ToPtr(true),
	}
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.userRepo.Save(txCtx, admin); err != nil {
			return NewBusinessError("USER_CREATE_FAILED", "Failed to create bootstrap admin", err)
		}
		return writeAuditLog(txCtx, f.auditRepo, SystemActor, auditRecord{
			Action:      models.AuditActionBootstrapAdminCreated,
			EntityType:  "user",
			EntityID:    admin.ID,
			Description: fmt.Sprintf("Bootstrap admin %s created", email),
		}, nil)
	})
	if err != nil {
		logSystemError(ctx, "EnsureBootstrapAdmin", err)
		return false, err
	}
	return true, nil
}

// RefreshSession trades a refresh token for a new pair. The role is reloaded so a
// role change or deactivation takes effect at the next refresh.
func (f *UserFlowImpl) RefreshSession(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairResponse, error) {
	claims, err := f.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_TOKEN_INVALID", "Refresh token is invalid or expired", fmt.Errorf("%w: %v", ErrUnauthenticated, err))
	}

	user, err := f.userRepo.ByID(ctx, claims.UserID)
	if err != nil {
		logSystemError(ctx, "RefreshSession", err)
		return nil, NewBusinessError("REFRESH_SESSION_FAILED", "Failed to refresh session", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "Account no longer exists", fmt.Errorf("%w: %w", ErrUnauthenticated, ErrUserNotFound))
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}
	if user.Role == models.RoleClient {
		f.claimGuestRequests(ctx, user)
	}

	access, refresh, err := f.tokens.GenerateTokens(services.ActorSubject{
		UserID:    user.ID,
		Role:      string(user.Role),
		CompanyID: user.CompanyID,
	})
	if err != nil {
		logSystemError(ctx, "RefreshSession", err)
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to issue tokens", err)
	}

	return &dto.TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Role:         string(user.Role),
	}, nil
}

// claimGuestRequests moves guest submissions filed under the account's email or phone onto
// the account. A failure is logged and retried at the next refresh.
func (f *UserFlowImpl) claimGuestRequests(ctx context.Context, user *models.User) {
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		_, _, err := attachProspects(txCtx, f.prospectRepo, f.pickupRepo, f.purchaseRepo, user)
		return err
	})
	if err != nil {
		logSystemError(ctx, "ClaimGuestRequests", err)
	}
}
