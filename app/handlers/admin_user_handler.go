package handlers

import (
	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AdminUserHandlerInterface defines account and prospect administration endpoints
type AdminUserHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	CreateUser(c fiber.Ctx) error
	ChangeRole(c fiber.Ctx) error
	SetActive(c fiber.Ctx) error
	ListProspects(c fiber.Ctx) error
	InviteProspect(c fiber.Ctx) error
}

type AdminUserHandler struct {
	baseHandler
	userFlow     businessflow.UserFlow
	prospectFlow businessflow.ProspectFlow
}

func NewAdminUserHandler(userFlow businessflow.UserFlow, prospectFlow businessflow.ProspectFlow) AdminUserHandlerInterface {
	return &AdminUserHandler{
		baseHandler:  newBaseHandler(),
		userFlow:     userFlow,
		prospectFlow: prospectFlow,
	}
}

// ListUsers lists accounts
// @Summary List users
// @Tags Admin Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role filter"
// @Param is_active query bool false "Active filter"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListUsersResponse}
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/users [get]
func (h *AdminUserHandler) ListUsers(c fiber.Ctx) error {
	q := newQueryParams(c)
	req := dto.ListUsersRequest{
		Role:     q.optString("role"),
		IsActive: q.optBool("is_active"),
	}
	req.Page, req.PageSize = q.paging()
	if err := q.err(); err != nil {
		return h.handleFlowError(c, "ListUsers", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users")
	defer cancel()

	res, err := h.userFlow.ListUsers(ctx, h.actor(c), &req)
	if err != nil {
		return h.handleFlowError(c, "ListUsers", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved", res)
}

// CreateUser registers an account; client accounts inherit matching guest requests
// @Summary Create a user
// @Tags Admin Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateUserRequest true "Account"
// @Success 201 {object} dto.APIResponse{data=dto.CreateUserResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Email already registered"
// @Router /api/v1/admin/users [post]
func (h *AdminUserHandler) CreateUser(c fiber.Ctx) error {
	var req dto.CreateUserRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users")
	defer cancel()

	res, err := h.userFlow.CreateUser(ctx, h.actor(c), &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "CreateUser", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "User created", res)
}

// ChangeRole assigns a new role
// @Summary Change a user's role
// @Tags Admin Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.ChangeRoleRequest true "New role"
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/users/{id}/role [patch]
func (h *AdminUserHandler) ChangeRole(c fiber.Ctx) error {
	id, err := h.idParam(c, "id")
	if err != nil {
		return h.handleFlowError(c, "ChangeRole", err)
	}
	var req dto.ChangeRoleRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users/:id/role")
	defer cancel()

	res, err := h.userFlow.ChangeRole(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "ChangeRole", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Role updated", res)
}

// SetActive enables or disables an account
// @Summary Activate or deactivate a user
// @Tags Admin Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/users/{id}/active [patch]
func (h *AdminUserHandler) SetActive(c fiber.Ctx) error {
	id, err := h.idParam(c, "id")
	if err != nil {
		return h.handleFlowError(c, "SetActive", err)
	}
	var req dto.SetActiveRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/users/:id/active")
	defer cancel()

	res, err := h.userFlow.SetActive(ctx, h.actor(c), id, *req.IsActive, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "SetActive", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User updated", res)
}

// ListProspects lists guest contacts
// @Summary List prospects
// @Tags Admin Users
// @Produce json
// @Security BearerAuth
// @Param converted query bool false "Converted filter"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListProspectsResponse}
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/prospects [get]
func (h *AdminUserHandler) ListProspects(c fiber.Ctx) error {
	q := newQueryParams(c)
	req := dto.ListProspectsRequest{Converted: q.optBool("converted")}
	req.Page, req.PageSize = q.paging()
	if err := q.err(); err != nil {
		return h.handleFlowError(c, "ListProspects", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/prospects")
	defer cancel()

	res, err := h.prospectFlow.ListProspects(ctx, h.actor(c), &req)
	if err != nil {
		return h.handleFlowError(c, "ListProspects", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Prospects retrieved", res)
}

// InviteProspect emails a one-time registration link to a prospect
// @Summary Invite a prospect
// @Tags Admin Users
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Prospect UUID"
// @Success 200 {object} dto.APIResponse{data=dto.InviteProspectResponse}
// @Failure 400 {object} dto.APIResponse "Prospect has no contact"
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Already converted"
// @Router /api/v1/admin/prospects/{uuid}/invite [post]
func (h *AdminUserHandler) InviteProspect(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "InviteProspect", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/prospects/:uuid/invite")
	defer cancel()

	res, err := h.prospectFlow.InviteProspect(ctx, h.actor(c), id, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "InviteProspect", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Invitation sent", res)
}
