package handlers

import (
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserHandler handles member profile and account endpoints
type UserHandler struct {
	userService *services.UserService
	log         *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

// GetProfile returns the caller's profile and running totals
// @Summary Get own profile
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /members/me [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	profile, err := h.userService.GetProfile(c.UserContext(), actor.UserID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Profile retrieved successfully", profile)
}

// UpdateProfile updates the caller's profile
// @Summary Update own profile
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpdateProfileInput true "Profile fields"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /members/me [put]
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.UpdateProfileInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	profile, err := h.userService.UpdateProfile(c.UserContext(), actor.UserID, &input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Profile updated successfully", profile)
}

// ChangePassword changes the caller's password
// @Summary Change password
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ChangePasswordInput true "Old and new password"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /members/me/password [put]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.ChangePasswordInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	if err := h.userService.ChangePassword(c.UserContext(), actor.UserID, &input); err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Password changed, please login again", nil)
}

// ListMembers lists member profiles (Admin only)
// @Summary List members
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param search query string false "Name or email"
// @Param department query string false "Department"
// @Param graduationYear query int false "Graduation year"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /members [get]
func (h *UserHandler) ListMembers(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.MemberLimit)
	filter := repositories.MemberFilter{
		Search:         c.Query("search"),
		Department:     c.Query("department"),
		GraduationYear: c.QueryInt("graduationYear"),
	}

	members, total, err := h.userService.ListMembers(c.UserContext(), actor, filter, page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Members retrieved successfully", pagination.NewPage(members, page, total))
}

// GetMember returns one member profile
// @Summary Get member
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /members/{userId} [get]
func (h *UserHandler) GetMember(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	member, err := h.userService.GetMember(c.UserContext(), actor, c.Params("userId"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Member retrieved successfully", member)
}

// LedgerHistory lists the audit entries behind a member's totals
// @Summary Member ledger history
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} response.Response
// @Router /members/{userId}/ledger [get]
func (h *UserHandler) LedgerHistory(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.DefaultLimit)
	entries, total, err := h.userService.LedgerHistory(c.UserContext(), actor, c.Params("userId"), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Ledger retrieved successfully", pagination.NewPage(entries, page, total))
}

// SetRole changes a user's role (Superadmin only)
// @Summary Set role
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param body body services.SetRoleInput true "Role"
// @Success 200 {object} response.Response
// @Router /members/{userId}/role [patch]
func (h *UserHandler) SetRole(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.SetRoleInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.userService.SetRole(c.UserContext(), actor, c.Params("userId"), &input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Role updated successfully", user)
}

// SetActive activates or deactivates an account (Superadmin only)
// @Summary Set activation
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param body body services.SetActiveInput true "Activation"
// @Success 200 {object} response.Response
// @Router /members/{userId}/active [patch]
func (h *UserHandler) SetActive(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.SetActiveInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.userService.SetActive(c.UserContext(), actor, c.Params("userId"), &input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Activation updated successfully", user)
}
