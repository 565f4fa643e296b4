package api

import (
	"casedesk/internal/user"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.Context())
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", users)
}

func (h *Handler) ListUsersRestricted(c *fiber.Ctx) error {
	users, err := h.users.ListRestricted(c.Context())
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", users)
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	details, err := h.users.GetUser(c.Context(), userID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", details)
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var params user.CreateUserParams
	if err := c.BodyParser(&params); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request payload", nil)
	}
	params.ActorID = h.caller(c).UserID

	newUser, err := h.users.CreateUser(c.Context(), params)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return created(c, "User created", newUser)
}

func (h *Handler) UpdateUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	var params user.UpdateUserParams
	if err := c.BodyParser(&params); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request payload", nil)
	}
	params.ActorID = h.caller(c).UserID

	updated, err := h.users.UpdateUser(c.Context(), userID, params)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "User updated", updated)
}

func (h *Handler) ActivateUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	updated, err := h.users.ActivateUser(c.Context(), userID, h.caller(c).UserID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "User activated", updated)
}

func (h *Handler) DeactivateUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	updated, err := h.users.DeactivateUser(c.Context(), userID, h.caller(c).UserID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "User deactivated", updated)
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	if err := h.users.DeleteUser(c.Context(), userID, h.caller(c).UserID); err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "User deleted", nil)
}

func (h *Handler) LookupUserByID(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	restricted, err := h.users.LookupByID(c.Context(), userID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", restricted)
}

func (h *Handler) LookupUserByLogin(c *fiber.Ctx) error {
	login := c.Params("login")
	if login == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid login", nil)
	}

	restricted, err := h.users.LookupByLogin(c.Context(), login)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", restricted)
}

type userGroupsRequest struct {
	GroupIDs []int64 `json:"groups_membership"`
}

func (h *Handler) SetUserGroups(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	var req userGroupsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "groups_membership must be a list of integer ids", nil)
	}

	if err := h.users.SetGroups(c.Context(), userID, h.caller(c).UserID, req.GroupIDs); err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "User group memberships updated", nil)
}

type userOrganisationsRequest struct {
	OrganisationIDs []int64 `json:"orgs_membership"`
}

func (h *Handler) SetUserOrganisations(c *fiber.Ctx) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	var req userOrganisationsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "orgs_membership must be a list of integer ids", nil)
	}

	if err := h.users.SetOrganisations(c.Context(), userID, h.caller(c).UserID, req.OrganisationIDs); err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "User organisation memberships updated", nil)
}
