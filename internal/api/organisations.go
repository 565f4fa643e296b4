package api

import (
	"casedesk/internal/organisation"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListOrganisations(c *fiber.Ctx) error {
	orgs, err := h.organisations.ListOrganisations(c.Context())
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", orgs)
}

func (h *Handler) GetOrganisation(c *fiber.Ctx) error {
	orgID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid organisation id", nil)
	}

	details, err := h.organisations.GetOrganisation(c.Context(), orgID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", details)
}

func (h *Handler) CreateOrganisation(c *fiber.Ctx) error {
	var params organisation.CreateOrganisationParams
	if err := c.BodyParser(&params); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request payload", nil)
	}
	params.ActorID = h.caller(c).UserID

	newOrg, err := h.organisations.CreateOrganisation(c.Context(), params)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return created(c, "Organisation created", newOrg)
}

func (h *Handler) UpdateOrganisation(c *fiber.Ctx) error {
	orgID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid organisation id", nil)
	}

	var params organisation.UpdateOrganisationParams
	if err := c.BodyParser(&params); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request payload", nil)
	}
	params.ActorID = h.caller(c).UserID

	updated, err := h.organisations.UpdateOrganisation(c.Context(), orgID, params)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Organisation updated", updated)
}

func (h *Handler) DeleteOrganisation(c *fiber.Ctx) error {
	orgID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid organisation id", nil)
	}

	if err := h.organisations.DeleteOrganisation(c.Context(), orgID, h.caller(c).UserID); err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Organisation deleted", nil)
}

type organisationMembersRequest struct {
	UserIDs []int64 `json:"org_members"`
}

func (h *Handler) SetOrganisationMembers(c *fiber.Ctx) error {
	orgID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid organisation id", nil)
	}

	var req organisationMembersRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "org_members must be a list of integer ids", nil)
	}

	details, err := h.organisations.SetMembers(c.Context(), orgID, h.caller(c).UserID, req.UserIDs)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Organisation members updated", details)
}

func (h *Handler) RemoveOrganisationMember(c *fiber.Ctx) error {
	orgID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid organisation id", nil)
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	if err := h.organisations.RemoveMember(c.Context(), orgID, userID, h.caller(c).UserID); err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Organisation member removed", nil)
}
