package api

import (
	"casedesk/internal/group"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.groups.ListGroups(c.Context())
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", groups)
}

func (h *Handler) GetGroup(c *fiber.Ctx) error {
	groupID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid group id", nil)
	}

	details, err := h.groups.GetGroup(c.Context(), groupID)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "", details)
}

func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	var params group.CreateGroupParams
	if err := c.BodyParser(&params); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request payload", nil)
	}
	params.ActorID = h.caller(c).UserID

	newGroup, err := h.groups.CreateGroup(c.Context(), params)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return created(c, "Group created", newGroup)
}

func (h *Handler) UpdateGroup(c *fiber.Ctx) error {
	groupID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid group id", nil)
	}

	var params group.UpdateGroupParams
	if err := c.BodyParser(&params); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request payload", nil)
	}
	params.ActorID = h.caller(c).UserID

	updated, err := h.groups.UpdateGroup(c.Context(), groupID, params)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Group updated", updated)
}

func (h *Handler) DeleteGroup(c *fiber.Ctx) error {
	groupID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid group id", nil)
	}

	if err := h.groups.DeleteGroup(c.Context(), groupID, h.caller(c).UserID); err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Group deleted", nil)
}

type groupMembersRequest struct {
	UserIDs []int64 `json:"group_members"`
}

func (h *Handler) SetGroupMembers(c *fiber.Ctx) error {
	groupID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid group id", nil)
	}

	var req groupMembersRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "group_members must be a list of integer ids", nil)
	}

	details, err := h.groups.SetMembers(c.Context(), groupID, h.caller(c).UserID, req.UserIDs)
	if err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Group members updated", details)
}

func (h *Handler) RemoveGroupMember(c *fiber.Ctx) error {
	groupID, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid group id", nil)
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid user id", nil)
	}

	if err := h.groups.RemoveMember(c.Context(), groupID, userID, h.caller(c).UserID); err != nil {
		return fail(c, h.logger, err)
	}
	return success(c, "Group member removed", nil)
}
