package api

import (
	"log/slog"

	"casedesk/internal/authorization"
	"casedesk/internal/group"
	"casedesk/internal/middleware"
	"casedesk/internal/organisation"
	"casedesk/internal/user"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the administration surface over HTTP.
type Handler struct {
	logger        *slog.Logger
	users         user.Manager
	groups        group.Manager
	organisations organisation.Manager
	authorizer    *authorization.Authorizer
	health        HealthChecker
}

func NewHandler(logger *slog.Logger, users user.Manager, groups group.Manager, organisations organisation.Manager, authorizer *authorization.Authorizer, health HealthChecker) Handler {
	return Handler{
		logger:        logger,
		users:         users,
		groups:        groups,
		organisations: organisations,
		authorizer:    authorizer,
		health:        health,
	}
}

// RegisterRoutes mounts the administration routes. Every route is registered
// unconditionally; capability and auth-mode checks run per request so one
// binary serves any configuration.
func (h *Handler) RegisterRoutes(app *fiber.App, userStore middleware.UserStore) {
	app.Get("/health", h.Healthy)

	manage := app.Group("/manage", middleware.AuthenticatedToken(userStore))

	users := manage.Group("/users")
	users.Get("/list", h.requirePermission(authorization.PermissionReadUsers), h.ListUsers)
	users.Get("/restricted/list", h.ListUsersRestricted)
	users.Get("/lookup/id/:id", h.LookupUserByID)
	users.Get("/lookup/login/:login", h.LookupUserByLogin)
	users.Get("/:id", h.requirePermission(authorization.PermissionReadUsers), h.GetUser)
	users.Post("/add", h.requirePermission(authorization.PermissionManageUsers), h.requireLocalUserManagement, h.CreateUser)
	users.Post("/update/:id", h.requirePermission(authorization.PermissionManageUsers), h.requireLocalUserManagement, h.UpdateUser)
	users.Post("/activate/:id", h.requirePermission(authorization.PermissionManageUsers), h.requireLocalUserManagement, h.ActivateUser)
	users.Post("/deactivate/:id", h.requirePermission(authorization.PermissionManageUsers), h.requireLocalUserManagement, h.DeactivateUser)
	users.Post("/delete/:id", h.requirePermission(authorization.PermissionManageUsers), h.requireLocalUserManagement, h.DeleteUser)
	users.Post("/:id/groups/update", h.requirePermission(authorization.PermissionManageUsers), h.SetUserGroups)
	users.Post("/:id/organisations/update", h.requirePermission(authorization.PermissionManageUsers), h.SetUserOrganisations)

	groups := manage.Group("/groups")
	groups.Get("/list", h.requirePermission(authorization.PermissionAdminRead), h.ListGroups)
	groups.Get("/:id", h.requirePermission(authorization.PermissionAdminRead), h.GetGroup)
	groups.Post("/add", h.requirePermission(authorization.PermissionAdminWrite), h.CreateGroup)
	groups.Post("/update/:id", h.requirePermission(authorization.PermissionAdminWrite), h.UpdateGroup)
	groups.Post("/delete/:id", h.requirePermission(authorization.PermissionAdminWrite), h.DeleteGroup)
	groups.Post("/:id/members/update", h.requirePermission(authorization.PermissionAdminWrite), h.SetGroupMembers)
	groups.Post("/:id/members/delete/:user_id", h.requirePermission(authorization.PermissionAdminWrite), h.RemoveGroupMember)

	orgs := manage.Group("/organisations")
	orgs.Get("/list", h.requirePermission(authorization.PermissionAdminRead), h.ListOrganisations)
	orgs.Get("/:id", h.requirePermission(authorization.PermissionAdminRead), h.GetOrganisation)
	orgs.Post("/add", h.requirePermission(authorization.PermissionAdminWrite), h.CreateOrganisation)
	orgs.Post("/update/:id", h.requirePermission(authorization.PermissionAdminWrite), h.UpdateOrganisation)
	orgs.Post("/delete/:id", h.requirePermission(authorization.PermissionAdminWrite), h.DeleteOrganisation)
	orgs.Post("/:id/members/update", h.requirePermission(authorization.PermissionAdminWrite), h.SetOrganisationMembers)
	orgs.Post("/:id/members/delete/:user_id", h.requirePermission(authorization.PermissionAdminWrite), h.RemoveOrganisationMember)
}

func (h *Handler) requirePermission(perm authorization.Permission) fiber.Handler {
	return middleware.RequirePermission(h.authorizer, perm)
}

// requireLocalUserManagement refuses user mutations when an external identity
// provider owns the accounts.
func (h *Handler) requireLocalUserManagement(c *fiber.Ctx) error {
	if !h.authorizer.LocalUserManagement() {
		return errorResponse(c, fiber.StatusForbidden, "User management is delegated to an external identity provider", nil)
	}
	return c.Next()
}

func (h *Handler) caller(c *fiber.Ctx) authorization.Caller {
	caller, _ := middleware.CallerFromCtx(c)
	return caller
}

func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := c.ParamsInt(name)
	if err != nil || id < 1 {
		return 0, false
	}
	return int64(id), true
}
