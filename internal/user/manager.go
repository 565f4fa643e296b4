package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"casedesk/internal/audit"
	"casedesk/internal/cache"
	"casedesk/internal/database"
	"casedesk/internal/util"
	"casedesk/internal/validator"

	"golang.org/x/crypto/bcrypt"
)

// ErrUserActive is returned when deleting a user that has not been
// deactivated first.
var ErrUserActive = errors.New("user: cannot delete active user")

// Store is the persistence surface the manager needs.
type Store interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	CreateUser(ctx context.Context, params database.CreateUserParams) (database.User, error)
	GetUserByID(ctx context.Context, id int64) (database.User, error)
	GetUserByLogin(ctx context.Context, login string) (database.User, error)
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	UpdateUserByID(ctx context.Context, id int64, params database.UpdateUserParams) error
	DeleteUserByID(ctx context.Context, id int64) error
	ListUserGroups(ctx context.Context, userID int64) ([]database.Group, error)
	ListUserOrganisations(ctx context.Context, userID int64) ([]database.Organisation, error)
	SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error
	SetUserOrganisations(ctx context.Context, userID int64, orgIDs []int64) error
}

type Manager struct {
	logger   *slog.Logger
	store    Store
	validate *validator.Validator
	auditor  *audit.Auditor
	cache    *cache.Cache
}

func NewManager(logger *slog.Logger, store Store, validate *validator.Validator, auditor *audit.Auditor, lookupCache *cache.Cache) Manager {
	return Manager{logger: logger, store: store, validate: validate, auditor: auditor, cache: lookupCache}
}

type User struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RestrictedUser is the projection safe for low-privilege callers. It must
// never carry the email, password or admin flag.
type RestrictedUser struct {
	ID    int64  `json:"user_id"`
	Login string `json:"user_login"`
	Name  string `json:"user_name"`
}

type MembershipRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Details struct {
	User
	Groups        []MembershipRef `json:"groups"`
	Organisations []MembershipRef `json:"organisations"`
}

func fromRow(row database.User) User {
	return User{
		ID:        row.ID,
		Login:     row.Login,
		Name:      row.Name,
		Email:     row.Email,
		IsAdmin:   row.IsAdmin,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func restrictedFromRow(row database.User) RestrictedUser {
	return RestrictedUser{ID: row.ID, Login: row.Login, Name: row.Name}
}

func (m *Manager) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, fromRow(row))
	}
	return users, nil
}

// ListRestricted returns the directory in the restricted projection, for
// callers that may read names but nothing sensitive.
func (m *Manager) ListRestricted(ctx context.Context) ([]RestrictedUser, error) {
	rows, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]RestrictedUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, restrictedFromRow(row))
	}
	return users, nil
}

type CreateUserParams struct {
	Login    string `json:"user_login" validate:"required,min=2,max=100,login_format"`
	Name     string `json:"user_name" validate:"required,min=2,max=100"`
	Email    string `json:"user_email" validate:"required,email"`
	Password string `json:"user_password" validate:"required,password_strength"`
	IsAdmin  bool   `json:"user_isadmin"`
	ActorID  int64  `json:"-"`
}

// CreateUser validates the payload, enforces login and email uniqueness and
// stores the user in the active state.
func (m *Manager) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	var user User

	if err := m.validate.Validate(params); err != nil {
		return user, err
	}

	if _, err := m.store.GetUserByLogin(ctx, params.Login); err == nil {
		return user, validator.NewValidationError("user_login", "Login already in use.")
	} else if !errors.Is(err, database.ErrUserNotFound) {
		return user, fmt.Errorf("failed to check login uniqueness: %w", err)
	}

	if _, err := m.store.GetUserByEmail(ctx, params.Email); err == nil {
		return user, validator.NewValidationError("user_email", "Email already in use.")
	} else if !errors.Is(err, database.ErrUserNotFound) {
		return user, fmt.Errorf("failed to check email uniqueness: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return user, fmt.Errorf("failed to hash password: %w", err)
	}

	row, err := m.store.CreateUser(ctx, database.CreateUserParams{
		Login:        params.Login,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: string(hash),
		IsAdmin:      params.IsAdmin,
	})
	if err != nil {
		return user, fmt.Errorf("failed to create user: %w", err)
	}

	m.logAudit(ctx, params.ActorID, audit.EventTypeUserCreate, fmt.Sprintf("user %s created", row.Login), map[string]any{"user_id": row.ID})

	return fromRow(row), nil
}

// GetUser returns a user together with its group and organisation
// memberships.
func (m *Manager) GetUser(ctx context.Context, userID int64) (Details, error) {
	var details Details

	row, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return details, err
		}
		return details, fmt.Errorf("failed to get user by id: %w", err)
	}

	groups, err := m.store.ListUserGroups(ctx, userID)
	if err != nil {
		return details, fmt.Errorf("failed to list user groups: %w", err)
	}
	orgs, err := m.store.ListUserOrganisations(ctx, userID)
	if err != nil {
		return details, fmt.Errorf("failed to list user organisations: %w", err)
	}

	details.User = fromRow(row)
	details.Groups = make([]MembershipRef, 0, len(groups))
	for _, g := range groups {
		details.Groups = append(details.Groups, MembershipRef{ID: g.ID, Name: g.Name})
	}
	details.Organisations = make([]MembershipRef, 0, len(orgs))
	for _, o := range orgs {
		details.Organisations = append(details.Organisations, MembershipRef{ID: o.ID, Name: o.Name})
	}
	return details, nil
}

type UpdateUserParams struct {
	Login    util.Optional[string] `json:"user_login"`
	Name     util.Optional[string] `json:"user_name"`
	Email    util.Optional[string] `json:"user_email"`
	Password util.Optional[string] `json:"user_password"`
	IsAdmin  util.Optional[bool]   `json:"user_isadmin"`
	ActorID  int64                 `json:"-"`
}

// UpdateUser applies a partial patch. The login is immutable and the
// password is rehashed when supplied.
func (m *Manager) UpdateUser(ctx context.Context, userID int64, params UpdateUserParams) (User, error) {
	var user User

	row, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return user, err
		}
		return user, fmt.Errorf("failed to get user by id: %w", err)
	}

	if params.Login.IsSet {
		return user, validator.NewValidationError("user_login", "Login cannot be changed.")
	}

	if params.Name.IsSet {
		if err := m.validate.Var("user_name", params.Name.Val, "required,min=2,max=100"); err != nil {
			return user, err
		}
	}
	if params.Email.IsSet {
		if err := m.validate.Var("user_email", params.Email.Val, "required,email"); err != nil {
			return user, err
		}
		if params.Email.Val != row.Email {
			if _, err := m.store.GetUserByEmail(ctx, params.Email.Val); err == nil {
				return user, validator.NewValidationError("user_email", "Email already in use.")
			} else if !errors.Is(err, database.ErrUserNotFound) {
				return user, fmt.Errorf("failed to check email uniqueness: %w", err)
			}
		}
	}

	updates := database.UpdateUserParams{
		Name:    params.Name,
		Email:   params.Email,
		IsAdmin: params.IsAdmin,
	}

	if params.Password.IsSet {
		if err := m.validate.Var("user_password", params.Password.Val, "required,password_strength"); err != nil {
			return user, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password.Val), bcrypt.DefaultCost)
		if err != nil {
			return user, fmt.Errorf("failed to hash password: %w", err)
		}
		updates.PasswordHash = util.Some(string(hash))
	}

	if err := m.store.UpdateUserByID(ctx, userID, updates); err != nil {
		return user, fmt.Errorf("failed to update user: %w", err)
	}

	m.invalidateLookup(ctx, row)
	m.logAudit(ctx, params.ActorID, audit.EventTypeUserUpdate, fmt.Sprintf("user %s updated", row.Login), map[string]any{"user_id": userID})

	row, err = m.store.GetUserByID(ctx, userID)
	if err != nil {
		return user, fmt.Errorf("failed to reload user: %w", err)
	}
	return fromRow(row), nil
}

// ActivateUser moves a user to the active state. Activating an already
// active user is a no-op.
func (m *Manager) ActivateUser(ctx context.Context, userID, actorID int64) (User, error) {
	return m.setActive(ctx, userID, actorID, true)
}

// DeactivateUser moves a user to the inactive state. Deactivating an already
// inactive user is a no-op.
func (m *Manager) DeactivateUser(ctx context.Context, userID, actorID int64) (User, error) {
	return m.setActive(ctx, userID, actorID, false)
}

func (m *Manager) setActive(ctx context.Context, userID, actorID int64, active bool) (User, error) {
	var user User

	row, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return user, err
		}
		return user, fmt.Errorf("failed to get user by id: %w", err)
	}

	if row.Active == active {
		return fromRow(row), nil
	}

	if err := m.store.UpdateUserByID(ctx, userID, database.UpdateUserParams{Active: util.Some(active)}); err != nil {
		return user, fmt.Errorf("failed to update user state: %w", err)
	}

	eventType := audit.EventTypeUserActivate
	verb := "activated"
	if !active {
		eventType = audit.EventTypeUserDeactivate
		verb = "deactivated"
	}
	m.logAudit(ctx, actorID, eventType, fmt.Sprintf("user %s %s", row.Login, verb), map[string]any{"user_id": userID})

	row, err = m.store.GetUserByID(ctx, userID)
	if err != nil {
		return user, fmt.Errorf("failed to reload user: %w", err)
	}
	return fromRow(row), nil
}

// DeleteUser removes a user permanently. Active users are refused; they must
// be deactivated first.
func (m *Manager) DeleteUser(ctx context.Context, userID, actorID int64) error {
	row, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to get user by id: %w", err)
	}

	if row.Active {
		return ErrUserActive
	}

	if err := m.store.DeleteUserByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	m.invalidateLookup(ctx, row)
	m.logAudit(ctx, actorID, audit.EventTypeUserDelete, fmt.Sprintf("user %s deleted", row.Login), map[string]any{"user_id": userID})
	return nil
}

// LookupByID resolves a user id to the restricted projection.
func (m *Manager) LookupByID(ctx context.Context, userID int64) (RestrictedUser, error) {
	var restricted RestrictedUser

	key := lookupIDKey(userID)
	if err := m.cache.Get(ctx, key, &restricted); err == nil {
		return restricted, nil
	}

	row, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return restricted, err
		}
		return restricted, fmt.Errorf("failed to get user by id: %w", err)
	}

	restricted = restrictedFromRow(row)
	if err := m.cache.Set(ctx, key, restricted); err != nil {
		m.logger.WarnContext(ctx, "failed to cache user lookup", slog.String("error", err.Error()))
	}
	return restricted, nil
}

// LookupByLogin resolves a login to the restricted projection.
func (m *Manager) LookupByLogin(ctx context.Context, login string) (RestrictedUser, error) {
	var restricted RestrictedUser

	key := lookupLoginKey(login)
	if err := m.cache.Get(ctx, key, &restricted); err == nil {
		return restricted, nil
	}

	row, err := m.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return restricted, err
		}
		return restricted, fmt.Errorf("failed to get user by login: %w", err)
	}

	restricted = restrictedFromRow(row)
	if err := m.cache.Set(ctx, key, restricted); err != nil {
		m.logger.WarnContext(ctx, "failed to cache user lookup", slog.String("error", err.Error()))
	}
	return restricted, nil
}

// SetGroups replaces the user's group membership set in one transaction.
func (m *Manager) SetGroups(ctx context.Context, userID, actorID int64, groupIDs []int64) error {
	if _, err := m.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to get user by id: %w", err)
	}

	if err := m.store.SetUserGroups(ctx, userID, groupIDs); err != nil {
		var refErr *database.ReferentialError
		if errors.As(err, &refErr) {
			return err
		}
		return fmt.Errorf("failed to set user groups: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeUserUpdate, "user group memberships replaced", map[string]any{"user_id": userID, "group_ids": groupIDs})
	return nil
}

// SetOrganisations replaces the user's organisation membership set in one
// transaction.
func (m *Manager) SetOrganisations(ctx context.Context, userID, actorID int64, orgIDs []int64) error {
	if _, err := m.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to get user by id: %w", err)
	}

	if err := m.store.SetUserOrganisations(ctx, userID, orgIDs); err != nil {
		var refErr *database.ReferentialError
		if errors.As(err, &refErr) {
			return err
		}
		return fmt.Errorf("failed to set user organisations: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeUserUpdate, "user organisation memberships replaced", map[string]any{"user_id": userID, "organisation_ids": orgIDs})
	return nil
}

func (m *Manager) invalidateLookup(ctx context.Context, row database.User) {
	if err := m.cache.Delete(ctx, lookupIDKey(row.ID), lookupLoginKey(row.Login)); err != nil {
		m.logger.WarnContext(ctx, "failed to invalidate user lookup cache", slog.String("error", err.Error()))
	}
}

func (m *Manager) logAudit(ctx context.Context, actorID int64, eventType audit.EventType, message string, data map[string]any) {
	actor := util.None[int64]()
	if actorID != 0 {
		actor = util.Some(actorID)
	}
	if err := m.auditor.LogEvent(ctx, audit.LogEventParams{
		ActorID: actor,
		Type:    eventType,
		Message: message,
		Data:    data,
	}); err != nil {
		m.logger.ErrorContext(ctx, "failed to record audit event", slog.String("error", err.Error()))
	}
}

func lookupIDKey(userID int64) string {
	return "user:lookup:id:" + strconv.FormatInt(userID, 10)
}

func lookupLoginKey(login string) string {
	return "user:lookup:login:" + login
}
