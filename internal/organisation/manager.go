package organisation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"casedesk/internal/audit"
	"casedesk/internal/database"
	"casedesk/internal/util"
	"casedesk/internal/validator"
)

// Store is the persistence surface the manager needs.
type Store interface {
	ListOrganisations(ctx context.Context) ([]database.Organisation, error)
	CreateOrganisation(ctx context.Context, params database.CreateOrganisationParams) (database.Organisation, error)
	GetOrganisationByID(ctx context.Context, id int64) (database.Organisation, error)
	GetOrganisationByName(ctx context.Context, name string) (database.Organisation, error)
	UpdateOrganisationByID(ctx context.Context, id int64, params database.UpdateOrganisationParams) error
	DeleteOrganisationByID(ctx context.Context, id int64) error
	ListOrganisationMembers(ctx context.Context, orgID int64) ([]database.User, error)
	SetOrganisationMembers(ctx context.Context, orgID int64, userIDs []int64) error
	RemoveOrganisationMember(ctx context.Context, orgID, userID int64) error
}

type Manager struct {
	logger   *slog.Logger
	store    Store
	validate *validator.Validator
	auditor  *audit.Auditor
}

func NewManager(logger *slog.Logger, store Store, validate *validator.Validator, auditor *audit.Auditor) Manager {
	return Manager{logger: logger, store: store, validate: validate, auditor: auditor}
}

type Organisation struct {
	ID          int64     `json:"id"`
	Name        string    `json:"org_name"`
	Description string    `json:"org_description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Member struct {
	ID    int64  `json:"user_id"`
	Login string `json:"user_login"`
	Name  string `json:"user_name"`
}

type Details struct {
	Organisation
	Members []Member `json:"members"`
}

func fromRow(row database.Organisation) Organisation {
	return Organisation{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (m *Manager) ListOrganisations(ctx context.Context) ([]Organisation, error) {
	rows, err := m.store.ListOrganisations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organisations: %w", err)
	}

	orgs := make([]Organisation, 0, len(rows))
	for _, row := range rows {
		orgs = append(orgs, fromRow(row))
	}
	return orgs, nil
}

// GetOrganisation returns an organisation together with its members in the
// restricted projection.
func (m *Manager) GetOrganisation(ctx context.Context, orgID int64) (Details, error) {
	var details Details

	row, err := m.store.GetOrganisationByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, database.ErrOrganisationNotFound) {
			return details, err
		}
		return details, fmt.Errorf("failed to get organisation by id: %w", err)
	}

	members, err := m.store.ListOrganisationMembers(ctx, orgID)
	if err != nil {
		return details, fmt.Errorf("failed to list organisation members: %w", err)
	}

	details.Organisation = fromRow(row)
	details.Members = make([]Member, 0, len(members))
	for _, u := range members {
		details.Members = append(details.Members, Member{ID: u.ID, Login: u.Login, Name: u.Name})
	}
	return details, nil
}

type CreateOrganisationParams struct {
	Name        string `json:"org_name" validate:"required,min=2,max=100"`
	Description string `json:"org_description" validate:"max=1000"`
	ActorID     int64  `json:"-"`
}

func (m *Manager) CreateOrganisation(ctx context.Context, params CreateOrganisationParams) (Organisation, error) {
	var org Organisation

	if err := m.validate.Validate(params); err != nil {
		return org, err
	}

	if _, err := m.store.GetOrganisationByName(ctx, params.Name); err == nil {
		return org, validator.NewValidationError("org_name", "Organisation name already in use.")
	} else if !errors.Is(err, database.ErrOrganisationNotFound) {
		return org, fmt.Errorf("failed to check organisation name uniqueness: %w", err)
	}

	row, err := m.store.CreateOrganisation(ctx, database.CreateOrganisationParams{
		Name:        params.Name,
		Description: params.Description,
	})
	if err != nil {
		return org, fmt.Errorf("failed to create organisation: %w", err)
	}

	m.logAudit(ctx, params.ActorID, audit.EventTypeOrganisationCreate, fmt.Sprintf("organisation %s created", row.Name), map[string]any{"organisation_id": row.ID})

	return fromRow(row), nil
}

type UpdateOrganisationParams struct {
	Name        util.Optional[string] `json:"org_name"`
	Description util.Optional[string] `json:"org_description"`
	ActorID     int64                 `json:"-"`
}

func (m *Manager) UpdateOrganisation(ctx context.Context, orgID int64, params UpdateOrganisationParams) (Organisation, error) {
	var org Organisation

	row, err := m.store.GetOrganisationByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, database.ErrOrganisationNotFound) {
			return org, err
		}
		return org, fmt.Errorf("failed to get organisation by id: %w", err)
	}

	if params.Name.IsSet {
		if err := m.validate.Var("org_name", params.Name.Val, "required,min=2,max=100"); err != nil {
			return org, err
		}
		if params.Name.Val != row.Name {
			if _, err := m.store.GetOrganisationByName(ctx, params.Name.Val); err == nil {
				return org, validator.NewValidationError("org_name", "Organisation name already in use.")
			} else if !errors.Is(err, database.ErrOrganisationNotFound) {
				return org, fmt.Errorf("failed to check organisation name uniqueness: %w", err)
			}
		}
	}
	if params.Description.IsSet {
		if err := m.validate.Var("org_description", params.Description.Val, "max=1000"); err != nil {
			return org, err
		}
	}

	if err := m.store.UpdateOrganisationByID(ctx, orgID, database.UpdateOrganisationParams{
		Name:        params.Name,
		Description: params.Description,
	}); err != nil {
		return org, fmt.Errorf("failed to update organisation: %w", err)
	}

	m.logAudit(ctx, params.ActorID, audit.EventTypeOrganisationUpdate, fmt.Sprintf("organisation %s updated", row.Name), map[string]any{"organisation_id": orgID})

	row, err = m.store.GetOrganisationByID(ctx, orgID)
	if err != nil {
		return org, fmt.Errorf("failed to reload organisation: %w", err)
	}
	return fromRow(row), nil
}

// DeleteOrganisation removes the organisation and its membership edges.
func (m *Manager) DeleteOrganisation(ctx context.Context, orgID, actorID int64) error {
	row, err := m.store.GetOrganisationByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, database.ErrOrganisationNotFound) {
			return err
		}
		return fmt.Errorf("failed to get organisation by id: %w", err)
	}

	if err := m.store.DeleteOrganisationByID(ctx, orgID); err != nil {
		return fmt.Errorf("failed to delete organisation: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeOrganisationDelete, fmt.Sprintf("organisation %s deleted", row.Name), map[string]any{"organisation_id": orgID})
	return nil
}

// SetMembers replaces the organisation's member set in one transaction.
func (m *Manager) SetMembers(ctx context.Context, orgID, actorID int64, userIDs []int64) (Details, error) {
	var details Details

	if _, err := m.store.GetOrganisationByID(ctx, orgID); err != nil {
		if errors.Is(err, database.ErrOrganisationNotFound) {
			return details, err
		}
		return details, fmt.Errorf("failed to get organisation by id: %w", err)
	}

	if err := m.store.SetOrganisationMembers(ctx, orgID, userIDs); err != nil {
		var refErr *database.ReferentialError
		if errors.As(err, &refErr) {
			return details, err
		}
		return details, fmt.Errorf("failed to set organisation members: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeOrganisationMembersUpdate, "organisation members replaced", map[string]any{"organisation_id": orgID, "user_ids": userIDs})

	return m.GetOrganisation(ctx, orgID)
}

// RemoveMember drops a single membership edge. Removing an absent edge is a
// no-op.
func (m *Manager) RemoveMember(ctx context.Context, orgID, userID, actorID int64) error {
	if _, err := m.store.GetOrganisationByID(ctx, orgID); err != nil {
		if errors.Is(err, database.ErrOrganisationNotFound) {
			return err
		}
		return fmt.Errorf("failed to get organisation by id: %w", err)
	}

	if err := m.store.RemoveOrganisationMember(ctx, orgID, userID); err != nil {
		return fmt.Errorf("failed to remove organisation member: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeOrganisationMembersUpdate, "organisation member removed", map[string]any{"organisation_id": orgID, "user_id": userID})
	return nil
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
