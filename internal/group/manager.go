package group

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
	ListGroups(ctx context.Context) ([]database.Group, error)
	CreateGroup(ctx context.Context, params database.CreateGroupParams) (database.Group, error)
	GetGroupByID(ctx context.Context, id int64) (database.Group, error)
	GetGroupByName(ctx context.Context, name string) (database.Group, error)
	UpdateGroupByID(ctx context.Context, id int64, params database.UpdateGroupParams) error
	DeleteGroupByID(ctx context.Context, id int64) error
	ListGroupMembers(ctx context.Context, groupID int64) ([]database.User, error)
	SetGroupMembers(ctx context.Context, groupID int64, userIDs []int64) error
	RemoveGroupMember(ctx context.Context, groupID, userID int64) error
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

type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"group_name"`
	Description string    `json:"group_description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Member struct {
	ID    int64  `json:"user_id"`
	Login string `json:"user_login"`
	Name  string `json:"user_name"`
}

type Details struct {
	Group
	Members []Member `json:"members"`
}

func fromRow(row database.Group) Group {
	return Group{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (m *Manager) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := m.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, fromRow(row))
	}
	return groups, nil
}

// GetGroup returns a group together with its members in the restricted
// projection.
func (m *Manager) GetGroup(ctx context.Context, groupID int64) (Details, error) {
	var details Details

	row, err := m.store.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return details, err
		}
		return details, fmt.Errorf("failed to get group by id: %w", err)
	}

	members, err := m.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return details, fmt.Errorf("failed to list group members: %w", err)
	}

	details.Group = fromRow(row)
	details.Members = make([]Member, 0, len(members))
	for _, u := range members {
		details.Members = append(details.Members, Member{ID: u.ID, Login: u.Login, Name: u.Name})
	}
	return details, nil
}

type CreateGroupParams struct {
	Name        string `json:"group_name" validate:"required,min=2,max=100"`
	Description string `json:"group_description" validate:"max=1000"`
	ActorID     int64  `json:"-"`
}

func (m *Manager) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	var grp Group

	if err := m.validate.Validate(params); err != nil {
		return grp, err
	}

	if _, err := m.store.GetGroupByName(ctx, params.Name); err == nil {
		return grp, validator.NewValidationError("group_name", "Group name already in use.")
	} else if !errors.Is(err, database.ErrGroupNotFound) {
		return grp, fmt.Errorf("failed to check group name uniqueness: %w", err)
	}

	row, err := m.store.CreateGroup(ctx, database.CreateGroupParams{
		Name:        params.Name,
		Description: params.Description,
	})
	if err != nil {
		return grp, fmt.Errorf("failed to create group: %w", err)
	}

	m.logAudit(ctx, params.ActorID, audit.EventTypeGroupCreate, fmt.Sprintf("group %s created", row.Name), map[string]any{"group_id": row.ID})

	return fromRow(row), nil
}

type UpdateGroupParams struct {
	Name        util.Optional[string] `json:"group_name"`
	Description util.Optional[string] `json:"group_description"`
	ActorID     int64                 `json:"-"`
}

func (m *Manager) UpdateGroup(ctx context.Context, groupID int64, params UpdateGroupParams) (Group, error) {
	var grp Group

	row, err := m.store.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return grp, err
		}
		return grp, fmt.Errorf("failed to get group by id: %w", err)
	}

	if params.Name.IsSet {
		if err := m.validate.Var("group_name", params.Name.Val, "required,min=2,max=100"); err != nil {
			return grp, err
		}
		if params.Name.Val != row.Name {
			if _, err := m.store.GetGroupByName(ctx, params.Name.Val); err == nil {
				return grp, validator.NewValidationError("group_name", "Group name already in use.")
			} else if !errors.Is(err, database.ErrGroupNotFound) {
				return grp, fmt.Errorf("failed to check group name uniqueness: %w", err)
			}
		}
	}
	if params.Description.IsSet {
		if err := m.validate.Var("group_description", params.Description.Val, "max=1000"); err != nil {
			return grp, err
		}
	}

	if err := m.store.UpdateGroupByID(ctx, groupID, database.UpdateGroupParams{
		Name:        params.Name,
		Description: params.Description,
	}); err != nil {
		return grp, fmt.Errorf("failed to update group: %w", err)
	}

	m.logAudit(ctx, params.ActorID, audit.EventTypeGroupUpdate, fmt.Sprintf("group %s updated", row.Name), map[string]any{"group_id": groupID})

	row, err = m.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return grp, fmt.Errorf("failed to reload group: %w", err)
	}
	return fromRow(row), nil
}

// DeleteGroup removes the group that was fetched by id, along with its
// membership edges.
func (m *Manager) DeleteGroup(ctx context.Context, groupID, actorID int64) error {
	row, err := m.store.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return err
		}
		return fmt.Errorf("failed to get group by id: %w", err)
	}

	if err := m.store.DeleteGroupByID(ctx, groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeGroupDelete, fmt.Sprintf("group %s deleted", row.Name), map[string]any{"group_id": groupID})
	return nil
}

// SetMembers replaces the group's member set in one transaction.
func (m *Manager) SetMembers(ctx context.Context, groupID, actorID int64, userIDs []int64) (Details, error) {
	var details Details

	if _, err := m.store.GetGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return details, err
		}
		return details, fmt.Errorf("failed to get group by id: %w", err)
	}

	if err := m.store.SetGroupMembers(ctx, groupID, userIDs); err != nil {
		var refErr *database.ReferentialError
		if errors.As(err, &refErr) {
			return details, err
		}
		return details, fmt.Errorf("failed to set group members: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeGroupMembersUpdate, "group members replaced", map[string]any{"group_id": groupID, "user_ids": userIDs})

	return m.GetGroup(ctx, groupID)
}

// RemoveMember drops a single membership edge. Removing an absent edge is a
// no-op.
func (m *Manager) RemoveMember(ctx context.Context, groupID, userID, actorID int64) error {
	if _, err := m.store.GetGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return err
		}
		return fmt.Errorf("failed to get group by id: %w", err)
	}

	if err := m.store.RemoveGroupMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}

	m.logAudit(ctx, actorID, audit.EventTypeGroupMembersUpdate, "group member removed", map[string]any{"group_id": groupID, "user_id": userID})
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
