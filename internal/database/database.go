package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casedesk/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Database struct {
	Pool *pgxpool.Pool
}

func NewDatabase() Database {
	return Database{
		Pool: nil,
	}
}

func (db *Database) Connect(ctx context.Context, connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse database configuration: %w", err)
	}

	db.Pool, err = pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return fmt.Errorf("unable to create database pool: %w", err)
	}

	return nil
}

func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

type Organisation struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Group struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID           int64
	Login        string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	Active       bool
	APIToken     uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuditEvent struct {
	ID        uuid.UUID
	ActorID   util.Optional[int64]
	EventType string
	Message   string
	Data      []byte
	CreatedAt time.Time
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrGroupNotFound        = errors.New("group not found")
	ErrOrganisationNotFound = errors.New("organisation not found")
)

// ReferentialError reports membership ids that do not resolve to stored users
// (or groups/organisations, for the user-side replacement). The check runs
// eagerly inside the replacement transaction so the caller gets the precise
// offending ids instead of a foreign-key violation.
type ReferentialError struct {
	Entity     string
	InvalidIDs []int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("unknown %s ids: %v", e.Entity, e.InvalidIDs)
}

// --- Organisations ---

func (db *Database) ListOrganisations(ctx context.Context) ([]Organisation, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM tbl_organisation ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list organisations: %w", err)
	}
	defer rows.Close()

	var orgs []Organisation
	for rows.Next() {
		var org Organisation
		if err := rows.Scan(&org.ID, &org.Name, &org.Description, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan organisation: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate organisations: %w", err)
	}

	return orgs, nil
}

type CreateOrganisationParams struct {
	Name        string
	Description string
}

func (db *Database) CreateOrganisation(ctx context.Context, params CreateOrganisationParams) (Organisation, error) {
	org := Organisation{
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_organisation (name, description, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		org.Name, org.Description, org.CreatedAt, org.UpdatedAt).Scan(&org.ID); err != nil {
		return org, fmt.Errorf("database: failed to insert organisation (name=%s): %w", org.Name, err)
	}
	return org, nil
}

func (db *Database) GetOrganisationByID(ctx context.Context, id int64) (Organisation, error) {
	var org Organisation
	err := db.Pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM tbl_organisation WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.Description, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return org, ErrOrganisationNotFound
		}
		return org, fmt.Errorf("database: failed to scan organisation: %w", err)
	}
	return org, nil
}

func (db *Database) GetOrganisationByName(ctx context.Context, name string) (Organisation, error) {
	var org Organisation
	err := db.Pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM tbl_organisation WHERE name = $1`, name).
		Scan(&org.ID, &org.Name, &org.Description, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return org, ErrOrganisationNotFound
		}
		return org, fmt.Errorf("database: failed to scan organisation: %w", err)
	}
	return org, nil
}

type UpdateOrganisationParams struct {
	Name        util.Optional[string]
	Description util.Optional[string]
}

func (db *Database) UpdateOrganisationByID(ctx context.Context, id int64, params UpdateOrganisationParams) error {
	var query strings.Builder
	query.WriteString("UPDATE tbl_organisation SET updated_at = $1")
	args := []any{time.Now().UTC()}
	argNum := 2

	if params.Name.IsSet {
		query.WriteString(fmt.Sprintf(", name = $%d", argNum))
		args = append(args, params.Name.Val)
		argNum++
	}
	if params.Description.IsSet {
		query.WriteString(fmt.Sprintf(", description = $%d", argNum))
		args = append(args, params.Description.Val)
		argNum++
	}

	query.WriteString(fmt.Sprintf(" WHERE id = $%d", argNum))
	args = append(args, id)

	tag, err := db.Pool.Exec(ctx, query.String(), args...)
	if err != nil {
		return fmt.Errorf("database: failed to update organisation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganisationNotFound
	}
	return nil
}

func (db *Database) DeleteOrganisationByID(ctx context.Context, id int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tbl_user_organisation WHERE org_id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete organisation memberships: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tbl_organisation WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete organisation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganisationNotFound
	}

	return tx.Commit(ctx)
}

func (db *Database) ListOrganisationMembers(ctx context.Context, orgID int64) ([]User, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT u.id, u.login, u.name, u.email, u.password_hash, u.is_admin, u.active, u.api_token, u.created_at, u.updated_at
		FROM tbl_user u
		JOIN tbl_user_organisation uo ON uo.user_id = u.id
		WHERE uo.org_id = $1
		ORDER BY u.login ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list organisation members: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// SetOrganisationMembers replaces the full membership set of an organisation
// in one transaction. Unknown user ids abort the replacement with a
// ReferentialError and leave the membership untouched.
func (db *Database) SetOrganisationMembers(ctx context.Context, orgID int64, userIDs []int64) error {
	return db.replaceEdges(ctx, replaceEdgesParams{
		OwnerTable:  "tbl_organisation",
		OwnerColumn: "org_id",
		OwnerID:     orgID,
		OwnerAbsent: ErrOrganisationNotFound,
		EdgeTable:   "tbl_user_organisation",
		RefTable:    "tbl_user",
		RefColumn:   "user_id",
		RefEntity:   "user",
		RefIDs:      userIDs,
	})
}

func (db *Database) RemoveOrganisationMember(ctx context.Context, orgID, userID int64) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM tbl_user_organisation WHERE org_id = $1 AND user_id = $2`, orgID, userID); err != nil {
		return fmt.Errorf("database: failed to remove organisation member: %w", err)
	}
	return nil
}

// --- Groups ---

func (db *Database) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM tbl_group ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate groups: %w", err)
	}

	return groups, nil
}

type CreateGroupParams struct {
	Name        string
	Description string
}

func (db *Database) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	group := Group{
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_group (name, description, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		group.Name, group.Description, group.CreatedAt, group.UpdatedAt).Scan(&group.ID); err != nil {
		return group, fmt.Errorf("database: failed to insert group (name=%s): %w", group.Name, err)
	}
	return group, nil
}

func (db *Database) GetGroupByID(ctx context.Context, id int64) (Group, error) {
	var group Group
	err := db.Pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM tbl_group WHERE id = $1`, id).
		Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return group, ErrGroupNotFound
		}
		return group, fmt.Errorf("database: failed to scan group: %w", err)
	}
	return group, nil
}

func (db *Database) GetGroupByName(ctx context.Context, name string) (Group, error) {
	var group Group
	err := db.Pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM tbl_group WHERE name = $1`, name).
		Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return group, ErrGroupNotFound
		}
		return group, fmt.Errorf("database: failed to scan group: %w", err)
	}
	return group, nil
}

type UpdateGroupParams struct {
	Name        util.Optional[string]
	Description util.Optional[string]
}

func (db *Database) UpdateGroupByID(ctx context.Context, id int64, params UpdateGroupParams) error {
	var query strings.Builder
	query.WriteString("UPDATE tbl_group SET updated_at = $1")
	args := []any{time.Now().UTC()}
	argNum := 2

	if params.Name.IsSet {
		query.WriteString(fmt.Sprintf(", name = $%d", argNum))
		args = append(args, params.Name.Val)
		argNum++
	}
	if params.Description.IsSet {
		query.WriteString(fmt.Sprintf(", description = $%d", argNum))
		args = append(args, params.Description.Val)
		argNum++
	}

	query.WriteString(fmt.Sprintf(" WHERE id = $%d", argNum))
	args = append(args, id)

	tag, err := db.Pool.Exec(ctx, query.String(), args...)
	if err != nil {
		return fmt.Errorf("database: failed to update group %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (db *Database) DeleteGroupByID(ctx context.Context, id int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tbl_user_group WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete group memberships: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tbl_group WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete group %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}

	return tx.Commit(ctx)
}

func (db *Database) ListGroupMembers(ctx context.Context, groupID int64) ([]User, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT u.id, u.login, u.name, u.email, u.password_hash, u.is_admin, u.active, u.api_token, u.created_at, u.updated_at
		FROM tbl_user u
		JOIN tbl_user_group ug ON ug.user_id = u.id
		WHERE ug.group_id = $1
		ORDER BY u.login ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list group members: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// SetGroupMembers replaces the full membership set of a group in one
// transaction, mirroring SetOrganisationMembers.
func (db *Database) SetGroupMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	return db.replaceEdges(ctx, replaceEdgesParams{
		OwnerTable:  "tbl_group",
		OwnerColumn: "group_id",
		OwnerID:     groupID,
		OwnerAbsent: ErrGroupNotFound,
		EdgeTable:   "tbl_user_group",
		RefTable:    "tbl_user",
		RefColumn:   "user_id",
		RefEntity:   "user",
		RefIDs:      userIDs,
	})
}

func (db *Database) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM tbl_user_group WHERE group_id = $1 AND user_id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("database: failed to remove group member: %w", err)
	}
	return nil
}

// --- Users ---

func (db *Database) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, login, name, email, password_hash, is_admin, active, api_token, created_at, updated_at FROM tbl_user ORDER BY login ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

type CreateUserParams struct {
	Login        string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

func (db *Database) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	user := User{
		Login:        params.Login,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		IsAdmin:      params.IsAdmin,
		Active:       true,
		APIToken:     uuid.New(),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_user (login, name, email, password_hash, is_admin, active, api_token, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		user.Login, user.Name, user.Email, user.PasswordHash, user.IsAdmin, user.Active, user.APIToken, user.CreatedAt, user.UpdatedAt).Scan(&user.ID); err != nil {
		return user, fmt.Errorf("database: failed to insert user (login=%s): %w", user.Login, err)
	}
	return user, nil
}

func (db *Database) GetUserByID(ctx context.Context, id int64) (User, error) {
	return db.getUser(ctx, "id = $1", id)
}

func (db *Database) GetUserByLogin(ctx context.Context, login string) (User, error) {
	return db.getUser(ctx, "login = $1", login)
}

func (db *Database) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return db.getUser(ctx, "email = $1", email)
}

func (db *Database) GetUserByAPIToken(ctx context.Context, token uuid.UUID) (User, error) {
	return db.getUser(ctx, "api_token = $1", token)
}

func (db *Database) getUser(ctx context.Context, where string, arg any) (User, error) {
	var user User
	err := db.Pool.QueryRow(ctx, `SELECT id, login, name, email, password_hash, is_admin, active, api_token, created_at, updated_at FROM tbl_user WHERE `+where, arg).
		Scan(&user.ID, &user.Login, &user.Name, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.Active, &user.APIToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("database: failed to scan user: %w", err)
	}
	return user, nil
}

type UpdateUserParams struct {
	Name         util.Optional[string]
	Email        util.Optional[string]
	PasswordHash util.Optional[string]
	IsAdmin      util.Optional[bool]
	Active       util.Optional[bool]
}

func (db *Database) UpdateUserByID(ctx context.Context, id int64, params UpdateUserParams) error {
	var query strings.Builder
	query.WriteString("UPDATE tbl_user SET updated_at = $1")
	args := []any{time.Now().UTC()}
	argNum := 2

	if params.Name.IsSet {
		query.WriteString(fmt.Sprintf(", name = $%d", argNum))
		args = append(args, params.Name.Val)
		argNum++
	}
	if params.Email.IsSet {
		query.WriteString(fmt.Sprintf(", email = $%d", argNum))
		args = append(args, params.Email.Val)
		argNum++
	}
	if params.PasswordHash.IsSet {
		query.WriteString(fmt.Sprintf(", password_hash = $%d", argNum))
		args = append(args, params.PasswordHash.Val)
		argNum++
	}
	if params.IsAdmin.IsSet {
		query.WriteString(fmt.Sprintf(", is_admin = $%d", argNum))
		args = append(args, params.IsAdmin.Val)
		argNum++
	}
	if params.Active.IsSet {
		query.WriteString(fmt.Sprintf(", active = $%d", argNum))
		args = append(args, params.Active.Val)
		argNum++
	}

	query.WriteString(fmt.Sprintf(" WHERE id = $%d", argNum))
	args = append(args, id)

	tag, err := db.Pool.Exec(ctx, query.String(), args...)
	if err != nil {
		return fmt.Errorf("database: failed to update user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (db *Database) DeleteUserByID(ctx context.Context, id int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tbl_user_group WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete user group memberships: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tbl_user_organisation WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete user organisation memberships: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tbl_user WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: failed to delete user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return tx.Commit(ctx)
}

func (db *Database) ListUserGroups(ctx context.Context, userID int64) ([]Group, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at
		FROM tbl_group g
		JOIN tbl_user_group ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list user groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate user groups: %w", err)
	}

	return groups, nil
}

func (db *Database) ListUserOrganisations(ctx context.Context, userID int64) ([]Organisation, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT o.id, o.name, o.description, o.created_at, o.updated_at
		FROM tbl_organisation o
		JOIN tbl_user_organisation uo ON uo.org_id = o.id
		WHERE uo.user_id = $1
		ORDER BY o.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list user organisations: %w", err)
	}
	defer rows.Close()

	var orgs []Organisation
	for rows.Next() {
		var org Organisation
		if err := rows.Scan(&org.ID, &org.Name, &org.Description, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan organisation: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate user organisations: %w", err)
	}

	return orgs, nil
}

// SetUserGroups replaces the set of groups a user belongs to, keyed from the
// user side. Unknown group ids abort with a ReferentialError.
func (db *Database) SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	return db.replaceEdges(ctx, replaceEdgesParams{
		OwnerTable:  "tbl_user",
		OwnerColumn: "user_id",
		OwnerID:     userID,
		OwnerAbsent: ErrUserNotFound,
		EdgeTable:   "tbl_user_group",
		RefTable:    "tbl_group",
		RefColumn:   "group_id",
		RefEntity:   "group",
		RefIDs:      groupIDs,
	})
}

// SetUserOrganisations replaces the set of organisations a user belongs to.
func (db *Database) SetUserOrganisations(ctx context.Context, userID int64, orgIDs []int64) error {
	return db.replaceEdges(ctx, replaceEdgesParams{
		OwnerTable:  "tbl_user",
		OwnerColumn: "user_id",
		OwnerID:     userID,
		OwnerAbsent: ErrUserNotFound,
		EdgeTable:   "tbl_user_organisation",
		RefTable:    "tbl_organisation",
		RefColumn:   "org_id",
		RefEntity:   "organisation",
		RefIDs:      orgIDs,
	})
}

// --- Audit ---

type CreateAuditEventParams struct {
	ActorID   util.Optional[int64]
	EventType string
	Message   string
	Data      []byte
}

func (db *Database) CreateAuditEvent(ctx context.Context, params CreateAuditEventParams) (AuditEvent, error) {
	event := AuditEvent{
		ID:        uuid.New(),
		ActorID:   params.ActorID,
		EventType: params.EventType,
		Message:   params.Message,
		Data:      params.Data,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_audit_event (id, actor_id, event_type, message, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.ActorID, event.EventType, event.Message, event.Data, event.CreatedAt); err != nil {
		return event, fmt.Errorf("database: failed to insert audit event: %w", err)
	}
	return event, nil
}

// DeleteAuditEventsBefore purges audit events older than the cutoff and
// returns how many were removed.
func (db *Database) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM tbl_audit_event WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("database: failed to purge audit events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- helpers ---

type replaceEdgesParams struct {
	OwnerTable  string
	OwnerColumn string
	OwnerID     int64
	OwnerAbsent error
	EdgeTable   string
	RefTable    string
	RefColumn   string
	RefEntity   string
	RefIDs      []int64
}

// replaceEdges is the single transactional read-modify-write behind every
// membership replacement: verify the owner row, verify every referenced id,
// then swap the edge set. Duplicate ids in the input collapse to one edge.
func (db *Database) replaceEdges(ctx context.Context, params replaceEdgesParams) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerExists bool
	if err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, params.OwnerTable), params.OwnerID).Scan(&ownerExists); err != nil {
		return fmt.Errorf("database: failed to check %s: %w", params.OwnerTable, err)
	}
	if !ownerExists {
		return params.OwnerAbsent
	}

	ids := dedupeIDs(params.RefIDs)

	if len(ids) > 0 {
		rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, params.RefTable), ids)
		if err != nil {
			return fmt.Errorf("database: failed to verify %s ids: %w", params.RefEntity, err)
		}
		known := make(map[int64]bool, len(ids))
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("database: failed to scan %s id: %w", params.RefEntity, err)
			}
			known[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("database: failed to iterate %s ids: %w", params.RefEntity, err)
		}

		var invalid []int64
		for _, id := range ids {
			if !known[id] {
				invalid = append(invalid, id)
			}
		}
		if len(invalid) > 0 {
			return &ReferentialError{Entity: params.RefEntity, InvalidIDs: invalid}
		}
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, params.EdgeTable, params.OwnerColumn), params.OwnerID); err != nil {
		return fmt.Errorf("database: failed to clear %s: %w", params.EdgeTable, err)
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2)`, params.EdgeTable, params.OwnerColumn, params.RefColumn), params.OwnerID, id); err != nil {
			return fmt.Errorf("database: failed to insert %s edge: %w", params.EdgeTable, err)
		}
	}

	return tx.Commit(ctx)
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func scanUsers(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Login, &user.Name, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.Active, &user.APIToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate users: %w", err)
	}

	return users, nil
}
