package user

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"casedesk/internal/audit"
	"casedesk/internal/database"
	"casedesk/internal/util"
	"casedesk/internal/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	users  map[int64]database.User
	groups map[int64]database.Group
	orgs   map[int64]database.Organisation

	userGroups map[int64][]int64
	userOrgs   map[int64][]int64

	nextID int64
	clock  time.Time
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[int64]database.User),
		groups:     make(map[int64]database.Group),
		orgs:       make(map[int64]database.Organisation),
		userGroups: make(map[int64][]int64),
		userOrgs:   make(map[int64][]int64),
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) ListUsers(ctx context.Context) ([]database.User, error) {
	users := make([]database.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *fakeStore) CreateUser(ctx context.Context, params database.CreateUserParams) (database.User, error) {
	s.nextID++
	u := database.User{
		ID:           s.nextID,
		Login:        params.Login,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		IsAdmin:      params.IsAdmin,
		Active:       true,
		APIToken:     uuid.New(),
	}
	u.CreatedAt = s.tick()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeStore) GetUserByID(ctx context.Context, id int64) (database.User, error) {
	u, ok := s.users[id]
	if !ok {
		return database.User{}, database.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) GetUserByLogin(ctx context.Context, login string) (database.User, error) {
	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return database.User{}, database.ErrUserNotFound
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return database.User{}, database.ErrUserNotFound
}

func (s *fakeStore) UpdateUserByID(ctx context.Context, id int64, params database.UpdateUserParams) error {
	u, ok := s.users[id]
	if !ok {
		return database.ErrUserNotFound
	}
	u.Name = params.Name.UnwrapOr(u.Name)
	u.Email = params.Email.UnwrapOr(u.Email)
	u.PasswordHash = params.PasswordHash.UnwrapOr(u.PasswordHash)
	u.IsAdmin = params.IsAdmin.UnwrapOr(u.IsAdmin)
	u.Active = params.Active.UnwrapOr(u.Active)
	u.UpdatedAt = s.tick()
	s.users[id] = u
	return nil
}

func (s *fakeStore) DeleteUserByID(ctx context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return database.ErrUserNotFound
	}
	delete(s.users, id)
	delete(s.userGroups, id)
	delete(s.userOrgs, id)
	return nil
}

func (s *fakeStore) ListUserGroups(ctx context.Context, userID int64) ([]database.Group, error) {
	groups := make([]database.Group, 0)
	for _, id := range s.userGroups[userID] {
		groups = append(groups, s.groups[id])
	}
	return groups, nil
}

func (s *fakeStore) ListUserOrganisations(ctx context.Context, userID int64) ([]database.Organisation, error) {
	orgs := make([]database.Organisation, 0)
	for _, id := range s.userOrgs[userID] {
		orgs = append(orgs, s.orgs[id])
	}
	return orgs, nil
}

func (s *fakeStore) SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	var invalid []int64
	for _, id := range groupIDs {
		if _, ok := s.groups[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return &database.ReferentialError{Entity: "group", InvalidIDs: invalid}
	}
	s.userGroups[userID] = append([]int64(nil), groupIDs...)
	return nil
}

func (s *fakeStore) SetUserOrganisations(ctx context.Context, userID int64, orgIDs []int64) error {
	var invalid []int64
	for _, id := range orgIDs {
		if _, ok := s.orgs[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return &database.ReferentialError{Entity: "organisation", InvalidIDs: invalid}
	}
	s.userOrgs[userID] = append([]int64(nil), orgIDs...)
	return nil
}

func (s *fakeStore) CreateAuditEvent(ctx context.Context, params database.CreateAuditEventParams) (database.AuditEvent, error) {
	return database.AuditEvent{ID: uuid.New(), EventType: params.EventType}, nil
}

func newTestManager(t *testing.T) (Manager, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	logger := slog.New(slog.DiscardHandler)
	auditor := audit.NewAuditor(logger, store)
	return NewManager(logger, store, validator.New(), &auditor, nil), store
}

func validCreateParams() CreateUserParams {
	return CreateUserParams{
		Login:    "bob",
		Name:     "Bob Smith",
		Email:    "bob@example.com",
		Password: "CorrectHorse42",
	}
}

func TestCreateUserDefaultsToActive(t *testing.T) {
	manager, _ := newTestManager(t)

	created, err := manager.CreateUser(context.Background(), validCreateParams())
	require.NoError(t, err)

	assert.True(t, created.Active)
	assert.Equal(t, "bob", created.Login)
	assert.NotZero(t, created.ID)
}

func TestCreateUserHashesPassword(t *testing.T) {
	manager, store := newTestManager(t)

	created, err := manager.CreateUser(context.Background(), validCreateParams())
	require.NoError(t, err)

	stored := store.users[created.ID]
	assert.NotEqual(t, "CorrectHorse42", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("CorrectHorse42")))
}

func TestCreateUserRejectsDuplicateLogin(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	params := validCreateParams()
	params.Email = "other@example.com"
	_, err = manager.CreateUser(ctx, params)

	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "user_login")
}

func TestCreateUserRejectsMalformedPayload(t *testing.T) {
	manager, _ := newTestManager(t)

	params := validCreateParams()
	params.Email = "not-an-email"
	_, err := manager.CreateUser(context.Background(), params)

	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "user_email")
}

func TestDeleteActiveUserFails(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	err = manager.DeleteUser(ctx, created.ID, 0)
	assert.ErrorIs(t, err, ErrUserActive)
}

func TestUserLifecycle(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	err = manager.DeleteUser(ctx, created.ID, 0)
	require.ErrorIs(t, err, ErrUserActive)

	deactivated, err := manager.DeactivateUser(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	require.NoError(t, manager.DeleteUser(ctx, created.ID, 0))
	assert.NotContains(t, store.users, created.ID)

	err = manager.DeleteUser(ctx, created.ID, 0)
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}

func TestDeactivateIsIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	first, err := manager.DeactivateUser(ctx, created.ID, 0)
	require.NoError(t, err)
	second, err := manager.DeactivateUser(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	reactivated, err := manager.ActivateUser(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.True(t, reactivated.Active)
	assert.Equal(t, created.Login, reactivated.Login)
	assert.Equal(t, created.Email, reactivated.Email)
}

func TestUpdateUserPartialPatch(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	updated, err := manager.UpdateUser(ctx, created.ID, UpdateUserParams{
		Name: util.Some("Robert Smith"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Robert Smith", updated.Name)
	assert.Equal(t, created.Email, updated.Email)
	assert.Equal(t, created.Login, updated.Login)
}

func TestUpdateUserRejectsTakenEmail(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	first, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	params := validCreateParams()
	params.Login = "alice"
	params.Email = "alice@example.com"
	_, err = manager.CreateUser(ctx, params)
	require.NoError(t, err)

	_, err = manager.UpdateUser(ctx, first.ID, UpdateUserParams{
		Email: util.Some("alice@example.com"),
	})

	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "user_email")
}

func TestUpdateUserRejectsLoginChange(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	_, err = manager.UpdateUser(ctx, created.ID, UpdateUserParams{
		Login: util.Some("mallory"),
		Name:  util.Some("Mallory"),
	})

	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "user_login")
	assert.Equal(t, "bob", store.users[created.ID].Login)
	assert.Equal(t, "Bob Smith", store.users[created.ID].Name)
}

func TestStateChangeReturnsFreshRow(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	deactivated, err := manager.DeactivateUser(ctx, created.ID, 0)
	require.NoError(t, err)

	assert.True(t, deactivated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, store.users[created.ID].UpdatedAt, deactivated.UpdatedAt)
}

func TestUpdateUserNotFound(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.UpdateUser(context.Background(), 42, UpdateUserParams{Name: util.Some("x")})
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}

func TestLookupExposesOnlyRestrictedFields(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	byID, err := manager.LookupByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, RestrictedUser{ID: created.ID, Login: "bob", Name: "Bob Smith"}, byID)

	byLogin, err := manager.LookupByLogin(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, byID, byLogin)

	_, err = manager.LookupByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}

func TestSetGroupsRejectsUnknownIDs(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	store.groups[1] = database.Group{ID: 1, Name: "analysts"}

	err = manager.SetGroups(ctx, created.ID, 0, []int64{1, 99})
	var refErr *database.ReferentialError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, []int64{99}, refErr.InvalidIDs)
	assert.Empty(t, store.userGroups[created.ID])

	require.NoError(t, manager.SetGroups(ctx, created.ID, 0, []int64{1}))
	assert.Equal(t, []int64{1}, store.userGroups[created.ID])
}

func TestSetOrganisationsReplacesSet(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateUser(ctx, validCreateParams())
	require.NoError(t, err)

	store.orgs[1] = database.Organisation{ID: 1, Name: "ACME"}
	store.orgs[2] = database.Organisation{ID: 2, Name: "Globex"}

	require.NoError(t, manager.SetOrganisations(ctx, created.ID, 0, []int64{1, 2}))
	require.NoError(t, manager.SetOrganisations(ctx, created.ID, 0, []int64{2}))
	assert.Equal(t, []int64{2}, store.userOrgs[created.ID])
}
