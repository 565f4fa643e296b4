package organisation

import (
	"context"
	"log/slog"
	"testing"

	"casedesk/internal/audit"
	"casedesk/internal/database"
	"casedesk/internal/util"
	"casedesk/internal/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	orgs    map[int64]database.Organisation
	users   map[int64]database.User
	members map[int64][]int64
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:    make(map[int64]database.Organisation),
		users:   make(map[int64]database.User),
		members: make(map[int64][]int64),
	}
}

func (s *fakeStore) ListOrganisations(ctx context.Context) ([]database.Organisation, error) {
	orgs := make([]database.Organisation, 0, len(s.orgs))
	for _, o := range s.orgs {
		orgs = append(orgs, o)
	}
	return orgs, nil
}

func (s *fakeStore) CreateOrganisation(ctx context.Context, params database.CreateOrganisationParams) (database.Organisation, error) {
	s.nextID++
	o := database.Organisation{ID: s.nextID, Name: params.Name, Description: params.Description}
	s.orgs[o.ID] = o
	return o, nil
}

func (s *fakeStore) GetOrganisationByID(ctx context.Context, id int64) (database.Organisation, error) {
	o, ok := s.orgs[id]
	if !ok {
		return database.Organisation{}, database.ErrOrganisationNotFound
	}
	return o, nil
}

func (s *fakeStore) GetOrganisationByName(ctx context.Context, name string) (database.Organisation, error) {
	for _, o := range s.orgs {
		if o.Name == name {
			return o, nil
		}
	}
	return database.Organisation{}, database.ErrOrganisationNotFound
}

func (s *fakeStore) UpdateOrganisationByID(ctx context.Context, id int64, params database.UpdateOrganisationParams) error {
	o, ok := s.orgs[id]
	if !ok {
		return database.ErrOrganisationNotFound
	}
	o.Name = params.Name.UnwrapOr(o.Name)
	o.Description = params.Description.UnwrapOr(o.Description)
	s.orgs[id] = o
	return nil
}

func (s *fakeStore) DeleteOrganisationByID(ctx context.Context, id int64) error {
	if _, ok := s.orgs[id]; !ok {
		return database.ErrOrganisationNotFound
	}
	delete(s.orgs, id)
	delete(s.members, id)
	return nil
}

func (s *fakeStore) ListOrganisationMembers(ctx context.Context, orgID int64) ([]database.User, error) {
	users := make([]database.User, 0)
	for _, id := range s.members[orgID] {
		users = append(users, s.users[id])
	}
	return users, nil
}

func (s *fakeStore) SetOrganisationMembers(ctx context.Context, orgID int64, userIDs []int64) error {
	var invalid []int64
	for _, id := range userIDs {
		if _, ok := s.users[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return &database.ReferentialError{Entity: "user", InvalidIDs: invalid}
	}
	s.members[orgID] = append([]int64(nil), userIDs...)
	return nil
}

func (s *fakeStore) RemoveOrganisationMember(ctx context.Context, orgID, userID int64) error {
	members := s.members[orgID]
	for i, id := range members {
		if id == userID {
			s.members[orgID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
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
	return NewManager(logger, store, validator.New(), &auditor), store
}

func TestCreateOrganisationRejectsDuplicateName(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateOrganisation(ctx, CreateOrganisationParams{Name: "ACME", Description: "x"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = manager.CreateOrganisation(ctx, CreateOrganisationParams{Name: "ACME"})
	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "org_name")
}

func TestCreateOrganisationValidatesName(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.CreateOrganisation(context.Background(), CreateOrganisationParams{Name: ""})
	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "org_name")
}

func TestUpdateOrganisationRejectsTakenName(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.CreateOrganisation(ctx, CreateOrganisationParams{Name: "ACME"})
	require.NoError(t, err)
	second, err := manager.CreateOrganisation(ctx, CreateOrganisationParams{Name: "Globex"})
	require.NoError(t, err)

	_, err = manager.UpdateOrganisation(ctx, second.ID, UpdateOrganisationParams{Name: util.Some("ACME")})
	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "org_name")

	updated, err := manager.UpdateOrganisation(ctx, second.ID, UpdateOrganisationParams{Name: util.Some("Globex Corp")})
	require.NoError(t, err)
	assert.Equal(t, "Globex Corp", updated.Name)
}

func TestDeleteOrganisationRemovesFetchedOrganisation(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateOrganisation(ctx, CreateOrganisationParams{Name: "ACME"})
	require.NoError(t, err)

	require.NoError(t, manager.DeleteOrganisation(ctx, created.ID, 0))
	assert.NotContains(t, store.orgs, created.ID)

	err = manager.DeleteOrganisation(ctx, created.ID, 0)
	assert.ErrorIs(t, err, database.ErrOrganisationNotFound)
}

func TestSetMembersRejectsUnknownUsers(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateOrganisation(ctx, CreateOrganisationParams{Name: "ACME"})
	require.NoError(t, err)

	store.users[1] = database.User{ID: 1, Login: "bob", Name: "Bob"}

	_, err = manager.SetMembers(ctx, created.ID, 0, []int64{1, 7})
	var refErr *database.ReferentialError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, []int64{7}, refErr.InvalidIDs)
	assert.Empty(t, store.members[created.ID])

	details, err := manager.SetMembers(ctx, created.ID, 0, []int64{1})
	require.NoError(t, err)
	require.Len(t, details.Members, 1)
	assert.Equal(t, Member{ID: 1, Login: "bob", Name: "Bob"}, details.Members[0])
}
