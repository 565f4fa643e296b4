package group

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
	groups  map[int64]database.Group
	users   map[int64]database.User
	members map[int64][]int64
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:  make(map[int64]database.Group),
		users:   make(map[int64]database.User),
		members: make(map[int64][]int64),
	}
}

func (s *fakeStore) ListGroups(ctx context.Context) ([]database.Group, error) {
	groups := make([]database.Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *fakeStore) CreateGroup(ctx context.Context, params database.CreateGroupParams) (database.Group, error) {
	s.nextID++
	g := database.Group{ID: s.nextID, Name: params.Name, Description: params.Description}
	s.groups[g.ID] = g
	return g, nil
}

func (s *fakeStore) GetGroupByID(ctx context.Context, id int64) (database.Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return database.Group{}, database.ErrGroupNotFound
	}
	return g, nil
}

func (s *fakeStore) GetGroupByName(ctx context.Context, name string) (database.Group, error) {
	for _, g := range s.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return database.Group{}, database.ErrGroupNotFound
}

func (s *fakeStore) UpdateGroupByID(ctx context.Context, id int64, params database.UpdateGroupParams) error {
	g, ok := s.groups[id]
	if !ok {
		return database.ErrGroupNotFound
	}
	g.Name = params.Name.UnwrapOr(g.Name)
	g.Description = params.Description.UnwrapOr(g.Description)
	s.groups[id] = g
	return nil
}

func (s *fakeStore) DeleteGroupByID(ctx context.Context, id int64) error {
	if _, ok := s.groups[id]; !ok {
		return database.ErrGroupNotFound
	}
	delete(s.groups, id)
	delete(s.members, id)
	return nil
}

func (s *fakeStore) ListGroupMembers(ctx context.Context, groupID int64) ([]database.User, error) {
	users := make([]database.User, 0)
	for _, id := range s.members[groupID] {
		users = append(users, s.users[id])
	}
	return users, nil
}

func (s *fakeStore) SetGroupMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	var invalid []int64
	for _, id := range userIDs {
		if _, ok := s.users[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return &database.ReferentialError{Entity: "user", InvalidIDs: invalid}
	}
	s.members[groupID] = append([]int64(nil), userIDs...)
	return nil
}

func (s *fakeStore) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	members := s.members[groupID]
	for i, id := range members {
		if id == userID {
			s.members[groupID] = append(members[:i], members[i+1:]...)
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

func TestCreateGroupRejectsDuplicateName(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts"})
	require.NoError(t, err)

	_, err = manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts"})
	var validationErr *validator.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "group_name")
}

func TestUpdateGroupPartialPatch(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts", Description: "tier one"})
	require.NoError(t, err)

	updated, err := manager.UpdateGroup(ctx, created.ID, UpdateGroupParams{Description: util.Some("tier two")})
	require.NoError(t, err)
	assert.Equal(t, "analysts", updated.Name)
	assert.Equal(t, "tier two", updated.Description)
}

func TestUpdateGroupNotFound(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.UpdateGroup(context.Background(), 42, UpdateGroupParams{Name: util.Some("x")})
	assert.ErrorIs(t, err, database.ErrGroupNotFound)
}

func TestDeleteGroupRemovesFetchedGroup(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts"})
	require.NoError(t, err)

	require.NoError(t, manager.DeleteGroup(ctx, created.ID, 0))
	assert.NotContains(t, store.groups, created.ID)

	err = manager.DeleteGroup(ctx, created.ID, 0)
	assert.ErrorIs(t, err, database.ErrGroupNotFound)
}

func TestSetMembersIsIdempotent(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts"})
	require.NoError(t, err)

	store.users[1] = database.User{ID: 1, Login: "bob", Name: "Bob"}
	store.users[2] = database.User{ID: 2, Login: "alice", Name: "Alice"}

	first, err := manager.SetMembers(ctx, created.ID, 0, []int64{1, 2})
	require.NoError(t, err)
	second, err := manager.SetMembers(ctx, created.ID, 0, []int64{1, 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Members, second.Members)
}

func TestSetMembersRejectsUnknownIDsWithoutMutating(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts"})
	require.NoError(t, err)

	store.users[1] = database.User{ID: 1, Login: "bob", Name: "Bob"}
	_, err = manager.SetMembers(ctx, created.ID, 0, []int64{1})
	require.NoError(t, err)

	_, err = manager.SetMembers(ctx, created.ID, 0, []int64{1, 99})
	var refErr *database.ReferentialError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, []int64{99}, refErr.InvalidIDs)
	assert.Equal(t, []int64{1}, store.members[created.ID])
}

func TestRemoveAbsentMemberIsNoOp(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts"})
	require.NoError(t, err)

	assert.NoError(t, manager.RemoveMember(ctx, created.ID, 99, 0))
}

func TestGetGroupIncludesMemberProjection(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	created, err := manager.CreateGroup(ctx, CreateGroupParams{Name: "analysts"})
	require.NoError(t, err)

	store.users[1] = database.User{ID: 1, Login: "bob", Name: "Bob", Email: "bob@example.com", IsAdmin: true}
	_, err = manager.SetMembers(ctx, created.ID, 0, []int64{1})
	require.NoError(t, err)

	details, err := manager.GetGroup(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, details.Members, 1)
	assert.Equal(t, Member{ID: 1, Login: "bob", Name: "Bob"}, details.Members[0])
}
