package services

import (
	"context"
	"testing"

	"github.com/alicesotero/CoLab/internal/core/domain"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminSession(t *testing.T, stack *brokerStack) (*domain.Session, *fakeConn) {
	t.Helper()
	require.NoError(t, stack.registry.EnsureRootAdmin(context.Background(), "admin-password"))

	conn := &fakeConn{}
	sess := stack.registry.Register(conn)
	_, _, err := stack.registry.Authenticate(context.Background(), sess, domain.ReservedAdminUsername, "admin-password")
	require.NoError(t, err)
	return sess, conn
}

func TestListUsers_RequiresAdmin(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")
	sess, _ := stack.connect(t, "alice")

	_, err := stack.admin.ListUsers(context.Background(), sess)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestListUsers_ExcludesRootAdmin(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)
	stack.addUser(t, "alice", false, "Geral")
	stack.addUser(t, "bob", false, "Geral")

	users, err := stack.admin.ListUsers(context.Background(), admin)
	require.NoError(t, err)

	names := lo.Map(users, func(u domain.UserSummary, _ int) string { return u.Username })
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)
}

func TestSetPermission_GrantClearsPendingRequest(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)
	stack.addUser(t, "alice", false, "Geral")
	require.NoError(t, stack.directory.RequestAccess(context.Background(), "alice", "Projetos"))

	roster, err := stack.admin.SetPermission(context.Background(), admin, "alice", "Projetos", ActionGrant)
	require.NoError(t, err)

	alice, found := lo.Find(roster, func(u domain.UserSummary) bool { return u.Username == "alice" })
	require.True(t, found)
	assert.Contains(t, alice.AllowedRooms, domain.RoomName("Projetos"))
	assert.Empty(t, alice.PendingRequests)
}

// Granting an already granted room changes nothing.
func TestSetPermission_GrantIsIdempotent(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)
	stack.addUser(t, "alice", false, "Geral")

	_, err := stack.admin.SetPermission(context.Background(), admin, "alice", "Geral", ActionGrant)
	require.NoError(t, err)

	user, err := stack.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.RoomName{"Geral"}, user.AllowedRooms)
}

// Denied join, then grant, then successful join with empty history.
func TestPermissionGrant_EnablesJoin(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)
	stack.addUser(t, "alice", false, "Geral")

	alice, aliceConn := stack.connect(t, "alice")
	_, err := stack.directory.Join(context.Background(), alice, "Projetos")
	require.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = stack.admin.SetPermission(context.Background(), admin, "alice", "Projetos", ActionGrant)
	require.NoError(t, err)
	assert.Equal(t, 1, aliceConn.countEvent("permissions.updated"))

	history, err := stack.directory.Join(context.Background(), alice, "Projetos")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSetPermission_RevokeForcesOutOfRoom(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)
	stack.addUser(t, "alice", false, "Geral", "Projetos")

	alice, aliceConn := stack.connect(t, "alice")
	_, err := stack.directory.Join(context.Background(), alice, "Projetos")
	require.NoError(t, err)

	_, err = stack.admin.SetPermission(context.Background(), admin, "alice", "Projetos", ActionRevoke)
	require.NoError(t, err)

	assert.Equal(t, domain.RoomName(""), alice.CurrentRoom())
	assert.Empty(t, stack.directory.Members("Projetos"))
	assert.Equal(t, 1, aliceConn.countEvent("access.error"))
	assert.False(t, alice.Allowed("Projetos"))

	// Posting after revocation fails on the refreshed cached set.
	_, err = stack.router.Post(context.Background(), alice, "too late", nil)
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestSetPermission_UnknownAction(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)
	stack.addUser(t, "alice", false, "Geral")

	_, err := stack.admin.SetPermission(context.Background(), admin, "alice", "Geral", "promote")
	assert.ErrorIs(t, err, domain.ErrMissingFields)
}

func TestDeleteUser_ForcesLogout(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)
	stack.addUser(t, "bob", false, "Geral")

	bob, bobConn := stack.connect(t, "bob")
	_, err := stack.directory.Join(context.Background(), bob, "Geral")
	require.NoError(t, err)

	require.NoError(t, stack.admin.DeleteUser(context.Background(), admin, "bob"))

	assert.Equal(t, 1, bobConn.countEvent("forced-logout"))
	assert.False(t, bob.Authenticated())
	assert.Empty(t, stack.directory.Members("Geral"))

	_, err = stack.users.GetByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDeleteUser_RootAdminProtected(t *testing.T) {
	stack := newBrokerStack(t)
	admin, _ := adminSession(t, stack)

	err := stack.admin.DeleteUser(context.Background(), admin, domain.ReservedAdminUsername)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteUser_RequiresAdmin(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")
	stack.addUser(t, "bob", false, "Geral")
	alice, _ := stack.connect(t, "alice")

	err := stack.admin.DeleteUser(context.Background(), alice, "bob")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
