package services

import (
	"context"
	"testing"

	"github.com/alicesotero/CoLab/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount_DefaultRooms(t *testing.T) {
	stack := newBrokerStack(t)

	user, err := stack.registry.CreateAccount(context.Background(), Registration{
		Username:  "alice",
		Password:  "secret123",
		FirstName: "Alice",
		LastName:  "Silva",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.Admin)
	assert.Equal(t, []domain.RoomName{"Geral"}, user.AllowedRooms)
	assert.NotEqual(t, "secret123", user.PasswordHash)
}

func TestCreateAccount_Validation(t *testing.T) {
	stack := newBrokerStack(t)

	_, err := stack.registry.CreateAccount(context.Background(), Registration{
		Username: "alice",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	_, err = stack.registry.CreateAccount(context.Background(), Registration{
		Username:  domain.ReservedAdminUsername,
		Password:  "secret123",
		FirstName: "Root",
		LastName:  "Admin",
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestCreateAccount_DuplicateUsername(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	_, err := stack.registry.CreateAccount(context.Background(), Registration{
		Username:  "alice",
		Password:  "secret123",
		FirstName: "Alice",
		LastName:  "Silva",
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestAuthenticate_BindsIdentity(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	conn := &fakeConn{}
	sess := stack.registry.Register(conn)
	assert.False(t, sess.Authenticated())

	user, token, err := stack.registry.Authenticate(context.Background(), sess, "alice", "password123")
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, token)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, "alice", sess.Username())
	assert.True(t, sess.Allowed("Geral"))
	assert.False(t, sess.Allowed("Projetos"))
}

// Unknown user and wrong password are indistinguishable to the caller.
func TestAuthenticate_UniformFailure(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	conn := &fakeConn{}
	sess := stack.registry.Register(conn)

	_, _, errUnknown := stack.registry.Authenticate(context.Background(), sess, "nobody", "password123")
	_, _, errWrongPw := stack.registry.Authenticate(context.Background(), sess, "alice", "wrong-password")

	assert.ErrorIs(t, errUnknown, domain.ErrBadCredentials)
	assert.ErrorIs(t, errWrongPw, domain.ErrBadCredentials)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
	assert.False(t, sess.Authenticated())
}

func TestAuthenticateToken_ResumesSession(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	sess1, _ := stack.connect(t, "alice")
	_, token, err := stack.registry.Authenticate(context.Background(), sess1, "alice", "password123")
	require.NoError(t, err)

	conn2 := &fakeConn{}
	sess2 := stack.registry.Register(conn2)
	user, _, err := stack.registry.AuthenticateToken(context.Background(), sess2, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, sess2.Authenticated())

	_, _, err = stack.registry.AuthenticateToken(context.Background(), sess2, "garbage.token.value")
	assert.ErrorIs(t, err, domain.ErrBadCredentials)
}

func TestDeauthenticate_LeavesRoomAndClearsIdentity(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	sess, _ := stack.connect(t, "alice")
	_, err := stack.directory.Join(context.Background(), sess, "Geral")
	require.NoError(t, err)

	stack.registry.Deauthenticate(sess)

	assert.False(t, sess.Authenticated())
	assert.Equal(t, domain.RoomName(""), sess.CurrentRoom())
	assert.Empty(t, stack.directory.Members("Geral"))
}

func TestUnregister_RemovesFromRoomAndRegistry(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	sess, _ := stack.connect(t, "alice")
	_, err := stack.directory.Join(context.Background(), sess, "Geral")
	require.NoError(t, err)
	require.Equal(t, 1, stack.registry.Count())

	stack.registry.Unregister(sess)

	assert.Equal(t, 0, stack.registry.Count())
	assert.Empty(t, stack.directory.Members("Geral"))
}

func TestRefreshPermissions_ForcesOutOfRevokedRoom(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral", "Projetos")

	sess, conn := stack.connect(t, "alice")
	_, err := stack.directory.Join(context.Background(), sess, "Projetos")
	require.NoError(t, err)

	stack.registry.RefreshPermissions(sess, []domain.RoomName{"Geral"})

	assert.Equal(t, domain.RoomName(""), sess.CurrentRoom())
	assert.Empty(t, stack.directory.Members("Projetos"))
	assert.Equal(t, 1, conn.countEvent("access.error"))
	assert.Equal(t, 1, conn.countEvent("permissions.updated"))
	assert.False(t, sess.Allowed("Projetos"))
}

func TestUpdateProfile(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	sess, _ := stack.connect(t, "alice")
	user, err := stack.registry.UpdateProfile(context.Background(), sess, "+55 11 99999-0000")
	require.NoError(t, err)
	assert.Equal(t, "+55 11 99999-0000", user.PhoneNumber)

	stored, err := stack.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "+55 11 99999-0000", stored.PhoneNumber)
}

func TestDeleteOwnAccount(t *testing.T) {
	stack := newBrokerStack(t)
	stack.addUser(t, "alice", false, "Geral")

	sess, _ := stack.connect(t, "alice")
	require.NoError(t, stack.registry.DeleteOwnAccount(context.Background(), sess))

	assert.False(t, sess.Authenticated())
	_, err := stack.users.GetByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDeleteOwnAccount_RootAdminProtected(t *testing.T) {
	stack := newBrokerStack(t)
	require.NoError(t, stack.registry.EnsureRootAdmin(context.Background(), "admin-password"))

	conn := &fakeConn{}
	sess := stack.registry.Register(conn)
	_, _, err := stack.registry.Authenticate(context.Background(), sess, domain.ReservedAdminUsername, "admin-password")
	require.NoError(t, err)

	err = stack.registry.DeleteOwnAccount(context.Background(), sess)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestEnsureRootAdmin_Idempotent(t *testing.T) {
	stack := newBrokerStack(t)

	require.NoError(t, stack.registry.EnsureRootAdmin(context.Background(), "admin-password"))
	require.NoError(t, stack.registry.EnsureRootAdmin(context.Background(), "other-password"))

	admin, err := stack.users.GetByUsername(context.Background(), domain.ReservedAdminUsername)
	require.NoError(t, err)
	assert.True(t, admin.Admin)
	assert.ElementsMatch(t, testRooms, admin.AllowedRooms)
}
