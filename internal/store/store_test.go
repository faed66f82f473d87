// Package store tests verify allow-list CRUD behavior against sqlite.
package store

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddGetCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	u, err := s.AddUser(ctx, "Alice@UMich.edu", "Alice", true)
	require.NoError(t, err)
	assert.Equal(t, "alice@umich.edu", u.Email)
	assert.True(t, u.IsAdmin)
	assert.Nil(t, u.LastLogin)

	got, ok, err := s.GetUser(ctx, "ALICE@umich.EDU")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice@umich.edu", got.Email)

	_, err = s.AddUser(ctx, "alice@umich.edu", "", false)
	assert.ErrorIs(t, err, ErrExists)

	_, ok, err = s.GetUser(ctx, "nobody@umich.edu")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastAdminInvariant(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	_, err := s.AddUser(ctx, "alice@umich.edu", "Alice", true)
	require.NoError(t, err)

	// Sole admin: neither delete nor demote may proceed.
	assert.ErrorIs(t, s.RemoveUser(ctx, "alice@umich.edu"), ErrLastAdmin)
	assert.ErrorIs(t, s.SetAdmin(ctx, "alice@umich.edu", false), ErrLastAdmin)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)

	// With a second admin both operations go through.
	_, err = s.AddUser(ctx, "bob@umich.edu", "Bob", true)
	require.NoError(t, err)
	require.NoError(t, s.SetAdmin(ctx, "alice@umich.edu", false))
	require.NoError(t, s.RemoveUser(ctx, "alice@umich.edu"))

	assert.ErrorIs(t, s.RemoveUser(ctx, "ghost@umich.edu"), ErrNotFound)
	assert.ErrorIs(t, s.SetAdmin(ctx, "ghost@umich.edu", true), ErrNotFound)
}

func TestTouchLastLogin(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	_, err := s.AddUser(ctx, "alice@umich.edu", "", true)
	require.NoError(t, err)

	when := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	require.NoError(t, s.TouchLastLogin(ctx, "ALICE@umich.edu", when))

	u, ok, err := s.GetUser(ctx, "alice@umich.edu")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, when.Unix(), u.LastLogin.Unix())

	// Unknown email is a silent no-op.
	require.NoError(t, s.TouchLastLogin(ctx, "ghost@umich.edu", when))
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	_, ok, err := s.GetConfig(ctx, "operator_passcode_hash")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, "operator_passcode_hash", "h1"))
	require.NoError(t, s.SetConfig(ctx, "operator_passcode_hash", "h2"))
	v, ok, err := s.GetConfig(ctx, "operator_passcode_hash")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h2", v)

	init, err := s.IsInitialized(ctx)
	require.NoError(t, err)
	assert.False(t, init)
	require.NoError(t, s.SetInitialized(ctx))
	init, err = s.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, init)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	fsys := afero.NewMemMapFs()

	_, err := s.AddUser(ctx, "alice@umich.edu", "Alice", true)
	require.NoError(t, err)
	_, err = s.AddUser(ctx, "bob@umich.edu", "Bob", false)
	require.NoError(t, err)
	require.NoError(t, s.TouchLastLogin(ctx, "bob@umich.edu", time.Now()))

	require.NoError(t, Export(ctx, s, fsys, "/allowed-users.json"))

	// Import into a fresh store reproduces the list.
	s2 := open(t)
	n, err := Import(ctx, s2, fsys, "/allowed-users.json")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	users, err := s2.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice@umich.edu", users[0].Email)
	assert.True(t, users[0].IsAdmin)
	assert.NotNil(t, users[1].LastLogin)
}

func TestSnapshotImportRejectsAdminlessList(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/snap.json",
		[]byte(`[{"email":"bob@umich.edu","isAdmin":false}]`), 0o600))

	_, err := Import(ctx, s, fsys, "/snap.json")
	assert.ErrorIs(t, err, ErrLastAdmin)
}
