package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/docker"
	"github.com/terminally-online/warden/internal/provider"
)

func TestBanExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, banExpiry(now, false))

	until := banExpiry(now, true)
	require.NotNil(t, until)
	assert.Equal(t, now.Add(provider.BanHorizon), *until)
}

func TestDirectory_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	container, err := docker.StartAuthDatabase(ctx, docker.DefaultPostgresConfig())
	require.NoError(t, err)
	defer func() { _ = docker.StopContainer(context.Background(), container.ID) }()

	seed := `
		INSERT INTO auth.users (id, email, raw_user_meta_data, banned_until, last_sign_in_at, created_at) VALUES
		('11111111-1111-1111-1111-111111111111', 'alice@example.com', '{"full_name": "Alice"}', NULL, '2024-05-01T10:00:00Z', '2024-01-01T00:00:00Z'),
		('22222222-2222-2222-2222-222222222222', NULL, '{"name": "bob"}', '2124-01-01T00:00:00Z', NULL, '2024-02-01T00:00:00Z');
	`
	require.NoError(t, docker.ExecuteSQL(ctx, container, seed))

	d, err := Open(ctx, container.ConnectionString(), zerolog.Nop())
	require.NoError(t, err)
	defer d.Close()

	users, err := d.ListDirectoryUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].FullName)
	assert.Equal(t, directory.StatusActive, users[0].Status)
	assert.Equal(t, provider.NoEmail, users[1].Email)
	assert.Equal(t, "bob", users[1].FullName)
	assert.Equal(t, directory.StatusBanned, users[1].Status)

	require.NoError(t, d.SetBanStatus(ctx, users[0].ID, true))
	require.NoError(t, d.SetBanStatus(ctx, users[1].ID, false))

	users, err = d.ListDirectoryUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, directory.StatusBanned, users[0].Status)
	assert.Equal(t, directory.StatusActive, users[1].Status)

	err = d.SetBanStatus(ctx, "33333333-3333-3333-3333-333333333333", true)
	assert.ErrorIs(t, err, provider.ErrNotFound)

	err = d.SetBanStatus(ctx, "not-a-uuid", true)
	assert.ErrorContains(t, err, "invalid user id")
}
