package factory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminally-online/warden/internal/config"
	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/provider/gotrue"
	"github.com/terminally-online/warden/internal/provider/memory"
)

func TestNewDirectory_Memory(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderMemory}
	dir, closeFn, err := NewDirectory(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	require.IsType(t, &memory.Directory{}, dir)
	users, err := dir.ListDirectoryUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, MemorySeedSize)
}

func TestNewDirectory_GoTrue(t *testing.T) {
	cfg := &config.Config{SupabaseURL: "https://project.supabase.co", ServiceRoleKey: "key"}
	dir, closeFn, err := NewDirectory(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &gotrue.Client{}, dir)
}

func TestNewDirectory_MissingSettings(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{"gotrue without key", config.Config{SupabaseURL: "https://x.supabase.co"}, "service_role_key"},
		{"postgres without url", config.Config{Provider: "postgres"}, "database_url"},
		{"unknown", config.Config{Provider: "ldap"}, "unknown provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewDirectory(context.Background(), &tt.cfg, nil, zerolog.Nop())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := &config.Config{
		Provider:        config.ProviderMemory,
		PrincipalEmail:  "config@example.com",
		DemoEmail:       "readonly@example.com",
		SimulationDelay: "0s",
		NotificationTTL: "2s",
	}
	dir := memory.New()

	opts, err := SessionOptions(cfg, &config.Flags{PrincipalEmail: "flag@example.com"}, dir, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, "flag@example.com", opts.Principals.ActingPrincipal().Email)
	assert.Equal(t, "readonly@example.com", opts.DemoEmail)
	assert.Equal(t, time.Duration(0), opts.SimulationDelay)
	assert.Equal(t, 2*time.Second, opts.NotificationTTL)
	assert.NotNil(t, opts.Clock)

	cfg.SimulationDelay = "later"
	_, err = SessionOptions(cfg, nil, dir, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestNewSession_Memory(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderMemory}
	sess, closeFn, err := NewSession(context.Background(), cfg, nil, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, sess.Mount(context.Background()))
	state := sess.State()
	assert.Equal(t, directory.LoadSucceeded, state.CacheStatus)
	assert.Len(t, state.Filtered, MemorySeedSize)
}

func TestNewSession_InvalidConfig(t *testing.T) {
	_, _, err := NewSession(context.Background(), &config.Config{}, nil, zerolog.Nop(), nil)
	assert.Error(t, err)
}
