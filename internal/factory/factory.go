// Package factory builds identity providers and sessions from configuration.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/terminally-online/warden/internal/config"
	"github.com/terminally-online/warden/internal/metrics"
	"github.com/terminally-online/warden/internal/provider"
	"github.com/terminally-online/warden/internal/provider/gotrue"
	"github.com/terminally-online/warden/internal/provider/memory"
	"github.com/terminally-online/warden/internal/provider/postgres"
	"github.com/terminally-online/warden/internal/session"
)

const (
	// MemorySeedSize matches the generated directory of the local demo.
	MemorySeedSize = 50

	listRetries = 3
)

// NewDirectory returns the provider selected by cfg and a function that
// releases its resources.
func NewDirectory(ctx context.Context, cfg *config.Config, flags *config.Flags, log zerolog.Logger) (provider.Directory, func(), error) {
	switch p := cfg.GetProvider(flags); p {
	case config.ProviderGoTrue:
		url, err := cfg.GetSupabaseURL(flags)
		if err != nil {
			return nil, nil, err
		}
		key, err := cfg.GetServiceRoleKey(flags)
		if err != nil {
			return nil, nil, err
		}
		timeout, err := cfg.GetRequestTimeout()
		if err != nil {
			return nil, nil, err
		}
		client, err := gotrue.New(gotrue.Config{
			URL:            url,
			ServiceRoleKey: key,
			PageSize:       cfg.GetListPageSize(),
			Timeout:        timeout,
			MaxRetries:     listRetries,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil

	case config.ProviderPostgres:
		dbURL, err := cfg.GetDatabaseURL(flags)
		if err != nil {
			return nil, nil, err
		}
		dir, err := postgres.Open(ctx, dbURL, log)
		if err != nil {
			return nil, nil, err
		}
		return dir, dir.Close, nil

	case config.ProviderMemory:
		log.Warn().Int("users", MemorySeedSize).Msg("using generated in-memory directory")
		return memory.New(memory.Seed(MemorySeedSize, time.Now())...), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider %q", p)
	}
}

// SessionOptions returns the session options described by cfg for the
// given directory.
func SessionOptions(cfg *config.Config, flags *config.Flags, dir provider.Directory, log zerolog.Logger, m *metrics.Metrics) (session.Options, error) {
	delay, err := cfg.GetSimulationDelay()
	if err != nil {
		return session.Options{}, err
	}
	ttl, err := cfg.GetNotificationTTL()
	if err != nil {
		return session.Options{}, err
	}

	return session.Options{
		Directory:       dir,
		Principals:      provider.StaticPrincipal(cfg.GetPrincipalEmail(flags)),
		Clock:           clockwork.NewRealClock(),
		Logger:          log,
		Metrics:         m,
		DemoEmail:       cfg.DemoEmail,
		SimulationDelay: delay,
		NotificationTTL: ttl,
	}, nil
}

// NewSession wires a provider and a session together. The returned function
// closes both.
func NewSession(ctx context.Context, cfg *config.Config, flags *config.Flags, log zerolog.Logger, m *metrics.Metrics) (*session.Session, func(), error) {
	if err := cfg.Validate(flags); err != nil {
		return nil, nil, err
	}

	dir, closeDir, err := NewDirectory(ctx, cfg, flags, log)
	if err != nil {
		return nil, nil, err
	}

	opts, err := SessionOptions(cfg, flags, dir, log, m)
	if err != nil {
		closeDir()
		return nil, nil, err
	}

	sess, err := session.New(opts)
	if err != nil {
		closeDir()
		return nil, nil, err
	}

	return sess, func() {
		sess.Close()
		closeDir()
	}, nil
}
