// Package session owns the per-session directory state: the cached records,
// the load lifecycle, ban mutations and the notification stream.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/metrics"
	"github.com/terminally-online/warden/internal/provider"
)

const DefaultDemoEmail = "demo@warden.dev"

type Options struct {
	Directory  provider.Directory
	Principals provider.PrincipalSource
	Clock      clockwork.Clock
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics

	// DemoEmail is the principal whose mutations are only simulated.
	// Empty means DefaultDemoEmail.
	DemoEmail string
	// SimulationDelay is how long a simulated mutation takes.
	SimulationDelay time.Duration
	// NotificationTTL of zero means DefaultNotificationTTL.
	NotificationTTL time.Duration
}

// State is what a presentation layer renders.
type State struct {
	directory.State
	InFlight      []string       `json:"inFlight"`
	Notifications []Notification `json:"notifications"`
}

type Session struct {
	store       *directory.Store
	controller  *Controller
	coordinator *Coordinator
	notifier    *Notifier
	log         zerolog.Logger
}

func New(opts Options) (*Session, error) {
	if opts.Directory == nil {
		return nil, errors.New("session: directory provider is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.DemoEmail == "" {
		opts.DemoEmail = DefaultDemoEmail
	}
	if opts.SimulationDelay < 0 {
		opts.SimulationDelay = 0
	}

	log := opts.Logger.With().Str("session", "directory").Logger()
	store := directory.NewStore(log)
	notifier := NewNotifier(opts.Clock, opts.NotificationTTL, opts.Metrics, log)
	controller := NewController(store, opts.Directory, opts.Clock, opts.Metrics, log)
	coordinator := NewCoordinator(store, opts.Directory, opts.Principals, controller, notifier, opts.Clock, opts.Metrics, log,
		CoordinatorConfig{DemoEmail: opts.DemoEmail, SimulationDelay: opts.SimulationDelay})

	return &Session{
		store:       store,
		controller:  controller,
		coordinator: coordinator,
		notifier:    notifier,
		log:         log,
	}, nil
}

// Mount performs the automatic first load of a freshly attached view.
func (s *Session) Mount(ctx context.Context) error {
	return s.controller.Mount(ctx)
}

// LoadDirectory fetches the directory again; used for retries.
func (s *Session) LoadDirectory(ctx context.Context) error {
	return s.controller.Reload(ctx)
}

func (s *Session) SetSearchQuery(query string) {
	s.store.SetQuery(query)
}

func (s *Session) ToggleBan(ctx context.Context, id string, banned bool) (Outcome, error) {
	return s.coordinator.ToggleBan(ctx, id, banned)
}

func (s *Session) IsInFlight(id string) bool {
	return s.coordinator.IsInFlight(id)
}

func (s *Session) User(id string) (directory.User, bool) {
	return s.store.Get(id)
}

func (s *Session) Version() uint64 {
	return s.store.Version()
}

func (s *Session) State() State {
	return State{
		State:         s.store.Snapshot(),
		InFlight:      s.coordinator.InFlight(),
		Notifications: s.notifier.Active(),
	}
}

func (s *Session) Notifications() []Notification {
	return s.notifier.Active()
}

func (s *Session) Dismiss(id string) bool {
	return s.notifier.Dismiss(id)
}

func (s *Session) Subscribe(buffer int) (<-chan Notification, func()) {
	return s.notifier.Subscribe(buffer)
}

// Close tears the session down. The cache is discarded.
func (s *Session) Close() {
	s.notifier.Close()
	s.store.Reset()
	s.log.Debug().Msg("session closed")
}
