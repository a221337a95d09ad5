package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/metrics"
	"github.com/terminally-online/warden/internal/provider"
)

const (
	MessageBanned       = "User has been banned."
	MessageUnbanned     = "User has been unbanned."
	MessageUpdateFailed = "Failed to update user status."

	simulatedSuffix = " (simulated, demo account)"
)

var ErrMutationInFlight = errors.New("a status change for this user is already in progress")

// MutationError reports a ban or unban the provider did not confirm. The
// cache is left as it was and a reload is issued to reconcile it.
type MutationError struct {
	ID     string
	Banned bool
	Err    error
}

func (e *MutationError) Error() string {
	return errorMessage(e.Err, MessageUpdateFailed)
}

func (e *MutationError) Unwrap() error { return e.Err }

type Outcome struct {
	ID        string `json:"id"`
	Banned    bool   `json:"banned"`
	Simulated bool   `json:"simulated"`
	// Applied is false when the record vanished from the cache before the
	// confirmed status could be written back.
	Applied bool   `json:"applied"`
	Message string `json:"message"`
}

type Coordinator struct {
	store      *directory.Store
	dir        provider.Directory
	principals provider.PrincipalSource
	controller *Controller
	notifier   *Notifier
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	log        zerolog.Logger

	demoEmail       string
	simulationDelay time.Duration

	mu       sync.Mutex
	seq      uint64
	inFlight map[string]uint64
}

type CoordinatorConfig struct {
	DemoEmail       string
	SimulationDelay time.Duration
}

func NewCoordinator(
	store *directory.Store,
	dir provider.Directory,
	principals provider.PrincipalSource,
	controller *Controller,
	notifier *Notifier,
	clock clockwork.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
	cfg CoordinatorConfig,
) *Coordinator {
	return &Coordinator{
		store:           store,
		dir:             dir,
		principals:      principals,
		controller:      controller,
		notifier:        notifier,
		clock:           clock,
		metrics:         m,
		log:             log.With().Str("component", "mutation_coordinator").Logger(),
		demoEmail:       cfg.DemoEmail,
		simulationDelay: cfg.SimulationDelay,
		inFlight:        make(map[string]uint64),
	}
}

// ToggleBan asks the provider to ban or unban id and writes the confirmed
// status into the cache. A failed request leaves the cache untouched and
// triggers a full reload. The demo principal never reaches the provider.
func (c *Coordinator) ToggleBan(ctx context.Context, id string, banned bool) (Outcome, error) {
	action := actionName(banned)
	logger := c.log.With().Str("user_id", id).Str("action", action).Logger()

	if !c.mark(id) {
		c.metrics.ObserveMutation(action, metrics.OutcomeRejected)
		logger.Debug().Msg("mutation rejected, already in flight")
		return Outcome{ID: id, Banned: banned}, ErrMutationInFlight
	}
	defer c.release(id)

	if c.simulated() {
		return c.simulate(ctx, id, banned, logger)
	}

	if err := c.dir.SetBanStatus(ctx, id, banned); err != nil {
		merr := &MutationError{ID: id, Banned: banned, Err: err}
		msg := merr.Error()
		c.notifier.Notify(SeverityError, msg)
		c.metrics.ObserveMutation(action, metrics.OutcomeFailure)
		logger.Warn().Err(err).Msg("status change failed, reloading directory")

		if rerr := c.controller.Reconcile(context.WithoutCancel(ctx)); rerr != nil {
			logger.Warn().Err(rerr).Msg("reconciliation reload failed")
		}
		return Outcome{ID: id, Banned: banned, Message: msg}, merr
	}

	applied := c.store.ApplyStatusMutation(id, directory.StatusFor(banned))
	msg := successMessage(banned)
	c.notifier.Notify(SeveritySuccess, msg)
	c.metrics.ObserveMutation(action, metrics.OutcomeSuccess)
	logger.Info().Bool("applied", applied).Msg("status changed")

	return Outcome{ID: id, Banned: banned, Applied: applied, Message: msg}, nil
}

func (c *Coordinator) simulate(ctx context.Context, id string, banned bool, logger zerolog.Logger) (Outcome, error) {
	select {
	case <-c.clock.After(c.simulationDelay):
	case <-ctx.Done():
		return Outcome{ID: id, Banned: banned, Simulated: true}, ctx.Err()
	}

	msg := successMessage(banned) + simulatedSuffix
	c.notifier.Notify(SeveritySuccess, msg)
	c.metrics.ObserveMutation(actionName(banned), metrics.OutcomeSimulated)
	logger.Info().Msg("status change simulated for demo principal")

	return Outcome{ID: id, Banned: banned, Simulated: true, Message: msg}, nil
}

func (c *Coordinator) simulated() bool {
	if c.principals == nil || c.demoEmail == "" {
		return false
	}
	p := c.principals.ActingPrincipal()
	return p != nil && p.Email == c.demoEmail
}

func (c *Coordinator) mark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[id]; busy {
		return false
	}
	c.seq++
	c.inFlight[id] = c.seq
	c.metrics.SetInFlight(len(c.inFlight))
	return true
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, id)
	c.metrics.SetInFlight(len(c.inFlight))
}

func (c *Coordinator) IsInFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.inFlight[id]
	return ok
}

// InFlight lists the ids with an outstanding mutation, oldest first.
// Several ids may be in flight at once; only a repeat of the same id is refused.
func (c *Coordinator) InFlight() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.inFlight))
	for id := range c.inFlight {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return c.inFlight[ids[i]] < c.inFlight[ids[j]] })
	return ids
}

func successMessage(banned bool) string {
	if banned {
		return MessageBanned
	}
	return MessageUnbanned
}

func actionName(banned bool) string {
	if banned {
		return "ban"
	}
	return "unban"
}
