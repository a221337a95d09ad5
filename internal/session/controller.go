package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/metrics"
	"github.com/terminally-online/warden/internal/provider"
)

const messageLoadFailed = "Failed to load users."

// FetchError reports a failed directory listing. The store keeps its
// previous records and the error message for display.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load directory: %s", errorMessage(e.Err, messageLoadFailed))
}

func (e *FetchError) Unwrap() error { return e.Err }

const loadKey = "directory"

// Controller drives the store through Idle, Loading, Succeeded and Failed
// using a provider listing. Concurrent loads share one listing call. The
// shared call runs detached from any single caller's context, so one caller
// giving up does not fail the load for the others.
type Controller struct {
	store   *directory.Store
	dir     provider.Directory
	group   singleflight.Group
	clock   clockwork.Clock
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu  sync.Mutex
	gen uint64
}

func NewController(store *directory.Store, dir provider.Directory, clock clockwork.Clock, m *metrics.Metrics, log zerolog.Logger) *Controller {
	return &Controller{
		store:   store,
		dir:     dir,
		clock:   clock,
		metrics: m,
		log:     log.With().Str("component", "sync_controller").Logger(),
	}
}

// Mount loads the directory the first time a view is attached. Once the
// store has left Idle it does nothing.
func (c *Controller) Mount(ctx context.Context) error {
	if c.store.Status() != directory.LoadIdle {
		return nil
	}
	return c.load(ctx, false, false)
}

// Reload fetches the directory regardless of the current load status. It is
// the retry path after a failed load. A reload requested while another load
// is running joins it.
func (c *Controller) Reload(ctx context.Context) error {
	return c.load(ctx, true, false)
}

// Reconcile fetches the directory with a listing that starts now. It never
// joins a load already in progress, since that listing may predate the
// change being reconciled. The older load's result is discarded.
func (c *Controller) Reconcile(ctx context.Context) error {
	return c.load(ctx, true, true)
}

func (c *Controller) load(ctx context.Context, explicit, fresh bool) error {
	if fresh {
		c.group.Forget(loadKey)
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(loadKey, func() (interface{}, error) {
		return nil, c.fetch(detached, explicit, fresh)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug().Msg("joined in-progress directory load")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) fetch(ctx context.Context, explicit, fresh bool) error {
	if !c.store.BeginLoad(explicit) && !fresh {
		return nil
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	start := c.clock.Now()
	users, err := c.dir.ListDirectoryUsers(ctx)
	elapsed := c.clock.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.log.Debug().Uint64("generation", gen).Msg("discarding superseded directory load")
		return nil
	}

	if err != nil {
		c.store.FailLoad(errorMessage(err, messageLoadFailed))
		c.metrics.ObserveLoad(metrics.OutcomeFailure, elapsed)
		c.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("directory load failed")
		return &FetchError{Err: err}
	}

	c.store.CompleteLoad(users)
	c.metrics.ObserveLoad(metrics.OutcomeSuccess, elapsed)
	c.log.Info().Int("users", len(users)).Dur("elapsed", elapsed).Msg("directory loaded")
	return nil
}

// errorMessage is the display text for err, or fallback when err has none.
func errorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
