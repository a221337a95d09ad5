package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/terminally-online/warden/internal/metrics"
)

// DefaultNotificationTTL is how long a notification stays visible unless
// dismissed earlier.
const DefaultNotificationTTL = 4 * time.Second

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier holds the active notifications of a session and expires each one
// after its TTL on the injected clock.
type Notifier struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	ttl     time.Duration
	active  []Notification
	timers  map[string]clockwork.Timer
	subs    map[int]chan Notification
	nextSub int
	closed  bool
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewNotifier(clock clockwork.Clock, ttl time.Duration, m *metrics.Metrics, log zerolog.Logger) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{
		clock:   clock,
		ttl:     ttl,
		timers:  make(map[string]clockwork.Timer),
		subs:    make(map[int]chan Notification),
		metrics: m,
		log:     log.With().Str("component", "notifier").Logger(),
	}
}

// Notify records a notification, schedules its dismissal and hands a copy to
// every subscriber. Subscribers that are not keeping up miss the event.
func (n *Notifier) Notify(severity Severity, message string) Notification {
	note := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: n.clock.Now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return note
	}

	n.active = append(n.active, note)
	id := note.ID
	n.timers[id] = n.clock.AfterFunc(n.ttl, func() { n.expire(id) })

	for key, ch := range n.subs {
		select {
		case ch <- note:
		default:
			n.log.Debug().Int("subscriber", key).Str("notification_id", id).Msg("subscriber full, notification dropped")
		}
	}

	n.metrics.ObserveNotification(string(severity))
	return note
}

// Dismiss removes a notification before its TTL runs out. It reports whether
// the notification was still active.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if t, ok := n.timers[id]; ok {
		t.Stop()
	}
	return n.remove(id)
}

func (n *Notifier) expire(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.remove(id) {
		n.log.Debug().Str("notification_id", id).Msg("notification expired")
	}
}

// remove requires n.mu.
func (n *Notifier) remove(id string) bool {
	delete(n.timers, id)
	for i, note := range n.active {
		if note.ID == id {
			n.active = append(n.active[:i], n.active[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the notifications still on display, oldest first.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, len(n.active))
	copy(out, n.active)
	return out
}

// Subscribe returns a channel receiving every notification emitted from now
// on, and a function that cancels the subscription and closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Notification, buffer)
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	key := n.nextSub
	n.nextSub++
	n.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if sub, ok := n.subs[key]; ok {
				delete(n.subs, key)
				close(sub)
			}
		})
	}
}

// Close stops all pending expiries, drops the active notifications and
// closes subscriber channels. Notify is a no-op afterwards.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true

	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	n.active = nil

	for key, ch := range n.subs {
		delete(n.subs, key)
		close(ch)
	}
}
