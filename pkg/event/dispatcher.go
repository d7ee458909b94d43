package event

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/kookworks/kgate/pkg/telemetry"
)

// DefaultDedupCapacity is the number of recently seen event identities the
// dispatcher remembers. Redeliveries after a resume arrive close to the
// original, so a shallow window is enough.
const DefaultDedupCapacity = 4096

// Handler receives one dispatched payload. The concrete payload type follows
// the event name: *MessageEvent for message.*, *NoticeEvent for notice.*.
type Handler func(ctx context.Context, payload any)

// Dispatcher fans decoded events out to listeners registered on hierarchical
// names. Emitting "message.channel" fires listeners on "message.channel"
// first, then on "message". Registration is safe from any goroutine;
// emission happens on the session loop.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	seen   *dedupRing
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher with the given dedup window capacity;
// capacity <= 0 selects DefaultDedupCapacity.
func NewDispatcher(capacity int, logger *slog.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		seen:     newDedupRing(capacity),
		logger:   logger,
	}
}

// On registers a handler for an event name or any of its prefixes.
func (d *Dispatcher) On(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

// Emit dispatches payload to every listener on name and each of its dotted
// prefixes, most specific first. Each registered handler runs exactly once
// per emission.
func (d *Dispatcher) Emit(ctx context.Context, name string, payload any) {
	ctx, end := telemetry.StartDispatchSpan(ctx, name)
	defer end()

	d.mu.RLock()
	var chains [][]Handler
	for n := name; n != ""; {
		if hs := d.handlers[n]; len(hs) > 0 {
			chains = append(chains, hs)
		}
		idx := strings.LastIndexByte(n, '.')
		if idx < 0 {
			break
		}
		n = n[:idx]
	}
	d.mu.RUnlock()

	for _, hs := range chains {
		for _, h := range hs {
			h(ctx, payload)
		}
	}
	telemetry.RecordDispatch(name)
}

// EmitDedup dispatches like Emit, unless id was already seen, in which case
// the emission is silently dropped. An empty id is never deduplicated.
// Reports whether the event was dispatched.
func (d *Dispatcher) EmitDedup(ctx context.Context, id, name string, payload any) bool {
	if id != "" && !d.seen.add(id) {
		d.logger.Debug("dropping duplicate event", "event_id", id, "name", name)
		telemetry.RecordDuplicate()
		return false
	}
	d.Emit(ctx, name, payload)
	return true
}

// dedupRing is a fixed-capacity recency set: adding beyond capacity evicts
// the oldest identity. The gateway may redeliver events after a reconnect or
// resume; a bounded window replaces the original design's unbounded set.
type dedupRing struct {
	ids  []string
	set  map[string]struct{}
	next int
}

func newDedupRing(capacity int) *dedupRing {
	return &dedupRing{
		ids: make([]string, capacity),
		set: make(map[string]struct{}, capacity),
	}
}

// add records id, evicting the oldest entry when full. Reports false if id
// was already present.
func (r *dedupRing) add(id string) bool {
	if _, dup := r.set[id]; dup {
		return false
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
	return true
}
