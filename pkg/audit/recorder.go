package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/snaplock/pkg/events"
	"github.com/platinummonkey/snaplock/pkg/observability"
)

// defaultQueueSize is the recorder's event buffer when no option overrides it.
const defaultQueueSize = 1024

// Recorder bridges the event bus to an audit backend. Its handler
// enqueues without blocking, so a slow backend never stalls lock
// operations; a single worker preserves event order in the trail.
type Recorder struct {
	dest    Logger
	backend string

	queue   chan events.Event
	done    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64

	log     *observability.Logger
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the diagnostic logger for write failures.
func WithRecorderLogger(log *observability.Logger) RecorderOption {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// WithRecorderMetrics enables Prometheus counters for audit writes.
func WithRecorderMetrics(m *observability.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithRecorderOTel enables OpenTelemetry recording for audit writes.
func WithRecorderOTel(o *observability.OTelMetrics) RecorderOption {
	return func(r *Recorder) {
		r.otel = o
	}
}

// WithRecorderQueueSize overrides the event buffer size.
func WithRecorderQueueSize(size int) RecorderOption {
	return func(r *Recorder) {
		if size > 0 {
			r.queue = make(chan events.Event, size)
		}
	}
}

// NewRecorder starts a recorder writing to dest. The backend label
// names the destination in metrics ("file", "db", "multi").
func NewRecorder(dest Logger, backend string, opts ...RecorderOption) *Recorder {
	if dest == nil {
		dest = &noOpLogger{}
	}
	if backend == "" {
		backend = "audit"
	}

	r := &Recorder{
		dest:    dest,
		backend: backend,
		queue:   make(chan events.Event, defaultQueueSize),
		done:    make(chan struct{}),
		log:     observability.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Handler returns the bus handler. It never blocks: when the queue is
// full the event is dropped and counted rather than stalling the
// publishing goroutine.
func (r *Recorder) Handler() events.Handler {
	return func(ev events.Event) error {
		if r.closed.Load() {
			return nil
		}
		select {
		case r.queue <- ev:
		default:
			r.dropped.Add(1)
		}
		return nil
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains queued events and stops the worker. The destination
// logger is not closed; the caller owns it. Unsubscribe the handler
// before calling Close, events arriving afterwards are dropped.
func (r *Recorder) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		case <-r.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case ev := <-r.queue:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ev events.Event) {
	event := FromBusEvent(ev)

	start := time.Now()
	err := r.dest.Log(context.Background(), event)
	duration := time.Since(start)

	if r.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.AuditEventsTotal.WithLabelValues(r.backend, status).Inc()
	}
	if r.otel != nil {
		r.otel.RecordAuditEvent(context.Background(), r.backend, duration, err)
	}

	if err != nil {
		r.log.WithError(err).
			WithField("event_type", string(ev.Type)).
			Error("failed to write audit event")
	}
}

// FromBusEvent converts a bus event into an audit record. The User
// field carries the acting principal: the owner for lock lifecycle
// events, the releasing or revoking user for those operations, and the
// target user for permission updates.
func FromBusEvent(ev events.Event) *AuditEvent {
	eventType := EventType(ev.Type)

	event := NewEvent(eventType, StatusOf(eventType))
	event.Timestamp = ev.Timestamp

	str := func(key string) string {
		s, _ := ev.Data[key].(string)
		return s
	}

	event.Path = str("path")
	event.Action = str("action")
	event.LockID = str("lock_id")
	event.RuleID = str("rule_id")
	event.PluginID = str("plugin_id")
	event.User = str("owner")

	switch ev.Type {
	case events.EventLockGranted:
		if shared, ok := ev.Data["shared"]; ok {
			event.Metadata["shared"] = shared
		}
	case events.EventLockDenied:
		event.Reason = str("reason")
	case events.EventLockReleased:
		event.User = str("released_by")
		event.Metadata["owner"] = str("owner")
	case events.EventLockRevoked:
		event.User = str("revoked_by")
		event.Metadata["owner"] = str("owner")
	case events.EventRuleRegistered:
		if priority, ok := ev.Data["priority"]; ok {
			event.Metadata["priority"] = priority
		}
	case events.EventPluginRegistered:
		if version := str("version"); version != "" {
			event.Metadata["version"] = version
		}
	case events.EventPermissionsUpdated:
		event.User = str("user")
		if count, ok := ev.Data["permission_count"]; ok {
			event.Metadata["permission_count"] = count
		}
	}

	return event
}
