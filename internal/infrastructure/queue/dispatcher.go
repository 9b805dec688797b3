package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicalcenter/clinic-system/internal/api/metrics"
	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	drainTimeout   = 5 * time.Second
)

// Dispatcher routes audit events to a fixed set of workers using consistent
// hashing on the username, preserving per-user event ordering.
type Dispatcher struct {
	workers []chan domain.AuditEvent
	service ports.AuditService
	log     zerolog.Logger
	wg      sync.WaitGroup
}

var _ ports.AuditSink = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.AuditService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled,
// after flushing what is already buffered.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands ev to the worker responsible for its username. It never
// blocks: when the shard is full the event is dropped and counted.
func (d *Dispatcher) Enqueue(ev domain.AuditEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	idx := d.shardIndex(ev.Username)
	select {
	case d.workers[idx] <- ev:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.AuditEventsTotal.WithLabelValues(string(ev.Type), "dropped").Inc()
		d.log.Warn().
			Str("type", string(ev.Type)).
			Str("username", ev.Username).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuditEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx), id, ch)
			return
		case ev := <-ch:
			metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			if ctx.Err() != nil {
				// Cancelled while the receive won the select.
				drainCtx := context.WithoutCancel(ctx)
				d.record(drainCtx, id, ev)
				d.drain(drainCtx, id, ch)
				return
			}
			d.record(ctx, id, ev)
		}
	}
}

// drain records whatever is still buffered, bounded by drainTimeout.
func (d *Dispatcher) drain(ctx context.Context, id int, ch <-chan domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	for {
		select {
		case ev := <-ch:
			d.record(ctx, id, ev)
		default:
			metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(0)
			return
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, id int, ev domain.AuditEvent) {
	if err := d.service.Record(ctx, ev); err != nil {
		metrics.AuditEventsTotal.WithLabelValues(string(ev.Type), "failed").Inc()
		d.log.Error().Err(err).
			Str("type", string(ev.Type)).
			Str("username", ev.Username).
			Int("worker_id", id).
			Msg("audit event recording failed")
		return
	}
	metrics.AuditEventsTotal.WithLabelValues(string(ev.Type), "stored").Inc()
}
