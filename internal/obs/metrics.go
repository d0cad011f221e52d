// Package obs holds the lightweight, allocation-free counters used across
// the account actor and directory, plus a trace-id generator, grounded on the
// teacher's internal/obs package (atomic counters + latency histograms
// behind a Snapshot() call, no external metrics backend wired in-process).
package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects per-process counters for the account/directory
// subsystem. All fields are updated with atomics so a single Metrics value
// can be shared across every AccountActor goroutine.
type Metrics struct {
	ordersPlaced      uint64
	ordersAccepted    uint64
	ordersRejected    uint64
	ordersCancelled   uint64
	ordersExpired     uint64
	forcedCancels     uint64
	validationFailed  uint64
	storeFailures     uint64
	mailboxDrops      uint64
	actorsSpawned     uint64
	wsSnapshotsSent   uint64
	wsDiffsSent       uint64

	placementLatency LatencyStats
	validationLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	OrdersPlaced      uint64
	OrdersAccepted    uint64
	OrdersRejected    uint64
	OrdersCancelled   uint64
	OrdersExpired     uint64
	ForcedCancels     uint64
	ValidationFailed  uint64
	StoreFailures     uint64
	MailboxDrops      uint64
	ActorsSpawned     uint64
	WsSnapshotsSent   uint64
	WsDiffsSent       uint64
	PlacementLatency  LatencySnapshot
	ValidationLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncOrdersPlaced()     { atomicInc(m, func(m *Metrics) *uint64 { return &m.ordersPlaced }) }
func (m *Metrics) IncOrdersAccepted()   { atomicInc(m, func(m *Metrics) *uint64 { return &m.ordersAccepted }) }
func (m *Metrics) IncOrdersRejected()   { atomicInc(m, func(m *Metrics) *uint64 { return &m.ordersRejected }) }
func (m *Metrics) IncOrdersCancelled()  { atomicInc(m, func(m *Metrics) *uint64 { return &m.ordersCancelled }) }
func (m *Metrics) IncOrdersExpired()    { atomicInc(m, func(m *Metrics) *uint64 { return &m.ordersExpired }) }
func (m *Metrics) IncForcedCancels()    { atomicInc(m, func(m *Metrics) *uint64 { return &m.forcedCancels }) }
func (m *Metrics) IncValidationFailed() { atomicInc(m, func(m *Metrics) *uint64 { return &m.validationFailed }) }
func (m *Metrics) IncStoreFailures()    { atomicInc(m, func(m *Metrics) *uint64 { return &m.storeFailures }) }
func (m *Metrics) IncMailboxDrops()     { atomicInc(m, func(m *Metrics) *uint64 { return &m.mailboxDrops }) }
func (m *Metrics) IncActorsSpawned()    { atomicInc(m, func(m *Metrics) *uint64 { return &m.actorsSpawned }) }
func (m *Metrics) IncWsSnapshotsSent()  { atomicInc(m, func(m *Metrics) *uint64 { return &m.wsSnapshotsSent }) }
func (m *Metrics) IncWsDiffsSent()      { atomicInc(m, func(m *Metrics) *uint64 { return &m.wsDiffsSent }) }

// atomicInc resolves the counter only after the nil check, so Inc* on a
// nil *Metrics is a no-op.
func atomicInc(m *Metrics, field func(*Metrics) *uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(field(m), 1)
}

// ObservePlacement records a placement's end-to-end queued-to-resolved latency.
func (m *Metrics) ObservePlacement(d time.Duration) {
	if m == nil {
		return
	}
	m.placementLatency.Observe(d)
}

// ObserveValidation records a placement's validation-only latency.
func (m *Metrics) ObserveValidation(d time.Duration) {
	if m == nil {
		return
	}
	m.validationLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		OrdersPlaced:      atomic.LoadUint64(&m.ordersPlaced),
		OrdersAccepted:    atomic.LoadUint64(&m.ordersAccepted),
		OrdersRejected:    atomic.LoadUint64(&m.ordersRejected),
		OrdersCancelled:   atomic.LoadUint64(&m.ordersCancelled),
		OrdersExpired:     atomic.LoadUint64(&m.ordersExpired),
		ForcedCancels:     atomic.LoadUint64(&m.forcedCancels),
		ValidationFailed:  atomic.LoadUint64(&m.validationFailed),
		StoreFailures:     atomic.LoadUint64(&m.storeFailures),
		MailboxDrops:      atomic.LoadUint64(&m.mailboxDrops),
		ActorsSpawned:     atomic.LoadUint64(&m.actorsSpawned),
		WsSnapshotsSent:   atomic.LoadUint64(&m.wsSnapshotsSent),
		WsDiffsSent:       atomic.LoadUint64(&m.wsDiffsSent),
		PlacementLatency:  m.placementLatency.Snapshot(),
		ValidationLatency: m.validationLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
