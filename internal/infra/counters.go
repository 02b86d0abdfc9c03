package infra

import "sync/atomic"

// Counters provides lightweight observability without external
// dependencies. Uses atomic operations for thread-safety; one instance
// is built in bootstrap and injected where needed.
type Counters struct {
	requestsTotal atomic.Uint64
	tradesBooked  atomic.Uint64
	errorsTotal   atomic.Uint64

	latencySumNs atomic.Int64
	latencyCount atomic.Uint64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordRequest records one served request with its latency.
func (c *Counters) RecordRequest(latencyNs int64) {
	c.requestsTotal.Add(1)
	c.latencySumNs.Add(latencyNs)
	c.latencyCount.Add(1)
}

// RecordTradesBooked records trades emitted by a reconciliation run.
func (c *Counters) RecordTradesBooked(n int) {
	if n > 0 {
		c.tradesBooked.Add(uint64(n))
	}
}

// RecordError records an error response.
func (c *Counters) RecordError() {
	c.errorsTotal.Add(1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	RequestsTotal uint64 `json:"requests_total"`
	TradesBooked  uint64 `json:"trades_booked"`
	ErrorsTotal   uint64 `json:"errors_total"`
	AvgLatencyNs  int64  `json:"avg_latency_ns"`
}

// Read returns a consistent-enough snapshot for reporting.
func (c *Counters) Read() Snapshot {
	snap := Snapshot{
		RequestsTotal: c.requestsTotal.Load(),
		TradesBooked:  c.tradesBooked.Load(),
		ErrorsTotal:   c.errorsTotal.Load(),
	}
	if count := c.latencyCount.Load(); count > 0 {
		snap.AvgLatencyNs = c.latencySumNs.Load() / int64(count)
	}
	return snap
}
