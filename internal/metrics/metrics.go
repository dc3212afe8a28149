package metrics

import (
	"sync"
	"time"
)

// Recorder captures lightweight, in-memory metrics about sync activity and
// forwards them to OpenTelemetry instruments when telemetry is enabled.
type Recorder struct {
	mu   sync.Mutex
	otel *otelInstruments

	relayInbound     int
	relayInboundErr  int
	relayOutbound    int
	relayOutboundErr int
	relayDropped     map[string]int
	lastApplyLatency time.Duration

	merges        int
	mergesCreated int
	mergeErrors   int

	scoreMutations map[string]int
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		otel:           otel,
		relayDropped:   make(map[string]int),
		scoreMutations: make(map[string]int),
	}
}

// RecordRelayInbound tracks one applied (or failed) inbound snapshot.
func (r *Recorder) RecordRelayInbound(duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.relayInbound++
	r.lastApplyLatency = duration
	if err != nil {
		r.relayInboundErr++
	}
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordRelayInbound(duration, err)
	}
}

// RecordRelayOutbound tracks one broadcast attempt.
func (r *Recorder) RecordRelayOutbound(duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.relayOutbound++
	if err != nil {
		r.relayOutboundErr++
	}
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordRelayOutbound(duration, err)
	}
}

// RecordRelayDropped tracks a message dropped before transmission or apply.
func (r *Recorder) RecordRelayDropped(reason string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.relayDropped[reason]++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordRelayDropped(reason)
	}
}

// RecordMerge tracks one merge/import run.
func (r *Recorder) RecordMerge(created bool, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.merges++
	if created {
		r.mergesCreated++
	}
	if err != nil {
		r.mergeErrors++
	}
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordMerge(created, duration, err)
	}
}

// RecordScoreMutation tracks one increment/decrement applied locally.
func (r *Recorder) RecordScoreMutation(op string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.scoreMutations[op]++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordScoreMutation(op)
	}
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// RelayInbound returns the count of inbound snapshots seen.
func (r *Recorder) RelayInbound() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.relayInbound
}

// RelayDropped returns the drop count for a reason.
func (r *Recorder) RelayDropped(reason string) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.relayDropped[reason]
}

// Merges returns total and newly-created merge counts.
func (r *Recorder) Merges() (total, created int) {
	if r == nil {
		return 0, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.merges, r.mergesCreated
}

// ScoreMutations returns the count for one mutation op.
func (r *Recorder) ScoreMutations(op string) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scoreMutations[op]
}

// LastApplyLatency returns the most recent inbound apply duration.
func (r *Recorder) LastApplyLatency() time.Duration {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastApplyLatency
}
