package metrics

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecorderCountsRelayActivity(t *testing.T) {
	r := NewRecorder()

	r.RecordRelayInbound(5*time.Millisecond, nil)
	r.RecordRelayInbound(7*time.Millisecond, errors.New("apply failed"))
	r.RecordRelayDropped(DropStaleGame)
	r.RecordRelayDropped(DropStaleGame)

	if got := r.RelayInbound(); got != 2 {
		t.Fatalf("expected 2 inbound, got %d", got)
	}
	if got := r.RelayDropped(DropStaleGame); got != 2 {
		t.Fatalf("expected 2 drops, got %d", got)
	}
	if got := r.RelayDropped(DropAfterTeardown); got != 0 {
		t.Fatalf("expected 0 teardown drops, got %d", got)
	}
	if got := r.LastApplyLatency(); got != 7*time.Millisecond {
		t.Fatalf("expected last latency 7ms, got %v", got)
	}
}

func TestRecorderCountsMerges(t *testing.T) {
	r := NewRecorder()

	r.RecordMerge(true, time.Millisecond, nil)
	r.RecordMerge(false, time.Millisecond, nil)
	r.RecordMerge(false, time.Millisecond, errors.New("store fault"))

	total, created := r.Merges()
	if total != 3 || created != 1 {
		t.Fatalf("expected 3 total / 1 created, got %d / %d", total, created)
	}
}

func TestRecorderCountsScoreMutations(t *testing.T) {
	r := NewRecorder()
	r.RecordScoreMutation("increment")
	r.RecordScoreMutation("increment")
	r.RecordScoreMutation("decrement")

	if got := r.ScoreMutations("increment"); got != 2 {
		t.Fatalf("expected 2 increments, got %d", got)
	}
	if got := r.ScoreMutations("decrement"); got != 1 {
		t.Fatalf("expected 1 decrement, got %d", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordRelayInbound(0, nil)
	r.RecordRelayOutbound(0, nil)
	r.RecordRelayDropped("x")
	r.RecordMerge(false, 0, nil)
	r.RecordScoreMutation("increment")
	r.RecordHTTPRequest("GET", "/health", 200, 0)
	if r.RelayInbound() != 0 {
		t.Fatalf("nil recorder must report zero")
	}
}

func TestSetupDisabledReturnsNoHandler(t *testing.T) {
	rec, handler, shutdown, err := Setup(context.Background(), TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected recorder")
	}
	if handler != nil {
		t.Fatalf("expected no handler when disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupEnabledBuildsPrometheusHandler(t *testing.T) {
	rec, handler, shutdown, err := Setup(context.Background(), TelemetryConfig{Enabled: true})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer shutdown(context.Background())

	if handler == nil {
		t.Fatalf("expected prometheus handler")
	}
	rec.RecordRelayInbound(time.Millisecond, nil)
}
