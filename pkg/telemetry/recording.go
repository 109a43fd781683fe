package telemetry

import (
	"context"
	"sync"
)

// Recording is a Sink that captures every measurement for assertions in
// tests, in place of standing up a real OpenTelemetry meter provider.
type Recording struct {
	mu       sync.Mutex
	delays   []int64
	skipped  []int64
	syncs    int
}

// NewRecording returns a Recording sink.
func NewRecording() *Recording {
	return &Recording{}
}

func (r *Recording) Start() func() {
	return func() {
		r.mu.Lock()
		r.syncs++
		r.mu.Unlock()
	}
}

func (r *Recording) RecordDelay(ctx context.Context, delayMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, delayMS)
}

func (r *Recording) DebugSkippedDelay(atTimeMS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, atTimeMS)
}

// Delays returns every recorded delay measurement, in order.
func (r *Recording) Delays() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.delays...)
}

// Skipped returns every at_time_ms value that was skipped as bogus.
func (r *Recording) Skipped() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.skipped...)
}

// SyncCount returns the number of completed Start()-returned callbacks.
func (r *Recording) SyncCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncs
}
