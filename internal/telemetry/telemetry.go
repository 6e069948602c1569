// Package telemetry records structure builds and trial evaluations as a JSONL
// event stream. Each build outcome, sampled trial and database reload becomes
// one JSON object per line so runs can be audited and replayed.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindBuildStart     = "build_start"
	KindBuildDone      = "build_done"
	KindBuildFailed    = "build_failed"
	KindEvaluateStart  = "evaluate_start"
	KindTrialDone      = "trial_done"
	KindTrialRejected  = "trial_rejected"
	KindEvaluateDone   = "evaluate_done"
	KindDatabaseReload = "database_reload"
)

// Event is a single telemetry record. RunID ties the events of one
// evaluation run together; Structure names the structure they concern.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Structure string    `json:"structure,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events as JSONL. It is safe for concurrent use.
// A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	closer io.Closer
	enc    *json.Encoder
	mu     sync.Mutex
	now    func() time.Time
}

// NewEmitter creates an Emitter appending to the file at path.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{closer: f, enc: json.NewEncoder(f), now: time.Now}, nil
}

// NewWriterEmitter creates an Emitter writing to w. Close does not close w.
func NewWriterEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w), now: time.Now}
}

// Emit writes a single event. A zero Timestamp is set to the current time.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Record emits an event of kind with the current time.
func (e *Emitter) Record(kind, runID, structure string, data any) error {
	return e.Emit(Event{Kind: kind, RunID: runID, Structure: structure, Data: data})
}

// Close closes the underlying file, if the emitter owns one.
func (e *Emitter) Close() error {
	if e == nil || e.closer == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.closer.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
