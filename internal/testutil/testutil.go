// Package testutil provides shared helpers for package tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a debug logger that writes through t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a logger that discards everything.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// Event is one message captured by a Recorder.
type Event struct {
	Session string
	Type    string
	Payload interface{}
}

// Recorder captures hub traffic. It satisfies the session and broadcast
// interfaces used by the library, progress and logger packages.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SendToSession(sessionID, msgType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Session: sessionID, Type: msgType, Payload: payload})
	return nil
}

func (r *Recorder) Broadcast(msgType string, payload interface{}) error {
	return r.SendToSession("", msgType, payload)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded message types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

// Count returns how many events of msgType were recorded.
func (r *Recorder) Count(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == msgType {
			n++
		}
	}
	return n
}

// WaitFor polls until at least n events of msgType are recorded or timeout elapses.
func (r *Recorder) WaitFor(msgType string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.Count(msgType) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
