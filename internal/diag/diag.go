// Package diag provides sinks for the per-request diagnostics emitted by the
// itch.io client: a colored console log, Prometheus metrics, and an async
// wrapper that keeps slow sinks off the request path.
package diag

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/alexbotov/itchdesk/pkg/itchio"
)

// EnvToggle is the environment variable that turns console diagnostics on
const EnvToggle = "LET_ME_IN"

// Enabled reports whether console diagnostics were requested. Any non-empty
// value counts, except one that parses as false.
func Enabled() bool {
	return enabled(os.Getenv(EnvToggle))
}

func enabled(x string) bool {
	if x == "" {
		return false
	}
	if b, err := strconv.ParseBool(x); err == nil {
		return b
	}
	return true
}

// Multi fans a record out to several sinks
type Multi []itchio.DiagnosticSink

// Record implements itchio.DiagnosticSink
func (m Multi) Record(d itchio.Diagnostic) {
	for _, s := range m {
		if s != nil {
			s.Record(d)
		}
	}
}

// Async hands records to a background goroutine. When the buffer is full
// records are dropped and counted, never waited on.
type Async struct {
	next    itchio.DiagnosticSink
	records chan itchio.Diagnostic
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

// NewAsync starts a forwarding goroutine in front of next
func NewAsync(next itchio.DiagnosticSink, buffer int) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{
		next:    next,
		records: make(chan itchio.Diagnostic, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for d := range a.records {
		a.next.Record(d)
	}
}

// Record implements itchio.DiagnosticSink
func (a *Async) Record(d itchio.Diagnostic) {
	select {
	case a.records <- d:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded for lack of buffer space
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close flushes buffered records and stops the goroutine. Record must not be
// called after Close.
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.records)
	})
	<-a.done
}
