package http

import (
	"sync"

	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

// TraceBuffer keeps the most recent finished traces. It implements
// tracing.TraceSampler.
type TraceBuffer struct {
	mu     sync.Mutex
	traces []*tracing.Trace
	next   int
	full   bool
}

// NewTraceBuffer creates a buffer holding up to size traces.
func NewTraceBuffer(size int) *TraceBuffer {
	if size < 1 {
		size = 1
	}
	return &TraceBuffer{traces: make([]*tracing.Trace, size)}
}

// TransactionFinished implements tracing.TraceSampler.
func (b *TraceBuffer) TransactionFinished(tr *tracing.Trace) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.traces[b.next] = tr
	b.next = (b.next + 1) % len(b.traces)
	if b.next == 0 {
		b.full = true
	}
}

// Recent returns the buffered traces, newest first.
func (b *TraceBuffer) Recent() []*tracing.Trace {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.next
	if b.full {
		n = len(b.traces)
	}
	out := make([]*tracing.Trace, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, b.traces[(b.next-i+len(b.traces))%len(b.traces)])
	}
	return out
}
