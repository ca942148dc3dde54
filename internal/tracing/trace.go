package tracing

import (
	"time"

	"github.com/GriffinCanCode/apmtrace/internal/shared/id"
)

// FinishedSegment is an immutable snapshot of a finished segment.
type FinishedSegment struct {
	ID        id.SegmentID
	ParentID  id.SegmentID
	Kind      Kind
	Name      string
	Start     time.Time
	End       time.Time
	Duration  time.Duration
	Exclusive time.Duration
	Forced    bool
	Params    map[string]any
	SQL       *SQLStatement
}

// Trace is the record of an ended transaction.
type Trace struct {
	GUID            string
	Name            string
	IsWeb           bool
	Start           time.Time
	End             time.Time
	Duration        time.Duration
	Synthetics      string
	CrossAppCaller  bool
	Inbound         *InboundCAT
	IntegrityErrors int
	Segments        []FinishedSegment // in start order
}

// TraceSampler receives every ended, non-ignored transaction.
type TraceSampler interface {
	TransactionFinished(trace *Trace)
}

func (txn *Transaction) trace() *Trace {
	tr := &Trace{
		GUID:            txn.guid.String(),
		Name:            txn.MetricName(),
		IsWeb:           txn.isWeb,
		Start:           txn.start,
		End:             txn.end,
		Duration:        txn.end.Sub(txn.start),
		Synthetics:      txn.synthetics,
		CrossAppCaller:  txn.crossAppCaller,
		IntegrityErrors: txn.integrityErrors,
		Segments:        make([]FinishedSegment, 0, len(txn.segments)),
	}
	if txn.inbound != nil {
		in := *txn.inbound
		tr.Inbound = &in
	}
	for _, s := range txn.segments {
		if s.state != StateFinished {
			continue
		}
		fs := FinishedSegment{
			ID:        s.id,
			Kind:      s.kind,
			Name:      s.name,
			Start:     s.start,
			End:       s.end,
			Duration:  s.duration,
			Exclusive: s.exclusive,
			Forced:    s.forced,
			Params:    s.Params(),
		}
		if s.parent != nil {
			fs.ParentID = s.parent.id
		}
		if s.kind == KindDatastore {
			fs.SQL = s.datastore.sql
		}
		tr.Segments = append(tr.Segments, fs)
	}
	return tr
}

// TraceSamplers fans a finished trace out to several samplers in order.
type TraceSamplers []TraceSampler

// TransactionFinished implements TraceSampler.
func (ts TraceSamplers) TransactionFinished(trace *Trace) {
	for _, s := range ts {
		if s != nil {
			s.TransactionFinished(trace)
		}
	}
}
