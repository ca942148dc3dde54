package tracing

import (
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/shared/id"
)

// Kind identifies the segment variant.
type Kind uint8

const (
	KindCustom Kind = iota
	KindDatastore
	KindExternal
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "custom"
	case KindDatastore:
		return "datastore"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// State is a segment's lifecycle position.
type State uint8

const (
	StateCreated State = iota
	StateStarted
	StateFinished
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Segment is a timed node in a transaction's call tree. Kind-specific data
// lives in the DatastoreSegment or ExternalRequestSegment that wraps it.
type Segment struct {
	id    id.SegmentID
	kind  Kind
	name  string
	state State

	txn      *Transaction
	parent   *Segment
	children []*Segment

	start     time.Time
	end       time.Time
	duration  time.Duration
	exclusive time.Duration
	forced    bool

	params map[string]any

	datastore *DatastoreSegment
	external  *ExternalRequestSegment
}

func newSegment(txn *Transaction, kind Kind, name string) *Segment {
	return &Segment{
		id:   id.NewSegmentID(),
		kind: kind,
		name: name,
		txn:  txn,
	}
}

// ID returns the segment identifier.
func (s *Segment) ID() id.SegmentID {
	if s == nil {
		return ""
	}
	return s.id
}

// Kind returns the segment variant.
func (s *Segment) Kind() Kind {
	if s == nil {
		return KindCustom
	}
	return s.kind
}

// Name returns the current metric name. It is final once the segment finishes.
func (s *Segment) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// State returns the lifecycle state.
func (s *Segment) State() State {
	if s == nil {
		return StateCreated
	}
	return s.state
}

// Transaction returns the owning transaction.
func (s *Segment) Transaction() *Transaction {
	if s == nil {
		return nil
	}
	return s.txn
}

// Parent returns the enclosing segment, nil for a root segment.
func (s *Segment) Parent() *Segment {
	if s == nil {
		return nil
	}
	return s.parent
}

// Children returns the segments started while s was on top of the stack.
func (s *Segment) Children() []*Segment {
	if s == nil {
		return nil
	}
	return s.children
}

// StartTime returns when the segment started.
func (s *Segment) StartTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.start
}

// EndTime returns when the segment finished.
func (s *Segment) EndTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.end
}

// Duration returns end minus start. Zero until finished.
func (s *Segment) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// ExclusiveDuration returns the segment's own time, excluding children.
func (s *Segment) ExclusiveDuration() time.Duration {
	if s == nil {
		return 0
	}
	return s.exclusive
}

// Forced reports whether the tracer finished the segment on the caller's behalf.
func (s *Segment) Forced() bool {
	if s == nil {
		return false
	}
	return s.forced
}

// SetName renames a custom segment. It is ignored once finished.
func (s *Segment) SetName(name string) {
	if s == nil || s.state == StateFinished || s.kind != KindCustom {
		return
	}
	s.name = name
}

// Param returns a recorded parameter.
func (s *Segment) Param(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.params[key]
	return v, ok
}

// Params returns a copy of the parameter bag.
func (s *Segment) Params() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// AddParam records a scalar parameter. Non-scalar values are dropped.
func (s *Segment) AddParam(key string, value any) {
	if s == nil || key == "" {
		return
	}
	switch value.(type) {
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
	default:
		s.txn.log.Debug("dropping non-scalar segment parameter",
			zap.String("segment", s.name), zap.String("key", key))
		return
	}
	if s.params == nil {
		s.params = make(map[string]any)
	}
	s.params[key] = value
}

// Start records the start time and pushes s onto the transaction's stack.
func (s *Segment) Start() {
	if s == nil {
		return
	}
	txn := s.txn
	if s.state != StateCreated {
		txn.violation("start of segment that is not new", s, true)
		return
	}
	if txn.finished {
		txn.violation("start of segment on ended transaction", s, true)
		return
	}

	s.start = txn.tracer.clock.Now()
	s.state = StateStarted
	if top := txn.top(); top != nil {
		s.parent = top
		top.children = append(top.children, s)
	}
	txn.stack = append(txn.stack, s)
	txn.segments = append(txn.segments, s)
}

// Finish records the end time, derives the final name and metrics and
// reports them. Segments above s on the stack are force finished.
func (s *Segment) Finish() {
	if s == nil {
		return
	}
	txn := s.txn
	switch s.state {
	case StateCreated:
		txn.violation("finish of unstarted segment", s, true)
		return
	case StateFinished:
		txn.violation("double finish", s, true)
		return
	}

	i := txn.indexOf(s)
	if i < 0 {
		txn.violation("finish of segment missing from stack", s, true)
		return
	}
	if i != len(txn.stack)-1 {
		txn.violation("out of order finish", s, true)
		for j := len(txn.stack) - 1; j > i; j-- {
			txn.stack[j].complete(true)
		}
	}
	txn.stack = txn.stack[:i]
	s.complete(false)
}

// complete finalizes timing and name, then reports. The caller has already
// removed s from the stack.
func (s *Segment) complete(forced bool) {
	txn := s.txn
	end := txn.tracer.clock.Now()
	if end.Before(s.start) {
		end = s.start
	}
	s.end = end
	s.duration = end.Sub(s.start)
	s.exclusive = exclusiveDuration(s.duration, s.children)
	s.forced = forced

	s.onComplete()
	s.name = s.finalName()
	s.state = StateFinished

	txn.record(s.observations(txn.MetricName(), txn.isWeb))
	if s.kind == KindDatastore {
		s.datastore.submitSQL()
	}
	txn.tracer.monitor.RecordSegment(s.kind.String(), forced, s.duration)
}

func exclusiveDuration(total time.Duration, children []*Segment) time.Duration {
	var childTime time.Duration
	for _, c := range children {
		if c.state == StateFinished {
			childTime += c.duration
		}
	}
	if childTime > total {
		return 0
	}
	return total - childTime
}

func (s *Segment) onComplete() {
	switch s.kind {
	case KindDatastore:
		s.datastore.onComplete()
	case KindExternal:
		s.external.onComplete()
	}
}

func (s *Segment) finalName() string {
	switch s.kind {
	case KindDatastore:
		return s.datastore.metricName()
	case KindExternal:
		return s.external.metricName()
	default:
		return s.name
	}
}

func (s *Segment) rollups(web bool) []string {
	switch s.kind {
	case KindDatastore:
		return s.datastore.rollups(web)
	case KindExternal:
		return s.external.rollups(web)
	default:
		return nil
	}
}

// observations returns the primary metric scoped to the transaction followed
// by unscoped rollups whose exclusive time equals their duration.
func (s *Segment) observations(scope string, web bool) []metrics.Observation {
	rollups := s.rollups(web)
	obs := make([]metrics.Observation, 0, len(rollups)+1)
	obs = append(obs, metrics.Observation{
		Name:      s.name,
		Scope:     scope,
		Duration:  s.duration,
		Exclusive: s.exclusive,
	})
	for _, name := range rollups {
		obs = append(obs, metrics.Observation{
			Name:      name,
			Duration:  s.duration,
			Exclusive: s.duration,
		})
	}
	return obs
}

// MetricNames returns the primary name followed by the rollups s reports,
// computed for the current state.
func (s *Segment) MetricNames() []string {
	if s == nil {
		return nil
	}
	name := s.name
	if s.state != StateFinished {
		name = s.finalName()
	}
	return append([]string{name}, s.rollups(s.txn.isWeb)...)
}
