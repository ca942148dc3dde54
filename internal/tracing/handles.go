package tracing

import (
	"time"

	"github.com/GriffinCanCode/apmtrace/internal/shared/id"
)

// The wrappers re-declare the embedded Segment's methods so a nil
// *DatastoreSegment or *ExternalRequestSegment, as returned when no
// transaction is in scope, is safe to use.

func (d *DatastoreSegment) segment() *Segment {
	if d == nil {
		return nil
	}
	return d.Segment
}

func (d *DatastoreSegment) ID() id.SegmentID                 { return d.segment().ID() }
func (d *DatastoreSegment) Kind() Kind                       { return d.segment().Kind() }
func (d *DatastoreSegment) Name() string                     { return d.segment().Name() }
func (d *DatastoreSegment) State() State                     { return d.segment().State() }
func (d *DatastoreSegment) Transaction() *Transaction        { return d.segment().Transaction() }
func (d *DatastoreSegment) Parent() *Segment                 { return d.segment().Parent() }
func (d *DatastoreSegment) Children() []*Segment             { return d.segment().Children() }
func (d *DatastoreSegment) StartTime() time.Time             { return d.segment().StartTime() }
func (d *DatastoreSegment) EndTime() time.Time               { return d.segment().EndTime() }
func (d *DatastoreSegment) Duration() time.Duration          { return d.segment().Duration() }
func (d *DatastoreSegment) ExclusiveDuration() time.Duration { return d.segment().ExclusiveDuration() }
func (d *DatastoreSegment) Forced() bool                     { return d.segment().Forced() }
func (d *DatastoreSegment) Param(key string) (any, bool)     { return d.segment().Param(key) }
func (d *DatastoreSegment) Params() map[string]any           { return d.segment().Params() }
func (d *DatastoreSegment) AddParam(key string, value any)   { d.segment().AddParam(key, value) }
func (d *DatastoreSegment) SetName(name string)              { d.segment().SetName(name) }
func (d *DatastoreSegment) MetricNames() []string            { return d.segment().MetricNames() }

func (e *ExternalRequestSegment) segment() *Segment {
	if e == nil {
		return nil
	}
	return e.Segment
}

func (e *ExternalRequestSegment) ID() id.SegmentID                 { return e.segment().ID() }
func (e *ExternalRequestSegment) Kind() Kind                       { return e.segment().Kind() }
func (e *ExternalRequestSegment) Name() string                     { return e.segment().Name() }
func (e *ExternalRequestSegment) State() State                     { return e.segment().State() }
func (e *ExternalRequestSegment) Transaction() *Transaction        { return e.segment().Transaction() }
func (e *ExternalRequestSegment) Parent() *Segment                 { return e.segment().Parent() }
func (e *ExternalRequestSegment) Children() []*Segment             { return e.segment().Children() }
func (e *ExternalRequestSegment) StartTime() time.Time             { return e.segment().StartTime() }
func (e *ExternalRequestSegment) EndTime() time.Time               { return e.segment().EndTime() }
func (e *ExternalRequestSegment) Duration() time.Duration          { return e.segment().Duration() }
func (e *ExternalRequestSegment) ExclusiveDuration() time.Duration { return e.segment().ExclusiveDuration() }
func (e *ExternalRequestSegment) Forced() bool                     { return e.segment().Forced() }
func (e *ExternalRequestSegment) Param(key string) (any, bool)     { return e.segment().Param(key) }
func (e *ExternalRequestSegment) Params() map[string]any           { return e.segment().Params() }
func (e *ExternalRequestSegment) AddParam(key string, value any)   { e.segment().AddParam(key, value) }
func (e *ExternalRequestSegment) SetName(name string)              { e.segment().SetName(name) }
func (e *ExternalRequestSegment) MetricNames() []string            { return e.segment().MetricNames() }
