package http

import (
	"time"

	"github.com/GriffinCanCode/apmtrace/internal/sqltrace"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

// MetricsSummary provides high-level transaction metrics.
type MetricsSummary struct {
	WebTransactions   int64   `json:"web_transactions"`
	OtherTransactions int64   `json:"other_transactions"`
	AverageWebMs      float64 `json:"average_web_ms"`
	DatastoreCalls    int64   `json:"datastore_calls"`
	ExternalCalls     int64   `json:"external_calls"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// SlowSQLView is the JSON form of a slow SQL sample.
type SlowSQLView struct {
	ID              uint32               `json:"id"`
	Query           string               `json:"query"`
	MetricName      string               `json:"metric_name"`
	TransactionName string               `json:"transaction_name"`
	TransactionGUID string               `json:"transaction_guid"`
	Instance        string               `json:"instance,omitempty"`
	Database        string               `json:"database,omitempty"`
	Count           int                  `json:"count"`
	TotalMs         float64              `json:"total_ms"`
	MinMs           float64              `json:"min_ms"`
	MaxMs           float64              `json:"max_ms"`
	Plan            *tracing.ExplainPlan `json:"explain_plan,omitempty"`
	ExplainError    string               `json:"explain_error,omitempty"`
}

// TraceView is the JSON form of a finished transaction.
type TraceView struct {
	GUID            string        `json:"guid"`
	Name            string        `json:"name"`
	Web             bool          `json:"web"`
	Start           time.Time     `json:"start"`
	DurationMs      float64       `json:"duration_ms"`
	CrossAppCaller  bool          `json:"cross_app_caller"`
	ReferringGUID   string        `json:"referring_guid,omitempty"`
	TripID          string        `json:"trip_id,omitempty"`
	IntegrityErrors int           `json:"integrity_errors"`
	Segments        []SegmentView `json:"segments"`
}

// SegmentView is the JSON form of a finished segment.
type SegmentView struct {
	ID          string         `json:"id"`
	ParentID    string         `json:"parent_id,omitempty"`
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	OffsetMs    float64        `json:"offset_ms"`
	DurationMs  float64        `json:"duration_ms"`
	ExclusiveMs float64        `json:"exclusive_ms"`
	Forced      bool           `json:"forced,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func newSlowSQLView(s sqltrace.Sample) SlowSQLView {
	return SlowSQLView{
		ID:              s.ID,
		Query:           s.Query,
		MetricName:      s.MetricName,
		TransactionName: s.TransactionName,
		TransactionGUID: s.TransactionGUID,
		Instance:        s.Instance,
		Database:        s.Database,
		Count:           s.Count,
		TotalMs:         ms(s.Total),
		MinMs:           ms(s.Min),
		MaxMs:           ms(s.Max),
		Plan:            s.Plan,
		ExplainError:    s.ExplainError,
	}
}

func newTraceView(tr *tracing.Trace) TraceView {
	v := TraceView{
		GUID:            tr.GUID,
		Name:            tr.Name,
		Web:             tr.IsWeb,
		Start:           tr.Start,
		DurationMs:      ms(tr.Duration),
		CrossAppCaller:  tr.CrossAppCaller,
		IntegrityErrors: tr.IntegrityErrors,
		Segments:        make([]SegmentView, 0, len(tr.Segments)),
	}
	if tr.Inbound != nil {
		v.ReferringGUID = tr.Inbound.ReferringGUID
		v.TripID = tr.Inbound.ReferringTripID
	}
	for _, s := range tr.Segments {
		v.Segments = append(v.Segments, SegmentView{
			ID:          s.ID.String(),
			ParentID:    s.ParentID.String(),
			Kind:        s.Kind.String(),
			Name:        s.Name,
			OffsetMs:    ms(s.Start.Sub(tr.Start)),
			DurationMs:  ms(s.Duration),
			ExclusiveMs: ms(s.Exclusive),
			Forced:      s.Forced,
			Params:      s.Params,
		})
	}
	return v
}
