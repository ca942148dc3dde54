package tracing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoExplainer is returned by Explain when no explainer was attached.
var ErrNoExplainer = errors.New("tracing: statement has no explainer")

// AdapterConfig describes the database driver that issued a statement.
type AdapterConfig struct {
	Adapter      string // driver name, e.g. "pgx"
	DatabaseName string // used when the segment has none
}

// ExplainPlan is the result of an explain query.
type ExplainPlan struct {
	Columns []string
	Rows    [][]any
}

// Explainer produces an explain plan for a statement. It is invoked lazily
// and at most once per statement.
type Explainer func(ctx context.Context, stmt *SQLStatement) (*ExplainPlan, error)

// SQLStatement is raw SQL noticed on a datastore segment.
type SQLStatement struct {
	SQL          string
	Adapter      string
	InstanceID   string
	DatabaseName string

	explainer Explainer
	once      sync.Once
	plan      *ExplainPlan
	err       error
}

// CanExplain reports whether an explainer is attached.
func (s *SQLStatement) CanExplain() bool {
	return s != nil && s.explainer != nil
}

// Explain runs the explainer on first call and caches the outcome.
func (s *SQLStatement) Explain(ctx context.Context) (*ExplainPlan, error) {
	if !s.CanExplain() {
		return nil, ErrNoExplainer
	}
	s.once.Do(func() {
		s.plan, s.err = s.explainer(ctx, s)
	})
	return s.plan, s.err
}

// SQLSample is handed to the SQL sampler when a datastore segment with a
// statement finishes.
type SQLSample struct {
	Statement       *SQLStatement
	MetricName      string
	TransactionName string
	TransactionGUID string
	Duration        time.Duration
}

// SQLSampler decides which statements to keep and explain.
type SQLSampler interface {
	NoticeSQL(sample SQLSample)
}

// NoticeSQL records the statement issued by this segment. It is submitted
// for sampling when the segment finishes; a later call replaces an earlier one.
func (d *DatastoreSegment) NoticeSQL(sql string, cfg *AdapterConfig, explainer Explainer) {
	if d == nil || d.state == StateFinished || sql == "" {
		return
	}
	stmt := &SQLStatement{
		SQL:          sql,
		InstanceID:   d.InstanceID(),
		DatabaseName: d.databaseName,
		explainer:    explainer,
	}
	if cfg != nil {
		stmt.Adapter = cfg.Adapter
		if stmt.DatabaseName == "" && d.txn.tracer.cfg.Datastore.DatabaseNameReporting {
			stmt.DatabaseName = cfg.DatabaseName
		}
	}
	d.sql = stmt
}
