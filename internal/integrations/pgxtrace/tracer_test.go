package pgxtrace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

type sampler struct{ samples []tracing.SQLSample }

func (s *sampler) NoticeSQL(in tracing.SQLSample) { s.samples = append(s.samples, in) }

type fakeRows struct {
	columns []string
	rows    [][]any
	i       int
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		out[i].Name = c
	}
	return out
}
func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.rows)
}
func (r *fakeRows) Scan(...any) error { return errors.New("not supported") }
func (r *fakeRows) Values() ([]any, error) { return r.rows[r.i-1], nil }
func (r *fakeRows) RawValues() [][]byte { return nil }
func (r *fakeRows) Conn() *pgx.Conn { return nil }

type fakeQuerier struct {
	queries []string
	err     error
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.queries = append(q.queries, sql)
	if q.err != nil {
		return nil, q.err
	}
	return &fakeRows{
		columns: []string{"QUERY PLAN"},
		rows:    [][]any{{"Seq Scan on users  (cost=0.00..1.01 rows=1 width=4)"}},
	}, nil
}

func setup() (*metrics.Recorder, *sampler, context.Context) {
	recorder := &metrics.Recorder{}
	s := &sampler{}
	tracer := tracing.New(tracing.DefaultConfig(), tracing.WithAggregator(recorder), tracing.WithSQLSampler(s))
	txn := tracer.StartTransaction("GET /users", true)
	return recorder, s, tracing.NewContext(context.Background(), txn)
}

func TestTraceQuery(t *testing.T) {
	recorder, s, ctx := setup()
	tr := &Tracer{}

	ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT id FROM users WHERE email = $1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	assert.Equal(t, []string{
		"Datastore/statement/Postgres/users/select",
		"Datastore/operation/Postgres/select",
		"Datastore/Postgres/allWeb",
		"Datastore/Postgres/all",
		"Datastore/allWeb",
		"Datastore/all",
	}, recorder.Names())

	require.Len(t, s.samples, 1)
	assert.Equal(t, "SELECT id FROM users WHERE email = $1", s.samples[0].Statement.SQL)
	assert.Equal(t, "pgx", s.samples[0].Statement.Adapter)
	assert.Equal(t, "Datastore/statement/Postgres/users/select", s.samples[0].MetricName)
	assert.False(t, s.samples[0].Statement.CanExplain())
}

func TestTraceQueryRecordsError(t *testing.T) {
	_, _, ctx := setup()
	txn := tracing.FromContext(ctx)
	parent := txn.StartSegment("handler")
	tr := &Tracer{}

	qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "DELETE FROM sessions"})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{Err: errors.New("deadlock detected")})

	require.Len(t, parent.Children(), 1)
	msg, ok := parent.Children()[0].Param("error")
	assert.True(t, ok)
	assert.Equal(t, "deadlock detected", msg)
}

func TestTraceQueryWithoutTransaction(t *testing.T) {
	tr := &Tracer{}
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	assert.Equal(t, context.Background(), ctx)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
}

func TestExplainer(t *testing.T) {
	_, s, ctx := setup()
	q := &fakeQuerier{}
	tr := &Tracer{Explain: q}

	qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT * FROM users"})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{})

	require.Len(t, s.samples, 1)
	stmt := s.samples[0].Statement
	require.True(t, stmt.CanExplain())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	plan, err := stmt.Explain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"QUERY PLAN"}, plan.Columns)
	assert.Len(t, plan.Rows, 1)

	_, err = stmt.Explain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EXPLAIN SELECT * FROM users"}, q.queries, "plan is cached")
}

func TestExplain(t *testing.T) {
	ctx := context.Background()

	_, err := Explain(ctx, &fakeQuerier{}, "SELECT * FROM users WHERE id = $1")
	assert.ErrorIs(t, err, ErrNotExplainable)

	boom := errors.New("permission denied")
	_, err = Explain(ctx, &fakeQuerier{err: boom}, "SELECT 1")
	assert.ErrorIs(t, err, boom)
}
