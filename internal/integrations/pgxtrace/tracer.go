package pgxtrace

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/GriffinCanCode/apmtrace/internal/sqltrace"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

const (
	product = "Postgres"
	adapter = "pgx"
)

// ErrNotExplainable is returned for statements that need bind parameters.
var ErrNotExplainable = errors.New("pgxtrace: statement has bind parameters")

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// Querier runs explain queries. *pgxpool.Pool and *pgx.Conn satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Tracer implements pgx.QueryTracer.
type Tracer struct {
	// Explain, when set, runs EXPLAIN for sampled statements. It must not be
	// the traced connection itself since plans are produced after the query.
	Explain Querier
}

var _ pgx.QueryTracer = (*Tracer)(nil)

type segmentKey struct{}

// TraceQueryStart starts a segment when ctx carries a transaction.
func (t *Tracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	txn := tracing.FromContext(ctx)
	if txn == nil {
		return ctx
	}

	operation, collection := sqltrace.ParseStatement(data.SQL)
	params := tracing.DatastoreParams{
		Product:    product,
		Operation:  operation,
		Collection: collection,
	}
	if conn != nil {
		cfg := conn.Config()
		params.Host = cfg.Host
		if cfg.Port != 0 {
			params.PortPathOrID = strconv.Itoa(int(cfg.Port))
		}
		params.DatabaseName = cfg.Database
	}

	seg := txn.StartDatastoreSegment(params)
	seg.NoticeSQL(data.SQL, &tracing.AdapterConfig{Adapter: adapter, DatabaseName: params.DatabaseName}, t.explainer())
	return context.WithValue(ctx, segmentKey{}, seg)
}

// TraceQueryEnd finishes the segment started for the query.
func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	seg, ok := ctx.Value(segmentKey{}).(*tracing.DatastoreSegment)
	if !ok {
		return
	}
	if data.Err != nil {
		seg.AddParam("error", data.Err.Error())
	}
	seg.Finish()
}

func (t *Tracer) explainer() tracing.Explainer {
	if t.Explain == nil {
		return nil
	}
	return func(ctx context.Context, stmt *tracing.SQLStatement) (*tracing.ExplainPlan, error) {
		return Explain(ctx, t.Explain, stmt.SQL)
	}
}

// Explain runs EXPLAIN for sql on q.
func Explain(ctx context.Context, q Querier, sql string) (*tracing.ExplainPlan, error) {
	if placeholderPattern.MatchString(sql) {
		return nil, ErrNotExplainable
	}
	rows, err := q.Query(ctx, "EXPLAIN "+sql)
	if err != nil {
		return nil, fmt.Errorf("pgxtrace: explain failed: %w", err)
	}
	defer rows.Close()

	plan := &tracing.ExplainPlan{}
	for _, fd := range rows.FieldDescriptions() {
		plan.Columns = append(plan.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("pgxtrace: failed to read plan row: %w", err)
		}
		plan.Rows = append(plan.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgxtrace: explain failed: %w", err)
	}
	return plan, nil
}
