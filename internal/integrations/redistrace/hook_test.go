package redistrace

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apmtrace/internal/metrics"
	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

func newTxn(recorder *metrics.Recorder) (*tracing.Transaction, context.Context) {
	txn := tracing.New(tracing.DefaultConfig(), tracing.WithAggregator(recorder)).StartTransaction("worker", false)
	return txn, tracing.NewContext(context.Background(), txn)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		opts     *redis.Options
		wantHost string
		wantPort string
		wantDB   string
	}{
		{"tcp", &redis.Options{Addr: "cache.internal:6380", DB: 2}, "cache.internal", "6380", "2"},
		{"unix", &redis.Options{Network: "unix", Addr: "/var/run/redis.sock"}, "localhost", "/var/run/redis.sock", "0"},
		{"empty host", &redis.Options{Addr: ":6379"}, "localhost", "6379", "0"},
		{"nil", nil, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.opts)
			assert.Equal(t, tt.wantHost, h.host)
			assert.Equal(t, tt.wantPort, h.portPathOrID)
			assert.Equal(t, tt.wantDB, h.database)
		})
	}
}

func TestProcessHookRecordsCommand(t *testing.T) {
	recorder := &metrics.Recorder{}
	_, ctx := newTxn(recorder)
	h := New(&redis.Options{Addr: "cache.internal:6379"})

	called := false
	process := h.ProcessHook(func(ctx context.Context, cmd redis.Cmder) error {
		called = true
		return nil
	})
	require.NoError(t, process(ctx, redis.NewStringCmd(ctx, "get", "user:1")))

	assert.True(t, called)
	assert.Equal(t, []string{
		"Datastore/operation/Redis/get",
		"Datastore/instance/Redis/cache.internal:6379",
		"Datastore/Redis/allOther",
		"Datastore/Redis/all",
		"Datastore/allOther",
		"Datastore/all",
	}, recorder.Names())
}

func TestProcessHookPropagatesError(t *testing.T) {
	recorder := &metrics.Recorder{}
	_, ctx := newTxn(recorder)
	boom := errors.New("connection refused")

	process := New(&redis.Options{Addr: "localhost:6379"}).ProcessHook(func(context.Context, redis.Cmder) error {
		return boom
	})
	assert.ErrorIs(t, process(ctx, redis.NewStatusCmd(ctx, "set", "k", "v")), boom)
	assert.Contains(t, recorder.Names(), "Datastore/operation/Redis/set")
}

func TestProcessHookWithoutTransaction(t *testing.T) {
	process := New(nil).ProcessHook(func(context.Context, redis.Cmder) error { return nil })
	assert.NoError(t, process(context.Background(), redis.NewStringCmd(context.Background(), "get", "k")))
}

func TestProcessPipelineHook(t *testing.T) {
	recorder := &metrics.Recorder{}
	_, ctx := newTxn(recorder)

	pipeline := New(&redis.Options{Addr: "localhost:6379"}).ProcessPipelineHook(func(context.Context, []redis.Cmder) error {
		return nil
	})
	cmds := []redis.Cmder{
		redis.NewStatusCmd(ctx, "set", "a", "1"),
		redis.NewIntCmd(ctx, "incr", "b"),
		redis.NewStatusCmd(ctx, "set", "c", "3"),
	}
	require.NoError(t, pipeline(ctx, cmds))
	assert.Equal(t, "Datastore/operation/Redis/pipeline:set,incr", recorder.Names()[0])
}

func TestSegmentParams(t *testing.T) {
	recorder := &metrics.Recorder{}
	txn, ctx := newTxn(recorder)
	parent := txn.StartSegment("handler")

	process := New(&redis.Options{Addr: "cache.internal:6379", DB: 3}).ProcessHook(func(context.Context, redis.Cmder) error {
		return nil
	})
	require.NoError(t, process(ctx, redis.NewStringCmd(ctx, "get", "k")))

	require.Len(t, parent.Children(), 1)
	child := parent.Children()[0]
	host, _ := child.Param("host")
	db, _ := child.Param("database_name")
	assert.Equal(t, "cache.internal", host)
	assert.Equal(t, "3", db)
}
