package redistrace

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/GriffinCanCode/apmtrace/internal/tracing"
)

const product = "Redis"

// Hook implements redis.Hook.
type Hook struct {
	host         string
	portPathOrID string
	database     string
}

var _ redis.Hook = (*Hook)(nil)

// New builds a hook describing the server opts points at. A nil opts reports
// no instance.
func New(opts *redis.Options) *Hook {
	h := &Hook{}
	if opts == nil {
		return h
	}
	if opts.Network == "unix" {
		h.host = "localhost"
		h.portPathOrID = opts.Addr
	} else if host, port, err := net.SplitHostPort(opts.Addr); err == nil {
		h.host = host
		h.portPathOrID = port
	} else {
		h.host = opts.Addr
	}
	if h.host == "" {
		h.host = "localhost"
	}
	h.database = strconv.Itoa(opts.DB)
	return h
}

// Instrument adds a hook for client's server to client.
func Instrument(client *redis.Client) {
	client.AddHook(New(client.Options()))
}

// DialHook is a pass-through; connection setup is not timed.
func (h *Hook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

// ProcessHook times a single command.
func (h *Hook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		seg := h.start(ctx, cmd.Name())
		defer seg.Finish()
		return next(ctx, cmd)
	}
}

// ProcessPipelineHook times a pipeline as one segment whose operation lists
// the pipelined commands.
func (h *Hook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		seg := h.start(ctx, pipelineOperation(cmds))
		defer seg.Finish()
		return next(ctx, cmds)
	}
}

// start returns nil when ctx carries no transaction; a nil segment is inert.
func (h *Hook) start(ctx context.Context, operation string) *tracing.DatastoreSegment {
	txn := tracing.FromContext(ctx)
	if txn == nil {
		return nil
	}
	return txn.StartDatastoreSegment(tracing.DatastoreParams{
		Product:      product,
		Operation:    operation,
		Host:         h.host,
		PortPathOrID: h.portPathOrID,
		DatabaseName: h.database,
	})
}

func pipelineOperation(cmds []redis.Cmder) string {
	names := make([]string, 0, len(cmds))
	seen := make(map[string]bool, len(cmds))
	for _, cmd := range cmds {
		name := cmd.Name()
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return "pipeline:" + strings.Join(names, ",")
}
