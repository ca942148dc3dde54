package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/GriffinCanCode/apmtrace/internal/tracing"
	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

const grpcLibrary = "grpc"

// mdCarrier adapts gRPC metadata. Keys are lower-cased by metadata itself.
type mdCarrier metadata.MD

func (m mdCarrier) HostHeader() string {
	return ""
}

func (m mdCarrier) SetHeader(key, value string) {
	metadata.MD(m).Set(key, value)
}

func (m mdCarrier) RemoveHeader(key string) {
	metadata.MD(m).Delete(key)
}

func (m mdCarrier) Header(key string) string {
	if vals := metadata.MD(m).Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// UnaryServerInterceptor runs every unary call inside a web transaction.
func UnaryServerInterceptor(tracer *tracing.Tracer) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		txn := startServerTransaction(ctx, tracer, info.FullMethod)
		defer txn.End()

		resp, err := handler(tracing.NewContext(ctx, txn), req)
		sendAppData(ctx, txn)
		return resp, err
	}
}

// StreamServerInterceptor runs every streaming call inside a web transaction.
func StreamServerInterceptor(tracer *tracing.Tracer) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx := ss.Context()
		txn := startServerTransaction(ctx, tracer, info.FullMethod)
		defer txn.End()

		wrapped := &tracedServerStream{
			ServerStream: ss,
			ctx:          tracing.NewContext(ctx, txn),
		}
		err := handler(srv, wrapped)
		sendAppData(ctx, txn)
		return err
	}
}

type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}

func startServerTransaction(ctx context.Context, tracer *tracing.Tracer, method string) *tracing.Transaction {
	txn := tracer.StartTransaction(strings.TrimPrefix(method, "/"), true)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		txn.AcceptInboundRequest(mdCarrier(md))
	}
	return txn
}

// sendAppData answers a trusted CAT caller. SetHeader fails outside a real
// server stream, which only loses the header.
func sendAppData(ctx context.Context, txn *tracing.Transaction) {
	value, ok := txn.ResponseAppDataHeader(-1)
	if !ok {
		return
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(strings.ToLower(cat.HeaderAppData), value))
}

// UnaryClientInterceptor times outbound unary calls as external request
// segments of the transaction in ctx.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		txn := tracing.FromContext(ctx)
		if txn == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		var target string
		if cc != nil {
			target = cc.Target()
		}
		seg := txn.StartExternalRequestSegment(grpcLibrary, grpcURI(target, method), procedure(method))
		defer seg.Finish()

		outgoing, _ := metadata.FromOutgoingContext(ctx)
		outgoing = outgoing.Copy()
		seg.AddRequestHeaders(mdCarrier(outgoing))
		ctx = metadata.NewOutgoingContext(ctx, outgoing)

		var header metadata.MD
		err := invoker(ctx, method, req, reply, cc, append(opts[:len(opts):len(opts)], grpc.Header(&header))...)
		seg.ReadResponseHeaders(mdCarrier(header))
		return err
	}
}

// grpcURI builds grpc://authority/Service/Method from a dial target such as
// "dns:///api:443" or "localhost:50051".
func grpcURI(target, method string) string {
	if i := strings.Index(target, ":///"); i >= 0 {
		target = target[i+4:]
	} else if i := strings.Index(target, "://"); i >= 0 {
		target = target[i+3:]
	}
	if target == "" {
		target = "unknown"
	}
	return "grpc://" + target + method
}

// procedure returns the method name of "/pkg.Service/Method".
func procedure(method string) string {
	if i := strings.LastIndex(method, "/"); i >= 0 && i < len(method)-1 {
		return method[i+1:]
	}
	return method
}
