// Package middleware connects the tracer to gin and gRPC.
//
// Gin and the gRPC server interceptors open one web transaction per request,
// accept CAT request headers from trusted callers and answer with the App-Data
// header. The gRPC client interceptor times outbound calls as external request
// segments of the transaction carried in the call's context.
package middleware
