package connectutil

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/pitabwire/frame/security"
	connectInterceptors "github.com/pitabwire/frame/security/interceptors/connect"
)

// readLimit caps a single inbound message, leaving room for base64 framing
// of the audio payload.
func readLimit(maxPayload int64) connect.HandlerOption {
	return connect.WithReadMaxBytes(int(maxPayload/3*4 + 64<<10))
}

// DefaultOptions returns the handler options for unauthenticated
// deployments: request logging and a message size cap derived from
// maxPayload bytes of audio.
func DefaultOptions(maxPayload int64) []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithInterceptors(NewLoggingInterceptor()),
		readLimit(maxPayload),
	}
}

// AuthenticatedOptions returns handler options with frame's security
// interceptor chain (OpenTelemetry, validation, authentication) ahead of
// the logging interceptor.
func AuthenticatedOptions(ctx context.Context, authenticator security.Authenticator, maxPayload int64) ([]connect.HandlerOption, error) {
	interceptors, err := connectInterceptors.DefaultList(ctx, authenticator)
	if err != nil {
		return nil, err
	}
	interceptors = append(interceptors, NewLoggingInterceptor())

	return []connect.HandlerOption{
		connect.WithInterceptors(interceptors...),
		readLimit(maxPayload),
	}, nil
}

// DefaultClientOptions returns the default Connect client options.
func DefaultClientOptions() []connect.ClientOption {
	return []connect.ClientOption{
		connect.WithInterceptors(NewLoggingInterceptor()),
		connect.WithSendGzip(),
	}
}

// loggingInterceptor logs procedure, duration and error for unary and
// streaming calls.
type loggingInterceptor struct{}

// NewLoggingInterceptor creates the logging interceptor.
func NewLoggingInterceptor() connect.Interceptor {
	return &loggingInterceptor{}
}

func logRPC(ctx context.Context, procedure string, streaming bool, start time.Time, err error) {
	attrs := []any{
		slog.String("procedure", procedure),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("streaming", streaming),
	}
	if err != nil {
		attrs = append(attrs, slog.String("code", connect.CodeOf(err).String()), slog.String("error", err.Error()))
		slog.WarnContext(ctx, "rpc error", attrs...)
		return
	}
	slog.DebugContext(ctx, "rpc ok", attrs...)
}

func (l *loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logRPC(ctx, req.Spec().Procedure, false, start, err)
		return resp, err
	}
}

func (l *loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		slog.DebugContext(ctx, "rpc stream client start", slog.String("procedure", spec.Procedure))
		return next(ctx, spec)
	}
}

func (l *loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		logRPC(ctx, conn.Spec().Procedure, true, start, err)
		return err
	}
}
