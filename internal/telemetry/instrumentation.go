package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// Instrumentation names understood by the bundle.
const (
	InstrumentationHTTP = "http"
	InstrumentationGRPC = "grpc"
	InstrumentationFS   = "fs"
)

// GRPCInstrumentation traces outgoing gRPC calls (Firestore, Pub/Sub). It has to be
// enabled before any gRPC client is constructed, since clients capture their dial
// options at construction time.
type GRPCInstrumentation struct {
	handler stats.Handler
}

// NewGRPCInstrumentation returns a disabled gRPC instrumentation.
func NewGRPCInstrumentation() *GRPCInstrumentation {
	return &GRPCInstrumentation{}
}

// Enable builds the client stats handler. The handler resolves the global tracer
// provider lazily, so it picks up the SDK started afterwards.
func (g *GRPCInstrumentation) Enable() {
	if g.handler == nil {
		g.handler = otelgrpc.NewClientHandler()
	}
}

// Enabled reports whether Enable has been called.
func (g *GRPCInstrumentation) Enabled() bool {
	return g != nil && g.handler != nil
}

// ClientOptions returns the Google API client options that attach the stats handler.
func (g *GRPCInstrumentation) ClientOptions() []option.ClientOption {
	if !g.Enabled() {
		return nil
	}
	return []option.ClientOption{
		option.WithGRPCDialOption(grpc.WithStatsHandler(g.handler)),
	}
}

// Instrumentations is the automatic-instrumentation bundle applied to the process.
type Instrumentations struct {
	Disabled map[string]bool
}

// DefaultInstrumentations skips gRPC, which GRPCInstrumentation already covers, and
// filesystem instrumentation, which only adds noise.
func DefaultInstrumentations() Instrumentations {
	return Instrumentations{
		Disabled: map[string]bool{
			InstrumentationGRPC: true,
			InstrumentationFS:   true,
		},
	}
}

// Enabled reports whether the named instrumentation is active.
func (i Instrumentations) Enabled(name string) bool {
	return !i.Disabled[name]
}

// HTTPMiddleware wraps handlers with a server span per request.
func (i Instrumentations) HTTPMiddleware(operation string) func(http.Handler) http.Handler {
	if !i.Enabled(InstrumentationHTTP) {
		return func(next http.Handler) http.Handler { return next }
	}
	return otelhttp.NewMiddleware(operation)
}
