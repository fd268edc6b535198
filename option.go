package grove

import (
	"github.com/grovekit/grove/policy"
	"github.com/grovekit/grove/service/approval"
	"github.com/grovekit/grove/service/event"
	"github.com/grovekit/grove/service/executor"
	"github.com/grovekit/grove/service/store"
	"github.com/grovekit/grove/tracing"
	"github.com/viant/afs/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the grove service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithStore sets the output store implementation.
func WithStore(svc store.Service) Option {
	return func(s *Service) { s.store = svc }
}

// WithApprovalService sets the approval service.
func WithApprovalService(svc approval.Service) Option {
	return func(s *Service) { s.approvals = svc }
}

// WithEventService sets the lifecycle event service.
func WithEventService(svc *event.Service) Option {
	return func(s *Service) { s.events = svc }
}

// WithExecutors registers additional executors on top of the built-ins.
func WithExecutors(executors ...executor.Executor) Option {
	return func(s *Service) { s.extensions = append(s.extensions, executors...) }
}

// WithPolicy sets the runtime policy applied to every started run,
// overriding any declarative policy carried by the configuration.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithBaseURL sets the base URL workflow definitions are loaded from.
func WithBaseURL(url string) Option {
	return func(s *Service) { s.baseURL = url }
}

// WithFsOptions sets file system options used when loading definitions,
// for example an embed.FS.
func WithFsOptions(options ...storage.Option) Option {
	return func(s *Service) { s.fsOptions = options }
}

// WithTracing configures OpenTelemetry tracing for the service. If
// outputFile is empty the stdout exporter is used; otherwise traces are
// written to the supplied file path. Safe to call multiple times; the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, enabling integrations with exporters other than the
// built-in stdout one, for example OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
