package core

import (
	"context"
	"time"

	"growcore/internal/sim"
	"growcore/pkg/domain"
)

// Logger is the minimal structured logging contract accepted by the service.
// Arguments are alternating key/value pairs, matching slog conventions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder receives timing and outcome observations for service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditCategory groups audit entries by the subsystem that emitted them.
type AuditCategory string

const (
	AuditSimulation    AuditCategory = "simulation"
	AuditEnvironmental AuditCategory = "environmental"
	AuditContamination AuditCategory = "contamination"
	AuditLoop          AuditCategory = "loop"
)

// AuditStatus marks an audit entry as a successful or failed operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry is one structured event emitted by the service.
type AuditEntry struct {
	Category  AuditCategory     `json:"category"`
	Operation string            `json:"operation"`
	Status    AuditStatus       `json:"status"`
	Entity    EntityType        `json:"entity,omitempty"`
	Action    Action            `json:"action,omitempty"`
	EntityID  string            `json:"entity_id,omitempty"`
	Message   string            `json:"message,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Duration  time.Duration     `json:"duration_ns,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditRecorder receives audit entries. Implementations must tolerate
// concurrent calls.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function's current time.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type serviceOptions struct {
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	catalog *sim.SpeciesCatalog
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		clock:   systemClock{},
		catalog: sim.DefaultCatalog(),
	}
}

// ServiceOption customizes service construction.
type ServiceOption func(*serviceOptions)

// WithLogger overrides the default no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder wires an audit sink for service operations.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder wires a metrics sink for service operations.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer wires a tracer for service operations.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClock overrides the wall clock, used by tests for fixed timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSpeciesCatalog replaces the default species/stage target catalog.
func WithSpeciesCatalog(catalog *sim.SpeciesCatalog) ServiceOption {
	return func(o *serviceOptions) {
		if catalog != nil {
			o.catalog = catalog
		}
	}
}

type auditOperation struct {
	category AuditCategory
	entity   EntityType
	action   Action
}

// auditMetadata maps registry operations to audit classification. Operations
// absent from the map produce no registry-level audit entry.
var auditMetadata = map[string]auditOperation{
	"create_scenario": {category: AuditSimulation, entity: EntityScenario, action: domain.ActionCreate},
	"update_scenario": {category: AuditSimulation, entity: EntityScenario, action: domain.ActionUpdate},
	"delete_scenario": {category: AuditSimulation, entity: EntityScenario, action: domain.ActionDelete},
	"run_simulation":  {category: AuditSimulation, entity: EntityReport, action: domain.ActionCreate},
}
