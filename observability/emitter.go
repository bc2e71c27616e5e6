package observability

import (
	"log/slog"

	"stablevault/core/events"
	"stablevault/core/types"
	"stablevault/observability/metrics"
)

type attributed interface {
	Event() *types.Event
}

// AuditEmitter writes every vault event to the structured log. Attribute maps
// already use printable string values, so they pass through unchanged.
type AuditEmitter struct {
	logger *slog.Logger
}

// NewAuditEmitter wraps the supplied logger; a nil logger uses the default.
func NewAuditEmitter(logger *slog.Logger) *AuditEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditEmitter{logger: logger}
}

// Emit implements events.Emitter.
func (a *AuditEmitter) Emit(event events.Event) {
	if a == nil || event == nil {
		return
	}
	args := []any{slog.String("event", event.EventType())}
	if carrier, ok := event.(attributed); ok {
		if evt := carrier.Event(); evt != nil {
			for key, value := range evt.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	a.logger.Info("vault event", args...)
}

// MetricsEmitter bumps the prometheus counters for settled operations.
type MetricsEmitter struct {
	registry *metrics.VaultMetrics
}

// NewMetricsEmitter binds the emitter to the process-wide registry.
func NewMetricsEmitter() *MetricsEmitter {
	return &MetricsEmitter{registry: metrics.Vault()}
}

// Emit implements events.Emitter.
func (m *MetricsEmitter) Emit(event events.Event) {
	if m == nil || event == nil {
		return
	}
	asset := ""
	if carrier, ok := event.(attributed); ok {
		if evt := carrier.Event(); evt != nil {
			asset = evt.Attributes["asset"]
		}
	}
	switch event.EventType() {
	case events.TypeVaultDeposit:
		m.registry.ObserveDeposit(asset)
	case events.TypeVaultWithdrawal:
		m.registry.ObserveWithdrawal(asset)
	}
}
