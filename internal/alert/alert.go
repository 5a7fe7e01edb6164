// Package alert raises operator-facing alerts for suspicious payments and
// systemic fulfillment failures. The Kafka publisher feeds the ops topic;
// the log alerter is the fallback when no broker is configured.
package alert

import (
	"context"
	"log/slog"
	"time"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one alert. Kind is a stable machine-readable tag
// ("suspicious_payment", "breaker_tripped", ...).
type Event struct {
	Severity Severity  `json:"severity"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
	OrderID  string    `json:"order_id,omitempty"`
	At       time.Time `json:"at"`
}

type Alerter interface {
	Alert(ctx context.Context, e Event) error
}

// LogAlerter writes alerts to the process log. Used when Kafka is not
// configured and in tests.
type LogAlerter struct{}

func (LogAlerter) Alert(_ context.Context, e Event) error {
	if e.Severity == SeverityCritical {
		slog.Error("ALERT", "kind", e.Kind, "message", e.Message, "order_id", e.OrderID)
	} else {
		slog.Warn("ALERT", "kind", e.Kind, "message", e.Message, "order_id", e.OrderID)
	}
	return nil
}
