// Package notification delivers signal alerts to external channels
// (Telegram, webhooks) and to the log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertSignal   AlertLevel = "SIGNAL"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent. Signal and Evaluation are
// set for trade alerts and nil for operational ones.
type Alert struct {
	Level      AlertLevel        `json:"level"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Signal     *model.Signal     `json:"signal,omitempty"`
	Evaluation *model.Evaluation `json:"evaluation,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// SignalAlert formats a CALL/PUT signal together with the evaluation that
// produced it.
func SignalAlert(sig model.Signal, ev model.Evaluation) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s on %s (%ds)\n", sig.Decision, sig.Instrument, ev.TS.UTC().Format("15:04"), sig.Timeframe)
	fmt.Fprintf(&b, "Effectiveness: %.1f%% (threshold %.0f%%)\n", sig.Effectiveness, ev.Threshold)
	fmt.Fprintf(&b, "Entry: %.5f, expires %s\n", sig.EntryPrice, sig.ExpiryTS.UTC().Format("15:04"))
	for _, c := range ev.Breakdown.Components {
		if c.Available {
			fmt.Fprintf(&b, "%s: %.0f %s\n", c.Name, c.Effectiveness, c.Direction)
		}
	}
	if len(sig.Patterns) > 0 {
		fmt.Fprintf(&b, "Patterns: %s", strings.Join(sig.Patterns, ", "))
	}
	return Alert{
		Level:      AlertSignal,
		Title:      fmt.Sprintf("%s %s", sig.Decision, sig.Instrument),
		Message:    strings.TrimRight(b.String(), "\n"),
		Signal:     &sig,
		Evaluation: &ev,
	}
}

// LogNotifier writes alerts to the structured log (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	slog.Info("[notify] alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi fans an alert out to every notifier. All notifiers are tried; the
// errors of the failing ones are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
