// Package notify pushes operational alerts (fills, exits, risk halts) to
// chat channels. Senders are fan-out: one failing channel never blocks the
// others.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// Event types an operator can subscribe to.
const (
	EventTrade    = "trade"
	EventExit     = "exit"
	EventRiskHalt = "risk_halt"
	EventError    = "error"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to every configured sender, filtered by event
// type. An empty event list means everything is delivered.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders, forwarding only the
// listed event types (all types when events is empty).
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// TradeOpened announces a placed or filled entry order.
func (n *Notifier) TradeOpened(ctx context.Context, res domain.ExecutionResult, bucketLabel string) {
	n.notify(ctx, EventTrade, "Trade opened", fmt.Sprintf(
		"%s %s @ %.3f for $%.2f (%s)",
		res.Side, bucketLabel, res.Price, res.SizeUSD, res.Status,
	))
}

// PositionExited announces a closed position with its reason.
func (n *Notifier) PositionExited(ctx context.Context, exit domain.ExitSignal) {
	n.notify(ctx, EventExit, "Position exited", fmt.Sprintf(
		"%s %s entry %.3f now %.3f: %s",
		exit.Position.Side, exit.Position.BucketLabel,
		exit.Position.AvgPrice, exit.CurrentPrice, exit.Reason,
	))
}

// RiskHalted announces that trading is paused by the risk engine.
func (n *Notifier) RiskHalted(ctx context.Context, reason string) {
	n.notify(ctx, EventRiskHalt, "Trading halted", reason)
}

// CycleError announces a failed trading cycle.
func (n *Notifier) CycleError(ctx context.Context, err error) {
	n.notify(ctx, EventError, "Cycle failed", err.Error())
}

func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		return
	}
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "notification failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.Any("error", err),
			)
		}
	}
}
