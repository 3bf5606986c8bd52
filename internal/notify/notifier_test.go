package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

type fakeSender struct {
	name string
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.sent = append(f.sent, title+": "+message)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFansOut(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, nil, discard())

	n.RiskHalted(context.Background(), "daily loss at limit")

	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
	assert.Contains(t, a.sent[0], "daily loss at limit")
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventRiskHalt}, discard())

	n.TradeOpened(context.Background(), domain.ExecutionResult{}, "45-49")
	assert.Empty(t, s.sent)

	n.RiskHalted(context.Background(), "halted")
	assert.Len(t, s.sent, 1)
}

func TestNotifierSenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("webhook 404")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	n.PositionExited(context.Background(), domain.ExitSignal{
		Position: domain.Position{Side: domain.SideYes, BucketLabel: "45-49", AvgPrice: 0.4},
		Reason:   "edge reversed",
	})

	assert.Len(t, good.sent, 1)
	assert.Contains(t, good.sent[0], "edge reversed")
}
