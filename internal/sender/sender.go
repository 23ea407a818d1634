// Package sender hands rendered messages to a transport. Delivery is
// at-least-once; transports dedupe on OutboundMessage.IdempotencyKey.
package sender

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

type Sender interface {
	Send(ctx context.Context, msg model.OutboundMessage) error
}

// Func adapts a plain function to Sender.
type Func func(ctx context.Context, msg model.OutboundMessage) error

func (f Func) Send(ctx context.Context, msg model.OutboundMessage) error { return f(ctx, msg) }

// MockSender simulates a transport that succeeds with probability 1-FailureRate.
// It records every message it accepted.
type MockSender struct {
	FailureRate float64
	Rand        func() float64

	mu   sync.Mutex
	sent []model.OutboundMessage
}

func NewMockSender(failureRate float64) *MockSender {
	return &MockSender{FailureRate: failureRate, Rand: rand.Float64}
}

func (m *MockSender) Send(ctx context.Context, msg model.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := m.Rand
	if r == nil {
		r = rand.Float64
	}
	if r() < m.FailureRate {
		return fmt.Errorf("mock sending failed for lead %d", msg.LeadID)
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of the accepted messages in order.
func (m *MockSender) Sent() []model.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OutboundMessage(nil), m.sent...)
}

var (
	_ Sender = Func(nil)
	_ Sender = (*MockSender)(nil)
)
