package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
)

// ackRecorder stores acks and nacks by delivery tag
type ackRecorder struct {
	mu    sync.Mutex
	acked []uint64
	nack  []uint64
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nack = append(a.nack, tag)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestWorker(t *testing.T) {
	acks := &ackRecorder{}
	body, err := json.Marshal(model.OutboundMessage{IdempotencyKey: "enr-1-step-2-0", LeadID: 7, To: "+254700000001", Body: "Hi"})
	require.NoError(t, err)

	// The same message delivered twice, as after a publisher retry
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: body}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: body}
	close(deliveries)

	transport := sender.NewMockSender(0)
	worker := newConsumer(transport, lock.NewMemoryLocker(), zap.NewNop())
	require.NoError(t, worker.Run(context.Background(), deliveries))

	sent := transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 7, sent[0].LeadID)
	assert.Equal(t, []uint64{1, 2}, acks.acked)
	assert.Empty(t, acks.nack)
}
