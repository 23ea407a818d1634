package sender

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func TestMockSender_RecordsSuccesses(t *testing.T) {
	rolls := []float64{0.5, 0.05}
	m := NewMockSender(0.1)
	m.Rand = func() float64 {
		r := rolls[0]
		rolls = rolls[1:]
		return r
	}

	require.NoError(t, m.Send(context.Background(), model.OutboundMessage{LeadID: 1}))
	assert.Error(t, m.Send(context.Background(), model.OutboundMessage{LeadID: 2}))

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].LeadID)
}

type recordingPublisher struct {
	key string
	msg amqp.Publishing
	err error
}

func (p *recordingPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	p.key, p.msg = key, msg
	return p.err
}

func TestAMQPSender_PublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	s := &AMQPSender{Channel: pub, Queue: DefaultQueue}

	out := model.OutboundMessage{IdempotencyKey: "enr-1-step-2", LeadID: 9, Channel: "sms", To: "+2547", Body: "hi"}
	require.NoError(t, s.Send(context.Background(), out))

	assert.Equal(t, DefaultQueue, pub.key)
	assert.Equal(t, "enr-1-step-2", pub.msg.MessageId)
	assert.Equal(t, uint8(amqp.Persistent), pub.msg.DeliveryMode)

	var decoded model.OutboundMessage
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.Equal(t, out.Body, decoded.Body)
}

type fakeAck struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error { return f.Nack(tag, false, requeue) }

func delivery(t *testing.T, ack amqp.Acknowledger, msg model.OutboundMessage, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestConsumer_AcksAndNacks(t *testing.T) {
	ack := &fakeAck{}
	fail := errors.New("carrier down")
	var calls int
	c := &Consumer{Transport: Func(func(ctx context.Context, msg model.OutboundMessage) error {
		calls++
		if msg.LeadID == 2 {
			return fail
		}
		return nil
	})}

	ch := make(chan amqp.Delivery, 4)
	ch <- delivery(t, ack, model.OutboundMessage{LeadID: 1}, false)
	ch <- delivery(t, ack, model.OutboundMessage{LeadID: 2}, false)
	ch <- delivery(t, ack, model.OutboundMessage{LeadID: 2}, true)
	ch <- amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")}
	close(ch)

	require.NoError(t, c.Run(context.Background(), ch))

	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, ack.acks)
	assert.Equal(t, []bool{true, false}, ack.requeue)
}

func TestConsumer_DropsDuplicateKeys(t *testing.T) {
	ack := &fakeAck{}
	var calls int
	c := &Consumer{
		Transport: Func(func(context.Context, model.OutboundMessage) error { calls++; return nil }),
		Once:      lock.NewMemoryLocker(),
	}

	ch := make(chan amqp.Delivery, 2)
	msg := model.OutboundMessage{IdempotencyKey: "enr-4-step-1", LeadID: 4}
	ch <- delivery(t, ack, msg, false)
	ch <- delivery(t, ack, msg, true)
	close(ch)

	require.NoError(t, c.Run(context.Background(), ch))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, ack.acks)
}

func TestConsumer_FailedSendFreesKeyForRetry(t *testing.T) {
	ack := &fakeAck{}
	attempts := 0
	c := &Consumer{
		Transport: Func(func(context.Context, model.OutboundMessage) error {
			attempts++
			if attempts == 1 {
				return errors.New("timeout")
			}
			return nil
		}),
		Once: lock.NewMemoryLocker(),
	}

	ch := make(chan amqp.Delivery, 2)
	msg := model.OutboundMessage{IdempotencyKey: "b-7-lead-3", LeadID: 3}
	ch <- delivery(t, ack, msg, false)
	ch <- delivery(t, ack, msg, true)
	close(ch)

	require.NoError(t, c.Run(context.Background(), ch))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 1, ack.nacks)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Consumer{Transport: NewMockSender(0)}
	assert.ErrorIs(t, c.Run(ctx, make(chan amqp.Delivery)), context.Canceled)
}
