package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

const DefaultQueue = "outbound_sends"

// Publisher is the part of *amqp.Channel the sender uses.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender publishes each message as JSON to a durable queue. The worker
// process consumes it and talks to the real transport.
type AMQPSender struct {
	Channel Publisher
	Queue   string

	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects, opens a channel and declares the queue.
func DialAMQP(url, queue string) (*AMQPSender, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := DeclareQueue(ch, queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPSender{Channel: ch, Queue: queue, conn: conn, ch: ch}, nil
}

// DeclareQueue declares the durable outbound queue.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}

func (s *AMQPSender) Send(ctx context.Context, msg model.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}
	return s.Channel.Publish("", s.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.IdempotencyKey,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (s *AMQPSender) Close() error {
	var errs []error
	if s.ch != nil {
		errs = append(errs, s.ch.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

// Consumer drains the outbound queue into a transport. A failed delivery is
// requeued once; a redelivered failure is dropped. When Once is set, a message
// whose idempotency key was already delivered is acked without a second send.
type Consumer struct {
	Transport Sender
	Once      lock.Locker
	OnceTTL   time.Duration
	Log       *zap.Logger
}

// Run processes deliveries until the channel closes or ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, log, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, log *zap.Logger, d amqp.Delivery) {
	var msg model.OutboundMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Warn("invalid outbound payload", zap.Error(err))
		_ = d.Ack(false)
		return
	}
	log = log.With(zap.String("idempotency_key", msg.IdempotencyKey), zap.Int("lead_id", msg.LeadID))

	var lease *lock.Lease
	if c.Once != nil && msg.IdempotencyKey != "" {
		ttl := c.OnceTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		var err error
		lease, err = c.Once.Acquire(ctx, "sent:"+msg.IdempotencyKey, ttl)
		if errors.Is(err, lock.ErrNotAcquired) {
			log.Info("duplicate outbound message dropped")
			_ = d.Ack(false)
			return
		}
		if err != nil {
			log.Warn("send-once check failed, sending anyway", zap.Error(err))
		}
	}

	if err := c.Transport.Send(ctx, msg); err != nil {
		_ = lease.Release(ctx)
		requeue := !d.Redelivered
		log.Warn("transport send failed", zap.Error(err), zap.Bool("requeue", requeue))
		_ = d.Nack(false, requeue)
		return
	}

	log.Debug("outbound message delivered", zap.String("channel", msg.Channel))
	_ = d.Ack(false)
}

var _ Sender = (*AMQPSender)(nil)
