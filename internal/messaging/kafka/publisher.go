package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/safar/marketplace-orders/internal/events"
	"github.com/safar/marketplace-orders/internal/metrics"
)

var ErrPublisherClosed = errors.New("publisher closed")

// Delivery is the broker outcome of one published event.
type Delivery struct {
	OrderID   string
	Partition int32
	Offset    int64
	Err       error
}

// Publisher hands events to a sarama AsyncProducer and observes broker
// acknowledgements on background goroutines.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	onDone   func(Delivery)
	wg       sync.WaitGroup

	// mu guards closed; publishers hold it shared while sending on Input.
	mu     sync.RWMutex
	closed bool
}

type PublisherOption func(*Publisher)

// WithDeliveryCallback runs fn after the completion log line for every message.
func WithDeliveryCallback(fn func(Delivery)) PublisherOption {
	return func(p *Publisher) { p.onDone = fn }
}

func NewPublisher(producer sarama.AsyncProducer, topic string, opts ...PublisherOption) *Publisher {
	p := &Publisher{producer: producer, topic: topic}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(2)
	go p.drainSuccesses()
	go p.drainErrors()
	return p
}

// PublishOrderCreated serializes synchronously and enqueues without waiting
// for the broker. Only encoding and enqueue cancellation are reported here.
func (p *Publisher) PublishOrderCreated(ctx context.Context, event events.OrderCreated) error {
	payload, err := events.Encode(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:    p.topic,
		Key:      sarama.StringEncoder(event.Key()),
		Value:    sarama.ByteEncoder(payload),
		Metadata: event.OrderID,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("enqueue order created event %s: %w", event.OrderID, ErrPublisherClosed)
	}

	select {
	case p.producer.Input() <- msg:
		log.Ctx(ctx).Debug().Str("orderId", event.OrderID).Str("topic", p.topic).Msg("order created event enqueued")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue order created event: %w", ctx.Err())
	}
}

func (p *Publisher) drainSuccesses() {
	defer p.wg.Done()
	for msg := range p.producer.Successes() {
		orderID, _ := msg.Metadata.(string)
		log.Info().
			Str("orderId", orderID).
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("order created event published")
		metrics.EventsPublished.WithLabelValues("success").Inc()
		p.done(Delivery{OrderID: orderID, Partition: msg.Partition, Offset: msg.Offset})
	}
}

func (p *Publisher) drainErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		var orderID string
		if perr.Msg != nil {
			orderID, _ = perr.Msg.Metadata.(string)
		}
		log.Error().
			Err(perr.Err).
			Str("orderId", orderID).
			Str("topic", p.topic).
			Msg("order created event publish failed")
		metrics.EventsPublished.WithLabelValues("failure").Inc()
		p.done(Delivery{OrderID: orderID, Err: perr.Err})
	}
}

func (p *Publisher) done(d Delivery) {
	if p.onDone != nil {
		p.onDone(d)
	}
}

// Close flushes buffered messages and waits for their outcomes to be logged.
// Later publishes fail with ErrPublisherClosed. Close is safe to call twice.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.producer.AsyncClose()
	p.wg.Wait()
}
