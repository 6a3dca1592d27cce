package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// HandleFunc processes one message. A nil error marks the offset; an error
// leaves it unmarked and ends the session so the message is redelivered.
type HandleFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// ConsumerHandler routes messages of each claim to Handle, one at a time.
//
// A failed message holds its claim for MinBackoff after the first consecutive
// failure, doubling up to MaxBackoff, before the session ends. A handled
// message resets the count. Zero values use 500ms and 30s.
type ConsumerHandler struct {
	Handle     HandleFunc
	MinBackoff time.Duration
	MaxBackoff time.Duration

	failures atomic.Int32
}

func (h *ConsumerHandler) backoff(failures int32) time.Duration {
	minDelay, maxDelay := h.MinBackoff, h.MaxBackoff
	if minDelay <= 0 {
		minDelay = defaultMinBackoff
	}
	if maxDelay < minDelay {
		maxDelay = max(defaultMaxBackoff, minDelay)
	}

	delay := minDelay
	for i := int32(1); i < failures && delay < maxDelay; i++ {
		delay *= 2
	}
	return min(delay, maxDelay)
}

func (h *ConsumerHandler) Setup(sess sarama.ConsumerGroupSession) error {
	log.Info().Interface("claims", sess.Claims()).Int32("generation", sess.GenerationID()).Msg("consumer session started")
	return nil
}

func (h *ConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *ConsumerHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.Handle(sess.Context(), msg); err != nil {
				delay := h.backoff(h.failures.Add(1))
				log.Error().Err(err).
					Str("topic", msg.Topic).
					Int32("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Dur("retryIn", delay).
					Msg("message left uncommitted for redelivery")
				select {
				case <-time.After(delay):
				case <-sess.Context().Done():
				}
				return fmt.Errorf("handle %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
			h.failures.Store(0)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

// Consume runs group sessions until ctx is cancelled or the group is closed.
func Consume(ctx context.Context, group sarama.ConsumerGroup, topics []string, handler sarama.ConsumerGroupHandler) error {
	go func() {
		for err := range group.Errors() {
			log.Error().Err(err).Msg("consumer group error")
		}
	}()

	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Error().Err(err).Msg("consume error")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
