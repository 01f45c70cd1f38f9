package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/models"
)

// SeatStatusHandler applies one out-of-band seat status change.
type SeatStatusHandler func(ctx context.Context, event models.SeatStatusEvent) error

// SeatStatusConsumer reads seat status events from a consumer group.
type SeatStatusConsumer struct {
	group sarama.ConsumerGroup
	topic string
	log   *logger.Logger
}

func NewSeatStatusConsumer(brokers []string, groupID, topic string, log *logger.Logger) (*SeatStatusConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return &SeatStatusConsumer{group: group, topic: topic, log: log}, nil
}

// Consume blocks until ctx is cancelled or the group fails.
func (c *SeatStatusConsumer) Consume(ctx context.Context, handle SeatStatusHandler) error {
	h := &SeatStatusClaimHandler{Handle: handle, Log: c.log}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.WithError(err).Error("Error consuming seat status events")
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *SeatStatusConsumer) Close() error {
	return c.group.Close()
}

// SeatStatusClaimHandler is the sarama group handler; exported for tests.
// Attempts and Backoff bound the retries of a failing event; zero values mean
// 3 attempts and 200ms.
type SeatStatusClaimHandler struct {
	Handle   SeatStatusHandler
	Log      *logger.Logger
	Attempts int
	Backoff  time.Duration
}

func (h *SeatStatusClaimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *SeatStatusClaimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message once it is handled, malformed or rejected as
// invalid. A message whose handler keeps failing ends the claim unmarked:
// offsets commit cumulatively, so nothing after it may be marked. The next
// session resumes at that message.
func (h *SeatStatusClaimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event models.SeatStatusEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			h.Log.WithError(err).With("offset", message.Offset).Warn("Dropping malformed seat status event")
			session.MarkMessage(message, "")
			continue
		}

		err := h.apply(session.Context(), event)
		switch {
		case err == nil:
		case !retryable(err):
			h.Log.WithError(err).With("seat_id", event.SeatID).Warn("Dropping rejected seat status event")
		default:
			h.Log.WithError(err).With("seat_id", event.SeatID).With("offset", message.Offset).
				Error("Failed to apply seat status event, stopping claim")
			return fmt.Errorf("seat status event at offset %d: %w", message.Offset, err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *SeatStatusClaimHandler) apply(ctx context.Context, event models.SeatStatusEvent) error {
	attempts, backoff := h.Attempts, h.Backoff
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff << (i - 1)):
			}
		}
		if err = h.Handle(ctx, event); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

// retryable reports whether err may go away on its own. Validation and lookup
// failures will not.
func retryable(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return true
	}
	return appErr.Code == apperrors.ErrCodeStorage || appErr.Code == apperrors.ErrCodeInternal
}
