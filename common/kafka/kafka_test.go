package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/models"
)

var testTopics = Topics{Audit: "seatmap-audit", Notification: "override-notifications"}

func TestProducer_PublishAudit(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var rec models.AuditRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.Action != models.AuditActionSetSeatMap || rec.EntityID != "v1" || !rec.Success {
			return errors.New("unexpected audit record")
		}
		return nil
	})

	p := NewProducerWith(mp, testTopics, logger.Discard())
	err := p.PublishAudit(models.AuditRecord{
		Action:     models.AuditActionSetSeatMap,
		EntityID:   "v1",
		Success:    true,
		DurationMs: 12,
		RecordedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_SendFailure(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(mp, testTopics, logger.Discard())
	err := p.PublishOverrideNotification(models.OverrideNotification{OverrideID: "o1", VenueID: "v1"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestProducer_MockMode(t *testing.T) {
	p, err := NewProducer(nil, testTopics, logger.Discard())
	require.NoError(t, err)
	assert.NoError(t, p.PublishAudit(models.AuditRecord{EntityID: "v1"}))
	assert.NoError(t, p.Close())
}

// ============================================================
// Consumer handler
// ============================================================

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "m1" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) { s.marked = append(s.marked, msg.Offset) }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "seat-status-updates" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestSeatStatusClaimHandler(t *testing.T) {
	var applied []models.SeatStatusEvent
	h := &SeatStatusClaimHandler{
		Log: logger.Discard(),
		Handle: func(_ context.Context, e models.SeatStatusEvent) error {
			if e.SeatID == "ghost" {
				return apperrors.NotFound("seat", e.SeatID)
			}
			applied = append(applied, e)
			return nil
		},
	}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"seatId":"s1","status":"BLOCKED"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`not json`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"seatId":"ghost","status":"BLOCKED"}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(session, claim))

	require.Len(t, applied, 1)
	assert.Equal(t, "s1", applied[0].SeatID)
	assert.Equal(t, models.SeatBlocked, applied[0].Status)
	// malformed and rejected messages are marked so the partition moves on
	assert.Equal(t, []int64{1, 2, 3}, session.marked)
}

func TestSeatStatusClaimHandler_StopsAtFailedMessage(t *testing.T) {
	calls := map[string]int{}
	h := &SeatStatusClaimHandler{
		Log:      logger.Discard(),
		Attempts: 2,
		Backoff:  time.Millisecond,
		Handle: func(_ context.Context, e models.SeatStatusEvent) error {
			calls[e.SeatID]++
			if e.SeatID == "s2" {
				return apperrors.StorageError(errors.New("lock wait timeout"))
			}
			return nil
		},
	}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"seatId":"s1","status":"BLOCKED"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`{"seatId":"s2","status":"MAINTENANCE"}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"seatId":"s3","status":"BLOCKED"}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	err := h.ConsumeClaim(session, claim)
	require.Error(t, err)
	assert.ErrorContains(t, err, "offset 2")

	assert.Equal(t, []int64{1}, session.marked, "nothing at or past the failed offset is marked")
	assert.Equal(t, 2, calls["s2"])
	assert.Zero(t, calls["s3"])
}

func TestSeatStatusClaimHandler_RetriesTransientFailure(t *testing.T) {
	failures := 1
	h := &SeatStatusClaimHandler{
		Log:     logger.Discard(),
		Backoff: time.Millisecond,
		Handle: func(context.Context, models.SeatStatusEvent) error {
			if failures > 0 {
				failures--
				return errors.New("connection reset")
			}
			return nil
		},
	}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 7, Value: []byte(`{"seatId":"s1","status":"BLOCKED"}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{7}, session.marked)
}
