package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() ReservationEvent {
	return ReservationEvent{
		EventID:       "ev-1",
		Type:          EventReserved,
		ReservationID: 7,
		LiveSessionID: 3,
		ProductID:     11,
		Position:      2,
		OccurredAt:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestEventValidate(t *testing.T) {
	assert.NoError(t, validEvent().Validate())

	ev := validEvent()
	ev.EventID = ""
	assert.Error(t, ev.Validate())

	ev = validEvent()
	ev.Type = "shipped"
	assert.Error(t, ev.Validate())

	ev = validEvent()
	ev.ReservationID = 0
	assert.Error(t, ev.Validate())

	ev = validEvent()
	ev.OccurredAt = time.Time{}
	assert.Error(t, ev.Validate())
}

func TestOutboxPublishAndParse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	outbox := NewOutbox(rdb, "test:events")
	want := validEvent()
	outbox.Publish(ctx, want)

	msgs, err := rdb.XRange(ctx, "test:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	got, err := ParseStreamEvent(msgs[0].Values)
	require.NoError(t, err)
	assert.Equal(t, want.EventID, got.EventID)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.ReservationID, got.ReservationID)
	assert.Equal(t, want.LiveSessionID, got.LiveSessionID)
	assert.Equal(t, want.ProductID, got.ProductID)
	assert.Equal(t, want.Position, got.Position)
	assert.True(t, want.OccurredAt.Equal(got.OccurredAt))
}

func TestOutboxPublish_DropsInvalid(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	outbox := NewOutbox(rdb, "test:events")
	ev := validEvent()
	ev.Type = "???"
	outbox.Publish(context.Background(), ev)

	msgs, err := rdb.XRange(context.Background(), "test:events", "-", "+").Result()
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestOutboxPublish_NilReceiver(t *testing.T) {
	var outbox *Outbox
	// 事件是旁路，未接入 outbox 时直接丢弃即可。
	outbox.Publish(context.Background(), validEvent())
}

func TestParseStreamEvent_DirtyFields(t *testing.T) {
	_, err := ParseStreamEvent(map[string]interface{}{"type": EventReserved})
	assert.Error(t, err)

	values := map[string]interface{}{
		"event_id":        "ev-1",
		"type":            EventReserved,
		"reservation_id":  "not-a-number",
		"live_session_id": "3",
		"product_id":      "11",
		"position":        "2",
		"occurred_at":     "2026-08-30T12:00:00Z",
	}
	_, err = ParseStreamEvent(values)
	assert.Error(t, err)

	values["reservation_id"] = "7"
	values["occurred_at"] = "yesterday"
	_, err = ParseStreamEvent(values)
	assert.Error(t, err)
}

func TestErrorsLikeUnique(t *testing.T) {
	assert.False(t, ErrorsLikeUnique(nil))
	assert.False(t, ErrorsLikeUnique(assert.AnError))
	assert.True(t, ErrorsLikeUnique(errors.New("UNIQUE constraint failed: reservations.comment_id")))
	assert.True(t, ErrorsLikeUnique(errors.New("duplicate key value violates unique constraint")))
}
