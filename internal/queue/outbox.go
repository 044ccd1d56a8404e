package queue

import (
	"context"
	"log"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// Outbox 把预订事件原子写入 Redis Stream，由 Relay 异步转发 Kafka。
// 事件只是旁路通知，写入失败只记日志，绝不反过来影响预订主流程。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// Publish 追加一条事件。字段铺平存储，方便 Relay 无 JSON 依赖地解析。
func (o *Outbox) Publish(ctx context.Context, ev ReservationEvent) {
	if o == nil {
		return
	}
	if err := ev.Validate(); err != nil {
		log.Printf("[outbox] drop invalid event: %v", err)
		return
	}
	err := o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			"event_id":        ev.EventID,
			"type":            ev.Type,
			"reservation_id":  strconv.FormatUint(uint64(ev.ReservationID), 10),
			"live_session_id": strconv.FormatUint(uint64(ev.LiveSessionID), 10),
			"product_id":      strconv.FormatUint(uint64(ev.ProductID), 10),
			"position":        strconv.Itoa(ev.Position),
			"occurred_at":     ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		log.Printf("[outbox] xadd: %v", err)
	}
}
