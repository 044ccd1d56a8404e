package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// Relay 将 Redis Stream 里的预订事件异步转发到 Kafka。
// 语义：发布 Kafka 成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb      *rd.Client
	producer *Producer

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, producer *Producer, stream, group, consumer string) *Relay {
	return &Relay{
		rdb:      rdb,
		producer: producer,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		log.Printf("[relay] ensure group: %v", err)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		// 先处理本消费者历史 pending，避免遗留消息长期堆积。
		msgs, err := r.readGroup(ctx, "0", 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("[relay] read pending: %v", err)
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			msgs, err = r.readGroup(ctx, ">", 2*time.Second)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("[relay] read new: %v", err)
				time.Sleep(300 * time.Millisecond)
				continue
			}
		}

		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				// 发布失败不 ACK，消息保留用于重试。
				log.Printf("[relay] process message id=%s: %v", xm.ID, err)
				time.Sleep(200 * time.Millisecond)
				break
			}
		}
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
		NoAck:    false,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	ev, err := ParseStreamEvent(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.producer.Publish(pubCtx, ev); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

// ParseStreamEvent 把 Stream 的铺平字段还原成事件并校验。
func ParseStreamEvent(values map[string]interface{}) (ReservationEvent, error) {
	eventID, err := getStreamString(values, "event_id")
	if err != nil {
		return ReservationEvent{}, err
	}
	evType, err := getStreamString(values, "type")
	if err != nil {
		return ReservationEvent{}, err
	}
	reservationStr, err := getStreamString(values, "reservation_id")
	if err != nil {
		return ReservationEvent{}, err
	}
	sessionStr, err := getStreamString(values, "live_session_id")
	if err != nil {
		return ReservationEvent{}, err
	}
	productStr, err := getStreamString(values, "product_id")
	if err != nil {
		return ReservationEvent{}, err
	}
	positionStr, err := getStreamString(values, "position")
	if err != nil {
		return ReservationEvent{}, err
	}
	occurredStr, err := getStreamString(values, "occurred_at")
	if err != nil {
		return ReservationEvent{}, err
	}

	reservationID, err := strconv.ParseUint(reservationStr, 10, 64)
	if err != nil {
		return ReservationEvent{}, fmt.Errorf("invalid reservation_id %q", reservationStr)
	}
	sessionID, err := strconv.ParseUint(sessionStr, 10, 64)
	if err != nil {
		return ReservationEvent{}, fmt.Errorf("invalid live_session_id %q", sessionStr)
	}
	productID, err := strconv.ParseUint(productStr, 10, 64)
	if err != nil {
		return ReservationEvent{}, fmt.Errorf("invalid product_id %q", productStr)
	}
	position, err := strconv.Atoi(positionStr)
	if err != nil {
		return ReservationEvent{}, fmt.Errorf("invalid position %q", positionStr)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, occurredStr)
	if err != nil {
		return ReservationEvent{}, fmt.Errorf("invalid occurred_at %q", occurredStr)
	}

	ev := ReservationEvent{
		EventID:       eventID,
		Type:          evType,
		ReservationID: uint(reservationID),
		LiveSessionID: uint(sessionID),
		ProductID:     uint(productID),
		Position:      position,
		OccurredAt:    occurredAt,
	}
	if err := ev.Validate(); err != nil {
		return ReservationEvent{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
