package queue

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"live_commerce/internal/model"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// Consumer 消费 Kafka 预订事件并落事件流水表。
type Consumer struct {
	r  *kafka.Reader
	db *gorm.DB
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db: db,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var ev ReservationEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("[consumer] unmarshal: %v", err)
			continue
		}
		if err := ev.Validate(); err != nil {
			log.Printf("[consumer] invalid event: %v", err)
			continue
		}

		row := &model.ReservationEventLog{
			EventID:       ev.EventID,
			EventType:     ev.Type,
			ReservationID: ev.ReservationID,
			LiveSessionID: ev.LiveSessionID,
			ProductID:     ev.ProductID,
			Position:      ev.Position,
			OccurredAt:    ev.OccurredAt,
		}
		if err := c.db.Create(row).Error; err != nil {
			// 幂等：重复消费触发 UNIQUE 冲突，直接当作成功。
			if ErrorsLikeUnique(err) {
				continue
			}
			log.Printf("[consumer] db create: %v", err)
			continue
		}
	}
}

// ErrorsLikeUnique 判断是否唯一约束冲突（sqlite/mysql 报错文案都含 unique）。
func ErrorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
