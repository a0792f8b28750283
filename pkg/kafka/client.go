// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sql-smart-go/internal/config"
	"sql-smart-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// AskEvent 是每次问答完成后发送的审计事件。
type AskEvent struct {
	Question  string    `json:"question"`
	SQL       string    `json:"sql,omitempty"`
	RowCount  int       `json:"row_count"`
	UserID    string    `json:"user_id"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher 定义了审计事件的发送接口。
type Publisher interface {
	Publish(ctx context.Context, event AskEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
}

// NewPublisher 初始化 Kafka 生产者；未配置 brokers 时返回不做任何事的 Publisher。
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if cfg.Brokers == "" {
		return nopPublisher{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &kafkaPublisher{writer: w}
}

// Publish 发送一个审计事件，以用户 ID 作为消息 key。
func (p *kafkaPublisher) Publish(ctx context.Context, event AskEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ask event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, AskEvent) error { return nil }
func (nopPublisher) Close() error                            { return nil }
