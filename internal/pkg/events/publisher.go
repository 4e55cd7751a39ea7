package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"campus_wall/internal/pkg/config"
	"campus_wall/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// 事件类型
const (
	PostCreated     = "post.created"
	PostHidden      = "post.hidden"
	PostUnhidden    = "post.unhidden"
	CommentAdded    = "comment.added"
	CommentHidden   = "comment.hidden"
	CommentUnhidden = "comment.unhidden"
	LikeToggled     = "like.toggled"
)

// Event 提交后对外发布的领域事件，按 PostID 分区保证同一帖子内有序
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	PostID     string                 `json:"postId"`
	ActorID    string                 `json:"actorId"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// NewEvent 填充 ID 与时间
func NewEvent(eventType, postID, actorID string, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		PostID:     postID,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher 未启用 Kafka 时使用
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, evt Event) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

// KafkaPublisher 基于 kafka-go 的异步发布，Publish 只入队不等待 broker 确认，
// 投递结果在 Completion 回调中记录，Close 时刷出剩余批次
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	p := &KafkaPublisher{log: logger.L()}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   p.onComplete,
	}
	return p
}

// onComplete 异步批次的投递回调
func (p *KafkaPublisher) onComplete(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		eventType := ""
		for _, h := range m.Headers {
			if h.Key == "event-type" {
				eventType = string(h.Value)
			}
		}
		p.log.Warn("deliver event failed",
			zap.String("type", eventType),
			zap.String("postID", string(m.Key)),
			zap.Error(err),
		)
	}
}

// New 按配置选择实现
func New(cfg config.KafkaConfig) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := Encode(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Encode 事件转 Kafka 消息，key 为帖子 ID
func Encode(evt Event) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", evt.Type, err)
	}
	return kafka.Message{
		Key:   []byte(evt.PostID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
		},
		Time: evt.OccurredAt,
	}, nil
}

// Recorder 内存发布器，记录所有事件，测试与本地调试使用
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events 返回已记录事件的副本
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types 返回已记录事件的类型序列
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
