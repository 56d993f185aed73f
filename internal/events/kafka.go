package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/kdashto/spinwheel/internal/logger"
)

const (
	defaultWorkerNum = 2
	queueSize        = 100
)

// ErrQueueFull is returned when events arrive faster than the broker takes
// them. The event is dropped.
var ErrQueueFull = errors.New("kafka: publish queue is full")

// messageWriter is the part of kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds configuration for the Kafka publisher
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	WorkerNum int
}

// KafkaPublisher sends events to a Kafka topic from a small worker pool.
// Publishing never waits on the broker; a full queue drops the event.
type KafkaPublisher struct {
	writer    messageWriter
	topic     string
	log       logger.Logger
	jobs      chan kafka.Message
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to cfg.Topic
func NewKafkaPublisher(log logger.Logger, cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return newKafkaPublisher(log, writer, cfg.Topic, cfg.WorkerNum), nil
}

func newKafkaPublisher(log logger.Logger, w messageWriter, topic string, workers int) *KafkaPublisher {
	if workers <= 0 {
		workers = defaultWorkerNum
	}
	p := &KafkaPublisher{
		writer: w,
		topic:  topic,
		log:    log.With("component", "kafka-publisher"),
		jobs:   make(chan kafka.Message, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *KafkaPublisher) worker() {
	defer p.wg.Done()
	for msg := range p.jobs {
		func() {
			defer p.recover()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.log.Error("Failed to send event to Kafka", "topic", p.topic, "key", string(msg.Key), "error", err)
				return
			}
			p.log.Debug("Event sent to Kafka", "topic", p.topic, "key", string(msg.Key))
		}()
	}
}

// PublishSpinCompleted queues the event keyed by user id, so one user's
// events stay ordered within a partition
func (p *KafkaPublisher) PublishSpinCompleted(ctx context.Context, e SpinCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Type == "" {
		e.Type = TypeSpinCompleted
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.UserID),
		Value: value,
		Time:  e.OccurredAt,
	}
	select {
	case p.jobs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close drains queued events and closes the writer
func (p *KafkaPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		err = p.writer.Close()
	})
	return err
}

func (p *KafkaPublisher) recover() {
	if r := recover(); r != nil {
		p.log.Error("Panic recovered", "operation", "send_event_kafka", "panic", fmt.Sprintf("%v", r), "stack_trace", string(debug.Stack()))
	}
}
