package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	once    sync.Once
	log     *slog.Logger
}

func NewProducer(brokers []string, topic string, buf int, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     logger,
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true, // fire-and-forget untuk throughput; error dilog di Completion
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.log.Error("kafka write failed", "topic", topic, "messages", len(msgs), "err", err)
			}
		},
	}
	return p
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer func() { _ = p.w.Close() }()
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka enqueue failed", "topic", p.w.Topic, "err", err)
	}
}

func (p *Producer) drain() {
	for {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				return
			}
			p.write(m)
		default:
			return
		}
	}
}

// TryPublish never blocks; it reports false when the inbox is full.
func (p *Producer) TryPublish(key, value []byte, headers ...kafka.Header) bool {
	select {
	case p.inbox <- message(key, value, headers):
		return true
	default:
		return false
	}
}

func message(key, value []byte, headers []kafka.Header) kafka.Message {
	return kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Tutup channel supaya goroutine nge-flush sisa pesan lalu exit rapi.
func (p *Producer) Close() { p.once.Do(func() { close(p.inbox) }) }

// Tunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
