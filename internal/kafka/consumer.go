package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{r: r, workers: workers, log: logger, MinBackoff: 200 * time.Millisecond, MaxBackoff: 30 * time.Second}
}

// Start fetches until ctx is done. Each partition is pinned to one worker so
// offsets are committed in order, and a failing message is retried in place:
// nothing after it on the same partition is committed before it succeeds.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	h = Retry(h, c.MinBackoff, c.MaxBackoff, c.log)

	ctx, cancel := context.WithCancel(ctx)
	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	defer func() {
		// hentikan retry yang masih jalan kalau fetch gagal
		cancel()
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
		_ = c.r.Close()
	}()

	// workers
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					// shutdown di tengah retry: offset belum di-commit, dikirim ulang nanti
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Error("commit failed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
				}
			}
		}(lanes[i])
	}

	// dispatcher loop
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case lanes[lane(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func lane(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

// Retry wraps h so a failing message is handled again with exponential
// backoff until it succeeds or ctx is done. It only returns ctx's error.
func Retry(h Handler, minBackoff, maxBackoff time.Duration, logger *slog.Logger) Handler {
	if minBackoff <= 0 {
		minBackoff = 200 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, m kafka.Message) error {
		wait := minBackoff
		for attempt := 1; ; attempt++ {
			err := h(ctx, m)
			if err == nil {
				return nil
			}
			logger.Error("handler failed, retrying", "topic", m.Topic, "partition", m.Partition,
				"offset", m.Offset, "attempt", attempt, "backoff", wait, "err", err)

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			wait = min(wait*2, maxBackoff)
		}
	}
}
