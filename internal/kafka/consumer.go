package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when processing succeeded and the offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     *zap.Logger

	retryMin time.Duration
	retryMax time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, retryMin: 200 * time.Millisecond, retryMax: 30 * time.Second}
}

// Start dispatches messages to a fixed worker pool until ctx is cancelled.
// Each partition is pinned to one worker and a message is retried until it
// succeeds, so offsets are committed in order and a failed message is never
// skipped over.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup

	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.process(ctx, id, h, m) {
					// Cancelled mid-retry: nothing after m may be committed.
					for range in {
					}
					return
				}
			}
		}(i, jobs[i])
	}

	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
		_ = c.r.Close()
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// process runs h until it succeeds and then commits m. It reports false only
// when ctx was cancelled before m could be committed.
func (c *Consumer) process(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	wait := c.retryMin
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		c.log.Warn("handler failed, retrying",
			zap.Int("worker", worker), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait *= 2; wait > c.retryMax {
			wait = c.retryMax
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
	return ctx.Err() == nil
}
