package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

const (
	// DefaultQueueSize bounds updates waiting to be published.
	DefaultQueueSize = 256
	publishTimeout   = 2 * time.Second
	terminalWait     = 250 * time.Millisecond
	sinkName         = "redis"
)

// Publisher is the subset of [redis.Client] used by [RedisSink].
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// NewRedisClient connects to the server in cfg and verifies it with PING.
func NewRedisClient(ctx context.Context, cfg shared.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", shared.ErrServiceDown, cfg.Addr, err)
	}
	return client, nil
}

// RedisSink publishes task updates to a Redis channel.
type RedisSink struct {
	client  Publisher
	channel string
	logger  *log.Logger
	metrics *metrics.Metrics

	queue     chan models.Update
	stop      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	published atomic.Int64
}

// NewRedisSink starts the publishing goroutine. Call [RedisSink.Close] to flush and stop it.
func NewRedisSink(client Publisher, channel string, logger *log.Logger, m *metrics.Metrics) *RedisSink {
	if logger == nil {
		logger = log.Default()
	}
	s := &RedisSink{
		client:  client,
		channel: channel,
		logger:  logger.WithPrefix("redis"),
		metrics: m,
		queue:   make(chan models.Update, DefaultQueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// Emit queues u for publishing.
func (s *RedisSink) Emit(u models.Update) {
	if s.closed.Load() {
		s.drop(u)
		return
	}

	if !u.Terminal() {
		select {
		case s.queue <- u:
		default:
			s.drop(u)
		}
		return
	}

	timer := time.NewTimer(terminalWait)
	defer timer.Stop()
	select {
	case s.queue <- u:
	case <-timer.C:
		s.drop(u)
	}
}

// Published returns how many updates reached Redis.
func (s *RedisSink) Published() int64 {
	return s.published.Load()
}

// Close publishes what is still queued and stops the goroutine.
func (s *RedisSink) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
	})
	<-s.done
	return nil
}

func (s *RedisSink) drop(u models.Update) {
	s.metrics.RecordDropped(sinkName)
	s.logger.Debug("dropped update", "task", u.TaskID, "chunk", u.Chunk, "status", u.Status)
}

func (s *RedisSink) loop() {
	defer close(s.done)
	for {
		select {
		case u := <-s.queue:
			s.publish(u)
		case <-s.stop:
			for {
				select {
				case u := <-s.queue:
					s.publish(u)
				default:
					return
				}
			}
		}
	}
}

func (s *RedisSink) publish(u models.Update) {
	payload, err := json.Marshal(u)
	if err != nil {
		s.logger.Error("failed to encode update", "task", u.TaskID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish update", "task", u.TaskID, "channel", s.channel, "error", err)
		s.metrics.RecordDropped(sinkName)
		return
	}
	s.published.Add(1)
}
