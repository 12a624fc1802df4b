package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"pd-shop-api/internal/model"
	"pd-shop-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

// Buffer configuration
const (
	MaxBatchSize       = 50
	FlushTimeout       = 60 * time.Second
	StaleDataThreshold = 24 * time.Hour // activity is an audit trail; keep retrying for a day
	CleanupInterval    = 15 * time.Minute
)

// FlushFunc is called to persist buffered activity records to the recorder.
type FlushFunc func(ctx context.Context, activities []model.ShopActivity) error

var deleteIfUnchangedScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
		redis.call("HDEL", KEYS[1], ARGV[1])
		redis.call("SREM", KEYS[2], ARGV[1])
		return 1
	else
		return 0
	end
`)

// RedisActivityBuffer uses Redis for write-behind buffering of purchase
// activity records. Purchases enqueue here and return immediately; a
// background loop flushes batches into the real activity recorder.
type RedisActivityBuffer struct {
	client        *redis.Client
	flushFunc     FlushFunc
	flushTicker   *time.Ticker
	cleanupTicker *time.Ticker
	stopFlush     chan struct{}
	stopOnce      sync.Once
	keyPrefix     string
}

// RedisBufferConfig holds configuration for the Redis activity buffer.
type RedisBufferConfig struct {
	Addr          string
	Password      string
	DB            int
	FlushInterval time.Duration
	KeyPrefix     string
}

// NewRedisActivityBuffer creates a Redis-backed activity buffer.
func NewRedisActivityBuffer(cfg RedisBufferConfig, flushFunc FlushFunc) (*RedisActivityBuffer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "pdshop:activity"
	}

	b := &RedisActivityBuffer{
		client:        client,
		flushFunc:     flushFunc,
		flushTicker:   time.NewTicker(cfg.FlushInterval),
		cleanupTicker: time.NewTicker(CleanupInterval),
		stopFlush:     make(chan struct{}),
		keyPrefix:     keyPrefix,
	}

	go b.backgroundFlush()
	go b.backgroundCleanup()

	log.Printf("[RedisActivityBuffer] Started - DB:%d, prefix:%s, flush:%v, batch:%d",
		cfg.DB, keyPrefix, cfg.FlushInterval, MaxBatchSize)
	return b, nil
}

func (b *RedisActivityBuffer) bufferKey() string {
	return b.keyPrefix + ":buffer"
}

func (b *RedisActivityBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

// Record buffers one activity record in Redis and returns its assigned id.
func (b *RedisActivityBuffer) Record(ctx context.Context, activity model.ShopActivity) (string, error) {
	if activity.ID == "" {
		activity.ID = uid.New()
	}

	jsonData, err := json.Marshal(&activity)
	if err != nil {
		return "", err
	}

	pipe := b.client.Pipeline()
	pipe.HSet(ctx, b.bufferKey(), activity.ID, jsonData)
	pipe.SAdd(ctx, b.pendingKey(), activity.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return activity.ID, nil
}

// Count returns the number of pending records.
func (b *RedisActivityBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.SCard(ctx, b.pendingKey()).Result()
}

// FlushBatch writes up to MaxBatchSize records through the flush function.
func (b *RedisActivityBuffer) FlushBatch(ctx context.Context) (int, error) {
	ids, err := b.client.SRandMemberN(ctx, b.pendingKey(), MaxBatchSize).Result()
	if err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	totalPending, _ := b.Count(ctx)
	log.Printf("[RedisActivityBuffer] Flushing %d/%d records", len(ids), totalPending)

	activities := make([]model.ShopActivity, 0, len(ids))
	originalData := make(map[string]string)

	for _, id := range ids {
		data, err := b.client.HGet(ctx, b.bufferKey(), id).Bytes()
		if err == redis.Nil {
			b.client.SRem(ctx, b.pendingKey(), id)
			continue
		}
		if err != nil {
			log.Printf("[RedisActivityBuffer] Error getting %s: %v", id, err)
			continue
		}

		originalData[id] = string(data)

		var activity model.ShopActivity
		if err := json.Unmarshal(data, &activity); err != nil {
			log.Printf("[RedisActivityBuffer] Error unmarshaling %s: %v", id, err)
			b.client.HDel(ctx, b.bufferKey(), id)
			b.client.SRem(ctx, b.pendingKey(), id)
			continue
		}
		activities = append(activities, activity)
	}

	if len(activities) == 0 {
		return 0, nil
	}

	if err := b.flushFunc(ctx, activities); err != nil {
		log.Printf("[RedisActivityBuffer] Flush error: %v", err)
		return 0, err
	}

	pipe := b.client.Pipeline()
	for id, rawJSON := range originalData {
		deleteIfUnchangedScript.Run(ctx, pipe, []string{b.bufferKey(), b.pendingKey()}, id, rawJSON)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RedisActivityBuffer] Error clearing Redis: %v", err)
	}

	log.Printf("[RedisActivityBuffer] Successfully flushed %d records", len(activities))
	return len(activities), nil
}

// Flush writes one batch of buffered records through the flush function.
func (b *RedisActivityBuffer) Flush(ctx context.Context) error {
	_, err := b.FlushBatch(ctx)
	return err
}

// CleanupStale drops records older than StaleDataThreshold that the flush
// loop repeatedly failed to persist, along with any unreadable entries.
func (b *RedisActivityBuffer) CleanupStale(ctx context.Context) (int, error) {
	ids, err := b.client.SMembers(ctx, b.pendingKey()).Result()
	if err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	staleThreshold := time.Now().Add(-StaleDataThreshold)
	staleCount := 0
	pipe := b.client.Pipeline()

	for _, id := range ids {
		data, err := b.client.HGet(ctx, b.bufferKey(), id).Bytes()
		if err == redis.Nil {
			pipe.SRem(ctx, b.pendingKey(), id)
			continue
		}
		if err != nil {
			continue
		}

		var activity model.ShopActivity
		if err := json.Unmarshal(data, &activity); err != nil {
			pipe.HDel(ctx, b.bufferKey(), id)
			pipe.SRem(ctx, b.pendingKey(), id)
			staleCount++
			continue
		}

		if activity.CreatedDatetime.Before(staleThreshold) {
			pipe.HDel(ctx, b.bufferKey(), id)
			pipe.SRem(ctx, b.pendingKey(), id)
			staleCount++
		}
	}

	if staleCount > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[RedisActivityBuffer] Cleanup exec error: %v", err)
			return 0, err
		}
		log.Printf("[RedisActivityBuffer] Cleaned up %d stale records", staleCount)
	}

	return staleCount, nil
}

func (b *RedisActivityBuffer) backgroundFlush() {
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				log.Printf("[RedisActivityBuffer] Background flush error: %v", err)
			}
			cancel()
		case <-b.stopFlush:
			log.Printf("[RedisActivityBuffer] Shutdown: flushing remaining records...")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			for {
				flushed, err := b.FlushBatch(ctx)
				if err != nil {
					log.Printf("[RedisActivityBuffer] Shutdown flush error: %v", err)
					break
				}
				if flushed == 0 {
					break
				}
			}
			cancel()
			log.Printf("[RedisActivityBuffer] Shutdown flush complete")
			return
		}
	}
}

func (b *RedisActivityBuffer) backgroundCleanup() {
	for {
		select {
		case <-b.cleanupTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			b.CleanupStale(ctx)
			cancel()
		case <-b.stopFlush:
			return
		}
	}
}

// Close stops the buffer and performs a final flush.
func (b *RedisActivityBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		b.cleanupTicker.Stop()
		close(b.stopFlush)
	})
	return b.client.Close()
}
