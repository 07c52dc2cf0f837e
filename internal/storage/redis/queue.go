package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"commtrack/backend/internal/service"
)

// IndexQueue 基于 Redis 的延迟索引任务队列。
//
// 入队时写入有序集合 {delayedKey}，score 为任务可执行的时间戳；
// Dispatcher 周期性把到期任务 LPUSH 到 {readyKey} 列表，
// 外部索引工作进程从列表消费。延迟用于等待存储一致性。
type IndexQueue struct {
	rdb        *goredis.Client
	delayedKey string
	readyKey   string
	log        *zap.Logger
}

// NewIndexQueue 创建索引任务队列。
func NewIndexQueue(client *Client, delayedKey, readyKey string, log *zap.Logger) *IndexQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &IndexQueue{
		rdb:        client.Client(),
		delayedKey: delayedKey,
		readyKey:   readyKey,
		log:        log,
	}
}

// queuedJob 是任务在 Redis 中的序列化形式。
type queuedJob struct {
	AttachmentID string    `json:"attachmentId"`
	Change       bool      `json:"change"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}

// Enqueue 投递一个索引任务，delay 后才允许被消费。
func (q *IndexQueue) Enqueue(ctx context.Context, job service.IndexJob, delay time.Duration) error {
	payload, err := json.Marshal(queuedJob{
		AttachmentID: job.AttachmentID,
		Change:       job.Change,
		EnqueuedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal index job: %w", err)
	}

	readyAt := time.Now().Add(delay)
	if err := q.rdb.ZAdd(ctx, q.delayedKey, goredis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: string(payload),
	}).Err(); err != nil {
		return fmt.Errorf("redis ZADD: %w", err)
	}

	q.log.Debug("index job enqueued",
		zap.String("attachment_id", job.AttachmentID),
		zap.Bool("change", job.Change),
		zap.Duration("delay", delay),
	)
	return nil
}

// Ping 检查 Redis 连接。
func (q *IndexQueue) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return q.rdb.Ping(ctx).Err()
}

// Backlog 返回尚未到期的延迟任务数量，供监控使用。
func (q *IndexQueue) Backlog(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.delayedKey).Result()
}

// StartDispatcher 启动到期任务搬运协程，把到期任务移入就绪列表。
//
// ctx 取消后退出。搬运失败只记日志，下个周期重试。
func (q *IndexQueue) StartDispatcher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.moveDue(ctx); err != nil {
					q.log.Warn("index dispatcher sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// moveDue 把所有 score 已到期的任务从有序集合搬到就绪列表。
func (q *IndexQueue) moveDue(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	due, err := q.rdb.ZRangeByScore(ctx, q.delayedKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("redis ZRANGEBYSCORE: %w", err)
	}

	for _, member := range due {
		// 先 LPUSH 再 ZREM：宁可重复索引，不可丢任务
		if err := q.rdb.LPush(ctx, q.readyKey, member).Err(); err != nil {
			return fmt.Errorf("redis LPUSH: %w", err)
		}
		if err := q.rdb.ZRem(ctx, q.delayedKey, member).Err(); err != nil {
			return fmt.Errorf("redis ZREM: %w", err)
		}
	}

	if len(due) > 0 {
		q.log.Debug("index jobs dispatched", zap.Int("count", len(due)))
	}
	return nil
}
