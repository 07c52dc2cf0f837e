package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"commtrack/backend/internal/pool"
)

// IndexJob 一个附件的全文索引任务。
//
// Change 表示附件是否已经索引过：重新指向新案件的附件需要重建索引，
// 首次入库（包括孤儿归档与复制产生的新副本）是初次索引。
type IndexJob struct {
	AttachmentID string
	Change       bool
}

// IndexQueue 索引任务的出站端口，由 Redis 队列实现，测试中用捕获桩替代。
type IndexQueue interface {
	Enqueue(ctx context.Context, job IndexJob, delay time.Duration) error
}

// IndexDispatcher 把索引任务异步投递到队列。
//
// 投递是 fire-and-forget：引擎不等待索引完成，入队失败只记告警，
// 因为通信与附件记录此时已经落库，索引可以事后补。
type IndexDispatcher struct {
	queue   IndexQueue
	workers *pool.WorkerPool
	delay   time.Duration
	log     *zap.Logger
}

// NewIndexDispatcher 创建索引任务分发器。
func NewIndexDispatcher(queue IndexQueue, workers *pool.WorkerPool, delay time.Duration, log *zap.Logger) *IndexDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &IndexDispatcher{
		queue:   queue,
		workers: workers,
		delay:   delay,
		log:     log,
	}
}

// Dispatch 异步投递一个索引任务。
func (d *IndexDispatcher) Dispatch(attachmentID string, change bool) {
	if d.queue == nil {
		return
	}

	job := IndexJob{AttachmentID: attachmentID, Change: change}
	submit := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.queue.Enqueue(ctx, job, d.delay); err != nil {
			d.log.Warn("failed to enqueue index job",
				zap.String("attachment_id", job.AttachmentID),
				zap.Bool("change", job.Change),
				zap.Error(err),
			)
		}
	}

	if d.workers != nil {
		d.workers.Submit(submit)
		return
	}
	go submit()
}
