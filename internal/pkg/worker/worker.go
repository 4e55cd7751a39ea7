package worker

import (
	"context"
	"sync"
	"time"

	"campus_wall/pkg/logger"

	"go.uber.org/zap"
)

// Task 可重试的后台任务
type Task interface {
	// Key 用于日志定位
	Key() string
	Run(ctx context.Context) error
}

type envelope struct {
	task  Task
	retry int // 重试次数
}

type WorkerPool struct {
	TaskQueue  chan envelope
	RetryQueue chan envelope // 重试队列
	WorkerNum  int
	MaxRetry   int           // 最大重试次数
	RetryDelay time.Duration // 第 n 次重试前等待 n*RetryDelay

	// OnDrop 任务最终失败时回调（死信）
	OnDrop func(task Task, err error)

	ctx     context.Context
	pending sync.WaitGroup
	log     *zap.Logger
}

func NewWorkerPool(workerNum int, bufferSize int) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize < 2 {
		bufferSize = 2
	}
	return &WorkerPool{
		TaskQueue:  make(chan envelope, bufferSize),
		RetryQueue: make(chan envelope, bufferSize/2),
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		RetryDelay: time.Second,
		log:        logger.L().Named("worker"),
	}
}

// Start 启动 worker，ctx 取消后所有协程退出，未执行的任务被丢弃
func (p *WorkerPool) Start(ctx context.Context) {
	p.ctx = ctx
	for i := 0; i < p.WorkerNum; i++ {
		go p.worker(i)
	}
	// 启动重试处理协程
	go p.retryWorker()
	p.log.Info("worker pool started", zap.Int("workers", p.WorkerNum))
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case env := <-p.TaskQueue:
			p.process(id, env)
		}
	}
}

func (p *WorkerPool) process(id int, env envelope) {
	err := env.task.Run(p.ctx)
	if err == nil {
		p.pending.Done()
		return
	}

	p.log.Warn("task failed",
		zap.Int("worker", id),
		zap.String("task", env.task.Key()),
		zap.Int("attempt", env.retry+1),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if env.retry < p.MaxRetry {
		env.retry++
		select {
		case p.RetryQueue <- env:
			return
		default:
			p.log.Warn("retry queue full, task dropped", zap.String("task", env.task.Key()))
		}
	}
	p.logFailedTask(env, err)
}

func (p *WorkerPool) retryWorker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case env := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(time.Duration(env.retry) * p.RetryDelay):
			}

			// 重新加入主队列
			select {
			case p.TaskQueue <- env:
			default:
				p.log.Warn("main queue full, retried task dropped", zap.String("task", env.task.Key()))
				p.logFailedTask(env, nil)
			}
		}
	}
}

func (p *WorkerPool) logFailedTask(env envelope, err error) {
	p.log.Error("task failed permanently",
		zap.String("task", env.task.Key()),
		zap.Int("retries", env.retry),
		zap.Error(err),
	)
	if p.OnDrop != nil {
		p.OnDrop(env.task, err)
	}
	p.pending.Done()
}

// AddTask 非阻塞入队，队列满时返回 false
func (p *WorkerPool) AddTask(task Task) bool {
	p.pending.Add(1)
	select {
	case p.TaskQueue <- envelope{task: task}:
		return true
	default:
		p.pending.Done()
		p.log.Warn("worker pool queue full, dropping task", zap.String("task", task.Key()))
		if p.OnDrop != nil {
			p.OnDrop(task, nil)
		}
		return false
	}
}

// SubmitTask 阻塞入队，直到成功或 ctx 结束
func (p *WorkerPool) SubmitTask(ctx context.Context, task Task) error {
	p.pending.Add(1)
	select {
	case p.TaskQueue <- envelope{task: task}:
		return nil
	case <-ctx.Done():
		p.pending.Done()
		return ctx.Err()
	}
}

// Drain 等待已入队任务全部成功或最终失败；pool 被停止时未执行的任务不会完成，调用方需自行用 ctx 约束
func (p *WorkerPool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
