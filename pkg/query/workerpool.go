package query

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dd0wney/cluso-mergejoin/pkg/logging"
)

// Task is one join submitted to a WorkerPool.
type Task struct {
	ID      string
	Request JoinRequest
}

// TaskResult contains the outcome of one Task.
type TaskResult struct {
	TaskID   string
	Result   *JoinResult
	Error    error
	Duration time.Duration
}

// WorkerPool runs joins on a fixed number of goroutines sharing one Executor.
type WorkerPool struct {
	executor  *Executor
	workers   int
	taskQueue chan Task
	results   chan TaskResult
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	tasksProcessed int64
	tasksActive    int64
	tasksFailed    int64
}

// NewWorkerPool creates a pool of workers goroutines. A non-positive count
// selects runtime.NumCPU. Cancelling ctx stops the pool.
func NewWorkerPool(ctx context.Context, executor *Executor, workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		executor:  executor,
		workers:   workers,
		taskQueue: make(chan Task, workers*10),
		results:   make(chan TaskResult, workers*10),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// worker pulls tasks until the queue is closed or the pool is cancelled.
// A panic other than a join contract violation is recovered into the task's
// error so one bad input cannot take the pool down.
func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case task, ok := <-wp.taskQueue:
			if !ok {
				return
			}

			atomic.AddInt64(&wp.tasksActive, 1)
			start := time.Now()
			result, err := wp.run(task)
			atomic.AddInt64(&wp.tasksActive, -1)
			atomic.AddInt64(&wp.tasksProcessed, 1)
			if err != nil {
				atomic.AddInt64(&wp.tasksFailed, 1)
			}

			select {
			case wp.results <- TaskResult{
				TaskID:   task.ID,
				Result:   result,
				Error:    err,
				Duration: time.Since(start),
			}:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) run(task Task) (result *JoinResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.executor.logger.Error("join task panicked",
				logging.String("task_id", task.ID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			result, err = nil, errors.Newf("task %s panicked: %v", task.ID, r)
		}
	}()
	return wp.executor.Execute(wp.ctx, task.Request)
}

// Submit queues a task. It blocks while the queue is full and must not be
// called after Close.
func (wp *WorkerPool) Submit(task Task) error {
	if err := wp.ctx.Err(); err != nil {
		return err
	}
	select {
	case wp.taskQueue <- task:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the results channel. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan TaskResult {
	return wp.results
}

// Close stops accepting tasks and lets the workers finish the queued ones.
func (wp *WorkerPool) Close() {
	close(wp.taskQueue)
}

// Wait blocks until every worker has exited, then closes Results.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
	wp.stopOnce.Do(func() {
		wp.cancel()
		close(wp.results)
	})
}

// Stop cancels the pool, abandoning queued tasks.
func (wp *WorkerPool) Stop() {
	wp.cancel()
	wp.wg.Wait()
	wp.stopOnce.Do(func() {
		close(wp.results)
	})
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	Processed int64
	Active    int64
	Failed    int64
	Workers   int
}

// Stats returns pool statistics
func (wp *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		Processed: atomic.LoadInt64(&wp.tasksProcessed),
		Active:    atomic.LoadInt64(&wp.tasksActive),
		Failed:    atomic.LoadInt64(&wp.tasksFailed),
		Workers:   wp.workers,
	}
}

// ExecuteBatch runs every request on a temporary pool of workers and returns
// the results in request order. Failed joins leave a nil result and
// contribute to the joined error. The whole batch is bounded by
// BatchTimeouts.Clamp(timeout).
func (e *Executor) ExecuteBatch(ctx context.Context, workers int, timeout time.Duration, reqs ...JoinRequest) ([]*JoinResult, error) {
	ctx, cancel := context.WithTimeout(ctx, BatchTimeouts.Clamp(timeout))
	defer cancel()

	pool := NewWorkerPool(ctx, e, workers)
	pool.Start()

	results := make([]*JoinResult, len(reqs))
	errs := make([]error, len(reqs))
	index := make(map[string]int, len(reqs))
	for i := range reqs {
		index[taskID(i)] = i
	}

	var collected sync.WaitGroup
	collected.Add(1)
	go func() {
		defer collected.Done()
		for res := range pool.Results() {
			i := index[res.TaskID]
			results[i], errs[i] = res.Result, res.Error
		}
	}()

	var submitErr error
	for i, req := range reqs {
		if err := pool.Submit(Task{ID: taskID(i), Request: req}); err != nil {
			submitErr = errors.Wrapf(err, "submitting join %d", i)
			break
		}
	}
	pool.Close()
	pool.Wait()
	collected.Wait()

	var failed []error
	if submitErr != nil {
		failed = append(failed, submitErr)
	}
	for i, err := range errs {
		if err == nil && results[i] == nil {
			err = errors.Wrapf(errNotExecuted, "batch stopped (%v)", context.Cause(ctx))
		}
		if err != nil {
			failed = append(failed, errors.Wrapf(err, "join %d", i))
		}
	}
	return results, errors.Join(failed...)
}

var errNotExecuted = errors.New("join was not executed")

func taskID(i int) string {
	return "join-" + strconv.Itoa(i)
}
