package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"distill/internal/config"
	"distill/internal/logging"
	"distill/internal/queue"
	"distill/internal/services"
)

// Handler executes one task type. The dispatcher converts the returned
// error into retry or terminal-failure bookkeeping; handlers never touch
// task rows themselves.
type Handler interface {
	Handle(ctx context.Context, task *queue.Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *queue.Task) error

func (f HandlerFunc) Handle(ctx context.Context, task *queue.Task) error {
	return f(ctx, task)
}

// ContentProcessor is the slice of the content worker the dispatcher
// drives; satisfied by *processor.Processor.
type ContentProcessor interface {
	Process(ctx context.Context, item *queue.ContentItem, workerID string) error
}

// Dispatcher owns the background loops: task workers that dequeue and
// route by task type, a content poller that claims unworked items in
// batches, and a sweeper that releases stale claims.
type Dispatcher struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	processor ContentProcessor

	handlers  map[queue.TaskType]Handler
	taskTypes []queue.TaskType

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	sweepInterval      time.Duration
	claimTimeout       time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a dispatcher with no handlers registered.
func New(cfg *config.Config, store *queue.Store, processor ContentProcessor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:                cfg,
		store:              store,
		logger:             logging.NewComponentLogger(logger, "dispatch"),
		processor:          processor,
		handlers:           make(map[queue.TaskType]Handler),
		pollInterval:       time.Duration(cfg.Workflow.PollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		sweepInterval:      time.Duration(cfg.Workflow.StaleSweepInterval) * time.Second,
		claimTimeout:       time.Duration(cfg.Workflow.CheckoutTimeout) * time.Second,
	}
}

// RegisterHandler binds a handler to a task type. Registration after
// Start is not supported.
func (d *Dispatcher) RegisterHandler(taskType queue.TaskType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[taskType]; !exists {
		d.taskTypes = append(d.taskTypes, taskType)
	}
	d.handlers[taskType] = handler
}

// Start launches the background loops.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return errors.New("dispatcher already running")
	}
	if len(d.handlers) == 0 {
		d.mu.Unlock()
		return errors.New("no task handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true

	workerCount := d.cfg.Workflow.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	d.wg.Add(workerCount + 2)
	d.mu.Unlock()

	for i := 0; i < workerCount; i++ {
		workerID := fmt.Sprintf("worker-%s", uuid.NewString())
		go d.runWorker(runCtx, workerID)
	}
	go d.runContentPoller(runCtx)
	go d.runSweeper(runCtx)

	d.logger.Info("dispatcher started",
		logging.Int("workers", workerCount),
		logging.Int("handlers", len(d.handlers)))
	return nil
}

// Stop terminates background processing and waits for in-flight work.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Running reports whether the background loops are active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Dispatcher) runWorker(ctx context.Context, workerID string) {
	defer d.wg.Done()
	logger := d.logger.With(logging.String(logging.FieldWorkerID, workerID))

	// Shutdown is observed at the poll boundary only. A dequeued task runs
	// to completion under workCtx, which Stop does not cancel, so its
	// handler and bookkeeping always finish and the row never strands in
	// processing with a dead claimant.
	workCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := d.store.Dequeue(ctx, workerID, d.taskTypes...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("dequeue failed", logging.Error(err))
			d.sleep(ctx, d.errorRetryInterval)
			continue
		}
		if task == nil {
			d.sleep(ctx, d.pollInterval)
			continue
		}

		d.executeTask(workCtx, logger, workerID, task)
	}
}

func (d *Dispatcher) executeTask(ctx context.Context, logger *slog.Logger, workerID string, task *queue.Task) {
	ctx = services.WithTaskID(ctx, task.ID)
	ctx = services.WithWorkerID(ctx, workerID)
	taskLogger := logging.WithContext(ctx, logger).With(
		logging.String(logging.FieldTaskType, string(task.TaskType)))

	handler, ok := d.handlers[task.TaskType]
	if !ok {
		// Dequeue filters on registered types, so this is a config race.
		d.finishTask(ctx, taskLogger, task,
			services.Wrap(services.ErrConfiguration, "dispatch", "route",
				"no handler for task type "+string(task.TaskType), nil))
		return
	}

	taskLogger.Info("task started")
	err := d.invokeHandler(ctx, handler, task)
	if err == nil {
		if _, completeErr := d.store.CompleteTask(ctx, task.ID, true, ""); completeErr != nil {
			taskLogger.Error("complete task", logging.Error(completeErr))
		}
		taskLogger.Info("task finished")
		return
	}
	d.finishTask(ctx, taskLogger, task, err)
}

// invokeHandler contains panics from handler code so one bad task cannot
// take down a worker loop.
func (d *Dispatcher) invokeHandler(ctx context.Context, handler Handler, task *queue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrPermanent, "dispatch", "handle",
				fmt.Sprintf("panic in %s handler: %v", task.TaskType, r), nil)
		}
	}()
	return handler.Handle(ctx, task)
}

// finishTask records a handler failure: permanent errors fail the task
// outright, transient ones go through the bounded retry path. A task that
// exhausts its budget drags its content item down with it.
func (d *Dispatcher) finishTask(ctx context.Context, logger *slog.Logger, task *queue.Task, err error) {
	if services.IsPermanent(err) {
		logger.Error("task failed permanently", logging.Error(err))
		if _, completeErr := d.store.CompleteTask(ctx, task.ID, false, err.Error()); completeErr != nil {
			logger.Error("record task failure", logging.Error(completeErr))
		}
		d.failTaskContent(ctx, logger, task, err)
		return
	}

	status, retryErr := d.store.RetryTask(ctx, task.ID, err.Error(), d.cfg.Workflow.MaxRetries)
	if retryErr != nil {
		logger.Error("retry task", logging.Error(retryErr))
		return
	}
	if status == queue.TaskFailed {
		logger.Error("task retries exhausted", logging.Error(err))
		d.failTaskContent(ctx, logger, task, err)
		return
	}
	logger.Warn("task will retry", logging.Error(err))
}

func (d *Dispatcher) failTaskContent(ctx context.Context, logger *slog.Logger, task *queue.Task, err error) {
	if task.ContentID == nil {
		return
	}
	if failErr := d.store.FailContent(ctx, *task.ContentID, err.Error()); failErr != nil {
		logger.Error("fail content for dead task",
			logging.Int64(logging.FieldItemID, *task.ContentID),
			logging.Error(failErr))
	}
}

// runContentPoller claims unworked content items in batches and runs the
// content worker on them. Collectors that insert rows without enqueueing a
// task still get picked up here.
func (d *Dispatcher) runContentPoller(ctx context.Context) {
	defer d.wg.Done()
	workerID := fmt.Sprintf("poller-%s", uuid.NewString())
	logger := d.logger.With(logging.String(logging.FieldWorkerID, workerID))

	// Same split as the task workers: ctx gates polling, workCtx carries
	// claimed items through processing and claim release during shutdown.
	workCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		items, err := d.store.CheckoutBatch(ctx, workerID, nil, d.cfg.Workflow.CheckoutBatchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("checkout batch failed", logging.Error(err))
			d.sleep(ctx, d.errorRetryInterval)
			continue
		}
		if len(items) == 0 {
			d.sleep(ctx, d.pollInterval)
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				// Shutdown mid-batch: release unstarted claims so the
				// sweeper does not have to wait them out.
				if _, err := d.store.Checkin(workCtx, item.ID, workerID, queue.StatusPending, ""); err != nil {
					logger.Error("release claim on shutdown", logging.Error(err))
				}
				continue
			}
			if err := d.processItem(workCtx, item, workerID); err != nil {
				logger.Warn("content item did not complete", logging.Error(err))
			}
		}
	}
}

// processItem contains panics the same way invokeHandler does; the claim
// is released through the worker's own checkin paths.
func (d *Dispatcher) processItem(ctx context.Context, item *queue.ContentItem, workerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing item %d: %v", item.ID, r)
			if _, checkinErr := d.store.Checkin(ctx, item.ID, workerID, queue.StatusFailed, err.Error()); checkinErr != nil {
				d.logger.Error("checkin after panic", logging.Error(checkinErr))
			}
		}
	}()
	return d.processor.Process(ctx, item, workerID)
}

// runSweeper periodically returns stale claims to the queue so work held
// by crashed or wedged workers becomes claimable again.
func (d *Dispatcher) runSweeper(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-d.claimTimeout)
	released, err := d.store.ReleaseStaleCheckouts(ctx, cutoff)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("release stale checkouts", logging.Error(err))
	} else if released > 0 {
		d.logger.Warn("released stale checkouts", logging.Int64("count", released))
	}

	requeued, err := d.store.ReleaseStaleTasks(ctx, cutoff)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("release stale tasks", logging.Error(err))
	} else if requeued > 0 {
		d.logger.Warn("released stale tasks", logging.Int64("count", requeued))
	}
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}
}
