package tasks

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
)

// MaxAttempts bounds how many times a task is requeued after exhausting its in-process retries.
const MaxAttempts = 3

// Worker drains the crop queue. Failures are logged and never reach the uploader.
type Worker struct {
	queue        *Queue
	storage      *utils.Storage
	concurrency  int
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewWorker(queue *Queue, storage *utils.Storage, concurrency int, logger *zap.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:        queue,
		storage:      storage,
		concurrency:  concurrency,
		pollInterval: time.Second,
		logger:       logger.Named("crop_worker"),
	}
}

// Run processes batches until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Crop worker started", zap.Int("concurrency", w.concurrency))
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		n, err := w.ProcessBatch(ctx)
		if err != nil {
			w.logger.Error("Failed to process crop batch", zap.Error(err))
		}
		if n > 0 && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Crop worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch crops up to one task per goroutine and returns how many tasks were taken.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := w.queue.Pop(ctx, w.concurrency)
	if err != nil || len(batch) == 0 {
		return 0, err
	}

	p := pool.New().WithMaxGoroutines(w.concurrency)
	for _, task := range batch {
		p.Go(func() {
			w.handle(ctx, task)
		})
	}
	p.Wait()
	return len(batch), nil
}

func (w *Worker) handle(ctx context.Context, task CropTask) {
	start := time.Now()
	err := w.process(ctx, task)
	if err == nil {
		w.logger.Debug("Cropped image",
			zap.String("id", task.ID.String()),
			zap.String("path", task.Path),
			zap.Duration("took", time.Since(start)))
		return
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) || task.Attempt+1 >= MaxAttempts || ctx.Err() != nil {
		w.logger.Error("Crop task failed",
			zap.String("id", task.ID.String()),
			zap.String("path", task.Path),
			zap.Int("attempt", task.Attempt),
			zap.Error(err))
		return
	}

	task.Attempt++
	task.EnqueuedAt = time.Now()
	if err := w.queue.push(ctx, task); err != nil {
		w.logger.Error("Failed to requeue crop task", zap.String("path", task.Path), zap.Error(err))
	}
}

// process crops one upload, retrying transient filesystem errors.
func (w *Worker) process(ctx context.Context, task CropTask) error {
	src := w.storage.Abs(task.Path)
	dst := w.storage.Abs(utils.CropPath(task.Path))

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(10*time.Second),
	), 3)

	return backoff.Retry(func() error {
		err := CropFile(src, dst)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrUnsupportedImage), errors.Is(err, os.ErrNotExist):
			// the upload is gone or not an image
			return backoff.Permanent(err)
		default:
			return err
		}
	}, backoff.WithContext(b, ctx))
}
