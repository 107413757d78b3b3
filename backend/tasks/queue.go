package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// CropQueueKey is the sorted set holding pending crops, scored by enqueue time.
const CropQueueKey = "tasks:center_crop"

// CropTask asks for the square crop of a stored upload.
type CropTask struct {
	ID         uuid.UUID `json:"id"`
	Path       string    `json:"path"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Attempt    int       `json:"attempt"`
}

// Queue is a FIFO of crop tasks in Redis.
type Queue struct {
	client rueidis.Client
	logger *zap.Logger
}

func NewQueue(client rueidis.Client, logger *zap.Logger) *Queue {
	return &Queue{
		client: client,
		logger: logger.Named("crop_queue"),
	}
}

// Enqueue schedules a crop of the upload at path (relative to the media root).
func (q *Queue) Enqueue(ctx context.Context, path string) error {
	return q.push(ctx, CropTask{
		ID:         uuid.New(),
		Path:       path,
		EnqueuedAt: time.Now(),
	})
}

func (q *Queue) push(ctx context.Context, task CropTask) error {
	data, err := sonic.Marshal(task)
	if err != nil {
		q.logger.Error("Failed to marshal crop task", zap.Error(err))
		return err
	}

	score := float64(task.EnqueuedAt.UnixMicro())
	err = q.client.Do(ctx,
		q.client.B().Zadd().Key(CropQueueKey).ScoreMember().ScoreMember(score, string(data)).Build(),
	).Error()
	if err != nil {
		q.logger.Error("Failed to enqueue crop task", zap.String("path", task.Path), zap.Error(err))
		return fmt.Errorf("failed to enqueue crop of %s: %w", task.Path, err)
	}

	q.logger.Debug("Enqueued crop task", zap.String("id", task.ID.String()), zap.String("path", task.Path))
	return nil
}

// Pop removes and returns up to n of the oldest tasks.
func (q *Queue) Pop(ctx context.Context, n int) ([]CropTask, error) {
	scores, err := q.client.Do(ctx,
		q.client.B().Zpopmin().Key(CropQueueKey).Count(int64(n)).Build(),
	).AsZScores()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop crop tasks: %w", err)
	}

	tasks := make([]CropTask, 0, len(scores))
	for _, s := range scores {
		var task CropTask
		if err := sonic.Unmarshal([]byte(s.Member), &task); err != nil {
			q.logger.Warn("Dropping malformed crop task", zap.String("raw", s.Member), zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Len returns the number of pending tasks.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.Do(ctx, q.client.B().Zcard().Key(CropQueueKey).Build()).ToInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to get crop queue length: %w", err)
	}
	return n, nil
}
