package jobs

import (
	"github.com/vytor/bizquest/internal/worker"
)

// WorkerQueue implements JobQueue using a worker pool
type WorkerQueue struct {
	pool      *worker.Pool
	evaluator worker.AchievementEvaluator
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(pool *worker.Pool, evaluator worker.AchievementEvaluator) JobQueue {
	return &WorkerQueue{pool: pool, evaluator: evaluator}
}

func (q *WorkerQueue) EnqueueAchievementCheck(userID string) error {
	return q.pool.Submit(&worker.EvaluateAchievementsJob{
		Evaluator: q.evaluator,
		UserID:    userID,
	})
}
