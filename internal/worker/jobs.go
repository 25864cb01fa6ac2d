package worker

import (
	"context"

	"github.com/vytor/bizquest/internal/logger"
)

// AchievementEvaluator is implemented by the achievement service.
// Declared here so the worker package does not import services.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID string) ([]string, error)
}

// EvaluateAchievementsJob checks a user's achievements after progress changes.
type EvaluateAchievementsJob struct {
	Evaluator AchievementEvaluator
	UserID    string
}

func (j *EvaluateAchievementsJob) Name() string { return "evaluate_achievements" }

func (j *EvaluateAchievementsJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField("user_id", j.UserID)
	unlocked, err := j.Evaluator.Evaluate(ctx, j.UserID)
	if err != nil {
		return err
	}
	if len(unlocked) > 0 {
		log.Info("unlocked %d achievements: %v", len(unlocked), unlocked)
	}
	return nil
}
