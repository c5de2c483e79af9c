package recurring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RunLockKey guards the generator batch so overlapping scheduler ticks
// cannot double-generate for the same due date.
const RunLockKey = "recurring:run:lock"

// runLockTTL caps how long a crashed run can hold the lock.
const runLockTTL = 10 * time.Minute

// GeneratorJob is the asynq handler for the scheduled generation batch.
type GeneratorJob struct {
	Service *Service
	Redis   *redis.Client
	Logger  *slog.Logger
}

// NewGeneratorJob initialises the generator handler.
func NewGeneratorJob(service *Service, rdb *redis.Client, logger *slog.Logger) *GeneratorJob {
	return &GeneratorJob{Service: service, Redis: rdb, Logger: logger}
}

// Handle runs one generation batch under the redis run lock. A tick
// that loses the lock skips quietly; the due schedules stay due and the
// next tick picks them up.
func (j *GeneratorJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("recurring: generator not configured")
	}
	logger := j.logger()

	if j.Redis != nil {
		acquired, err := j.Redis.SetNX(ctx, RunLockKey, time.Now().UTC().Format(time.RFC3339), runLockTTL).Result()
		if err != nil {
			return err
		}
		if !acquired {
			logger.Info("generation run already in progress, skipping")
			return nil
		}
		defer j.Redis.Del(context.WithoutCancel(ctx), RunLockKey)
	}

	start := time.Now()
	report, err := j.Service.ProcessDue(ctx)
	if err != nil {
		logger.Error("generation batch failed", slog.Any("error", err))
		return err
	}

	logger.Info("generation batch completed",
		slog.Int("processed", report.Processed),
		slog.Int("generated", report.Generated),
		slog.Int("deactivated", report.Deactivated),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *GeneratorJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "recurring:generate"))
	}
	return slog.Default().With(slog.String("job", "recurring:generate"))
}
