package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxestimator-api/internal/obs"
)

// NewMux routes reminder tasks to their handlers.
func NewMux(scanner *Scanner, notifier *Notifier, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(taskLogging(logger))
	mux.HandleFunc(TypeReminderScan, scanner.HandleScan)
	mux.HandleFunc(TypeReminderNotify, notifier.HandleNotify)
	return mux
}

// taskLogging attaches a task-scoped logger to the context and logs failures.
func taskLogging(base zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			lc := base.With().Str("task_type", task.Type())
			if id, ok := asynq.GetTaskID(ctx); ok {
				lc = lc.Str("task_id", id)
			}
			if retry, ok := asynq.GetRetryCount(ctx); ok && retry > 0 {
				lc = lc.Int("retry", retry)
			}
			logger := lc.Logger()
			ctx = logger.WithContext(ctx)

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			evt := logger.Debug()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			evt.Float64("duration_ms", obs.DurationMillis(time.Since(start))).Msg("task processed")
			return err
		})
	}
}

// AsynqLogger adapts zerolog to asynq.Logger.
type AsynqLogger struct {
	Logger zerolog.Logger
}

func (l AsynqLogger) Debug(args ...any) { l.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Info(args ...any)  { l.Logger.Info().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Warn(args ...any)  { l.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Error(args ...any) { l.Logger.Error().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Fatal(args ...any) { l.Logger.Fatal().Msg(fmt.Sprint(args...)) }

var _ asynq.Logger = AsynqLogger{}
