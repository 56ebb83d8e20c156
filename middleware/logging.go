package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/batchgate/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *job.Request, next Handler) error {
		logger.Info("job started",
			slog.String("job_id", req.SequenceID),
			slog.String("job_type", req.TypeCode),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("job_id", req.SequenceID),
				slog.String("job_type", req.TypeCode),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job_id", req.SequenceID),
				slog.String("job_type", req.TypeCode),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
