package usecase

import (
	"context"

	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/queue"
)

// RefreshMsgType is the queue message type that triggers a refresh cycle.
const RefreshMsgType = "index.refresh"

// RefreshJob adapts the refresh cycle to the queue worker contract so
// scheduled and on-demand refreshes share one code path.
type RefreshJob struct {
	refresh *Refresh
	logger  *applogger.Logger
}

var _ queue.Job = (*RefreshJob)(nil)

func NewRefreshJob(refresh *Refresh, l *applogger.Logger) *RefreshJob {
	return &RefreshJob{refresh: refresh, logger: l}
}

func (j *RefreshJob) Name() string { return "refresh" }

func (j *RefreshJob) Type() string { return RefreshMsgType }

// Handle runs one refresh cycle followed by retention cleanup. The
// payload carries no parameters; the cycle is fully configured at wire
// time, which keeps replays idempotent.
func (j *RefreshJob) Handle(ctx context.Context, _ interface{}) error {
	report, err := j.refresh.Run(ctx)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("refresh job failed", applogger.Error(err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("refresh job done",
			applogger.Strings("failed", report.Failed),
			applogger.Int("index_dates", report.IndexDates),
		)
	}
	if err := j.refresh.Cleanup(ctx); err != nil && j.logger != nil {
		j.logger.Warn("retention cleanup failed", applogger.Error(err))
	}
	return nil
}
