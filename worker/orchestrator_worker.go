package worker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"liquidreach/engine"
)

// OrchestratorWorker drives the periodic scheduler sweep. The period is a
// deployment parameter, not a correctness requirement.
type OrchestratorWorker struct {
	engine   *engine.Engine
	interval time.Duration
	logger   *logrus.Logger
}

func NewOrchestratorWorker(eng *engine.Engine, interval time.Duration, logger *logrus.Logger) *OrchestratorWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &OrchestratorWorker{
		engine:   eng,
		interval: interval,
		logger:   logger,
	}
}

func (ow *OrchestratorWorker) Start(ctx context.Context) {
	// Let the server finish coming up before the first sweep.
	select {
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
		return
	}

	ow.logger.Info("orchestrator worker started")

	ticker := time.NewTicker(ow.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ow.logger.Info("orchestrator worker shutting down")
			return
		case <-ticker.C:
			if err := ow.engine.RunScheduler(ctx); err != nil {
				ow.logger.WithError(err).Error("scheduler sweep failed")
				sentry.CaptureException(err)
			}
		}
	}
}
