package periodicjobs

import (
	"context"
	"errors"
	"time"

	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	runOnceInterval time.Duration = 0
)

// RunAll starts every task in its own goroutine. Tasks tick at their own
// interval until ctx is canceled; an interval of 0 runs the task once.
func (p *PeriodicTaskManager) RunAll(ctx context.Context) error {
	logger.Logger(ctx).WithField("tasks", len(p.Tasks)).Info("running periodic tasks")

	for _, task := range p.Tasks {
		go p.runTask(ctx, task)
	}
	return nil
}

func (*PeriodicTaskManager) runTask(ctx context.Context, task PeriodicTask) {
	interval := task.GetInterval()
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"task":     task.GetName(),
		"interval": interval.String(),
	})

	run := func() {
		log.Info("running periodic task")
		taskCtx := logger.WithRunId(ctx, logger.NewRunId())
		if err := task.Run(taskCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("error running periodic task")
		}
	}

	if interval == runOnceInterval {
		run()
		log.Info("task configured to run only once, exiting")
		return
	}

	// first run is immediate, then once per interval
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping periodic task")
			return
		case <-ticker.C:
			run()
		}
	}
}
