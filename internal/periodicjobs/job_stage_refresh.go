/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package periodicjobs

import (
	"context"
	"time"

	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
)

const (
	// StageRefreshJobName is the unique identifier for the directory refresh job.
	StageRefreshJobName = "stage_directory_refresh"
)

// StageRefreshJob keeps the directory table of an external stage in sync with
// its bucket when S3 event notifications are not set up for AUTO_REFRESH.
type StageRefreshJob struct {
	orchestrator *setup.Orchestrator
	interval     time.Duration
}

// NewStageRefreshJob creates a refresh job for the orchestrator's stage
func NewStageRefreshJob(orchestrator *setup.Orchestrator, interval time.Duration) *StageRefreshJob {
	return &StageRefreshJob{
		orchestrator: orchestrator,
		interval:     interval,
	}
}

// AddToPeriodicTaskManager registers this job with the provided periodic task manager.
func (j *StageRefreshJob) AddToPeriodicTaskManager(mgr *PeriodicTaskManager) {
	mgr.AddTask(j)
}

func (j *StageRefreshJob) GetInterval() time.Duration {
	return j.interval
}

func (j *StageRefreshJob) GetName() string {
	return StageRefreshJobName
}

// Run refreshes the stage directory. Internal stages have nothing to sync.
func (j *StageRefreshJob) Run(ctx context.Context) error {
	stage := j.orchestrator.Plan().Stage
	log := logger.Logger(ctx).WithField("stage", stage.FullName())

	if !j.orchestrator.Plan().External() {
		log.Debug("internal stage, skipping directory refresh")
		return nil
	}

	if err := j.orchestrator.RefreshStage(ctx, stage); err != nil {
		return err
	}
	log.Info("stage directory refreshed")
	return nil
}
