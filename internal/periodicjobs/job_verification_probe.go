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
	"github.com/sirupsen/logrus"
)

const (
	// VerificationProbeJobName is the unique identifier for the verification job.
	VerificationProbeJobName = "verification_probe"
)

// VerificationProbeJob re-runs the AI_EXTRACT smoke test so a revoked grant or
// an emptied stage shows up in the recorded report.
type VerificationProbeJob struct {
	orchestrator *setup.Orchestrator
	interval     time.Duration
}

// NewVerificationProbeJob creates a verification job for the orchestrator's stage
func NewVerificationProbeJob(orchestrator *setup.Orchestrator, interval time.Duration) *VerificationProbeJob {
	return &VerificationProbeJob{
		orchestrator: orchestrator,
		interval:     interval,
	}
}

// AddToPeriodicTaskManager registers this job with the provided periodic task manager.
func (j *VerificationProbeJob) AddToPeriodicTaskManager(mgr *PeriodicTaskManager) {
	mgr.AddTask(j)
}

func (j *VerificationProbeJob) GetInterval() time.Duration {
	return j.interval
}

func (j *VerificationProbeJob) GetName() string {
	return VerificationProbeJobName
}

// Run executes the verify step and records its report
func (j *VerificationProbeJob) Run(ctx context.Context) error {
	report, err := j.orchestrator.RunVerification(ctx)
	if err != nil {
		return err
	}

	fields := logrus.Fields{"durationMs": report.DurationMs}
	if v := report.Verification; v != nil {
		fields["files"] = len(v.Files)
		fields["probedFile"] = v.ProbedFile
	}
	log := logger.Logger(ctx).WithFields(fields)
	for _, w := range report.Warnings {
		log.Warn(w)
	}
	log.Info("verification probe passed")
	return nil
}
