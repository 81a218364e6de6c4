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
	"fmt"
	"time"

	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/config"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
)

const (
	defaultHealthRetries    = 5
	defaultHealthRetryDelay = 2 * time.Second
)

// Scheduler starts the serve mode jobs once their dependencies are healthy
type Scheduler struct {
	taskManager *PeriodicTaskManager
	cacheClient cache.Cache

	healthRetries    int
	healthRetryDelay time.Duration
}

// NewScheduler registers the enabled jobs for the orchestrator's stage
func NewScheduler(orchestrator *setup.Orchestrator, jobs config.Jobs, cacheClient cache.Cache) *Scheduler {
	taskManager := NewPeriodicTaskManager()

	if jobs.StageRefresh.Enabled {
		NewStageRefreshJob(orchestrator, jobs.StageRefresh.Interval()).AddToPeriodicTaskManager(taskManager)
	}
	if jobs.VerificationProbe.Enabled {
		NewVerificationProbeJob(orchestrator, jobs.VerificationProbe.Interval()).AddToPeriodicTaskManager(taskManager)
	}

	return &Scheduler{
		taskManager:      taskManager,
		cacheClient:      cacheClient,
		healthRetries:    defaultHealthRetries,
		healthRetryDelay: defaultHealthRetryDelay,
	}
}

// Tasks returns the names of the registered jobs
func (s *Scheduler) Tasks() []string {
	names := make([]string, 0, len(s.taskManager.Tasks))
	for _, t := range s.taskManager.Tasks {
		names = append(names, t.GetName())
	}
	return names
}

// Start waits for the cache and launches every job. It returns once the jobs
// are running; they stop when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logger.Logger(ctx)

	if len(s.taskManager.Tasks) == 0 {
		log.Info("no periodic jobs enabled")
		return nil
	}

	if err := s.waitForCacheHealth(ctx); err != nil {
		log.WithError(err).Error("failed to wait for dependencies")
		return fmt.Errorf("cache health check failed: %w", err)
	}

	if err := s.taskManager.RunAll(ctx); err != nil {
		log.WithError(err).Error("error occurred while running periodic tasks")
		return err
	}

	log.WithField("tasks", s.Tasks()).Info("periodic tasks started")
	return nil
}

// waitForCacheHealth performs a set/get round trip against the cache with retries
func (s *Scheduler) waitForCacheHealth(ctx context.Context) error {
	if s.cacheClient == nil {
		return nil
	}
	log := logger.Logger(ctx)

	for i := 0; i < s.healthRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		testKey := fmt.Sprintf("health_check_%d", time.Now().UnixNano())

		err := s.cacheClient.Set(ctx, testKey, "healthy", 30*time.Second)
		if err == nil {
			_, err = s.cacheClient.Get(ctx, testKey)
		}
		if err != nil {
			log.WithError(err).WithField("attempt", i+1).Warn("cache health check failed, retrying")
			if i < s.healthRetries-1 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("cache health check aborted: %w", ctx.Err())
				case <-time.After(s.healthRetryDelay):
				}
			}
			continue
		}

		_ = s.cacheClient.Delete(ctx, testKey)
		log.WithField("attempt", i+1).Info("cache health check passed")
		return nil
	}

	return fmt.Errorf("cache not healthy after %d attempts", s.healthRetries)
}
