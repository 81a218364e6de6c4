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

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/config"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
)

const serviceName = "cortexstage-api"

type Handlers struct {
	config       *config.AppConfig
	orchestrator *setup.Orchestrator
	cache        cache.Cache
}

func NewHandlers(cfg *config.AppConfig, orchestrator *setup.Orchestrator, c cache.Cache) *Handlers {
	return &Handlers{
		config:       cfg,
		orchestrator: orchestrator,
		cache:        c,
	}
}

type runSummary struct {
	RunID     string `json:"runId"`
	Succeeded bool   `json:"succeeded"`
	Failed    string `json:"failedStep,omitempty"`
}

type verificationSummary struct {
	Status setup.StepStatus `json:"status"`
	Kind   setup.Kind       `json:"kind,omitempty"`
}

// GetStatus reports liveness together with the outcome of the latest runs
func (h *Handlers) GetStatus(c *gin.Context) {
	plan := h.orchestrator.Plan()
	response := gin.H{
		"service": serviceName,
		"status":  "running",
		"version": h.config.App.Version,
		"stage":   plan.Stage.FullName(),
		"mode":    plan.Stage.Mode,
	}

	if report, err := h.orchestrator.LastReport(c.Request.Context()); err == nil {
		summary := runSummary{RunID: report.RunID, Succeeded: report.Succeeded}
		if failed := report.Failed(); failed != nil {
			summary.Failed = failed.Step
		}
		response["lastRun"] = summary
	}
	if v, err := h.orchestrator.LastVerification(c.Request.Context()); err == nil {
		response["lastVerification"] = verificationSummary{Status: v.Status, Kind: v.Kind}
	}

	c.JSON(http.StatusOK, response)
}

// GetReport returns the report of the most recent setup run
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.orchestrator.LastReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// PostVerify runs the verification probe now
func (h *Handlers) PostVerify(c *gin.Context) {
	ctx := logger.WithRunId(c.Request.Context(), logger.NewRunId())
	if clientID := c.GetString("clientId"); clientID != "" {
		ctx = logger.AddValueToContextLogger(ctx, "clientId", clientID)
	}

	report, err := h.orchestrator.RunVerification(ctx)
	if err != nil {
		logger.Logger(ctx).WithError(err).Warn("on demand verification failed")
		c.JSON(http.StatusFailedDependency, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetTrustPolicy renders the IAM documents from the identifiers cached by the
// last trust step
func (h *Handlers) GetTrustPolicy(c *gin.Context) {
	plan := h.orchestrator.Plan()
	if !plan.External() {
		c.JSON(http.StatusNotFound, gin.H{"error": "internal stages do not use a storage integration"})
		return
	}

	ids, err := setup.LoadTrust(c.Request.Context(), h.cache, plan.Integration.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, setup.ErrTrustNotCached) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	policies, err := setup.BuildPolicies(*ids, plan.Integration.RoleARN, plan.Integration.AllowedLocations)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, policies)
}

// GetIntegrations lists the trust identifiers cached for every integration
func (h *Handlers) GetIntegrations(c *gin.Context) {
	all, err := setup.ListTrust(c.Request.Context(), h.cache)
	if err != nil {
		logger.Logger(c.Request.Context()).WithError(err).Error("error listing cached integrations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": all})
}
