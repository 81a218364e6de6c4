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

package setup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/ddl"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Executor runs one SQL statement against the account
//
//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks . Executor
type Executor interface {
	Execute(ctx context.Context, statement string) (*snowflake.Result, error)
}

// Orchestrator runs the setup steps of a plan in order and fails fast
type Orchestrator struct {
	exec  Executor
	plan  *Plan
	cache cache.Cache
	now   func() time.Time

	mu               sync.RWMutex
	lastReport       *Report
	lastVerification *StepReport
}

// NewOrchestrator returns an orchestrator for plan. c may be nil, in which case
// nothing is cached between runs.
func NewOrchestrator(exec Executor, plan *Plan, c cache.Cache) *Orchestrator {
	return &Orchestrator{
		exec:  exec,
		plan:  plan,
		cache: c,
		now:   time.Now,
	}
}

// Plan returns the plan the orchestrator executes
func (o *Orchestrator) Plan() *Plan {
	return o.plan
}

// stepRecord collects what a step did for its report
type stepRecord struct {
	statements []string
	warnings   []string
}

type recordKey struct{}

func withRecord(ctx context.Context) (context.Context, *stepRecord) {
	rec := &stepRecord{}
	return context.WithValue(ctx, recordKey{}, rec), rec
}

func recordFrom(ctx context.Context) *stepRecord {
	if rec, ok := ctx.Value(recordKey{}).(*stepRecord); ok {
		return rec
	}
	return nil
}

// warn logs a non fatal finding and attaches it to the step report
func warn(ctx context.Context, msg string) {
	logger.Logger(ctx).Warn(msg)
	if rec := recordFrom(ctx); rec != nil {
		rec.warnings = append(rec.warnings, msg)
	}
}

// execute sends one statement and counts it
func (o *Orchestrator) execute(ctx context.Context, statement string) (*snowflake.Result, error) {
	if rec := recordFrom(ctx); rec != nil {
		rec.statements = append(rec.statements, statement)
	}

	result, err := o.exec.Execute(ctx, statement)
	if err != nil {
		statementTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	statementTotal.WithLabelValues("success").Inc()
	return result, nil
}

// EnsureNamespace creates the database and schema if they do not exist
func (o *Orchestrator) EnsureNamespace(ctx context.Context, ns ddl.Namespace) error {
	log := logger.Logger(ctx).WithFields(logrus.Fields{"step": StepNamespace, "namespace": ns.String()})

	if err := ns.Validate(); err != nil {
		return &Diagnostic{Step: StepNamespace, Kind: KindInvalidConfiguration, Object: ns.String(), Cause: err,
			Remedy: "set setup.database and setup.schema"}
	}

	for _, statement := range []string{ns.CreateDatabase(), ns.CreateSchema()} {
		if _, err := o.execute(ctx, statement); err != nil {
			log.WithError(err).Error("error creating namespace")
			return o.diagnose(StepNamespace, ns.String(), err)
		}
	}

	log.Info("namespace ready")
	return nil
}

// CreateStage creates an internal or external stage. An external stage without
// a storage integration fails before any SQL is sent.
func (o *Orchestrator) CreateStage(ctx context.Context, stage ddl.Stage) error {
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"step":  StepStage,
		"stage": stage.FullName(),
		"mode":  stage.Mode,
	})

	if err := stage.Validate(); err != nil {
		log.WithError(err).Error("invalid stage")
		d := o.diagnose(StepStage, stage.FullName(), err)
		if d.Kind == KindStatementFailed {
			d.Kind = KindInvalidConfiguration
			d.Remedy = "fix setup.stage in the configuration"
		}
		return d
	}

	if _, err := o.execute(ctx, stage.Create()); err != nil {
		log.WithError(err).Error("error creating stage")
		return o.diagnose(StepStage, stage.FullName(), err)
	}

	log.Info("stage ready")
	return nil
}

// ConfigureTrust creates the storage integration and returns the identifiers
// the operator must copy into the IAM role trust policy. Closing that loop is
// manual; nothing here calls AWS.
func (o *Orchestrator) ConfigureTrust(ctx context.Context, integration ddl.StorageIntegration) (*TrustIdentifiers, error) {
	log := logger.Logger(ctx).WithFields(logrus.Fields{"step": StepTrust, "integration": integration.Name})

	if err := integration.Validate(); err != nil {
		log.WithError(err).Error("invalid storage integration")
		return nil, &Diagnostic{Step: StepTrust, Kind: KindInvalidConfiguration, Object: integration.Name, Cause: err,
			Remedy: "set setup.integration.name, role_arn and allowed_locations"}
	}

	if _, err := o.execute(ctx, integration.Create()); err != nil {
		log.WithError(err).Error("error creating storage integration")
		return nil, o.diagnose(StepTrust, integration.Name, err)
	}

	result, err := o.execute(ctx, integration.Describe())
	if err != nil {
		log.WithError(err).Error("error describing storage integration")
		return nil, o.diagnose(StepTrust, integration.Name, err)
	}

	props, err := snowflake.ParseIntegrationProperties(result)
	if err != nil {
		return nil, o.diagnose(StepTrust, integration.Name, err)
	}
	ids, err := trustFromProperties(integration.Name, props)
	if err != nil {
		return nil, o.diagnose(StepTrust, integration.Name, err)
	}

	// IF NOT EXISTS keeps an existing integration as is, including its role
	if ids.RoleARN != "" && !strings.EqualFold(ids.RoleARN, integration.RoleARN) {
		warn(ctx, fmt.Sprintf("integration %s already exists with role %s, not %s; the existing role is kept",
			integration.Name, ids.RoleARN, integration.RoleARN))
	}

	if o.cache != nil {
		if err := cache.SetJSON(ctx, o.cache, TrustKey(integration.Name), ids, cache.NoExpiration); err != nil {
			log.WithError(err).Warn("failed to cache trust identifiers")
		}
	}

	log.WithField("iamUserArn", ids.IAMUserARN).Info("storage integration ready; update the IAM role trust policy")
	return ids, nil
}

// GrantAccess applies the grant set for role in order and returns what was granted
func (o *Orchestrator) GrantAccess(ctx context.Context, role string, objects ddl.AccessObjects) ([]ddl.Grant, error) {
	log := logger.Logger(ctx).WithFields(logrus.Fields{"step": StepGrant, "role": role})

	if err := ddl.ValidateIdentifier("grantee role", role); err != nil {
		return nil, &Diagnostic{Step: StepGrant, Kind: KindInvalidConfiguration, Cause: err,
			Remedy: "set setup.grants.role"}
	}

	grants := ddl.AccessGrants(role, objects)
	for i, g := range grants {
		if _, err := o.execute(ctx, g.SQL()); err != nil {
			log.WithError(err).WithField("grant", g.String()).Error("error applying grant")
			return grants[:i], o.diagnose(StepGrant, g.ObjectType+" "+g.Object, err)
		}
	}

	log.WithField("grants", len(grants)).Info("grants applied")
	return grants, nil
}

// RefreshStage syncs the directory table of an external stage with its bucket
func (o *Orchestrator) RefreshStage(ctx context.Context, stage ddl.Stage) error {
	if stage.Mode != ddl.StageExternal {
		return nil
	}
	if _, err := o.execute(ctx, stage.Refresh()); err != nil {
		logger.Logger(ctx).WithError(err).WithField("stage", stage.FullName()).Error("error refreshing stage directory")
		return o.diagnose(StepStage, stage.FullName(), err)
	}
	return nil
}

// RunStep executes a single step of the plan and reports on it. The error is
// the step's *Diagnostic when it failed.
func (o *Orchestrator) RunStep(ctx context.Context, step string) (StepReport, error) {
	report := StepReport{Step: step}
	if o.plan.Skipped(step) {
		report.Status = StatusSkipped
		report.Note = "not needed for internal stages"
		return report, nil
	}

	stepCtx, rec := withRecord(logger.AddValueToContextLogger(ctx, "step", step))
	start := o.now()

	var err error
	switch step {
	case StepNamespace:
		err = o.EnsureNamespace(stepCtx, o.plan.Namespace())
	case StepStage:
		err = o.CreateStage(stepCtx, o.plan.Stage)
	case StepTrust:
		report.Trust, err = o.ConfigureTrust(stepCtx, o.plan.Integration)
	case StepGrant:
		var grants []ddl.Grant
		grants, err = o.GrantAccess(stepCtx, o.plan.Role, o.plan.AccessObjects())
		for _, g := range grants {
			report.Grants = append(report.Grants, g.String())
		}
	case StepVerify:
		report.Verification, err = o.Verify(stepCtx, o.plan.Stage, o.plan.Verify)
	default:
		err = fmt.Errorf("unknown step %q", step)
	}

	elapsed := o.now().Sub(start)
	report.DurationMs = elapsed.Milliseconds()
	report.Statements = rec.statements
	report.Warnings = rec.warnings

	var d *Diagnostic
	if err != nil {
		d = o.diagnose(step, "", err)
		report.Status = StatusFailed
		report.Error = d.Error()
		report.Kind = d.Kind
		report.Remedy = d.Remedy
	} else {
		report.Status = StatusSucceeded
	}

	stepTotal.WithLabelValues(step, string(report.Status)).Inc()
	stepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	if d != nil {
		return report, d
	}
	return report, nil
}

// Run executes every step in order and stops at the first failure. Steps after
// a failure are reported as skipped. The returned error is the failing step's
// *Diagnostic.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	runID := logger.RunIdFromContext(ctx)
	if runID == "" {
		runID = logger.NewRunId()
		ctx = logger.WithRunId(ctx, runID)
	}
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"stage": o.plan.Stage.FullName(),
		"mode":  o.plan.Stage.Mode,
	})

	report := &Report{
		RunID:     runID,
		Mode:      string(o.plan.Stage.Mode),
		Stage:     o.plan.Stage.FullName(),
		StartedAt: o.now(),
	}

	if err := o.plan.Validate(); err != nil {
		d := &Diagnostic{Step: StepNamespace, Kind: KindInvalidConfiguration, Cause: err,
			Remedy: "make the stage, integration and grant settings refer to the same objects"}
		for _, step := range o.plan.Steps() {
			report.Steps = append(report.Steps, StepReport{Step: step, Status: StatusSkipped})
		}
		report.Steps[0].Status = StatusFailed
		report.Steps[0].Error = d.Error()
		report.Steps[0].Kind = d.Kind
		report.Steps[0].Remedy = d.Remedy
		report.FinishedAt = o.now()
		o.saveReport(ctx, report)
		return report, d
	}

	log.Info("starting setup run")

	results := make(map[string]StepReport, len(o.plan.Steps()))
	var runErr error
	for _, step := range o.plan.ExecutionOrder() {
		if runErr != nil {
			results[step] = StepReport{Step: step, Status: StatusSkipped, Note: "an earlier step failed"}
			continue
		}
		results[step], runErr = o.RunStep(ctx, step)
		if runErr != nil {
			log.WithError(runErr).WithField("step", step).Error("setup stopped")
		}
	}

	for _, step := range o.plan.Steps() {
		r, ok := results[step]
		if !ok {
			r = StepReport{Step: step, Status: StatusSkipped, Note: "not needed for internal stages"}
		}
		report.Steps = append(report.Steps, r)
	}

	report.Succeeded = runErr == nil
	report.FinishedAt = o.now()
	o.saveReport(ctx, report)

	if runErr == nil {
		log.Info("setup run completed")
	}
	return report, runErr
}

// saveReport keeps the report in memory and, when configured, in the cache
func (o *Orchestrator) saveReport(ctx context.Context, report *Report) {
	o.mu.Lock()
	o.lastReport = report
	o.mu.Unlock()

	if o.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, o.cache, LastReportKey, report, cache.NoExpiration); err != nil {
		logger.Logger(ctx).WithError(err).Warn("failed to cache setup report")
	}
}

// RunVerification runs the verify step on its own and records its report
// separately from the last full run
func (o *Orchestrator) RunVerification(ctx context.Context) (*StepReport, error) {
	if logger.RunIdFromContext(ctx) == "" {
		ctx = logger.WithRunId(ctx, logger.NewRunId())
	}

	report, err := o.RunStep(ctx, StepVerify)

	o.mu.Lock()
	o.lastVerification = &report
	o.mu.Unlock()

	if o.cache != nil {
		if cacheErr := cache.SetJSON(ctx, o.cache, LastVerificationKey, report, cache.NoExpiration); cacheErr != nil {
			logger.Logger(ctx).WithError(cacheErr).Warn("failed to cache verification report")
		}
	}
	return &report, err
}

// LastVerification returns the most recent standalone verification, falling
// back to the cache
func (o *Orchestrator) LastVerification(ctx context.Context) (*StepReport, error) {
	o.mu.RLock()
	report := o.lastVerification
	o.mu.RUnlock()
	if report != nil {
		return report, nil
	}
	if o.cache == nil {
		return nil, ErrNoReport
	}
	var cached StepReport
	if err := cache.GetJSON(ctx, o.cache, LastVerificationKey, &cached); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoReport, err)
	}
	return &cached, nil
}

// LastReport returns the most recent report, falling back to the cache
func (o *Orchestrator) LastReport(ctx context.Context) (*Report, error) {
	o.mu.RLock()
	report := o.lastReport
	o.mu.RUnlock()
	if report != nil {
		return report, nil
	}
	return LoadLastReport(ctx, o.cache)
}
