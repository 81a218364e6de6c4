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
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/cortexstage/pkg/config"
	"github.com/redhat-data-and-ai/cortexstage/pkg/ddl"
)

// Step names, in their logical order
const (
	StepNamespace = "namespace"
	StepStage     = "stage"
	StepTrust     = "trust"
	StepGrant     = "grant"
	StepVerify    = "verify"
)

// ProbeFilePlaceholder stands in for the probed file in rendered plans
const ProbeFilePlaceholder = "<first file listed>"

// VerifyOptions tunes the verification probe
type VerifyOptions struct {
	Refresh        bool
	ResponseFormat string
	ResponseSchema string
}

// Plan owns every object name so all steps derive their SQL from one place
type Plan struct {
	Stage            ddl.Stage
	Integration      ddl.StorageIntegration
	Role             string
	Warehouse        string
	CortexRole       string
	IntegrationUsage bool
	Verify           VerifyOptions
}

// NewPlan builds a plan from the setup section of the configuration. It does not
// validate the stage; CreateStage reports those problems as step diagnostics.
func NewPlan(cfg config.Setup) (*Plan, error) {
	mode, err := ddl.ParseStageMode(cfg.Stage.Mode)
	if err != nil {
		return nil, err
	}

	// each name falls back to the other; Validate catches a disagreement
	stageIntegration := cfg.Stage.Integration
	integrationName := cfg.Integration.Name
	if mode == ddl.StageExternal {
		if stageIntegration == "" {
			stageIntegration = integrationName
		}
		if integrationName == "" {
			integrationName = stageIntegration
		}
	}

	allowed := cfg.Integration.AllowedLocations
	if len(allowed) == 0 && cfg.Stage.URL != "" {
		allowed = []string{cfg.Stage.URL}
	}

	return &Plan{
		Stage: ddl.Stage{
			Namespace:   ddl.Namespace{Database: cfg.Database, Schema: cfg.Schema},
			Name:        cfg.Stage.Name,
			Mode:        mode,
			URL:         cfg.Stage.URL,
			Integration: stageIntegration,
			Encryption:  cfg.Stage.Encryption,
			Directory:   cfg.Stage.Directory,
			AutoRefresh: cfg.Stage.AutoRefresh,
		},
		Integration: ddl.StorageIntegration{
			Name:             integrationName,
			RoleARN:          cfg.Integration.RoleARN,
			AllowedLocations: allowed,
			BlockedLocations: cfg.Integration.BlockedLocations,
			Enabled:          cfg.Integration.Enabled,
		},
		Role:             cfg.Grants.Role,
		Warehouse:        cfg.Grants.Warehouse,
		CortexRole:       cfg.Grants.CortexRole,
		IntegrationUsage: cfg.Grants.IntegrationUsage,
		Verify: VerifyOptions{
			Refresh:        cfg.Verify.Refresh,
			ResponseFormat: cfg.Verify.ResponseFormat,
			ResponseSchema: cfg.Verify.ResponseSchema,
		},
	}, nil
}

// Namespace returns the database and schema owning the stage
func (p *Plan) Namespace() ddl.Namespace {
	return p.Stage.Namespace
}

// External reports whether the plan provisions an integration backed stage
func (p *Plan) External() bool {
	return p.Stage.Mode == ddl.StageExternal
}

// Steps returns the five steps in their logical order
func (p *Plan) Steps() []string {
	return []string{StepNamespace, StepStage, StepTrust, StepGrant, StepVerify}
}

// ExecutionOrder returns the steps in the order they run. An external stage
// references its integration, so trust runs before stage.
func (p *Plan) ExecutionOrder() []string {
	if p.External() {
		return []string{StepNamespace, StepTrust, StepStage, StepGrant, StepVerify}
	}
	return []string{StepNamespace, StepStage, StepGrant, StepVerify}
}

// Skipped reports whether step does not apply to this plan
func (p *Plan) Skipped(step string) bool {
	return step == StepTrust && !p.External()
}

// AccessObjects returns what the grant step grants on
func (p *Plan) AccessObjects() ddl.AccessObjects {
	return ddl.AccessObjects{
		Stage:            p.Stage,
		Warehouse:        p.Warehouse,
		CortexRole:       p.CortexRole,
		IntegrationUsage: p.IntegrationUsage,
	}
}

func (p *Plan) cortexRole() string {
	if p.CortexRole == "" {
		return ddl.DefaultCortexRole
	}
	return p.CortexRole
}

// Validate checks that names match across steps before anything runs
func (p *Plan) Validate() error {
	if err := ddl.ValidateIdentifier("grantee role", p.Role); err != nil {
		return err
	}
	if !p.External() {
		return nil
	}
	if p.Integration.Name != "" && !strings.EqualFold(p.Stage.Integration, p.Integration.Name) {
		return fmt.Errorf("stage %s references integration %s but the plan creates %s",
			p.Stage.Name, p.Stage.Integration, p.Integration.Name)
	}
	if p.Stage.URL != "" && len(p.Integration.AllowedLocations) > 0 && !p.Integration.Allows(p.Stage.URL) {
		return fmt.Errorf("stage URL %s is outside the integration's allowed locations %s",
			p.Stage.URL, strings.Join(p.Integration.AllowedLocations, ", "))
	}
	return nil
}

// Statements renders the SQL a step would run, for dry runs and guides. Statements
// that depend on runtime results use ProbeFilePlaceholder.
func (p *Plan) Statements(step string) ([]string, error) {
	switch step {
	case StepNamespace:
		ns := p.Namespace()
		return []string{ns.CreateDatabase(), ns.CreateSchema()}, nil
	case StepStage:
		return []string{p.Stage.Create()}, nil
	case StepTrust:
		if p.Skipped(step) {
			return nil, nil
		}
		return []string{p.Integration.Create(), p.Integration.Describe()}, nil
	case StepGrant:
		grants := ddl.AccessGrants(p.Role, p.AccessObjects())
		statements := make([]string, 0, len(grants))
		for _, g := range grants {
			statements = append(statements, g.SQL())
		}
		return statements, nil
	case StepVerify:
		var statements []string
		if p.Verify.Refresh && p.External() {
			statements = append(statements, p.Stage.Refresh())
		}
		probe, err := ddl.ExtractProbe{
			Stage:          p.Stage,
			Path:           ProbeFilePlaceholder,
			ResponseFormat: p.Verify.ResponseFormat,
		}.SQL()
		if err != nil {
			return nil, err
		}
		return append(statements, p.Stage.List(), probe), nil
	}
	return nil, fmt.Errorf("unknown step %q", step)
}
