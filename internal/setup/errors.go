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
	"errors"
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/ddl"
)

var (
	ErrStageNotFound          = errors.New("stage not found")
	ErrFunctionNotFound       = errors.New("AI function not found")
	ErrNoFilesFound           = errors.New("no files found")
	ErrMissingIntegration     = ddl.ErrMissingIntegration
	ErrInsufficientPrivileges = errors.New("insufficient privileges")
	ErrExtractionFailed       = errors.New("AI extraction failed")
)

// Kind is the user facing category of a failed step
type Kind string

const (
	KindStageNotFound          Kind = "stage not found"
	KindFunctionNotFound       Kind = "AI function not found"
	KindNoFilesFound           Kind = "no files found"
	KindMissingIntegration     Kind = "missing integration"
	KindInsufficientPrivileges Kind = "insufficient privileges"
	KindExtractionFailed       Kind = "AI extraction failed"
	KindInvalidConfiguration   Kind = "invalid configuration"
	KindStatementFailed        Kind = "statement failed"
)

var kindSentinels = map[Kind]error{
	KindStageNotFound:          ErrStageNotFound,
	KindFunctionNotFound:       ErrFunctionNotFound,
	KindNoFilesFound:           ErrNoFilesFound,
	KindMissingIntegration:     ErrMissingIntegration,
	KindInsufficientPrivileges: ErrInsufficientPrivileges,
	KindExtractionFailed:       ErrExtractionFailed,
}

// Diagnostic is a terminal step failure with the manual remedy for it
type Diagnostic struct {
	Step   string
	Kind   Kind
	Object string
	Remedy string
	Cause  error
}

func (d *Diagnostic) Error() string {
	msg := fmt.Sprintf("%s: %s", d.Step, d.Kind)
	if d.Object != "" {
		msg += " (" + d.Object + ")"
	}
	if d.Cause != nil && !errors.Is(d.Cause, kindSentinels[d.Kind]) {
		msg += ": " + d.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the category sentinel and the underlying cause
func (d *Diagnostic) Unwrap() []error {
	var errs []error
	if sentinel, ok := kindSentinels[d.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if d.Cause != nil {
		errs = append(errs, d.Cause)
	}
	return errs
}

// AsDiagnostic unwraps err to a *Diagnostic if it carries one
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// diagnose maps a step error to its user facing category. object is the main
// object the step touched and role the role the grant step targets.
func (o *Orchestrator) diagnose(step, object string, err error) *Diagnostic {
	if d, ok := AsDiagnostic(err); ok {
		return d
	}

	d := &Diagnostic{Step: step, Object: object, Kind: KindStatementFailed, Cause: err}

	if errors.Is(err, ddl.ErrMissingIntegration) {
		d.Kind = KindMissingIntegration
		d.Remedy = "set setup.stage.integration (or setup.integration.name) for EXTERNAL stages and run the trust step first"
		return d
	}

	apiErr, ok := snowflake.AsAPIError(err)
	if !ok {
		return d
	}

	switch {
	case apiErr.IsInsufficientPrivileges():
		d.Kind = KindInsufficientPrivileges
		d.Remedy = fmt.Sprintf("run as ACCOUNTADMIN or as the owner of %s", object)
	case apiErr.IsUnknownFunction():
		d.Kind = KindFunctionNotFound
		d.Remedy = fmt.Sprintf("grant DATABASE ROLE %s to role %s and check that AI_EXTRACT is available in the account region",
			o.plan.cortexRole(), o.plan.Role)
	case apiErr.IsObjectNotFound() && (step == StepVerify || namesStage(apiErr.Message)):
		d.Kind = KindStageNotFound
		d.Remedy = fmt.Sprintf("check that stage %s exists and that role %s has %s on it",
			o.plan.Stage.FullName(), o.plan.Role, stagePrivilege(o.plan.Stage))
	case apiErr.IsObjectNotFound() && object != "":
		// CREATE STAGE reports a missing schema or integration with the same code
		d.Remedy = fmt.Sprintf("create the objects %s depends on, or grant the running role access to them", object)
	}
	return d
}

// namesStage reports whether a "does not exist" message is about a stage
func namesStage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "stage '")
}

func stagePrivilege(s ddl.Stage) string {
	if s.Mode == ddl.StageExternal {
		return "USAGE"
	}
	return "READ"
}

func noFilesRemedy(s ddl.Stage) string {
	if s.Mode == ddl.StageExternal {
		return fmt.Sprintf("copy PDF files under %s, then run %s", s.URL, s.Refresh())
	}
	return fmt.Sprintf("upload PDF files with SnowSQL: %s, then run %s", s.Put("/path/to/pdfs/*.pdf"), s.Refresh())
}
