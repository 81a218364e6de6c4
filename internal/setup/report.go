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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type StepStatus string

const (
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// StepReport is the outcome of one step
type StepReport struct {
	Step       string     `json:"step" yaml:"step"`
	Status     StepStatus `json:"status" yaml:"status"`
	Statements []string   `json:"statements,omitempty" yaml:"statements,omitempty"`
	DurationMs int64      `json:"durationMs" yaml:"durationMs"`
	Warnings   []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Note       string     `json:"note,omitempty" yaml:"note,omitempty"`

	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
	Kind   Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Remedy string `json:"remedy,omitempty" yaml:"remedy,omitempty"`

	Trust        *TrustIdentifiers `json:"trust,omitempty" yaml:"trust,omitempty"`
	Grants       []string          `json:"grants,omitempty" yaml:"grants,omitempty"`
	Verification *Verification     `json:"verification,omitempty" yaml:"verification,omitempty"`
}

// Report is the outcome of a run, with steps in their logical order
type Report struct {
	RunID      string       `json:"runId" yaml:"runId"`
	Mode       string       `json:"mode" yaml:"mode"`
	Stage      string       `json:"stage" yaml:"stage"`
	StartedAt  time.Time    `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt" yaml:"finishedAt"`
	Succeeded  bool         `json:"succeeded" yaml:"succeeded"`
	Steps      []StepReport `json:"steps" yaml:"steps"`
}

// Step returns the report of the named step
func (r *Report) Step(name string) *StepReport {
	for i := range r.Steps {
		if r.Steps[i].Step == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Failed returns the failing step, if any
func (r *Report) Failed() *StepReport {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// WriteText prints the report for a terminal
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s stage %s\n", r.RunID, strings.ToLower(r.Mode), r.Stage)
	for _, s := range r.Steps {
		s.writeText(&b)
	}
	if r.Succeeded {
		b.WriteString("setup complete\n")
	} else if failed := r.Failed(); failed != nil {
		fmt.Fprintf(&b, "setup stopped at %s; fix the problem above and re-run\n", failed.Step)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText prints a single step
func (s *StepReport) WriteText(w io.Writer) error {
	var b strings.Builder
	s.writeText(&b)
	_, err := io.WriteString(w, b.String())
	return err
}

func (s *StepReport) writeText(b *strings.Builder) {
	fmt.Fprintf(b, "[%-9s] %-9s %dms", s.Status, s.Step, s.DurationMs)
	if s.Note != "" {
		fmt.Fprintf(b, "  %s", s.Note)
	}
	b.WriteString("\n")

	for _, w := range s.Warnings {
		fmt.Fprintf(b, "    warning: %s\n", w)
	}
	if s.Trust != nil {
		fmt.Fprintf(b, "    %s = %s\n", "STORAGE_AWS_IAM_USER_ARN", s.Trust.IAMUserARN)
		fmt.Fprintf(b, "    %s = %s\n", "STORAGE_AWS_EXTERNAL_ID", s.Trust.ExternalID)
		b.WriteString("    add both to the IAM role trust policy: cortexstage trust-policy\n")
	}
	if v := s.Verification; v != nil {
		fmt.Fprintf(b, "    %d file(s) on %s, probed %s\n", len(v.Files), v.Stage, v.ProbedFile)
		if len(v.Response) > 0 {
			if out, err := json.Marshal(v.Response); err == nil {
				fmt.Fprintf(b, "    response: %s\n", out)
			}
		}
	}
	if s.Status == StatusFailed {
		fmt.Fprintf(b, "    error: %s\n", s.Error)
		if s.Remedy != "" {
			fmt.Fprintf(b, "    remedy: %s\n", s.Remedy)
		}
	}
}
