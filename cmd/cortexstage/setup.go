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

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
)

var stepDescriptions = map[string]string{
	setup.StepNamespace: "Create the database and schema",
	setup.StepStage:     "Create the internal or external stage",
	setup.StepTrust:     "Create the storage integration and print the IAM trust identifiers",
	setup.StepGrant:     "Grant the consumer role access to the stage and Cortex",
	setup.StepVerify:    "List the stage and run AI_EXTRACT on the first file",
}

// errStepFailed is returned after a failure was already printed
var errStepFailed = errors.New("setup did not complete")

// stepStatements is one step of a dry run
type stepStatements struct {
	Step       string   `json:"step" yaml:"step"`
	Skipped    bool     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Statements []string `json:"statements" yaml:"statements"`
}

func newSetupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Run every setup step in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			if opts.dryRun {
				return printDryRun(cmd.OutOrStdout(), opts.output, a.plan, a.plan.ExecutionOrder())
			}

			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			ctx := logger.WithRunId(cmd.Context(), logger.NewRunId())
			report, runErr := orch.Run(ctx)
			if err := render(cmd.OutOrStdout(), opts.output, report, report.WriteText); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("%w: %w", errStepFailed, runErr)
			}
			return nil
		},
	}
}

func newStepCmd(opts *rootOptions, step string) *cobra.Command {
	return &cobra.Command{
		Use:   step,
		Short: stepDescriptions[step],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			if opts.dryRun {
				return printDryRun(cmd.OutOrStdout(), opts.output, a.plan, []string{step})
			}

			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			ctx := logger.WithRunId(cmd.Context(), logger.NewRunId())
			var report *setup.StepReport
			var stepErr error
			if step == setup.StepVerify {
				report, stepErr = orch.RunVerification(ctx)
			} else {
				var r setup.StepReport
				r, stepErr = orch.RunStep(ctx, step)
				report = &r
			}

			if err := render(cmd.OutOrStdout(), opts.output, report, report.WriteText); err != nil {
				return err
			}
			if stepErr != nil {
				return fmt.Errorf("%w: %w", errStepFailed, stepErr)
			}
			return nil
		},
	}
}

func dryRunStatements(plan *setup.Plan, steps []string) ([]stepStatements, error) {
	out := make([]stepStatements, 0, len(steps))
	for _, step := range steps {
		statements, err := plan.Statements(step)
		if err != nil {
			return nil, err
		}
		out = append(out, stepStatements{Step: step, Skipped: plan.Skipped(step), Statements: statements})
	}
	return out, nil
}

func printDryRun(w io.Writer, format string, plan *setup.Plan, steps []string) error {
	dry, err := dryRunStatements(plan, steps)
	if err != nil {
		return err
	}
	return render(w, format, dry, func(w io.Writer) error {
		var b strings.Builder
		for _, s := range dry {
			if s.Skipped {
				fmt.Fprintf(&b, "-- %s: skipped for %s stages\n\n", s.Step, strings.ToLower(string(plan.Stage.Mode)))
				continue
			}
			fmt.Fprintf(&b, "-- %s\n", s.Step)
			for _, statement := range s.Statements {
				fmt.Fprintf(&b, "%s;\n", statement)
			}
			b.WriteString("\n")
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}
