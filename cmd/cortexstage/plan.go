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

	"github.com/redhat-data-and-ai/cortexstage/internal/guidelint"
	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
)

const (
	formatSQL      = "sql"
	formatMarkdown = "markdown"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the SQL of every step without connecting, optionally as a Markdown guide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}

			switch format {
			case formatSQL:
				return printDryRun(cmd.OutOrStdout(), opts.output, a.plan, a.plan.ExecutionOrder())
			case formatMarkdown:
				md, err := a.plan.Markdown()
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), md)
				return err
			}
			return fmt.Errorf("unknown plan format %q: expected sql or markdown", format)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatSQL, "plan format: sql or markdown")
	return cmd
}

func newTrustPolicyCmd(opts *rootOptions) *cobra.Command {
	var iamUserARN, externalID string
	var list bool

	cmd := &cobra.Command{
		Use:   "trust-policy",
		Short: "Print the IAM trust and S3 access policies for the storage integration's role",
		Long: `Renders the IAM documents for the role behind the storage integration.
Identifiers come from --iam-user-arn and --external-id, or from the cache
filled by the last trust step. Attaching the documents to the role stays manual.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}

			if list {
				return printCachedTrust(cmd, opts.output, a)
			}

			var ids *setup.TrustIdentifiers
			switch {
			case iamUserARN != "" || externalID != "":
				if iamUserARN == "" || externalID == "" {
					return errors.New("--iam-user-arn and --external-id must be set together")
				}
				ids = &setup.TrustIdentifiers{
					Integration: a.plan.Integration.Name,
					IAMUserARN:  iamUserARN,
					ExternalID:  externalID,
				}
			case !a.plan.External():
				return errors.New("internal stages do not use a storage integration; pass --iam-user-arn and --external-id to render a policy anyway")
			default:
				ids, err = setup.LoadTrust(cmd.Context(), a.cache, a.plan.Integration.Name)
				if err != nil {
					return err
				}
			}

			policies, err := setup.BuildPolicies(*ids, a.plan.Integration.RoleARN, a.plan.Integration.AllowedLocations)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, policies, func(w io.Writer) error {
				return writePolicies(w, policies)
			})
		},
	}
	cmd.Flags().StringVar(&iamUserARN, "iam-user-arn", "", "STORAGE_AWS_IAM_USER_ARN from DESC INTEGRATION")
	cmd.Flags().StringVar(&externalID, "external-id", "", "STORAGE_AWS_EXTERNAL_ID from DESC INTEGRATION")
	cmd.Flags().BoolVar(&list, "list", false, "list the identifiers cached for every integration")
	return cmd
}

func printCachedTrust(cmd *cobra.Command, format string, a *app) error {
	all, err := setup.ListTrust(cmd.Context(), a.cache)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), format, all, func(w io.Writer) error {
		var b strings.Builder
		if len(all) == 0 {
			b.WriteString("no cached trust identifiers; run the trust step first\n")
		}
		for _, ids := range all {
			fmt.Fprintf(&b, "%s\n    STORAGE_AWS_IAM_USER_ARN = %s\n    STORAGE_AWS_EXTERNAL_ID = %s\n",
				ids.Integration, ids.IAMUserARN, ids.ExternalID)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writePolicies(w io.Writer, p *setup.Policies) error {
	var b strings.Builder
	role := p.RoleARN
	if role == "" {
		role = "the integration's role"
	}

	trust, err := p.Trust.JSON()
	if err != nil {
		return err
	}
	fmt.Fprintf(&b, "# Trust policy for %s\n%s\n", role, trust)

	if p.Access != nil {
		access, err := p.Access.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "\n# S3 access policy for %s\n%s\n", role, access)
	}
	_, err = io.WriteString(w, b.String())
	return err
}

func newLintCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <guide.md>",
		Short: "Check a Markdown setup guide for stage, trust policy and SQL consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			findings, err := guidelint.LintFile(args[0])
			if err != nil {
				return err
			}
			if findings == nil {
				findings = []guidelint.Finding{}
			}

			err = render(cmd.OutOrStdout(), opts.output, findings, func(w io.Writer) error {
				var b strings.Builder
				for _, f := range findings {
					fmt.Fprintf(&b, "%s:%s\n", args[0], f)
				}
				if len(findings) == 0 {
					fmt.Fprintf(&b, "%s: no findings\n", args[0])
				}
				_, err := io.WriteString(w, b.String())
				return err
			})
			if err != nil {
				return err
			}
			if len(findings) > 0 {
				return fmt.Errorf("%s has %d finding(s)", args[0], len(findings))
			}
			return nil
		},
	}
}
