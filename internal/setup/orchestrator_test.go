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

package setup_test

import (
	"context"
	"errors"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
	"github.com/redhat-data-and-ai/cortexstage/internal/setup/mocks"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/config"
	"github.com/redhat-data-and-ai/cortexstage/pkg/ddl"
)

const responseSchema = `{
  "type": "object",
  "required": ["document_type"],
  "properties": {"document_type": {"type": "string"}}
}`

var (
	okResult = &snowflake.Result{Columns: []string{"status"}, Rows: [][]string{{"Statement executed successfully."}}}

	probeResult = &snowflake.Result{
		Columns: []string{"RESULT"},
		Rows:    [][]string{{`{"error": null, "response": {"document_type": "invoice"}}`}},
	}
)

func internalSetup() config.Setup {
	return config.Setup{
		Database: "DOCS_DB",
		Schema:   "PUBLIC",
		Stage:    config.Stage{Name: "PDF_STAGE", Mode: "INTERNAL", Encryption: "SNOWFLAKE_SSE", Directory: true},
		Grants:   config.Grants{Role: "PDF_READER", Warehouse: "COMPUTE_WH"},
		Verify:   config.Verify{ResponseSchema: responseSchema},
	}
}

func externalSetup() config.Setup {
	return config.Setup{
		Database: "DOCS_DB",
		Schema:   "PUBLIC",
		Stage: config.Stage{
			Name: "S3_PDF_STAGE", Mode: "EXTERNAL", URL: "s3://docs-bucket/pdfs/",
			Directory: true, AutoRefresh: true,
		},
		Integration: config.Integration{
			Name:    "S3_PDF_INT",
			RoleARN: "arn:aws:iam::123456789012:role/snowflake-pdf",
			Enabled: true,
		},
		Grants: config.Grants{Role: "PDF_READER"},
		Verify: config.Verify{Refresh: true},
	}
}

func listResult(names ...string) *snowflake.Result {
	r := &snowflake.Result{Columns: []string{"name", "size", "md5", "last_modified"}}
	for _, n := range names {
		r.Rows = append(r.Rows, []string{n, "2048", "9e107d9d372bb6826bd81d3542a419d6", "Mon, 6 Jan 2025 10:00:00 GMT"})
	}
	return r
}

func describeResult(roleARN string) *snowflake.Result {
	return &snowflake.Result{
		Columns: []string{"property", "property_type", "property_value", "property_default"},
		Rows: [][]string{
			{"ENABLED", "Boolean", "true", "false"},
			{"STORAGE_PROVIDER", "String", "S3", ""},
			{"STORAGE_ALLOWED_LOCATIONS", "List", "s3://docs-bucket/pdfs/", "[]"},
			{"STORAGE_AWS_IAM_USER_ARN", "String", "arn:aws:iam::999999999999:user/abc1-b-self1234", ""},
			{"STORAGE_AWS_ROLE_ARN", "String", roleARN, ""},
			{"STORAGE_AWS_EXTERNAL_ID", "String", "ACME_SFCRole=2_abcdefg=", ""},
		},
	}
}

func mustPlan(cfg config.Setup) *setup.Plan {
	plan, err := setup.NewPlan(cfg)
	Expect(err).NotTo(HaveOccurred())
	return plan
}

func probeSQL(stage ddl.Stage, path, format string) string {
	sql, err := ddl.ExtractProbe{Stage: stage, Path: path, ResponseFormat: format}.SQL()
	Expect(err).NotTo(HaveOccurred())
	return sql
}

var _ = Describe("Orchestrator", func() {
	var (
		ctrl  *gomock.Controller
		exec  *mocks.MockExecutor
		store cache.Cache
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		ctrl = gomock.NewController(GinkgoT())
		exec = mocks.NewMockExecutor(ctrl)

		var err error
		store, err = cache.New(&cache.Config{Driver: cache.DriverMemory})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	Context("with an internal stage", func() {
		var (
			plan  *setup.Plan
			orch  *setup.Orchestrator
			stage ddl.Stage
		)

		BeforeEach(func() {
			plan = mustPlan(internalSetup())
			stage = plan.Stage
			orch = setup.NewOrchestrator(exec, plan, store)
		})

		It("runs every step in order and skips trust", func() {
			var statements []string
			for _, step := range []string{setup.StepNamespace, setup.StepStage, setup.StepGrant} {
				s, err := plan.Statements(step)
				Expect(err).NotTo(HaveOccurred())
				statements = append(statements, s...)
			}

			var calls []*gomock.Call
			for _, s := range statements {
				calls = append(calls, exec.EXPECT().Execute(gomock.Any(), s).Return(okResult, nil))
			}
			calls = append(calls,
				exec.EXPECT().Execute(gomock.Any(), stage.List()).
					Return(listResult("pdf_stage/readme.txt", "pdf_stage/invoices/inv-1.pdf"), nil),
				exec.EXPECT().Execute(gomock.Any(), probeSQL(stage, "invoices/inv-1.pdf", "")).
					Return(probeResult, nil),
			)
			gomock.InOrder(calls...)

			report, err := orch.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Succeeded).To(BeTrue())
			Expect(report.RunID).NotTo(BeEmpty())
			Expect(report.Mode).To(Equal("INTERNAL"))

			Expect(report.Steps).To(HaveLen(5))
			Expect(report.Steps[0].Step).To(Equal(setup.StepNamespace))
			Expect(report.Step(setup.StepTrust).Status).To(Equal(setup.StatusSkipped))
			Expect(report.Step(setup.StepGrant).Grants).To(HaveLen(5))
			Expect(report.Step(setup.StepNamespace).Statements).To(HaveLen(2))

			verification := report.Step(setup.StepVerify).Verification
			Expect(verification).NotTo(BeNil())
			Expect(verification.Files).To(HaveLen(2))
			Expect(verification.ProbedFile).To(Equal("invoices/inv-1.pdf"))
			Expect(verification.Response).To(HaveKeyWithValue("document_type", "invoice"))
			Expect(report.Step(setup.StepVerify).Warnings).To(BeEmpty())

			cached, err := setup.LoadLastReport(ctx, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(cached.RunID).To(Equal(report.RunID))

			last, err := orch.LastReport(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(BeIdenticalTo(report))
		})

		It("reports no files found with the PUT remedy", func() {
			exec.EXPECT().Execute(gomock.Any(), stage.List()).Return(listResult(), nil)

			v, err := orch.Verify(ctx, stage, plan.Verify)
			Expect(errors.Is(err, setup.ErrNoFilesFound)).To(BeTrue())
			Expect(v.Files).To(BeEmpty())

			d, ok := setup.AsDiagnostic(err)
			Expect(ok).To(BeTrue())
			Expect(d.Kind).To(Equal(setup.KindNoFilesFound))
			Expect(d.Remedy).To(ContainSubstring("PUT file:///path/to/pdfs/*.pdf @DOCS_DB.PUBLIC.PDF_STAGE"))
		})

		It("reports stage not found when LIST cannot see the stage", func() {
			exec.EXPECT().Execute(gomock.Any(), stage.List()).Return(nil, &snowflake.APIError{
				HTTPStatus: 422,
				Code:       snowflake.CodeObjectNotFound,
				Message:    "SQL compilation error:\nStage 'DOCS_DB.PUBLIC.PDF_STAGE' does not exist or not authorized.",
			})

			_, err := orch.Verify(ctx, stage, plan.Verify)
			Expect(errors.Is(err, setup.ErrStageNotFound)).To(BeTrue())

			var apiErr *snowflake.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			d, _ := setup.AsDiagnostic(err)
			Expect(d.Remedy).To(ContainSubstring("READ"))
		})

		It("reports function not found when AI_EXTRACT is unavailable", func() {
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), stage.List()).Return(listResult("pdf_stage/a.pdf"), nil),
				exec.EXPECT().Execute(gomock.Any(), probeSQL(stage, "a.pdf", "")).Return(nil, &snowflake.APIError{
					HTTPStatus: 422,
					Code:       snowflake.CodeUnknownFunction,
					Message:    "SQL compilation error:\nUnknown function AI_EXTRACT",
				}),
			)

			_, err := orch.Verify(ctx, stage, plan.Verify)
			Expect(errors.Is(err, setup.ErrFunctionNotFound)).To(BeTrue())
			d, _ := setup.AsDiagnostic(err)
			Expect(d.Remedy).To(ContainSubstring("SNOWFLAKE.CORTEX_USER"))
		})

		It("warns when the answer does not match the response schema", func() {
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), stage.List()).Return(listResult("pdf_stage/a.pdf"), nil),
				exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(&snowflake.Result{
					Columns: []string{"RESULT"},
					Rows:    [][]string{{`{"error": null, "response": {"document_type": 42}}`}},
				}, nil),
			)

			report, err := orch.RunStep(ctx, setup.StepVerify)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Status).To(Equal(setup.StatusSucceeded))
			Expect(report.Warnings).To(HaveLen(1))
			Expect(report.Warnings[0]).To(ContainSubstring("does not match the configured schema"))
		})

		It("fails the probe when AI_EXTRACT reports an error", func() {
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), stage.List()).Return(listResult("pdf_stage/a.pdf"), nil),
				exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(&snowflake.Result{
					Columns: []string{"RESULT"},
					Rows:    [][]string{{`{"error": "File is not a supported document", "response": null}`}},
				}, nil),
			)

			_, err := orch.Verify(ctx, stage, plan.Verify)
			Expect(errors.Is(err, setup.ErrExtractionFailed)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("File is not a supported document"))
		})

		It("stops at the first failed step and skips the rest", func() {
			ns := plan.Namespace()
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), ns.CreateDatabase()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), ns.CreateSchema()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), stage.Create()).Return(nil, &snowflake.APIError{
					HTTPStatus: 422,
					Code:       snowflake.CodeInsufficientPrivileges,
					Message:    "SQL access control error:\nInsufficient privileges to operate on schema 'PUBLIC'",
				}),
			)

			report, err := orch.Run(ctx)
			Expect(errors.Is(err, setup.ErrInsufficientPrivileges)).To(BeTrue())
			Expect(report.Succeeded).To(BeFalse())

			failed := report.Failed()
			Expect(failed).NotTo(BeNil())
			Expect(failed.Step).To(Equal(setup.StepStage))
			Expect(failed.Kind).To(Equal(setup.KindInsufficientPrivileges))
			Expect(failed.Remedy).To(ContainSubstring("ACCOUNTADMIN"))

			Expect(report.Step(setup.StepGrant).Status).To(Equal(setup.StatusSkipped))
			Expect(report.Step(setup.StepVerify).Status).To(Equal(setup.StatusSkipped))
		})

		It("rejects an internal stage without server-side encryption", func() {
			stage.Encryption = "SNOWFLAKE_FULL"
			err := orch.CreateStage(ctx, stage)
			Expect(errors.Is(err, ddl.ErrUnsupportedEncryption)).To(BeTrue())
			d, _ := setup.AsDiagnostic(err)
			Expect(d.Kind).To(Equal(setup.KindInvalidConfiguration))
		})
	})

	Context("with an external stage", func() {
		var (
			plan *setup.Plan
			orch *setup.Orchestrator
		)

		BeforeEach(func() {
			plan = mustPlan(externalSetup())
			orch = setup.NewOrchestrator(exec, plan, store)
		})

		It("creates the integration before the stage and caches the trust identifiers", func() {
			stage := plan.Stage
			ns := plan.Namespace()

			calls := []*gomock.Call{
				exec.EXPECT().Execute(gomock.Any(), ns.CreateDatabase()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), ns.CreateSchema()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), plan.Integration.Create()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), plan.Integration.Describe()).
					Return(describeResult(plan.Integration.RoleARN), nil),
				exec.EXPECT().Execute(gomock.Any(), stage.Create()).Return(okResult, nil),
			}
			for _, g := range ddl.AccessGrants(plan.Role, plan.AccessObjects()) {
				calls = append(calls, exec.EXPECT().Execute(gomock.Any(), g.SQL()).Return(okResult, nil))
			}
			calls = append(calls,
				exec.EXPECT().Execute(gomock.Any(), stage.Refresh()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), stage.List()).
					Return(listResult("s3://docs-bucket/pdfs/2025/contract.pdf"), nil),
				exec.EXPECT().Execute(gomock.Any(), probeSQL(stage, "2025/contract.pdf", "")).Return(probeResult, nil),
			)
			gomock.InOrder(calls...)

			report, err := orch.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Succeeded).To(BeTrue())

			trust := report.Step(setup.StepTrust).Trust
			Expect(trust).NotTo(BeNil())
			Expect(trust.IAMUserARN).To(Equal("arn:aws:iam::999999999999:user/abc1-b-self1234"))
			Expect(trust.ExternalID).To(Equal("ACME_SFCRole=2_abcdefg="))
			Expect(trust.AllowedLocations).To(Equal([]string{"s3://docs-bucket/pdfs/"}))

			cached, err := setup.LoadTrust(ctx, store, "s3_pdf_int")
			Expect(err).NotTo(HaveOccurred())
			Expect(cached.ExternalID).To(Equal(trust.ExternalID))

			all, err := setup.ListTrust(ctx, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Integration).To(Equal("S3_PDF_INT"))
			Expect(all[0].ExternalID).To(Equal(trust.ExternalID))
		})

		It("fails before any SQL when the stage has no integration", func() {
			stage := plan.Stage
			stage.Integration = ""

			err := orch.CreateStage(ctx, stage)
			Expect(errors.Is(err, setup.ErrMissingIntegration)).To(BeTrue())

			d, ok := setup.AsDiagnostic(err)
			Expect(ok).To(BeTrue())
			Expect(d.Kind).To(Equal(setup.KindMissingIntegration))
			Expect(d.Step).To(Equal(setup.StepStage))
		})

		It("names the missing integration instead of the stage when CREATE STAGE cannot see it", func() {
			exec.EXPECT().Execute(gomock.Any(), plan.Stage.Create()).Return(nil, &snowflake.APIError{
				HTTPStatus: 422,
				Code:       snowflake.CodeObjectNotFound,
				Message:    "SQL compilation error:\nIntegration 'S3_PDF_INT' does not exist or not authorized.",
			})

			err := orch.CreateStage(ctx, plan.Stage)
			Expect(errors.Is(err, setup.ErrStageNotFound)).To(BeFalse())

			d, ok := setup.AsDiagnostic(err)
			Expect(ok).To(BeTrue())
			Expect(d.Kind).To(Equal(setup.KindStatementFailed))
			Expect(d.Object).To(Equal(plan.Stage.FullName()))
			Expect(d.Error()).To(ContainSubstring("Integration 'S3_PDF_INT'"))
			Expect(d.Remedy).NotTo(ContainSubstring("check that stage"))
		})

		It("warns when an existing integration uses another role", func() {
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), plan.Integration.Create()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), plan.Integration.Describe()).
					Return(describeResult("arn:aws:iam::123456789012:role/old-role"), nil),
			)

			report, err := orch.RunStep(ctx, setup.StepTrust)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Warnings).To(ConsistOf(ContainSubstring("old-role")))
			Expect(report.Statements).To(HaveLen(2))
		})

		It("fails the trust step when DESC INTEGRATION lacks the external id", func() {
			desc := describeResult(plan.Integration.RoleARN)
			desc.Rows = desc.Rows[:4]
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), plan.Integration.Create()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), plan.Integration.Describe()).Return(desc, nil),
			)

			_, err := orch.ConfigureTrust(ctx, plan.Integration)
			Expect(err).To(MatchError(ContainSubstring("STORAGE_AWS_EXTERNAL_ID")))
		})

		It("maps grant privilege errors and returns what was applied", func() {
			grants := ddl.AccessGrants(plan.Role, plan.AccessObjects())
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), grants[0].SQL()).Return(okResult, nil),
				exec.EXPECT().Execute(gomock.Any(), grants[1].SQL()).Return(nil, &snowflake.APIError{
					HTTPStatus: 422,
					Code:       snowflake.CodeInsufficientPrivileges,
					Message:    "Insufficient privileges to operate on schema",
				}),
			)

			applied, err := orch.GrantAccess(ctx, plan.Role, plan.AccessObjects())
			Expect(errors.Is(err, setup.ErrInsufficientPrivileges)).To(BeTrue())
			Expect(applied).To(HaveLen(1))
		})

		It("does not run when the stage points at another integration", func() {
			cfg := externalSetup()
			cfg.Stage.Integration = "OTHER_INT"
			plan = mustPlan(cfg)
			orch = setup.NewOrchestrator(exec, plan, store)

			report, err := orch.Run(ctx)
			Expect(err).To(HaveOccurred())
			Expect(report.Steps[0].Kind).To(Equal(setup.KindInvalidConfiguration))
			Expect(report.Steps[0].Error).To(ContainSubstring("OTHER_INT"))
		})
	})
})
