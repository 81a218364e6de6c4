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

package periodicjobs_test

import (
	"context"
	"errors"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/redhat-data-and-ai/cortexstage/internal/periodicjobs"
	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
	"github.com/redhat-data-and-ai/cortexstage/internal/setup/mocks"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/config"
)

func stageSetup(mode string) config.Setup {
	cfg := config.Setup{
		Database: "DOCS_DB",
		Schema:   "PUBLIC",
		Stage:    config.Stage{Name: "PDF_STAGE", Mode: mode, Directory: true},
		Grants:   config.Grants{Role: "PDF_READER"},
	}
	if mode == "EXTERNAL" {
		cfg.Stage.URL = "s3://docs-bucket/pdfs/"
		cfg.Integration = config.Integration{
			Name:    "S3_PDF_INT",
			RoleARN: "arn:aws:iam::123456789012:role/snowflake-pdf",
			Enabled: true,
		}
	}
	return cfg
}

var _ = Describe("Jobs", func() {
	var (
		ctrl  *gomock.Controller
		exec  *mocks.MockExecutor
		store cache.Cache
		ctx   context.Context
	)

	newOrchestrator := func(mode string) *setup.Orchestrator {
		plan, err := setup.NewPlan(stageSetup(mode))
		Expect(err).NotTo(HaveOccurred())
		return setup.NewOrchestrator(exec, plan, store)
	}

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

	Describe("StageRefreshJob", func() {
		It("refreshes an external stage", func() {
			exec.EXPECT().Execute(gomock.Any(), "ALTER STAGE DOCS_DB.PUBLIC.PDF_STAGE REFRESH").
				Return(&snowflake.Result{}, nil)

			job := periodicjobs.NewStageRefreshJob(newOrchestrator("EXTERNAL"), time.Hour)
			Expect(job.GetName()).To(Equal(periodicjobs.StageRefreshJobName))
			Expect(job.GetInterval()).To(Equal(time.Hour))
			Expect(job.Run(ctx)).To(Succeed())
		})

		It("reports a missing stage", func() {
			exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil, &snowflake.APIError{
				HTTPStatus: 422,
				Code:       snowflake.CodeObjectNotFound,
				Message:    "Stage 'DOCS_DB.PUBLIC.PDF_STAGE' does not exist or not authorized.",
			})

			err := periodicjobs.NewStageRefreshJob(newOrchestrator("EXTERNAL"), time.Hour).Run(ctx)
			Expect(errors.Is(err, setup.ErrStageNotFound)).To(BeTrue())
		})

		It("does nothing for an internal stage", func() {
			Expect(periodicjobs.NewStageRefreshJob(newOrchestrator("INTERNAL"), 0).Run(ctx)).To(Succeed())
		})
	})

	Describe("VerificationProbeJob", func() {
		It("records a passing verification", func() {
			gomock.InOrder(
				exec.EXPECT().Execute(gomock.Any(), "LIST @DOCS_DB.PUBLIC.PDF_STAGE").Return(&snowflake.Result{
					Columns: []string{"name", "size", "md5", "last_modified"},
					Rows:    [][]string{{"pdf_stage/invoice.pdf", "1024", "abc", "Mon, 6 Jan 2025 10:00:00 GMT"}},
				}, nil),
				exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(&snowflake.Result{
					Columns: []string{"RESULT"},
					Rows:    [][]string{{`{"error": null, "response": {"document_type": "invoice"}}`}},
				}, nil),
			)

			orch := newOrchestrator("INTERNAL")
			job := periodicjobs.NewVerificationProbeJob(orch, 24*time.Hour)
			Expect(job.GetName()).To(Equal(periodicjobs.VerificationProbeJobName))
			Expect(job.Run(ctx)).To(Succeed())

			last, err := orch.LastVerification(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last.Status).To(Equal(setup.StatusSucceeded))
			Expect(last.Verification.ProbedFile).To(Equal("invoice.pdf"))

			var cached setup.StepReport
			Expect(cache.GetJSON(ctx, store, setup.LastVerificationKey, &cached)).To(Succeed())
			Expect(cached.Status).To(Equal(setup.StatusSucceeded))
		})

		It("records a failing verification", func() {
			exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(&snowflake.Result{
				Columns: []string{"name", "size", "md5", "last_modified"},
			}, nil)

			orch := newOrchestrator("INTERNAL")
			err := periodicjobs.NewVerificationProbeJob(orch, 0).Run(ctx)
			Expect(errors.Is(err, setup.ErrNoFilesFound)).To(BeTrue())

			last, err := orch.LastVerification(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last.Status).To(Equal(setup.StatusFailed))
			Expect(last.Kind).To(Equal(setup.KindNoFilesFound))
		})
	})

	Describe("Scheduler", func() {
		It("registers only enabled jobs", func() {
			scheduler := periodicjobs.NewScheduler(newOrchestrator("INTERNAL"), config.Jobs{
				StageRefresh:      config.Job{Enabled: false, IntervalSeconds: 60},
				VerificationProbe: config.Job{Enabled: true, IntervalSeconds: 60},
			}, store)
			Expect(scheduler.Tasks()).To(Equal([]string{periodicjobs.VerificationProbeJobName}))
		})

		It("starts with no jobs enabled", func() {
			scheduler := periodicjobs.NewScheduler(newOrchestrator("INTERNAL"), config.Jobs{}, store)
			Expect(scheduler.Tasks()).To(BeEmpty())
			Expect(scheduler.Start(ctx)).To(Succeed())
		})

		It("starts jobs once the cache is healthy", func() {
			scheduler := periodicjobs.NewScheduler(newOrchestrator("INTERNAL"), config.Jobs{
				StageRefresh: config.Job{Enabled: true},
			}, store)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			Expect(scheduler.Start(runCtx)).To(Succeed())
		})
	})
})
