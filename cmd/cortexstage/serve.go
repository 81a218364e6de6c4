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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redhat-data-and-ai/cortexstage/internal/httpapi/handlers"
	"github.com/redhat-data-and-ai/cortexstage/internal/httpapi/server"
	"github.com/redhat-data-and-ai/cortexstage/internal/periodicjobs"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API and run the periodic refresh and verification jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logger.AddValueToContextLogger(ctx, "service", a.cfg.App.Name)

			scheduler := periodicjobs.NewScheduler(orch, a.cfg.Jobs, a.cache)
			if err := scheduler.Start(ctx); err != nil {
				return err
			}

			api := server.NewAPIServer(a.cfg, handlers.NewHandlers(a.cfg, orch, a.cache))
			return api.Start(ctx)
		},
	}
}
