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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/redhat-data-and-ai/cortexstage/internal/setup"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/config"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// newExecutor builds the Snowflake client; tests replace it
var newExecutor = func(cfg *config.AppConfig) (setup.Executor, error) {
	if err := config.ValidateConnection(cfg); err != nil {
		return nil, err
	}
	return snowflake.NewClient(
		cfg.Snowflake.ClientConfig(),
		cfg.Snowflake.ConnectionPool,
		cfg.Snowflake.Hystrix,
		cfg.Snowflake.Retry,
	)
}

type rootOptions struct {
	env       string
	configDir string
	dryRun    bool
	output    string
}

// app is everything a command needs once the configuration is loaded
type app struct {
	cfg   *config.AppConfig
	plan  *setup.Plan
	cache cache.Cache
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cortexstage",
		Short: "Prepare a Snowflake account for Cortex AI_EXTRACT on PDF documents",
		Long: `cortexstage creates the database, schema, stage, storage integration and
grants that Cortex AI_EXTRACT needs, then verifies the setup with a real
extraction. Every step is idempotent and the run stops at the first failure.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger.Init()
			logrus.SetOutput(cmd.ErrOrStderr())

			switch opts.output {
			case outputText, outputJSON, outputYAML:
				return nil
			}
			return fmt.Errorf("unknown output format %q: expected text, json or yaml", opts.output)
		},
	}

	defaultEnv := os.Getenv("APP_ENV")
	if defaultEnv == "" {
		defaultEnv = config.DefaultConfigFileName
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.env, "env", defaultEnv, "configuration overlay to apply on top of default.yaml")
	flags.StringVar(&opts.configDir, "config-dir", "", "directory holding the yaml configuration (default: appconfig)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the SQL without connecting to Snowflake")
	flags.StringVarP(&opts.output, "output", "o", outputText, "output format: text, json or yaml")

	rootCmd.AddCommand(
		newSetupCmd(opts),
		newPlanCmd(opts),
		newTrustPolicyCmd(opts),
		newLintCmd(opts),
		newServeCmd(opts),
	)
	for _, step := range []string{setup.StepNamespace, setup.StepStage, setup.StepTrust, setup.StepGrant, setup.StepVerify} {
		rootCmd.AddCommand(newStepCmd(opts, step))
	}

	return rootCmd
}

// load reads the configuration and builds the plan and cache
func (o *rootOptions) load() (*app, error) {
	opts := config.NewDefaultOptions()
	if o.configDir != "" {
		opts = config.NewDirOptions(o.configDir)
	}

	cfg, err := config.LoadConfigWithOptions(opts, o.env)
	if err != nil {
		return nil, err
	}

	plan, err := setup.NewPlan(cfg.Setup)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(&cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	return &app{cfg: cfg, plan: plan, cache: c}, nil
}

// orchestrator connects to Snowflake and returns an orchestrator for the plan
func (a *app) orchestrator() (*setup.Orchestrator, error) {
	exec, err := newExecutor(a.cfg)
	if err != nil {
		return nil, err
	}
	return setup.NewOrchestrator(exec, a.plan, a.cache), nil
}

// render writes v in the selected format; text uses the caller's printer
func render(w io.Writer, format string, v interface{}, text func(io.Writer) error) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}
