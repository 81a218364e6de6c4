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

package config

import (
	"os"
	"time"

	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/request/httpclient"
)

// AppConfig represents the top-level configuration structure
type AppConfig struct {
	App       App          `mapstructure:"app" yaml:"app"`
	Snowflake Snowflake    `mapstructure:"snowflake" yaml:"snowflake"`
	Setup     Setup        `mapstructure:"setup" yaml:"setup"`
	Cache     cache.Config `mapstructure:"cache" yaml:"cache"`
	APIServer APIServer    `mapstructure:"apiserver" yaml:"apiserver"`
	Jobs      Jobs         `mapstructure:"jobs" yaml:"jobs"`
}

// App represents the application configuration
type App struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Version     string `mapstructure:"version" yaml:"version"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
}

// Snowflake holds the SQL API connection settings
type Snowflake struct {
	BaseURL                 string                             `mapstructure:"base_url" yaml:"baseUrl" validate:"required,url"`
	PAT                     string                             `mapstructure:"pat" yaml:"-" validate:"required"`
	Role                    string                             `mapstructure:"role" yaml:"role"`
	Warehouse               string                             `mapstructure:"warehouse" yaml:"warehouse"`
	StatementTimeoutSeconds int                                `mapstructure:"statement_timeout_seconds" yaml:"statementTimeoutSeconds" validate:"gte=0"`
	PollIntervalMs          int                                `mapstructure:"poll_interval_ms" yaml:"pollIntervalMs" validate:"gte=0"`
	ConnectionPool          httpclient.ConnectionPoolConfig    `mapstructure:"connection_pool" yaml:"connectionPool"`
	Hystrix                 httpclient.HystrixResiliencyConfig `mapstructure:"hystrix" yaml:"hystrix"`
	Retry                   httpclient.RetryConfig             `mapstructure:"retry" yaml:"retry"`
}

// Setup names every object the orchestrator provisions
type Setup struct {
	Database    string      `mapstructure:"database" yaml:"database" validate:"required"`
	Schema      string      `mapstructure:"schema" yaml:"schema" validate:"required"`
	Stage       Stage       `mapstructure:"stage" yaml:"stage"`
	Integration Integration `mapstructure:"integration" yaml:"integration"`
	Grants      Grants      `mapstructure:"grants" yaml:"grants"`
	Verify      Verify      `mapstructure:"verify" yaml:"verify"`
}

type Stage struct {
	Name string `mapstructure:"name" yaml:"name" validate:"required"`
	Mode string `mapstructure:"mode" yaml:"mode" validate:"required,oneof=INTERNAL EXTERNAL internal external"`
	URL  string `mapstructure:"url" yaml:"url" validate:"omitempty,startswith=s3"`
	// Integration defaults to integration.name for external stages
	Integration string `mapstructure:"integration" yaml:"integration"`
	Encryption  string `mapstructure:"encryption" yaml:"encryption"`
	Directory   bool   `mapstructure:"directory" yaml:"directory"`
	AutoRefresh bool   `mapstructure:"auto_refresh" yaml:"autoRefresh"`
}

type Integration struct {
	Name             string   `mapstructure:"name" yaml:"name"`
	RoleARN          string   `mapstructure:"role_arn" yaml:"roleArn" validate:"omitempty,startswith=arn:"`
	AllowedLocations []string `mapstructure:"allowed_locations" yaml:"allowedLocations"`
	BlockedLocations []string `mapstructure:"blocked_locations" yaml:"blockedLocations"`
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
}

// Grants names the consumer role. IntegrationUsage also grants USAGE on the
// storage integration, which reading an external stage does not need.
type Grants struct {
	Role             string `mapstructure:"role" yaml:"role" validate:"required"`
	CortexRole       string `mapstructure:"cortex_role" yaml:"cortexRole"`
	Warehouse        string `mapstructure:"warehouse" yaml:"warehouse"`
	IntegrationUsage bool   `mapstructure:"integration_usage" yaml:"integrationUsage"`
}

type Verify struct {
	Refresh        bool   `mapstructure:"refresh" yaml:"refresh"`
	ResponseFormat string `mapstructure:"response_format" yaml:"responseFormat"`
	ResponseSchema string `mapstructure:"response_schema" yaml:"responseSchema"`
}

// APIServer configures the serve mode HTTP API
type APIServer struct {
	Address string `mapstructure:"address" yaml:"address"`
	Auth    Auth   `mapstructure:"auth" yaml:"auth"`
	CORS    CORS   `mapstructure:"cors" yaml:"cors"`
}

type Auth struct {
	Enabled    bool        `mapstructure:"enabled" yaml:"enabled"`
	BasicUsers []BasicUser `mapstructure:"basic_users" yaml:"basicUsers"`
}

type BasicUser struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowedOrigins"`
}

// Jobs configures the serve mode periodic jobs. Intervals are in seconds; 0 runs a job once.
type Jobs struct {
	StageRefresh      Job `mapstructure:"stage_refresh" yaml:"stageRefresh"`
	VerificationProbe Job `mapstructure:"verification_probe" yaml:"verificationProbe"`
}

type Job struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds" yaml:"intervalSeconds" validate:"gte=0"`
}

// Interval returns the job period
func (j Job) Interval() time.Duration {
	return time.Duration(j.IntervalSeconds) * time.Second
}

// ClientConfig converts the connection settings to the Snowflake client's config.
// No session database or schema is set; the namespace step creates them and
// every statement names its objects fully qualified.
func (s Snowflake) ClientConfig() snowflake.SnowflakeConfig {
	return snowflake.SnowflakeConfig{
		PAT:              s.PAT,
		BaseURL:          s.BaseURL,
		Role:             s.Role,
		Warehouse:        s.Warehouse,
		StatementTimeout: time.Duration(s.StatementTimeoutSeconds) * time.Second,
		PollInterval:     time.Duration(s.PollIntervalMs) * time.Millisecond,
	}
}

var config *AppConfig

// LoadConfig reads appconfig/default.yaml overlaid by appconfig/<env>.yaml
func LoadConfig(env string) (*AppConfig, error) {
	return LoadConfigWithOptions(NewDefaultOptions(), env)
}

// LoadConfigWithOptions loads from a caller chosen directory and validates the result
func LoadConfigWithOptions(opts Options, env string) (*AppConfig, error) {
	config = &AppConfig{}
	err := NewConfig(opts).Load(env, config)
	if err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func getOrDefaultEnv() string {
	env := os.Getenv("APP_ENV")
	if len(env) == 0 {
		return "default"
	}
	return env
}

func GetConfig() (*AppConfig, error) {
	var err error
	if config == nil {
		config, err = LoadConfig(getOrDefaultEnv())
	}

	return config, err
}
