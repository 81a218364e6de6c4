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

package snowflake

import (
	"time"

	"github.com/gojek/heimdall/v7"
)

const statementsEndpoint = "/api/v2/statements"

// SnowflakeConfig holds the configuration for Snowflake client
type SnowflakeConfig struct {
	PAT       string
	BaseURL   string
	Role      string
	Warehouse string
	// StatementTimeout is the server side execution limit per statement
	StatementTimeout time.Duration
	// PollInterval is the wait between status checks of an async statement
	PollInterval time.Duration
}

// SnowflakeClient is the client for the Snowflake SQL API
type SnowflakeClient struct {
	config *SnowflakeConfig
	client heimdall.Doer
}

// statementRequest is the body of POST /api/v2/statements
type statementRequest struct {
	Statement string `json:"statement"`
	Timeout   int    `json:"timeout,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Role      string `json:"role,omitempty"`
}

// statementResponse covers both result sets and status/error documents
type statementResponse struct {
	Code               string             `json:"code"`
	SQLState           string             `json:"sqlState"`
	Message            string             `json:"message"`
	StatementHandle    string             `json:"statementHandle"`
	StatementStatusURL string             `json:"statementStatusUrl"`
	CreatedOn          int64              `json:"createdOn"`
	ResultSetMetaData  *resultSetMetaData `json:"resultSetMetaData,omitempty"`
	Data               [][]*string        `json:"data"`
}

type resultSetMetaData struct {
	NumRows       int64           `json:"numRows"`
	Format        string          `json:"format"`
	RowType       []columnType    `json:"rowType"`
	PartitionInfo []partitionInfo `json:"partitionInfo"`
}

type columnType struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type partitionInfo struct {
	RowCount         int64 `json:"rowCount"`
	UncompressedSize int64 `json:"uncompressedSize"`
}

// Result is a completed statement with its rows. NULL values are empty strings.
type Result struct {
	StatementHandle string
	Message         string
	Columns         []string
	Rows            [][]string
}

// StageFile is one row of LIST @stage
type StageFile struct {
	Name         string `json:"name" yaml:"name"`
	Size         int64  `json:"size" yaml:"size"`
	MD5          string `json:"md5,omitempty" yaml:"md5,omitempty"`
	LastModified string `json:"lastModified,omitempty" yaml:"lastModified,omitempty"`
}

// IntegrationProperty is one row of DESC INTEGRATION
type IntegrationProperty struct {
	Property string
	Type     string
	Value    string
	Default  string
}
