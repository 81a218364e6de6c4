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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Execute submits a single SQL statement and waits for its result.
// Statements still running when ctx is done are cancelled on the server.
func (c *SnowflakeClient) Execute(ctx context.Context, statement string) (*Result, error) {
	requestID := uuid.NewString()
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"service":   serviceName,
		"requestId": requestID,
	})
	log.WithField("statement", summarize(statement)).Info("executing statement")

	body := statementRequest{
		Statement: statement,
		Timeout:   int(c.config.StatementTimeout / time.Second),
		Warehouse: c.config.Warehouse,
		Role:      c.config.Role,
	}

	resp, err := c.makeRequest(ctx, statementsEndpoint, http.MethodPost, body,
		map[string]string{"requestId": requestID})
	if err != nil {
		log.WithError(err).Error("error submitting statement")
		return nil, fmt.Errorf("error submitting statement: %w", err)
	}

	doc, err := decodeStatementResponse(resp)
	if err != nil {
		log.WithError(err).Error("statement failed")
		return nil, err
	}

	if resp.StatusCode == http.StatusAccepted {
		doc, err = c.waitForStatement(ctx, doc)
		if err != nil {
			log.WithError(err).Error("statement failed")
			return nil, err
		}
	}

	result, err := c.collectResult(ctx, doc)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"statementHandle": result.StatementHandle,
		"rows":            len(result.Rows),
	}).Info("statement completed")
	return result, nil
}

// waitForStatement polls the statement status URL until it leaves the
// in-progress state
func (c *SnowflakeClient) waitForStatement(ctx context.Context, doc *statementResponse) (*statementResponse, error) {
	handle := doc.StatementHandle
	statusURL := doc.StatementStatusURL
	if statusURL == "" {
		statusURL = statementsEndpoint + "/" + handle
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.cancelStatement(handle)
			return nil, fmt.Errorf("statement %s did not complete: %w", handle, ctx.Err())
		case <-ticker.C:
		}

		resp, err := c.makeRequest(ctx, statusURL, http.MethodGet, nil, nil)
		if err != nil {
			if ctx.Err() != nil {
				c.cancelStatement(handle)
				return nil, fmt.Errorf("statement %s did not complete: %w", handle, ctx.Err())
			}
			return nil, fmt.Errorf("error polling statement %s: %w", handle, err)
		}

		next, err := decodeStatementResponse(resp)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return next, nil
		}
		logger.Logger(ctx).WithFields(logrus.Fields{
			"service":         serviceName,
			"statementHandle": handle,
		}).Debug("statement still running")
	}
}

// cancelStatement is best effort; the caller has already given up on the result
func (c *SnowflakeClient) cancelStatement(handle string) {
	if handle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/cancel", statementsEndpoint, handle)
	if _, err := c.makeRequest(ctx, endpoint, http.MethodPost, nil, nil); err != nil {
		logger.Logger(ctx).WithError(err).WithField("statementHandle", handle).Warn("failed to cancel statement")
	}
}

// collectResult converts the first partition and fetches any remaining ones
func (c *SnowflakeClient) collectResult(ctx context.Context, doc *statementResponse) (*Result, error) {
	result := &Result{
		StatementHandle: doc.StatementHandle,
		Message:         doc.Message,
		Rows:            convertRows(doc.Data),
	}

	if doc.ResultSetMetaData == nil {
		return result, nil
	}
	for _, col := range doc.ResultSetMetaData.RowType {
		result.Columns = append(result.Columns, col.Name)
	}

	for partition := 1; partition < len(doc.ResultSetMetaData.PartitionInfo); partition++ {
		endpoint := fmt.Sprintf("%s/%s", statementsEndpoint, doc.StatementHandle)
		resp, err := c.makeRequest(ctx, endpoint, http.MethodGet, nil,
			map[string]string{"partition": strconv.Itoa(partition)})
		if err != nil {
			return nil, fmt.Errorf("error fetching partition %d: %w", partition, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch partition %d, status: %s, body: %s",
				partition, http.StatusText(resp.StatusCode), string(resp.Body))
		}

		var page statementResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse partition %d: %w", partition, err)
		}
		result.Rows = append(result.Rows, convertRows(page.Data)...)
	}

	return result, nil
}

func convertRows(data [][]*string) [][]string {
	rows := make([][]string, 0, len(data))
	for _, raw := range data {
		row := make([]string, len(raw))
		for i, v := range raw {
			if v != nil {
				row[i] = *v
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// summarize shortens a statement to its first line for logs
func summarize(statement string) string {
	s := strings.TrimSpace(statement)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

// ColumnIndex returns the position of the named column, case-insensitively, or -1
func (r *Result) ColumnIndex(name string) int {
	for i, col := range r.Columns {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

// Value returns the named column of row i, or "" when absent
func (r *Result) Value(i int, column string) string {
	idx := r.ColumnIndex(column)
	if idx < 0 || i >= len(r.Rows) || idx >= len(r.Rows[i]) {
		return ""
	}
	return r.Rows[i][idx]
}
