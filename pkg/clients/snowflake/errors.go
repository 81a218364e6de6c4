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
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Snowflake error codes the setup flow distinguishes
const (
	CodeObjectNotFound         = "002003"
	CodeUnknownFunction        = "002140"
	CodeInsufficientPrivileges = "003001"
)

// APIError is a failed statement or a non-success response from the SQL API
type APIError struct {
	HTTPStatus      int
	Code            string
	SQLState        string
	Message         string
	StatementHandle string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("snowflake error %s (sqlState %s, status %s): %s",
			e.Code, e.SQLState, http.StatusText(e.HTTPStatus), e.Message)
	}
	return fmt.Sprintf("snowflake request failed, status: %s, body: %s",
		http.StatusText(e.HTTPStatus), e.Message)
}

// IsObjectNotFound reports whether the statement referenced a missing or unauthorized object
func (e *APIError) IsObjectNotFound() bool {
	return e.Code == CodeObjectNotFound ||
		strings.Contains(strings.ToLower(e.Message), "does not exist or not authorized")
}

// IsUnknownFunction reports whether the statement called a function the account cannot see
func (e *APIError) IsUnknownFunction() bool {
	return e.Code == CodeUnknownFunction ||
		strings.Contains(strings.ToLower(e.Message), "unknown function")
}

// IsInsufficientPrivileges reports whether the role lacked rights for the statement
func (e *APIError) IsInsufficientPrivileges() bool {
	return e.Code == CodeInsufficientPrivileges ||
		strings.Contains(strings.ToLower(e.Message), "insufficient privileges")
}

// AsAPIError unwraps err to an *APIError if it carries one
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
