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

package ddl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/cortexstage/pkg/trustpolicy"
)

// DESC INTEGRATION properties surfaced to the operator
const (
	PropertyIAMUserARN = "STORAGE_AWS_IAM_USER_ARN"
	PropertyExternalID = "STORAGE_AWS_EXTERNAL_ID"
	PropertyRoleARN    = "STORAGE_AWS_ROLE_ARN"
	PropertyAllowed    = "STORAGE_ALLOWED_LOCATIONS"
)

// StorageIntegration binds Snowflake to an AWS IAM role
type StorageIntegration struct {
	Name             string
	RoleARN          string
	AllowedLocations []string
	BlockedLocations []string
	Enabled          bool
	Comment          string
}

func (i StorageIntegration) Validate() error {
	if err := ValidateIdentifier("storage integration", i.Name); err != nil {
		return err
	}
	if _, err := trustpolicy.ParseRoleARN(i.RoleARN); err != nil {
		return err
	}
	if len(i.AllowedLocations) == 0 {
		return errors.New("storage integration requires at least one allowed location")
	}
	for _, loc := range append(append([]string{}, i.AllowedLocations...), i.BlockedLocations...) {
		if !strings.HasPrefix(loc, "s3://") && !strings.HasPrefix(loc, "s3gov://") {
			return fmt.Errorf("storage location %q is not an S3 URL", loc)
		}
	}
	return nil
}

// Allows reports whether url falls under one of the allowed locations
func (i StorageIntegration) Allows(url string) bool {
	for _, loc := range i.AllowedLocations {
		if loc == "*" || strings.HasPrefix(url, loc) || strings.HasPrefix(url+"/", loc) {
			return true
		}
	}
	return false
}

// Create renders CREATE STORAGE INTEGRATION IF NOT EXISTS. OR REPLACE is
// avoided because it regenerates the external id and breaks the trust policy.
func (i StorageIntegration) Create() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE STORAGE INTEGRATION IF NOT EXISTS %s", Ident(i.Name))
	b.WriteString("\n  TYPE = EXTERNAL_STAGE")
	b.WriteString("\n  STORAGE_PROVIDER = 'S3'")
	fmt.Fprintf(&b, "\n  ENABLED = %s", boolSQL(i.Enabled))
	fmt.Fprintf(&b, "\n  STORAGE_AWS_ROLE_ARN = %s", Literal(i.RoleARN))
	fmt.Fprintf(&b, "\n  STORAGE_ALLOWED_LOCATIONS = %s", LiteralList(i.AllowedLocations))
	if len(i.BlockedLocations) > 0 {
		fmt.Fprintf(&b, "\n  STORAGE_BLOCKED_LOCATIONS = %s", LiteralList(i.BlockedLocations))
	}
	if i.Comment != "" {
		fmt.Fprintf(&b, "\n  COMMENT = %s", Literal(i.Comment))
	}
	return b.String()
}

// Describe renders DESC INTEGRATION
func (i StorageIntegration) Describe() string {
	return "DESC INTEGRATION " + Ident(i.Name)
}
