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

package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redhat-data-and-ai/cortexstage/pkg/cache"
	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/ddl"
	"github.com/redhat-data-and-ai/cortexstage/pkg/trustpolicy"
)

const (
	trustKeyPrefix = "trust:"
	// LastReportKey holds the report of the most recent run
	LastReportKey = "report:last"
	// LastVerificationKey holds the most recent standalone verify step
	LastVerificationKey = "report:verify"
)

var (
	// ErrTrustNotCached is returned when no trust step ran for the integration yet
	ErrTrustNotCached = errors.New("trust identifiers not cached; run the trust step first")
	// ErrNoReport is returned when nothing has run yet
	ErrNoReport = errors.New("no report recorded yet")
)

// TrustIdentifiers are the DESC INTEGRATION values the IAM role trust policy must carry
type TrustIdentifiers struct {
	Integration      string   `json:"integration" yaml:"integration"`
	IAMUserARN       string   `json:"iamUserArn" yaml:"iamUserArn"`
	ExternalID       string   `json:"externalId" yaml:"externalId"`
	RoleARN          string   `json:"roleArn" yaml:"roleArn"`
	AllowedLocations []string `json:"allowedLocations,omitempty" yaml:"allowedLocations,omitempty"`
}

// PolicyIdentifiers returns the values the trust policy document needs
func (t TrustIdentifiers) PolicyIdentifiers() trustpolicy.Identifiers {
	return trustpolicy.Identifiers{IAMUserARN: t.IAMUserARN, ExternalID: t.ExternalID}
}

// TrustKey is the cache key of an integration's identifiers
func TrustKey(integration string) string {
	return trustKeyPrefix + strings.ToUpper(integration)
}

// trustFromProperties reads the identifiers out of DESC INTEGRATION rows
func trustFromProperties(name string, props map[string]snowflake.IntegrationProperty) (*TrustIdentifiers, error) {
	ids := &TrustIdentifiers{
		Integration: name,
		IAMUserARN:  props[ddl.PropertyIAMUserARN].Value,
		ExternalID:  props[ddl.PropertyExternalID].Value,
		RoleARN:     props[ddl.PropertyRoleARN].Value,
	}
	if allowed := props[ddl.PropertyAllowed].Value; allowed != "" {
		for _, loc := range strings.Split(allowed, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				ids.AllowedLocations = append(ids.AllowedLocations, loc)
			}
		}
	}

	var missing []string
	if ids.IAMUserARN == "" {
		missing = append(missing, ddl.PropertyIAMUserARN)
	}
	if ids.ExternalID == "" {
		missing = append(missing, ddl.PropertyExternalID)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("DESC INTEGRATION %s did not return %s", name, strings.Join(missing, ", "))
	}
	return ids, nil
}

// LoadTrust returns identifiers cached by an earlier trust step
func LoadTrust(ctx context.Context, c cache.Cache, integration string) (*TrustIdentifiers, error) {
	if c == nil {
		return nil, ErrTrustNotCached
	}
	var ids TrustIdentifiers
	if err := cache.GetJSON(ctx, c, TrustKey(integration), &ids); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrustNotCached, err)
	}
	return &ids, nil
}

// ListTrust returns the identifiers of every integration a trust step cached,
// ordered by integration name
func ListTrust(ctx context.Context, c cache.Cache) ([]TrustIdentifiers, error) {
	if c == nil {
		return nil, nil
	}
	values, err := c.GetByPattern(ctx, trustKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list cached trust identifiers: %w", err)
	}

	all := make([]TrustIdentifiers, 0, len(values))
	for key, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected cache value type %T for %s", v, key)
		}
		var ids TrustIdentifiers
		if err := json.Unmarshal([]byte(s), &ids); err != nil {
			return nil, fmt.Errorf("failed to decode cache value for %s: %w", key, err)
		}
		all = append(all, ids)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Integration < all[j].Integration })
	return all, nil
}

// LoadLastReport returns the report of the most recent cached run
func LoadLastReport(ctx context.Context, c cache.Cache) (*Report, error) {
	if c == nil {
		return nil, ErrNoReport
	}
	var report Report
	if err := cache.GetJSON(ctx, c, LastReportKey, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoReport, err)
	}
	return &report, nil
}

// Policies are the IAM documents the operator attaches to the integration's role
type Policies struct {
	Integration string                `json:"integration" yaml:"integration"`
	RoleARN     string                `json:"roleArn" yaml:"roleArn"`
	Trust       trustpolicy.Document  `json:"trustPolicy" yaml:"trustPolicy"`
	Access      *trustpolicy.Document `json:"accessPolicy,omitempty" yaml:"accessPolicy,omitempty"`
}

// BuildPolicies renders the trust policy for ids and, when locations are
// known, the S3 read policy the role needs
func BuildPolicies(ids TrustIdentifiers, roleARN string, locations []string) (*Policies, error) {
	if len(ids.AllowedLocations) > 0 {
		locations = ids.AllowedLocations
	}
	if ids.RoleARN != "" {
		roleARN = ids.RoleARN
	}

	p := &Policies{
		Integration: ids.Integration,
		RoleARN:     roleARN,
		Trust:       trustpolicy.Trust(ids.PolicyIdentifiers()),
	}
	if len(locations) > 0 {
		access, err := trustpolicy.S3Access(locations)
		if err != nil {
			return nil, err
		}
		p.Access = &access
	}
	return p, nil
}
