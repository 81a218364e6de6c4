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

// Package trustpolicy renders the AWS IAM documents an operator attaches to the
// role a Snowflake storage integration assumes. Nothing here talks to AWS.
package trustpolicy

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	policyVersion = "2012-10-17"

	// PlaceholderIAMUserARN stands in for STORAGE_AWS_IAM_USER_ARN before DESC INTEGRATION ran
	PlaceholderIAMUserARN = "<STORAGE_AWS_IAM_USER_ARN>"
	// PlaceholderExternalID stands in for STORAGE_AWS_EXTERNAL_ID before DESC INTEGRATION ran
	PlaceholderExternalID = "<STORAGE_AWS_EXTERNAL_ID>"
)

var roleARNPattern = regexp.MustCompile(`^arn:(aws|aws-us-gov|aws-cn):iam::(\d{12}):role/([\w+=,.@/-]{1,512})$`)

// Identifiers are the values Snowflake generates for a storage integration
type Identifiers struct {
	IAMUserARN string `json:"iamUserArn" yaml:"iamUserArn"`
	ExternalID string `json:"externalId" yaml:"externalId"`
}

// Placeholders returns identifiers to render a document before the integration exists
func Placeholders() Identifiers {
	return Identifiers{IAMUserARN: PlaceholderIAMUserARN, ExternalID: PlaceholderExternalID}
}

// IsPlaceholder reports whether v is one of the placeholder forms a guide may use
// instead of a real value: <...>, YOUR_..., ${...}
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return false
	case strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">"):
		return true
	case strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}"):
		return true
	case strings.HasPrefix(strings.ToUpper(v), "YOUR_"):
		return true
	}
	return false
}

// RoleARN is a parsed IAM role ARN
type RoleARN struct {
	Partition string
	AccountID string
	RoleName  string
}

func (r RoleARN) String() string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", r.Partition, r.AccountID, r.RoleName)
}

// ParseRoleARN validates arn:aws:iam::<12 digits>:role/<name>
func ParseRoleARN(arn string) (RoleARN, error) {
	m := roleARNPattern.FindStringSubmatch(strings.TrimSpace(arn))
	if m == nil {
		return RoleARN{}, fmt.Errorf("invalid IAM role ARN %q: expected arn:aws:iam::<account id>:role/<name>", arn)
	}
	return RoleARN{Partition: m[1], AccountID: m[2], RoleName: m[3]}, nil
}

// Document is an IAM policy document
type Document struct {
	Version   string      `json:"Version" yaml:"Version"`
	Statement []Statement `json:"Statement" yaml:"Statement"`
}

// Statement is one IAM policy statement
type Statement struct {
	Sid       string                       `json:"Sid,omitempty" yaml:"Sid,omitempty"`
	Effect    string                       `json:"Effect" yaml:"Effect"`
	Principal map[string]string            `json:"Principal,omitempty" yaml:"Principal,omitempty"`
	Action    []string                     `json:"Action" yaml:"Action"`
	Resource  []string                     `json:"Resource,omitempty" yaml:"Resource,omitempty"`
	Condition map[string]map[string]string `json:"Condition,omitempty" yaml:"Condition,omitempty"`
}

// Trust returns the trust relationship that lets the Snowflake IAM user assume the
// role, pinned to the integration's external id
func Trust(ids Identifiers) Document {
	return Document{
		Version: policyVersion,
		Statement: []Statement{{
			Sid:       "SnowflakeStorageIntegration",
			Effect:    "Allow",
			Principal: map[string]string{"AWS": ids.IAMUserARN},
			Action:    []string{"sts:AssumeRole"},
			Condition: map[string]map[string]string{
				"StringEquals": {"sts:ExternalId": ids.ExternalID},
			},
		}},
	}
}

// S3Access returns the permission policy granting read access on the allowed
// locations. Locations are s3://bucket/prefix/ URLs.
func S3Access(locations []string) (Document, error) {
	if len(locations) == 0 {
		return Document{}, fmt.Errorf("at least one allowed location is required")
	}

	var objects []string
	buckets := map[string][]string{}
	var bucketOrder []string

	for _, loc := range locations {
		bucket, prefix, err := splitS3URL(loc)
		if err != nil {
			return Document{}, err
		}
		objects = append(objects, fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, prefix))
		if _, ok := buckets[bucket]; !ok {
			bucketOrder = append(bucketOrder, bucket)
		}
		buckets[bucket] = append(buckets[bucket], prefix+"*")
	}

	statements := []Statement{{
		Sid:      "ReadStagedDocuments",
		Effect:   "Allow",
		Action:   []string{"s3:GetObject", "s3:GetObjectVersion"},
		Resource: objects,
	}}
	for _, bucket := range bucketOrder {
		statements = append(statements, Statement{
			Effect:   "Allow",
			Action:   []string{"s3:ListBucket", "s3:GetBucketLocation"},
			Resource: []string{"arn:aws:s3:::" + bucket},
			Condition: map[string]map[string]string{
				"StringLike": {"s3:prefix": strings.Join(buckets[bucket], ",")},
			},
		})
	}

	return Document{Version: policyVersion, Statement: statements}, nil
}

// JSON renders the document indented the way the AWS console shows it
func (d Document) JSON() (string, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("failed to render policy document: %w", err)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// splitS3URL returns the bucket and the key prefix of s3://bucket/prefix/
func splitS3URL(loc string) (string, string, error) {
	rest, ok := strings.CutPrefix(loc, "s3://")
	if !ok {
		rest, ok = strings.CutPrefix(loc, "s3gov://")
	}
	if !ok || rest == "" {
		return "", "", fmt.Errorf("invalid S3 location %q: expected s3://bucket/path/", loc)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 location %q: missing bucket", loc)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}
