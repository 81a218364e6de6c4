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
)

// StageMode selects how a stage stores its files
type StageMode string

const (
	StageInternal StageMode = "INTERNAL"
	StageExternal StageMode = "EXTERNAL"

	// EncryptionSSE is the only internal stage encryption AI_EXTRACT can read
	EncryptionSSE = "SNOWFLAKE_SSE"
)

var (
	// ErrMissingIntegration is returned for an external stage without a storage integration
	ErrMissingIntegration = errors.New("external stage requires a storage integration")
	// ErrMissingURL is returned for an external stage without a location
	ErrMissingURL = errors.New("external stage requires a URL")
	// ErrUnsupportedEncryption is returned for internal stages not using server-side encryption
	ErrUnsupportedEncryption = errors.New("internal stage must use SNOWFLAKE_SSE encryption")
)

// Stage is a named file location the warehouse can read
type Stage struct {
	Namespace   Namespace
	Name        string
	Mode        StageMode
	URL         string
	Integration string
	Encryption  string
	Directory   bool
	AutoRefresh bool
}

// ParseStageMode accepts INTERNAL or EXTERNAL in any case
func ParseStageMode(s string) (StageMode, error) {
	switch m := StageMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case StageInternal, StageExternal:
		return m, nil
	}
	return "", fmt.Errorf("unknown stage mode %q: expected INTERNAL or EXTERNAL", s)
}

// Validate checks the stage before any SQL is sent
func (s Stage) Validate() error {
	if err := s.Namespace.Validate(); err != nil {
		return err
	}
	if err := ValidateIdentifier("stage", s.Name); err != nil {
		return err
	}

	switch s.Mode {
	case StageExternal:
		if strings.TrimSpace(s.Integration) == "" {
			return fmt.Errorf("stage %s: %w", s.Name, ErrMissingIntegration)
		}
		if err := ValidateIdentifier("storage integration", s.Integration); err != nil {
			return err
		}
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("stage %s: %w", s.Name, ErrMissingURL)
		}
	case StageInternal:
		if s.Encryption != "" && !strings.EqualFold(s.Encryption, EncryptionSSE) {
			return fmt.Errorf("stage %s has encryption %s: %w", s.Name, s.Encryption, ErrUnsupportedEncryption)
		}
	default:
		return fmt.Errorf("stage %s: unknown mode %q", s.Name, s.Mode)
	}
	return nil
}

// FullName returns DB.SCHEMA.STAGE
func (s Stage) FullName() string {
	return s.Namespace.Qualify(s.Name)
}

// Reference returns @DB.SCHEMA.STAGE
func (s Stage) Reference() string {
	return "@" + s.FullName()
}

// Create renders CREATE STAGE IF NOT EXISTS for the stage's mode
func (s Stage) Create() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE STAGE IF NOT EXISTS %s", s.FullName())

	switch s.Mode {
	case StageExternal:
		fmt.Fprintf(&b, "\n  URL = %s", Literal(s.URL))
		fmt.Fprintf(&b, "\n  STORAGE_INTEGRATION = %s", Ident(s.Integration))
		if s.Directory {
			fmt.Fprintf(&b, "\n  DIRECTORY = (ENABLE = TRUE AUTO_REFRESH = %s)", boolSQL(s.AutoRefresh))
		}
	default:
		if s.Directory {
			b.WriteString("\n  DIRECTORY = (ENABLE = TRUE)")
		}
		fmt.Fprintf(&b, "\n  ENCRYPTION = (TYPE = %s)", Literal(EncryptionSSE))
	}
	return b.String()
}

// List renders LIST @stage
func (s Stage) List() string {
	return "LIST " + s.Reference()
}

// Refresh renders ALTER STAGE ... REFRESH, which syncs the directory table
func (s Stage) Refresh() string {
	return fmt.Sprintf("ALTER STAGE %s REFRESH", s.FullName())
}

// Put renders the SnowSQL command that uploads local files to an internal stage
func (s Stage) Put(localPath string) string {
	return fmt.Sprintf("PUT file://%s %s AUTO_COMPRESS = FALSE", localPath, s.Reference())
}

// RelativePath maps a LIST name to the path TO_FILE expects. Internal stages
// list "stage_name/path", external stages list the full URL.
func (s Stage) RelativePath(listed string) string {
	if s.Mode == StageExternal {
		base := s.URL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		if rel, ok := cutPrefixFold(listed, base); ok {
			return rel
		}
		if i := strings.Index(listed, "://"); i >= 0 {
			rest := listed[i+3:]
			if j := strings.IndexByte(rest, '/'); j >= 0 {
				return rest[j+1:]
			}
		}
		return listed
	}

	if rel, ok := cutPrefixFold(listed, s.Name+"/"); ok {
		return rel
	}
	return listed
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func boolSQL(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
