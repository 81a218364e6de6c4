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

// Package ddl builds the Snowflake statements the setup flow runs. Builders only
// render SQL; executing it is up to the caller.
package ddl

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const maxIdentifierLength = 255

var unquotedIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateIdentifier rejects names Snowflake cannot store even when quoted
func ValidateIdentifier(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("%s name %q exceeds %d characters", kind, name, maxIdentifierLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s name %q contains control characters", kind, name)
		}
	}
	return nil
}

// Ident renders a single identifier, double-quoting it when it is not a plain
// unquoted identifier
func Ident(name string) string {
	if unquotedIdentifier.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedIdent renders a dotted name part by part
func QualifiedIdent(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		quoted = append(quoted, Ident(p))
	}
	return strings.Join(quoted, ".")
}

// SplitQualified splits DB.SCHEMA.NAME style names. Quoted parts keep their dots.
func SplitQualified(name string) []string {
	var parts []string
	var cur strings.Builder
	quoted := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '"' && quoted && i+1 < len(name) && name[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			quoted = !quoted
		case c == '.' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(parts, cur.String())
}

// Literal renders a single-quoted string literal
func Literal(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// LiteralList renders ('a', 'b')
func LiteralList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Literal(v)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
