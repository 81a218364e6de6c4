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

// Package guidelint checks that a Markdown setup guide is consistent: stages
// are created before they are used, trust policies carry placeholders instead
// of real external IDs and every SQL block runs on its own.
package guidelint

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/redhat-data-and-ai/cortexstage/pkg/ddl"
	"github.com/redhat-data-and-ai/cortexstage/pkg/trustpolicy"
)

type Rule string

const (
	RuleStageReference Rule = "stage-reference"
	RuleExternalID     Rule = "external-id-placeholder"
	RuleSQLSyntax      Rule = "sql-syntax"
	RuleJSONSyntax     Rule = "json-syntax"
	RuleFence          Rule = "fence"
)

const externalIDKey = "sts:ExternalId"

var (
	createStageRe = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?(?:TEMP(?:ORARY)?\s+)?STAGE\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_$."]+)`)
	atStageRe     = regexp.MustCompile(`@([A-Za-z0-9_$."]+)`)
	stageWordRe   = regexp.MustCompile(`(?i)\bSTAGE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_$."]+)`)
)

// Finding is one consistency problem
type Finding struct {
	Line    int    `json:"line" yaml:"line"`
	Rule    Rule   `json:"rule" yaml:"rule"`
	Message string `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("line %d: [%s] %s", f.Line, f.Rule, f.Message)
}

type stageRef struct {
	name string
	line int
}

// LintFile lints the Markdown guide at path
func LintFile(path string) ([]Finding, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guide: %w", err)
	}
	return Lint(string(b)), nil
}

// Lint returns the findings of a Markdown guide ordered by line
func Lint(markdown string) []Finding {
	var (
		findings []Finding
		created  = map[string]int{}
		refs     []stageRef
	)

	for _, block := range Blocks(markdown) {
		if !block.Closed {
			findings = append(findings, Finding{Line: block.Line - 1, Rule: RuleFence, Message: "code block is never closed"})
		}

		switch block.Lang {
		case "sql", "snowsql", "snowflake":
			stmts, problems := splitSQL(block.Body, block.Line)
			findings = append(findings, problems...)
			for _, s := range stmts {
				findings = append(findings, checkStatement(s)...)

				if m := createStageRe.FindStringSubmatch(s.Text); m != nil {
					key := stageKey(m[1])
					if _, ok := created[key]; !ok {
						created[key] = s.Line
					}
					continue
				}
				refs = append(refs, stageRefs(s)...)
			}
		case "json":
			findings = append(findings, checkJSON(block)...)
		}
	}

	for _, ref := range refs {
		key := stageKey(ref.name)
		line, ok := created[key]
		switch {
		case !ok:
			findings = append(findings, Finding{Line: ref.line, Rule: RuleStageReference,
				Message: fmt.Sprintf("stage %s is never created in this guide", ref.name)})
		case line > ref.line:
			findings = append(findings, Finding{Line: ref.line, Rule: RuleStageReference,
				Message: fmt.Sprintf("stage %s is used before it is created on line %d", ref.name, line)})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Line < findings[j].Line })
	return findings
}

func checkStatement(s statement) []Finding {
	var findings []Finding
	if kw := leadingKeyword(s.Text); !knownKeywords[kw] {
		findings = append(findings, Finding{Line: s.Line, Rule: RuleSQLSyntax,
			Message: fmt.Sprintf("statement starts with unknown keyword %q", firstWord(s.Text))})
	}
	if !s.Terminated {
		findings = append(findings, Finding{Line: s.Line, Rule: RuleSQLSyntax, Message: "statement is not terminated with ;"})
	}
	return findings
}

func stageRefs(s statement) []stageRef {
	var refs []stageRef
	seen := map[string]bool{}
	for _, re := range []*regexp.Regexp{atStageRe, stageWordRe} {
		for _, m := range re.FindAllStringSubmatchIndex(s.Text, -1) {
			name := strings.TrimRight(s.Text[m[2]:m[3]], ".")
			if name == "" || seen[stageKey(name)] {
				continue
			}
			seen[stageKey(name)] = true
			refs = append(refs, stageRef{name: name, line: s.Line + strings.Count(s.Text[:m[0]], "\n")})
		}
	}
	return refs
}

// stageKey compares stage names by their unqualified, upper-cased name
func stageKey(name string) string {
	parts := ddl.SplitQualified(strings.TrimRight(name, "."))
	return strings.ToUpper(parts[len(parts)-1])
}

func checkJSON(block Block) []Finding {
	var doc interface{}
	if err := json.Unmarshal([]byte(block.Body), &doc); err != nil {
		return []Finding{{Line: block.Line, Rule: RuleJSONSyntax, Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	var findings []Finding
	for _, id := range externalIDs(doc) {
		if trustpolicy.IsPlaceholder(id) {
			continue
		}
		findings = append(findings, Finding{Line: lineOf(block, id), Rule: RuleExternalID,
			Message: fmt.Sprintf("%s is a literal value %q; use a placeholder such as %s",
				externalIDKey, id, trustpolicy.PlaceholderExternalID)})
	}
	return findings
}

// externalIDs walks a policy document and returns every sts:ExternalId value
func externalIDs(v interface{}) []string {
	var ids []string
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if !strings.EqualFold(k, externalIDKey) {
				ids = append(ids, externalIDs(child)...)
				continue
			}
			switch id := child.(type) {
			case string:
				ids = append(ids, id)
			case []interface{}:
				for _, item := range id {
					if s, ok := item.(string); ok {
						ids = append(ids, s)
					}
				}
			}
		}
	case []interface{}:
		for _, child := range t {
			ids = append(ids, externalIDs(child)...)
		}
	}
	sort.Strings(ids)
	return ids
}

func lineOf(block Block, value string) int {
	for i, l := range strings.Split(block.Body, "\n") {
		if strings.Contains(l, value) {
			return block.Line + i
		}
	}
	return block.Line
}

func firstWord(text string) string {
	if fields := strings.Fields(text); len(fields) > 0 {
		return fields[0]
	}
	return text
}
