package guidelint

import (
	"fmt"
	"strings"
	"unicode"
)

// knownKeywords are the statements a setup guide is expected to contain
var knownKeywords = map[string]bool{
	"ALTER": true, "BEGIN": true, "CALL": true, "COMMENT": true, "COMMIT": true,
	"COPY": true, "CREATE": true, "DELETE": true, "DESC": true, "DESCRIBE": true,
	"DROP": true, "EXECUTE": true, "EXPLAIN": true, "GET": true, "GRANT": true,
	"INSERT": true, "LIST": true, "LS": true, "MERGE": true, "PUT": true,
	"REMOVE": true, "REVOKE": true, "RM": true, "ROLLBACK": true, "SELECT": true,
	"SET": true, "SHOW": true, "TRUNCATE": true, "UNDROP": true, "UNSET": true,
	"UPDATE": true, "USE": true, "WITH": true,
}

type statement struct {
	Text       string
	Line       int
	Terminated bool
}

// splitSQL splits a SQL block into statements and reports quoting and
// nesting problems. firstLine is the document line of the block's first line.
func splitSQL(body string, firstLine int) ([]statement, []Finding) {
	var (
		stmts    []statement
		findings []Finding
		b        strings.Builder

		line      = firstLine
		start     int
		depth     int
		quoteLine int

		inSingle, inDouble, inDollar bool
		inLineComment, inBlockComment bool
	)

	flush := func(terminated bool) {
		text := strings.TrimSpace(b.String())
		if text != "" {
			if depth > 0 {
				findings = append(findings, Finding{Line: start, Rule: RuleSQLSyntax,
					Message: fmt.Sprintf("%d unclosed parenthesis(es)", depth)})
			}
			stmts = append(stmts, statement{Text: text, Line: start, Terminated: terminated})
		}
		b.Reset()
		start = 0
		depth = 0
	}

	rs := []rune(body)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		var next rune
		if i+1 < len(rs) {
			next = rs[i+1]
		}
		if c == '\n' {
			line++
		}

		switch {
		case inLineComment:
			if c == '\n' {
				inLineComment = false
				b.WriteRune(c)
			}
			continue
		case inBlockComment:
			if c == '*' && next == '/' {
				inBlockComment = false
				i++
			}
			continue
		case inSingle:
			b.WriteRune(c)
			switch {
			case c == '\\' && next != 0:
				b.WriteRune(next)
				if next == '\n' {
					line++
				}
				i++
			case c == '\'' && next == '\'':
				b.WriteRune(next)
				i++
			case c == '\'':
				inSingle = false
			}
			continue
		case inDouble:
			b.WriteRune(c)
			if c == '"' {
				inDouble = false
			}
			continue
		case inDollar:
			b.WriteRune(c)
			if c == '$' && next == '$' {
				b.WriteRune(next)
				i++
				inDollar = false
			}
			continue
		}

		if c == '-' && next == '-' {
			inLineComment = true
			i++
			continue
		}
		// unquoted stage paths such as file:///tmp/*.pdf are not comments
		if c == '/' && next == '*' && (i == 0 || unicode.IsSpace(rs[i-1])) {
			inBlockComment = true
			i++
			continue
		}
		if c == ';' {
			flush(true)
			continue
		}

		if start == 0 && !unicode.IsSpace(c) {
			start = line
		}
		b.WriteRune(c)

		switch c {
		case '\'':
			inSingle, quoteLine = true, line
		case '"':
			inDouble, quoteLine = true, line
		case '$':
			if next == '$' {
				b.WriteRune(next)
				i++
				inDollar, quoteLine = true, line
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				findings = append(findings, Finding{Line: line, Rule: RuleSQLSyntax, Message: "unmatched closing parenthesis"})
				depth = 0
			}
		}
	}

	switch {
	case inSingle:
		findings = append(findings, Finding{Line: quoteLine, Rule: RuleSQLSyntax, Message: "unterminated string literal"})
	case inDouble:
		findings = append(findings, Finding{Line: quoteLine, Rule: RuleSQLSyntax, Message: "unterminated quoted identifier"})
	case inDollar:
		findings = append(findings, Finding{Line: quoteLine, Rule: RuleSQLSyntax, Message: "unterminated $$ block"})
	case inBlockComment:
		findings = append(findings, Finding{Line: line, Rule: RuleSQLSyntax, Message: "unterminated comment"})
	}
	flush(false)

	return stmts, findings
}

// leadingKeyword returns the first word of a statement, upper-cased
func leadingKeyword(text string) string {
	end := strings.IndexFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if end < 0 {
		end = len(text)
	}
	return strings.ToUpper(text[:end])
}
