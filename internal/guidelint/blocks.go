package guidelint

import (
	"strings"
)

// Block is a fenced code block of a Markdown document
type Block struct {
	Lang string
	// Line is the 1-based line of the first line inside the fence
	Line   int
	Body   string
	Closed bool
}

// Blocks returns the fenced code blocks of a Markdown document in order
func Blocks(markdown string) []Block {
	var (
		blocks []Block
		cur    *Block
		fence  string
		body   []string
	)

	lines := strings.Split(strings.TrimSuffix(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n"), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if cur == nil {
			marker := fenceMarker(trimmed)
			if marker == "" {
				continue
			}
			lang := strings.TrimSpace(strings.TrimLeft(trimmed, marker[:1]))
			if fields := strings.Fields(lang); len(fields) > 0 {
				lang = strings.ToLower(fields[0])
			}
			cur = &Block{Lang: lang, Line: i + 2}
			fence = marker
			body = nil
			continue
		}

		if strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == "" {
			cur.Body = strings.Join(body, "\n")
			cur.Closed = true
			blocks = append(blocks, *cur)
			cur = nil
			continue
		}
		body = append(body, line)
	}

	if cur != nil {
		cur.Body = strings.Join(body, "\n")
		blocks = append(blocks, *cur)
	}
	return blocks
}

// fenceMarker returns the run of ``` or ~~~ opening a fence
func fenceMarker(line string) string {
	for _, c := range []string{"`", "~"} {
		if !strings.HasPrefix(line, c+c+c) {
			continue
		}
		n := 0
		for n < len(line) && line[n] == c[0] {
			n++
		}
		return line[:n]
	}
	return ""
}
