package ddl

import (
	"encoding/json"
	"fmt"
)

// DefaultResponseFormat asks a question any PDF can answer
const DefaultResponseFormat = `{"document_type": "What type of document is this?"}`

// ExtractProbe is a single AI_EXTRACT call against one staged file
type ExtractProbe struct {
	Stage Stage
	// Path is relative to the stage root
	Path string
	// ResponseFormat is the JSON object of questions passed to AI_EXTRACT
	ResponseFormat string
}

// SQL renders SELECT AI_EXTRACT(...) AS result
func (p ExtractProbe) SQL() (string, error) {
	format := p.ResponseFormat
	if format == "" {
		format = DefaultResponseFormat
	}
	if !json.Valid([]byte(format)) {
		return "", fmt.Errorf("response format is not valid JSON: %s", format)
	}

	return fmt.Sprintf("SELECT AI_EXTRACT(\n  file => TO_FILE(%s, %s),\n  responseFormat => PARSE_JSON(%s)\n) AS result",
		Literal(p.Stage.Reference()), Literal(p.Path), Literal(format)), nil
}
