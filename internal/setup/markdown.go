package setup

import (
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/cortexstage/pkg/trustpolicy"
)

var stepTitles = map[string]string{
	StepNamespace: "Create the database and schema",
	StepStage:     "Create the stage",
	StepTrust:     "Create the storage integration",
	StepGrant:     "Grant access",
	StepVerify:    "Verify AI_EXTRACT",
}

// Markdown renders the plan as an operator guide. Trust identifiers are
// always placeholders; real values come from DESC INTEGRATION at run time.
func (p *Plan) Markdown() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Cortex AI_EXTRACT setup for %s\n\n", p.Stage.FullName())
	fmt.Fprintf(&b, "Stage mode: %s. Run every block in order as a role that owns the objects (for example ACCOUNTADMIN).\n",
		p.Stage.Mode)

	for i, step := range p.ExecutionOrder() {
		statements, err := p.Statements(step)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, stepTitles[step])
		writeSQL(&b, statements)

		switch step {
		case StepTrust:
			if err := p.writeTrustSection(&b); err != nil {
				return "", err
			}
		case StepStage:
			if !p.External() {
				b.WriteString("\nUpload PDF files with SnowSQL (PUT is not available through the SQL API), then refresh the directory table:\n\n")
				writeSQL(&b, []string{p.Stage.Put("/path/to/pdfs/*.pdf"), p.Stage.Refresh()})
			}
		case StepVerify:
			fmt.Fprintf(&b, "\nReplace `%s` with a path returned by LIST, relative to the stage root.\n", ProbeFilePlaceholder)
		}
	}

	b.WriteString("\n## Troubleshooting\n\n")
	fmt.Fprintf(&b, "- **%s**: check the stage name and that role %s has %s on %s.\n",
		KindStageNotFound, p.Role, stagePrivilege(p.Stage), p.Stage.FullName())
	fmt.Fprintf(&b, "- **%s**: grant DATABASE ROLE %s to role %s and check AI_EXTRACT availability in the account region.\n",
		KindFunctionNotFound, p.cortexRole(), p.Role)
	fmt.Fprintf(&b, "- **%s**: %s.\n", KindNoFilesFound, noFilesRemedy(p.Stage))

	return b.String(), nil
}

func (p *Plan) writeTrustSection(b *strings.Builder) error {
	trust, err := trustpolicy.Trust(trustpolicy.Placeholders()).JSON()
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "\nCopy %s and %s from the DESC INTEGRATION output into the trust policy of %s:\n\n",
		trustpolicy.PlaceholderIAMUserARN, trustpolicy.PlaceholderExternalID, p.Integration.RoleARN)
	writeFence(b, "json", trust)

	if len(p.Integration.AllowedLocations) == 0 {
		return nil
	}
	access, err := trustpolicy.S3Access(p.Integration.AllowedLocations)
	if err != nil {
		return err
	}
	accessJSON, err := access.JSON()
	if err != nil {
		return err
	}
	b.WriteString("\nThe role also needs read access to the allowed locations:\n\n")
	writeFence(b, "json", accessJSON)
	return nil
}

func writeSQL(b *strings.Builder, statements []string) {
	if len(statements) == 0 {
		return
	}
	lines := make([]string, len(statements))
	for i, s := range statements {
		lines[i] = s + ";"
	}
	writeFence(b, "sql", strings.Join(lines, "\n\n"))
}

func writeFence(b *strings.Builder, lang, body string) {
	fmt.Fprintf(b, "```%s\n%s\n```\n", lang, body)
}
