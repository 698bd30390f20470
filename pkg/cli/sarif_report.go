package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ci-shared/workflow-secrets/pkg/console"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/ci-shared/workflow-secrets/pkg/workflow"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

var sarifReportLog = logger.New("cli:sarif_report")

const (
	sarifToolName = "check-workflow-secrets"
	sarifToolURI  = "https://docs.github.com/en/actions/security-for-github-actions/security-guides/security-hardening-for-github-actions#using-an-intermediate-environment-variable"

	// sarifParseErrorRule marks files that could not be checked.
	sarifParseErrorRule = "workflow-parse-error"
)

// buildSARIFReport converts result into a SARIF 2.1.0 report with one run.
func buildSARIFReport(result *ScanResult) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(sarifToolName, sarifToolURI)
	rule := run.AddRule(workflow.RuleInlineSecret).
		WithDescription("Secrets must reach run scripts through env: indirection instead of inline ${{ secrets.* }} expressions.").
		WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: "error"})

	for _, f := range result.Findings {
		region := sarif.NewRegion().WithStartLine(f.Line)
		if f.Column > 0 {
			region = region.WithStartColumn(f.Column)
		}
		message := fmt.Sprintf("job '%s' steps[%d]: %s: %s. %s", f.Job, f.Step, f.Reason, f.SecretLabel(), f.Hint())
		run.AddResult(sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(message)).
			WithLevel("error").
			WithLocations([]*sarif.Location{sarifLocation(f.File, region)}))
	}

	if len(result.Errors) > 0 {
		parseRule := run.AddRule(sarifParseErrorRule).
			WithDescription("The file could not be read or parsed as YAML.").
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: "error"})
		for _, e := range result.Errors {
			region := sarif.NewRegion().WithStartLine(max(1, e.Line))
			if e.Column > 0 {
				region = region.WithStartColumn(e.Column)
			}
			run.AddResult(sarif.NewRuleResult(parseRule.ID).
				WithMessage(sarif.NewTextMessage(e.Message)).
				WithLevel("error").
				WithLocations([]*sarif.Location{sarifLocation(e.File, region)}))
		}
	}

	report.AddRun(run)
	sarifReportLog.Printf("Built SARIF report: results=%d", len(result.Findings)+len(result.Errors))
	return report, nil
}

func sarifLocation(file string, region *sarif.Region) *sarif.Location {
	uri := filepath.ToSlash(console.ToRelativePath(file))
	return sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(uri)).
			WithRegion(region),
	)
}

func writeSARIFReport(w io.Writer, result *ScanResult) error {
	report, err := buildSARIFReport(result)
	if err != nil {
		return err
	}
	if err := report.PrettyWrite(w); err != nil {
		return fmt.Errorf("failed to write SARIF report: %w", err)
	}
	return nil
}
