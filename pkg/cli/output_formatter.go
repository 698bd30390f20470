// This file renders scan results in the supported report formats.
//
// The text report is meant for people and editors: one
// "file:line:col: error: ..." line per finding on stdout, parse errors with
// source context on stderr, and a closing summary on stderr. The JSON report
// serializes the whole ScanResult. SARIF lives in sarif_report.go.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/console"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/ci-shared/workflow-secrets/pkg/workflow"
)

var outputFormatterLog = logger.New("cli:output_formatter")

// OutputFormat selects the report writer.
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatSARIF OutputFormat = "sarif"
)

// ParseOutputFormat validates a --format value.
func ParseOutputFormat(value string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(value))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatSARIF:
		return FormatSARIF, nil
	}
	return "", workflow.NewConfigError("format", fmt.Sprintf("unknown format %q", value), "use 'text', 'json' or 'sarif'")
}

// writeReport writes result to out. Diagnostics that are not part of the
// report itself go to errOut.
func writeReport(out, errOut io.Writer, result *ScanResult, format OutputFormat, verbose bool) error {
	outputFormatterLog.Printf("Writing %s report: findings=%d, errors=%d", format, len(result.Findings), len(result.Errors))

	switch format {
	case FormatJSON:
		data, err := formatJSONReport(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, data)
		return err
	case FormatSARIF:
		return writeSARIFReport(out, result)
	default:
		writeTextReport(out, errOut, result, verbose)
		return nil
	}
}

func writeTextReport(out, errOut io.Writer, result *ScanResult, verbose bool) {
	for _, fileErr := range result.Errors {
		fmt.Fprint(errOut, console.FormatError(console.CompilerError{
			Position: console.ErrorPosition{File: fileErr.File, Line: fileErr.Line, Column: fileErr.Column},
			Type:     "error",
			Message:  fileErr.Message,
			Context:  fileErr.Context,
		}))
	}

	for _, f := range result.Findings {
		fmt.Fprintln(out, formatFinding(f))
		fmt.Fprintf(out, "    hint: %s\n", f.Hint())
	}

	if verbose {
		for _, skipped := range result.Skipped {
			fmt.Fprintln(errOut, console.FormatVerboseMessage("Skipped "+console.ToRelativePath(skipped)+": no jobs or composite steps"))
		}
		if table := formatFileTable(result); table != "" {
			fmt.Fprint(errOut, table)
		}
	}

	fmt.Fprintln(errOut, formatScanSummary(result))
}

// formatFinding renders one finding as a single editor-friendly line.
func formatFinding(f workflow.Finding) string {
	location := fmt.Sprintf("%s:%d", console.ToRelativePath(f.File), f.Line)
	if f.Column > 0 {
		location = fmt.Sprintf("%s:%d", location, f.Column)
	}

	step := fmt.Sprintf("steps[%d]", f.Step)
	if f.StepName != "" {
		step = fmt.Sprintf("%s (%s)", step, f.StepName)
	}
	return fmt.Sprintf("%s: error: job '%s' %s: %s: %s", location, f.Job, step, f.Reason, f.SecretLabel())
}

func formatScanSummary(result *ScanResult) string {
	checked := len(result.Files) - len(result.Errors) - len(result.Skipped)
	if !result.Failed() {
		return console.FormatSuccessMessage(fmt.Sprintf("No inlined secrets found in %s", pluralize(checked, "workflow file")))
	}

	var parts []string
	if n := len(result.Findings); n > 0 {
		files := 0
		for _, file := range result.Files {
			if result.FindingsIn(file) > 0 {
				files++
			}
		}
		parts = append(parts, fmt.Sprintf("%s in %s", pluralize(n, "inlined secret"), pluralize(files, "file")))
	}
	if n := len(result.Errors); n > 0 {
		parts = append(parts, fmt.Sprintf("%s could not be checked", pluralize(n, "file")))
	}
	return console.FormatErrorMessage("Found " + strings.Join(parts, "; "))
}

// formatFileTable lists each scanned file with its finding count.
func formatFileTable(result *ScanResult) string {
	if len(result.Files) == 0 {
		return ""
	}

	failed := make(map[string]bool, len(result.Errors))
	for _, e := range result.Errors {
		failed[e.File] = true
	}
	skipped := make(map[string]bool, len(result.Skipped))
	for _, s := range result.Skipped {
		skipped[s] = true
	}

	rows := make([][]string, 0, len(result.Files))
	for _, file := range result.Files {
		status := "ok"
		switch {
		case failed[file]:
			status = "error"
		case skipped[file]:
			status = "skipped"
		case result.FindingsIn(file) > 0:
			status = "unsafe"
		}
		rows = append(rows, []string{console.ToRelativePath(file), status, fmt.Sprintf("%d", result.FindingsIn(file))})
	}

	return console.RenderTable(console.TableConfig{
		Title:     "Workflow files",
		Headers:   []string{"File", "Status", "Findings"},
		Rows:      rows,
		ShowTotal: true,
		TotalRow:  []string{"Total", "", fmt.Sprintf("%d", len(result.Findings))},
	})
}

// formatJSONReport serializes the whole result.
func formatJSONReport(result *ScanResult) (string, error) {
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
