//go:build !integration

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/ci-shared/workflow-secrets/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanTestdata(t *testing.T, policy workflow.Policy) *ScanResult {
	t.Helper()
	files, err := resolveWorkflowFiles([]string{"testdata/workflows"}, ".")
	require.NoError(t, err)
	require.Len(t, files, 2, "README.md is not a workflow file")
	return NewScanner(policy).ScanFiles(files)
}

func TestTextReportGolden(t *testing.T) {
	result := scanTestdata(t, workflow.DefaultPolicy())

	var stdout, stderr bytes.Buffer
	require.NoError(t, writeReport(&stdout, &stderr, result, FormatText, false))

	golden.RequireEqual(t, stdout.Bytes())
	assert.Contains(t, stderr.String(), "Found 2 inlined secrets in 1 file")
}

func TestFormatFinding(t *testing.T) {
	tests := []struct {
		name    string
		finding workflow.Finding
		want    string
	}{
		{
			name: "named step with column",
			finding: workflow.Finding{
				File: "ci.yml", Job: "build", Step: 2, StepName: "Deploy", Line: 14, Column: 9,
				Secret: "TOKEN", Reason: workflow.ReasonMultiLine,
			},
			want: "ci.yml:14:9: error: job 'build' steps[2] (Deploy): secret inlined in multi-line run block: secrets.TOKEN",
		},
		{
			name: "unnamed step without column",
			finding: workflow.Finding{
				File: "ci.yml", Job: "build", Step: 0, Line: 7,
				Secret: workflow.WholeSecretsContext, Reason: workflow.ReasonMultiLine,
			},
			want: "ci.yml:7: error: job 'build' steps[0]: secret inlined in multi-line run block: secrets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFinding(tt.finding))
		})
	}
}

func TestFormatScanSummary(t *testing.T) {
	tests := []struct {
		name   string
		result *ScanResult
		want   string
	}{
		{
			name:   "clean",
			result: &ScanResult{Files: []string{"a.yml", "b.yml"}},
			want:   "No inlined secrets found in 2 workflow files",
		},
		{
			name: "findings and errors",
			result: &ScanResult{
				Files:    []string{"a.yml", "b.yml", "c.yml"},
				Findings: []workflow.Finding{{File: "a.yml"}},
				Errors:   []FileError{{File: "c.yml", Message: "bad"}},
			},
			want: "Found 1 inlined secret in 1 file; 1 file could not be checked",
		},
		{
			name: "skipped files are not counted as checked",
			result: &ScanResult{
				Files:   []string{"a.yml", "settings.yml"},
				Skipped: []string{"settings.yml"},
			},
			want: "No inlined secrets found in 1 workflow file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, formatScanSummary(tt.result), tt.want)
		})
	}
}

func TestTextReportParseErrorGoesToStderr(t *testing.T) {
	result := &ScanResult{
		Files: []string{"broken.yml"},
		Errors: []FileError{{
			File: "broken.yml", Line: 3, Column: 14, Message: "could not find end character of double-quoted text",
			Context: []string{"  build:", "    runs-on: \"ubuntu-latest", ""},
		}},
	}

	var stdout, stderr bytes.Buffer
	require.NoError(t, writeReport(&stdout, &stderr, result, FormatText, false))

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "broken.yml:3:14: error: could not find end character")
	assert.Contains(t, stderr.String(), `3 |     runs-on: "ubuntu-latest`)
}

func TestTextReportVerboseTable(t *testing.T) {
	result := scanTestdata(t, workflow.DefaultPolicy())

	var stdout, stderr bytes.Buffer
	require.NoError(t, writeReport(&stdout, &stderr, result, FormatText, true))

	assert.Contains(t, stderr.String(), "Workflow files")
	assert.Contains(t, stderr.String(), "testdata/workflows/deploy.yml")
	assert.Contains(t, stderr.String(), "unsafe")
}

func TestJSONReport(t *testing.T) {
	result := scanTestdata(t, workflow.DefaultPolicy())

	var stdout, stderr bytes.Buffer
	require.NoError(t, writeReport(&stdout, &stderr, result, FormatJSON, false))
	assert.Empty(t, stderr.String(), "the JSON report has no summary line")

	var decoded struct {
		Files    []string           `json:"files"`
		Findings []workflow.Finding `json:"findings"`
		Errors   []FileError        `json:"errors"`
		Skipped  []string           `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))

	assert.Equal(t, []string{"testdata/workflows/deploy.yml", "testdata/workflows/lint.yaml"}, decoded.Files)
	require.Len(t, decoded.Findings, 2)
	assert.Equal(t, "FIREBASE_CREDENTIALS_JSON", decoded.Findings[0].Secret)
	assert.Equal(t, workflow.RuleInlineSecret, decoded.Findings[0].Rule)
	assert.Equal(t, "PI_SSH_KEY", decoded.Findings[1].Secret)
	assert.True(t, decoded.Findings[1].EnvMapped)
	assert.NotNil(t, decoded.Errors)
	assert.True(t, strings.HasPrefix(stdout.String(), "{\n  \"files\""))
}

func TestParseOutputFormat(t *testing.T) {
	for input, want := range map[string]OutputFormat{"": FormatText, "TEXT": FormatText, "json": FormatJSON, " sarif ": FormatSARIF} {
		got, err := ParseOutputFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseOutputFormat("xml")
	require.Error(t, err)
	assert.True(t, workflow.IsConfigError(err))
}

func TestPolicyIncludeSingleLineReportsNotifyStep(t *testing.T) {
	policy := workflow.DefaultPolicy()
	policy.IncludeSingleLine = true
	result := scanTestdata(t, policy)

	require.Len(t, result.Findings, 3)
	last := result.Findings[2]
	assert.Equal(t, "SLACK_WEBHOOK", last.Secret)
	assert.Equal(t, workflow.ReasonSingleLine, last.Reason)
	assert.Equal(t, 16, last.Line)
}
