//go:build !integration

package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ci-shared/workflow-secrets/pkg/testutil"
	"github.com/ci-shared/workflow-secrets/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlinedSecretWorkflow = `name: Release
on: push
jobs:
  release:
    runs-on: ubuntu-latest
    steps:
      - name: Sign
        run: |
          echo "signing"
          echo "${{ secrets.SIGNING_KEY }}" > key.pem
`

func TestScanFilesContinuesAfterParseError(t *testing.T) {
	dir := testutil.TempDir(t, "scan-*")
	broken := testutil.WriteFile(t, dir, "broken.yml", "jobs:\n  build:\n    runs-on: \"ubuntu-latest\n")
	release := testutil.WriteFile(t, dir, "release.yml", inlinedSecretWorkflow)

	result := NewScanner(workflow.DefaultPolicy()).ScanFiles([]string{broken, release})

	assert.Equal(t, []string{broken, release}, result.Files)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, broken, result.Errors[0].File)
	assert.NotEmpty(t, result.Errors[0].Message)

	require.Len(t, result.Findings, 1, "the second file is still scanned")
	finding := result.Findings[0]
	assert.Equal(t, release, finding.File)
	assert.Equal(t, "release", finding.Job)
	assert.Equal(t, "SIGNING_KEY", finding.Secret)
	assert.Equal(t, 10, finding.Line)
	assert.True(t, result.Failed())
}

func TestScanFilesReadErrors(t *testing.T) {
	dir := testutil.TempDir(t, "scan-*")
	missing := filepath.Join(dir, "missing.yml")

	result := NewScanner(workflow.DefaultPolicy()).ScanFiles([]string{missing})

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "cannot read file")
	assert.Empty(t, result.Findings)
	assert.True(t, result.Failed())
}

func TestScanFilesSkipsNonWorkflowYAML(t *testing.T) {
	dir := testutil.TempDir(t, "scan-*")
	settings := testutil.WriteFile(t, dir, "settings.yml", "repository:\n  name: shared-ci\n")
	empty := testutil.WriteFile(t, dir, "empty.yml", "")

	result := NewScanner(workflow.DefaultPolicy()).ScanFiles([]string{settings, empty})

	assert.Equal(t, []string{settings, empty}, result.Skipped)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Findings)
	assert.False(t, result.Failed())
}

func TestScanFilesEmptyInput(t *testing.T) {
	result := NewScanner(workflow.DefaultPolicy()).ScanFiles(nil)

	assert.False(t, result.Failed())
	assert.NotNil(t, result.Findings, "empty slices keep the JSON report stable")
	assert.NotNil(t, result.Errors)
}

func TestScanFilesSizeLimit(t *testing.T) {
	dir := testutil.TempDir(t, "scan-*")
	big := testutil.WriteFile(t, dir, "big.yml", inlinedSecretWorkflow+strings.Repeat("# padding\n", 200))

	scanner := &Scanner{Policy: workflow.DefaultPolicy(), MaxFileBytes: 1024}
	result := scanner.ScanFiles([]string{big})

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, MaxFileSizeEnvVar)
	assert.Empty(t, result.Findings)
}

func TestNewScannerReadsSizeLimitFromEnv(t *testing.T) {
	t.Setenv(MaxFileSizeEnvVar, "8")
	assert.Equal(t, int64(8*1024), NewScanner(workflow.DefaultPolicy()).MaxFileBytes)

	t.Setenv(MaxFileSizeEnvVar, "0")
	assert.Equal(t, int64(defaultMaxFileKB*1024), NewScanner(workflow.DefaultPolicy()).MaxFileBytes, "out of range values fall back to the default")
}

func TestSourceContext(t *testing.T) {
	data := []byte("one\ntwo\nthree\nfour\n")

	tests := []struct {
		name string
		line int
		want []string
	}{
		{name: "first line", line: 1, want: []string{"one", "two"}},
		{name: "middle line", line: 3, want: []string{"two", "three", "four"}},
		{name: "unknown line", line: 0, want: nil},
		{name: "past the end", line: 9, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sourceContext(data, tt.line))
		})
	}
}

func TestScanResultFindingsIn(t *testing.T) {
	result := &ScanResult{Findings: []workflow.Finding{{File: "a.yml"}, {File: "b.yml"}, {File: "a.yml"}}}
	assert.Equal(t, 2, result.FindingsIn("a.yml"))
	assert.Equal(t, 0, result.FindingsIn("c.yml"))
}
