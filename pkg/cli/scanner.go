package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/envutil"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/ci-shared/workflow-secrets/pkg/parser"
	"github.com/ci-shared/workflow-secrets/pkg/workflow"
)

var scannerLog = logger.New("cli:scanner")

// MaxFileSizeEnvVar bounds the size of a workflow file in KiB.
const MaxFileSizeEnvVar = "WORKFLOW_SECRETS_MAX_FILE_KB"

const (
	defaultMaxFileKB = 1024
	minMaxFileKB     = 1
	maxMaxFileKB     = 65536
)

// FileError is a file that could not be read or parsed.
type FileError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
	// Context holds the source lines around Line.
	Context []string `json:"-"`
}

// ScanResult accumulates the outcome of one scan, in input order.
type ScanResult struct {
	Files    []string           `json:"files"`
	Findings []workflow.Finding `json:"findings"`
	Errors   []FileError        `json:"errors"`
	Skipped  []string           `json:"skipped"`
}

// Failed reports whether the scan found anything that should fail CI.
func (r *ScanResult) Failed() bool {
	return len(r.Findings) > 0 || len(r.Errors) > 0
}

// FindingsIn returns how many findings were reported for file.
func (r *ScanResult) FindingsIn(file string) int {
	n := 0
	for _, f := range r.Findings {
		if f.File == file {
			n++
		}
	}
	return n
}

// Scanner applies a policy to workflow files one at a time.
type Scanner struct {
	Policy       workflow.Policy
	MaxFileBytes int64
}

// NewScanner creates a scanner for policy, with the file size limit taken from
// WORKFLOW_SECRETS_MAX_FILE_KB.
func NewScanner(policy workflow.Policy) *Scanner {
	kb := envutil.GetIntFromEnv(MaxFileSizeEnvVar, defaultMaxFileKB, minMaxFileKB, maxMaxFileKB, scannerLog)
	return &Scanner{Policy: policy, MaxFileBytes: int64(kb) * 1024}
}

// ScanFiles scans every file. A failure in one file is recorded and never
// stops the remaining files from being scanned.
func (s *Scanner) ScanFiles(files []string) *ScanResult {
	scannerLog.Printf("Scanning %d file(s)", len(files))

	result := &ScanResult{
		Files:    []string{},
		Findings: []workflow.Finding{},
		Errors:   []FileError{},
		Skipped:  []string{},
	}
	for _, file := range files {
		result.Files = append(result.Files, file)

		findings, fileErr, skipped := s.scanFile(file)
		switch {
		case fileErr != nil:
			result.Errors = append(result.Errors, *fileErr)
		case skipped:
			result.Skipped = append(result.Skipped, file)
		default:
			result.Findings = append(result.Findings, findings...)
		}
	}

	scannerLog.Printf("Scan complete: files=%d, findings=%d, errors=%d, skipped=%d",
		len(result.Files), len(result.Findings), len(result.Errors), len(result.Skipped))
	return result
}

func (s *Scanner) scanFile(path string) ([]workflow.Finding, *FileError, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileError{File: path, Message: readErrorMessage(err)}, false
	}
	if s.MaxFileBytes > 0 && info.Size() > s.MaxFileBytes {
		return nil, &FileError{
			File:    path,
			Message: fmt.Sprintf("file is %d bytes, larger than the %d byte limit (set %s to raise it)", info.Size(), s.MaxFileBytes, MaxFileSizeEnvVar),
		}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{File: path, Message: readErrorMessage(err)}, false
	}

	wf, err := parser.ParseWorkflow(path, data)
	if err != nil {
		if errors.Is(err, parser.ErrNotWorkflow) {
			scannerLog.Printf("Skipping %s: no job/step structure", path)
			return nil, nil, true
		}
		var syntaxErr *parser.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, &FileError{
				File:    path,
				Line:    syntaxErr.Line,
				Column:  syntaxErr.Column,
				Message: syntaxErr.Message,
				Context: sourceContext(data, syntaxErr.Line),
			}, false
		}
		return nil, &FileError{File: path, Message: err.Error()}, false
	}

	return workflow.CheckWorkflow(wf, s.Policy), nil, false
}

func readErrorMessage(err error) string {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Sprintf("cannot read file: %v", pathErr.Err)
	}
	return fmt.Sprintf("cannot read file: %v", err)
}

// sourceContext returns up to three lines centered on line.
func sourceContext(data []byte, line int) []string {
	if line < 1 {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if line > len(lines) {
		return nil
	}
	start := max(0, line-2)
	end := min(len(lines), line+1)
	return lines[start:end]
}
