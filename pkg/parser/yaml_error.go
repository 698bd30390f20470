package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
)

var yamlErrorLog = logger.New("parser:yaml_error")

// SyntaxError is a YAML document that could not be parsed.
type SyntaxError struct {
	File    string
	Line    int // 1-based, 0 when unknown
	Column  int // 1-based, 0 when unknown
	Message string
	Err     error
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// newSyntaxError wraps a goccy/go-yaml parse error with its location.
func newSyntaxError(file string, err error) *SyntaxError {
	line, column, message := ExtractYAMLError(err)
	return &SyntaxError{File: file, Line: line, Column: column, Message: message, Err: err}
}

// goccyLocationPattern matches the "[line:column] message" prefix goccy/go-yaml
// puts on the first line of its errors.
var goccyLocationPattern = regexp.MustCompile(`^\s*\[(\d+):(\d+)\]\s*(.*)$`)

// yamlLinePattern matches "yaml: line N: message" emitted by other YAML libraries.
var yamlLinePattern = regexp.MustCompile(`yaml: line (\d+):\s*(.*)$`)

// ExtractYAMLError extracts line, column and a one-line message from a YAML
// parse error. Unknown positions are returned as 0.
func ExtractYAMLError(err error) (line int, column int, message string) {
	errStr := err.Error()
	// goccy appends an annotated source excerpt after the first line.
	first, _, _ := strings.Cut(errStr, "\n")

	if m := goccyLocationPattern.FindStringSubmatch(first); m != nil {
		line, _ = strconv.Atoi(m[1])
		column, _ = strconv.Atoi(m[2])
		yamlErrorLog.Printf("Extracted error location from goccy format: line=%d, column=%d", line, column)
		return line, column, strings.TrimSpace(m[3])
	}

	if m := yamlLinePattern.FindStringSubmatch(first); m != nil {
		line, _ = strconv.Atoi(m[1])
		yamlErrorLog.Printf("Extracted error line from yaml format: line=%d", line)
		return line, 0, strings.TrimSpace(m[2])
	}

	yamlErrorLog.Print("No location information in YAML error")
	return 0, 0, strings.TrimSpace(first)
}
