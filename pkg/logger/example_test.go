//go:build !integration

package logger_test

import (
	"fmt"
	"os"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
)

// Example functions cannot use t.Setenv() as they don't have access to *testing.T

func ExampleNew() {
	os.Setenv("DEBUG", "cli:*")
	defer os.Unsetenv("DEBUG")

	log := logger.New("cli:scan")

	if log.Enabled() {
		fmt.Println("Logger is enabled")
	}

	// Output: Logger is enabled
}

func ExampleLogger_Printf() {
	os.Setenv("DEBUG", "*")
	defer os.Unsetenv("DEBUG")

	log := logger.New("workflow:secret_refs")

	log.Printf("Found %d secret references", 2)

	// Output to stderr: workflow:secret_refs Found 2 secret references +0s
}

func ExampleNew_patterns() {
	// Enable all loggers
	os.Setenv("DEBUG", "*")

	// Enable every logger in the parser namespace
	os.Setenv("DEBUG", "parser:*")

	// Enable everything except one logger
	os.Setenv("DEBUG", "*,-parser:yaml_error")

	defer os.Unsetenv("DEBUG")
}
