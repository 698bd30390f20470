// Package logger provides namespaced debug loggers that are enabled through
// the DEBUG environment variable.
//
// DEBUG accepts a comma-separated list of patterns. A trailing '*' matches any
// suffix and a leading '-' disables matching namespaces:
//
//	DEBUG=*                      all loggers
//	DEBUG=cli:*                  every logger in the cli namespace
//	DEBUG=*,-parser:yaml_error   everything except one logger
//
// Output is written to stderr and never mixes with report output on stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes debug messages for a single namespace.
type Logger struct {
	namespace string
	enabled   bool
	out       io.Writer

	mu   sync.Mutex
	last time.Time
}

// New creates a logger for namespace. Whether it is enabled is decided once,
// from the DEBUG value at construction time.
func New(namespace string) *Logger {
	return &Logger{
		namespace: namespace,
		enabled:   isEnabled(namespace, os.Getenv("DEBUG")),
		out:       os.Stderr,
	}
}

// Enabled reports whether the logger prints anything.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Printf formats according to a format specifier and writes a debug line.
func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// Print formats its arguments like fmt.Sprint and writes a debug line.
func (l *Logger) Print(args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprint(args...))
}

func (l *Logger) write(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var delta time.Duration
	if !l.last.IsZero() {
		delta = now.Sub(l.last)
	}
	l.last = now

	fmt.Fprintf(l.out, "%s %s +%s\n", l.namespace, msg, delta)
}

// isEnabled matches namespace against the DEBUG patterns. Exclusions win over
// inclusions regardless of their position in the list.
func isEnabled(namespace, debug string) bool {
	if debug == "" {
		return false
	}

	enabled := false
	for _, pattern := range strings.Split(debug, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(pattern, "-") {
			if matchPattern(namespace, pattern[1:]) {
				return false
			}
			continue
		}
		if matchPattern(namespace, pattern) {
			enabled = true
		}
	}
	return enabled
}

func matchPattern(namespace, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(namespace, prefix)
	}
	return namespace == pattern
}
