//go:build !integration

package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		debug     string
		want      bool
	}{
		{name: "empty debug", namespace: "cli:scan", debug: "", want: false},
		{name: "wildcard", namespace: "cli:scan", debug: "*", want: true},
		{name: "namespace wildcard", namespace: "cli:scan", debug: "cli:*", want: true},
		{name: "other namespace", namespace: "parser:workflow", debug: "cli:*", want: false},
		{name: "exact match", namespace: "cli:scan", debug: "cli:scan", want: true},
		{name: "exclusion wins", namespace: "cli:scan", debug: "*,-cli:scan", want: false},
		{name: "exclusion before inclusion", namespace: "cli:scan", debug: "-cli:*,*", want: false},
		{name: "list with spaces", namespace: "parser:policy", debug: "cli:*, parser:*", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isEnabled(tt.namespace, tt.debug))
		})
	}
}

func TestLoggerWritesOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer

	disabled := &Logger{namespace: "cli:scan", out: &buf}
	disabled.Printf("hidden %d", 1)
	assert.Empty(t, buf.String(), "disabled logger should not write")

	enabled := &Logger{namespace: "cli:scan", enabled: true, out: &buf}
	enabled.Printf("scanning %d files", 3)
	enabled.Print("done")

	out := buf.String()
	assert.Contains(t, out, "cli:scan scanning 3 files")
	assert.Contains(t, out, "cli:scan done")
}
