// Package console formats user-facing messages for the terminal.
//
// All formatters return strings; callers decide whether they go to stdout or
// stderr. Styling is applied only when stderr is a terminal so piped output
// and CI logs stay plain.
package console

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/ci-shared/workflow-secrets/pkg/styles"
	"github.com/ci-shared/workflow-secrets/pkg/tty"
)

var consoleLog = logger.New("console:console")

// ErrorPosition is a location in a source file. Line and Column are 1-based;
// zero means unknown.
type ErrorPosition struct {
	File   string
	Line   int
	Column int
}

// CompilerError is a diagnostic tied to a file position.
type CompilerError struct {
	Position ErrorPosition
	Type     string // "error" or "warning"
	Message  string
	// Context holds source lines around Position.Line, centered on it.
	Context []string
	Hint    string
}

// TableConfig describes a table rendered by RenderTable.
type TableConfig struct {
	Title     string
	Headers   []string
	Rows      [][]string
	ShowTotal bool
	TotalRow  []string
}

func applyStyle(style lipgloss.Style, text string) string {
	if !tty.IsStderrTerminal() {
		return text
	}
	return style.Render(text)
}

// FormatSuccessMessage formats a success message with a check mark.
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats an error message.
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + message
}

// FormatVerboseMessage formats a message only shown with --verbose.
func FormatVerboseMessage(message string) string {
	return applyStyle(styles.Verbose, "› "+message)
}

// FormatErrorWithSuggestions formats an error followed by a bulleted list of
// suggestions. The suggestions section is omitted when the list is empty.
func FormatErrorWithSuggestions(message string, suggestions []string) string {
	var b strings.Builder
	b.WriteString(FormatErrorMessage(message))
	if len(suggestions) > 0 {
		b.WriteString("\n\nSuggestions:\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "  • %s\n", s)
		}
	}
	return b.String()
}

// FormatError renders a diagnostic in the "file:line:col: type: message"
// shape understood by editors, followed by optional numbered context lines.
func FormatError(err CompilerError) string {
	consoleLog.Printf("Formatting %s at %s:%d:%d", err.Type, err.Position.File, err.Position.Line, err.Position.Column)

	var b strings.Builder

	location := ToRelativePath(err.Position.File)
	if err.Position.Line > 0 {
		location = fmt.Sprintf("%s:%d", location, err.Position.Line)
		if err.Position.Column > 0 {
			location = fmt.Sprintf("%s:%d", location, err.Position.Column)
		}
	}

	kind := err.Type
	if kind == "" {
		kind = "error"
	}
	kindStyle := styles.Error
	if kind == "warning" {
		kindStyle = styles.Warning
	}

	fmt.Fprintf(&b, "%s: %s %s\n",
		applyStyle(styles.FilePath, location),
		applyStyle(kindStyle, kind+":"),
		err.Message)

	if len(err.Context) > 0 && err.Position.Line > 0 {
		first := max(1, err.Position.Line-len(err.Context)/2)
		width := len(fmt.Sprintf("%d", first+len(err.Context)-1))
		for i, text := range err.Context {
			lineNum := first + i
			prefix := applyStyle(styles.LineNumber, fmt.Sprintf("%*d |", width, lineNum))
			if lineNum == err.Position.Line {
				text = applyStyle(styles.Highlight, text)
			}
			fmt.Fprintf(&b, "%s %s\n", prefix, text)
		}
	}

	return b.String()
}

// ToRelativePath shortens an absolute path to one relative to the working
// directory. Paths that cannot be made relative are returned unchanged.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil {
		return path
	}
	return rel
}

// RenderTable renders a bordered table. An empty header set renders nothing.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 {
		return ""
	}

	rows := config.Rows
	if config.ShowTotal && len(config.TotalRow) > 0 {
		rows = append(append([][]string{}, rows...), config.TotalRow)
	}
	totalIndex := len(rows) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.TableBorder).
		Headers(config.Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.TableHeader.Padding(0, 1)
			case config.ShowTotal && row == totalIndex:
				return styles.TableTotal.Padding(0, 1)
			default:
				return styles.TableCell.Padding(0, 1)
			}
		})

	var b strings.Builder
	if config.Title != "" {
		b.WriteString(applyStyle(styles.TableHeader, config.Title))
		b.WriteString("\n")
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

// ClearScreen clears the terminal w writes to. It writes nothing when w is
// not a terminal, so redirected reports stay free of escape codes.
func ClearScreen(w io.Writer) {
	if tty.IsTerminal(w) {
		fmt.Fprint(w, "\033[H\033[2J")
	}
}
