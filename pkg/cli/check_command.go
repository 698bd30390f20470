package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ci-shared/workflow-secrets/pkg/console"
	"github.com/ci-shared/workflow-secrets/pkg/gitutil"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/ci-shared/workflow-secrets/pkg/workflow"
	"github.com/spf13/cobra"
)

var checkCommandLog = logger.New("cli:check_command")

// Exit codes returned by the command.
const (
	ExitOK       = 0
	ExitFindings = 1
	ExitUsage    = 2
)

// ExitError carries a process exit code. Err is nil when the code only
// reflects the scan outcome and there is nothing more to print.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by the command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if workflow.IsConfigError(err) {
		return ExitUsage
	}
	return ExitFindings
}

// CheckOptions holds the resolved command-line options.
type CheckOptions struct {
	Paths      []string
	Format     OutputFormat
	OutputFile string
	ConfigFile string

	// Policy overrides, applied only when set on the command line.
	Mode              *workflow.Mode
	IncludeSingleLine *bool
	Allow             []string

	Watch   bool
	Verbose bool

	// BaseDir anchors repository discovery. Empty means the working directory.
	BaseDir string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-workflow-secrets [paths...]",
		Short: "Find secrets inlined in multi-line run scripts of GitHub Actions workflows",
		Long: `Find secrets inlined in multi-line run scripts of GitHub Actions workflows.

A ${{ secrets.NAME }} expression inside a multi-line run: block is pasted into
the script text before the shell starts. Multi-line values such as JSON
credentials or PEM keys break quoting and can leak in error output. Map the
secret through env: and reference it as "$NAME" instead.

Paths may be workflow files or directories. Without paths, the
.github/workflows directory of the current repository is checked.

A policy file at .github/workflow-secrets.yml is loaded when present.

Exit status is 0 when nothing is found, 1 when a secret is inlined or a file
cannot be parsed, and 2 for usage or configuration errors.

Examples:
  check-workflow-secrets                                  # Check .github/workflows
  check-workflow-secrets .github/workflows/deploy.yml     # Check one file
  check-workflow-secrets --mode multiline                 # Only flag likely multi-line secrets
  check-workflow-secrets --allow GITHUB_TOKEN             # Never flag GITHUB_TOKEN
  check-workflow-secrets --format sarif --output out.sarif
  check-workflow-secrets --watch                          # Re-check on every change`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatFlag, _ := cmd.Flags().GetString("format")
			format, err := ParseOutputFormat(formatFlag)
			if err != nil {
				return &ExitError{Code: ExitUsage, Err: err}
			}

			opts := CheckOptions{
				Paths:  args,
				Format: format,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			}
			opts.OutputFile, _ = cmd.Flags().GetString("output")
			opts.ConfigFile, _ = cmd.Flags().GetString("config")
			opts.Allow, _ = cmd.Flags().GetStringSlice("allow")
			opts.Watch, _ = cmd.Flags().GetBool("watch")
			opts.Verbose, _ = cmd.Flags().GetBool("verbose")
			if cmd.Flags().Changed("mode") {
				value, _ := cmd.Flags().GetString("mode")
				mode := workflow.Mode(value)
				opts.Mode = &mode
			}
			if cmd.Flags().Changed("include-single-line") {
				value, _ := cmd.Flags().GetBool("include-single-line")
				opts.IncludeSingleLine = &value
			}

			if opts.Watch {
				return RunWatch(cmd.Context(), opts)
			}
			return RunCheck(opts)
		},
	}

	cmd.Flags().StringP("format", "f", string(FormatText), "Report format: text, json or sarif")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringP("config", "c", "", "Policy file (default: .github/workflow-secrets.yml when present)")
	cmd.Flags().String("mode", "", "Which inlined secrets to report: all or multiline")
	cmd.Flags().Bool("include-single-line", false, "Also check single-line run: commands")
	cmd.Flags().StringSlice("allow", nil, "Secret name that is never reported (repeatable)")
	cmd.Flags().BoolP("watch", "w", false, "Re-check whenever a workflow file changes")
	cmd.Flags().BoolP("verbose", "v", false, "Show per-file results and skipped files")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Err: err}
	})

	return cmd
}

// RunCheck runs one scan and writes the report. The returned error carries
// ExitFindings when anything was found.
func RunCheck(opts CheckOptions) error {
	opts = withDefaultWriters(opts)

	policy, err := resolvePolicy(opts)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	result, err := runScan(opts, policy)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if result.Failed() {
		return &ExitError{Code: ExitFindings}
	}
	return nil
}

// runScan resolves the inputs, scans them and writes the report. It returns
// a nil result when there was nothing to scan.
func runScan(opts CheckOptions, policy workflow.Policy) (*ScanResult, error) {
	files, err := resolveWorkflowFiles(opts.Paths, baseDir(opts))
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Err: err}
	}

	if len(files) == 0 {
		checkCommandLog.Print("No workflow files resolved")
		fmt.Fprintln(opts.Stderr, console.FormatInfoMessage("No workflow files to check."))
		if opts.Format == FormatText {
			return nil, nil
		}
		return nil, emitReport(opts, &ScanResult{Files: []string{}, Findings: []workflow.Finding{}, Errors: []FileError{}, Skipped: []string{}})
	}

	if opts.Verbose {
		fmt.Fprintln(opts.Stderr, console.FormatVerboseMessage(fmt.Sprintf("Checking %s with mode=%s", pluralize(len(files), "file"), policy.Mode)))
	}

	result := NewScanner(policy).ScanFiles(files)
	if err := emitReport(opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

func emitReport(opts CheckOptions, result *ScanResult) error {
	out := opts.Stdout
	if opts.OutputFile != "" {
		file, err := os.Create(opts.OutputFile)
		if err != nil {
			return &ExitError{Code: ExitUsage, Err: fmt.Errorf("failed to create report file: %w", err)}
		}
		defer file.Close()
		out = file
	}

	if err := writeReport(out, opts.Stderr, result, opts.Format, opts.Verbose); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if opts.OutputFile != "" {
		fmt.Fprintln(opts.Stderr, console.FormatInfoMessage("Report written to "+opts.OutputFile))
	}
	return nil
}

// resolvePolicy loads the policy file, then applies command-line overrides.
func resolvePolicy(opts CheckOptions) (workflow.Policy, error) {
	policy := workflow.DefaultPolicy()

	path := opts.ConfigFile
	if path == "" {
		candidate := filepath.Join(gitutil.RootOrDir(baseDir(opts)), workflow.DefaultPolicyFile)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path != "" {
		loaded, err := workflow.LoadPolicy(path)
		if err != nil {
			return workflow.Policy{}, err
		}
		policy = loaded
		if opts.Verbose {
			fmt.Fprintln(opts.Stderr, console.FormatVerboseMessage("Using policy "+console.ToRelativePath(path)))
		}
	}

	if opts.Mode != nil {
		policy.Mode = *opts.Mode
	}
	if opts.IncludeSingleLine != nil {
		policy.IncludeSingleLine = *opts.IncludeSingleLine
	}
	policy.Allow = append(policy.Allow, opts.Allow...)

	if err := policy.Validate(); err != nil {
		return workflow.Policy{}, err
	}
	checkCommandLog.Printf("Resolved policy: file=%s, mode=%s, include_single_line=%t, allow=%v", path, policy.Mode, policy.IncludeSingleLine, policy.Allow)
	return policy, nil
}

func baseDir(opts CheckOptions) string {
	if opts.BaseDir != "" {
		return opts.BaseDir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func withDefaultWriters(opts CheckOptions) CheckOptions {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}
	return opts
}
