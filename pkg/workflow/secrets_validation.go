package workflow

import (
	"fmt"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/ci-shared/workflow-secrets/pkg/parser"
)

var secretsValidationLog = logger.New("workflow:secrets_validation")

// RuleInlineSecret identifies findings produced by this check.
const RuleInlineSecret = "inline-multiline-secret"

const (
	// ReasonMultiLine is the reason attached to multi-line run block findings.
	ReasonMultiLine = "secret inlined in multi-line run block"
	// ReasonSingleLine is used when the policy also checks single-line runs.
	ReasonSingleLine = "secret inlined in run block"
)

// Finding is one unsafe secret reference in a run block.
type Finding struct {
	File       string `json:"file"`
	Job        string `json:"job"`
	Step       int    `json:"step"`
	StepName   string `json:"step_name,omitempty"`
	Line       int    `json:"line"`
	Column     int    `json:"column,omitempty"`
	Secret     string `json:"secret"`
	Expression string `json:"expression"`
	Rule       string `json:"rule"`
	Reason     string `json:"reason"`
	// EnvMapped is true when the step already maps the secret in env:.
	EnvMapped bool `json:"env_mapped,omitempty"`
}

// SecretLabel renders the secret as it is written in expressions.
func (f Finding) SecretLabel() string {
	if f.Secret == WholeSecretsContext {
		return "secrets"
	}
	return "secrets." + f.Secret
}

// Hint describes how to fix the finding.
func (f Finding) Hint() string {
	if f.Secret == WholeSecretsContext {
		return "Do not expand the whole secrets context in a script; map each secret it needs through env: instead."
	}
	if f.EnvMapped {
		return fmt.Sprintf("The step already maps %s in env:; reference it as \"$%s\" in the script instead.", f.Secret, f.Secret)
	}
	return fmt.Sprintf("Use an env: block (%s: ${{ secrets.%s }}) and reference it as a shell variable (\"$%s\") instead.", f.Secret, f.Secret, f.Secret)
}

// CheckStep classifies a single step. It returns nil when the step has no run
// block, when the run block is exempt under policy, or when every secret
// reaches the script through env: indirection.
func CheckStep(file string, lines []string, job string, step parser.Step, policy Policy) []Finding {
	run := step.Run
	if run == nil {
		return nil
	}

	multiLine := run.MultiLine()
	if !multiLine && !policy.IncludeSingleLine {
		return nil
	}

	reason := ReasonMultiLine
	if !multiLine {
		reason = ReasonSingleLine
	}

	var findings []Finding
	for _, ref := range ExtractSecretRefs(run.Text) {
		if !policy.Reports(ref.Name) {
			secretsValidationLog.Printf("Secret reference allowed by policy: job=%s, step=%d", job, step.Index)
			continue
		}

		line := run.Line + ref.LineOffset
		if !run.Block && run.EndLine > 0 {
			// Quoted scalars can hold escaped newlines that have no source line.
			line = min(line, run.EndLine)
		}
		findings = append(findings, Finding{
			File:       file,
			Job:        job,
			Step:       step.Index,
			StepName:   step.DisplayName(),
			Line:       line,
			Column:     columnOf(lines, line, run.Text, ref),
			Secret:     ref.Name,
			Expression: ref.Expression,
			Rule:       RuleInlineSecret,
			Reason:     reason,
			EnvMapped:  ref.Name != WholeSecretsContext && step.HasEnv(ref.Name),
		})
	}

	if len(findings) > 0 {
		secretsValidationLog.Printf("Unsafe secret usage: file=%s, job=%s, step=%d, count=%d", file, job, step.Index, len(findings))
	}
	return findings
}

// CheckWorkflow classifies every step of wf in job order, then step order.
func CheckWorkflow(wf *parser.WorkflowFile, policy Policy) []Finding {
	var findings []Finding
	for _, job := range wf.Jobs {
		for _, step := range job.Steps {
			findings = append(findings, CheckStep(wf.Path, wf.Lines, job.Name, step, policy)...)
		}
	}
	secretsValidationLog.Printf("Checked %s: jobs=%d, findings=%d", wf.Path, len(wf.Jobs), len(findings))
	return findings
}

// columnOf returns the 1-based column of the secrets access of ref on the
// given source line, or 0 when the access cannot be located there (folded
// scalars).
func columnOf(lines []string, line int, text string, ref SecretRef) int {
	if line < 1 || line > len(lines) {
		return 0
	}
	source := lines[line-1]

	// The text before the access on its own line pins down which occurrence
	// this is when the same expression repeats.
	lineStart := strings.LastIndexByte(text[:ref.Access], '\n') + 1
	prefix := text[lineStart:ref.Access]
	if idx := strings.Index(source, prefix+"secrets"); idx >= 0 {
		return idx + len(prefix) + 1
	}

	// Escapes in quoted scalars change the prefix; fall back to the
	// expression and the access position inside it.
	first, _, _ := strings.Cut(ref.Expression, "\n")
	delta := ref.Access - ref.Offset
	if idx := strings.Index(source, first); idx >= 0 && delta < len(first) {
		return idx + delta + 1
	}
	return 0
}
