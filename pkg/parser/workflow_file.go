// Package parser turns GitHub Actions YAML documents into read-only
// workflow models that keep source positions.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"
)

var workflowFileLog = logger.New("parser:workflow_file")

// ErrNotWorkflow is returned for YAML documents without a job/step structure.
var ErrNotWorkflow = errors.New("not a workflow definition")

// FileKind identifies which job/step layout a document uses.
type FileKind string

const (
	// KindWorkflow is a workflow with a top-level jobs mapping.
	KindWorkflow FileKind = "workflow"
	// KindCompositeAction is an action.yml with runs.steps.
	KindCompositeAction FileKind = "composite-action"
)

// CompositeJobName is the job name reported for composite action steps.
const CompositeJobName = "runs"

// WorkflowFile is a parsed workflow definition. It is never modified after
// ParseWorkflow returns.
type WorkflowFile struct {
	Path string
	Kind FileKind
	Jobs []Job
	// Lines holds the raw source lines, used to report columns.
	Lines []string
}

// Job is one entry of the jobs mapping, in document order.
type Job struct {
	Name  string
	Line  int
	Steps []Step
}

// Step is one entry of a job's steps sequence.
type Step struct {
	Index int // 0-based position in steps
	Name  string
	ID    string
	Line  int
	Run   *RunBlock
	Env   []EnvVar
}

// DisplayName returns the step name, its id, or "" when neither is set.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// HasEnv reports whether the step defines an env entry called name.
func (s Step) HasEnv(name string) bool {
	for _, env := range s.Env {
		if env.Name == name {
			return true
		}
	}
	return false
}

// RunBlock is the shell text of a step's run: key.
type RunBlock struct {
	Text string
	// Line is the 1-based source line holding the first line of Text.
	Line int
	// Block is true for literal (|) and folded (>) block scalars.
	Block bool
	// Indicator is the block scalar header, e.g. "|", "|-" or ">".
	Indicator string
	// Spans is true when the scalar is written over several source lines.
	Spans bool
	// EndLine is the last source line of the scalar.
	EndLine int
}

// MultiLine reports whether the run text is written over more than one line.
func (r *RunBlock) MultiLine() bool {
	if r == nil {
		return false
	}
	return r.Block || r.Spans || strings.Contains(strings.TrimRight(r.Text, "\n"), "\n")
}

// EnvVar is one entry of a step's env mapping.
type EnvVar struct {
	Name  string
	Value string
	Line  int
}

// ParseWorkflow parses data as a workflow definition. It returns a
// *SyntaxError when data is not valid YAML and ErrNotWorkflow when the
// document has neither jobs nor composite runs.steps.
func ParseWorkflow(path string, data []byte) (*WorkflowFile, error) {
	workflowFileLog.Printf("Parsing workflow: path=%s, size=%d", path, len(data))

	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		workflowFileLog.Printf("YAML parse failed: %v", err)
		return nil, newSyntaxError(path, err)
	}

	for _, doc := range file.Docs {
		if doc == nil || doc.Body == nil {
			continue
		}
		wf, ok := buildWorkflow(path, doc.Body)
		if !ok {
			continue
		}
		wf.Lines = splitLines(data)
		workflowFileLog.Printf("Parsed %s %s: jobs=%d", wf.Kind, path, len(wf.Jobs))
		return wf, nil
	}

	workflowFileLog.Printf("No job/step structure in %s", path)
	return nil, fmt.Errorf("%s: %w", path, ErrNotWorkflow)
}

// maxAliasDepth bounds alias, anchor, tag and merge-key chains.
const maxAliasDepth = 32

// docBuilder walks one YAML document. It resolves aliases against the anchors
// defined in that document.
type docBuilder struct {
	anchors map[string][]*ast.AnchorNode
}

func newDocBuilder(body ast.Node) *docBuilder {
	b := &docBuilder{anchors: make(map[string][]*ast.AnchorNode)}
	for _, node := range ast.Filter(ast.AnchorType, body) {
		anchor, ok := node.(*ast.AnchorNode)
		if !ok || anchor.Name == nil || anchor.Name.GetToken() == nil {
			continue
		}
		name := anchor.Name.GetToken().Value
		b.anchors[name] = append(b.anchors[name], anchor)
	}
	return b
}

func buildWorkflow(path string, body ast.Node) (*WorkflowFile, bool) {
	b := newDocBuilder(body)
	root := b.mappingValues(body)
	if root == nil {
		return nil, false
	}

	if jobs := lookup(root, "jobs"); jobs != nil {
		if !b.isMapping(jobs.Value) && !b.isNull(jobs.Value) {
			return nil, false
		}
		wf := &WorkflowFile{Path: path, Kind: KindWorkflow}
		for _, jobEntry := range b.mappingValues(jobs.Value) {
			wf.Jobs = append(wf.Jobs, b.buildJob(keyName(jobEntry), jobEntry))
		}
		return wf, true
	}

	if runs := lookup(root, "runs"); runs != nil {
		runValues := b.mappingValues(runs.Value)
		if steps := lookup(runValues, "steps"); steps != nil {
			job := Job{
				Name:  CompositeJobName,
				Line:  lineOf(runs),
				Steps: b.buildSteps(steps.Value),
			}
			return &WorkflowFile{Path: path, Kind: KindCompositeAction, Jobs: []Job{job}}, true
		}
	}

	return nil, false
}

func (b *docBuilder) buildJob(name string, entry *ast.MappingValueNode) Job {
	job := Job{Name: name, Line: lineOf(entry)}
	if steps := lookup(b.mappingValues(entry.Value), "steps"); steps != nil {
		job.Steps = b.buildSteps(steps.Value)
	}
	return job
}

func (b *docBuilder) buildSteps(node ast.Node) []Step {
	seq, ok := b.unwrap(node).(*ast.SequenceNode)
	if !ok {
		return nil
	}

	steps := make([]Step, 0, len(seq.Values))
	for i, item := range seq.Values {
		step := Step{Index: i, Line: lineOf(item)}
		values := b.mappingValues(item)

		if v := lookup(values, "name"); v != nil {
			step.Name, _, _ = b.scalarText(v.Value)
		}
		if v := lookup(values, "id"); v != nil {
			step.ID, _, _ = b.scalarText(v.Value)
		}
		if v := lookup(values, "run"); v != nil {
			step.Run = b.buildRunBlock(v)
		}
		if v := lookup(values, "env"); v != nil {
			for _, envEntry := range b.mappingValues(v.Value) {
				value, _, _ := b.scalarText(envEntry.Value)
				step.Env = append(step.Env, EnvVar{
					Name:  keyName(envEntry),
					Value: value,
					Line:  lineOf(envEntry),
				})
			}
		}
		steps = append(steps, step)
	}
	return steps
}

// buildRunBlock returns the run text with the position of the scalar that
// holds it. For an alias that is the anchored scalar.
func (b *docBuilder) buildRunBlock(entry *ast.MappingValueNode) *RunBlock {
	node := b.unwrap(entry.Value)
	text, ok, _ := b.scalarText(node)
	if !ok {
		return nil
	}

	run := &RunBlock{Text: text, Line: lineOf(node)}
	run.EndLine = run.Line
	switch v := node.(type) {
	case *ast.LiteralNode:
		run.Block = true
		if v.Start != nil {
			run.Indicator = strings.TrimSpace(v.Start.Value)
		}
		// Block content starts on the line after the indicator.
		run.Line++
		run.EndLine = run.Line + strings.Count(strings.TrimRight(text, "\n"), "\n")
	case *ast.StringNode:
		if tok := v.GetToken(); tok != nil {
			origin := strings.TrimSpace(tok.Origin)
			run.Spans = strings.Contains(origin, "\n")
			run.EndLine = run.Line + strings.Count(origin, "\n")
		}
	}
	return run
}

// scalarText returns the string form of a scalar node. ok is false for
// mappings, sequences and unresolved aliases.
func (b *docBuilder) scalarText(node ast.Node) (text string, ok bool, block bool) {
	switch v := b.unwrap(node).(type) {
	case *ast.LiteralNode:
		if v.Value == nil {
			return "", true, true
		}
		return v.Value.Value, true, true
	case *ast.StringNode:
		return v.Value, true, false
	case *ast.NullNode:
		return "", true, false
	case ast.ScalarNode:
		return fmt.Sprint(v.GetValue()), true, false
	}
	return "", false, false
}

// unwrap strips anchors and tags and follows aliases to the anchored value.
// It returns nil for an alias without a matching anchor.
func (b *docBuilder) unwrap(node ast.Node) ast.Node {
	for range maxAliasDepth {
		switch v := node.(type) {
		case *ast.AnchorNode:
			node = v.Value
		case *ast.TagNode:
			node = v.Value
		case *ast.AliasNode:
			node = b.resolveAlias(v)
			if node == nil {
				return nil
			}
		default:
			return node
		}
	}
	workflowFileLog.Print("Alias chain too deep, giving up")
	return nil
}

// resolveAlias returns the value of the closest anchor with the alias's name
// defined before it. A later anchor may redefine the name.
func (b *docBuilder) resolveAlias(alias *ast.AliasNode) ast.Node {
	if alias.Value == nil || alias.Value.GetToken() == nil {
		return nil
	}
	name := alias.Value.GetToken().Value
	at := alias.GetToken()

	var found *ast.AnchorNode
	for _, anchor := range b.anchors[name] {
		if at == nil || before(anchor.GetToken(), at) {
			found = anchor
		}
	}
	if found == nil {
		workflowFileLog.Printf("Alias *%s has no anchor", name)
		return nil
	}
	return found.Value
}

func before(a, b *token.Token) bool {
	if a == nil || a.Position == nil || b.Position == nil {
		return false
	}
	if a.Position.Line != b.Position.Line {
		return a.Position.Line < b.Position.Line
	}
	return a.Position.Column < b.Position.Column
}

func (b *docBuilder) mappingValues(node ast.Node) []*ast.MappingValueNode {
	return b.mappingValuesDepth(node, 0)
}

// mappingValuesDepth returns the entries of a mapping with "<<" merge keys
// expanded. Explicit keys come first so lookup prefers them over merged ones.
func (b *docBuilder) mappingValuesDepth(node ast.Node, depth int) []*ast.MappingValueNode {
	if depth > maxAliasDepth {
		return nil
	}

	var entries []*ast.MappingValueNode
	switch v := b.unwrap(node).(type) {
	case *ast.MappingNode:
		entries = v.Values
	case *ast.MappingValueNode:
		entries = []*ast.MappingValueNode{v}
	default:
		return nil
	}

	values := make([]*ast.MappingValueNode, 0, len(entries))
	var merged []*ast.MappingValueNode
	for _, entry := range entries {
		if keyName(entry) != "<<" {
			values = append(values, entry)
			continue
		}
		if seq, ok := b.unwrap(entry.Value).(*ast.SequenceNode); ok {
			for _, item := range seq.Values {
				merged = append(merged, b.mappingValuesDepth(item, depth+1)...)
			}
			continue
		}
		merged = append(merged, b.mappingValuesDepth(entry.Value, depth+1)...)
	}
	return append(values, merged...)
}

func lookup(values []*ast.MappingValueNode, key string) *ast.MappingValueNode {
	for _, v := range values {
		if keyName(v) == key {
			return v
		}
	}
	return nil
}

func keyName(entry *ast.MappingValueNode) string {
	if entry == nil || entry.Key == nil {
		return ""
	}
	tok := entry.Key.GetToken()
	if tok == nil {
		return ""
	}
	return tok.Value
}

func (b *docBuilder) isNull(node ast.Node) bool {
	if node == nil {
		return true
	}
	_, ok := b.unwrap(node).(*ast.NullNode)
	return ok
}

func (b *docBuilder) isMapping(node ast.Node) bool {
	switch b.unwrap(node).(type) {
	case *ast.MappingNode, *ast.MappingValueNode:
		return true
	}
	return false
}

func lineOf(node ast.Node) int {
	if node == nil {
		return 0
	}
	tok := node.GetToken()
	if tok == nil || tok.Position == nil {
		return 0
	}
	return tok.Position.Line
}

func splitLines(data []byte) []string {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return strings.Split(string(data), "\n")
}
