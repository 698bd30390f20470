package workflow

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/ci-shared/workflow-secrets/pkg/parser"
	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var policyLog = logger.New("workflow:policy")

//go:embed schemas/policy.json
var policySchemaJSON string

// Mode selects which secrets are reported when inlined.
type Mode string

const (
	// ModeAll reports every inlined secret.
	ModeAll Mode = "all"
	// ModeMultiline reports only secrets likely to hold multi-line values
	// such as JSON credentials or PEM keys.
	ModeMultiline Mode = "multiline"
)

// DefaultPolicyFile is the policy location relative to the repository root.
const DefaultPolicyFile = ".github/workflow-secrets.yml"

// Policy is the detection rule applied to each run block.
type Policy struct {
	Mode              Mode     `yaml:"mode"`
	IncludeSingleLine bool     `yaml:"include_single_line"`
	Allow             []string `yaml:"allow"`
	MultilineSecrets  []string `yaml:"multiline_secrets"`
	NameContains      []string `yaml:"name_contains"`
	NameSuffixes      []string `yaml:"name_suffixes"`
}

// DefaultPolicy reports every secret inlined in a multi-line run block. The
// multi-line name heuristics are preset for ModeMultiline.
func DefaultPolicy() Policy {
	return Policy{
		Mode:             ModeAll,
		MultilineSecrets: []string{"FIREBASE_CREDENTIALS_JSON", "PI_SSH_KEY"},
		NameContains:     []string{"_CREDENTIALS"},
		NameSuffixes:     []string{"_KEY"},
	}
}

// Validate checks option values that do not come from a policy file.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeAll, ModeMultiline:
		return nil
	default:
		return NewConfigError("mode", fmt.Sprintf("unknown mode %q", p.Mode), "use 'all' or 'multiline'")
	}
}

// Reports decides whether an inlined reference to secret name is a finding.
// Names compare case-insensitively, as GitHub treats secret names.
func (p Policy) Reports(name string) bool {
	upper := strings.ToUpper(name)
	if slices.ContainsFunc(p.Allow, func(a string) bool { return strings.ToUpper(a) == upper }) {
		return false
	}
	if p.Mode != ModeMultiline || name == WholeSecretsContext {
		return true
	}
	return p.IsLikelyMultiline(name)
}

// IsLikelyMultiline reports whether a secret is known or likely to hold a
// multi-line value.
func (p Policy) IsLikelyMultiline(name string) bool {
	upper := strings.ToUpper(name)
	for _, known := range p.MultilineSecrets {
		if strings.ToUpper(known) == upper {
			return true
		}
	}
	for _, fragment := range p.NameContains {
		if strings.Contains(upper, strings.ToUpper(fragment)) {
			return true
		}
	}
	for _, suffix := range p.NameSuffixes {
		if strings.HasSuffix(upper, strings.ToUpper(suffix)) {
			return true
		}
	}
	return false
}

var (
	policySchema     *jsonschema.Schema
	policySchemaErr  error
	policySchemaOnce sync.Once
)

func compiledPolicySchema() (*jsonschema.Schema, error) {
	policySchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(policySchemaJSON))
		if err != nil {
			policySchemaErr = fmt.Errorf("failed to parse policy schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("policy.json", doc); err != nil {
			policySchemaErr = fmt.Errorf("failed to add policy schema: %w", err)
			return
		}
		policySchema, policySchemaErr = compiler.Compile("policy.json")
	})
	return policySchema, policySchemaErr
}

// LoadPolicy reads a policy file on top of DefaultPolicy. Keys missing from
// the file keep their default values.
func LoadPolicy(path string) (Policy, error) {
	policyLog.Printf("Loading policy: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, &ConfigError{File: path, Reason: "cannot read policy file", Cause: err}
	}
	return ParsePolicy(path, data)
}

// ParsePolicy validates data against the policy schema and decodes it.
func ParsePolicy(path string, data []byte) (Policy, error) {
	policy := DefaultPolicy()
	if len(bytes.TrimSpace(data)) == 0 {
		return policy, nil
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		line, column, message := parser.ExtractYAMLError(err)
		return Policy{}, &ConfigError{File: path, Line: line, Column: column, Reason: message, Cause: err}
	}

	// Comment-only documents convert to null or nothing at all.
	if trimmed := bytes.TrimSpace(jsonData); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return policy, nil
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return Policy{}, &ConfigError{File: path, Reason: "policy is not valid YAML", Cause: err}
	}
	schema, err := compiledPolicySchema()
	if err != nil {
		return Policy{}, err
	}
	if err := schema.Validate(instance); err != nil {
		return Policy{}, schemaConfigError(path, string(data), err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		line, column, message := parser.ExtractYAMLError(err)
		return Policy{}, &ConfigError{File: path, Line: line, Column: column, Reason: message, Cause: err}
	}

	policyLog.Printf("Loaded policy: mode=%s, include_single_line=%t, allow=%d", policy.Mode, policy.IncludeSingleLine, len(policy.Allow))
	return policy, nil
}

// schemaConfigError reports the first schema violation at its YAML position.
func schemaConfigError(path, content string, err error) error {
	violations := parser.ExtractJSONPathFromValidationError(err)
	if len(violations) == 0 {
		return &ConfigError{File: path, Reason: err.Error(), Cause: err}
	}

	first := violations[0]
	loc := parser.LocateJSONPathInYAMLWithAdditionalProperties(content, first.Path, first.Message)

	field := strings.TrimPrefix(first.Path, "/")
	reason := lastLine(first.Message)
	policyLog.Printf("Policy schema violation at %s (line %d): %s", first.Path, loc.Line, reason)

	cfgErr := &ConfigError{File: path, Field: field, Reason: reason, Cause: err}
	if loc.Found {
		cfgErr.Line, cfgErr.Column = loc.Line, loc.Column
	}
	return cfgErr
}

// lastLine strips the "jsonschema validation failed with ..." preamble and
// the "- at '/path':" prefix from a validation message.
func lastLine(message string) string {
	lines := strings.Split(strings.TrimSpace(message), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	last = strings.TrimPrefix(last, "- ")
	if strings.HasPrefix(last, "at '") {
		if _, rest, ok := strings.Cut(last, "': "); ok {
			return rest
		}
	}
	return last
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
