//go:build !integration

package workflow

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ci-shared/workflow-secrets/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy("policy.yml", []byte(`mode: multiline
include_single_line: true
allow:
  - GITHUB_TOKEN
name_suffixes:
  - _KEY
  - _PEM
`))
	require.NoError(t, err)

	assert.Equal(t, ModeMultiline, policy.Mode)
	assert.True(t, policy.IncludeSingleLine)
	assert.Equal(t, []string{"GITHUB_TOKEN"}, policy.Allow)
	assert.Equal(t, []string{"_KEY", "_PEM"}, policy.NameSuffixes)
	assert.Equal(t, DefaultPolicy().MultilineSecrets, policy.MultilineSecrets, "keys missing from the file keep defaults")
	assert.Equal(t, DefaultPolicy().NameContains, policy.NameContains)
}

func TestParsePolicyEmpty(t *testing.T) {
	for _, content := range []string{"", "\n", "# defaults only\n"} {
		policy, err := ParsePolicy("policy.yml", []byte(content))
		require.NoError(t, err)
		assert.Equal(t, DefaultPolicy(), policy)
	}
}

func TestParsePolicyInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
		field   string
	}{
		{name: "unknown mode", content: "mode: sometimes\n", line: 1, field: "mode"},
		{name: "unknown key", content: "mode: all\nalow:\n  - TOKEN\n", line: 2},
		{name: "wrong type", content: "include_single_line: \"yes please\"\n", line: 1, field: "include_single_line"},
		{name: "bad secret name", content: "allow:\n  - TOKEN\n  - \"not a name\"\n", line: 3, field: "allow/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy("policy.yml", []byte(tt.content))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigError, got %T: %v", err, err)
			assert.Equal(t, "policy.yml", cfgErr.File)
			assert.Equal(t, tt.line, cfgErr.Line)
			if tt.field != "" {
				assert.Equal(t, tt.field, cfgErr.Field)
			}
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestParsePolicySyntaxError(t *testing.T) {
	_, err := ParsePolicy("policy.yml", []byte("mode: \"all\n"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoadPolicy(t *testing.T) {
	dir := testutil.TempDir(t, "policy-*")
	path := testutil.WriteFile(t, dir, "workflow-secrets.yml", "allow: [GITHUB_TOKEN]\n")

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"GITHUB_TOKEN"}, policy.Allow)

	_, err = LoadPolicy(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.Mode = "some"
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestPolicyIsLikelyMultiline(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.IsLikelyMultiline("FIREBASE_CREDENTIALS_JSON"))
	assert.True(t, p.IsLikelyMultiline("PI_SSH_KEY"))
	assert.True(t, p.IsLikelyMultiline("GCP_CREDENTIALS"))
	assert.True(t, p.IsLikelyMultiline("deploy_key"))
	assert.False(t, p.IsLikelyMultiline("TOKEN"))
	assert.False(t, p.IsLikelyMultiline("KEYRING_PASSWORD"))
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{File: "policy.yml", Line: 2, Column: 7, Field: "mode", Reason: "value must be one of 'all', 'multiline'"}
	assert.Equal(t, "policy.yml:2:7: invalid mode: value must be one of 'all', 'multiline'", err.Error())

	flagErr := NewConfigError("format", "unknown format \"xml\"", "use text, json or sarif")
	assert.Equal(t, `invalid format: unknown format "xml" (use text, json or sarif)`, flagErr.Error())
}
