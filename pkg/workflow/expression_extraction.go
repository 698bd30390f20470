package workflow

import (
	"regexp"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
)

var expressionExtractionLog = logger.New("workflow:expression_extraction")

// WholeSecretsContext is the SecretRef name used when an expression reads
// the secrets context as a whole, e.g. ${{ toJSON(secrets) }}.
const WholeSecretsContext = "*"

var (
	// expressionExtractionRegex matches GitHub Actions expressions: ${{ ... }}
	// (?s) lets an expression continue over a line break.
	expressionExtractionRegex = regexp.MustCompile(`(?s)\$\{\{(.*?)\}\}`)

	// secretAccessRegex matches secrets.NAME, secrets['NAME'], secrets["NAME"]
	// and the bare secrets context inside expression content.
	// Word boundaries are checked by hand since \b treats '-' as a boundary.
	secretAccessRegex = regexp.MustCompile(`secrets(?:\s*\.\s*([A-Za-z_][A-Za-z0-9_-]*)|\s*\[\s*'([^']+)'\s*\]|\s*\[\s*"([^"]+)"\s*\])?`)
)

// SecretRef is one secrets context access found inside the expressions of a
// piece of text.
type SecretRef struct {
	Name       string // Secret name, or WholeSecretsContext
	Expression string // The enclosing ${{ ... }} expression
	Offset     int    // Byte offset of Expression in the scanned text
	Access     int    // Byte offset of the secrets access in the scanned text
	LineOffset int    // Number of newlines before Access
}

// ExtractSecretRefs returns every secrets access inside ${{ }} expressions of
// text, in order of appearance. Each access is returned separately, so
// ${{ secrets.A || secrets.B }} yields two refs.
func ExtractSecretRefs(text string) []SecretRef {
	var refs []SecretRef

	for _, loc := range expressionExtractionRegex.FindAllStringSubmatchIndex(text, -1) {
		expr := text[loc[0]:loc[1]]
		content := text[loc[2]:loc[3]]

		for _, m := range secretAccessRegex.FindAllStringSubmatchIndex(content, -1) {
			// Skip property names like inputs.secrets, identifiers such as
			// steps.load-secrets or secrets_dir, and quoted text.
			if !isContextName(content, m[0]) || insideStringLiteral(content, m[0]) {
				continue
			}
			access := loc[2] + m[0]
			refs = append(refs, SecretRef{
				Name:       secretName(content, m),
				Expression: expr,
				Offset:     loc[0],
				Access:     access,
				LineOffset: strings.Count(text[:access], "\n"),
			})
		}
	}

	expressionExtractionLog.Printf("Extracted %d secret references from text: length=%d", len(refs), len(text))
	return refs
}

// isContextName reports whether the "secrets" at pos is the context itself
// and not part of a longer name or a property access.
func isContextName(content string, pos int) bool {
	if pos > 0 && (isNameByte(content[pos-1]) || content[pos-1] == '.') {
		return false
	}
	end := pos + len("secrets")
	return end >= len(content) || !isNameByte(content[end])
}

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func secretName(content string, m []int) string {
	// Groups 1-3 are the dot, single-quoted and double-quoted index forms.
	for g := 1; g <= 3; g++ {
		if m[2*g] >= 0 {
			return content[m[2*g]:m[2*g+1]]
		}
	}
	return WholeSecretsContext
}

// insideStringLiteral reports whether pos falls inside a single-quoted
// expression string literal such as 'secrets are not read here'.
func insideStringLiteral(content string, pos int) bool {
	inside := false
	for i := 0; i < pos; i++ {
		if content[i] == '\'' {
			inside = !inside
		}
	}
	return inside
}
