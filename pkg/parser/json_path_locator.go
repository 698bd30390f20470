package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/parser"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var jsonPathLog = logger.New("parser:json_path_locator")

// JSONPathLocation is a position in YAML source corresponding to a JSON path.
type JSONPathLocation struct {
	Line   int
	Column int
	Found  bool
}

// JSONPathInfo holds one schema violation and the instance path it applies to.
type JSONPathInfo struct {
	Path     string   // JSON pointer like "/allow/1"
	Message  string   // Validation message
	Location []string // Instance location segments, e.g. ["allow", "1"]
}

// ExtractJSONPathFromValidationError flattens a jsonschema validation error
// into its leaf violations.
func ExtractJSONPathFromValidationError(err error) []JSONPathInfo {
	validationError, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil
	}

	var paths []JSONPathInfo
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			paths = append(paths, JSONPathInfo{
				Path:     convertInstanceLocationToJSONPath(e.InstanceLocation),
				Message:  e.Error(),
				Location: e.InstanceLocation,
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(validationError)

	jsonPathLog.Printf("Extracted %d validation violations", len(paths))
	return paths
}

func convertInstanceLocationToJSONPath(location []string) string {
	if len(location) == 0 {
		return ""
	}
	return "/" + strings.Join(location, "/")
}

// LocateJSONPathInYAML finds where the value addressed by a JSON pointer is
// written in yamlContent. The root path resolves to line 1, column 1.
func LocateJSONPathInYAML(yamlContent string, jsonPath string) JSONPathLocation {
	jsonPathLog.Printf("Locating JSON path in YAML: %s", jsonPath)

	if jsonPath == "" || jsonPath == "/" {
		return JSONPathLocation{Line: 1, Column: 1, Found: true}
	}

	file, err := parser.ParseBytes([]byte(yamlContent), 0)
	if err != nil {
		jsonPathLog.Printf("Cannot parse YAML for location lookup: %v", err)
		return JSONPathLocation{Line: 1, Column: 1, Found: false}
	}

	path, err := yaml.PathString(jsonPointerToYAMLPath(jsonPath))
	if err != nil {
		jsonPathLog.Printf("Invalid YAML path for %s: %v", jsonPath, err)
		return JSONPathLocation{Line: 1, Column: 1, Found: false}
	}

	node, err := path.FilterFile(file)
	if err != nil || node == nil || node.GetToken() == nil {
		return JSONPathLocation{Line: 1, Column: 1, Found: false}
	}

	pos := node.GetToken().Position
	return JSONPathLocation{Line: pos.Line, Column: pos.Column, Found: true}
}

// LocateJSONPathInYAMLWithAdditionalProperties is LocateJSONPathInYAML with
// one extra rule: for "additional properties … not allowed" errors it points
// at the first offending key instead of the enclosing object.
func LocateJSONPathInYAMLWithAdditionalProperties(yamlContent string, jsonPath string, errorMessage string) JSONPathLocation {
	for _, name := range extractAdditionalPropertyNames(errorMessage) {
		child := strings.TrimSuffix(jsonPath, "/") + "/" + name
		if loc := LocateJSONPathInYAML(yamlContent, child); loc.Found {
			return findKeyAbove(yamlContent, loc, name)
		}
	}
	return LocateJSONPathInYAML(yamlContent, jsonPath)
}

// jsonPointerToYAMLPath converts "/allow/1" into "$.allow[1]".
func jsonPointerToYAMLPath(jsonPath string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, part := range strings.Split(strings.TrimPrefix(jsonPath, "/"), "/") {
		if part == "" {
			continue
		}
		part = strings.NewReplacer("~1", "/", "~0", "~").Replace(part)
		if _, err := strconv.Atoi(part); err == nil {
			b.WriteString("[" + part + "]")
			continue
		}
		if strings.ContainsAny(part, ".[]'\" ") {
			b.WriteString(".'" + part + "'")
			continue
		}
		b.WriteString("." + part)
	}
	return b.String()
}

// findKeyAbove moves a value location to the line of its "key:" token, which
// is the value line itself or the closest line above it.
func findKeyAbove(yamlContent string, loc JSONPathLocation, key string) JSONPathLocation {
	lines := strings.Split(yamlContent, "\n")
	for l := min(loc.Line, len(lines)); l >= 1; l-- {
		if idx := strings.Index(lines[l-1], key+":"); idx >= 0 {
			return JSONPathLocation{Line: l, Column: idx + 1, Found: true}
		}
	}
	return loc
}

var (
	additionalPropertiesPattern = regexp.MustCompile(`additional propert(?:y|ies) (.+?) not allowed`)
	quotedPropertyPattern       = regexp.MustCompile(`'([^']+)'`)
)

// extractAdditionalPropertyNames extracts property names from messages like
// "additional properties 'modes', 'alow' not allowed".
func extractAdditionalPropertyNames(errorMessage string) []string {
	match := additionalPropertiesPattern.FindStringSubmatch(errorMessage)
	if len(match) < 2 {
		return nil
	}

	var properties []string
	for _, propMatch := range quotedPropertyPattern.FindAllStringSubmatch(match[1], -1) {
		if prop := strings.TrimSpace(propMatch[1]); prop != "" {
			properties = append(properties, prop)
		}
	}
	return properties
}
