package handler

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var fencedBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```"),
	regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```"),
	regexp.MustCompile("(?s)```(.*?)```"),
}

var knownPrefixes = []string{
	"Here is the JSON output based on the provided information and process definition:",
	"Here is the JSON response:",
	"The result is:",
	"JSON output:",
	"Response:",
}

// ExtractDecisionJSON applies a robust multi-strategy JSON extraction:
// fenced json blocks first, then a brace-matched substring, then a
// defect-repairing pass (trailing commas, unquoted keys, single
// quotes).
func ExtractDecisionJSON(text string) (map[string]any, error) {
	// Strategy 1: fenced code blocks.
	for _, pat := range fencedBlockPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			if obj, err := unmarshalObject(strings.TrimSpace(m[1])); err == nil {
				return obj, nil
			}
		}
	}

	// Strategy 2: the first-to-last brace substring of the raw text.
	if obj, err := unmarshalObject(braceSubstring(text)); err == nil {
		return obj, nil
	}

	// Strategy 3: strip known LLM preambles, then retry.
	cleaned := strings.TrimSpace(text)
	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			break
		}
	}
	if obj, err := unmarshalObject(cleaned); err == nil {
		return obj, nil
	}

	// Strategy 4: brace substring of the cleaned text, then a
	// defect-repair pass (trailing commas, unquoted keys, single quotes).
	candidate := braceSubstring(cleaned)
	if obj, err := unmarshalObject(candidate); err == nil {
		return obj, nil
	}
	repaired := repairCommonDefects(candidate)
	if obj, err := unmarshalObject(repaired); err == nil {
		return obj, nil
	}

	preview := text
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return nil, fmt.Errorf("handler: could not parse decision JSON from text: %q...", preview)
}

func unmarshalObject(s string) (map[string]any, error) {
	if s == "" {
		return nil, fmt.Errorf("empty candidate")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func braceSubstring(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

var (
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*):`)
)

// repairCommonDefects fixes the handful of malformed-JSON patterns the
// original source targeted: trailing commas, unquoted object keys, and
// stray single quotes used in place of double quotes.
func repairCommonDefects(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3:`)
	s = strings.ReplaceAll(s, "'", `"`)
	return s
}

// decisionSchema is compiled once and used to validate an extracted
// candidate object before it's unmarshaled into the Decision DTO.
var decisionSchema = mustCompileDecisionSchema()

const decisionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["instanceId", "instanceName", "processDefinitionId"],
  "properties": {
    "instanceId": {"type": "string"},
    "instanceName": {"type": "string"},
    "processDefinitionId": {"type": "string"},
    "fieldMappings": {"type": "array"},
    "roleBindings": {"type": "array"},
    "completedActivities": {"type": "array"},
    "nextActivities": {"type": "array"},
    "cannotProceedErrors": {"type": "array"},
    "referenceInfo": {"type": "array"}
  }
}`

func mustCompileDecisionSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(decisionSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("handler: invalid embedded decision schema: %v", err))
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("decision.json", doc); err != nil {
		panic(fmt.Sprintf("handler: invalid embedded decision schema: %v", err))
	}
	schema, err := c.Compile("decision.json")
	if err != nil {
		panic(fmt.Sprintf("handler: failed to compile decision schema: %v", err))
	}
	return schema
}

// ParseDecision runs ExtractDecisionJSON, validates the result against
// decisionSchema, and unmarshals it into a Decision.
func ParseDecision(text string) (*Decision, error) {
	obj, err := ExtractDecisionJSON(text)
	if err != nil {
		return nil, err
	}
	if err := decisionSchema.Validate(obj); err != nil {
		return nil, fmt.Errorf("handler: decision failed schema validation: %w", err)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("handler: re-marshal decision candidate: %w", err)
	}
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("handler: unmarshal decision: %w", err)
	}
	return &d, nil
}
