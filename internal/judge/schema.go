package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/alienxp03/tradedebate/internal/core"
)

// verdictSchema is the JSON schema every judge response must satisfy.
var verdictSchema = map[string]any{
	"type":     "object",
	"required": []any{"winner", "justification"},
	"properties": map[string]any{
		"winner": map[string]any{
			"type": "string",
			"enum": []any{"buy", "sell"},
		},
		"justification": map[string]any{
			"oneOf": []any{
				map[string]any{"type": "string", "minLength": 1},
				map[string]any{
					"type":     "array",
					"minItems": 1,
					"items":    map[string]any{"type": "string"},
				},
			},
		},
	},
}

var schemaLoader = gojsonschema.NewGoLoader(verdictSchema)

// ParseVerdict extracts, validates and decodes the verdict object from raw
// model output. Any failure is a *core.MalformedOutputError.
func ParseVerdict(raw string) (*core.Verdict, error) {
	body, ok := extractObject(raw)
	if !ok {
		return nil, &core.MalformedOutputError{Reason: "no JSON object in response", Raw: raw}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &core.MalformedOutputError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}
	if w, ok := doc["winner"].(string); ok {
		doc["winner"] = strings.ToLower(strings.TrimSpace(w))
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, &core.MalformedOutputError{Reason: fmt.Sprintf("schema validation failed: %v", err), Raw: raw}
	}
	if !result.Valid() {
		problems := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			problems[i] = e.String()
		}
		return nil, &core.MalformedOutputError{Reason: "invalid verdict: " + strings.Join(problems, "; "), Raw: raw}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, &core.MalformedOutputError{Reason: err.Error(), Raw: raw}
	}
	var v core.Verdict
	if err := json.Unmarshal(normalized, &v); err != nil {
		return nil, &core.MalformedOutputError{Reason: err.Error(), Raw: raw}
	}
	return &v, nil
}

// extractObject returns the outermost {...} span, skipping code fences and
// any prose the model put around it.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
