package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Output is the structured-or-raw result recovered from completion text.
// Exactly one of the two shapes is populated: Fields when Parsed is true,
// Raw otherwise. Callers must check Parsed before indexing Fields.
type Output struct {
	Fields map[string]any `json:"fields,omitempty"`
	Raw    string         `json:"raw_text,omitempty"`
	Parsed bool           `json:"parsed"`
}

// Number returns a numeric field. JSON numbers decode as float64.
func (o *Output) Number(key string) (float64, bool) {
	if o == nil || !o.Parsed {
		return 0, false
	}
	switch v := o.Fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// String returns a string field.
func (o *Output) String(key string) (string, bool) {
	if o == nil || !o.Parsed {
		return "", false
	}
	v, ok := o.Fields[key].(string)
	return v, ok
}

// Bool returns a boolean field.
func (o *Output) Bool(key string) (bool, bool) {
	if o == nil || !o.Parsed {
		return false, false
	}
	v, ok := o.Fields[key].(bool)
	return v, ok
}

// Strings returns a field holding a list of strings; non-string elements
// are rendered through their JSON representation.
func (o *Output) Strings(key string) []string {
	if o == nil || !o.Parsed {
		return nil
	}
	items, ok := o.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			continue
		}
		out = append(out, string(encoded))
	}
	return out
}

// extractStrategy attempts to recover a JSON object from completion text.
type extractStrategy func(text string) (map[string]any, bool)

// Strategies are tried in order and the first success wins. The order is
// load-bearing: a fenced block must shadow any stray braces in prose, and
// the brace scan is the loosest match.
var extractStrategies = []extractStrategy{
	parseWholeText,
	parseFencedBlock,
	parseBraceSpan,
}

var fencedJSONPattern = regexp.MustCompile("(?si)```json\\s*(.*?)```")

// Extract recovers a structured result from completion text. It never
// fails: when no strategy yields a JSON object the original text is
// returned unmodified in the unstructured wrapper.
func Extract(text string) *Output {
	for _, strategy := range extractStrategies {
		if fields, ok := strategy(text); ok {
			return &Output{Fields: fields, Parsed: true}
		}
	}
	return &Output{Raw: text, Parsed: false}
}

// parseWholeText accepts only a completion that is entirely one JSON
// object. No repair here: prose around the object must fall through to
// the narrower strategies.
func parseWholeText(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// parseFencedBlock parses the interior of the first ```json fence.
func parseFencedBlock(text string) (map[string]any, bool) {
	match := fencedJSONPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	return parseObject(match[1])
}

// parseBraceSpan parses the span from the first '{' to the last '}'.
// Greedy on purpose: models tend to wrap one large object in commentary,
// and the outer span tolerates preamble and postamble. Texts holding
// several separate objects will not survive this heuristic.
func parseBraceSpan(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}
	return parseObject(text[start : end+1])
}

// parseObject decodes candidate JSON, falling back to jsonrepair for the
// almost-valid output models commonly produce (trailing commas, single
// quotes, unquoted keys).
func parseObject(candidate string) (map[string]any, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err == nil {
		return fields, true
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &fields); err != nil {
		return nil, false
	}
	return fields, true
}
