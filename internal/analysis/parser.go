package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoValidOutput is returned when no strategy can extract a JSON value
// from the analyzer's output.
var ErrNoValidOutput = errors.New("no valid JSON output from analyzer")

// ParseStrategy attempts to extract a JSON object from raw process
// output. Strategies are pure and independently testable; they are tried
// in order until one succeeds.
type ParseStrategy func(output string) (map[string]interface{}, bool)

// DefaultStrategies is the ordered chain used against analyzer output.
// The layering exists because the analyzer's logging and result output
// are not cleanly separated onto distinct streams in all script versions.
var DefaultStrategies = []ParseStrategy{
	ParseWhole,
	ParseBraceSpan,
	ParseTrailingLine,
}

// ParseWhole parses the entire trimmed output as one JSON object.
func ParseWhole(output string) (map[string]interface{}, bool) {
	return tryUnmarshal(strings.TrimSpace(output))
}

// ParseBraceSpan parses the substring between the first opening and last
// closing brace of the output.
func ParseBraceSpan(output string) (map[string]interface{}, bool) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return tryUnmarshal(output[start : end+1])
}

// ParseTrailingLine scans output lines from last to first and parses the
// first line that looks like the start of a JSON object.
func ParseTrailingLine(output string) (map[string]interface{}, bool) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if payload, ok := tryUnmarshal(line); ok {
			return payload, true
		}
	}
	return nil, false
}

// ExtractJSON runs the strategy chain over raw output.
func ExtractJSON(output string, strategies []ParseStrategy) (map[string]interface{}, error) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	for _, strategy := range strategies {
		if payload, ok := strategy(output); ok {
			return payload, nil
		}
	}
	return nil, ErrNoValidOutput
}

func tryUnmarshal(s string) (map[string]interface{}, bool) {
	if s == "" {
		return nil, false
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, false
	}
	return payload, true
}
