// Package outputs coerces free-text model responses into structured values.
// Models frequently wrap JSON in markdown code fences or surround it with
// prose; Decode tolerates both.
package outputs

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Decode extracts the first JSON document from a model response.
func Decode(text string) (gjson.Result, error) {
	payload := extractJSON(text)
	if payload == "" {
		return gjson.Result{}, fmt.Errorf("no JSON document found in response")
	}
	if !gjson.Valid(payload) {
		return gjson.Result{}, fmt.Errorf("response contains malformed JSON")
	}
	return gjson.Parse(payload), nil
}

// Field extracts a single value by gjson path from a model response.
func Field(text, path string) (gjson.Result, error) {
	doc, err := Decode(text)
	if err != nil {
		return gjson.Result{}, err
	}

	value := doc.Get(path)
	if !value.Exists() {
		return gjson.Result{}, fmt.Errorf("field not found: %s", path)
	}
	return value, nil
}

func extractJSON(text string) string {
	text = stripFences(strings.TrimSpace(text))

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}

	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}

	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline != -1 {
		// Drop the language tag line.
		text = text[newline+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
