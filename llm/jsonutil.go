package llm

import (
	"regexp"
	"strings"
)

var (
	// fencePattern matches a whole reply wrapped in a markdown code fence.
	fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\s*```$")
	// jsonBlockPattern matches a JSON object inside a fenced block anywhere in the text.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern matches the outermost-looking JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// StripCodeFence removes a surrounding markdown code fence, with or without a
// language tag. Text that is not fully fenced is returned trimmed.
func StripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ExtractJSON pulls a JSON object out of a model reply, tolerating prose
// around it, // comments and trailing commas. Returns "" when no object is found.
func ExtractJSON(content string) string {
	raw := ""
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = jsonObjectPattern.FindString(content)
	}
	if raw == "" {
		return ""
	}
	return cleanJSON(raw)
}

// cleanJSON removes // comments outside string values and trailing commas.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a trailing // comment from one line, leaving
// slashes inside quoted strings (URLs, paths) alone.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
