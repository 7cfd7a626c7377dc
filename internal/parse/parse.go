// Package parse turns the model's single text response into the three
// persisted renderings: structured content, markdown, and CSV.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Parsed is the tagged result of splitting a model response.
// Content is nil when the json block was absent or unparseable.
type Parsed struct {
	RawText  string
	Content  map[string]any
	Markdown string
	CSV      string
}

var fencePatterns = map[string]*regexp.Regexp{
	"json":     fencePattern("json"),
	"markdown": fencePattern("markdown"),
	"csv":      fencePattern("csv"),
}

func fencePattern(lang string) *regexp.Regexp {
	return regexp.MustCompile("(?is)```" + lang + "[ \t]*\r?\n(.*?)```")
}

// Response splits the model output into its three fenced blocks. Each block
// falls back independently; a malformed json block drops the run back to
// raw-text handling for all three outputs.
func Response(raw string) Parsed {
	out := Parsed{RawText: raw}

	jsonBlock := fencedBlock(raw, "json")
	if jsonBlock != "" {
		var content map[string]any
		if err := json.Unmarshal([]byte(jsonBlock), &content); err != nil {
			out.Content = nil
			out.Markdown = raw
			out.CSV = NaiveCSV(raw)
			return out
		}
		out.Content = content
	} else {
		out.Content = map[string]any{}
	}

	if md := fencedBlock(raw, "markdown"); md != "" {
		out.Markdown = md
	} else {
		out.Markdown = raw
	}

	if csv := fencedBlock(raw, "csv"); csv != "" {
		out.CSV = csv
	} else {
		out.CSV = NaiveCSV(raw)
	}

	return out
}

func fencedBlock(raw, lang string) string {
	pattern, ok := fencePatterns[lang]
	if !ok {
		return ""
	}
	match := pattern.FindStringSubmatch(raw)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// NaiveCSV builds a one-column CSV by quoting each non-blank line of text.
func NaiveCSV(text string) string {
	var rows []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		rows = append(rows, `"`+strings.ReplaceAll(trimmed, `"`, `""`)+`"`)
	}
	return strings.Join(rows, "\n")
}
