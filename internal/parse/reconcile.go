package parse

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ReconcileCSV verifies that the CSV's header row matches the expected
// headers under normalized comparison. On mismatch it discards the model's
// CSV and rebuilds one from the structured content.
func ReconcileCSV(csvText string, headers []string, content map[string]any) string {
	if len(headers) == 0 {
		return csvText
	}
	if headersMatch(csvText, headers) {
		return csvText
	}
	return RebuildCSV(headers, content)
}

func headersMatch(csvText string, headers []string) bool {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(csvText), "\n")
	fields := splitCSVLine(firstLine)
	if len(fields) != len(headers) {
		return false
	}
	for i, field := range fields {
		if normalizeKey(field) != normalizeKey(headers[i]) {
			return false
		}
	}
	return true
}

// RebuildCSV produces a CSV whose columns are exactly the expected headers,
// in order. The content is treated as a single row, or as multiple rows via
// the nested "items" array convention. Cells with no matching key are blank.
func RebuildCSV(headers []string, content map[string]any) string {
	rows := contentRows(content)

	lines := make([]string, 0, len(rows)+1)
	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = escapeCSV(h)
	}
	lines = append(lines, strings.Join(headerCells, ","))

	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, header := range headers {
			cells[i] = escapeCSV(matchValue(row, header))
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

func contentRows(content map[string]any) []map[string]any {
	if content == nil {
		return nil
	}
	if items, ok := content["items"].([]any); ok {
		rows := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		if len(rows) > 0 {
			return rows
		}
	}
	if len(content) == 0 {
		return nil
	}
	return []map[string]any{content}
}

func matchValue(row map[string]any, header string) string {
	want := normalizeKey(header)
	for key, value := range row {
		if normalizeKey(key) == want {
			return stringifyValue(value)
		}
	}
	return ""
}

// normalizeKey lowercases and strips spaces, underscores, and hyphens so
// "First Name", "first_name", and "first-name" compare equal.
func normalizeKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// splitCSVLine splits one CSV line on commas while respecting quoted fields.
func splitCSVLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(cur.String()))
	return fields
}

// escapeCSV quotes a value containing a comma, quote, or newline and doubles
// internal quotes; anything else passes through bare.
func escapeCSV(value string) string {
	if !strings.ContainsAny(value, ",\"\n\r") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
