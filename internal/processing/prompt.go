package processing

import (
	"fmt"
	"strings"
)

const basePrompt = `You are a document data extraction assistant. Extract all meaningful information from the provided document and return it in exactly three fenced code blocks, in this order:

1. A ` + "```json" + ` block containing the extracted fields as a single JSON object. Use descriptive snake_case keys. If the document contains a list of similar records, put them in an "items" array of objects.
2. A ` + "```markdown" + ` block containing a clean, readable rendering of the full document content.
3. A ` + "```csv" + ` block containing the tabular data from the document.`

// systemPrompt builds the fixed extraction instruction. The CSV guidance
// depends on whether an external database is targeted and whether its
// column headers were resolved.
func systemPrompt(databaseID string, headers []string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")

	switch {
	case len(headers) > 0:
		b.WriteString("For the CSV block, the first row MUST be exactly these column headers, in this order: ")
		b.WriteString(strings.Join(headers, ", "))
		b.WriteString(". Do not add, rename, or reorder columns. If the document has no value for a column, leave the cell blank.")
	case databaseID != "":
		b.WriteString("For the CSV block, this data will be imported into an external database. Invent clear, descriptive column headers suited for import as the first row.")
	default:
		b.WriteString("For the CSV block, produce a well-formed CSV with a sensible header row.")
	}

	b.WriteString("\nAlways return all three blocks, even if a block is nearly empty.")
	return b.String()
}

func userPrompt(fileName string) string {
	return fmt.Sprintf("Extract the data from the attached document %q.", fileName)
}
