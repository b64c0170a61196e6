// Package document wraps generated HTML fragments in the fixed summary page.
package document

import (
	"sort"
	"strings"

	"github.com/sin-text/backend/internal/models"
)

// Title is used for both the <title> element and the page heading.
const Title = "Sintesi del Capitolato di Gara"

const stylesheet = `        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 100%; margin: 0 auto; padding: 20px; }
        h1, h2, h3 { color: #2c3e50; margin-top: 20px; margin-bottom: 10px; }
        table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; font-weight: bold; }
        table tr:nth-child(even) { background-color: #f9f9f9; }
        table tr:hover { background-color: #f5f5f5; }`

// Wrap places body inside the page shell. Body is inserted verbatim.
func Wrap(body string) string {
	var b strings.Builder
	b.Grow(len(body) + 1024)
	b.WriteString("<!DOCTYPE html>\n<html lang=\"it\">\n<head>\n")
	b.WriteString("    <meta charset=\"UTF-8\">\n")
	b.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	b.WriteString("    <title>" + Title + "</title>\n")
	b.WriteString("    <style>\n" + stylesheet + "\n    </style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString("    <h1>" + Title + "</h1>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// Body concatenates stage texts by ordinal, regardless of slice order.
func Body(results []models.StageResult) string {
	ordered := make([]models.StageResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Ordinal < ordered[j].Ordinal
	})

	parts := make([]string, len(ordered))
	for i, r := range ordered {
		parts[i] = r.Text
	}
	return strings.Join(parts, "\n")
}

// Assemble builds the complete page from stage results.
func Assemble(results []models.StageResult) string {
	return Wrap(Body(results))
}
