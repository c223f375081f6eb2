package publish

import (
	"html"
	"strings"
)

// RenderHTML converts plain article text into the paragraph HTML the
// draft API expects. Blank lines split paragraphs; markdown-style
// headings become <h2>/<h3> blocks.
func RenderHTML(text string) string {
	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		switch {
		case strings.HasPrefix(block, "## "):
			b.WriteString("<h2>")
			b.WriteString(html.EscapeString(strings.TrimPrefix(block, "## ")))
			b.WriteString("</h2>")
		case strings.HasPrefix(block, "### "):
			b.WriteString("<h3>")
			b.WriteString(html.EscapeString(strings.TrimPrefix(block, "### ")))
			b.WriteString("</h3>")
		default:
			b.WriteString("<p>")
			lines := strings.Split(block, "\n")
			for i, line := range lines {
				if i > 0 {
					b.WriteString("<br>")
				}
				b.WriteString(html.EscapeString(strings.TrimSpace(line)))
			}
			b.WriteString("</p>")
		}
	}
	return b.String()
}
