package corpus

import (
	"fmt"
	"strings"
)

// Format renders the corpus as prompt text, one review per line with its id
// and source visible so the model can cite them.
func Format(items []Item) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- id=%s source=%s", it.ID, it.Source)
		if it.Stars != nil {
			fmt.Fprintf(&b, " stars=%d", *it.Stars)
		}
		b.WriteString(": ")
		b.WriteString(it.Text)
		b.WriteString("\n")
	}
	return b.String()
}
