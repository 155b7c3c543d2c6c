package drug

import (
	"fmt"
	"strings"
)

// Markdown renders a result as a Markdown card: heading, field table, and a
// confidence line. Used by the history viewer and MCP output.
func Markdown(info *DrugInfo, confidence float64, placeholder bool, localeName string) string {
	var sb strings.Builder

	title := "Unrecognized label"
	if info.HasName() {
		title = info.Name
	}
	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	if placeholder {
		fmt.Fprintf(&sb, "> %s\n\n", strings.TrimSpace(lookupLocale(localeName).sampleNote))
	}

	present := info.Present()
	if len(present) == 0 {
		sb.WriteString(EmptyNarration(localeName))
		sb.WriteString("\n")
	} else {
		sb.WriteString("| Field | Value |\n|---|---|\n")
		for _, fv := range present {
			fmt.Fprintf(&sb, "| %s | %s |\n", Label(fv.Field, localeName), escapeMarkdown(fv.Value))
		}
	}

	if confidence > 0 {
		fmt.Fprintf(&sb, "\nConfidence: **%.0f%%**\n", confidence)
	}
	return sb.String()
}

// escapeMarkdown neutralizes characters that would break a table cell or heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("|", "\\|", "\n", " ", "\r", " ", "*", "\\*", "_", "\\_", "#", "\\#")
	return r.Replace(s)
}
