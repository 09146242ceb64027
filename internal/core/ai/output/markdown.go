// Package output provides formatters for summaries.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
)

// Markdown renders a summary, its follow-up exchanges and, when
// includeSource is set, the text it was built from.
func Markdown(resp *pipeline.Response, history []summarizer.Turn, includeSource bool) string {
	var b strings.Builder

	title := resp.Heading
	if title == "" {
		title = resp.Metadata.Title
	}
	if title == "" {
		title = "Summary"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	// Metadata
	if resp.Metadata.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s\n", resp.Metadata.Source)
	}
	fmt.Fprintf(&b, "**Text from:** %s\n", resp.Provenance)
	if resp.Metadata.DurationSeconds > 0 {
		fmt.Fprintf(&b, "**Duration:** %s\n", formatDuration(time.Duration(resp.Metadata.DurationSeconds*float64(time.Second))))
	}
	if resp.Metadata.Language != "" {
		fmt.Fprintf(&b, "**Language:** %s\n", resp.Metadata.Language)
	}
	if resp.Metadata.Timestamp > 0 {
		at := time.Unix(0, int64(resp.Metadata.Timestamp*float64(time.Second)))
		fmt.Fprintf(&b, "**Summarized:** %s\n", at.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n---\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString(strings.TrimSpace(resp.Summary))
	b.WriteString("\n\n")

	if len(resp.Highlights) > 0 {
		b.WriteString("## Highlights\n\n")
		for _, h := range resp.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("## Follow-up Questions\n\n")
		for _, t := range history {
			switch t.Role {
			case summarizer.RoleUser:
				fmt.Fprintf(&b, "**Q:** %s\n\n", strings.TrimSpace(t.Content))
			case summarizer.RoleAssistant:
				fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(t.Content))
			}
		}
	}

	if resp.Citation != "" {
		fmt.Fprintf(&b, "*%s*\n", resp.Citation)
	}

	if includeSource && resp.OriginalText != "" && resp.Provenance != string(extractor.ProvenanceRaw) {
		b.WriteString("\n## Source Text\n\n")
		b.WriteString(strings.TrimSpace(resp.OriginalText))
		b.WriteString("\n")
	}

	return b.String()
}

// WriteSummary writes the Markdown rendering of resp to outputPath.
func WriteSummary(outputPath string, resp *pipeline.Response, history []summarizer.Turn, includeSource bool) error {
	return os.WriteFile(outputPath, []byte(Markdown(resp, history, includeSource)), 0644)
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
