package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/tradedebate/internal/core"
)

// MarkdownExporter exports runs to Markdown format.
type MarkdownExporter struct{}

// Export writes the run as Markdown.
func (e *MarkdownExporter) Export(run *core.Run, messages []*core.StoredMessage, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", run.Topic))

	sb.WriteString("## Debate Information\n\n")
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", run.ID))
	if run.Ticker != "" {
		sb.WriteString(fmt.Sprintf("- **Ticker:** %s\n", run.Ticker))
	}
	sb.WriteString(fmt.Sprintf("- **Status:** %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", run.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	if run.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("- **Completed:** %s\n", run.CompletedAt.Format("January 2, 2006 at 3:04 PM")))
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", formatDuration(run.CreatedAt, *run.CompletedAt)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Participants\n\n")
	sb.WriteString(fmt.Sprintf("- **BUY:** %s\n", run.Backends.Buy))
	sb.WriteString(fmt.Sprintf("- **SELL:** %s\n", run.Backends.Sell))
	sb.WriteString(fmt.Sprintf("- **Judge:** %s\n", run.Backends.Judge))
	sb.WriteString("\n")

	sb.WriteString("## Debate\n\n")

	if len(messages) == 0 {
		sb.WriteString("*No messages recorded.*\n\n")
	} else {
		for _, msg := range messages {
			sb.WriteString(fmt.Sprintf("### %d. %s - %s\n\n", msg.Seq, speakerLabel(msg.Speaker), stageLabel(msg.Stage)))
			sb.WriteString(fmt.Sprintf("*%s*\n\n", msg.CreatedAt.Format("3:04 PM")))
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n---\n\n")
		}
	}

	if run.Verdict != nil {
		sb.WriteString("## Verdict\n\n")
		sb.WriteString(fmt.Sprintf("**Winner: %s**\n\n", winnerLabel(run)))
		sb.WriteString(run.Verdict.Justification.String())
		sb.WriteString("\n\n")
	} else if run.Error != "" {
		sb.WriteString("## Error\n\n")
		sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", run.Error))
	}

	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from tradedebate*\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
