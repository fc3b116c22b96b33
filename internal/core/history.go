package core

import (
	"fmt"
	"strings"
)

// NoDataContext is rendered when every context blob is empty.
const NoDataContext = "No additional data provided."

// FormatHistory renders the transcript one message per line as
// "[STAGE] SPEAKER: content", in chronological order.
func FormatHistory(messages []Message) string {
	var historyBuilder strings.Builder
	for i, m := range messages {
		if i > 0 {
			historyBuilder.WriteString("\n")
		}
		historyBuilder.WriteString(fmt.Sprintf("[%s] %s: %s",
			strings.ToUpper(string(m.Stage)),
			strings.ToUpper(string(m.Speaker)),
			m.Content,
		))
	}
	return historyBuilder.String()
}

// FormatDataContext joins the populated context blobs under labeled
// sections in a fixed order. Empty blobs are skipped.
func FormatDataContext(s *State) string {
	sections := []struct {
		label string
		data  string
	}{
		{"Financial Data", s.FinancialData},
		{"News Data", s.NewsData},
		{"Network Analysis", s.NetworkAnalysis},
		{"Supply Chain Data", s.SupplyChainData},
	}

	var parts []string
	for _, sec := range sections {
		if sec.data == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:\n%s\n", sec.label, sec.data))
	}

	if len(parts) == 0 {
		return NoDataContext
	}
	return strings.Join(parts, "\n")
}

// LastMessageBy scans backward for the most recent message by speaker and
// returns its content, or "" if the speaker has not spoken.
func LastMessageBy(speaker Speaker, messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Speaker == speaker {
			return messages[i].Content
		}
	}
	return ""
}
