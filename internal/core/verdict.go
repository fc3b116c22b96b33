package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Winner is the side the judge decided for. Only two values exist; there
// is no draw.
type Winner string

const (
	WinnerBuy  Winner = "buy"
	WinnerSell Winner = "sell"
)

// Valid reports whether w is one of the two allowed winners.
func (w Winner) Valid() bool {
	return w == WinnerBuy || w == WinnerSell
}

// Justification is the judge's reasoning, given either as one block of
// text or as a list of points.
type Justification struct {
	Text   string
	Points []string
}

// String renders the justification. A list renders as "- item" lines.
func (j Justification) String() string {
	if j.Points != nil {
		lines := make([]string, len(j.Points))
		for i, p := range j.Points {
			lines[i] = "- " + p
		}
		return strings.Join(lines, "\n")
	}
	return j.Text
}

// IsZero reports whether no justification was given.
func (j Justification) IsZero() bool {
	return j.Text == "" && len(j.Points) == 0
}

// MarshalJSON writes a string or an array depending on how it was given.
func (j Justification) MarshalJSON() ([]byte, error) {
	if j.Points != nil {
		return json.Marshal(j.Points)
	}
	return json.Marshal(j.Text)
}

// UnmarshalJSON accepts either a string or an array of strings.
func (j *Justification) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var points []string
		if err := json.Unmarshal(data, &points); err != nil {
			return fmt.Errorf("justification list: %w", err)
		}
		j.Text = ""
		j.Points = points
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("justification must be a string or a list of strings: %w", err)
	}
	j.Text = text
	j.Points = nil
	return nil
}

// Verdict is the judge's structured decision.
type Verdict struct {
	Winner        Winner        `json:"winner"`
	Justification Justification `json:"justification"`
}

// VerdictPrefix starts every verdict message. Callers match on
// VerdictPrefix + "BUY" or VerdictPrefix + "SELL".
const VerdictPrefix = "WINNER: "

// FormatVerdict renders the verdict as the judge's transcript entry.
func FormatVerdict(v Verdict) string {
	return fmt.Sprintf("%s%s\n\nREASON:\n%s", VerdictPrefix, strings.ToUpper(string(v.Winner)), v.Justification.String())
}

// DetectWinner inspects the last message of a finished transcript.
// It returns false when there are no messages or no verdict token.
func DetectWinner(messages []Message) (Winner, bool) {
	if len(messages) == 0 {
		return "", false
	}
	content := messages[len(messages)-1].Content
	switch {
	case strings.Contains(content, VerdictPrefix+"BUY"):
		return WinnerBuy, true
	case strings.Contains(content, VerdictPrefix+"SELL"):
		return WinnerSell, true
	default:
		return "", false
	}
}
