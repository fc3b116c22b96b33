package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alienxp03/tradedebate/internal/core"
)

func testRun() (*core.Run, []*core.StoredMessage) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	completed := created.Add(45 * time.Second)
	run := &core.Run{
		ID:       "a1b2c3d4e5f6",
		Topic:    "Should we buy shares of ACME?",
		Ticker:   "ACME",
		Backends: core.Backends{Buy: "mock", Sell: "mock", Judge: "mock/mock-v2"},
		Status:   core.StatusCompleted,
		Verdict: &core.Verdict{
			Winner:        core.WinnerSell,
			Justification: core.Justification{Points: []string{"cited the debt load"}},
		},
		CreatedAt:   created,
		CompletedAt: &completed,
	}
	messages := []*core.StoredMessage{
		{ID: "1", RunID: run.ID, Seq: 1, Speaker: core.SpeakerBuy, Stage: core.StageOpening, Content: "Margins are expanding.", CreatedAt: created},
		{ID: "2", RunID: run.ID, Seq: 2, Speaker: core.SpeakerSell, Stage: core.StageRebuttal, Content: "Debt is rising fast.", CreatedAt: created},
		{ID: "3", RunID: run.ID, Seq: 3, Speaker: core.SpeakerJudge, Stage: core.StageVerdict, Content: "WINNER: SELL\n\nREASON:\n- cited the debt load", CreatedAt: completed},
	}
	return run, messages
}

func TestGetExporter(t *testing.T) {
	tests := []struct {
		format  Format
		ext     string
		wantErr bool
	}{
		{FormatMarkdown, "md", false},
		{"md", "md", false},
		{FormatJSON, "json", false},
		{FormatPDF, "pdf", false},
		{"docx", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			exp, err := GetExporter(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exp.FileExtension() != tt.ext {
				t.Errorf("wrong extension: %s", exp.FileExtension())
			}
		})
	}
}

func TestGenerateFilename(t *testing.T) {
	run, _ := testRun()
	got := GenerateFilename(run, "md")
	want := "debate_20260314_Should_we_buy_shares_of_ACME.md"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	run.Topic = strings.Repeat("x", 80)
	if got := GenerateFilename(run, "pdf"); len(got) != len("debate_20260314_.pdf")+50 {
		t.Errorf("topic not truncated: %s", got)
	}
}

func TestMarkdownExport(t *testing.T) {
	run, messages := testRun()

	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(run, messages, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Should we buy shares of ACME?",
		"- **Ticker:** ACME",
		"- **Duration:** 45 seconds",
		"### 1. BUY Debater - Opening",
		"### 2. SELL Debater - Rebuttal",
		"### 3. Judge - Verdict",
		"**Winner: SELL**",
		"- cited the debt load",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownExportFailedRun(t *testing.T) {
	run, _ := testRun()
	run.Verdict = nil
	run.Status = core.StatusFailed
	run.Error = "judge: API request failed"

	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(run, nil, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "*No messages recorded.*") {
		t.Error("expected empty transcript marker")
	}
	if !strings.Contains(out, "judge: API request failed") {
		t.Error("expected error section")
	}
}

func TestJSONExport(t *testing.T) {
	run, messages := testRun()

	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(run, messages, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Run.Verdict == nil || data.Run.Verdict.Winner != core.WinnerSell {
		t.Errorf("verdict not exported: %+v", data.Run.Verdict)
	}
	if len(data.Messages) != 3 || data.Messages[2].Speaker != core.SpeakerJudge {
		t.Errorf("messages not exported: %+v", data.Messages)
	}
}

func TestPDFExport(t *testing.T) {
	run, messages := testRun()

	var buf bytes.Buffer
	if err := (&PDFExporter{}).Export(run, messages, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestStageLabel(t *testing.T) {
	if got := stageLabel(core.StageFinalArgument); got != "Final Argument" {
		t.Errorf("got %s", got)
	}
}

func TestSanitizeText(t *testing.T) {
	got := (&PDFExporter{}).sanitizeText("\u201Cup\u201D \u2014 done\u2026")
	if got != "\"up\" -- done..." {
		t.Errorf("got %q", got)
	}
}
