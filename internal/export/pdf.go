package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/alienxp03/tradedebate/internal/core"
)

// PDFExporter exports runs to PDF format.
type PDFExporter struct{}

type rgb struct{ r, g, b int }

var speakerColors = map[core.Speaker]rgb{
	core.SpeakerBuy:   {200, 255, 200}, // Light green
	core.SpeakerSell:  {255, 210, 210}, // Light red
	core.SpeakerJudge: {220, 220, 240},
}

// Export writes the run as PDF.
func (e *PDFExporter) Export(run *core.Run, messages []*core.StoredMessage, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, e.sanitizeText(run.Topic), "", "C", false)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	id := run.ID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	e.addMetadataRow(pdf, "ID:", id)
	if run.Ticker != "" {
		e.addMetadataRow(pdf, "Ticker:", run.Ticker)
	}
	e.addMetadataRow(pdf, "Status:", string(run.Status))
	e.addMetadataRow(pdf, "Created:", run.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if run.CompletedAt != nil {
		e.addMetadataRow(pdf, "Completed:", run.CompletedAt.Format("January 2, 2006 at 3:04 PM"))
		e.addMetadataRow(pdf, "Duration:", formatDuration(run.CreatedAt, *run.CompletedAt))
	}
	e.addMetadataRow(pdf, "BUY:", run.Backends.Buy)
	e.addMetadataRow(pdf, "SELL:", run.Backends.Sell)
	e.addMetadataRow(pdf, "Judge:", run.Backends.Judge)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate")
	pdf.Ln(8)

	if len(messages) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No messages recorded.")
		pdf.Ln(6)
	}
	for _, msg := range messages {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		c, ok := speakerColors[msg.Speaker]
		if !ok {
			c = rgb{255, 255, 255}
		}
		pdf.SetFillColor(c.r, c.g, c.b)
		pdf.SetFont("Arial", "B", 10)
		header := fmt.Sprintf("%d. %s - %s (%s)", msg.Seq, speakerLabel(msg.Speaker), stageLabel(msg.Stage), msg.CreatedAt.Format("3:04 PM"))
		pdf.CellFormat(0, 7, header, "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, e.sanitizeText(msg.Content), "", "", false)
		pdf.Ln(5)
	}

	if run.Verdict != nil {
		if pdf.GetY() > 230 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Verdict")
		pdf.Ln(8)

		c := speakerColors[core.Speaker(run.Verdict.Winner)]
		pdf.SetFillColor(c.r, c.g, c.b)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Winner: "+winnerLabel(run), "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, e.sanitizeText(run.Verdict.Justification.String()), "", "", false)
	}

	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from tradedebate", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, e.sanitizeText(value))
	pdf.Ln(5)
}

// sanitizeText maps characters outside the core font's Windows-1252 set.
func (e *PDFExporter) sanitizeText(text string) string {
	replacer := strings.NewReplacer(
		"\u2018", "'",
		"\u2019", "'",
		"\u201C", "\"",
		"\u201D", "\"",
		"\u2013", "-",
		"\u2014", "--",
		"\u2026", "...",
		"\u2022", "*",
		"\u00A0", " ",
	)
	return replacer.Replace(text)
}
