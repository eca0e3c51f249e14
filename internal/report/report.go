// Package report renders analyses for the terminal, as JSON, or as PDF.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jung-kurt/gofpdf"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

// Format is an output format
type Format string

// Supported formats
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format name, text being the default
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Placeholders shown for empty parts of an analysis
const (
	NoProfessions  = "No strong profession match detected yet."
	NoStrengths    = "No explicit strengths detected from CV text."
	NoSkills       = "No explicit technical skills found in CV."
	NoImprovements = "No major gaps detected from available CV text."
	NoSummary      = "No summary was generated."
	UnknownType    = "Unknown"
)

// Section is a titled list of an analysis
type Section struct {
	Title string
	Items []string
}

// Sections returns the four insight lists in display order, falling back to
// the placeholder line for empty ones
func Sections(a *types.Analysis) []Section {
	var insights types.Insights
	if a != nil && a.Insights != nil {
		insights = *a.Insights
	}

	return []Section{
		{Title: "Best Fit Professions", Items: orPlaceholder(insights.RecommendedProfessions, NoProfessions)},
		{Title: "Current Strengths", Items: orPlaceholder(insights.Strengths, NoStrengths)},
		{Title: "Detected Skills", Items: orPlaceholder(insights.DetectedSkills, NoSkills)},
		{Title: "Areas to Improve", Items: orPlaceholder(insights.ImprovementAreas, NoImprovements)},
	}
}

func orPlaceholder(items []string, placeholder string) []string {
	if len(items) == 0 {
		return []string{placeholder}
	}
	return items
}

// Summary returns the summary or its placeholder
func Summary(a *types.Analysis) string {
	if a == nil || a.Summary == nil || strings.TrimSpace(*a.Summary) == "" {
		return NoSummary
	}
	return *a.Summary
}

// DocumentType returns the classification or its placeholder
func DocumentType(a *types.Analysis) string {
	if a == nil || a.Classification == nil || *a.Classification == "" {
		return UnknownType
	}
	return *a.Classification
}

// Render writes a in the given format
func Render(w io.Writer, a *types.Analysis, format Format) error {
	switch format {
	case FormatText, "":
		return renderText(w, a)
	case FormatJSON:
		return renderJSON(w, a)
	case FormatPDF:
		return renderPDF(w, a)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	titleColor   = color.New(color.FgMagenta, color.Bold)
	bulletColor  = color.New(color.FgGreen)
	noteColor    = color.New(color.FgCyan)
)

func renderText(w io.Writer, a *types.Analysis) error {
	var buf bytes.Buffer

	headingColor.Fprintln(&buf, "AI Career Intelligence System")
	if a != nil {
		fmt.Fprintf(&buf, "Document #%d\n", a.DocumentID)
	}
	buf.WriteString("\n")

	for _, section := range Sections(a) {
		titleColor.Fprintln(&buf, section.Title)
		for _, item := range section.Items {
			bulletColor.Fprint(&buf, "  • ")
			buf.WriteString(item + "\n")
		}
		buf.WriteString("\n")
	}

	if a != nil && a.Insights != nil && len(a.Insights.ProfessionScores) > 0 {
		titleColor.Fprintln(&buf, "Profession Match Scores")
		for _, score := range a.Insights.ProfessionScores {
			fmt.Fprintf(&buf, "  %-28s %3d%%  %s\n", score.Name, score.Score, score.Reason)
		}
		buf.WriteString("\n")
	}

	titleColor.Fprintln(&buf, "Document Summary")
	buf.WriteString(Summary(a) + "\n")
	noteColor.Fprintf(&buf, "Document Type: %s\n", DocumentType(a))

	_, err := w.Write(buf.Bytes())
	return err
}

func renderJSON(w io.Writer, a *types.Analysis) error {
	exportData := map[string]interface{}{
		"export_info": map[string]interface{}{
			"generated_at": time.Now().UTC(),
			"format":       "json",
			"version":      "1.0",
		},
		"analysis": a,
	}

	data, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func renderPDF(w io.Writer, a *types.Analysis) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("NebulaGlass Analysis", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "AI Career Intelligence Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	if a != nil {
		pdf.Cell(40, 6, fmt.Sprintf("Document #%d", a.DocumentID))
		pdf.Ln(6)
	}
	pdf.Cell(40, 6, tr("Document Type: "+DocumentType(a)))
	pdf.Ln(10)

	for _, section := range Sections(a) {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(40, 8, section.Title)
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 10)
		for _, item := range section.Items {
			pdf.MultiCell(0, 5, tr("- "+item), "", "", false)
		}
		pdf.Ln(4)

		if pdf.GetY() > 250 {
			pdf.AddPage()
		}
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 8, "Document Summary")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, tr(Summary(a)), "", "", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return nil
}
