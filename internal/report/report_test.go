package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

func init() {
	color.NoColor = true
}

func strPtr(s string) *string { return &s }

func sampleAnalysis() *types.Analysis {
	return &types.Analysis{
		DocumentID:     12,
		Summary:        strPtr("Backend engineer with Go experience."),
		Classification: strPtr("CV"),
		Insights: &types.Insights{
			DetectedSkills:         []string{"git", "sql"},
			RecommendedProfessions: []string{"Software Engineer"},
			ImprovementAreas:       []string{"Build evidence of React"},
			Strengths:              []string{"git"},
			ProfessionScores: []types.ProfessionScore{
				{Name: "Software Engineer", Score: 95, Reason: "Matched signals: git, sql"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, " pdf ": FormatPDF} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("sarif")
	assert.Error(t, err)
}

func TestSections_Placeholders(t *testing.T) {
	sections := Sections(&types.Analysis{DocumentID: 1})
	require.Len(t, sections, 4)
	assert.Equal(t, []string{NoProfessions}, sections[0].Items)
	assert.Equal(t, []string{NoStrengths}, sections[1].Items)
	assert.Equal(t, []string{NoSkills}, sections[2].Items)
	assert.Equal(t, []string{NoImprovements}, sections[3].Items)

	assert.Equal(t, NoSummary, Summary(nil))
	assert.Equal(t, NoSummary, Summary(&types.Analysis{Summary: strPtr("  ")}))
	assert.Equal(t, UnknownType, DocumentType(&types.Analysis{}))
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleAnalysis(), FormatText))

	out := buf.String()
	assert.Contains(t, out, "Document #12")
	assert.Contains(t, out, "Best Fit Professions\n  • Software Engineer\n")
	assert.Contains(t, out, "Areas to Improve\n  • Build evidence of React\n")
	assert.Contains(t, out, "95%")
	assert.Contains(t, out, "Backend engineer with Go experience.")
	assert.Contains(t, out, "Document Type: CV")
}

func TestRenderText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &types.Analysis{DocumentID: 3}, FormatText))

	out := buf.String()
	assert.Contains(t, out, NoProfessions)
	assert.Contains(t, out, NoSummary)
	assert.Contains(t, out, "Document Type: Unknown")
	assert.NotContains(t, out, "Profession Match Scores")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleAnalysis(), FormatJSON))

	var decoded struct {
		ExportInfo map[string]interface{} `json:"export_info"`
		Analysis   types.Analysis         `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "json", decoded.ExportInfo["format"])
	assert.Equal(t, int64(12), decoded.Analysis.DocumentID)
	assert.Equal(t, []string{"git", "sql"}, decoded.Analysis.Insights.DetectedSkills)
}

func TestRenderPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleAnalysis(), FormatPDF))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, sampleAnalysis(), Format("csv")))
}

func TestDocuments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Documents(&buf, nil))
	assert.Equal(t, "No documents uploaded yet.\n", buf.String())

	buf.Reset()
	uploaded := types.Timestamp{Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, Documents(&buf, []types.Document{
		{ID: 1, Filename: "cv.pdf", UploadDate: uploaded},
		{ID: 22, Filename: "letter.txt"},
	}))

	out := buf.String()
	assert.Contains(t, out, "FILENAME")
	assert.Contains(t, out, "cv.pdf")
	assert.Contains(t, out, "letter.txt  -")
}

func TestDocument(t *testing.T) {
	text := "abcdefghij"
	var buf bytes.Buffer
	require.NoError(t, Document(&buf, &types.DocumentDetail{
		Document: types.Document{ID: 5, Filename: "cv.txt"},
		Text:     &text,
	}, 4))

	assert.Contains(t, buf.String(), "Document #5: cv.txt")
	assert.Contains(t, buf.String(), "abcd...")
}
