package devserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Invoice #42 due in 30 days", "Invoice"},
		{"This agreement is made between", "Contract"},
		{"Quarterly balance sheet", "Financial document"},
		{"My resume", "CV"},
		{"Education and professional experience", "CV"},
		{"A poem about the sea", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.text))
		})
	}
}

func TestAnalyze_EmptyText(t *testing.T) {
	analysis := analyze(4, "   ", nil)

	assert.Equal(t, int64(4), analysis.DocumentID)
	assert.Equal(t, "No readable text detected.", *analysis.Summary)
	assert.Equal(t, "Unknown", *analysis.Classification)
	require.NotNil(t, analysis.Insights)
	assert.Empty(t, analysis.Insights.RecommendedProfessions)
}

func TestAnalyze_CareerInsights(t *testing.T) {
	analysis := analyze(1, "Python developer with SQL, Excel and Tableau reporting experience", nil)
	insights := analysis.Insights

	assert.Equal(t, []string{"Data Analyst", "Software Engineer"}, insights.RecommendedProfessions)
	assert.Equal(t, []string{"excel", "python", "reporting", "sql", "tableau"}, insights.DetectedSkills)
	require.Len(t, insights.ProfessionScores, 2)
	assert.Equal(t, 95, insights.ProfessionScores[0].Score)
	assert.Equal(t, "Matched signals: sql, excel, tableau, reporting", insights.ProfessionScores[0].Reason)
	assert.Equal(t, 72, insights.ProfessionScores[1].Score)
	assert.Equal(t, []string{"Build evidence of Power Bi", "Build evidence of Analytics"}, insights.ImprovementAreas)
	assert.Equal(t, 9, insights.WordCount)
}

func TestAnalyze_NoSignals(t *testing.T) {
	insights := analyze(1, "Hello world", nil).Insights

	assert.Equal(t, []string{generalProfession}, insights.RecommendedProfessions)
	assert.Equal(t, 60, insights.ProfessionScores[0].Score)
	assert.Equal(t, defaultImprovements, insights.ImprovementAreas)
	assert.Empty(t, insights.Strengths)
}

func TestAnalyze_HintsTakePart(t *testing.T) {
	without := analyze(1, "Hello world", nil).Insights
	with := analyze(1, "Hello world", &types.AnalyzeContext{Profession: "Marketing", Skills: "SEO"}).Insights

	assert.NotContains(t, without.DetectedSkills, "seo")
	assert.Contains(t, with.DetectedSkills, "seo")
	assert.Equal(t, "Marketing Specialist", with.RecommendedProfessions[0])
}

func TestAnalyze_SummaryIsBounded(t *testing.T) {
	analysis := analyze(1, strings.Repeat("word ", 500), nil)
	assert.Len(t, strings.Fields(*analysis.Summary), summaryWords)
}

func TestAnswer(t *testing.T) {
	assert.Equal(t, "Contextual answer (baseline): a b", answer("a\n b "))
}
