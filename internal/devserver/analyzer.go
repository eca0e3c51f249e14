package devserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

const (
	analyzedChars = 3000
	summaryWords  = 120
)

type profile struct {
	name   string
	skills []string
}

// profiles are matched against the lower-cased document text in this order
var profiles = []profile{
	{"Software Engineer", []string{"python", "java", "javascript", "react", "node", "api", "git", "c++"}},
	{"Data Analyst", []string{"sql", "excel", "power bi", "tableau", "analytics", "reporting"}},
	{"Data Scientist", []string{"machine learning", "tensorflow", "pytorch", "statistics", "pandas"}},
	{"Electrical Engineer", []string{"electrical", "circuit", "power systems", "autocad", "plc", "renewable"}},
	{"Mechanical Engineer", []string{"mechanical", "cad", "solidworks", "manufacturing", "thermodynamics"}},
	{"Civil Engineer", []string{"civil", "structural", "construction", "survey", "autocad", "infrastructure"}},
	{"Project Manager", []string{"project management", "pmp", "scrum", "stakeholder", "risk management"}},
	{"Marketing Specialist", []string{"marketing", "seo", "campaign", "branding", "social media"}},
	{"Financial Analyst", []string{"finance", "accounting", "budget", "forecast", "valuation"}},
	{"Healthcare Professional", []string{"patient", "clinical", "healthcare", "nursing", "medical"}},
	{"Teacher / Educator", []string{"teaching", "curriculum", "classroom", "education", "assessment"}},
	{"Operations Specialist", []string{"operations", "supply chain", "logistics", "process improvement"}},
}

const generalProfession = "General Professional Role"

var defaultImprovements = []string{
	"Add measurable project outcomes to the CV",
	"Include certifications or proof of practical experience",
	"Highlight role-specific tools and responsibilities",
}

var cvSignals = []string{"education", "experience", "skills", "projects", "objective", "linkedin", "certification"}

// analyze produces a deterministic keyword-based analysis of text. Hints
// take part in skill matching as if they were part of the document.
func analyze(documentID int64, text string, hints *types.AnalyzeContext) *types.Analysis {
	trimmed := text
	if len(trimmed) > analyzedChars {
		trimmed = trimmed[:analyzedChars]
	}

	analysis := &types.Analysis{
		DocumentID: documentID,
		Entities:   []types.Entity{},
		Embeddings: []float64{},
	}

	if strings.TrimSpace(trimmed) == "" {
		analysis.Summary = stringPtr("No readable text detected.")
		analysis.Classification = stringPtr("Unknown")
		analysis.Insights = &types.Insights{
			DetectedSkills:         []string{},
			RecommendedProfessions: []string{},
			ImprovementAreas:       []string{},
			Strengths:              []string{},
		}
		return analysis
	}

	words := strings.Fields(trimmed)
	summary := words
	if len(summary) > summaryWords {
		summary = summary[:summaryWords]
	}
	analysis.Summary = stringPtr(strings.Join(summary, " "))
	analysis.Classification = stringPtr(classify(trimmed))

	content := strings.ToLower(trimmed)
	if !hints.IsEmpty() {
		content += " " + strings.ToLower(strings.Join([]string{
			hints.Skills, hints.Interests, hints.Profession, hints.TargetJobTitle, hints.TargetJobDescription,
		}, " "))
	}
	analysis.Insights = careerInsights(content)
	analysis.Insights.WordCount = len(words)
	return analysis
}

func classify(text string) string {
	content := strings.ToLower(text)
	switch {
	case strings.Contains(content, "invoice"):
		return "Invoice"
	case strings.Contains(content, "agreement"), strings.Contains(content, "contract"):
		return "Contract"
	case strings.Contains(content, "financial"), strings.Contains(content, "balance"):
		return "Financial document"
	case strings.Contains(content, "curriculum"), strings.Contains(content, "resume"), strings.Contains(content, "cv"):
		return "CV"
	}

	signals := 0
	for _, signal := range cvSignals {
		if strings.Contains(content, signal) {
			signals++
		}
	}
	if signals >= 2 {
		return "CV"
	}
	return "Unknown"
}

type scoredProfile struct {
	name    string
	matched []string
}

func careerInsights(content string) *types.Insights {
	detected := make(map[string]struct{})
	var scored []scoredProfile
	for _, p := range profiles {
		var matched []string
		for _, skill := range p.skills {
			if strings.Contains(content, skill) {
				matched = append(matched, skill)
				detected[skill] = struct{}{}
			}
		}
		if len(matched) > 0 {
			scored = append(scored, scoredProfile{name: p.name, matched: matched})
		}
	}

	skills := make([]string, 0, len(detected))
	for skill := range detected {
		skills = append(skills, skill)
	}
	sort.Strings(skills)

	sort.SliceStable(scored, func(i, j int) bool {
		return len(scored[i].matched) > len(scored[j].matched)
	})

	var scores []types.ProfessionScore
	if len(scored) == 0 {
		scores = []types.ProfessionScore{{
			Name:   generalProfession,
			Score:  60,
			Reason: "Insufficient explicit domain signals in CV text.",
		}}
	} else {
		best := len(scored[0].matched)
		if len(scored) > 3 {
			scored = scored[:3]
		}
		for _, sp := range scored {
			pct := 65 + len(sp.matched)*30/best
			pct = max(60, min(98, pct))
			reasons := sp.matched
			if len(reasons) > 4 {
				reasons = reasons[:4]
			}
			scores = append(scores, types.ProfessionScore{
				Name:   sp.name,
				Score:  pct,
				Reason: fmt.Sprintf("Matched signals: %s", strings.Join(reasons, ", ")),
			})
		}
	}

	professions := make([]string, 0, len(scores))
	for _, s := range scores {
		professions = append(professions, s.Name)
	}

	improvements := make([]string, 0, 4)
	for _, p := range profiles {
		if p.name != professions[0] {
			continue
		}
		for _, skill := range p.skills {
			if _, ok := detected[skill]; !ok && len(improvements) < 4 {
				improvements = append(improvements, "Build evidence of "+titleCase(skill))
			}
		}
	}
	if len(improvements) == 0 {
		improvements = append(improvements, defaultImprovements...)
	}

	strengths := skills
	if len(strengths) > 6 {
		strengths = strengths[:6]
	}

	return &types.Insights{
		DetectedSkills:         skills,
		RecommendedProfessions: professions,
		ImprovementAreas:       improvements,
		Strengths:              append([]string{}, strengths...),
		ProfessionScores:       scores,
	}
}

// answer builds the baseline contextual answer from the document text
func answer(text string) string {
	words := strings.Fields(text)
	if len(words) > summaryWords {
		words = words[:summaryWords]
	}
	return "Contextual answer (baseline): " + strings.Join(words, " ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func stringPtr(s string) *string {
	return &s
}
