package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Credentials are the email/password pair sent to the auth endpoints
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and register
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// Document is an uploaded CV as listed by the backend
type Document struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate Timestamp `json:"upload_date"`
}

// DocumentDetail is a document together with its extracted text
type DocumentDetail struct {
	Document
	Text *string `json:"text"`
}

// Entity is a named entity recognised in the document text
type Entity struct {
	Text  string   `json:"text"`
	Type  string   `json:"type"`
	Score *float64 `json:"score,omitempty"`
}

// ProfessionScore is a ranked profession match
type ProfessionScore struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Insights holds the career-oriented part of an analysis
type Insights struct {
	WordCount              int               `json:"word_count"`
	DetectedSkills         []string          `json:"detected_skills"`
	RecommendedProfessions []string          `json:"recommended_professions"`
	ImprovementAreas       []string          `json:"improvement_areas"`
	Strengths              []string          `json:"strengths"`
	ProfessionScores       []ProfessionScore `json:"profession_scores,omitempty"`
}

// Analysis is the result of analysing one document
type Analysis struct {
	DocumentID     int64     `json:"document_id"`
	Summary        *string   `json:"summary"`
	Classification *string   `json:"classification"`
	Entities       []Entity  `json:"entities"`
	Embeddings     []float64 `json:"embeddings"`
	Insights       *Insights `json:"insights"`
}

// AnalyzeContext is the optional body of an analysis request. All fields
// are hints; empty ones are omitted from the payload.
type AnalyzeContext struct {
	Skills               string `json:"skills,omitempty"`
	Interests            string `json:"interests,omitempty"`
	Profession           string `json:"profession,omitempty"`
	TargetJobTitle       string `json:"target_job_title,omitempty"`
	TargetJobDescription string `json:"target_job_description,omitempty"`
}

// IsEmpty reports whether no hint is set
func (c *AnalyzeContext) IsEmpty() bool {
	return c == nil || (c.Skills == "" && c.Interests == "" &&
		c.Profession == "" && c.TargetJobTitle == "" && c.TargetJobDescription == "")
}

// Question is the body of an ask-question request
type Question struct {
	Question string `json:"question"`
}

// Answer is returned by the ask-question endpoint
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// HealthStatus is returned by the backend root endpoint
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Timestamp accepts RFC 3339 values as well as the zone-less ISO form the
// backend emits for naive datetimes, which is read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
