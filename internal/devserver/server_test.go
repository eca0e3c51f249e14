package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nebulaglass/nebula-client/internal/api"
	"github.com/nebulaglass/nebula-client/internal/session"
	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
	"github.com/nebulaglass/nebula-client/pkg/types"
)

const cvText = "Curriculum vitae. Experience with Python, SQL and Git. Built an API in React and Node. Education: BSc."

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, config Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(config, zaptest.NewLogger(t), nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func newTestClient(urls ...string) *api.Client {
	return api.New(api.Options{
		Candidates:      func() []string { return urls },
		Store:           session.NewMemoryStore(),
		RequestTimeout:  5 * time.Second,
		AnalyzeAttempts: 3,
		AnalyzeBackoff:  time.Millisecond,
	})
}

func TestServer_Health(t *testing.T) {
	s := New(Config{}, nil, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"NebulaGlass AI"}`, w.Body.String())
}

func TestServer_Healthz(t *testing.T) {
	s := New(Config{AnalyzeFailures: 1}, nil, nil)

	get := func() map[string]interface{} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	body := get()
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "degraded", checks["analyzer"].(map[string]interface{})["status"])
	assert.Equal(t, "0 users, 0 documents, 0 analyses", checks["store"].(map[string]interface{})["message"])

	require.True(t, s.warmingUp())
	assert.Equal(t, "healthy", get()["status"])
}

func TestServer_UnknownPathIs404(t *testing.T) {
	s := New(Config{}, nil, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, w.Body.String())
}

func TestServer_CORS(t *testing.T) {
	s := New(Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/documents", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RequiresBearer(t *testing.T) {
	s := New(Config{}, nil, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"detail":"Not authenticated"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid authentication"}`, w.Body.String())
}

func TestServer_RejectsTokenFromOtherSecret(t *testing.T) {
	other := New(Config{JWTSecret: "other"}, nil, nil)
	token, err := other.issueToken("ada@example.com")
	require.NoError(t, err)

	s := New(Config{}, nil, nil)
	_, err = s.validateToken(token)
	assert.Error(t, err)
}

func TestServer_Register(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	client := newTestClient(srv.URL)
	ctx := context.Background()

	require.NoError(t, client.Register(ctx, "ada@example.com", "secret"))

	claims, err := client.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Subject)
	assert.False(t, claims.Expired(time.Now()))

	err = newTestClient(srv.URL).Register(ctx, "ada@example.com", "again")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperrors.StatusCode(err))
	assert.Equal(t, "Email already in use", apperrors.UserMessage(err))

	err = newTestClient(srv.URL).Login(ctx, "ada@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", apperrors.UserMessage(err))

	require.NoError(t, newTestClient(srv.URL).Login(ctx, "ada@example.com", "secret"))
}

func TestServer_DocumentLifecycle(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	client := newTestClient(srv.URL)
	ctx := context.Background()
	require.NoError(t, client.Register(ctx, "ada@example.com", "secret"))

	_, err := client.Upload(ctx, "cv.exe", strings.NewReader("MZ"))
	require.Error(t, err)
	assert.Equal(t, "Unsupported file type", apperrors.UserMessage(err))

	doc, err := client.Upload(ctx, "cv.txt", strings.NewReader(cvText))
	require.NoError(t, err)
	assert.Equal(t, "cv.txt", doc.Filename)
	assert.False(t, doc.UploadDate.IsZero())

	docs, err := client.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	full, err := client.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, full.Text)
	assert.Equal(t, cvText, *full.Text)

	_, err = client.GetAnalysis(ctx, doc.ID)
	require.Error(t, err)
	assert.Equal(t, "Analysis not found", apperrors.UserMessage(err))

	analysis, err := client.Analyze(ctx, doc.ID, &types.AnalyzeContext{Skills: "Docker, Scrum"})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, analysis.DocumentID)
	require.NotNil(t, analysis.Classification)
	assert.Equal(t, "CV", *analysis.Classification)
	require.NotNil(t, analysis.Insights)
	assert.Equal(t, "Software Engineer", analysis.Insights.RecommendedProfessions[0])
	assert.Contains(t, analysis.Insights.DetectedSkills, "scrum")

	stored, err := client.GetAnalysis(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.Insights.DetectedSkills, stored.Insights.DetectedSkills)

	answer, err := client.AskQuestion(ctx, doc.ID, "What languages?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer.Answer, "Contextual answer (baseline): Curriculum vitae."))

	require.NoError(t, client.DeleteDocument(ctx, doc.ID))
	docs, err = client.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestServer_DocumentsAreScopedToOwner(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	ctx := context.Background()

	owner := newTestClient(srv.URL)
	require.NoError(t, owner.Register(ctx, "ada@example.com", "secret"))
	doc, err := owner.Upload(ctx, "cv.txt", strings.NewReader(cvText))
	require.NoError(t, err)

	other := newTestClient(srv.URL)
	require.NoError(t, other.Register(ctx, "bob@example.com", "secret"))
	_, err = other.GetDocument(ctx, doc.ID)
	require.Error(t, err)
	assert.Equal(t, "Document not found", apperrors.UserMessage(err))
}

func TestServer_AnalyzeWarmup(t *testing.T) {
	_, srv := newTestServer(t, Config{AnalyzeFailures: 2})
	client := newTestClient(srv.URL)
	ctx := context.Background()
	require.NoError(t, client.Register(ctx, "ada@example.com", "secret"))
	doc, err := client.Upload(ctx, "cv.txt", strings.NewReader(cvText))
	require.NoError(t, err)

	analysis, err := client.Analyze(ctx, doc.ID, nil)
	require.NoError(t, err)
	assert.NotNil(t, analysis.Summary)
}

func TestServer_FailoverFromStaticOrigin(t *testing.T) {
	// a same-origin file server answers 404 for API paths
	static := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(static.Close)
	_, srv := newTestServer(t, Config{})

	status, err := newTestClient(static.URL, srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NebulaGlass AI", status.Service)
}

func TestServer_UploadRawMultipart(t *testing.T) {
	s := New(Config{}, nil, nil)
	token, err := s.issueToken("ada@example.com")
	require.NoError(t, err)
	_, err = s.store.createUser("ada@example.com", nil)
	require.NoError(t, err)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "Resume.PDF")
	require.NoError(t, err)
	_, _ = part.Write([]byte{0xff, 0xfe, 0x00})
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doc types.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Resume.PDF", doc.Filename)

	stored, err := s.store.document(1, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Text)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.NewMetrics(&metrics.Config{Namespace: "test", Enabled: true})
	s := New(Config{}, zaptest.NewLogger(t), m)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/", "200")))
}
