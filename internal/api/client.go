// Package api is the typed client for the NebulaGlass backend. Every call
// goes through the transport pipeline; Analyze additionally retries whole
// attempts with a linear backoff.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/nebulaglass/nebula-client/internal/endpoint"
	"github.com/nebulaglass/nebula-client/internal/session"
	"github.com/nebulaglass/nebula-client/internal/transport"
	"github.com/nebulaglass/nebula-client/pkg/config"
	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
	"github.com/nebulaglass/nebula-client/pkg/logging"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
	"github.com/nebulaglass/nebula-client/pkg/resilience"
	"github.com/nebulaglass/nebula-client/pkg/tracing"
	"github.com/nebulaglass/nebula-client/pkg/types"
)

// Defaults used when Options leaves a value unset
const (
	DefaultRequestTimeout  = 30 * time.Second
	DefaultAnalyzeTimeout  = 5 * time.Minute
	DefaultAnalyzeAttempts = 3
	DefaultAnalyzeBackoff  = 2 * time.Second
)

// Options configures a Client
type Options struct {
	// Candidates yields the backend addresses, called once per request
	Candidates func() []string
	// Store holds the credential; an in-memory store when nil
	Store session.Store
	// SessionBackend names the store in auth logs
	SessionBackend string
	HTTPClient     *http.Client

	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Tracer  *tracing.TracingService

	RequestTimeout  time.Duration
	AnalyzeTimeout  time.Duration
	AnalyzeAttempts int
	AnalyzeBackoff  time.Duration
	UserAgent       string

	// OnAnalyzeRetry is called after a failed analysis attempt, before the
	// wait for the next one
	OnAnalyzeRetry func(attempt int, err error, delay time.Duration)
}

// Client talks to the backend
type Client struct {
	doer       transport.Doer
	candidates func() []string
	store      session.Store
	backend    string
	logger     *logging.Logger
	metrics    *metrics.Metrics

	requestTimeout  time.Duration
	analyzeTimeout  time.Duration
	analyzeAttempts int
	analyzeBackoff  time.Duration
	userAgent       string
	onAnalyzeRetry  func(attempt int, err error, delay time.Duration)
}

// New creates a client from opts
func New(opts Options) *Client {
	if opts.Store == nil {
		opts.Store = session.NewMemoryStore()
		if opts.SessionBackend == "" {
			opts.SessionBackend = session.BackendMemory
		}
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger()
	}
	if opts.Candidates == nil {
		opts.Candidates = func() []string { return nil }
	}

	c := &Client{
		candidates:      opts.Candidates,
		store:           opts.Store,
		backend:         opts.SessionBackend,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		requestTimeout:  positiveOr(opts.RequestTimeout, DefaultRequestTimeout),
		analyzeTimeout:  positiveOr(opts.AnalyzeTimeout, DefaultAnalyzeTimeout),
		analyzeAttempts: opts.AnalyzeAttempts,
		analyzeBackoff:  positiveOr(opts.AnalyzeBackoff, DefaultAnalyzeBackoff),
		userAgent:       opts.UserAgent,
		onAnalyzeRetry:  opts.OnAnalyzeRetry,
	}
	if c.analyzeAttempts <= 0 {
		c.analyzeAttempts = DefaultAnalyzeAttempts
	}

	c.doer = transport.NewPipeline(transport.Options{
		Candidates:      opts.Candidates,
		Client:          opts.HTTPClient,
		Credentials:     opts.Store,
		Instrumentation: transport.NewInstrumentation(opts.Logger, opts.Metrics, opts.Tracer),
	})
	return c
}

// NewFromConfig creates a client for the loaded configuration
func NewFromConfig(cfg *config.Config, store session.Store, logger *logging.Logger, m *metrics.Metrics, tracer *tracing.TracingService) *Client {
	resolver := endpoint.Config{
		Override:    cfg.API.BaseURL,
		Origin:      cfg.API.Origin,
		BackendPort: cfg.API.BackendPort,
	}

	return New(Options{
		Candidates:      resolver.Candidates,
		Store:           store,
		SessionBackend:  cfg.Session.Backend,
		Logger:          logger,
		Metrics:         m,
		Tracer:          tracer,
		RequestTimeout:  cfg.API.RequestTimeout,
		AnalyzeTimeout:  cfg.API.AnalyzeTimeout,
		AnalyzeAttempts: cfg.API.AnalyzeAttempts,
		AnalyzeBackoff:  cfg.API.AnalyzeBackoff,
		UserAgent:       cfg.API.UserAgent,
	})
}

func positiveOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

// Endpoints returns the candidate addresses the next request would try
func (c *Client) Endpoints() []string {
	return c.candidates()
}

// Login exchanges credentials for an access token and stores it
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "login", email, password)
}

// Register creates an account and stores the returned access token
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "register", email, password)
}

func (c *Client) authenticate(ctx context.Context, event, email, password string) error {
	var token oauth2.Token
	err := c.sendJSON(ctx, http.MethodPost, "/auth/"+event, types.Credentials{Email: email, Password: password}, &token)
	if err == nil && !token.Valid() {
		err = apperrors.NewExternalError("auth", "response did not contain an access token")
	}
	if err == nil {
		err = c.store.Set(ctx, token.AccessToken)
	}

	fields := logrus.Fields{}
	if err != nil {
		fields["error"] = err.Error()
	} else {
		fields["token"] = session.Mask(token.AccessToken)
	}
	c.logger.LogAuthEvent(ctx, event, email, c.backend, err == nil, fields)
	return err
}

// Logout forgets the stored credential
func (c *Client) Logout(ctx context.Context) error {
	err := c.store.Clear(ctx)
	c.logger.LogAuthEvent(ctx, "logout", "", c.backend, err == nil, nil)
	return err
}

// Token returns the stored credential, empty when logged out
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.store.Get(ctx)
}

// Whoami decodes the display claims of the stored credential
func (c *Client) Whoami(ctx context.Context) (*session.Claims, error) {
	token, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperrors.NewAuthenticationError("Not logged in")
	}
	return session.ParseClaims(token)
}

// ListDocuments returns the caller's documents, newest first
func (c *Client) ListDocuments(ctx context.Context) ([]types.Document, error) {
	var docs []types.Document
	if err := c.sendJSON(ctx, http.MethodGet, "/documents", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument returns one document with its extracted text
func (c *Client) GetDocument(ctx context.Context, id int64) (*types.DocumentDetail, error) {
	var doc types.DocumentDetail
	if err := c.sendJSON(ctx, http.MethodGet, documentPath("/documents", id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Upload sends content as the multipart field "file"
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (*types.Document, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := transport.NewRequest(http.MethodPost, "/upload", buf.Bytes())
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var doc types.Document
	if err := c.send(ctx, req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UploadFile uploads the file at path
func (c *Client) UploadFile(ctx context.Context, path string) (*types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Cannot open %s", path)).WithCause(err)
	}
	defer f.Close()
	return c.Upload(ctx, filepath.Base(path), f)
}

// DeleteDocument removes a document
func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodDelete, documentPath("/documents", id), nil, nil)
}

// Analyze runs the analysis of a document. The call has the long analysis
// timeout per attempt and is retried as a whole, waiting 1×, 2×, ... the
// backoff between attempts. hints may be nil.
func (c *Client) Analyze(ctx context.Context, id int64, hints *types.AnalyzeContext) (*types.Analysis, error) {
	var body []byte
	if !hints.IsEmpty() {
		var err error
		if body, err = json.Marshal(hints); err != nil {
			return nil, err
		}
	}

	retryConfig := resilience.AnalysisRetryConfig(c.analyzeAttempts, c.analyzeBackoff)
	retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.metrics.RecordAnalysisRetry()
		c.logger.WithContext(ctx).WithFields(logrus.Fields{
			"document_id": id,
			"attempt":     attempt,
			"delay":       delay.String(),
		}).Warn("Analysis attempt failed, retrying")
		if c.onAnalyzeRetry != nil {
			c.onAnalyzeRetry(attempt, err, delay)
		}
	}

	path := documentPath("/analyze", id)
	analysis, err := resilience.ExecuteWithResult(ctx, resilience.NewRetrier(retryConfig), func(ctx context.Context) (*types.Analysis, error) {
		req := transport.NewRequest(http.MethodPost, path, body)
		req.Timeout = c.analyzeTimeout
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		var analysis types.Analysis
		if err := c.send(ctx, req, &analysis); err != nil {
			c.metrics.RecordAnalysisAttempt("failure")
			return nil, err
		}
		c.metrics.RecordAnalysisAttempt("success")
		return &analysis, nil
	})
	if err != nil {
		c.logger.LogError(ctx, err, "Analysis failed", logrus.Fields{"document_id": id})
		return nil, err
	}
	return analysis, nil
}

// GetAnalysis returns the stored analysis of a document
func (c *Client) GetAnalysis(ctx context.Context, id int64) (*types.Analysis, error) {
	var analysis types.Analysis
	if err := c.sendJSON(ctx, http.MethodGet, documentPath("/analysis", id), nil, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// AskQuestion asks a free-form question about a document
func (c *Client) AskQuestion(ctx context.Context, id int64, question string) (*types.Answer, error) {
	var answer types.Answer
	if err := c.sendJSON(ctx, http.MethodPost, documentPath("/ask-question", id), types.Question{Question: question}, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Health checks the backend root endpoint
func (c *Client) Health(ctx context.Context) (*types.HealthStatus, error) {
	var status types.HealthStatus
	if err := c.sendJSON(ctx, http.MethodGet, "/", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func documentPath(prefix string, id int64) string {
	return fmt.Sprintf("%s/%d", prefix, id)
}

// sendJSON encodes in (when not nil) as the body and decodes the reply into
// out (when not nil)
func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	req := transport.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(ctx, req, out)
}

// send runs req through the pipeline. Statuses outside 2xx become an
// *errors.AppError carrying the backend's detail.
func (c *Client) send(ctx context.Context, req *transport.Request, out interface{}) error {
	if req.Timeout == 0 {
		req.Timeout = c.requestTimeout
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	requestID := logging.NewRequestID()
	req.Header.Set(transport.HeaderRequestID, requestID)

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.RequestID == "" {
			appErr.WithRequestID(requestID)
		}
		return err
	}

	if !resp.OK() {
		return apperrors.FromResponse(resp.StatusCode, resp.Body).
			WithDetail("base_url", resp.BaseURL).
			WithDetail("attempts", fmt.Sprint(resp.Attempts)).
			WithRequestID(requestID)
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apperrors.NewExternalError("backend", "malformed response").
			WithDetail("base_url", resp.BaseURL).
			WithRequestID(requestID).
			WithCause(err)
	}
	return nil
}
