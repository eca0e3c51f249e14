package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/nebulaglass/nebula-client/internal/devserver"
	"github.com/nebulaglass/nebula-client/internal/report"
	"github.com/nebulaglass/nebula-client/internal/session"
	"github.com/nebulaglass/nebula-client/pkg/config"
	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
	"github.com/nebulaglass/nebula-client/pkg/health"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
	"github.com/nebulaglass/nebula-client/pkg/types"
)

// documentTextPreview is how much of a document's text `document` prints
const documentTextPreview = 1200

func runLogin(ctx context.Context, a *app) error {
	email, password, err := credentials(a.opts)
	if err != nil {
		return err
	}
	if err := a.client.Login(ctx, email, password); err != nil {
		return err
	}
	color.Green("Logged in as %s", email)
	return nil
}

func runRegister(ctx context.Context, a *app) error {
	email, password, err := credentials(a.opts)
	if err != nil {
		return err
	}
	if err := a.client.Register(ctx, email, password); err != nil {
		return err
	}
	color.Green("Registered and logged in as %s", email)
	return nil
}

// credentials takes the email from --email and the password from
// --password, NEBULA_PASSWORD or a line on stdin
func credentials(opts *Options) (string, string, error) {
	email := strings.TrimSpace(opts.Email)
	if email == "" && len(opts.Args) > 0 {
		email = opts.Args[0]
	}
	if email == "" {
		return "", "", apperrors.NewValidationError("An email is required (--email=EMAIL)")
	}

	password := opts.Password
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", "", err
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", "", apperrors.NewValidationError("A password is required")
	}
	return email, password, nil
}

func runLogout(ctx context.Context, a *app) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func runWhoami(ctx context.Context, a *app) error {
	claims, err := a.client.Whoami(ctx)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeAuthentication) {
			return err
		}
		// opaque tokens carry no claims
		token, tokenErr := a.client.Token(ctx)
		if tokenErr != nil {
			return tokenErr
		}
		fmt.Printf("Logged in (token %s)\n", session.Mask(token))
		return nil
	}

	who := claims.Email
	if who == "" {
		who = claims.Subject
	}
	fmt.Printf("Logged in as %s\n", who)
	if !claims.ExpiresAt.IsZero() {
		state := "expires"
		if claims.Expired(time.Now()) {
			state = "expired"
		}
		fmt.Printf("Token %s %s\n", state, claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func runEndpoints(ctx context.Context, a *app) error {
	candidates := a.client.Endpoints()
	if !a.opts.Probe {
		for i, candidate := range candidates {
			fmt.Printf("%d. %s\n", i+1, candidate)
		}
		return nil
	}

	probe := probeEndpoints(ctx, a, candidates)
	for i, check := range probe.Ordered() {
		state := color.GreenString(string(check.Status))
		switch check.Status {
		case health.StatusDegraded:
			state = color.YellowString(string(check.Status))
		case health.StatusUnhealthy:
			state = color.RedString(string(check.Status))
		}

		note := check.Message
		if check.Error != "" {
			note = check.Error
		}
		fmt.Printf("%d. %-32s %-10s %s\n", i+1, check.Name, state, note)
	}
	return nil
}

// probeEndpoints GETs the root of every candidate directly, bypassing failover
func probeEndpoints(ctx context.Context, a *app, candidates []string) *health.Report {
	service := health.NewService(a.logger, &health.Config{Timeout: a.cfg.API.RequestTimeout})
	client := &http.Client{Timeout: a.cfg.API.RequestTimeout}
	for _, candidate := range candidates {
		service.RegisterChecker(candidate, health.NewHTTPChecker(candidate+"/", candidate, client))
	}
	return service.CheckHealth(ctx)
}

func runDocuments(ctx context.Context, a *app) error {
	docs, err := a.client.ListDocuments(ctx)
	if err != nil {
		return err
	}
	return report.Documents(os.Stdout, docs)
}

func runDocument(ctx context.Context, a *app) error {
	id, err := documentID(a.opts)
	if err != nil {
		return err
	}
	doc, err := a.client.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	return report.Document(os.Stdout, doc, documentTextPreview)
}

func runUpload(ctx context.Context, a *app) error {
	if len(a.opts.Args) == 0 {
		return apperrors.NewValidationError("A file to upload is required")
	}

	for _, path := range a.opts.Args {
		doc, err := a.client.UploadFile(ctx, path)
		if err != nil {
			return err
		}
		color.Green("Uploaded %s as document #%d", doc.Filename, doc.ID)
	}
	return nil
}

func runDelete(ctx context.Context, a *app) error {
	id, err := documentID(a.opts)
	if err != nil {
		return err
	}
	if err := a.client.DeleteDocument(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted document #%d\n", id)
	return nil
}

func runAnalyze(ctx context.Context, a *app) error {
	id, err := documentID(a.opts)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(a.opts.OutputFormat)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	hints := &types.AnalyzeContext{
		Skills:               a.opts.Skills,
		Interests:            a.opts.Interests,
		Profession:           a.opts.Profession,
		TargetJobTitle:       a.opts.TargetJobTitle,
		TargetJobDescription: a.opts.TargetJobDescription,
	}

	fmt.Fprintf(os.Stderr, "Analysing document #%d, this can take a few minutes...\n", id)
	analysis, err := a.client.Analyze(ctx, id, hints)
	if err != nil {
		return err
	}
	return writeReport(analysis, format, a.opts.OutputFile)
}

func runAnalysis(ctx context.Context, a *app) error {
	id, err := documentID(a.opts)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(a.opts.OutputFormat)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	analysis, err := a.client.GetAnalysis(ctx, id)
	if err != nil {
		return err
	}
	return writeReport(analysis, format, a.opts.OutputFile)
}

func writeReport(analysis *types.Analysis, format report.Format, outputFile string) error {
	if outputFile == "" {
		if format == report.FormatPDF {
			outputFile = fmt.Sprintf("nebula-analysis-%d.pdf", analysis.DocumentID)
		} else {
			return report.Render(os.Stdout, analysis, format)
		}
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputFile, err)
	}
	if err := report.Render(f, analysis, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFile)
	return nil
}

func runAsk(ctx context.Context, a *app) error {
	id, err := documentID(a.opts)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(a.opts.Args[1:], " "))
	if question == "" {
		return apperrors.NewValidationError("A question is required")
	}

	answer, err := a.client.AskQuestion(ctx, id, question)
	if err != nil {
		return err
	}
	fmt.Println(answer.Answer)
	return nil
}

func runHealth(ctx context.Context, a *app) error {
	status, err := a.client.Health(ctx)
	if err != nil {
		return err
	}
	color.Green("%s: %s", status.Service, status.Status)
	return nil
}

func documentID(opts *Options) (int64, error) {
	if len(opts.Args) == 0 {
		return 0, apperrors.NewValidationError("A document id is required")
	}
	id, err := strconv.ParseInt(opts.Args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("Invalid document id: %s", opts.Args[0]))
	}
	return id, nil
}

// runServeStub runs the stub backend until interrupted
func runServeStub(ctx context.Context, opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return apperrors.NewValidationError(err.Error()).WithCause(err)
	}

	logger, err := newZapLogger(cfg, opts.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m := metrics.NewMetrics(&metrics.Config{Namespace: cfg.Metrics.Namespace, Enabled: cfg.Metrics.Enabled})

	stubConfig := devserver.Config{
		Addr:            cfg.Stub.Addr,
		JWTSecret:       cfg.Stub.JWTSecret,
		TokenTTL:        cfg.Stub.TokenTTL,
		AnalyzeFailures: opts.AnalyzeFailures,
	}
	if opts.Addr != "" {
		stubConfig.Addr = opts.Addr
	}

	server := devserver.New(stubConfig, logger, m)
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, m, func(err error) {
			logger.Warn("Metrics server stopped", zap.Error(err))
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}
	return server.ListenAndServe(ctx)
}

func newZapLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	if verbose || cfg.Logging.Level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
