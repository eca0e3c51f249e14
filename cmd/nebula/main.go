package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/nebulaglass/nebula-client/internal/api"
	"github.com/nebulaglass/nebula-client/internal/session"
	"github.com/nebulaglass/nebula-client/pkg/config"
	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
	"github.com/nebulaglass/nebula-client/pkg/logging"
	"github.com/nebulaglass/nebula-client/pkg/metrics"
	"github.com/nebulaglass/nebula-client/pkg/tracing"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := parseOptions(os.Args[2:])

	var err error
	command := os.Args[1]
	switch command {
	case "login":
		err = withApp(ctx, opts, runLogin)
	case "register":
		err = withApp(ctx, opts, runRegister)
	case "logout":
		err = withApp(ctx, opts, runLogout)
	case "whoami":
		err = withApp(ctx, opts, runWhoami)
	case "endpoints":
		err = withApp(ctx, opts, runEndpoints)
	case "documents":
		err = withApp(ctx, opts, runDocuments)
	case "document":
		err = withApp(ctx, opts, runDocument)
	case "upload":
		err = withApp(ctx, opts, runUpload)
	case "delete":
		err = withApp(ctx, opts, runDelete)
	case "analyze":
		err = withApp(ctx, opts, runAnalyze)
	case "analysis":
		err = withApp(ctx, opts, runAnalysis)
	case "ask":
		err = withApp(ctx, opts, runAsk)
	case "health":
		err = withApp(ctx, opts, runHealth)
	case "serve-stub":
		err = runServeStub(ctx, opts)
	case "version":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", apperrors.UserMessage(err))
		if opts.Verbose {
			fmt.Fprintf(os.Stderr, "  %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("NebulaGlass CLI - CV analysis client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  nebula login --email=EMAIL [--password=PASSWORD]")
	fmt.Println("  nebula register --email=EMAIL [--password=PASSWORD]")
	fmt.Println("  nebula logout")
	fmt.Println("  nebula whoami")
	fmt.Println("  nebula endpoints [--probe]")
	fmt.Println("  nebula documents")
	fmt.Println("  nebula document ID")
	fmt.Println("  nebula upload FILE")
	fmt.Println("  nebula delete ID")
	fmt.Println("  nebula analyze ID [analysis options]")
	fmt.Println("  nebula analysis ID [--output-format=FORMAT] [--output-file=FILE]")
	fmt.Println("  nebula ask ID QUESTION")
	fmt.Println("  nebula health")
	fmt.Println("  nebula serve-stub [--addr=ADDR] [--analyze-failures=N]")
	fmt.Println("  nebula version")
	fmt.Println("  nebula help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --api-url=URL              Backend address, tried before any guessed address")
	fmt.Println("  --origin=URL               Origin the backend address is guessed from")
	fmt.Println("  --env-file=FILE            Read configuration from FILE instead of .env")
	fmt.Println("  --verbose                  Enable debug logging and detailed errors")
	fmt.Println()
	fmt.Println("Analysis Options:")
	fmt.Println("  --skills=TEXT              Skills to take into account")
	fmt.Println("  --interests=TEXT           Interests to take into account")
	fmt.Println("  --profession=TEXT          Current profession")
	fmt.Println("  --target-job-title=TEXT    Job title to match against")
	fmt.Println("  --target-job-description=TEXT")
	fmt.Println("  --attempts=N               Analysis attempts (default: 3)")
	fmt.Println("  --timeout=DURATION         Per attempt timeout (default: 5m)")
	fmt.Println("  --output-format=FORMAT     Output format: text, json, pdf (default: text)")
	fmt.Println("  --output-file=FILE         Write the report to FILE instead of stdout")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEBULA_API_URL             Backend address override")
	fmt.Println("  NEBULA_ORIGIN              Origin (default: http://localhost:5173)")
	fmt.Println("  NEBULA_BACKEND_PORT        Port of the guessed backend address (default: 8000)")
	fmt.Println("  NEBULA_SESSION_BACKEND     Credential store: file, redis, memory (default: file)")
	fmt.Println("  NEBULA_PASSWORD            Password for login and register")
	fmt.Println("  METRICS_ADDR               Serve Prometheus metrics on this address")
	fmt.Println("  TRACING_ENABLED            Export traces to Jaeger")
}

func printVersion() {
	fmt.Printf("NebulaGlass CLI v%s\n", version)
}

// Options are the parsed command line flags and positional arguments
type Options struct {
	APIURL   string
	Origin   string
	EnvFile  string
	Verbose  bool
	Email    string
	Password string

	Skills               string
	Interests            string
	Profession           string
	TargetJobTitle       string
	TargetJobDescription string
	Attempts             int
	Timeout              time.Duration
	OutputFormat         string
	OutputFile           string

	Probe           bool
	Addr            string
	AnalyzeFailures int

	Args []string
}

func parseOptions(args []string) *Options {
	options := &Options{
		Password: os.Getenv("NEBULA_PASSWORD"),
	}

	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			options.Args = append(options.Args, arg)
			continue
		}

		key, value, _ := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		switch key {
		case "api-url":
			options.APIURL = value
		case "origin":
			options.Origin = value
		case "env-file":
			options.EnvFile = value
		case "verbose":
			options.Verbose = true
		case "email":
			options.Email = value
		case "password":
			options.Password = value
		case "skills":
			options.Skills = value
		case "interests":
			options.Interests = value
		case "profession":
			options.Profession = value
		case "target-job-title":
			options.TargetJobTitle = value
		case "target-job-description":
			options.TargetJobDescription = value
		case "attempts":
			if n, err := strconv.Atoi(value); err == nil {
				options.Attempts = n
			}
		case "timeout":
			if timeout, err := time.ParseDuration(value); err == nil {
				options.Timeout = timeout
			}
		case "output-format":
			options.OutputFormat = value
		case "output-file":
			options.OutputFile = value
		case "probe":
			options.Probe = true
		case "addr":
			options.Addr = value
		case "analyze-failures":
			if n, err := strconv.Atoi(value); err == nil {
				options.AnalyzeFailures = n
			}
		default:
			fmt.Fprintf(os.Stderr, "Warning: ignoring unknown option --%s\n", key)
		}
	}

	return options
}

// loadConfig reads the configuration and applies command line overrides
func loadConfig(opts *Options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.EnvFile != "" {
		cfg, err = config.LoadFile(opts.EnvFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.APIURL != "" {
		cfg.API.BaseURL = strings.TrimSpace(opts.APIURL)
	}
	if opts.Origin != "" {
		cfg.API.Origin = strings.TrimSpace(opts.Origin)
	}
	if opts.Attempts > 0 {
		cfg.API.AnalyzeAttempts = opts.Attempts
	}
	if opts.Timeout > 0 {
		cfg.API.AnalyzeTimeout = opts.Timeout
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// app holds everything a client command needs
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  *tracing.TracingService
	client  *api.Client
	opts    *Options

	closers []func(context.Context) error
}

func withApp(ctx context.Context, opts *Options, run func(context.Context, *app) error) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	return run(ctx, a)
}

func newApp(ctx context.Context, opts *Options) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error()).WithCause(err)
	}

	a := &app{cfg: cfg, opts: opts}

	a.logger, err = logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "nebula-client",
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logging.SetGlobalLogger(a.logger)
	a.closers = append(a.closers, func(context.Context) error { return a.logger.Close() })

	a.metrics = metrics.NewMetrics(&metrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Enabled:   cfg.Metrics.Enabled,
	})
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		a.closers = append(a.closers, serveMetrics(cfg.Metrics.Addr, a.metrics, func(err error) {
			a.logger.WithError(err).Warn("Metrics server stopped")
		}))
	}

	a.tracer, err = tracing.NewTracingService(&tracing.Config{
		ServiceName:    "nebula-client",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		a.logger.WithError(err).Warn("Tracing disabled")
		a.tracer = nil
	} else {
		a.closers = append(a.closers, a.tracer.Shutdown)
	}

	store, closer, err := session.Open(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return closer.Close() })

	a.client = api.NewFromConfig(cfg, session.WithMetrics(store, cfg.Session.Backend, a.metrics), a.logger, a.metrics, a.tracer)
	return a, nil
}

// serveMetrics exposes m on addr/metrics and returns the server's shutdown
func serveMetrics(addr string, m *metrics.Metrics, onError func(error)) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onError(err)
		}
	}()
	return srv.Shutdown
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.logger != nil {
			a.logger.WithError(err).Debug("Failed to release resource")
		}
	}
}
