package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nebulaglass/nebula-client/pkg/errors"
)

func TestParseOptions(t *testing.T) {
	t.Setenv("NEBULA_PASSWORD", "from-env")

	opts := parseOptions([]string{
		"12",
		"--api-url=http://api.example.com",
		"--verbose",
		"--skills=go, sql",
		"--attempts=5",
		"--timeout=90s",
		"--output-format=json",
		"--analyze-failures=2",
		"what is this?",
	})

	assert.Equal(t, []string{"12", "what is this?"}, opts.Args)
	assert.Equal(t, "http://api.example.com", opts.APIURL)
	assert.True(t, opts.Verbose)
	assert.Equal(t, "go, sql", opts.Skills)
	assert.Equal(t, 5, opts.Attempts)
	assert.Equal(t, 90*time.Second, opts.Timeout)
	assert.Equal(t, "json", opts.OutputFormat)
	assert.Equal(t, 2, opts.AnalyzeFailures)
	assert.Equal(t, "from-env", opts.Password)
}

func TestParseOptions_InvalidNumbersIgnored(t *testing.T) {
	opts := parseOptions([]string{"--attempts=many", "--timeout=soon"})
	assert.Zero(t, opts.Attempts)
	assert.Zero(t, opts.Timeout)
}

func TestDocumentID(t *testing.T) {
	id, err := documentID(&Options{Args: []string{"42"}})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, args := range [][]string{nil, {"abc"}, {"0"}, {"-3"}} {
		_, err := documentID(&Options{Args: args})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "args %v", args)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("NEBULA_API_URL", "")
	t.Setenv("NEBULA_SESSION_BACKEND", "memory")

	cfg, err := loadConfig(&Options{
		APIURL:   " http://api.example.com ",
		Origin:   "https://app.example.com",
		Attempts: 4,
		Timeout:  time.Minute,
		Verbose:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "http://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "https://app.example.com", cfg.API.Origin)
	assert.Equal(t, 4, cfg.API.AnalyzeAttempts)
	assert.Equal(t, time.Minute, cfg.API.AnalyzeTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	t.Setenv("NEBULA_SESSION_BACKEND", "memory")

	_, err := loadConfig(&Options{APIURL: "ftp://nope"})
	assert.Error(t, err)
}
