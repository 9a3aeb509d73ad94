package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, exit, err := Parse([]string{"job.hcl"}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "job.hcl", cfg.JobPath)
	assert.Equal(t, 0, cfg.Workers)
	assert.False(t, cfg.Serial)
	assert.Equal(t, -1, cfg.Verbosity)
	assert.Empty(t, cfg.WriteMode)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_JobPathSources(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"long flag", []string{"-job", "a.hcl", "c.hcl"}, "a.hcl"},
		{"short flag", []string{"-j", "b.hcl", "c.hcl"}, "b.hcl"},
		{"positional", []string{"c.hcl"}, "c.hcl"},
		{"long wins over short", []string{"-job", "a.hcl", "-j", "b.hcl"}, "a.hcl"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.JobPath)
		})
	}
}

func TestParse_Overrides(t *testing.T) {
	t.Parallel()

	args := []string{
		"-workers", "6", "-serial", "-verbosity", "2", "-write-mode", "append",
		"-log-format", "json", "-log-level", "DEBUG", "-healthcheck-port", "8081", "job.hcl",
	}

	cfg, _, err := Parse(args, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.True(t, cfg.Serial)
	assert.Equal(t, 2, cfg.Verbosity)
	assert.Equal(t, grid.ModeAppend, cfg.WriteMode)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8081, cfg.HealthcheckPort)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, exit, err := Parse(nil, out)

	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-write-mode")
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
		{"bad log level", []string{"-log-level", "loud", "j.hcl"}, "log-level"},
		{"bad log format", []string{"-log-format", "xml", "j.hcl"}, "log format"},
		{"bad write mode", []string{"-write-mode", "truncate", "j.hcl"}, "truncate"},
		{"bad verbosity", []string{"-verbosity", "9", "j.hcl"}, "verbosity"},
		{"negative workers", []string{"-workers", "-2", "j.hcl"}, "workers"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, exit, err := Parse(tc.args, &bytes.Buffer{})

			assert.False(t, exit)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}
