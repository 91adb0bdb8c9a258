package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MOIRE_DASHBOARD", "")
	t.Setenv("MOIRE_MAX_BACKTRACE_RECORDS", "")
	t.Setenv("MOIRE_LOG_DEBUG", "")

	cfg := Load()
	assert.Equal(t, "", cfg.Dashboard)
	assert.Equal(t, 0, cfg.MaxBacktraceRecords)
	assert.False(t, cfg.Debug)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("MOIRE_DASHBOARD", "127.0.0.1:7777")
	t.Setenv("MOIRE_MAX_BACKTRACE_RECORDS", "500")
	t.Setenv("MOIRE_LOG_DEBUG", "true")

	cfg := Load()
	assert.Equal(t, "127.0.0.1:7777", cfg.Dashboard)
	assert.Equal(t, 500, cfg.MaxBacktraceRecords)
	assert.True(t, cfg.Debug)
}
