package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteMissingSkillDir(t *testing.T) {
	assert.Equal(t, exitUsage, execute(nil))
}

func TestExecuteVersion(t *testing.T) {
	assert.Equal(t, exitOK, execute([]string{"--version"}))
}

func TestExecuteTooManyArgs(t *testing.T) {
	assert.Equal(t, exitFailure, execute([]string{"a", "b"}))
}

func TestExecuteBadSkillDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	assert.Equal(t, exitFailure, execute([]string{"--skill-dir", missing}))
}

func TestExecuteBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "browserd.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("engine:\n  browser_type: netscape\n"), 0o644))

	assert.Equal(t, exitFailure, execute([]string{dir, "--config", cfgFile}))
}

func TestPositionalSkillDir(t *testing.T) {
	opts := &cliOptions{}
	cmd := newRootCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug"}))

	assert.Equal(t, "debug", opts.logLevel)
	assert.Empty(t, opts.skillDir)
}
