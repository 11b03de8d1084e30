//go:build !windows

package client

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartFailureKillsWorker(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := Start(ctx, Options{
		Command:      []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
		SkillDir:     dir,
		Env:          []string{helperEnv + "=deaf"},
		StartTimeout: 5 * time.Second,
	})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "worker did not start")

	data, err := os.ReadFile(filepath.Join(dir, helperPidFile))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH, "worker %d still running", pid)
}
