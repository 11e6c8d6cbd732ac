//go:build linux

package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processAlive reports whether pid is running. Zombies awaiting a reaper
// count as dead since they no longer execute.
func processAlive(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return false
	}
	return fields[2] != "Z" && fields[2] != "X"
}

func TestExecute_TimeoutKillsDescendants(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	e := NewEngine()
	e.WaitDelay = 500 * time.Millisecond

	cmd := fmt.Sprintf("sleep 60 & echo $! > %s; wait", pidFile)
	res := e.Execute(context.Background(), cmd, 300*time.Millisecond)
	require.False(t, res.Succeeded)
	assert.Contains(t, res.Output, "timed out")

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !processAlive(pid)
	}, 2*time.Second, 20*time.Millisecond, "grandchild %d still running", pid)
}
