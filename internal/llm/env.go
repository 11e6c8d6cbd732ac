package llm

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

var (
	cleanTmpOnce sync.Once
	cleanTmpDir  string
)

// CleanTmpDir returns a dedicated temp directory for Claude CLI runs. The
// CLI crashes on stray editor socket files when --settings is passed, so it
// must not share the user's TMPDIR.
func CleanTmpDir() string {
	cleanTmpOnce.Do(func() {
		cleanTmpDir = filepath.Join(os.TempDir(), "shellagent-claude")
		_ = os.MkdirAll(cleanTmpDir, 0755)
	})
	return cleanTmpDir
}

// SetCleanEnv copies the environment into cmd with TMPDIR replaced.
func SetCleanEnv(cmd *exec.Cmd) {
	cmd.Env = os.Environ()

	dir := CleanTmpDir()
	for i, env := range cmd.Env {
		if strings.HasPrefix(env, "TMPDIR=") {
			cmd.Env[i] = "TMPDIR=" + dir
			return
		}
	}
	cmd.Env = append(cmd.Env, "TMPDIR="+dir)
}
