//go:build integration

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var (
	buildOnce   sync.Once
	workerPath  string
	errBuilding error
)

// echoWorker builds examples/echo_worker once per test run and returns the
// binary's path.
func echoWorker(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("Test requires Unix process semantics")
	}

	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "workerlink-integration-")
		if err != nil {
			errBuilding = err

			return
		}

		workerPath = filepath.Join(dir, "echo_worker")

		//nolint:gosec // G204: fixed arguments
		cmd := exec.Command("go", "build", "-o", workerPath, "../examples/echo_worker")
		if out, err := cmd.CombinedOutput(); err != nil {
			errBuilding = fmt.Errorf("build echo_worker: %w\n%s", err, out)
		}
	})

	if errBuilding != nil {
		t.Skipf("echo_worker unavailable: %v", errBuilding)
	}

	return workerPath
}
