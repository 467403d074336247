package integration

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = "9.9.9-test"

// buildRelay compiles cmd/relay with a stamped version and copies it to a
// directory outside the repository.
func buildRelay(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary test is unix-focused")
	}

	goMod, err := exec.Command("go", "env", "GOMOD").Output()
	require.NoError(t, err, "go env GOMOD")
	repoRoot := filepath.Dir(strings.TrimSpace(string(goMod)))
	require.NotEqual(t, ".", repoRoot, "go env GOMOD returned empty")

	built := filepath.Join(t.TempDir(), "relay")
	build := exec.Command("go", "build", "-ldflags", "-X main.version="+testVersion, "-o", built, "./cmd/relay")
	build.Dir = repoRoot
	build.Env = os.Environ()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "go build: %s", out)

	data, err := os.ReadFile(built)
	require.NoError(t, err)
	copied := filepath.Join(t.TempDir(), "relay")
	require.NoError(t, os.WriteFile(copied, data, 0o755))
	return copied
}

// runRelay runs the binary with an isolated home so no user config is read.
func runRelay(t *testing.T, binary string, args ...string) ([]byte, error) {
	t.Helper()
	home := t.TempDir()
	command := exec.Command(binary, args...)
	command.Dir = home
	command.Env = append(os.Environ(), "HOME="+home, "XDG_CONFIG_HOME="+filepath.Join(home, ".config"))
	return command.Output()
}

func TestStandaloneBinary(t *testing.T) {
	binary := buildRelay(t)

	t.Run("version", func(t *testing.T) {
		out, err := runRelay(t, binary, "version", "-o", "json")
		require.NoError(t, err)

		var report map[string]any
		require.NoError(t, json.Unmarshal(out, &report))
		assert.Equal(t, "relay", report["binary"])
		assert.Equal(t, testVersion, report["version"])
	})

	t.Run("buckets", func(t *testing.T) {
		out, err := runRelay(t, binary, "buckets", "-o", "json")
		require.NoError(t, err)

		var snapshot struct {
			Global  struct{ Active bool } `json:"global"`
			Buckets []json.RawMessage     `json:"buckets"`
		}
		require.NoError(t, json.Unmarshal(out, &snapshot))
		assert.False(t, snapshot.Global.Active)
		assert.Empty(t, snapshot.Buckets)
	})

	t.Run("request", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/@me", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"42","username":"relay"}`))
		}))
		defer upstream.Close()

		out, err := runRelay(t, binary, "--base-url", upstream.URL, "request", "GET", "/users/@me", "-o", "json")
		require.NoError(t, err)

		var resp struct {
			StatusCode int               `json:"status_code"`
			Data       map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(out, &resp))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "42", resp.Data["id"])
	})

	t.Run("unresolved placeholder", func(t *testing.T) {
		_, err := runRelay(t, binary, "request", "GET", "/users/{user_id}")

		var exitErr *exec.ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, int(foundry.ExitFailure), exitErr.ExitCode())
	})
}
