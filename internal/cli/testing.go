package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-cards/internal/llm"
)

// CLI provides a clean interface for running CLI commands in tests.
// It manages a temp directory, environment variables and the collaborators
// that would otherwise talk to the outside world.
type CLI struct {
	t    *testing.T
	Dir  string
	Env  map[string]string
	Chat llm.Chat         // Chat answers translation and insight requests.
	Now  func() time.Time // Now is the store clock; nil uses the wall clock.
}

// NewCLI creates a new test CLI with a temp directory acting as user jz.
// Global config lookups are pointed into the temp directory.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	dir := t.TempDir()

	return &CLI{
		t:   t,
		Dir: dir,
		Env: map[string]string{
			"HOME":            dir,
			"XDG_CONFIG_HOME": filepath.Join(dir, ".config"),
			"CARDS_USER":      "jz",
		},
	}
}

func (r *CLI) deps() Deps {
	return Deps{Chat: r.Chat, Now: r.Now, Logger: zap.NewNop()}
}

// Run executes the CLI with the given args and returns stdout, stderr, and exit code.
// Args should not include "cards" or "--cwd" - those are added automatically.
func (r *CLI) Run(args ...string) (string, string, int) {
	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"cards", "--cwd", r.Dir}, args...)
	code := RunWith(r.t.Context(), nil, &outBuf, &errBuf, fullArgs, r.Env, r.deps())

	return outBuf.String(), errBuf.String(), code
}

// RunWithInput executes the CLI with stdin and returns stdout, stderr, and exit code.
// stdin must be a string or io.Reader; panics otherwise.
func (r *CLI) RunWithInput(stdin any, args ...string) (string, string, int) {
	var inReader io.Reader
	switch v := stdin.(type) {
	case string:
		inReader = strings.NewReader(v)
	case io.Reader:
		inReader = v
	default:
		panic(fmt.Sprintf("stdin must be string or io.Reader, got %T", stdin))
	}

	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"cards", "--cwd", r.Dir}, args...)
	code := RunWith(r.t.Context(), inReader, &outBuf, &errBuf, fullArgs, r.Env, r.deps())

	return outBuf.String(), errBuf.String(), code
}

// MustRun executes the CLI and fails the test if the command returns non-zero.
// Returns trimmed stdout on success.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 {
		r.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}

// WriteFile writes content to a file relative to Dir and returns its path.
func (r *CLI) WriteFile(name, content string) string {
	r.t.Helper()

	path := filepath.Join(r.Dir, name)

	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		r.t.Fatalf("failed to write %s: %v", name, err)
	}

	return path
}

// Seed loads the JSONC seed document into the CLI's store.
func (r *CLI) Seed(seed string) {
	r.t.Helper()

	r.WriteFile("seed.jsonc", seed)
	r.MustRun("seed", "seed.jsonc")
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
