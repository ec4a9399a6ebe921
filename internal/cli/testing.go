package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/calvinalkan/dbcollection/pkg/fs"
	"github.com/calvinalkan/dbcollection/pkg/registry"
)

// CLI runs dbc in tests against a temp home directory. Env is passed to
// [Run] as is and may be changed between runs.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI creates a new test CLI whose HOME and working directory are a
// fresh temp directory.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	dir := t.TempDir()

	return &CLI{
		t:   t,
		Dir: dir,
		Env: map[string]string{"HOME": dir, "PWD": dir},
	}
}

// Run executes the CLI with the given args and returns stdout, stderr, and exit code.
// Args should not include "dbc" - it is added automatically.
func (c *CLI) Run(args ...string) (string, string, int) {
	return c.RunWithInput("", args...)
}

// RunWithInput executes the CLI with stdin and returns stdout, stderr, and exit code.
// stdin must be a string or io.Reader; panics otherwise.
func (c *CLI) RunWithInput(stdin any, args ...string) (string, string, int) {
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

	fullArgs := append([]string{"dbc"}, args...)
	code := Run(inReader, &outBuf, &errBuf, fullArgs, c.Env, nil)

	return outBuf.String(), errBuf.String(), code
}

// MustRun executes the CLI and fails the test if the command returns non-zero.
// Returns trimmed stdout on success.
func (c *CLI) MustRun(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code != 0 {
		c.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Also fails if stdout is not empty. Returns trimmed stderr.
func (c *CLI) MustFail(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code == 0 {
		c.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}

	if stdout != "" {
		c.t.Fatalf("command %v failed but stdout should be empty\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}

// RegistryPath returns the default registry file of the test home.
func (c *CLI) RegistryPath() string {
	return registry.DefaultPath(c.Dir)
}

// AddDataset registers name under category with the given "task=path"
// cache files and fails the test on error.
func (c *CLI) AddDataset(name, category string, tasks ...string) {
	c.t.Helper()

	args := []string{"add", name, "--category=" + category}
	for _, task := range tasks {
		args = append(args, "--task", task)
	}

	c.MustRun(args...)
}

// Document loads the registry file as written by the last command.
func (c *CLI) Document() *registry.Document {
	c.t.Helper()

	doc, loaded, err := registry.Load(fs.NewReal(), c.RegistryPath(), registry.DefaultInfo(c.Dir))
	if err != nil {
		c.t.Fatalf("load registry: %v", err)
	}

	if !loaded {
		c.t.Fatalf("registry %s does not exist", c.RegistryPath())
	}

	return doc
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
