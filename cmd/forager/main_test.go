package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallLayout = `
environment:
  width: 4
  height: 3
  obstacles:
    - {x: 1, y: 1, width: 2, height: 1}
  food:
    - {x: 3, y: 2}
  start: {x: 0, y: 0}
`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forager.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallLayout), 0o600))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", path, "--log-level", "error"}, args...))
	require.NoError(t, rootCmd.Execute(), errOut.String())
	return out.String()
}

func TestLayoutCommand(t *testing.T) {
	out := execute(t, "layout", "--color=false")
	assert.Contains(t, out, "4x3 grid, 2 blocked, food at [(3,2)], start (0,0)")
	assert.Contains(t, out, "@...\n.##.\n...F\n")
}

func TestRunCommand(t *testing.T) {
	chart := filepath.Join(t.TempDir(), "reward.html")
	out := execute(t, "run", "--ticks", "200", "--color=false", "--seed", "5", "--chart", chart)
	assert.Contains(t, out, ": 200 ticks,")

	html, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(html), "cumulative reward")
}
