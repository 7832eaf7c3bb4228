package main

import (
	"bytes"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/animegan-api/internal/pipeline"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "ANIMEGAN_DIR", "ONNXRUNTIME_LIB", "ANIMEGAN_FILTER", "LOG_LEVEL", "ANIMEGAN_THREADS", "ANIMEGAN_REUSE_SESSIONS"} {
		t.Setenv(k, "")
	}
}

func writeImage(t *testing.T, dir string) string {
	t.Helper()
	img := imaging.New(8, 8, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestRunPrintsOnlyResult(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	in := writeImage(t, dir)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-in", in, "-dir", dir}, &stdout, &stderr)

	// no model in dir, so the run fails at inference
	assert.Equal(t, 1, code)
	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 1, "stdout: %q", stdout.String())
	assert.True(t, strings.HasPrefix(lines[0], pipeline.FailurePrefix), lines[0])
	assert.NotContains(t, stdout.String(), "level=")
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "usage:")
}

func TestRunUnreadableInput(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer
	code := run([]string{"-in", filepath.Join(t.TempDir(), "missing.jpg")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "failed to open")
}

