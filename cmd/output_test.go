//go:build !integration

package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fnErr := fn()
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), fnErr
}

func TestPrintResult_JSON(t *testing.T) {
	outputFormat = "json"
	out, err := captureStdout(t, func() error {
		return printResult(map[string]int{"groups": 3})
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"groups": 3`)
}

func TestPrintResult_DefaultIsJSON(t *testing.T) {
	outputFormat = ""
	out, err := captureStdout(t, func() error {
		return printResult(map[string]int{"groups": 3})
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"groups": 3`)
}

func TestPrintResult_YAML(t *testing.T) {
	outputFormat = "yaml"
	out, err := captureStdout(t, func() error {
		return printResult(map[string]int{"groups": 3})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "groups: 3")
}

func TestPrintResult_UnsupportedFormat(t *testing.T) {
	outputFormat = "xml"
	_, err := captureStdout(t, func() error {
		return printResult(map[string]int{})
	})
	assert.Error(t, err)
}
