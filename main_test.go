package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// answerModule is a hand-assembled binary module exporting
// entry() -> i32 returning 42: one type, one function, one export,
// one body of i32.const 42 / end.
var answerModule = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, // \0asm, version 1
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7F, // type: () -> i32
	0x03, 0x02, 0x01, 0x00, // function: one, type 0
	0x07, 0x09, 0x01, 0x05, 'e', 'n', 't', 'r', 'y', 0x00, 0x00, // export "entry" func 0
	0x0A, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2A, 0x0B, // code: i32.const 42, end
}

func writeTestModule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wasm")
	require.NoError(t, os.WriteFile(path, answerModule, 0o644))
	return path
}

func TestDoMainRunsEntry(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doMain([]string{writeTestModule(t)}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "entry ->")
}

func TestDoMainRunCount(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doMain([]string{"-runs", "3", writeTestModule(t)}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, 3, bytes.Count(stdout.Bytes(), []byte("entry ->")))
}

func TestDoMainMissingModuleFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doMain([]string{filepath.Join(t.TempDir(), "missing.wasm")}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestDoMainMissingEntryFunction(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doMain([]string{"-entry", "nope", writeTestModule(t)}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestDoMainUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doMain(nil, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "usage:")
}
