package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	l, err := New(Options{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Info("sync completed")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"sync completed"`)
}

func TestGetZapLogger_BeforeInit(t *testing.T) {
	assert.NotNil(t, GetZapLogger())
}
