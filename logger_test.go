package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_ConsoleOnly(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := NewLogger(dir, false, &console)
	require.NoError(t, err)
	logger.Infof("📊 测量 %s", "react")
	logger.Debug("console 不输出 debug")
	require.NoError(t, logger.Close())

	assert.Contains(t, console.String(), "📊 测量 react")
	assert.NotContains(t, console.String(), "debug")
	assert.Empty(t, logger.GetLogPath())
	assert.NoDirExists(t, filepath.Join(dir, "logs"))
}

func TestNewLogger_FileSink(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := NewLogger(dir, true, &console)
	require.NoError(t, err)
	logger.Infow("conditions", "network", "cellular4g")
	logger.Debug("只写入文件")
	require.NoError(t, logger.Close())

	path := logger.GetLogPath()
	require.NotEmpty(t, path)
	assert.Equal(t, filepath.Join(dir, "logs"), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "conditions", entry["msg"])
	assert.Equal(t, "cellular4g", entry["network"])
	assert.NotContains(t, console.String(), "只写入文件")
}

func TestLogger_LogConfig(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLogger(t.TempDir(), false, &console)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Browser.Flags = []string{"--no-sandbox"}
	profile, err := ResolveProfile(cfg.Network, cfg.CPU)
	require.NoError(t, err)

	logger.LogConfig(*cfg, profile)
	out := console.String()
	assert.Contains(t, out, "测量配置")
	assert.Contains(t, out, "http://localhost:3000")
	assert.Contains(t, out, "cellular4g")
	assert.Contains(t, out, "4G / 1x CPU")
	assert.Contains(t, out, "--no-sandbox")
}
