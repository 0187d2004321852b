package update

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		newer   bool
	}{
		{"1.0.0", "1.0.1", true},
		{"1.0.0", "1.1.0", true},
		{"1.0.0", "2.0.0", true},
		{"1.0.0", "1.0.0", false},
		{"1.1.0", "1.0.9", false},
		{"2.0.0", "1.9.9", false},
		{"v1.0.0", "v1.0.1", true},
		{"1.0.0", "v1.0.1", true},
		{"1.2", "1.2.1", true},
		{"2.0.0", "10.0.0", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_vs_%s", tt.current, tt.latest), func(t *testing.T) {
			assert.Equal(t, tt.newer, CompareVersions(tt.current, tt.latest))
		})
	}
}

func TestGetBinaryName(t *testing.T) {
	name := GetBinaryName()

	assert.True(t, strings.HasPrefix(name, "tunekit_"))
	assert.Contains(t, name, runtime.GOOS)
	assert.Contains(t, name, runtime.GOARCH)

	if runtime.GOOS == "windows" {
		assert.True(t, strings.HasSuffix(name, ".exe"))
	} else {
		assert.False(t, strings.HasSuffix(name, ".exe"))
	}
}

func TestDownloadBinary(t *testing.T) {
	payload := []byte("#!/bin/sh\necho tunekit\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "tunekit.new")
	err := DownloadBinary(server.URL, outPath, false)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.NotZero(t, info.Mode()&0111)
	}
}

func TestDownloadBinaryNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "tunekit.new")
	err := DownloadBinary(server.URL, outPath, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestUpdateBinary(t *testing.T) {
	dir := t.TempDir()
	currentPath := filepath.Join(dir, "tunekit")
	newPath := filepath.Join(dir, "tunekit.new")

	require.NoError(t, os.WriteFile(currentPath, []byte("old"), 0755))
	require.NoError(t, os.WriteFile(newPath, []byte("new"), 0755))

	err := UpdateBinary(currentPath, newPath, false)
	require.NoError(t, err)

	data, err := os.ReadFile(currentPath)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	_, err = os.Stat(newPath)
	assert.True(t, os.IsNotExist(err))
}
