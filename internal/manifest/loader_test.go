package manifest

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `{
  "formatVersion": 1,
  "game": "minecraft",
  "versionId": "1.2.0",
  "name": "Sample Pack",
  "files": [
    {
      "path": "mods/sodium.jar",
      "hashes": {"sha1": "aa", "sha512": "bb"},
      "env": {"client": "required", "server": "unsupported"},
      "downloads": ["https://cdn.example.com/sodium.jar", "https://mirror.example.com/sodium.jar"],
      "fileSize": 1024
    },
    {
      "path": "mods/lithium.jar",
      "hashes": {"sha1": "cc", "sha512": "dd"},
      "env": {"client": "required", "server": "required"},
      "downloads": ["https://cdn.example.com/lithium.jar"],
      "fileSize": 2048
    }
  ],
  "dependencies": {"minecraft": "1.20.1", "forge": "47.2.0"}
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleIndex))
	require.NoError(t, err)

	assert.Equal(t, 1, m.FormatVersion)
	assert.Equal(t, "minecraft", m.Game)
	assert.Equal(t, "1.2.0", m.VersionID)
	assert.Equal(t, "Sample Pack", m.Name)
	assert.Equal(t, "47.2.0", m.Dependencies["forge"])
	require.Len(t, m.Files, 2)

	f := m.Files[0]
	assert.Equal(t, "mods/sodium.jar", f.Path)
	assert.Equal(t, Hashes{SHA1: "aa", SHA512: "bb"}, f.Hashes)
	assert.Equal(t, Required, f.Env.Client)
	assert.Equal(t, Unsupported, f.Env.Server)
	assert.Equal(t, uint64(1024), f.FileSize)
	assert.Equal(t, []string{"https://cdn.example.com/sodium.jar", "https://mirror.example.com/sodium.jar"}, f.Downloads)
}

func TestParseEmptyFiles(t *testing.T) {
	m, err := Parse([]byte(`{"formatVersion":1,"game":"minecraft","versionId":"1","name":"x","files":[],"dependencies":{}}`))
	require.NoError(t, err)
	assert.Empty(t, m.Files)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed json", `{"formatVersion": 1,`},
		{"wrong type", `{"formatVersion": "one"}`},
		{"unknown requirement", `{"files":[{"path":"a.jar","env":{"client":"maybe","server":"required"},"downloads":["https://x/a.jar"]}]}`},
		{"negative size", `{"files":[{"path":"a.jar","downloads":["https://x/a.jar"],"fileSize":-1}]}`},
		{"no downloads", `{"files":[{"path":"a.jar","env":{"client":"required","server":"required"},"downloads":[]}]}`},
		{"null document", `null`},
		{"not an object", `["a.jar"]`},
		{"empty object", `{}`},
		{"no files key", `{"foo":1}`},
		{"null files", `{"files":null}`},
		{"missing path", `{"files":[{"env":{"client":"required","server":"required"},"downloads":["https://x/a.jar"]}]}`},
		{"missing env", `{"files":[{"path":"a.jar","downloads":["https://x/a.jar"]}]}`},
		{"empty env", `{"files":[{"path":"a.jar","env":{},"downloads":["https://x/a.jar"]}]}`},
		{"missing server", `{"files":[{"path":"a.jar","env":{"client":"required"},"downloads":["https://x/a.jar"]}]}`},
		{"null requirement", `{"files":[{"path":"a.jar","env":{"client":null,"server":"required"},"downloads":["https://x/a.jar"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.mrpack"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexName)
	require.NoError(t, os.WriteFile(path, []byte(sampleIndex), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Files, 2)
}

func TestLoadInvalidSetsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := Load(path)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Source)
}

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pack.mrpack")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return path
}

func TestLoadArchive(t *testing.T) {
	path := writeArchive(t, map[string]string{
		IndexName:                     sampleIndex,
		"overrides/config/sodium.txt": "x",
	})
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Sample Pack", m.Name)
}

func TestLoadArchiveWithoutIndex(t *testing.T) {
	path := writeArchive(t, map[string]string{"overrides/readme.txt": "x"})
	_, err := Load(path)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestForSide(t *testing.T) {
	m, err := Parse([]byte(sampleIndex))
	require.NoError(t, err)

	all, err := m.ForSide("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	client, err := m.ForSide("client")
	require.NoError(t, err)
	assert.Len(t, client, 2)

	server, err := m.ForSide("server")
	require.NoError(t, err)
	require.Len(t, server, 1)
	assert.Equal(t, "mods/lithium.jar", server[0].Path)

	_, err = m.ForSide("both")
	assert.Error(t, err)

	assert.Equal(t, uint64(3072), TotalSize(all))
}
