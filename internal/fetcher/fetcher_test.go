package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/mrpack-downloader/internal/aggregate"
	"github.com/tanq16/mrpack-downloader/internal/manifest"
	"github.com/tanq16/mrpack-downloader/internal/utils"
)

type mirror struct {
	server *httptest.Server
	hits   atomic.Int64
}

func newMirror(t *testing.T, status int, body string) *mirror {
	t.Helper()
	m := &mirror{}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mirror) url(name string) string {
	return m.server.URL + "/" + name
}

// deadURL returns an address nothing is listening on.
func deadURL(t *testing.T) string {
	t.Helper()
	s := httptest.NewServer(http.NotFoundHandler())
	u := s.URL
	s.Close()
	return u + "/gone.jar"
}

func newFetcher(dir string) *Fetcher {
	return New(dir, Options{HTTPConfig: utils.HTTPClientConfig{}})
}

func entry(path string, mirrors ...string) manifest.File {
	return manifest.File{Path: path, Downloads: mirrors}
}

func id(path string) aggregate.EntryID {
	return aggregate.EntryID{Index: 0, Path: path}
}

func tempLeftovers(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, utils.TempDirName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestFetchFallsBackToWorkingMirror(t *testing.T) {
	dir := t.TempDir()
	bad := newMirror(t, http.StatusInternalServerError, "oops")
	good := newMirror(t, http.StatusOK, "sodium-bytes")
	file := entry("mods/sodium.jar", deadURL(t), bad.url("sodium.jar"), good.url("sodium.jar"))

	out := newFetcher(dir).Fetch(context.Background(), id(file.Path), file)

	require.Equal(t, aggregate.StatusSuccess, out.Status)
	assert.Equal(t, filepath.Join(dir, "sodium.jar"), out.Destination)
	assert.Empty(t, out.Reasons)
	data, err := os.ReadFile(out.Destination)
	require.NoError(t, err)
	assert.Equal(t, "sodium-bytes", string(data))
	assert.Equal(t, int64(1), bad.hits.Load())
	assert.Equal(t, int64(1), good.hits.Load())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	var written []string
	for _, f := range files {
		if !f.IsDir() {
			written = append(written, f.Name())
		}
	}
	assert.Equal(t, []string{"sodium.jar"}, written)
	assert.Empty(t, tempLeftovers(t, dir))
}

func TestFetchAllMirrorsFail(t *testing.T) {
	dir := t.TempDir()
	notFound := newMirror(t, http.StatusNotFound, "")
	file := entry("mods/lithium.jar", deadURL(t), notFound.url("lithium.jar"), "ftp://example.com/lithium.jar")

	out := newFetcher(dir).Fetch(context.Background(), id(file.Path), file)

	require.Equal(t, aggregate.StatusFailed, out.Status)
	require.Len(t, out.Reasons, 3)
	for _, reason := range out.Reasons {
		var te *TransportError
		assert.ErrorAs(t, reason, &te)
	}
	assert.Contains(t, out.Reasons[1].Error(), "404")
	assert.Contains(t, out.Reasons[2].Error(), "unsupported scheme")
	assert.NoFileExists(t, filepath.Join(dir, "lithium.jar"))
	assert.Empty(t, tempLeftovers(t, dir))
}

func TestFetchRespectsMirrorOrder(t *testing.T) {
	dir := t.TempDir()
	a := newMirror(t, http.StatusOK, "from-a")
	b := newMirror(t, http.StatusOK, "from-b")
	file := entry("mods/a.jar", a.url("a.jar"), b.url("a.jar"))

	out := newFetcher(dir).Fetch(context.Background(), id(file.Path), file)

	require.Equal(t, aggregate.StatusSuccess, out.Status)
	assert.Equal(t, int64(1), a.hits.Load())
	assert.Equal(t, int64(0), b.hits.Load())
	data, err := os.ReadFile(out.Destination)
	require.NoError(t, err)
	assert.Equal(t, "from-a", string(data))
}

func TestFetchPlaceholderName(t *testing.T) {
	dir := t.TempDir()
	good := newMirror(t, http.StatusOK, "x")
	file := entry("", good.url("x"))

	out := newFetcher(dir).Fetch(context.Background(), id(file.Path), file)

	require.Equal(t, aggregate.StatusSuccess, out.Status)
	assert.Equal(t, filepath.Join(dir, PlaceholderName), out.Destination)
}

func TestFetchLongFileName(t *testing.T) {
	dir := t.TempDir()
	good := newMirror(t, http.StatusOK, "long")
	name := strings.Repeat("a", 230) + ".jar"
	file := entry("mods/"+name, good.url("long.jar"))

	out := newFetcher(dir).Fetch(context.Background(), id(file.Path), file)

	require.Equal(t, aggregate.StatusSuccess, out.Status, "reasons: %v", out.Reasons)
	assert.Equal(t, filepath.Join(dir, name), out.Destination)
	data, err := os.ReadFile(out.Destination)
	require.NoError(t, err)
	assert.Equal(t, "long", string(data))
	assert.Empty(t, tempLeftovers(t, dir))
}

// memSink keeps committed files in memory and can fail a number of stages.
type memSink struct {
	mu        sync.Mutex
	files     map[string]string
	failFirst int
	stages    int
}

func newMemSink(failFirst int) *memSink {
	return &memSink{files: map[string]string{}, failFirst: failFirst}
}

func (s *memSink) Stage(name string) (Staged, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages++
	return &memFile{sink: s, name: name, broken: s.stages <= s.failFirst}, nil
}

type memFile struct {
	sink   *memSink
	name   string
	buf    []byte
	broken bool
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.broken {
		return 0, &WriteError{Path: f.name, Err: errors.New("disk full")}
	}
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	if f.broken {
		return 0, &WriteError{Path: f.name, Err: errors.New("disk full")}
	}
	if end := int(off) + len(p); end > len(f.buf) {
		f.buf = append(f.buf, make([]byte, end-len(f.buf))...)
	}
	copy(f.buf[off:], p)
	return len(p), nil
}

func (f *memFile) Commit() (string, error) {
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	f.sink.files[f.name] = string(f.buf)
	return f.name, nil
}

func (f *memFile) Abort() error { return nil }

// staticTransport serves fixed bodies keyed by URL and counts requests.
type staticTransport struct {
	bodies map[string]string
	calls  atomic.Int64
}

func (t *staticTransport) Fetch(_ context.Context, u *url.URL, dst Destination) error {
	t.calls.Add(1)
	body, ok := t.bodies[u.String()]
	if !ok {
		return errors.New("connection refused")
	}
	_, err := dst.Write([]byte(body))
	return err
}

func TestFetchWriteFailureMovesToNextMirror(t *testing.T) {
	sink := newMemSink(1)
	transport := &staticTransport{bodies: map[string]string{
		"mem://one/a.jar": "first",
		"mem://two/a.jar": "second",
	}}
	f := NewWith(sink, map[string]Transport{"mem": transport})
	file := entry("mods/a.jar", "mem://one/a.jar", "mem://two/a.jar")

	out := f.Fetch(context.Background(), id(file.Path), file)

	require.Equal(t, aggregate.StatusSuccess, out.Status)
	assert.Equal(t, "second", sink.files["a.jar"])
	assert.Equal(t, int64(2), transport.calls.Load())
}

func TestFetchWriteFailureIsRecorded(t *testing.T) {
	sink := newMemSink(5)
	transport := &staticTransport{bodies: map[string]string{"mem://one/a.jar": "first"}}
	f := NewWith(sink, map[string]Transport{"mem": transport})
	file := entry("mods/a.jar", "mem://one/a.jar", "mem://two/a.jar")

	out := f.Fetch(context.Background(), id(file.Path), file)

	require.Equal(t, aggregate.StatusFailed, out.Status)
	require.Len(t, out.Reasons, 2)
	var we *WriteError
	assert.ErrorAs(t, out.Reasons[0], &we)
	var te *TransportError
	assert.ErrorAs(t, out.Reasons[1], &te)
	assert.Empty(t, sink.files)
}

func TestFetchSameNameNeverMixes(t *testing.T) {
	dir := t.TempDir()
	bodyA := strings.Repeat("A", 512*1024)
	bodyB := strings.Repeat("B", 512*1024)
	a := newMirror(t, http.StatusOK, bodyA)
	b := newMirror(t, http.StatusOK, bodyB)
	f := newFetcher(dir)

	var wg sync.WaitGroup
	outcomes := make([]aggregate.Outcome, 2)
	for i, m := range []*mirror{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			file := entry(fmt.Sprintf("mods/%d/shared.jar", i), m.url("shared.jar"))
			outcomes[i] = f.Fetch(context.Background(), aggregate.EntryID{Index: i, Path: file.Path}, file)
		}()
	}
	wg.Wait()

	for _, o := range outcomes {
		require.Equal(t, aggregate.StatusSuccess, o.Status)
	}
	data, err := os.ReadFile(filepath.Join(dir, "shared.jar"))
	require.NoError(t, err)
	got := string(data)
	assert.True(t, got == bodyA || got == bodyB, "file content must be exactly one body")
	assert.Empty(t, tempLeftovers(t, dir))
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"mods/sodium.jar":          "sodium.jar",
		"sodium.jar":               "sodium.jar",
		"config/deep/nested/a.txt": "a.txt",
		`mods\windows.jar`:         "windows.jar",
		"mods/":                    "mods",
		"":                         PlaceholderName,
		"/":                        PlaceholderName,
		"..":                       PlaceholderName,
		"mods/.":                   PlaceholderName,
		"mods/\xff\xfe.jar":        PlaceholderName,
	}
	for in, want := range tests {
		assert.Equal(t, want, FileName(in), "FileName(%q)", in)
	}
}

func TestParseS3URL(t *testing.T) {
	u, _ := url.Parse("s3://packs/mods/sodium.jar")
	bucket, key, err := parseS3URL(u)
	require.NoError(t, err)
	assert.Equal(t, "packs", bucket)
	assert.Equal(t, "mods/sodium.jar", key)

	u, _ = url.Parse("s3://packs/")
	_, _, err = parseS3URL(u)
	assert.Error(t, err)
}

func TestS3TransportRejectsBadURLBeforeLoadingConfig(t *testing.T) {
	tr := NewS3Transport("")
	u, _ := url.Parse("s3:///nokey")
	err := tr.Fetch(context.Background(), u, &memFile{})
	assert.Error(t, err)
	assert.Nil(t, tr.downloader)
}
