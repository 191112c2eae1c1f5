package mediastore

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Media.Export.Path = filepath.Join(t.TempDir(), "media")

	store, err := New(settings)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func readAll(t *testing.T, store *DiskStore, relPath string) string {
	t.Helper()
	f, err := store.Open(relPath)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestSaveSubmissionClip(t *testing.T) {
	store := newTestStore(t)

	relPath, err := store.SaveSubmissionClip("hola", strings.NewReader("clip-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(relPath, SubmissionDir+"/hola_"))
	assert.True(t, strings.HasSuffix(relPath, ".mp4"))
	assert.Equal(t, "clip-bytes", readAll(t, store, relPath))

	// two uploads for the same label must not collide
	other, err := store.SaveSubmissionClip("hola", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotEqual(t, relPath, other)
}

func TestSaveSubmissionClipSanitizesLabel(t *testing.T) {
	store := newTestStore(t)

	relPath, err := store.SaveSubmissionClip("../etc/buenos dias", strings.NewReader("x"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(relPath, SubmissionDir+"/etcbuenos_dias_"), relPath)
}

func TestSaveExampleClip(t *testing.T) {
	store := newTestStore(t)

	relPath, err := store.SaveExampleClip("hola.mp4", strings.NewReader("example"))
	require.NoError(t, err)
	assert.Equal(t, ExampleDir+"/hola.mp4", relPath)

	// same filename overwrites
	relPath2, err := store.SaveExampleClip("hola.mp4", strings.NewReader("newer"))
	require.NoError(t, err)
	assert.Equal(t, relPath, relPath2)
	assert.Equal(t, "newer", readAll(t, store, relPath))

	_, err = store.SaveExampleClip("...", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open("../outside.mp4")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)

	relPath, err := store.SaveSubmissionClip("hola", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(relPath))
	_, err = store.Open(relPath)
	assert.Error(t, err)

	// removing an already removed clip is not an error
	assert.NoError(t, store.Remove(relPath))
}

func TestDownloadURLRoundTrip(t *testing.T) {
	store := newTestStore(t)

	relPath, err := store.SaveSubmissionClip("hola", strings.NewReader("x"))
	require.NoError(t, err)

	url := store.DownloadURL(relPath)
	assert.True(t, strings.HasPrefix(url, URLPrefix))
	assert.Equal(t, relPath, store.ParseURL(url))
}

func TestParseURLRejectsForeign(t *testing.T) {
	store := newTestStore(t)

	cases := []string{
		"",
		"https://storage.example.com/clip.mp4",
		"/media/",
		"/media/../config.yaml",
		"/media/other_dir/clip.mp4",
	}
	for _, url := range cases {
		assert.Empty(t, store.ParseURL(url), "url %q", url)
	}
}
