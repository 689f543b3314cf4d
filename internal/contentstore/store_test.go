// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contentstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

const newtonURL = "https://en.wikipedia.org/wiki/Isaac_Newton"

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "raw_sources"))
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newStore(t)
	content := []byte("Newton\x00binary\xffbytes\nline two")

	rel, err := s.Put(newtonURL, ContentFile, content)
	require.NoError(t, err)

	assert.Equal(t, HashURL(newtonURL)+"/"+ContentFile, rel)
	assert.False(t, filepath.IsAbs(rel))

	got, err := s.Get(rel)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.True(t, s.Exists(rel))
}

func TestPutSameURLOverwritesInPlace(t *testing.T) {
	s := newStore(t)

	first, err := s.Put(newtonURL, ContentFile, []byte("old body"))
	require.NoError(t, err)
	second, err := s.Put(newtonURL, ContentFile, []byte("new body"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	got, err := s.Get(second)
	require.NoError(t, err)
	assert.Equal(t, "new body", string(got))

	entries, err := os.ReadDir(filepath.Join(s.Root(), Dir(newtonURL)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCreateKeepsFirstWrite(t *testing.T) {
	s := newStore(t)

	rel, created, err := s.Create(newtonURL, ContentFile, []byte("first"))
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.Create(newtonURL, ContentFile, []byte("second"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rel, again)

	got, err := s.Get(rel)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	entries, err := os.ReadDir(filepath.Join(s.Root(), Dir(newtonURL)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCreateConcurrentWritersOneWins(t *testing.T) {
	s := newStore(t)

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf("writer %d", i)
			_, created, err := s.Create(newtonURL, ContentFile, []byte(body))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				winners = append(winners, body)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	got, err := s.Get(path.Join(Dir(newtonURL), ContentFile))
	require.NoError(t, err)
	assert.Equal(t, winners[0], string(got))
}

func TestDistinctURLsUseDistinctDirectories(t *testing.T) {
	s := newStore(t)
	a, err := s.Put("https://example.org/a", ContentFile, []byte("a"))
	require.NoError(t, err)
	b, err := s.Put("https://example.org/b", ContentFile, []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Dir(a), filepath.Dir(b))
}

func TestStoreIsRelocatable(t *testing.T) {
	s := newStore(t)
	rel, err := s.Put(newtonURL, OriginalName("html"), []byte("<p>hi</p>"))
	require.NoError(t, err)

	moved := filepath.Join(t.TempDir(), "moved")
	require.NoError(t, os.Rename(s.Root(), moved))

	relocated, err := New(moved)
	require.NoError(t, err)
	got, err := relocated.Get(rel)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(got))
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Get("0123456789abcdef/content.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentMissing)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, s.Exists("0123456789abcdef/content.txt"))
}

func TestGetRejectsEscapingPaths(t *testing.T) {
	s := newStore(t)
	for _, p := range []string{"../secret", "/etc/passwd", ""} {
		_, err := s.Get(p)
		assert.Error(t, err, p)
	}
}

func TestPutRejectsBadNames(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"", "a/b", "..", `a\b`} {
		_, err := s.Put(newtonURL, name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestOpenStreamsContent(t *testing.T) {
	s := newStore(t)
	rel, err := s.Put(newtonURL, ContentFile, []byte("streamed"))
	require.NoError(t, err)

	rc, err := s.Open(rel)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(data))
}

func TestNewUnavailableRoot(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := New(filepath.Join(blocker, "root"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStorageUnavailable))
}

func TestHashURLDeterministic(t *testing.T) {
	assert.Equal(t, HashURL(newtonURL), HashURL(newtonURL))
	assert.Len(t, HashURL(newtonURL), 16)
	assert.Equal(t, "original.pdf", OriginalName(".pdf"))
}
