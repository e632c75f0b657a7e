package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vinylsync/vinyl/internal/event"
	"github.com/vinylsync/vinyl/internal/stats"
)

// tagMarker separates audio payload from the fake tag block in test files.
const tagMarker = "\n--vinyl-test-tags--\n"

// memTagStore is a tagio.Store that serializes tags into the file itself,
// after a marker line. Embedding survives the rename that promotes a temp
// file, which a path-keyed map would not.
type memTagStore struct {
	writeErr error
}

func (s *memTagStore) ReadAll(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tags := make(map[string][]string)
	_, block, found := strings.Cut(string(data), tagMarker)
	if !found {
		return tags, nil
	}
	for _, line := range strings.Split(block, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			tags[k] = append(tags[k], v)
		}
	}
	return tags, nil
}

func (s *memTagStore) WriteAll(path string, tags map[string][]string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	payload, _, _ := strings.Cut(string(data), tagMarker)

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(payload)
	b.WriteString(tagMarker)
	for _, k := range keys {
		for _, v := range tags[k] {
			fmt.Fprintf(&b, "%s=%s\n", k, v)
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// writeTagged creates a file whose payload carries an embedded tag block
// readable by memTagStore.
func writeTagged(t *testing.T, path, payload string, tags map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))
	if len(tags) == 0 {
		return
	}
	m := make(map[string][]string, len(tags))
	for k, v := range tags {
		m[k] = []string{v}
	}
	require.NoError(t, (&memTagStore{}).WriteAll(path, m))
}

// fakeTranscoder copies the source payload to dst, standing in for a real
// encoder. Err, when set, is returned without writing; noOutput simulates
// an encoder that exits 0 having produced nothing.
type fakeTranscoder struct {
	err      error
	noOutput bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeTranscoder) Transcode(src, dst string, _ []string) error {
	f.mu.Lock()
	f.calls = append(f.calls, src)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.noOutput {
		return os.WriteFile(dst, nil, 0o644)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (f *fakeTranscoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// writeFile creates path with content, making parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// createMediaTree builds the standard test library under root:
//
//	album/01 - intro.flac   (transcode candidate, tagged)
//	album/02 - theme.wv     (transcode candidate)
//	album/cover.jpg         (copy)
//	singles/b-side.mp3      (copy)
//	notes.txt               (copy)
func createMediaTree(t *testing.T, root string) {
	t.Helper()
	writeTagged(t, filepath.Join(root, "album", "01 - intro.flac"), "flacdata-intro",
		map[string]string{"ARTIST": "Tester", "TITLE": "Intro", "REPLAYGAIN_TRACK_GAIN": "-3 dB"})
	writeFile(t, filepath.Join(root, "album", "02 - theme.wv"), "wvdata-theme")
	writeFile(t, filepath.Join(root, "album", "cover.jpg"), "jpegdata")
	writeFile(t, filepath.Join(root, "singles", "b-side.mp3"), "mp3data")
	writeFile(t, filepath.Join(root, "notes.txt"), "plain text")
}

// testEngineConfig returns a Config wired with fakes suitable for most
// engine tests: builtin copier, fake transcoder, embedded tag store.
func testEngineConfig(src, dst string, tr Transcoder, tags *memTagStore) Config {
	return Config{
		Src:              src,
		Dst:              dst,
		TranscodeFormats: []string{"flac", "wv"},
		TargetFormat:     "ogg",
		Workers:          2,
		ScanWorkers:      2,
		Checksums:        true,
		Transcoder:       tr,
		Copier:           BuiltinCopier{},
		Tags:             tags,
		Stats:            stats.NewCollector(),
	}
}

// collectEvents returns a buffered event channel and a getter that closes
// it and returns everything received. The getter may be called once.
func collectEvents(t *testing.T) (chan event.Event, func() []event.Event) {
	t.Helper()
	ch := make(chan event.Event, 4096)
	var collected []event.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			collected = append(collected, ev)
		}
	}()
	return ch, func() []event.Event {
		close(ch)
		<-done
		return collected
	}
}

// findTmpFiles returns any .vinyl-tmp files left under root.
func findTmpFiles(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.Contains(d.Name(), ".vinyl-tmp") {
			found = append(found, path)
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

// backdate sets path's mtime to the given offset before now.
func backdate(t *testing.T, path string, age time.Duration) {
	t.Helper()
	past := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, past, past))
}
