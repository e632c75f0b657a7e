package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylsync/vinyl/internal/tool"
)

func TestTmpName(t *testing.T) {
	plain := tmpName("cover.jpg", false)
	assert.True(t, strings.HasPrefix(plain, ".cover.jpg."))
	assert.True(t, strings.HasSuffix(plain, ".vinyl-tmp"))

	// Transcode temps keep the target extension so the encoder can infer
	// the container.
	keep := tmpName("track.ogg", true)
	assert.True(t, strings.HasPrefix(keep, ".track."))
	assert.True(t, strings.HasSuffix(keep, ".vinyl-tmp.ogg"))

	assert.NotEqual(t, tmpName("a.ogg", true), tmpName("a.ogg", true), "names are unique")
}

func TestBuiltinCopier(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "b-side.mp3")
	dst := filepath.Join(dir, "dst", "b-side.mp3")
	writeFile(t, src, "mp3 payload")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.Chmod(src, 0o640))
	backdate(t, src, time.Hour)

	info, err := os.Stat(src)
	require.NoError(t, err)

	c := BuiltinCopier{}
	assert.Equal(t, "builtin", c.Name())
	assert.False(t, c.Delta())
	require.NoError(t, c.Copy(src, dst, info.Mode(), info.ModTime()))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "mp3 payload", string(got))

	dstInfo, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), dstInfo.Mode().Perm())
	assert.WithinDuration(t, info.ModTime(), dstInfo.ModTime(), time.Second,
		"mtime carried over so later runs can skip")

	assert.Empty(t, findTmpFiles(t, dir), "temp promoted or removed")
}

func TestBuiltinCopierOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, "new content")
	writeFile(t, dst, "old content that is longer")

	info, err := os.Stat(src)
	require.NoError(t, err)
	require.NoError(t, BuiltinCopier{}.Copy(src, dst, info.Mode(), info.ModTime()))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))
}

func TestBuiltinCopierMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := BuiltinCopier{}.Copy(filepath.Join(dir, "ghost"), filepath.Join(dir, "out"), 0o644, time.Now())
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out"))
	assert.Empty(t, findTmpFiles(t, dir))
}

func TestRsyncCopierDelegates(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp3")
	dst := filepath.Join(dir, "b.mp3")
	writeFile(t, src, "audio")

	script := filepath.Join(dir, "rsync")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nshift 3\ncp \"$1\" \"$2\"\n"), 0o755))

	c := NewRsyncCopier(tool.NewRsync(script))
	assert.Equal(t, "rsync", c.Name())
	assert.True(t, c.Delta())
	require.NoError(t, c.Copy(src, dst, 0o644, time.Now()))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(got))
}
