package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylsync/vinyl/internal/event"
)

func expectedSet(rels ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		m[r] = struct{}{}
	}
	return m
}

func TestDeleteExtraneousRemovesUnplannedEntries(t *testing.T) {
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "album", "track.ogg"), "keep")
	writeFile(t, filepath.Join(dst, "album", "cover.jpg"), "keep")
	writeFile(t, filepath.Join(dst, "album", "stale.ogg"), "gone from source")
	writeFile(t, filepath.Join(dst, "removed-album", "old.ogg"), "whole dir gone")

	deleted, err := DeleteExtraneous(context.Background(), DeleteConfig{
		DstRoot:    dst,
		Expected:   expectedSet("album/track.ogg", "album/cover.jpg"),
		Classifier: NewClassifier([]string{"flac"}, "ogg", false),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted, "one file and one directory")

	assert.FileExists(t, filepath.Join(dst, "album", "track.ogg"))
	assert.FileExists(t, filepath.Join(dst, "album", "cover.jpg"))
	assert.NoFileExists(t, filepath.Join(dst, "album", "stale.ogg"))
	assert.NoDirExists(t, filepath.Join(dst, "removed-album"))
}

func TestDeleteExtraneousKeepsTranscodedDestinations(t *testing.T) {
	// a.ogg exists in the destination but not the source; the plan maps
	// a.flac onto it, so it must survive the delete pass.
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "a.ogg"), "transcoded")

	deleted, err := DeleteExtraneous(context.Background(), DeleteConfig{
		DstRoot:  dst,
		Expected: expectedSet("a.ogg"),
	})
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.FileExists(t, filepath.Join(dst, "a.ogg"))
}

func TestDeleteExtraneousDryRun(t *testing.T) {
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "stale.ogg"), "data")

	events, getEvents := collectEvents(t)
	deleted, err := DeleteExtraneous(context.Background(), DeleteConfig{
		DstRoot:  dst,
		Expected: expectedSet(),
		DryRun:   true,
		Events:   events,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "dry run still counts")
	assert.FileExists(t, filepath.Join(dst, "stale.ogg"), "dry run removes nothing")

	evs := getEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, event.FileDeleted, evs[0].Type)
	assert.Equal(t, "stale.ogg", evs[0].Path)
	assert.True(t, evs[0].DryRun)
}

func TestDeleteExtraneousLeavesHiddenAlone(t *testing.T) {
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, ".stfolder", "marker"), "syncthing")
	writeFile(t, filepath.Join(dst, ".nomedia"), "")
	writeFile(t, filepath.Join(dst, "stale.ogg"), "data")

	deleted, err := DeleteExtraneous(context.Background(), DeleteConfig{
		DstRoot:    dst,
		Expected:   expectedSet(),
		Classifier: NewClassifier(nil, "ogg", false),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.DirExists(t, filepath.Join(dst, ".stfolder"))
	assert.FileExists(t, filepath.Join(dst, ".nomedia"))
	assert.NoFileExists(t, filepath.Join(dst, "stale.ogg"))
}

func TestDeleteExtraneousHiddenInScope(t *testing.T) {
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, ".nomedia"), "")

	deleted, err := DeleteExtraneous(context.Background(), DeleteConfig{
		DstRoot:    dst,
		Expected:   expectedSet(),
		Classifier: NewClassifier(nil, "ogg", true),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, filepath.Join(dst, ".nomedia"))
}

func TestDeleteExtraneousMissingDestination(t *testing.T) {
	deleted, err := DeleteExtraneous(context.Background(), DeleteConfig{
		DstRoot:  filepath.Join(t.TempDir(), "never-created"),
		Expected: expectedSet("a.ogg"),
	})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDeleteExtraneousNestedEmptyDirs(t *testing.T) {
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "a", "b", "c", "deep.ogg"), "data")
	writeFile(t, filepath.Join(dst, "a", "keep.ogg"), "data")

	deleted, err := DeleteExtraneous(context.Background(), DeleteConfig{
		DstRoot:  dst,
		Expected: expectedSet("a/keep.ogg"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "a/b is pruned as one subtree")
	assert.NoDirExists(t, filepath.Join(dst, "a", "b"))
	assert.FileExists(t, filepath.Join(dst, "a", "keep.ogg"))
}

func TestDeleteExtraneousCancelled(t *testing.T) {
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "stale.ogg"), "data")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DeleteExtraneous(ctx, DeleteConfig{DstRoot: dst, Expected: expectedSet()})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, filepath.Join(dst, "stale.ogg"))
}
