package tagio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps tag sets in memory, keyed by path.
type fakeStore struct {
	tags    map[string]map[string][]string
	readErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tags: make(map[string]map[string][]string)}
}

func (f *fakeStore) ReadAll(path string) (map[string][]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	tags, ok := f.tags[path]
	if !ok {
		return map[string][]string{}, nil
	}
	out := make(map[string][]string, len(tags))
	for k, v := range tags {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

func (f *fakeStore) WriteAll(path string, tags map[string][]string) error {
	f.tags[path] = tags
	return nil
}

func TestTransferable(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"ARTIST", true},
		{"TITLE", true},
		{"ALBUM", true},
		{"REPLAYGAIN_TRACK_GAIN", false},
		{"replaygain_album_peak", false},
		{"ENCODED_BY", false},
		{"EncodedBy", false},
		{"Encoder Settings", false},
		{FingerprintTag, false},
		{"vinyl_src_fingerprint", false},
		{"DATE", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, transferable(tt.key))
		})
	}
}

func TestCopyTagsFiltersAndMerges(t *testing.T) {
	s := newFakeStore()
	s.tags["src.flac"] = map[string][]string{
		"ARTIST":                []string{"Boards of Canada"},
		"TITLE":                 []string{"Roygbiv"},
		"GENRE":                 []string{"IDM", "Electronic"},
		"REPLAYGAIN_TRACK_GAIN": []string{"-6.5 dB"},
		"ENCODED_BY":            []string{"FLAC 1.4.3"},
		FingerprintTag:          []string{"stale0000stale00"},
	}
	// Pre-existing destination tags must not survive.
	s.tags["dst.ogg"] = map[string][]string{
		"COMMENT": []string{"left over"},
	}

	err := CopyTags(s, "src.flac", "dst.ogg", map[string]string{
		FingerprintTag: "abcdef0123456789",
	})
	require.NoError(t, err)

	got := s.tags["dst.ogg"]
	assert.Equal(t, []string{"Boards of Canada"}, got["ARTIST"])
	assert.Equal(t, []string{"Roygbiv"}, got["TITLE"])
	assert.Equal(t, []string{"IDM", "Electronic"}, got["GENRE"])
	assert.Equal(t, []string{"abcdef0123456789"}, got[FingerprintTag])
	assert.NotContains(t, got, "REPLAYGAIN_TRACK_GAIN")
	assert.NotContains(t, got, "ENCODED_BY")
	assert.NotContains(t, got, "COMMENT")
}

func TestCopyTagsNoExtra(t *testing.T) {
	s := newFakeStore()
	s.tags["src.flac"] = map[string][]string{"ARTIST": {"Autechre"}}

	require.NoError(t, CopyTags(s, "src.flac", "dst.ogg", nil))
	assert.Equal(t, []string{"Autechre"}, s.tags["dst.ogg"]["ARTIST"])
	assert.NotContains(t, s.tags["dst.ogg"], FingerprintTag)
}

func TestCopyTagsUntaggedSource(t *testing.T) {
	s := newFakeStore()

	err := CopyTags(s, "src.wav", "dst.ogg", map[string]string{
		FingerprintTag: "abcdef0123456789",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		FingerprintTag: {"abcdef0123456789"},
	}, s.tags["dst.ogg"])
}

func TestCopyTagsReadError(t *testing.T) {
	s := newFakeStore()
	s.readErr = errors.New("corrupt header")

	err := CopyTags(s, "src.flac", "dst.ogg", nil)
	require.Error(t, err)
	assert.NotContains(t, s.tags, "dst.ogg")
}

func TestReadFingerprint(t *testing.T) {
	s := newFakeStore()
	s.tags["a.ogg"] = map[string][]string{FingerprintTag: {"abcdef0123456789"}}
	s.tags["b.ogg"] = map[string][]string{"vinyl_src_fingerprint": {" abcdef0123456789 "}}
	s.tags["c.ogg"] = map[string][]string{"ARTIST": {"Plaid"}}

	got, err := ReadFingerprint(s, "a.ogg")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789", got)

	got, err = ReadFingerprint(s, "b.ogg")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789", got, "lookup is case-insensitive and trims")

	got, err = ReadFingerprint(s, "c.ogg")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFingerprintError(t *testing.T) {
	s := newFakeStore()
	s.readErr = errors.New("not a media file")

	_, err := ReadFingerprint(s, "x.ogg")
	require.Error(t, err)
}

func TestFingerprintKey(t *testing.T) {
	assert.True(t, fingerprintKey("VINYL_SRC_FINGERPRINT"))
	assert.True(t, fingerprintKey("vinyl_src_fingerprint"))
	assert.True(t, fingerprintKey("----:com.apple.iTunes:VINYL_SRC_FINGERPRINT"))
	assert.False(t, fingerprintKey("ARTIST"))
	assert.False(t, fingerprintKey("FINGERPRINT"))
}

func TestTagLibReadMissingFile(t *testing.T) {
	_, err := TagLib{}.ReadAll(filepath.Join(t.TempDir(), "missing.flac"))
	require.Error(t, err)
}

func TestRawFingerprintMissingFile(t *testing.T) {
	_, err := RawFingerprint(filepath.Join(t.TempDir(), "missing.ogg"))
	require.Error(t, err)
}

func TestRawFingerprintNotMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	_, err := RawFingerprint(path)
	require.Error(t, err)
}
