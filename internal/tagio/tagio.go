// Package tagio reads and writes metadata tags on media files.
//
// The engine talks to tags only through the Store interface. The default
// implementation wraps TagLib, which covers every container vinyl
// transcodes to or from.
package tagio

import (
	"fmt"
	"regexp"
	"strings"

	"go.senan.xyz/taglib"
)

// FingerprintTag is the reserved tag key holding the source fingerprint
// on transcoded files. It is never copied from a source file.
const FingerprintTag = "VINYL_SRC_FINGERPRINT"

// Store reads and writes whole tag sets on media files.
type Store interface {
	// ReadAll returns every tag on the file as a key to values map.
	// Files whose container supports no tags yield an empty map.
	ReadAll(path string) (map[string][]string, error)
	// WriteAll replaces the file's tags with exactly the given set.
	WriteAll(path string, tags map[string][]string) error
}

// TagLib is the default Store, backed by an embedded TagLib build.
// The zero value is ready to use.
type TagLib struct{}

func (TagLib) ReadAll(path string) (map[string][]string, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	return tags, nil
}

func (TagLib) WriteAll(path string, tags map[string][]string) error {
	if err := taglib.WriteTags(path, tags, taglib.Clear); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	return nil
}

// Keys matching these are tied to a specific encode of the audio and
// must not survive a transcode.
var skipKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)replaygain`),
	regexp.MustCompile(`(?i)encoded`),
}

func transferable(key string) bool {
	if strings.EqualFold(key, FingerprintTag) {
		return false
	}
	for _, re := range skipKeyPatterns {
		if re.MatchString(key) {
			return false
		}
	}
	return true
}

// CopyTags replaces dst's tags with src's transferable tags plus extra.
// Extra keys win over copied ones.
func CopyTags(s Store, src, dst string, extra map[string]string) error {
	tags, err := s.ReadAll(src)
	if err != nil {
		return err
	}
	out := make(map[string][]string, len(tags)+len(extra))
	for k, v := range tags {
		if transferable(k) {
			out[k] = v
		}
	}
	for k, v := range extra {
		out[k] = []string{v}
	}
	return s.WriteAll(dst, out)
}

// ReadFingerprint returns the stored fingerprint, or "" when the file
// carries none. Key lookup is case-insensitive.
func ReadFingerprint(s Store, path string) (string, error) {
	tags, err := s.ReadAll(path)
	if err != nil {
		return "", err
	}
	for k, v := range tags {
		if strings.EqualFold(k, FingerprintTag) && len(v) > 0 {
			return strings.TrimSpace(v[0]), nil
		}
	}
	return "", nil
}
