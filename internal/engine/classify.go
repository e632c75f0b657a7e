package engine

import (
	"path/filepath"
	"strings"
)

// Classifier sorts source files into transcode and copy candidates and maps
// them to destination paths.
type Classifier struct {
	transcodeExts map[string]struct{}
	targetExt     string
	includeHidden bool
}

// NewClassifier builds a classifier from a transcode extension list and a
// target format. Extensions are matched case-insensitively, with or without
// a leading dot.
func NewClassifier(transcodeFormats []string, targetFormat string, includeHidden bool) *Classifier {
	exts := make(map[string]struct{}, len(transcodeFormats))
	for _, f := range transcodeFormats {
		if e := normalizeExt(f); e != "" {
			exts[e] = struct{}{}
		}
	}
	return &Classifier{
		transcodeExts: exts,
		targetExt:     normalizeExt(targetFormat),
		includeHidden: includeHidden,
	}
}

func normalizeExt(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
}

// NeedsTranscode reports whether the file's extension is in the transcode set.
func (c *Classifier) NeedsTranscode(path string) bool {
	ext := normalizeExt(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := c.transcodeExts[ext]
	return ok
}

// TargetExt returns the normalized target format, e.g. "ogg".
func (c *Classifier) TargetExt() string {
	return c.targetExt
}

// DestRel maps a source-relative path to its destination-relative path.
// Transcode candidates swap their extension for the target format; everything
// else maps unchanged.
func (c *Classifier) DestRel(rel string) string {
	if !c.NeedsTranscode(rel) {
		return rel
	}
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + "." + c.targetExt
}

// Hidden reports whether the relative path should be skipped as hidden,
// meaning any component starts with a dot. Always false when the classifier
// was built with includeHidden.
func (c *Classifier) Hidden(rel string) bool {
	if c.includeHidden {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
