package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vinylsync/vinyl/internal/event"
)

// DeleteConfig controls the delete pass.
type DeleteConfig struct {
	DstRoot string
	// Expected holds every destination-relative path (slash-separated)
	// the plan accounts for. Anything else under DstRoot is extraneous.
	// Matching on the plan rather than statting back to the source is
	// what keeps transcoded files alive: a.ogg has no source a.ogg.
	Expected   map[string]struct{}
	Classifier *Classifier
	DryRun     bool
	Events     chan<- event.Event
}

func (c DeleteConfig) emit(e event.Event) {
	if c.Events == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case c.Events <- e:
	default:
	}
}

// DeleteExtraneous removes destination files and directories that no
// planned action maps to. Hidden entries follow the same rule as the
// scanner: left alone unless hidden files are in scope. Returns the
// number of entries removed.
func DeleteExtraneous(ctx context.Context, cfg DeleteConfig) (int, error) {
	expectedDirs := make(map[string]struct{})
	for rel := range cfg.Expected {
		for d := filepath.ToSlash(filepath.Dir(rel)); d != "." && d != "/"; d = filepath.ToSlash(filepath.Dir(d)) {
			expectedDirs[d] = struct{}{}
		}
	}

	var files []string
	var dirs []string

	err := filepath.WalkDir(cfg.DstRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == cfg.DstRoot && os.IsNotExist(err) {
				return filepath.SkipAll // nothing mirrored yet
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == cfg.DstRoot {
			return nil
		}

		rel, relErr := filepath.Rel(cfg.DstRoot, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if cfg.Classifier != nil && cfg.Classifier.Hidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if _, ok := expectedDirs[rel]; !ok {
				dirs = append(dirs, rel)
				return filepath.SkipDir // contents go with the directory
			}
			return nil
		}
		if _, ok := cfg.Expected[rel]; !ok {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk destination: %w", err)
	}

	deleted := 0
	for _, rel := range files {
		cfg.emit(event.Event{Type: event.FileDeleted, Path: rel, DryRun: cfg.DryRun})
		if !cfg.DryRun {
			if err := os.Remove(filepath.Join(cfg.DstRoot, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
				return deleted, fmt.Errorf("delete %s: %w", rel, err)
			}
		}
		deleted++
	}

	// Deepest first, so emptied parents follow their children.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, rel := range dirs {
		cfg.emit(event.Event{Type: event.FileDeleted, Path: rel + "/", DryRun: cfg.DryRun})
		if !cfg.DryRun {
			if err := os.RemoveAll(filepath.Join(cfg.DstRoot, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
				return deleted, fmt.Errorf("delete dir %s: %w", rel, err)
			}
		}
		deleted++
	}

	return deleted, nil
}
