package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/vinylsync/vinyl/internal/stats"
)

// ScanError attributes a planning failure to a path so it can land in the
// run summary.
type ScanError struct {
	Path string // source-relative when resolvable, else absolute
	Err  error
}

func (e *ScanError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *ScanError) Unwrap() error { return e.Err }

// ScannerConfig controls scanner behavior.
type ScannerConfig struct {
	SrcRoot    string
	DstRoot    string
	Workers    int
	Classifier *Classifier
	Decider    *Decider
	Stats      *stats.Collector
}

// Scanner traverses the source tree in parallel, classifies each file and
// emits decided SyncActions. The up-to-date check runs in the scan workers
// because fingerprinting sources is I/O heavy; the executing pool stays
// free for transcodes and copies.
type Scanner struct {
	cfg     ScannerConfig
	actions chan SyncAction
	errs    chan error
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), 8)
	}
	return &Scanner{
		cfg:     cfg,
		actions: make(chan SyncAction, cfg.Workers*4),
		errs:    make(chan error, cfg.Workers*4),
	}
}

// Scan starts the scanner and returns channels for actions and errors.
// The caller must consume from both channels until they close.
func (s *Scanner) Scan(ctx context.Context) (<-chan SyncAction, <-chan error) {
	go func() {
		defer close(s.actions)
		defer close(s.errs)
		s.scanTree(ctx)
	}()

	return s.actions, s.errs
}

func (s *Scanner) scanTree(ctx context.Context) {
	workQueue := make(chan string, s.cfg.Workers*2)
	var outstanding sync.WaitGroup // tracks directories queued but not yet processed

	var workerWg sync.WaitGroup
	for range s.cfg.Workers {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for dirPath := range workQueue {
				s.scanDir(ctx, dirPath, workQueue, &outstanding)
				outstanding.Done()
			}
		}()
	}

	// Seed with root.
	outstanding.Add(1)
	workQueue <- s.cfg.SrcRoot

	// Wait for all directory work to finish, then close the work queue
	// so workers exit their range loop.
	outstanding.Wait()
	close(workQueue)
	workerWg.Wait()
}

func (s *Scanner) scanDir(ctx context.Context, dirPath string, workQueue chan<- string, outstanding *sync.WaitGroup) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		s.sendErr(ctx, &ScanError{Path: s.rel(dirPath), Err: err})
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entryPath := filepath.Join(dirPath, entry.Name())
		rel := s.rel(entryPath)

		if s.cfg.Classifier.Hidden(rel) {
			continue
		}

		if entry.IsDir() {
			outstanding.Add(1)
			select {
			case workQueue <- entryPath:
			default:
				// Full queue, and every worker may itself be in scanDir
				// with nobody left to drain it. Descend inline instead of
				// blocking; recursion depth is bounded by the tree depth.
				s.scanDir(ctx, entryPath, workQueue, outstanding)
				outstanding.Done()
			}
			continue
		}

		s.processFile(ctx, entryPath, rel, entry)
	}
}

func (s *Scanner) processFile(ctx context.Context, srcPath, rel string, entry os.DirEntry) {
	info, err := entry.Info()
	if err != nil {
		s.sendErr(ctx, &ScanError{Path: rel, Err: err})
		return
	}

	// Follow file symlinks to their content; the mirror holds real files.
	// Directory symlinks are not followed, which also rules out cycles.
	if info.Mode()&os.ModeSymlink != 0 {
		info, err = os.Stat(srcPath)
		if err != nil {
			s.sendErr(ctx, &ScanError{Path: rel, Err: fmt.Errorf("resolve symlink: %w", err)})
			return
		}
		if info.IsDir() {
			return
		}
	}
	if !info.Mode().IsRegular() {
		return
	}

	s.cfg.Stats.AddFilesScanned(1)

	intent := Copy
	if s.cfg.Classifier.NeedsTranscode(rel) {
		intent = Transcode
	}
	dstRel := s.cfg.Classifier.DestRel(rel)

	act := SyncAction{
		SrcPath: srcPath,
		DstPath: filepath.Join(s.cfg.DstRoot, dstRel),
		RelPath: rel,
		DstRel:  dstRel,
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Mode:    info.Mode().Perm(),
		Intent:  intent,
		Kind:    intent,
	}

	if err := s.cfg.Decider.Decide(&act); err != nil {
		s.sendErr(ctx, &ScanError{Path: rel, Err: err})
		return
	}

	select {
	case s.actions <- act:
	case <-ctx.Done():
	}
}

func (s *Scanner) rel(path string) string {
	rel, err := filepath.Rel(s.cfg.SrcRoot, path)
	if err != nil {
		return path
	}
	return rel
}

// sendErr delivers a scan failure, waiting for the consumer rather than
// dropping when the buffer is full. Every failure must reach the summary
// or a run could report success with files missing.
func (s *Scanner) sendErr(ctx context.Context, err error) {
	select {
	case s.errs <- err:
	case <-ctx.Done():
	}
}
