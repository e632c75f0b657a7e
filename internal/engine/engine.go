// Package engine plans and executes the mirroring of a media tree.
//
// A run scans the source tree, decides one SyncAction per file, executes
// the actions on a bounded worker pool and optionally follows up with a
// delete pass for extraneous destination files and a verify audit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vinylsync/vinyl/internal/event"
	"github.com/vinylsync/vinyl/internal/stats"
	"github.com/vinylsync/vinyl/internal/tagio"
)

// Config describes a mirror run. It is built once by the caller and never
// mutated afterwards.
type Config struct {
	Src              string
	Dst              string
	TranscodeFormats []string
	TargetFormat     string
	EncoderOpts      []string
	Workers          int
	ScanWorkers      int
	Checksums        bool
	DryRun           bool
	Force            bool
	IncludeHidden    bool
	Delete           bool
	Verify           bool
	TempDir          string
	Transcoder       Transcoder
	Copier           Copier
	Tags             tagio.Store
	Stats            *stats.Collector
	Events           chan<- event.Event
}

// Result is the outcome of a mirror run. Err is set for fatal conditions
// only; per-file failures are in Summary.Failures.
type Result struct {
	Summary stats.Snapshot
	Err     error
}

// Run executes one mirror run, blocking until complete. Per-file failures
// never stop the run; configuration and source-root problems abort it
// before any work is scheduled.
func Run(ctx context.Context, cfg Config) Result {
	srcInfo, err := os.Stat(cfg.Src)
	if err != nil {
		return Result{Err: fmt.Errorf("source: %w", err)}
	}
	if !srcInfo.IsDir() {
		return Result{Err: fmt.Errorf("source %s is not a directory", cfg.Src)}
	}

	classifier := NewClassifier(cfg.TranscodeFormats, cfg.TargetFormat, cfg.IncludeHidden)
	if classifier.TargetExt() == "" {
		return Result{Err: errors.New("no target format configured")}
	}
	if classifier.NeedsTranscode("x." + classifier.TargetExt()) {
		return Result{Err: fmt.Errorf(
			"target format %q is in the transcode set", classifier.TargetExt())}
	}

	if cfg.Tags == nil {
		cfg.Tags = tagio.TagLib{}
	}
	if cfg.Copier == nil {
		cfg.Copier = BuiltinCopier{}
	}
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	if !cfg.DryRun {
		if err := os.MkdirAll(cfg.Dst, 0o755); err != nil {
			return Result{Err: fmt.Errorf("create destination: %w", err)}
		}
		if cfg.TempDir != "" {
			if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
				return Result{Err: fmt.Errorf("create temp dir: %w", err)}
			}
		}
	}

	decider := &Decider{
		Tags:        cfg.Tags,
		EncoderOpts: cfg.EncoderOpts,
		Checksums:   cfg.Checksums,
		Force:       cfg.Force,
		DeltaCopier: cfg.Copier.Delta(),
	}

	emitEvent(cfg.Events, event.Event{Type: event.ScanStarted})

	scanner := NewScanner(ScannerConfig{
		SrcRoot:    cfg.Src,
		DstRoot:    cfg.Dst,
		Workers:    cfg.ScanWorkers,
		Classifier: classifier,
		Decider:    decider,
		Stats:      collector,
	})
	actions, scanErrs := scanner.Scan(ctx)

	// Unreadable paths inside the tree are charged to the file and the run
	// continues; only the root itself is fatal, and that was checked above.
	errsDone := make(chan struct{})
	go func() {
		defer close(errsDone)
		for err := range scanErrs {
			var se *ScanError
			path := "scan"
			if errors.As(err, &se) {
				path = se.Path
			}
			collector.AddFailure(path, err)
			emitEvent(cfg.Events, event.Event{Type: event.FileFailed, Path: path, Error: err})
		}
	}()

	pool := NewWorkerPool(WorkerConfig{
		NumWorkers:  cfg.Workers,
		DryRun:      cfg.DryRun,
		Checksums:   cfg.Checksums,
		TempDir:     cfg.TempDir,
		EncoderOpts: cfg.EncoderOpts,
		Transcoder:  cfg.Transcoder,
		Copier:      cfg.Copier,
		Tags:        cfg.Tags,
		Stats:       collector,
		Events:      cfg.Events,
	})
	defer pool.Close()

	// Tee the action stream into the pool while keeping a record for the
	// delete and verify passes. The send never deadlocks: workers drain
	// poolCh until it closes, even after cancellation. Reading planned is
	// safe once pool.Run returns, which the close orders after the tee.
	planned := make([]SyncAction, 0, 1024)
	poolCh := make(chan SyncAction, max(cfg.Workers, 1)*2)
	go func() {
		defer close(poolCh)
		for act := range actions {
			planned = append(planned, act)
			poolCh <- act
		}
		emitEvent(cfg.Events, event.Event{Type: event.ScanComplete, Total: int64(len(planned))})
	}()

	pool.Run(ctx, poolCh)
	<-errsDone

	if cfg.Delete && ctx.Err() == nil {
		deleted, err := DeleteExtraneous(ctx, DeleteConfig{
			DstRoot:    cfg.Dst,
			Expected:   expectedPaths(planned),
			Classifier: classifier,
			DryRun:     cfg.DryRun,
			Events:     cfg.Events,
		})
		collector.AddFilesDeleted(int64(deleted))
		if err != nil {
			return Result{Summary: collector.Snapshot(), Err: fmt.Errorf("delete pass: %w", err)}
		}
	}

	if cfg.Verify && !cfg.DryRun && ctx.Err() == nil {
		Verify(ctx, VerifyConfig{
			Workers:     cfg.Workers,
			Checksums:   cfg.Checksums,
			EncoderOpts: cfg.EncoderOpts,
			Tags:        cfg.Tags,
			Events:      cfg.Events,
			Stats:       collector,
		}, planned)
	}

	return Result{Summary: collector.Snapshot(), Err: ctx.Err()}
}

// expectedPaths returns the destination-relative paths the plan accounts
// for, which the delete pass treats as the complete legitimate set.
func expectedPaths(actions []SyncAction) map[string]struct{} {
	expected := make(map[string]struct{}, len(actions))
	for _, act := range actions {
		expected[filepath.ToSlash(act.DstRel)] = struct{}{}
	}
	return expected
}

