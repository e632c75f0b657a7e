package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/vinylsync/vinyl/internal/event"
	"github.com/vinylsync/vinyl/internal/stats"
	"github.com/vinylsync/vinyl/internal/tagio"
)

// WorkerConfig controls worker behavior.
type WorkerConfig struct {
	NumWorkers  int
	DryRun      bool
	Checksums   bool
	TempDir     string
	EncoderOpts []string
	Transcoder  Transcoder
	Copier      Copier
	Tags        tagio.Store
	Stats       *stats.Collector
	Events      chan<- event.Event
}

// WorkerPool executes planned actions with bounded parallelism. Failures
// are charged to the file and recorded; they never stop the pool.
type WorkerPool struct {
	cfg WorkerConfig
}

// NewWorkerPool creates a pool; a non-positive worker count means one per
// CPU.
func NewWorkerPool(cfg WorkerConfig) *WorkerPool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}
	return &WorkerPool{cfg: cfg}
}

// Run consumes actions until the channel closes and blocks until the last
// one finishes. After ctx is cancelled the remaining actions are drained
// without executing, so producers never block; the action already in a
// worker's hands runs to its commit point.
func (wp *WorkerPool) Run(ctx context.Context, actions <-chan SyncAction) {
	var wg sync.WaitGroup
	for id := range wp.cfg.NumWorkers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for act := range actions {
				if ctx.Err() != nil {
					continue
				}
				wp.process(id, act)
			}
		}(id)
	}
	wg.Wait()
}

// Close removes any temp files still registered.
func (wp *WorkerPool) Close() {
	CleanupTmpFiles()
}

func (wp *WorkerPool) process(id int, act SyncAction) {
	switch act.Kind {
	case Skip:
		wp.cfg.Stats.AddFilesSkipped(1)
		wp.emit(event.Event{
			Type:     event.FileSkipped,
			Path:     act.RelPath,
			DestPath: act.DstRel,
			Size:     act.Size,
			WorkerID: id,
		})

	case Copy:
		wp.execute(id, act, event.FileCopied, func() error {
			return wp.cfg.Copier.Copy(act.SrcPath, act.DstPath, act.Mode, act.ModTime)
		})

	case Transcode:
		wp.execute(id, act, event.FileTranscoded, func() error {
			return wp.transcodeFile(act)
		})
	}
}

// execute runs one copy or transcode with shared bookkeeping: the started
// event, dry-run short-circuit, parent directory creation, and per-file
// failure accounting.
func (wp *WorkerPool) execute(id int, act SyncAction, done event.Type, fn func() error) {
	if wp.cfg.DryRun {
		wp.countDone(done, act.Size)
		wp.emit(event.Event{
			Type:     done,
			Path:     act.RelPath,
			DestPath: act.DstRel,
			Size:     act.Size,
			WorkerID: id,
			DryRun:   true,
		})
		return
	}

	wp.emit(event.Event{
		Type:     event.FileStarted,
		Path:     act.RelPath,
		DestPath: act.DstRel,
		Size:     act.Size,
		WorkerID: id,
	})

	if err := os.MkdirAll(filepath.Dir(act.DstPath), 0o755); err != nil {
		wp.fail(id, act, fmt.Errorf("create parent dir: %w", err))
		return
	}
	if err := fn(); err != nil {
		wp.fail(id, act, err)
		return
	}

	wp.countDone(done, act.Size)
	wp.emit(event.Event{
		Type:     done,
		Path:     act.RelPath,
		DestPath: act.DstRel,
		Size:     act.Size,
		WorkerID: id,
	})
}

func (wp *WorkerPool) countDone(done event.Type, size int64) {
	switch done {
	case event.FileCopied:
		wp.cfg.Stats.AddFilesCopied(1)
		wp.cfg.Stats.AddBytesCopied(size)
	case event.FileTranscoded:
		wp.cfg.Stats.AddFilesTranscoded(1)
	}
}

func (wp *WorkerPool) fail(id int, act SyncAction, err error) {
	wp.cfg.Stats.AddFailure(act.RelPath, err)
	wp.emit(event.Event{
		Type:     event.FileFailed,
		Path:     act.RelPath,
		DestPath: act.DstRel,
		Error:    err,
		WorkerID: id,
	})
}

// emit sends without blocking; a slow consumer loses events rather than
// stalling the pool.
func (wp *WorkerPool) emit(e event.Event) {
	if wp.cfg.Events == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case wp.cfg.Events <- e:
	default:
	}
}
