package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/vinylsync/vinyl/internal/event"
	"github.com/vinylsync/vinyl/internal/stats"
	"github.com/vinylsync/vinyl/internal/tagio"
)

// VerifyConfig controls the post-run audit pass.
type VerifyConfig struct {
	Workers     int
	Checksums   bool
	EncoderOpts []string
	Tags        tagio.Store
	Events      chan<- event.Event
	Stats       *stats.Collector
}

// VerifyResult holds the outcome of an audit pass.
type VerifyResult struct {
	Verified   int64
	Mismatched int64
	Errors     []VerifyError
}

// VerifyError records a single audit mismatch.
type VerifyError struct {
	Path string
	Want string
	Got  string
}

// Verify audits every planned action against what is on disk. Copied files
// are re-hashed on both sides; transcoded files are checked by comparing
// the fingerprint stored in the destination's tags against a fresh digest
// of the source. Mismatches are reported and counted but never repaired,
// so the audit itself cannot make anything worse.
func Verify(ctx context.Context, cfg VerifyConfig, actions []SyncAction) VerifyResult {
	emitEvent(cfg.Events, event.Event{Type: event.VerifyStarted})

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	taskCh := make(chan SyncAction, workers*2)
	var mu sync.Mutex
	var result VerifyResult
	var wg sync.WaitGroup

	record := func(act SyncAction, want, got string) {
		ok := want != "" && want == got
		mu.Lock()
		if ok {
			result.Verified++
		} else {
			result.Mismatched++
			result.Errors = append(result.Errors, VerifyError{Path: act.DstRel, Want: want, Got: got})
		}
		mu.Unlock()

		if ok {
			cfg.Stats.AddFilesVerified(1)
			emitEvent(cfg.Events, event.Event{Type: event.VerifyOK, Path: act.RelPath, DestPath: act.DstRel})
		} else {
			cfg.Stats.AddVerifyMismatch(1)
			emitEvent(cfg.Events, event.Event{Type: event.VerifyFailed, Path: act.RelPath, DestPath: act.DstRel})
		}
	}

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for act := range taskCh {
				if ctx.Err() != nil {
					continue
				}
				switch act.Intent {
				case Copy:
					want, got := verifyCopy(act)
					record(act, want, got)
				case Transcode:
					want, got := verifyTranscode(act, cfg)
					record(act, want, got)
				}
			}
		}()
	}

	for _, act := range actions {
		taskCh <- act
	}
	close(taskCh)
	wg.Wait()

	return result
}

func verifyCopy(act SyncAction) (want, got string) {
	want, err := HashFile(act.SrcPath)
	if err != nil {
		return "source unreadable", ""
	}
	got, err = HashFile(act.DstPath)
	if err != nil {
		return want, "destination unreadable"
	}
	return want, got
}

// verifyTranscode compares the digest stored on the destination against a
// fresh source digest. The stored value is read with an independent tag
// parser first so the writer never vouches for itself; containers that
// parser cannot handle fall back to the Store.
func verifyTranscode(act SyncAction, cfg VerifyConfig) (want, got string) {
	if !cfg.Checksums {
		// Without fingerprints the only checkable claim is existence.
		if _, err := os.Stat(act.DstPath); err != nil {
			return "destination present", "missing"
		}
		return "destination present", "destination present"
	}

	want = act.Fingerprint
	if want == "" {
		var err error
		if want, err = Fingerprint(act.SrcPath, cfg.EncoderOpts); err != nil {
			return "source unreadable", ""
		}
	}

	got, err := tagio.RawFingerprint(act.DstPath)
	if err != nil || got == "" {
		if got, err = tagio.ReadFingerprint(cfg.Tags, act.DstPath); err != nil {
			return want, "destination unreadable"
		}
	}
	if got == "" {
		return want, "no stored fingerprint"
	}
	return want, got
}

func emitEvent(ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
