package engine

import (
	"fmt"
	"os"

	"github.com/vinylsync/vinyl/internal/tagio"
)

// Decider determines whether a planned action can be skipped because the
// destination is already up to date.
type Decider struct {
	Tags        tagio.Store
	EncoderOpts []string
	Checksums   bool
	Force       bool
	DeltaCopier bool // an external delta tool handles plain copies
}

// Decide resolves act.Kind, downgrading the planned Copy or Transcode to
// Skip when the destination needs no work. For checksum-driven decisions
// the computed source fingerprint is left on the action so the executor
// and the verify pass reuse it instead of hashing again.
func (d *Decider) Decide(act *SyncAction) error {
	if d.Force {
		return nil
	}

	dstInfo, err := os.Stat(act.DstPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing there yet, planned kind stands
		}
		return fmt.Errorf("stat %s: %w", act.DstPath, err)
	}

	switch act.Intent {
	case Transcode:
		return d.decideTranscode(act, dstInfo)
	case Copy:
		d.decideCopy(act, dstInfo)
	}
	return nil
}

func (d *Decider) decideTranscode(act *SyncAction, dstInfo os.FileInfo) error {
	if !d.Checksums {
		// Without fingerprints only timestamps are available.
		if !dstInfo.ModTime().Before(act.ModTime) {
			act.Kind = Skip
		}
		return nil
	}

	want, err := Fingerprint(act.SrcPath, d.EncoderOpts)
	if err != nil {
		return err
	}
	act.Fingerprint = want

	stored, err := tagio.ReadFingerprint(d.Tags, act.DstPath)
	if err != nil || stored == "" {
		// Unreadable or untagged destinations are re-transcoded. An mtime
		// comparison proves nothing about content that crossed an encoder.
		return nil
	}
	if stored == want {
		act.Kind = Skip
	}
	return nil
}

func (d *Decider) decideCopy(act *SyncAction, dstInfo os.FileInfo) {
	if d.DeltaCopier {
		// The delta tool re-checks and skips on its own; handing it the
		// file is cheaper than second-guessing it here.
		return
	}
	if dstInfo.Size() == act.Size && !dstInfo.ModTime().Before(act.ModTime) {
		act.Kind = Skip
	}
}
