package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/vinylsync/vinyl/internal/tagio"
)

// Transcoder converts a source file into dst. dst carries the target
// extension even when it is a temp name, because encoders infer the
// container format from it.
type Transcoder interface {
	Transcode(src, dst string, encoderOpts []string) error
}

// transcodeFile converts one source into its destination format. The encoder
// writes to a temp name carrying the target extension, tags are transferred
// onto the temp, and only then does the file take its real name. A failure
// at any step leaves the destination untouched.
func (wp *WorkerPool) transcodeFile(act SyncAction) error {
	if wp.cfg.Transcoder == nil {
		return errors.New("no transcoder configured")
	}

	stageDir := filepath.Dir(act.DstPath)
	if wp.cfg.TempDir != "" {
		stageDir = wp.cfg.TempDir
	}
	tmpPath := filepath.Join(stageDir, tmpName(filepath.Base(act.DstPath), true))

	RegisterTmp(tmpPath)
	defer func() {
		DeregisterTmp(tmpPath)
		_ = os.Remove(tmpPath) // no-op once promoted
	}()

	if err := wp.cfg.Transcoder.Transcode(act.SrcPath, tmpPath, wp.cfg.EncoderOpts); err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	// Some encoders exit 0 after writing nothing for inputs they cannot
	// handle.
	if info, err := os.Stat(tmpPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("transcoder produced no output for %s", act.RelPath)
	}

	var extra map[string]string
	if wp.cfg.Checksums {
		fp := act.Fingerprint
		if fp == "" {
			var err error
			if fp, err = Fingerprint(act.SrcPath, wp.cfg.EncoderOpts); err != nil {
				return err
			}
		}
		extra = map[string]string{tagio.FingerprintTag: fp}
	}
	if err := tagio.CopyTags(wp.cfg.Tags, act.SrcPath, tmpPath, extra); err != nil {
		return fmt.Errorf("transfer tags: %w", err)
	}

	// Carry source permission bits; losing them is not worth losing the
	// encode.
	_ = os.Chmod(tmpPath, act.Mode.Perm())

	return promoteTmp(tmpPath, act.DstPath)
}

// promoteTmp renames tmp into place. A temp staged on another filesystem
// fails rename with EXDEV and is first re-staged next to its destination,
// so the step that makes the file visible is still a same-device rename.
func promoteTmp(tmpPath, dst string) error {
	err := os.Rename(tmpPath, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}

	info, statErr := os.Stat(tmpPath)
	if statErr != nil {
		return fmt.Errorf("stat staged %s: %w", tmpPath, statErr)
	}
	return atomicCopyFile(tmpPath, dst, info.Mode(), info.ModTime())
}
