package engine

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vinylsync/vinyl/internal/tool"
	"golang.org/x/sys/unix"
)

// Copier transfers one non-transcode file, preserving permission bits
// and mtime. The parent directory of dst already exists. Delta reports
// whether the copier skips unchanged destinations on its own, in which
// case the decision engine hands it every copy candidate.
type Copier interface {
	Copy(src, dst string, mode fs.FileMode, modTime time.Time) error
	Name() string
	Delta() bool
}

// RsyncCopier delegates to an external rsync, which delta-skips unchanged
// destinations on its own and already writes through a temp name.
type RsyncCopier struct {
	rsync *tool.Rsync
}

// NewRsyncCopier wraps the given rsync adapter.
func NewRsyncCopier(r *tool.Rsync) *RsyncCopier {
	return &RsyncCopier{rsync: r}
}

func (c *RsyncCopier) Name() string { return "rsync" }
func (c *RsyncCopier) Delta() bool  { return true }

func (c *RsyncCopier) Copy(src, dst string, _ fs.FileMode, _ time.Time) error {
	return c.rsync.Copy(src, dst)
}

// BuiltinCopier streams the file through a hidden temp name next to the
// destination and renames it into place.
type BuiltinCopier struct{}

func (BuiltinCopier) Name() string { return "builtin" }
func (BuiltinCopier) Delta() bool  { return false }

func (BuiltinCopier) Copy(src, dst string, mode fs.FileMode, modTime time.Time) error {
	return atomicCopyFile(src, dst, mode, modTime)
}

// tmpName builds a unique hidden work name for base. With keepExt the
// destination extension is preserved, which transcode temps need because
// encoders infer the container format from it.
func tmpName(base string, keepExt bool) string {
	id := uuid.New().String()[:8]
	if !keepExt {
		return fmt.Sprintf(".%s.%s.vinyl-tmp", base, id)
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf(".%s.%s.vinyl-tmp%s", strings.TrimSuffix(base, ext), id, ext)
}

func atomicCopyFile(src, dst string, mode fs.FileMode, modTime time.Time) error {
	tmpPath := filepath.Join(filepath.Dir(dst), tmpName(filepath.Base(dst), false))

	RegisterTmp(tmpPath)
	defer func() {
		DeregisterTmp(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		return fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	buf := make([]byte, 128*1024)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}

	// Carry the source mtime before rename so a half-set file can never
	// look up to date.
	if err := setFileTimes(out, modTime); err != nil {
		out.Close()
		return fmt.Errorf("set mtime %s: %w", dst, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}
	return nil
}

func setFileTimes(f *os.File, modTime time.Time) error {
	ts := unix.NsecToTimespec(modTime.UnixNano())
	times := []unix.Timespec{ts, ts}
	if err := unix.UtimesNanoAt(int(f.Fd()), "", times, unix.AT_EMPTY_PATH); err != nil {
		// Fallback: some systems don't support AT_EMPTY_PATH.
		if err2 := unix.UtimesNanoAt(unix.AT_FDCWD, f.Name(), times, 0); err2 != nil {
			return fmt.Errorf("utimensat: %w", err)
		}
	}
	return nil
}
