package engine

import (
	"io/fs"
	"time"
)

// ActionKind identifies how a source file is handled.
type ActionKind int

const (
	Skip ActionKind = iota
	Copy
	Transcode
)

var kindNames = [...]string{
	Skip:      "skip",
	Copy:      "copy",
	Transcode: "transcode",
}

func (k ActionKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// SyncAction describes the planned handling of a single source file. The
// scanner produces decided actions; the worker pool executes them.
//
// Intent is what classification wanted (Copy or Transcode); Kind is the
// decision after the up-to-date check and may be Skip. The verify pass
// needs Intent because a skipped transcode and a skipped copy are audited
// differently.
type SyncAction struct {
	SrcPath     string      // absolute source path
	DstPath     string      // absolute destination path
	RelPath     string      // source-relative path
	DstRel      string      // destination-relative path, differs on transcode
	Fingerprint string      // source fingerprint, set when checksums drove the decision
	ModTime     time.Time   // source mtime
	Size        int64       // source size in bytes
	Mode        fs.FileMode // source permission bits
	Intent      ActionKind
	Kind        ActionKind
}
