package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	FileStarted
	FileSkipped
	FileCopied
	FileTranscoded
	FileFailed
	FileDeleted
	VerifyStarted
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	ScanStarted:    "ScanStarted",
	ScanComplete:   "ScanComplete",
	FileStarted:    "FileStarted",
	FileSkipped:    "FileSkipped",
	FileCopied:     "FileCopied",
	FileTranscoded: "FileTranscoded",
	FileFailed:     "FileFailed",
	FileDeleted:    "FileDeleted",
	VerifyStarted:  "VerifyStarted",
	VerifyOK:       "VerifyOK",
	VerifyFailed:   "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // source-relative path
	DestPath  string // destination-relative path, set when it differs from Path
	Size      int64  // bytes involved, when known
	Total     int64  // pending action count (ScanComplete)
	Error     error
	WorkerID  int
	DryRun    bool
}
