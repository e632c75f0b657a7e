package ui

import "github.com/vinylsync/vinyl/internal/event"

// Event is re-exported so presenter call sites read naturally.
type Event = event.Event

// Re-export event types for convenience.
const (
	ScanStarted    = event.ScanStarted
	ScanComplete   = event.ScanComplete
	FileStarted    = event.FileStarted
	FileSkipped    = event.FileSkipped
	FileCopied     = event.FileCopied
	FileTranscoded = event.FileTranscoded
	FileFailed     = event.FileFailed
	FileDeleted    = event.FileDeleted
	VerifyStarted  = event.VerifyStarted
	VerifyOK       = event.VerifyOK
	VerifyFailed   = event.VerifyFailed
)
