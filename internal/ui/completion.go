package ui

import (
	"fmt"

	"github.com/vinylsync/vinyl/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  transcoded 214  copied 1,893  skipped 48,917  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	icon := "✓"
	if snap.FilesFailed > 0 || snap.VerifyMismatches > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  transcoded %s  copied %s  skipped %s  time %s",
		icon,
		FormatCount(snap.FilesTranscoded),
		FormatCount(snap.FilesCopied),
		FormatCount(snap.FilesSkipped),
		FormatDuration(snap.Elapsed),
	)

	if snap.BytesCopied > 0 {
		base += fmt.Sprintf("  size %s", FormatBytes(snap.BytesCopied))
	}
	if snap.FilesDeleted > 0 {
		base += fmt.Sprintf("  deleted %s", FormatCount(snap.FilesDeleted))
	}
	if snap.FilesVerified > 0 || snap.VerifyMismatches > 0 {
		base += fmt.Sprintf("  verified %s", FormatCount(snap.FilesVerified))
	}

	base += fmt.Sprintf("  errors %d", snap.FilesFailed+snap.VerifyMismatches)

	return base
}
