package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/vinylsync/vinyl/internal/stats"
)

var (
	verbCopy      = color.New(color.FgGreen)
	verbTranscode = color.New(color.FgCyan)
	verbDelete    = color.New(color.FgYellow)
	verbFail      = color.New(color.FgRed, color.Bold)
)

// plainPresenter outputs one line per completed file. Skips only show up
// in verbose mode; on a large settled library they would drown everything
// else out.
type plainPresenter struct {
	w       io.Writer
	stats   *stats.Collector
	verbose bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	for ev := range events {
		p.handleEvent(ev)
	}
	return nil
}

func (p *plainPresenter) handleEvent(ev Event) {
	prefix := ""
	if ev.DryRun {
		prefix = "would "
	}

	switch ev.Type {
	case ScanComplete:
		if p.verbose {
			fmt.Fprintf(p.w, "planned %s actions\n", FormatCount(ev.Total))
		}
	case FileCopied:
		fmt.Fprintf(p.w, "%s%s  %s  %s\n",
			prefix, verbCopy.Sprint("copy"), ev.Path, FormatBytes(ev.Size))
	case FileTranscoded:
		fmt.Fprintf(p.w, "%s%s  %s -> %s\n",
			prefix, verbTranscode.Sprint("transcode"), ev.Path, ev.DestPath)
	case FileSkipped:
		if p.verbose {
			fmt.Fprintf(p.w, "skip  %s\n", ev.Path)
		}
	case FileDeleted:
		fmt.Fprintf(p.w, "%s%s  %s\n", prefix, verbDelete.Sprint("delete"), ev.Path)
	case FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n", verbFail.Sprint("fail"), ev.Path, errMsg)
	case VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case VerifyFailed:
		fmt.Fprintf(p.w, "%s %s\n", verbFail.Sprint("MISMATCH:"), ev.DestPath)
	case VerifyOK:
		// silent in plain mode
	}
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
