package stats

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks mirror run statistics using lock-free atomic counters.
// Workers update it concurrently; presenters read from it.
type Collector struct {
	filesScanned     atomic.Int64
	filesSkipped     atomic.Int64
	filesCopied      atomic.Int64
	filesTranscoded  atomic.Int64
	filesFailed      atomic.Int64
	filesDeleted     atomic.Int64
	filesVerified    atomic.Int64
	verifyMismatches atomic.Int64
	bytesCopied      atomic.Int64
	startTime        time.Time

	// Failure reasons keyed by source-relative path. Map updates cannot
	// be atomic, so these take the lock.
	mu       sync.Mutex
	failures map[string]string
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) AddFilesScanned(n int64)    { c.filesScanned.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)    { c.filesSkipped.Add(n) }
func (c *Collector) AddFilesCopied(n int64)     { c.filesCopied.Add(n) }
func (c *Collector) AddFilesTranscoded(n int64) { c.filesTranscoded.Add(n) }
func (c *Collector) AddFilesDeleted(n int64)    { c.filesDeleted.Add(n) }
func (c *Collector) AddFilesVerified(n int64)   { c.filesVerified.Add(n) }
func (c *Collector) AddVerifyMismatch(n int64)  { c.verifyMismatches.Add(n) }
func (c *Collector) AddBytesCopied(n int64)     { c.bytesCopied.Add(n) }

// AddFailure records a per-file failure with its reason. The failed counter
// and the reason map are updated together so they never disagree.
func (c *Collector) AddFailure(relPath string, reason error) {
	c.filesFailed.Add(1)
	msg := "unknown error"
	if reason != nil {
		msg = reason.Error()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures == nil {
		c.failures = make(map[string]string)
	}
	c.failures[relPath] = msg
}

// Snapshot is a point-in-time read of all counters plus the failure map.
// The engine returns one as the final run summary.
type Snapshot struct {
	FilesScanned     int64
	FilesSkipped     int64
	FilesCopied      int64
	FilesTranscoded  int64
	FilesFailed      int64
	FilesDeleted     int64
	FilesVerified    int64
	VerifyMismatches int64
	BytesCopied      int64
	Elapsed          time.Duration
	Failures         map[string]string
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	failures := make(map[string]string, len(c.failures))
	for k, v := range c.failures {
		failures[k] = v
	}
	c.mu.Unlock()

	return Snapshot{
		FilesScanned:     c.filesScanned.Load(),
		FilesSkipped:     c.filesSkipped.Load(),
		FilesCopied:      c.filesCopied.Load(),
		FilesTranscoded:  c.filesTranscoded.Load(),
		FilesFailed:      c.filesFailed.Load(),
		FilesDeleted:     c.filesDeleted.Load(),
		FilesVerified:    c.filesVerified.Load(),
		VerifyMismatches: c.verifyMismatches.Load(),
		BytesCopied:      c.bytesCopied.Load(),
		Elapsed:          c.Elapsed(),
		Failures:         failures,
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// FailedPaths returns the failed relative paths in sorted order.
func (s Snapshot) FailedPaths() []string {
	paths := make([]string, 0, len(s.Failures))
	for p := range s.Failures {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"scanned=%d skipped=%d copied=%d transcoded=%d failed=%d deleted=%d",
		s.FilesScanned, s.FilesSkipped, s.FilesCopied,
		s.FilesTranscoded, s.FilesFailed, s.FilesDeleted,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
