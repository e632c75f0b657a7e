package tool

// DefaultRsyncPath is used when config and flags name no delta copier.
const DefaultRsyncPath = "rsync"

// Rsync copies files by invoking an rsync-compatible binary, which skips
// unchanged content by itself.
type Rsync struct {
	Path string
}

// NewRsync returns an adapter for the given binary path. Empty means
// DefaultRsyncPath.
func NewRsync(path string) *Rsync {
	if path == "" {
		path = DefaultRsyncPath
	}
	return &Rsync{Path: path}
}

// Probe reports whether the binary can be found.
func (r *Rsync) Probe() error {
	return probe(r.Path)
}

// Version returns the first line of `--version` output.
func (r *Rsync) Version() (string, error) {
	return version(r.Path, "--version")
}

// CopyArgs builds the argument list for one copy. -q keeps the tool
// silent, -p carries permissions over, and -t mtimes so later runs can
// compare timestamps.
func (r *Rsync) CopyArgs(src, dst string) []string {
	return []string{"-q", "-p", "-t", src, dst}
}

// Copy transfers src to dst, delta-skipping when dst already matches.
func (r *Rsync) Copy(src, dst string) error {
	return run(r.Path, r.CopyArgs(src, dst)...)
}
