package engine

import (
	"os"
	"sync"
)

// tmpRegistry tracks in-flight temp files so an aborted run can sweep up
// after itself. Workers register before writing and deregister after the
// rename; whatever is left at shutdown never made it to a real name.
type tmpRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

var globalTmpRegistry tmpRegistry

func (r *tmpRegistry) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = make(map[string]struct{})
	}
	r.paths[path] = struct{}{}
}

func (r *tmpRegistry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

func (r *tmpRegistry) drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.paths))
	for p := range r.paths {
		paths = append(paths, p)
	}
	r.paths = nil
	return paths
}

// RegisterTmp adds a temp file path to the cleanup registry.
func RegisterTmp(path string) {
	globalTmpRegistry.add(path)
}

// DeregisterTmp removes a temp file path from the cleanup registry.
func DeregisterTmp(path string) {
	globalTmpRegistry.remove(path)
}

// CleanupTmpFiles removes every registered temp file.
func CleanupTmpFiles() {
	for _, p := range globalTmpRegistry.drain() {
		_ = os.Remove(p)
	}
}
