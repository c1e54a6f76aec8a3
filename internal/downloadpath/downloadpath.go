// Package downloadpath resolves the destination root for received files and
// disambiguates colliding filenames (spec.md §6 "File system").
package downloadpath

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store holds the process-wide, rarely-mutated download path override
// (spec.md §5 "Shared state": read-biased synchronization).
type Store struct {
	mu       sync.RWMutex
	override string
}

// NewStore creates a Store with no override configured.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the override; an empty string clears it.
func (s *Store) Set(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = path
}

// Root resolves the destination root: the configured override, else the
// OS "Downloads" directory, else the user's home directory, else "/"
// (spec.md §6).
func (s *Store) Root() string {
	s.mu.RLock()
	override := s.override
	s.mu.RUnlock()
	if override != "" {
		return override
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		downloads := filepath.Join(home, "Downloads")
		if info, err := os.Stat(downloads); err == nil && info.IsDir() {
			return downloads
		}
		return home
	}
	return "/"
}

// Disambiguate returns a destination path under root for name, appending an
// "N_" prefix (N starting at 1) until the path does not collide with an
// existing file (spec.md §3/§6, Testable Property #7).
func Disambiguate(root, name string) (string, error) {
	return DisambiguateBatch(root, name, nil)
}

// DisambiguateBatch is Disambiguate, plus rejection of any path already in
// claimed. Destination files for a single Introduction are all resolved
// before any of them is created on disk (consent happens afterwards), so two
// same-named FileMetadata entries in one batch would otherwise both resolve
// to the same not-yet-existing path. Callers must add the returned path to
// claimed before resolving the next name in the batch (spec.md §8 Testable
// Property #7: same filename introduced K times -> pairwise distinct
// destinations, including within one batch).
func DisambiguateBatch(root, name string, claimed map[string]struct{}) (string, error) {
	candidate := filepath.Join(root, name)
	for n := 0; ; n++ {
		if n > 0 {
			candidate = filepath.Join(root, fmt.Sprintf("%d_%s", n, name))
		}
		exists, err := pathExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists && !inClaimed(candidate, claimed) {
			return candidate, nil
		}
	}
}

func inClaimed(candidate string, claimed map[string]struct{}) bool {
	if claimed == nil {
		return false
	}
	_, ok := claimed[candidate]
	return ok
}

func pathExists(candidate string) (bool, error) {
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("downloadpath: stat %s: %w", candidate, err)
	}
	return true, nil
}
