// Package tracker implements the change tracker (C4): per-path content
// hashes used to skip unchanged manpages on incremental rebuilds.
package tracker

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

// Tracker is a path-to-hash map persisted as JSON next to the vector index.
type Tracker struct {
	Files map[string]string `json:"files"`

	path string
}

// Load reads the tracker file at path, or returns an empty Tracker if it
// does not exist yet (§4.4 load).
func Load(path string) (*Tracker, error) {
	t := &Tracker{Files: map[string]string{}, path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, err
	}
	if t.Files == nil {
		t.Files = map[string]string{}
	}
	t.path = path
	return t, nil
}

// Save atomically rewrites the tracker file via write-to-temp then rename
// (§4.4, §5).
func (t *Tracker) Save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}

// Filter splits paths into those that are new or changed since the last
// save, and a count of paths that are unchanged. A hash failure for a path
// is treated as "changed" — never fatal (§4.4).
func (t *Tracker) Filter(paths []string) (changed []string, unchangedCount int) {
	for _, p := range paths {
		hash, err := hashFile(p)
		if err != nil {
			changed = append(changed, p)
			continue
		}
		if stored, ok := t.Files[p]; ok && stored == hash {
			unchangedCount++
			continue
		}
		changed = append(changed, p)
	}
	return changed, unchangedCount
}

// UpdateHashes records the current content hash for each path. Paths that
// fail to hash are silently skipped, leaving any prior entry untouched.
func (t *Tracker) UpdateHashes(paths []string) {
	for _, p := range paths {
		hash, err := hashFile(p)
		if err != nil {
			continue
		}
		t.Files[p] = hash
	}
}

// PruneMissing removes entries for paths that no longer exist on disk,
// returning the number removed.
func (t *Tracker) PruneMissing() int {
	removed := 0
	for p := range t.Files {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			delete(t.Files, p)
			removed++
		}
	}
	return removed
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	r := bufio.NewReaderSize(f, 8192)
	if _, err := r.WriteTo(h); err != nil {
		return "", err
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum), nil
}
