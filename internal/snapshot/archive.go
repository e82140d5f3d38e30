package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Archive keeps a rolling history of snapshot documents in a
// directory, one timestamped file per capture, so a bad restore can
// fall back to an earlier state.
type Archive struct {
	dir string
	mu  sync.Mutex
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{dir: dir}, nil
}

// Save writes the document under a timestamped name and returns it.
func (a *Archive) Save(doc Document) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := doc.Meta.Timestamp.UTC().Format("20060102T150405") + ".json"
	if err := WriteFile(filepath.Join(a.dir, name), doc); err != nil {
		return "", err
	}
	return name, nil
}

// List returns archived snapshot names, newest first.
func (a *Archive) List() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Load reads one archived snapshot by name.
func (a *Archive) Load(name string) (Document, error) {
	return ReadFile(filepath.Join(a.dir, name))
}

// Latest loads the most recent archived snapshot.
func (a *Archive) Latest() (Document, error) {
	names, err := a.List()
	if err != nil {
		return Document{}, err
	}
	if len(names) == 0 {
		return Document{}, fmt.Errorf("archive is empty")
	}
	return a.Load(names[0])
}

// Prune deletes all but the newest keep snapshots.
func (a *Archive) Prune(keep int) error {
	if keep < 0 {
		keep = 0
	}
	names, err := a.List()
	if err != nil {
		return err
	}
	for _, name := range names[min(keep, len(names)):] {
		if err := os.Remove(filepath.Join(a.dir, name)); err != nil {
			return fmt.Errorf("failed to prune %s: %w", name, err)
		}
	}
	return nil
}
