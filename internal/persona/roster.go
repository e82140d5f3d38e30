package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Roster is the on-disk persona definition file.
type Roster struct {
	Personas []Persona `yaml:"personas"`
}

// LoadRoster reads and validates a YAML roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}
	if len(roster.Personas) == 0 {
		return nil, fmt.Errorf("roster %s defines no personas", path)
	}
	seen := make(map[string]bool)
	for i := range roster.Personas {
		p := &roster.Personas[i]
		if err := validateID(p.ID); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate persona id %q in roster", p.ID)
		}
		seen[p.ID] = true
		if p.BasePrompt == "" {
			return nil, fmt.Errorf("persona %q has no base_prompt", p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
	}
	return &roster, nil
}

// Apply registers every roster persona into the registry. Existing
// personas keep their runtime overlays.
func (ro *Roster) Apply(reg *Registry) error {
	for _, p := range ro.Personas {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Watcher reloads the roster into a registry whenever the file changes.
// Editors often replace files via rename, so the parent directory is
// watched rather than the file itself.
type Watcher struct {
	path    string
	reg     *Registry
	fsw     *fsnotify.Watcher
	onError func(error)

	closeOnce sync.Once
	done      chan struct{}
}

// WatchRoster starts watching path and applying reloads to reg. onError
// is called for reload failures and may be nil.
func WatchRoster(path string, reg *Registry, onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	w := &Watcher{
		path:    path,
		reg:     reg,
		fsw:     fsw,
		onError: onError,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	base := filepath.Base(w.path)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			roster, err := LoadRoster(w.path)
			if err != nil {
				w.reportError(err)
				continue
			}
			if err := roster.Apply(w.reg); err != nil {
				w.reportError(err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
