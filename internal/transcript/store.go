package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// JSONL record types.
const (
	RecordTypeHeader = "header" // session metadata, first line
	RecordTypeEntry  = "entry"  // one transcript entry
	RecordTypeFooter = "footer" // closing metadata, last line
)

// JSONLRecord wraps each persisted line with type discrimination.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// Header fields
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Entry fields
	ScopeID   string `json:"scope,omitempty"`
	ScopeKind string `json:"scope_kind,omitempty"`
	*Entry    `json:",omitempty"`

	// Footer fields
	Scopes    int       `json:"scopes,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileStore persists transcript logs as JSONL, one file per session.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-based store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file a session log is stored at.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Save writes the full log: header, then every scope's entries in scope
// creation order, then a footer.
func (s *FileStore) Save(l *Log) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}

	f, err := os.Create(s.Path(l.ID))
	if err != nil {
		return fmt.Errorf("failed to create transcript file: %w", err)
	}
	defer f.Close()

	header := JSONLRecord{
		RecordType: RecordTypeHeader,
		ID:         l.ID,
		CreatedAt:  l.CreatedAt,
	}
	if err := writeLine(f, header); err != nil {
		return err
	}

	scopes := l.Scopes()
	for _, sc := range scopes {
		for _, e := range sc.History() {
			entry := e
			record := JSONLRecord{
				RecordType: RecordTypeEntry,
				ScopeID:    sc.ID,
				ScopeKind:  sc.Kind,
				Entry:      &entry,
			}
			if err := writeLine(f, record); err != nil {
				return err
			}
		}
	}

	footer := JSONLRecord{
		RecordType: RecordTypeFooter,
		Scopes:     len(scopes),
		UpdatedAt:  time.Now(),
	}
	return writeLine(f, footer)
}

func writeLine(f *os.File, record JSONLRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	_, err = f.WriteString("\n")
	return err
}

// Load reads a session log back from disk.
func (s *FileStore) Load(id string) (*Log, error) {
	return LoadFile(s.Path(id))
}

// LoadFile reads a transcript JSONL file at an arbitrary path.
func LoadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l := &Log{scopes: make(map[string]*Scope)}

	// bufio.Reader rather than Scanner: entries can exceed line limits.
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(bytes.TrimSpace(line)) > 0 {
					if parseErr := parseLine(line, l); parseErr != nil {
						return nil, parseErr
					}
				}
				break
			}
			return nil, fmt.Errorf("error reading transcript: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := parseLine(line, l); err != nil {
			return nil, err
		}
	}

	// Restore per-scope sequence counters from the last entry.
	for _, sc := range l.Scopes() {
		if n := len(sc.Entries); n > 0 {
			sc.seqCounter = sc.Entries[n-1].SeqID
		}
	}
	return l, nil
}

func parseLine(line []byte, l *Log) error {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse transcript line: %w", err)
	}

	switch record.RecordType {
	case RecordTypeHeader:
		l.ID = record.ID
		l.CreatedAt = record.CreatedAt
	case RecordTypeEntry:
		if record.Entry != nil {
			kind := record.ScopeKind
			if kind == "" {
				kind = KindDirect
			}
			sc := l.Scope(record.ScopeID, kind)
			sc.Entries = append(sc.Entries, *record.Entry)
		}
	case RecordTypeFooter:
		// Footer carries no state the entries don't already have.
	}
	return nil
}

// List returns the IDs of all stored session logs, newest first by
// modification time.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type candidate struct {
		id  string
		mod time.Time
	}
	var found []candidate
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".jsonl")]
		found = append(found, candidate{id: id, mod: info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })
	ids := make([]string, len(found))
	for i, c := range found {
		ids[i] = c.id
	}
	return ids, nil
}
