// Package snapshot serializes the full engine state to a versioned
// JSON document and restores it wholesale.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/deepfish/engine/internal/artifact"
	"github.com/deepfish/engine/internal/game"
	"github.com/deepfish/engine/internal/memo"
	"github.com/deepfish/engine/internal/memory"
	"github.com/deepfish/engine/internal/persona"
	"github.com/deepfish/engine/internal/transcript"
)

// EngineTag identifies documents produced by this engine. Decode
// rejects anything else.
const EngineTag = "deepfish-core"

// Version is the current document version. Older versions decode;
// newer ones are rejected.
const Version = 1

// ErrInvalidFormat is returned for documents that are not parseable
// snapshots of this engine.
var ErrInvalidFormat = errors.New("invalid snapshot format")

// Meta identifies a snapshot document.
type Meta struct {
	Engine    string    `json:"engine"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// State is everything the engine persists.
type State struct {
	Personas   []persona.Persona             `json:"personas"`
	Scopes     map[string][]transcript.Entry `json:"scopes"`
	ScopeKinds map[string]string             `json:"scope_kinds,omitempty"`
	Activity   []transcript.FeedItem         `json:"activity,omitempty"`
	Memos      []memo.Thread                 `json:"memos,omitempty"`
	Memories   map[string][]memory.Entry     `json:"memories,omitempty"`
	Artifacts  []artifact.Artifact           `json:"artifacts,omitempty"`
	Raffle     map[string]game.State         `json:"raffle,omitempty"`
	Override   bool                          `json:"override,omitempty"`
}

// Document is a complete snapshot.
type Document struct {
	Meta  Meta  `json:"meta"`
	State State `json:"state"`
}

// New wraps state in a current-version document.
func New(state State) Document {
	return Document{
		Meta: Meta{
			Engine:    EngineTag,
			Version:   Version,
			Timestamp: time.Now(),
		},
		State: state,
	}
}

// Encode writes the document as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads and validates a snapshot document.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if doc.Meta.Engine != EngineTag {
		return Document{}, fmt.Errorf("%w: engine tag %q", ErrInvalidFormat, doc.Meta.Engine)
	}
	if doc.Meta.Version > Version {
		return Document{}, fmt.Errorf("%w: version %d is newer than supported %d", ErrInvalidFormat, doc.Meta.Version, Version)
	}
	return doc, nil
}

// WriteFile encodes the document to path.
func WriteFile(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()
	return Encode(f, doc)
}

// ReadFile decodes a document from path.
func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
