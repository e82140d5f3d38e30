// Package artifact tracks session-scoped artifacts behind opaque tokens
// so large payloads can be passed between personas by reference.
package artifact

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ErrUnknownToken is returned when resolving a token that was never minted.
var ErrUnknownToken = errors.New("unknown artifact token")

// tokenPattern matches minted tokens embedded in text.
var tokenPattern = regexp.MustCompile(`ASSET_[A-Z0-9]+_\d+_\d+`)

// Artifact is a stored payload with its minted token.
type Artifact struct {
	Token     string    `json:"token"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	Producer  string    `json:"producer,omitempty"` // persona ID that minted it
	CreatedAt time.Time `json:"created_at"`
}

// Registry holds artifacts for the lifetime of a session.
type Registry struct {
	mu        sync.Mutex
	artifacts map[string]Artifact
	order     []string
	seq       uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{artifacts: make(map[string]Artifact)}
}

// Mint stores a payload and returns its token. Kind is uppercased into
// the token; the sequence suffix disambiguates mints within the same
// millisecond.
func (r *Registry) Mint(kind, payload, producer string) Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	kind = normalizeKind(kind)
	now := time.Now()
	a := Artifact{
		Token:     fmt.Sprintf("ASSET_%s_%d_%d", kind, now.UnixMilli(), r.seq),
		Kind:      kind,
		Payload:   payload,
		Producer:  producer,
		CreatedAt: now,
	}
	r.artifacts[a.Token] = a
	r.order = append(r.order, a.Token)
	return a
}

// Resolve returns the artifact for a token, or ErrUnknownToken.
func (r *Registry) Resolve(token string) (Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[token]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return a, nil
}

// List returns all artifacts in mint order.
func (r *Registry) List() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Artifact, 0, len(r.order))
	for _, tok := range r.order {
		out = append(out, r.artifacts[tok])
	}
	return out
}

// Expand replaces every known token in text with its payload. Unknown
// tokens are left as-is so the caller can surface them verbatim.
func (r *Registry) Expand(text string) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		r.mu.Lock()
		a, ok := r.artifacts[tok]
		r.mu.Unlock()
		if !ok {
			return tok
		}
		return a.Payload
	})
}

// Tokens extracts all token-shaped strings from text, in order of
// appearance, without checking they resolve.
func Tokens(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Export captures all artifacts for a snapshot.
func (r *Registry) Export() []Artifact {
	return r.List()
}

// Restore replaces the registry contents wholesale.
func (r *Registry) Restore(artifacts []Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = make(map[string]Artifact, len(artifacts))
	r.order = r.order[:0]
	for _, a := range artifacts {
		if a.Token == "" {
			continue
		}
		r.artifacts[a.Token] = a
		r.order = append(r.order, a.Token)
	}
	// Keep minting unique after restore.
	r.seq += uint64(len(artifacts))
}

func normalizeKind(kind string) string {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	var b strings.Builder
	for _, c := range kind {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "BLOB"
	}
	return b.String()
}
