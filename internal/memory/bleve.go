package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
)

// BleveStore implements Store on a Bleve index, giving memories BM25
// recall across restarts.
type BleveStore struct {
	mu    sync.RWMutex
	index bleve.Index
}

// memoryDocument is the indexed form of an Entry.
type memoryDocument struct {
	Persona   string    `json:"persona"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	Trigger   string    `json:"trigger,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBleveStore opens or creates an index at path.
func NewBleveStore(path string) (*BleveStore, error) {
	var index bleve.Index
	var err error
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create memory index: %w", err)
		}
	} else {
		index, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory index: %w", err)
		}
	}
	return &BleveStore{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	keywordField := bleve.NewKeywordFieldMapping()
	dateField := bleve.NewDateTimeFieldMapping()

	docMapping.AddFieldMappingsAt("content", textField)
	docMapping.AddFieldMappingsAt("trigger", textField)
	docMapping.AddFieldMappingsAt("persona", keywordField)
	docMapping.AddFieldMappingsAt("category", keywordField)
	docMapping.AddFieldMappingsAt("created_at", dateField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Append indexes a new memory.
func (s *BleveStore) Append(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Category == "" {
		e.Category = CategoryMemory
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	doc := memoryDocument{
		Persona:   e.PersonaID,
		Category:  e.Category,
		Content:   e.Content,
		Trigger:   e.Trigger,
		CreatedAt: e.CreatedAt,
	}
	if err := s.index.Index(e.ID, doc); err != nil {
		return Entry{}, fmt.Errorf("failed to index memory: %w", err)
	}
	return e, nil
}

// List returns a persona's memories, oldest first.
func (s *BleveStore) List(_ context.Context, personaID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tq := bleve.NewTermQuery(personaID)
	tq.SetField("persona")
	req := bleve.NewSearchRequest(tq)
	req.Size = 1000
	req.Fields = []string{"*"}

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("memory list failed: %w", err)
	}

	entries := make([]Entry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		entries = append(entries, entryFromFields(hit.ID, personaID, hit.Fields))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

// All returns every memory in the index regardless of persona, used by
// inspection tooling.
func (s *BleveStore) All(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 1000
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("memory scan failed: %w", err)
	}

	entries := make([]Entry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		persona, _ := hit.Fields["persona"].(string)
		entries = append(entries, entryFromFields(hit.ID, persona, hit.Fields))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

// Search ranks a persona's memories against a query with BM25.
func (s *BleveStore) Search(_ context.Context, personaID, query string, limit int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")
	tq := bleve.NewTermQuery(personaID)
	tq.SetField("persona")
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(mq, tq))
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("memory search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		// BM25 scores are unbounded; squash into 0-1 for callers.
		score := float32(hit.Score)
		if score > 1 {
			score = 1 - (1 / (1 + score))
		}
		results = append(results, Result{
			Entry: entryFromFields(hit.ID, personaID, hit.Fields),
			Score: score,
		})
	}
	return results, nil
}

// Replace swaps a persona's memories wholesale.
func (s *BleveStore) Replace(ctx context.Context, personaID string, entries []Entry) error {
	existing, err := s.List(ctx, personaID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.index.NewBatch()
	for _, e := range existing {
		batch.Delete(e.ID)
	}
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		doc := memoryDocument{
			Persona:   personaID,
			Category:  e.Category,
			Content:   e.Content,
			Trigger:   e.Trigger,
			CreatedAt: e.CreatedAt,
		}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("failed to batch memory: %w", err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to replace memories: %w", err)
	}
	return nil
}

// Close releases the index.
func (s *BleveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

func entryFromFields(id, personaID string, fields map[string]interface{}) Entry {
	content, _ := fields["content"].(string)
	category, _ := fields["category"].(string)
	trigger, _ := fields["trigger"].(string)
	e := Entry{
		ID:        id,
		PersonaID: personaID,
		Category:  category,
		Content:   content,
		Trigger:   trigger,
	}
	if raw, ok := fields["created_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			e.CreatedAt = ts
		}
	}
	return e
}
