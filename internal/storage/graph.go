package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
)

var (
	ErrNotFound            = errors.New("graph: not found")
	ErrEmptyName           = errors.New("graph: entity name must not be empty")
	ErrDuplicateEntity     = errors.New("graph: duplicate entity")
	ErrDuplicateRelation   = errors.New("graph: duplicate relation")
	ErrUnknownEntityType   = errors.New("graph: unknown entity type")
	ErrUnknownRelationType = errors.New("graph: unknown relation type")
)

// GraphStore is the single writer for the graph document. The document is
// loaded once at open, held in memory as the source of truth, and rewritten
// whole after every mutation. All operations serialize on one mutex; reads
// hand out deep copies.
type GraphStore struct {
	mu    sync.Mutex
	path  string
	vocab *schema.Vocabulary
	log   *zap.Logger
	graph models.KnowledgeGraph
}

// OpenGraph opens (or creates) the graph document at path.
func OpenGraph(path string, vocab *schema.Vocabulary, log *zap.Logger) (*GraphStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create graph dir: %w", err)
	}

	s := &GraphStore{
		path:  path,
		vocab: vocab,
		log:   log,
		graph: models.KnowledgeGraph{
			Entities:  []models.Entity{},
			Relations: []models.Relation{},
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("graph document not found, starting empty", zap.String("path", path))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read graph document: %w", err)
	}
	if err := json.Unmarshal(data, &s.graph); err != nil {
		return nil, fmt.Errorf("parse graph document: %w", err)
	}
	if s.graph.Entities == nil {
		s.graph.Entities = []models.Entity{}
	}
	if s.graph.Relations == nil {
		s.graph.Relations = []models.Relation{}
	}
	for i := range s.graph.Entities {
		s.graph.Entities[i].Facets = models.ParseFacets(s.graph.Entities[i].Observations)
	}

	log.Info("graph document loaded",
		zap.String("path", path),
		zap.Int("entities", len(s.graph.Entities)),
		zap.Int("relations", len(s.graph.Relations)))
	return s, nil
}

// Path returns the location of the graph document.
func (s *GraphStore) Path() string {
	return s.path
}

// CreateEntities validates and appends entities. The whole batch is rejected
// if any name is empty or already taken, or any entity type is outside the
// vocabulary.
func (s *GraphStore) CreateEntities(entities []models.Entity) ([]models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inBatch := make(map[string]bool, len(entities))
	for _, e := range entities {
		if e.Name == "" {
			return nil, ErrEmptyName
		}
		if !s.vocab.ValidEntityType(e.EntityType) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, e.EntityType)
		}
		if inBatch[e.Name] || s.findEntity(e.Name) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntity, e.Name)
		}
		inBatch[e.Name] = true
	}

	created := make([]models.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Observations == nil {
			e.Observations = []string{}
		}
		e.Facets = models.ParseFacets(e.Observations)
		s.graph.Entities = append(s.graph.Entities, e)
		created = append(created, e.Clone())
	}

	if err := s.persist(); err != nil {
		return nil, err
	}
	return created, nil
}

// CreateRelations validates and appends relations. The whole batch is
// rejected if any endpoint is absent, any relation type is outside the
// vocabulary, or any (from, to, relationType) triple already exists.
func (s *GraphStore) CreateRelations(relations []models.Relation) ([]models.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inBatch := make(map[models.Relation]bool, len(relations))
	for _, r := range relations {
		if s.findEntity(r.From) < 0 {
			return nil, fmt.Errorf("%w: from entity %q", ErrNotFound, r.From)
		}
		if s.findEntity(r.To) < 0 {
			return nil, fmt.Errorf("%w: to entity %q", ErrNotFound, r.To)
		}
		if !s.vocab.ValidRelationType(r.RelationType) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRelationType, r.RelationType)
		}
		if inBatch[r] || s.hasRelation(r) {
			return nil, fmt.Errorf("%w: %s -[%s]-> %s", ErrDuplicateRelation, r.From, r.RelationType, r.To)
		}
		inBatch[r] = true
	}

	s.graph.Relations = append(s.graph.Relations, relations...)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return append([]models.Relation(nil), relations...), nil
}

// AddObservations appends texts to an entity's observation list without
// de-duplication.
func (s *GraphStore) AddObservations(name string, texts []string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findEntity(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: entity %q", ErrNotFound, name)
	}

	e := &s.graph.Entities[idx]
	e.Observations = append(e.Observations, texts...)
	e.Facets = models.ParseFacets(e.Observations)

	if err := s.persist(); err != nil {
		return nil, err
	}
	out := e.Clone()
	return &out, nil
}

// UpdateObservations replaces keyed observations in place and appends extra
// lines, leaving the entity's relations untouched. For each replace key,
// every observation carrying that key is dropped and one canonical
// "Key: value" line is appended (keys applied in sorted order).
func (s *GraphStore) UpdateObservations(name string, replace map[string]string, add []string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findEntity(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: entity %q", ErrNotFound, name)
	}

	keys := make([]string, 0, len(replace))
	for k := range replace {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := &s.graph.Entities[idx]
	for _, key := range keys {
		kept := make([]string, 0, len(e.Observations))
		for _, obs := range e.Observations {
			if !models.ObservationHasKey(obs, key) {
				kept = append(kept, obs)
			}
		}
		e.Observations = append(kept, models.FormatObservation(key, replace[key]))
	}
	e.Observations = append(e.Observations, add...)
	e.Facets = models.ParseFacets(e.Observations)

	if err := s.persist(); err != nil {
		return nil, err
	}
	out := e.Clone()
	return &out, nil
}

// DeleteEntities removes the named entities and cascades to every relation
// touching them. Unknown names are silently skipped. Returns the counts of
// entities and relations removed.
func (s *GraphStore) DeleteEntities(names []string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]bool, len(names))
	for _, name := range names {
		if s.findEntity(name) >= 0 {
			doomed[name] = true
		}
	}
	if len(doomed) == 0 {
		return 0, 0, nil
	}

	entities := make([]models.Entity, 0, len(s.graph.Entities))
	for _, e := range s.graph.Entities {
		if !doomed[e.Name] {
			entities = append(entities, e)
		}
	}
	relations := make([]models.Relation, 0, len(s.graph.Relations))
	for _, r := range s.graph.Relations {
		if !doomed[r.From] && !doomed[r.To] {
			relations = append(relations, r)
		}
	}

	entityCount := len(s.graph.Entities) - len(entities)
	relationCount := len(s.graph.Relations) - len(relations)
	s.graph.Entities = entities
	s.graph.Relations = relations

	if err := s.persist(); err != nil {
		return 0, 0, err
	}
	return entityCount, relationCount, nil
}

// ObservationDeletion names an entity and the exact observation strings to
// remove from it.
type ObservationDeletion struct {
	EntityName   string
	Observations []string
}

// DeleteObservations removes exact-string matches from the named entities'
// observation lists. Unknown entities are silently skipped. Returns the
// number of observations removed.
func (s *GraphStore) DeleteObservations(deletions []ObservationDeletion) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, d := range deletions {
		idx := s.findEntity(d.EntityName)
		if idx < 0 {
			continue
		}
		doomed := make(map[string]bool, len(d.Observations))
		for _, obs := range d.Observations {
			doomed[obs] = true
		}

		e := &s.graph.Entities[idx]
		kept := make([]string, 0, len(e.Observations))
		for _, obs := range e.Observations {
			if doomed[obs] {
				total++
				continue
			}
			kept = append(kept, obs)
		}
		e.Observations = kept
		e.Facets = models.ParseFacets(e.Observations)
	}

	if total == 0 {
		return 0, nil
	}
	if err := s.persist(); err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteRelations removes relations matching the exact (from, to,
// relationType) triples. Non-matches are silently skipped.
func (s *GraphStore) DeleteRelations(relations []models.Relation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[models.Relation]bool, len(relations))
	for _, r := range relations {
		doomed[r] = true
	}

	kept := make([]models.Relation, 0, len(s.graph.Relations))
	for _, r := range s.graph.Relations {
		if !doomed[r] {
			kept = append(kept, r)
		}
	}

	removed := len(s.graph.Relations) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.graph.Relations = kept

	if err := s.persist(); err != nil {
		return 0, err
	}
	return removed, nil
}

// ReadGraph returns a deep copy of the whole graph.
func (s *GraphStore) ReadGraph() models.KnowledgeGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

// SearchNodes splits the query on whitespace into lowercase terms and returns
// the entities where every term is a substring of the name, the entity type,
// or at least one observation (terms may match different fields), plus the
// relations whose both endpoints matched.
func (s *GraphStore) SearchNodes(query string) models.KnowledgeGraph {
	s.mu.Lock()
	defer s.mu.Unlock()

	terms := strings.Fields(strings.ToLower(query))

	result := models.KnowledgeGraph{
		Entities:  []models.Entity{},
		Relations: []models.Relation{},
	}
	matched := make(map[string]bool)
	for _, e := range s.graph.Entities {
		if entityMatches(e, terms) {
			result.Entities = append(result.Entities, e.Clone())
			matched[e.Name] = true
		}
	}
	for _, r := range s.graph.Relations {
		if matched[r.From] && matched[r.To] {
			result.Relations = append(result.Relations, r)
		}
	}
	return result
}

// OpenNodes returns the entities named in the set plus the relations whose
// both endpoints are in the set.
func (s *GraphStore) OpenNodes(names []string) models.KnowledgeGraph {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	result := models.KnowledgeGraph{
		Entities:  []models.Entity{},
		Relations: []models.Relation{},
	}
	for _, e := range s.graph.Entities {
		if wanted[e.Name] {
			result.Entities = append(result.Entities, e.Clone())
		}
	}
	for _, r := range s.graph.Relations {
		if wanted[r.From] && wanted[r.To] {
			result.Relations = append(result.Relations, r)
		}
	}
	return result
}

func entityMatches(e models.Entity, terms []string) bool {
	name := strings.ToLower(e.Name)
	entityType := strings.ToLower(e.EntityType)

	for _, term := range terms {
		if strings.Contains(name, term) || strings.Contains(entityType, term) {
			continue
		}
		found := false
		for _, obs := range e.Observations {
			if strings.Contains(strings.ToLower(obs), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *GraphStore) findEntity(name string) int {
	for i := range s.graph.Entities {
		if s.graph.Entities[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *GraphStore) hasRelation(r models.Relation) bool {
	for _, existing := range s.graph.Relations {
		if existing == r {
			return true
		}
	}
	return false
}

func (s *GraphStore) persist() error {
	data, err := json.MarshalIndent(s.graph, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph document: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write graph document: %w", err)
	}
	s.log.Debug("graph document persisted",
		zap.Int("entities", len(s.graph.Entities)),
		zap.Int("relations", len(s.graph.Relations)))
	return nil
}
