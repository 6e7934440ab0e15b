// Package query derives composite views from the knowledge graph: course and
// term overviews, deadline reports, assignment and exam context, and the
// related-concept search. Every function takes a fresh snapshot of the store
// and joins entities through typed relations; none of them mutate the graph.
package query

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
	"github.com/wagnerlima/studygraph/internal/storage"
)

// Deriver runs read-only derivations over the graph store.
type Deriver struct {
	store *storage.GraphStore
	vocab *schema.Vocabulary
	now   func() time.Time
}

// New builds a Deriver over the given store and vocabulary.
func New(store *storage.GraphStore, vocab *schema.Vocabulary) *Deriver {
	return &Deriver{
		store: store,
		vocab: vocab,
		now:   time.Now,
	}
}

// view is one snapshot of the graph indexed by entity name.
type view struct {
	entities  map[string]models.Entity
	order     []string
	relations []models.Relation
}

func (d *Deriver) snapshot() *view {
	g := d.store.ReadGraph()
	v := &view{
		entities:  make(map[string]models.Entity, len(g.Entities)),
		order:     make([]string, 0, len(g.Entities)),
		relations: g.Relations,
	}
	for _, e := range g.Entities {
		v.entities[e.Name] = e
		v.order = append(v.order, e.Name)
	}
	return v
}

// subject resolves the primary entity of a derivation, requiring both
// existence and the expected type.
func (v *view) subject(name, entityType string) (models.Entity, error) {
	e, ok := v.entities[name]
	if !ok || e.EntityType != entityType {
		return models.Entity{}, fmt.Errorf("%w: %s %q", storage.ErrNotFound, entityType, name)
	}
	return e, nil
}

// outgoing returns the targets of name -[relType]-> X, filtered to the given
// entity type ("" for any), in stored relation order.
func (v *view) outgoing(name, relType, entityType string) []models.Entity {
	var out []models.Entity
	for _, r := range v.relations {
		if r.From != name || r.RelationType != relType {
			continue
		}
		if e, ok := v.entities[r.To]; ok && (entityType == "" || e.EntityType == entityType) {
			out = append(out, e)
		}
	}
	return out
}

// incoming returns the sources of X -[relType]-> name, filtered to the given
// entity type ("" for any), in stored relation order.
func (v *view) incoming(name, relType, entityType string) []models.Entity {
	var out []models.Entity
	for _, r := range v.relations {
		if r.To != name || r.RelationType != relType {
			continue
		}
		if e, ok := v.entities[r.From]; ok && (entityType == "" || e.EntityType == entityType) {
			out = append(out, e)
		}
	}
	return out
}

func (v *view) firstOutgoing(name, relType, entityType string) (models.Entity, bool) {
	targets := v.outgoing(name, relType, entityType)
	if len(targets) == 0 {
		return models.Entity{}, false
	}
	return targets[0], true
}

// entityDate is the date an entity sorts and schedules by: the Due facet when
// present, otherwise the Date facet.
func entityDate(e models.Entity) *time.Time {
	if e.Facets.Due != nil {
		return e.Facets.Due
	}
	return e.Facets.Date
}

// sortByDate orders entities ascending by entityDate. Pairs where either side
// has no date compare equal, so their relative order is arbitrary.
func sortByDate(entities []models.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		di, dj := entityDate(entities[i]), entityDate(entities[j])
		if di == nil || dj == nil {
			return false
		}
		return di.Before(*dj)
	})
}

// ceilDays converts a duration to whole days, rounding up.
func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

// startOfDay truncates t to UTC midnight.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(models.DateLayout)
}

// appendUnique appends name unless already seen.
func appendUnique(list []string, seen map[string]bool, name string) []string {
	if seen[name] {
		return list
	}
	seen[name] = true
	return append(list, name)
}

func names(entities []models.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Name)
	}
	return out
}

// DatedItem is a schedule row: an entity with the date it sorts by.
type DatedItem struct {
	Name   string `json:"name"`
	Date   string `json:"date,omitempty"`
	Status string `json:"status,omitempty"`
}

func datedItems(entities []models.Entity) []DatedItem {
	items := make([]DatedItem, 0, len(entities))
	for _, e := range entities {
		items = append(items, DatedItem{
			Name:   e.Name,
			Date:   formatDate(entityDate(e)),
			Status: e.Facets.Status,
		})
	}
	return items
}
