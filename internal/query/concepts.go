package query

import (
	"sort"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
)

const (
	// DefaultConceptDepth bounds the neighborhood walk when the caller does
	// not ask for a depth.
	DefaultConceptDepth = 2

	maxConceptDepth = 5
)

// RelatedConcept is one concept reached from the starting concept, with the
// labeled hops that reached it first.
type RelatedConcept struct {
	Name  string   `json:"name"`
	Depth int      `json:"depth"`
	Path  []string `json:"path"`
}

// RelatedConceptsResult is the bounded neighborhood of a concept.
type RelatedConceptsResult struct {
	Concept string           `json:"concept"`
	Depth   int              `json:"depth"`
	Related []RelatedConcept `json:"related"`
}

// RelatedConcepts walks related_to edges in both directions and prerequisite
// edges in either direction, up to depth hops, keeping the first path that
// reaches each concept. Results come back closest first.
func (d *Deriver) RelatedConcepts(name string, depth int) (*RelatedConceptsResult, error) {
	v := d.snapshot()
	if _, err := v.subject(name, schema.TypeConcept); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = DefaultConceptDepth
	}
	if depth > maxConceptDepth {
		depth = maxConceptDepth
	}

	result := &RelatedConceptsResult{
		Concept: name,
		Depth:   depth,
		Related: []RelatedConcept{},
	}

	type frontier struct {
		name  string
		depth int
		path  []string
	}
	visited := map[string]bool{name: true}
	queue := []frontier{{name: name}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		for _, step := range v.conceptNeighbors(cur.name) {
			if visited[step.name] {
				continue
			}
			visited[step.name] = true
			path := make([]string, 0, len(cur.path)+1)
			path = append(path, cur.path...)
			path = append(path, step.label+" -> "+step.name)
			result.Related = append(result.Related, RelatedConcept{
				Name:  step.name,
				Depth: cur.depth + 1,
				Path:  path,
			})
			queue = append(queue, frontier{name: step.name, depth: cur.depth + 1, path: path})
		}
	}
	return result, nil
}

type neighborStep struct {
	name  string
	label string
}

// conceptNeighbors lists the concepts one hop away, in stored relation order.
// Prerequisite edges walked against the arrow are labeled prerequisite_of.
func (v *view) conceptNeighbors(name string) []neighborStep {
	var steps []neighborStep
	for _, r := range v.relations {
		var other, label string
		switch {
		case r.RelationType == schema.RelRelatedTo && r.From == name:
			other, label = r.To, schema.RelRelatedTo
		case r.RelationType == schema.RelRelatedTo && r.To == name:
			other, label = r.From, schema.RelRelatedTo
		case r.RelationType == schema.RelPrerequisiteFor && r.From == name:
			other, label = r.To, schema.RelPrerequisiteFor
		case r.RelationType == schema.RelPrerequisiteFor && r.To == name:
			other, label = r.From, "prerequisite_of"
		default:
			continue
		}
		e, ok := v.entities[other]
		if !ok || e.EntityType != schema.TypeConcept {
			continue
		}
		steps = append(steps, neighborStep{name: other, label: label})
	}
	return steps
}

// DefaultRecentConcepts bounds RecentlyStudied when the caller does not ask
// for a limit.
const DefaultRecentConcepts = 5

// ConceptActivity is one concept with a recorded study date.
type ConceptActivity struct {
	Name        string `json:"name"`
	LastStudied string `json:"lastStudied"`
	Description string `json:"description,omitempty"`
}

// RecentlyStudied lists the concepts carrying a "Last studied" date, most
// recent first.
func (d *Deriver) RecentlyStudied(limit int) []ConceptActivity {
	if limit <= 0 {
		limit = DefaultRecentConcepts
	}
	v := d.snapshot()

	var studied []models.Entity
	for _, name := range v.order {
		e := v.entities[name]
		if e.EntityType == schema.TypeConcept && e.Facets.LastStudied != nil {
			studied = append(studied, e)
		}
	}
	sort.SliceStable(studied, func(i, j int) bool {
		return studied[i].Facets.LastStudied.After(*studied[j].Facets.LastStudied)
	})
	if len(studied) > limit {
		studied = studied[:limit]
	}

	activity := make([]ConceptActivity, 0, len(studied))
	for _, e := range studied {
		activity = append(activity, ConceptActivity{
			Name:        e.Name,
			LastStudied: formatDate(e.Facets.LastStudied),
			Description: e.Facets.Description,
		})
	}
	return activity
}
