package engine

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/karolinaw/hippocampus/internal/models"
)

// semanticFallbackThreshold is the minimum similarity for context to accept
// a semantic topic match.
const semanticFallbackThreshold = 0.2

// ContextInput is the context tool payload.
type ContextInput struct {
	Topic string
	Depth int
}

// NamedRelationship is a relationship with resolved endpoint names.
type NamedRelationship struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relation_type"`
	CreatedAt    string `json:"created_at"`
}

// NeighborContext is a BFS-expanded related entity with its observations.
type NeighborContext struct {
	Name         string               `json:"name"`
	Type         string               `json:"type,omitempty"`
	Depth        int                  `json:"depth"`
	Observations []models.Observation `json:"observations"`
}

// ContextResult assembles everything known around one entity.
type ContextResult struct {
	Success         bool                 `json:"success"`
	Entity          *models.Entity       `json:"entity,omitempty"`
	Observations    []models.Observation `json:"observations,omitempty"`
	Relationships   []NamedRelationship  `json:"relationships"`
	RelatedEntities []NeighborContext    `json:"related_entities"`
	Message         string               `json:"message"`
}

// Context resolves a topic to an entity (exact name, then case-insensitive
// substring, then semantic fallback) and gathers its observations, direct
// relationships and BFS neighbors up to depth hops.
func (e *Engine) Context(ctx context.Context, in ContextInput) (*ContextResult, error) {
	if in.Topic == "" || utf8.RuneCountInString(in.Topic) > maxTopicLen {
		return notFound(in.Topic), nil
	}
	depth := in.Depth
	if depth < 0 {
		depth = 0
	}
	if depth > 3 {
		depth = 3
	}

	entity, err := e.resolveTopic(ctx, in.Topic)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return notFound(in.Topic), nil
	}

	observations, err := e.store.Observations().ListByEntity(entity.ID)
	if err != nil {
		return nil, err
	}

	rels, err := e.store.Relationships().ListByEntity(entity.ID)
	if err != nil {
		return nil, err
	}
	named := []NamedRelationship{}
	if len(rels) > 0 {
		var ids []string
		for _, r := range rels {
			ids = append(ids, r.FromEntity, r.ToEntity)
		}
		names, err := e.entityNames(ids...)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			named = append(named, NamedRelationship{
				From:         names[r.FromEntity],
				To:           names[r.ToEntity],
				RelationType: r.RelationType,
				CreatedAt:    r.CreatedAt,
			})
		}
	}

	related, err := e.store.Relationships().RelatedEntities(entity.ID, depth)
	if err != nil {
		return nil, err
	}
	neighbors := []NeighborContext{}
	for _, re := range related {
		obs, err := e.store.Observations().ListByEntity(re.ID)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, NeighborContext{
			Name:         re.Name,
			Type:         re.Type,
			Depth:        re.Depth,
			Observations: obs,
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Depth != neighbors[j].Depth {
			return neighbors[i].Depth < neighbors[j].Depth
		}
		return neighbors[i].Name < neighbors[j].Name
	})

	return &ContextResult{
		Success:         true,
		Entity:          entity,
		Observations:    observations,
		Relationships:   named,
		RelatedEntities: neighbors,
		Message:         fmt.Sprintf("Context for %q: %d observations, %d relationships, %d related entities.", entity.Name, len(observations), len(named), len(neighbors)),
	}, nil
}

// resolveTopic tries exact name, substring, then semantic lookup. The
// semantic fallback resolves to the owning entity of the best observation
// when its similarity clears the threshold.
func (e *Engine) resolveTopic(ctx context.Context, topic string) (*models.Entity, error) {
	entity, err := e.store.Entities().FindByName(topic)
	if err != nil {
		return nil, err
	}
	if entity != nil {
		return entity, nil
	}

	matches, err := e.store.Entities().SearchByNameSubstring(topic)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return &matches[0], nil
	}

	hits, err := e.semanticSearch(ctx, topic, 5, "", "")
	if err != nil {
		// Embedder trouble should not mask the lexical misses above.
		return nil, nil
	}
	if len(hits) > 0 && hits[0].Similarity >= semanticFallbackThreshold {
		return e.store.Entities().FindByID(hits[0].EntityID)
	}
	return nil, nil
}

func notFound(topic string) *ContextResult {
	return &ContextResult{
		Success:         false,
		Relationships:   []NamedRelationship{},
		RelatedEntities: []NeighborContext{},
		Message:         fmt.Sprintf("No entity found for topic %q.", topic),
	}
}
