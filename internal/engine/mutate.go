package engine

import (
	"context"
	"fmt"
	"log"
)

// UpdateResult reports an update operation.
type UpdateResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ObservationID string `json:"observationId,omitempty"`
}

// Update replaces the observation whose content exactly equals oldContent
// with newContent, preserving the source. The exact-match requirement is
// deliberate; near-matches fail.
func (e *Engine) Update(ctx context.Context, entityName, oldContent, newContent string) (*UpdateResult, error) {
	newContent, err := validateContent(newContent)
	if err != nil {
		return &UpdateResult{Success: false, Message: err.Error()}, nil
	}

	entity, err := e.store.Entities().FindByName(entityName)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return &UpdateResult{Success: false, Message: fmt.Sprintf("Entity %q not found.", entityName)}, nil
	}

	observations, err := e.store.Observations().ListByEntity(entity.ID)
	if err != nil {
		return nil, err
	}
	oldID, oldSource := "", ""
	for _, o := range observations {
		if o.Content == oldContent {
			oldID, oldSource = o.ID, o.Source
			break
		}
	}
	if oldID == "" {
		return &UpdateResult{Success: false, Message: "No observation matches the given content exactly."}, nil
	}

	vec, err := e.embedder.Embed(ctx, newContent)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	obs, err := e.store.Observations().Create(entity.ID, newContent, oldSource)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Vectors().Store(entity.ID, obs.ID, vec, newContent); err != nil {
		return nil, err
	}
	if _, err := e.store.Vectors().DeleteByObservation(oldID); err != nil {
		return nil, err
	}
	if _, err := e.store.Observations().Delete(oldID); err != nil {
		return nil, err
	}
	if err := e.store.Entities().Touch(entity.ID); err != nil {
		return nil, err
	}

	log.Printf("update: replaced one observation")
	return &UpdateResult{Success: true, Message: "Observation updated.", ObservationID: obs.ID}, nil
}

// MergeResult reports a merge operation.
type MergeResult struct {
	Success          bool   `json:"success"`
	NewObservationID string `json:"new_observation_id"`
	MergedCount      int    `json:"merged_count"`
	EntityName       string `json:"entity_name"`
	Message          string `json:"message"`
}

// Merge replaces N observations with a single new one. Validation failures
// (missing ids, ids spanning entities) are returned as errors before any
// write happens, so the store is untouched on failure.
func (e *Engine) Merge(ctx context.Context, observationIDs []string, content string) (*MergeResult, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	if len(observationIDs) < 2 {
		return nil, fmt.Errorf("merge needs at least two observation ids")
	}

	observations, err := e.store.Observations().FetchByIDs(observationIDs)
	if err != nil {
		return nil, err
	}
	if len(observations) != len(observationIDs) {
		return nil, fmt.Errorf("merge: %d of %d observations not found", len(observationIDs)-len(observations), len(observationIDs))
	}
	entityID := observations[0].EntityID
	for _, o := range observations[1:] {
		if o.EntityID != entityID {
			return nil, fmt.Errorf("merge: observations span more than one entity")
		}
	}

	source := ""
	for _, o := range observations {
		if o.Source != "" {
			source = o.Source
			break
		}
	}

	vec, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	merged, err := e.store.Observations().Create(entityID, content, source)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Vectors().Store(entityID, merged.ID, vec, content); err != nil {
		return nil, err
	}
	for _, o := range observations {
		if _, err := e.store.Vectors().DeleteByObservation(o.ID); err != nil {
			return nil, err
		}
		if _, err := e.store.Observations().Delete(o.ID); err != nil {
			return nil, err
		}
	}
	if err := e.store.Entities().Touch(entityID); err != nil {
		return nil, err
	}

	names, err := e.entityNames(entityID)
	if err != nil {
		return nil, err
	}

	log.Printf("merge: %d observations merged into one", len(observations))
	return &MergeResult{
		Success:          true,
		NewObservationID: merged.ID,
		MergedCount:      len(observations),
		EntityName:       names[entityID],
		Message:          fmt.Sprintf("Merged %d observations.", len(observations)),
	}, nil
}

// DeletedCounts itemizes what forget removed.
type DeletedCounts struct {
	Observations  int64 `json:"observations"`
	Embeddings    int64 `json:"embeddings"`
	Relationships int64 `json:"relationships"`
	Entity        int64 `json:"entity"`
}

// ForgetResult reports a forget operation.
type ForgetResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Deleted DeletedCounts `json:"deleted"`
}

// Forget deletes either a single observation or an entire entity. Exactly
// one selector must be given. Deletes run leaf-first so the counts reported
// are accurate rather than folded into the cascade.
func (e *Engine) Forget(entityName, observationID string) (*ForgetResult, error) {
	if (entityName == "") == (observationID == "") {
		return &ForgetResult{Success: false, Message: "Provide exactly one of entity or observation_id."}, nil
	}

	if observationID != "" {
		embeddings, err := e.store.Vectors().DeleteByObservation(observationID)
		if err != nil {
			return nil, err
		}
		observations, err := e.store.Observations().Delete(observationID)
		if err != nil {
			return nil, err
		}
		if observations == 0 {
			return &ForgetResult{Success: false, Message: "Observation not found."}, nil
		}
		log.Printf("forget: removed 1 observation")
		return &ForgetResult{
			Success: true,
			Message: "Observation forgotten.",
			Deleted: DeletedCounts{Observations: observations, Embeddings: embeddings},
		}, nil
	}

	entity, err := e.store.Entities().FindByName(entityName)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return &ForgetResult{Success: false, Message: fmt.Sprintf("Entity %q not found.", entityName)}, nil
	}

	embeddings, err := e.store.Vectors().DeleteByEntity(entity.ID)
	if err != nil {
		return nil, err
	}
	observations, err := e.store.Observations().DeleteByEntity(entity.ID)
	if err != nil {
		return nil, err
	}
	relationships, err := e.store.Relationships().DeleteByEntity(entity.ID)
	if err != nil {
		return nil, err
	}
	if err := e.store.Entities().Delete(entity.ID); err != nil {
		return nil, err
	}

	log.Printf("forget: removed entity with %d observations, %d embeddings, %d relationships",
		observations, embeddings, relationships)
	return &ForgetResult{
		Success: true,
		Message: "Entity forgotten.",
		Deleted: DeletedCounts{
			Observations:  observations,
			Embeddings:    embeddings,
			Relationships: relationships,
			Entity:        1,
		},
	}, nil
}
