package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/karolinaw/hippocampus/internal/models"
)

// ExportInput is the export tool payload.
type ExportInput struct {
	Format string // json, claude-md or markdown
	Entity string // optional scope to one entity
	Type   string // optional scope to one entity type
}

// ExportResult carries the rendered export.
type ExportResult struct {
	Success          bool   `json:"success"`
	Format           string `json:"format"`
	EntityCount      int    `json:"entity_count"`
	ObservationCount int    `json:"observation_count"`
	Data             string `json:"data"`
	Message          string `json:"message"`
}

// exportEntity is one entity with its observations, as exported.
type exportEntity struct {
	Name         string               `json:"name"`
	Type         string               `json:"type,omitempty"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at"`
	Observations []models.Observation `json:"observations"`

	relationships []models.Relationship
}

// Export renders the knowledge graph in one of three formats.
func (e *Engine) Export(in ExportInput) (*ExportResult, error) {
	format := in.Format
	if format == "" {
		format = "json"
	}
	switch format {
	case "json", "claude-md", "markdown":
	default:
		return &ExportResult{Success: false, Format: format, Message: fmt.Sprintf("Unknown export format %q.", format)}, nil
	}

	entities, names, err := e.collectExport(in.Entity, in.Type)
	if err != nil {
		return nil, err
	}

	obsCount := 0
	for _, ee := range entities {
		obsCount += len(ee.Observations)
	}

	var data string
	switch format {
	case "json":
		data, err = renderJSON(entities, names)
	case "claude-md":
		data = renderClaudeMD(entities)
	case "markdown":
		data = renderMarkdown(entities, names)
	}
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		Success:          true,
		Format:           format,
		EntityCount:      len(entities),
		ObservationCount: obsCount,
		Data:             data,
		Message:          fmt.Sprintf("Exported %d entities with %d observations.", len(entities), obsCount),
	}, nil
}

// collectExport loads the scoped entities with observations and
// relationships, plus an id-to-name map covering all relationship endpoints.
func (e *Engine) collectExport(entityName, entityType string) ([]exportEntity, map[string]string, error) {
	var scoped []models.Entity
	if entityName != "" {
		entity, err := e.store.Entities().FindByName(entityName)
		if err != nil {
			return nil, nil, err
		}
		if entity != nil && (entityType == "" || entity.EntityType == entityType) {
			scoped = []models.Entity{*entity}
		}
	} else {
		all, err := e.store.Entities().List(entityType, 1_000_000)
		if err != nil {
			return nil, nil, err
		}
		scoped = all
	}
	sort.Slice(scoped, func(i, j int) bool { return scoped[i].Name < scoped[j].Name })

	names := map[string]string{}
	var out []exportEntity
	for _, ent := range scoped {
		names[ent.ID] = ent.Name
		obs, err := e.store.Observations().ListByEntity(ent.ID)
		if err != nil {
			return nil, nil, err
		}
		rels, err := e.store.Relationships().ListByEntity(ent.ID)
		if err != nil {
			return nil, nil, err
		}
		if obs == nil {
			obs = []models.Observation{}
		}
		out = append(out, exportEntity{
			Name:          ent.Name,
			Type:          ent.EntityType,
			CreatedAt:     ent.CreatedAt,
			UpdatedAt:     ent.UpdatedAt,
			Observations:  obs,
			relationships: rels,
		})
	}

	// Relationship endpoints can point outside the scoped set.
	var missing []string
	for _, ee := range out {
		for _, r := range ee.relationships {
			if _, ok := names[r.FromEntity]; !ok {
				missing = append(missing, r.FromEntity)
			}
			if _, ok := names[r.ToEntity]; !ok {
				missing = append(missing, r.ToEntity)
			}
		}
	}
	if len(missing) > 0 {
		resolved, err := e.entityNames(missing...)
		if err != nil {
			return nil, nil, err
		}
		for id, name := range resolved {
			names[id] = name
		}
	}
	return out, names, nil
}

// dedupRelationships flattens per-entity relationship lists, keeping each
// relationship id once.
func dedupRelationships(entities []exportEntity) []models.Relationship {
	seen := map[string]bool{}
	var out []models.Relationship
	for _, ee := range entities {
		for _, r := range ee.relationships {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

func renderJSON(entities []exportEntity, names map[string]string) (string, error) {
	type jsonRelationship struct {
		From         string `json:"from"`
		To           string `json:"to"`
		RelationType string `json:"relation_type"`
		CreatedAt    string `json:"created_at"`
	}
	rels := []jsonRelationship{}
	for _, r := range dedupRelationships(entities) {
		rels = append(rels, jsonRelationship{
			From:         names[r.FromEntity],
			To:           names[r.ToEntity],
			RelationType: r.RelationType,
			CreatedAt:    r.CreatedAt,
		})
	}
	if entities == nil {
		entities = []exportEntity{}
	}

	doc := struct {
		ExportedAt    string             `json:"exported_at"`
		Entities      []exportEntity     `json:"entities"`
		Relationships []jsonRelationship `json:"relationships"`
	}{
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Entities:      entities,
		Relationships: rels,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	return string(data), nil
}

// renderClaudeMD groups entities under capitalized type headings; entities
// with no type fall under General. No metadata beyond the text.
func renderClaudeMD(entities []exportEntity) string {
	byType := map[string][]exportEntity{}
	for _, ee := range entities {
		t := ee.Type
		if t == "" {
			t = "general"
		}
		byType[t] = append(byType[t], ee)
	}
	var types []string
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("# Memory Export\n")
	for _, t := range types {
		b.WriteString("\n## " + capitalize(t) + "\n")
		for _, ee := range byType[t] {
			b.WriteString("\n### " + ee.Name + "\n")
			for _, o := range ee.Observations {
				b.WriteString("- " + o.Content + "\n")
			}
		}
	}
	return b.String()
}

func renderMarkdown(entities []exportEntity, names map[string]string) string {
	var b strings.Builder
	b.WriteString("# Hippocampus Memory Export\n\n")
	b.WriteString("Generated: " + time.Now().UTC().Format(time.RFC3339) + "\n")

	for i, ee := range entities {
		if ee.Type != "" {
			b.WriteString("\n## " + ee.Name + " (" + ee.Type + ")\n\n")
		} else {
			b.WriteString("\n## " + ee.Name + "\n\n")
		}
		for _, o := range ee.Observations {
			b.WriteString("- " + o.Content)
			suffix := "[" + o.CreatedAt
			if o.Source != "" {
				suffix += ", source: " + o.Source
			}
			b.WriteString(" " + suffix + "]\n")
		}
		if len(ee.relationships) > 0 {
			b.WriteString("\n### Relationships\n\n")
			for _, r := range ee.relationships {
				b.WriteString("- " + names[r.FromEntity] + " " + r.RelationType + " " + names[r.ToEntity] + "\n")
			}
		}
		if i < len(entities)-1 {
			b.WriteString("\n---\n")
		}
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
