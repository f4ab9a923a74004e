package models

// Entity is a named node in the knowledge graph.
type Entity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntityType string `json:"entity_type,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Observation is a free-text fact attached to one entity.
type Observation struct {
	ID        string `json:"id"`
	EntityID  string `json:"entity_id"`
	Content   string `json:"content"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Relationship is a directed edge between two entities.
type Relationship struct {
	ID           string `json:"id"`
	FromEntity   string `json:"from_entity"`
	ToEntity     string `json:"to_entity"`
	RelationType string `json:"relation_type"`
	CreatedAt    string `json:"created_at"`
}

// Embedding is the stored vector for one observation. Vectors are unit
// length, so cosine similarity reduces to a dot product.
type Embedding struct {
	ID            string    `json:"id"`
	EntityID      string    `json:"entity_id"`
	ObservationID string    `json:"observation_id"`
	Vector        []float32 `json:"-"`
	TextContent   string    `json:"text_content"`
	CreatedAt     string    `json:"created_at"`
}

// SearchHit is one semantic search result: the observation plus its owning
// entity and the cosine similarity against the query.
type SearchHit struct {
	ObservationID string  `json:"observation_id"`
	EntityID      string  `json:"entity_id"`
	EntityName    string  `json:"entity"`
	EntityType    string  `json:"type,omitempty"`
	Content       string  `json:"content"`
	Source        string  `json:"source,omitempty"`
	CreatedAt     string  `json:"remembered_at"`
	Similarity    float64 `json:"similarity"`
}

// Memory is one recall result. Similarity is set only for hits that came
// from the semantic leg.
type Memory struct {
	ObservationID string   `json:"observation_id"`
	Entity        string   `json:"entity"`
	Type          string   `json:"type,omitempty"`
	Content       string   `json:"content"`
	Source        string   `json:"source,omitempty"`
	RememberedAt  string   `json:"remembered_at"`
	Similarity    *float64 `json:"similarity,omitempty"`
}

// RelatedEntity is a BFS neighbor with its shortest-path distance from the seed.
type RelatedEntity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Depth int    `json:"depth"`
}
