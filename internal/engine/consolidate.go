package engine

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/karolinaw/hippocampus/internal/models"
	"github.com/karolinaw/hippocampus/internal/storage"
)

// ConsolidateInput is the consolidate tool payload.
type ConsolidateInput struct {
	Entity    string
	Threshold float64
}

// Cluster is one group of mutually similar observations.
type Cluster struct {
	Observations  []models.Observation `json:"observations"`
	AvgSimilarity float64              `json:"avg_similarity"`
}

// ConsolidateResult lists merge candidates. Consolidate never mutates; the
// caller decides whether to merge.
type ConsolidateResult struct {
	Success           bool      `json:"success"`
	TotalObservations int       `json:"total_observations"`
	Clusters          []Cluster `json:"clusters"`
	Message           string    `json:"message"`
}

// Consolidate clusters observations of one entity (or of every entity when
// unscoped) whose pairwise cosine similarity reaches the threshold, using
// union-find. Only pairs within the same entity are compared, so a cluster
// never spans entities. Cluster
// membership is the transitive closure; avg_similarity averages over all
// pairs in the cluster, including pairs that joined through a chain and may
// themselves sit below the threshold.
func (e *Engine) Consolidate(in ConsolidateInput) (*ConsolidateResult, error) {
	start := time.Now()

	threshold := in.Threshold
	if threshold == 0 {
		threshold = 0.8
	}
	if threshold < 0.5 {
		threshold = 0.5
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	entityID := ""
	if in.Entity != "" {
		entity, err := e.store.Entities().FindByName(in.Entity)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return &ConsolidateResult{Success: false, Clusters: []Cluster{}, Message: fmt.Sprintf("Entity %q not found.", in.Entity)}, nil
		}
		entityID = entity.ID
	}

	embeddings, err := e.store.Vectors().ListByEntity(entityID)
	if err != nil {
		return nil, err
	}
	n := len(embeddings)
	if n < 2 {
		return &ConsolidateResult{Success: true, TotalObservations: n, Clusters: []Cluster{}, Message: "Not enough observations to consolidate."}, nil
	}

	uf := newUnionFind(n)
	sims := map[[2]int]float64{}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Cross-entity pairs never cluster in the unscoped case.
			if embeddings[i].EntityID != embeddings[j].EntityID {
				continue
			}
			sim := storage.Dot(embeddings[i].Vector, embeddings[j].Vector)
			if sim >= threshold {
				uf.union(i, j)
				sims[[2]int{i, j}] = sim
			}
		}
	}

	groups := map[int][]int{}
	for i := 0; i < n; i++ {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	var clusters []Cluster
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}

		var sum float64
		var pairs int
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				i, j := members[a], members[b]
				sim, ok := sims[[2]int{i, j}]
				if !ok {
					// Joined transitively; compute the pair on demand.
					sim = storage.Dot(embeddings[i].Vector, embeddings[j].Vector)
				}
				sum += sim
				pairs++
			}
		}

		var ids []string
		for _, m := range members {
			ids = append(ids, embeddings[m].ObservationID)
		}
		obs, err := e.store.Observations().FetchByIDs(ids)
		if err != nil {
			return nil, err
		}

		clusters = append(clusters, Cluster{
			Observations:  obs,
			AvgSimilarity: round3(sum / float64(pairs)),
		})
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Observations) > len(clusters[j].Observations)
	})
	if clusters == nil {
		clusters = []Cluster{}
	}

	log.Printf("consolidate: %d vectors, %d clusters in %s", n, len(clusters), time.Since(start).Round(time.Millisecond))
	return &ConsolidateResult{
		Success:           true,
		TotalObservations: n,
		Clusters:          clusters,
		Message:           fmt.Sprintf("Found %d cluster(s) among %d observations.", len(clusters), n),
	}, nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// unionFind is a plain array disjoint-set with path compression and union
// by rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
