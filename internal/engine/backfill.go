package engine

import (
	"context"
	"log"
	"time"
)

// Backfill embeds any observations that lack an embedding row, repairing
// the one-embedding-per-observation invariant at startup. Per-item failures
// are logged and skipped; startup is never blocked on a bad row or a
// missing model.
func (e *Engine) Backfill(ctx context.Context) (embedded, failed int, err error) {
	start := time.Now()

	missing, err := e.store.Observations().ListMissingEmbeddings()
	if err != nil {
		return 0, 0, err
	}
	if len(missing) == 0 {
		return 0, 0, nil
	}

	log.Printf("backfill: %d observations missing embeddings", len(missing))
	for _, o := range missing {
		vec, err := e.embedder.Embed(ctx, o.Content)
		if err != nil {
			log.Printf("backfill: embed failed (%s), skipping", errKind(err))
			failed++
			continue
		}
		if _, err := e.store.Vectors().Store(o.EntityID, o.ID, vec, o.Content); err != nil {
			log.Printf("backfill: store failed (%s), skipping", errKind(err))
			failed++
			continue
		}
		embedded++
	}

	log.Printf("backfill: embedded %d, failed %d in %s", embedded, failed, time.Since(start).Round(time.Millisecond))
	return embedded, failed, nil
}
