// Package engine implements the memory operations behind the tool surface:
// remember, recall, context, consolidate, update, merge, forget and export.
package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/karolinaw/hippocampus/internal/embedder"
	"github.com/karolinaw/hippocampus/internal/storage"
)

// Input caps. Content is measured after control-character stripping; the
// other inputs are measured as given.
const (
	maxContentLen = 2000
	maxEntityLen  = 200
	maxTypeLen    = 50
	maxSourceLen  = 100
	maxQueryLen   = 500
	maxTopicLen   = 200
)

// defaultEntity receives observations stored without an explicit entity.
const defaultEntity = "general"

// Engine ties the repositories and the embedder together. It holds no
// locks of its own; the store serializes writes underneath.
type Engine struct {
	store    *storage.Store
	embedder embedder.Embedder
}

// New creates an engine over an open store and an embedder.
func New(store *storage.Store, emb embedder.Embedder) *Engine {
	return &Engine{store: store, embedder: emb}
}

// sanitizeContent strips the control characters U+0000–U+0008, U+000B,
// U+000C and U+000E–U+001F (tab, LF and CR survive).
func sanitizeContent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x00 && r <= 0x08:
			return -1
		case r == 0x0B || r == 0x0C:
			return -1
		case r >= 0x0E && r <= 0x1F:
			return -1
		}
		return r
	}, s)
}

// validateContent sanitizes and length-checks observation content. Lengths
// are counted in characters, not bytes.
func validateContent(content string) (string, error) {
	content = sanitizeContent(content)
	if content == "" {
		return "", fmt.Errorf("content must not be empty")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return "", fmt.Errorf("content exceeds %d characters", maxContentLen)
	}
	return content, nil
}

// entityNames resolves entity ids to names, memoizing lookups.
func (e *Engine) entityNames(ids ...string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		ent, err := e.store.Entities().FindByID(id)
		if err != nil {
			return nil, err
		}
		if ent != nil {
			names[id] = ent.Name
		}
	}
	return names, nil
}
