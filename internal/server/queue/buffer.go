package queue

import (
	"sync"

	"github.com/dmitrijs2005/ridermanager/internal/server/models"
)

// ChunkBuffer accumulates document chunks per owner until the final-flagged
// chunk arrives. Appends for unrelated owners happen concurrently (one per
// stream handler); appends for the same owner are serialized upstream by the
// prefetch-of-1 delivery discipline, so the buffer only guards its shared map.
type ChunkBuffer struct {
	mu       sync.Mutex
	parts    map[string][]models.Chunk
	complete map[string]bool
}

func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{
		parts:    make(map[string][]models.Chunk),
		complete: make(map[string]bool),
	}
}

// Append adds a chunk to its owner's in-flight collection, creating the
// collection on first sight of the owner. Completion tracks the final flag of
// the most recently appended chunk: a final chunk arriving before the rest
// triggers assembly early, matching the upstream producer contract.
func (b *ChunkBuffer) Append(chunk models.Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parts[chunk.OwnerID] = append(b.parts[chunk.OwnerID], chunk)
	b.complete[chunk.OwnerID] = chunk.Final
}

// IsComplete reports whether the owner's most recently appended chunk carried
// the final flag.
func (b *ChunkBuffer) IsComplete(ownerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.complete[ownerID]
}

// DrainAndRemove atomically returns all accumulated chunks for the owner and
// deletes the owner's entry, so a second drain before new chunks arrive
// returns nothing.
func (b *ChunkBuffer) DrainAndRemove(ownerID string) []models.Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	parts := b.parts[ownerID]
	delete(b.parts, ownerID)
	delete(b.complete, ownerID)
	return parts
}

// restore puts drained chunks back after a failed store so a redelivery of
// the final chunk still assembles the full document.
func (b *ChunkBuffer) restore(ownerID string, chunks []models.Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parts[ownerID] = append(chunks, b.parts[ownerID]...)
}
