package queue

import (
	"bytes"
	"sort"

	"github.com/dmitrijs2005/ridermanager/internal/server/models"
)

// Assemble reconstructs a document from an unordered chunk collection:
// stable-sort by sequence number, then concatenate payloads. Gaps are not
// detected; a missing sequence number produces a silently shorter byte
// sequence, which is the documented producer contract.
// The input slice is not modified.
func Assemble(ownerID string, chunks []models.Chunk) *models.Document {
	sorted := make([]models.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})

	var buf bytes.Buffer
	fileName := ""
	for _, c := range sorted {
		buf.Write(c.Payload)
		if c.Final || fileName == "" {
			fileName = c.FileName
		}
	}

	return &models.Document{
		OwnerID:  ownerID,
		FileName: fileName,
		Bytes:    buf.Bytes(),
	}
}
