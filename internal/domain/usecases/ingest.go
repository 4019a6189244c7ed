// Package usecases contains application business rules: ingestion, retrieval
// ranking, mode selection, answer synthesis and the query orchestrator.
// Usecases depend only on entities and port interfaces.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// IngestUseCase turns loaded documents into stored evidence.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	store        ports.EvidenceStore
	chunkSize    int
	chunkOverlap int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	store ports.EvidenceStore,
	chunkSize, chunkOverlap int,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = 500 // characters
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 50
	}
	return &IngestUseCase{
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest chunks, embeds and stores a document as a new source of the
// workspace. A source previously loaded from the same origin is replaced.
func (uc *IngestUseCase) Ingest(ctx context.Context, workspaceID string, doc *entities.Document) (*entities.EvidenceSource, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, &entities.ValidationError{Field: "workspace_id", Reason: "is required"}
	}
	if doc == nil || strings.TrimSpace(doc.Name) == "" {
		return nil, &entities.ValidationError{Field: "name", Reason: "is required"}
	}
	if !doc.Kind.Valid() {
		return nil, &entities.ValidationError{Field: "kind", Reason: fmt.Sprintf("unsupported kind %q", doc.Kind)}
	}

	pieces := uc.chunkDocument(doc)
	if len(pieces) == 0 {
		return nil, &entities.ValidationError{Field: "content", Reason: "document has no text"}
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &entities.StoreError{Op: "embed", Err: err}
	}
	if len(embeddings) != len(pieces) {
		return nil, &entities.StoreError{Op: "embed", Err: fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(pieces))}
	}

	if doc.Origin != "" {
		if err := uc.DeleteByOrigin(ctx, workspaceID, doc.Origin); err != nil {
			return nil, err
		}
	}

	src := &entities.EvidenceSource{
		WorkspaceID: workspaceID,
		Name:        doc.Name,
		Kind:        doc.Kind,
		Origin:      doc.Origin,
		ChunkCount:  len(pieces),
	}
	if err := uc.store.AddSource(ctx, src); err != nil {
		return nil, &entities.StoreError{Op: "add source", Err: err}
	}

	chunks := make([]entities.EvidenceChunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = entities.EvidenceChunk{
			ID:        generateChunkID(src.ID, i),
			SourceID:  src.ID,
			Content:   p.Text,
			Embedding: embeddings[i],
			Metadata:  p.Metadata,
		}
	}
	if err := uc.store.StoreChunks(ctx, chunks); err != nil {
		if delErr := uc.store.DeleteSource(ctx, src.ID); delErr != nil {
			logging.Warn("Rollback of source %s failed: %v", src.ID, delErr)
		}
		return nil, &entities.StoreError{Op: "store chunks", Err: err}
	}

	logging.Info("Ingested %s (%s) as %s: %d chunks", src.Name, src.Kind, src.ID, len(chunks))
	return src, nil
}

// Delete removes a source and its chunks. A missing source is ErrNotFound.
func (uc *IngestUseCase) Delete(ctx context.Context, sourceID string) error {
	err := uc.store.DeleteSource(ctx, sourceID)
	if err == nil || errors.Is(err, entities.ErrNotFound) {
		return err
	}
	return &entities.StoreError{Op: "delete source", Err: err}
}

// DeleteByOrigin removes the source loaded from origin, if any.
func (uc *IngestUseCase) DeleteByOrigin(ctx context.Context, workspaceID, origin string) error {
	existing, err := uc.store.FindSourceByOrigin(ctx, workspaceID, origin)
	if errors.Is(err, entities.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &entities.StoreError{Op: "find source", Err: err}
	}
	logging.Debug("Replacing source %s from %s", existing.ID, origin)
	if err := uc.store.DeleteSource(ctx, existing.ID); err != nil {
		return &entities.StoreError{Op: "delete source", Err: err}
	}
	return nil
}

// chunkDocument splits every segment into overlapping pieces. Each piece
// carries a copy of its segment's metadata plus a "chunk" index.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) []entities.Segment {
	var out []entities.Segment
	for _, seg := range doc.Segments {
		for _, text := range chunkText(seg.Text, uc.chunkSize, uc.chunkOverlap) {
			meta := make(map[string]string, len(seg.Metadata)+1)
			for k, v := range seg.Metadata {
				meta[k] = v
			}
			meta["chunk"] = strconv.Itoa(len(out))
			out = append(out, entities.Segment{Text: text, Metadata: meta})
		}
	}
	return out
}

// chunkText splits content into windows of at most size bytes overlapping by
// overlap, breaking at the last space inside a window when there is one.
func chunkText(content string, size, overlap int) []string {
	content = strings.TrimSpace(content)
	if len(content) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		for end < len(content) && end > start+1 && !utf8.RuneStart(content[end]) {
			end--
		}

		// Try to break at word boundary
		if end < len(content) {
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > overlap {
				end = start + lastSpace
			}
		}

		if piece := strings.TrimSpace(content[start:end]); len(piece) > 0 {
			chunks = append(chunks, piece)
		}
		if end >= len(content) {
			break
		}

		next := end - overlap
		for next > start && !utf8.RuneStart(content[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(sourceID string, index int) string {
	hash := sha256.Sum256([]byte(sourceID + ":" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:12])
}
