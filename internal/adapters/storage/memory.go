package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

// MemoryStore is an in-process store with the same contracts as SQLiteStore.
// Nothing survives a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces []entities.Workspace
	sources    []entities.EvidenceSource
	chunks     []entities.EvidenceChunk // insertion order
	turns      []entities.ConversationTurn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// GetOrCreateWorkspace returns the workspace named name, creating it once.
func (s *MemoryStore) GetOrCreateWorkspace(ctx context.Context, name string) (*entities.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ws := range s.workspaces {
		if ws.Name == name {
			found := ws
			return &found, nil
		}
	}
	now := time.Now().UTC()
	ws := entities.Workspace{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.workspaces = append(s.workspaces, ws)
	return &ws, nil
}

// GetWorkspace returns a workspace by id.
func (s *MemoryStore) GetWorkspace(ctx context.Context, id string) (*entities.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ws := range s.workspaces {
		if ws.ID == id {
			found := ws
			return &found, nil
		}
	}
	return nil, entities.ErrNotFound
}

// AddSource saves a source, assigning an ID and creation time when missing.
func (s *MemoryStore) AddSource(ctx context.Context, src *entities.EvidenceSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	s.sources = append(s.sources, *src)
	return nil
}

// StoreChunks saves chunks with their embeddings.
func (s *MemoryStore) StoreChunks(ctx context.Context, chunks []entities.EvidenceChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		s.chunks = append(s.chunks, chunk)
	}
	return nil
}

// Search finds the chunks in scope closest to embedding.
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, scope entities.Scope, limit int) ([]entities.RetrievalCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]string)
	for _, src := range s.sources {
		if scope.WorkspaceID == "" || src.WorkspaceID == scope.WorkspaceID {
			names[src.ID] = src.Name
		}
	}
	var allowed map[string]bool
	if scope.Explicit() {
		allowed = make(map[string]bool, len(scope.SourceIDs))
		for _, id := range scope.SourceIDs {
			allowed[id] = true
		}
	}

	var results []entities.RetrievalCandidate
	for _, chunk := range s.chunks {
		name, ok := names[chunk.SourceID]
		if !ok || (allowed != nil && !allowed[chunk.SourceID]) {
			continue
		}
		results = append(results, entities.RetrievalCandidate{
			ChunkID:    chunk.ID,
			SourceID:   chunk.SourceID,
			SourceName: name,
			Content:    chunk.Content,
			Metadata:   chunk.Metadata,
			Distance:   1 - cosineSimilarity(embedding, chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListSources returns the sources of a workspace, oldest first.
func (s *MemoryStore) ListSources(ctx context.Context, workspaceID string) ([]entities.EvidenceSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.EvidenceSource
	for _, src := range s.sources {
		if src.WorkspaceID == workspaceID {
			out = append(out, src)
		}
	}
	return out, nil
}

// FindSourceByOrigin returns the newest source of the workspace loaded from origin.
func (s *MemoryStore) FindSourceByOrigin(ctx context.Context, workspaceID, origin string) (*entities.EvidenceSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.sources) - 1; i >= 0; i-- {
		if src := s.sources[i]; src.WorkspaceID == workspaceID && src.Origin == origin {
			return &src, nil
		}
	}
	return nil, entities.ErrNotFound
}

// DeleteSource removes a source and its chunks.
func (s *MemoryStore) DeleteSource(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	sources := s.sources[:0]
	for _, src := range s.sources {
		if src.ID == sourceID {
			found = true
			continue
		}
		sources = append(sources, src)
	}
	s.sources = sources
	if !found {
		return entities.ErrNotFound
	}

	chunks := s.chunks[:0]
	for _, c := range s.chunks {
		if c.SourceID != sourceID {
			chunks = append(chunks, c)
		}
	}
	s.chunks = chunks
	return nil
}

// AppendTurn records a turn.
func (s *MemoryStore) AppendTurn(ctx context.Context, workspaceID string, role entities.Role, text string, citations []entities.Citation) (*entities.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	turn := entities.ConversationTurn{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Role:        role,
		Text:        text,
		Citations:   append([]entities.Citation(nil), citations...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.turns = append(s.turns, turn)
	return &turn, nil
}

// ListTurns returns the turns of a workspace in insertion order.
func (s *MemoryStore) ListTurns(ctx context.Context, workspaceID string) ([]entities.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.ConversationTurn
	for _, t := range s.turns {
		if t.WorkspaceID == workspaceID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ChunkCount returns the number of stored chunks.
func (s *MemoryStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
