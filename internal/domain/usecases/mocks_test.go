package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, float32(i)}
	}
	return out, nil
}

// mockLLM implements ports.LLMService for testing
type mockLLM struct {
	response  string
	err       error
	chunks    []string
	streamErr error
	block     chan struct{} // when set, the stream waits on it before finishing
	onCall    func()

	mu       sync.Mutex
	messages [][]ports.Message
}

func (m *mockLLM) record(msgs []ports.Message) {
	m.mu.Lock()
	m.messages = append(m.messages, msgs)
	m.mu.Unlock()
	if m.onCall != nil {
		m.onCall()
	}
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *mockLLM) Generate(ctx context.Context, msgs []ports.Message) (string, error) {
	m.record(msgs)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) GenerateStream(ctx context.Context, msgs []ports.Message) (<-chan ports.StreamToken, error) {
	m.record(msgs)
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan ports.StreamToken)
	go func() {
		defer close(ch)
		send := func(tok ports.StreamToken) bool {
			select {
			case ch <- tok:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, c := range m.chunks {
			if !send(ports.StreamToken{Content: c}) {
				return
			}
		}
		if m.block != nil {
			select {
			case <-m.block:
			case <-ctx.Done():
				return
			}
		}
		if m.streamErr != nil {
			send(ports.StreamToken{Error: m.streamErr})
			return
		}
		send(ports.StreamToken{Done: true})
	}()
	return ch, nil
}

// mockStore implements ports.EvidenceStore for testing
type mockStore struct {
	candidates []entities.RetrievalCandidate
	searchErr  error

	mu        sync.Mutex
	lastScope entities.Scope
	lastLimit int
	sources   []entities.EvidenceSource
	chunks    []entities.EvidenceChunk
	chunkErr  error
	nextID    int
}

func (m *mockStore) AddSource(ctx context.Context, src *entities.EvidenceSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if src.ID == "" {
		m.nextID++
		src.ID = fmt.Sprintf("src-%d", m.nextID)
	}
	src.CreatedAt = time.Now()
	m.sources = append(m.sources, *src)
	return nil
}

func (m *mockStore) StoreChunks(ctx context.Context, chunks []entities.EvidenceChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunkErr != nil {
		return m.chunkErr
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockStore) Search(ctx context.Context, vec []float32, scope entities.Scope, limit int) ([]entities.RetrievalCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastScope = scope
	m.lastLimit = limit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out := m.candidates
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListSources(ctx context.Context, workspaceID string) ([]entities.EvidenceSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.EvidenceSource
	for _, s := range m.sources {
		if s.WorkspaceID == workspaceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) FindSourceByOrigin(ctx context.Context, workspaceID, origin string) (*entities.EvidenceSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.WorkspaceID == workspaceID && s.Origin == origin {
			found := s
			return &found, nil
		}
	}
	return nil, entities.ErrNotFound
}

func (m *mockStore) DeleteSource(ctx context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.sources[:0]
	for _, s := range m.sources {
		if s.ID != sourceID {
			kept = append(kept, s)
		}
	}
	m.sources = kept
	chunks := m.chunks[:0]
	for _, c := range m.chunks {
		if c.SourceID != sourceID {
			chunks = append(chunks, c)
		}
	}
	m.chunks = chunks
	return nil
}

// mockLog implements ports.ConversationLog for testing
type mockLog struct {
	mu        sync.Mutex
	turns     []entities.ConversationTurn
	appendErr error
}

func (m *mockLog) AppendTurn(ctx context.Context, workspaceID string, role entities.Role, text string, citations []entities.Citation) (*entities.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	now := time.Now()
	turn := entities.ConversationTurn{
		ID:          fmt.Sprintf("turn-%d", len(m.turns)+1),
		WorkspaceID: workspaceID,
		Role:        role,
		Text:        text,
		Citations:   citations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.turns = append(m.turns, turn)
	return &turn, nil
}

func (m *mockLog) ListTurns(ctx context.Context, workspaceID string) ([]entities.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.ConversationTurn
	for _, t := range m.turns {
		if t.WorkspaceID == workspaceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

func (m *mockLog) roles() []entities.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Role, len(m.turns))
	for i, t := range m.turns {
		out[i] = t.Role
	}
	return out
}

// mockWorkspaces implements ports.WorkspaceRepository for testing
type mockWorkspaces struct {
	mu     sync.Mutex
	byName map[string]*entities.Workspace
}

func (m *mockWorkspaces) GetOrCreateWorkspace(ctx context.Context, name string) (*entities.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byName == nil {
		m.byName = map[string]*entities.Workspace{}
	}
	if ws, ok := m.byName[name]; ok {
		return ws, nil
	}
	ws := &entities.Workspace{ID: "ws-" + name, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.byName[name] = ws
	return ws, nil
}

func (m *mockWorkspaces) GetWorkspace(ctx context.Context, id string) (*entities.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.byName {
		if ws.ID == id {
			return ws, nil
		}
	}
	return nil, entities.ErrNotFound
}
