// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per input in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Message is one entry of a chat prompt.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// LLMService generates text responses from a language model.
type LLMService interface {
	// Generate returns the complete response for the message list.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStream returns a channel of text deltas. The channel is closed
	// after a token with Done or Error set, or when ctx is cancelled.
	GenerateStream(ctx context.Context, messages []Message) (<-chan StreamToken, error)
}

// StreamToken represents a single delta in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// EvidenceStore persists chunks and answers nearest-neighbour queries.
type EvidenceStore interface {
	// AddSource registers a source. ID and CreatedAt are filled when empty.
	AddSource(ctx context.Context, src *entities.EvidenceSource) error

	// StoreChunks saves chunks with their embeddings. All chunks must belong to an existing source.
	StoreChunks(ctx context.Context, chunks []entities.EvidenceChunk) error

	// Search returns at most limit candidates within scope, ascending by distance.
	// Ties keep storage order.
	Search(ctx context.Context, embedding []float32, scope entities.Scope, limit int) ([]entities.RetrievalCandidate, error)

	// ListSources returns the sources of a workspace, oldest first.
	ListSources(ctx context.Context, workspaceID string) ([]entities.EvidenceSource, error)

	// FindSourceByOrigin returns entities.ErrNotFound when no source was loaded from origin.
	FindSourceByOrigin(ctx context.Context, workspaceID, origin string) (*entities.EvidenceSource, error)

	// DeleteSource removes a source and its chunks.
	DeleteSource(ctx context.Context, sourceID string) error
}

// ConversationLog is the append-only store of dialogue turns.
type ConversationLog interface {
	// AppendTurn durably records a turn and returns it with ID and timestamps set.
	AppendTurn(ctx context.Context, workspaceID string, role entities.Role, text string, citations []entities.Citation) (*entities.ConversationTurn, error)

	// ListTurns returns the turns of a workspace in insertion order.
	ListTurns(ctx context.Context, workspaceID string) ([]entities.ConversationTurn, error)
}

// WorkspaceRepository resolves workspaces.
type WorkspaceRepository interface {
	// GetOrCreateWorkspace is an idempotent upsert keyed by name.
	GetOrCreateWorkspace(ctx context.Context, name string) (*entities.Workspace, error)

	// GetWorkspace returns entities.ErrNotFound for an unknown id.
	GetWorkspace(ctx context.Context, id string) (*entities.Workspace, error)
}

// DocumentLoader reads a document from a file path or URL and splits it into segments.
type DocumentLoader interface {
	// Load reads the document at location.
	Load(ctx context.Context, location string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// ParsedText is the output of a DocumentParser.
type ParsedText struct {
	Text  string
	Pages int
}

// DocumentParser extracts text from binary document formats.
type DocumentParser interface {
	// Parse extracts text content from document bytes.
	Parse(ctx context.Context, data []byte, filename string) (*ParsedText, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf").
	SupportedFormats() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
