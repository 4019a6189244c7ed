// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "time"

// DefaultWorkspaceName is the name of the workspace created lazily on first access.
const DefaultWorkspaceName = "default"

// Workspace is a collaborative container for sources and a conversation.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceKind is the type of an ingested item.
type SourceKind string

const (
	SourceURL SourceKind = "url"
	SourcePDF SourceKind = "pdf"
	SourceCSV SourceKind = "csv"
	SourceTXT SourceKind = "txt"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceURL, SourcePDF, SourceCSV, SourceTXT:
		return true
	}
	return false
}

// EvidenceSource is a logical ingested item (a URL, an uploaded file).
// It is owned by exactly one workspace.
type EvidenceSource struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Kind        SourceKind `json:"kind"`
	Origin      string     `json:"origin,omitempty"` // file path or URL it was loaded from
	ChunkCount  int        `json:"chunk_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EvidenceChunk is one retrievable unit of a source's text.
// Chunks are immutable once stored.
type EvidenceChunk struct {
	ID        string            `json:"id"`
	SourceID  string            `json:"source_id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Segment is one (text, metadata) pair produced by a document loader.
type Segment struct {
	Text     string
	Metadata map[string]string
}

// Document is the ingestion input: a loaded item split into segments.
type Document struct {
	Name     string
	Origin   string
	Kind     SourceKind
	Segments []Segment
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation points from an `[n]` marker in an answer back to an evidence chunk.
type Citation struct {
	ChunkID  string            `json:"chunk_id"`
	Index    int               `json:"index"` // 1-based, matches [n] in the answer text
	SourceID string            `json:"source_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ConversationTurn is one append-only message of the dialogue.
type ConversationTurn struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Role        Role       `json:"role"`
	Text        string     `json:"text"`
	Citations   []Citation `json:"citations,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RetrievalCandidate is an in-memory search hit. Distance is ascending:
// lower means more similar.
type RetrievalCandidate struct {
	ChunkID    string
	SourceID   string
	SourceName string
	Content    string
	Metadata   map[string]string
	Distance   float64
}

// Scope restricts a search either to a whole workspace or to an explicit set of sources.
type Scope struct {
	WorkspaceID string
	SourceIDs   []string
}

// Explicit reports whether the scope names specific sources.
func (s Scope) Explicit() bool {
	return len(s.SourceIDs) > 0
}
