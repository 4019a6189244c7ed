// Package storage provides persistence adapters implementing
// ports.EvidenceStore, ports.ConversationLog and ports.WorkspaceRepository.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// SQLiteStore keeps workspaces, sources, chunks and turns in one SQLite file.
// Vector search is brute force over the scoped chunks.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
}

// NewSQLiteStore opens (or creates) dataPath/workspace.db.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "workspace.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables. seq columns give storage order.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sources (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		workspace_id TEXT NOT NULL REFERENCES workspaces(id),
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sources_workspace ON sources(workspace_id);
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);
	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		workspace_id TEXT NOT NULL REFERENCES workspaces(id),
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		citations TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_workspace ON turns(workspace_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreateWorkspace inserts the workspace unless the name exists, then reads it back.
func (s *SQLiteStore) GetOrCreateWorkspace(ctx context.Context, name string) (*entities.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, uuid.NewString(), name, now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting workspace: %w", err)
	}

	var ws entities.Workspace
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE name = ?`, name,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reading workspace: %w", err)
	}
	return &ws, nil
}

// GetWorkspace returns a workspace by id.
func (s *SQLiteStore) GetWorkspace(ctx context.Context, id string) (*entities.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ws entities.Workspace
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading workspace: %w", err)
	}
	return &ws, nil
}

// AddSource saves a source, assigning an ID and creation time when missing.
func (s *SQLiteStore) AddSource(ctx context.Context, src *entities.EvidenceSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, workspace_id, name, kind, origin, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, src.ID, src.WorkspaceID, src.Name, string(src.Kind), src.Origin, src.ChunkCount, src.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting source: %w", err)
	}
	return nil
}

// StoreChunks saves chunks with their embeddings in one transaction.
func (s *SQLiteStore) StoreChunks(ctx context.Context, chunks []entities.EvidenceChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_id, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		created := chunk.CreatedAt
		if created.IsZero() {
			created = now
		}

		_, err = stmt.ExecContext(ctx, chunk.ID, chunk.SourceID, chunk.Content, embeddingJSON, string(metaJSON), created)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// Search scores every chunk in scope by cosine distance and returns the
// closest limit. Equal distances keep insertion order.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, scope entities.Scope, limit int) ([]entities.RetrievalCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT c.id, c.source_id, s.name, c.content, c.embedding, c.metadata
		FROM chunks c JOIN sources s ON s.id = c.source_id
		WHERE 1 = 1`
	var args []any
	if scope.WorkspaceID != "" {
		query += ` AND s.workspace_id = ?`
		args = append(args, scope.WorkspaceID)
	}
	if scope.Explicit() {
		query += ` AND c.source_id IN (?` + strings.Repeat(", ?", len(scope.SourceIDs)-1) + `)`
		for _, id := range scope.SourceIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY c.seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []entities.RetrievalCandidate
	for rows.Next() {
		var c entities.RetrievalCandidate
		var embeddingJSON []byte
		var metaJSON sql.NullString
		if err := rows.Scan(&c.ChunkID, &c.SourceID, &c.SourceName, &c.Content, &embeddingJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var vec []float32
		if err := json.Unmarshal(embeddingJSON, &vec); err != nil {
			logging.Warn("Skipping chunk %s: corrupted embedding: %v", c.ChunkID, err)
			continue
		}
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			if err := json.Unmarshal([]byte(metaJSON.String), &c.Metadata); err != nil {
				logging.Warn("Chunk %s: dropping corrupted metadata: %v", c.ChunkID, err)
				c.Metadata = nil
			}
		}
		c.Distance = 1 - cosineSimilarity(embedding, vec)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
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
func (s *SQLiteStore) ListSources(ctx context.Context, workspaceID string) ([]entities.EvidenceSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, kind, origin, chunk_count, created_at
		FROM sources WHERE workspace_id = ? ORDER BY seq
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var out []entities.EvidenceSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// FindSourceByOrigin returns the newest source of the workspace loaded from origin.
func (s *SQLiteStore) FindSourceByOrigin(ctx context.Context, workspaceID, origin string) (*entities.EvidenceSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, kind, origin, chunk_count, created_at
		FROM sources WHERE workspace_id = ? AND origin = ? ORDER BY seq DESC LIMIT 1
	`, workspaceID, origin)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.ErrNotFound
	}
	return src, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*entities.EvidenceSource, error) {
	var src entities.EvidenceSource
	var kind string
	err := row.Scan(&src.ID, &src.WorkspaceID, &src.Name, &kind, &src.Origin, &src.ChunkCount, &src.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning source: %w", err)
	}
	src.Kind = entities.SourceKind(kind)
	return &src, nil
}

// DeleteSource removes a source and its chunks.
func (s *SQLiteStore) DeleteSource(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.ErrNotFound
	}
	return tx.Commit()
}

// AppendTurn durably records a turn.
func (s *SQLiteStore) AppendTurn(ctx context.Context, workspaceID string, role entities.Role, text string, citations []entities.Citation) (*entities.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	turn := &entities.ConversationTurn{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Role:        role,
		Text:        text,
		Citations:   citations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var citationsJSON []byte
	if len(citations) > 0 {
		var err error
		if citationsJSON, err = json.Marshal(citations); err != nil {
			return nil, fmt.Errorf("encoding citations: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, workspace_id, role, text, citations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, turn.ID, workspaceID, string(role), text, string(citationsJSON), now, now)
	if err != nil {
		return nil, fmt.Errorf("inserting turn: %w", err)
	}
	return turn, nil
}

// ListTurns returns the turns of a workspace in insertion order.
func (s *SQLiteStore) ListTurns(ctx context.Context, workspaceID string) ([]entities.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, role, text, citations, created_at, updated_at
		FROM turns WHERE workspace_id = ? ORDER BY seq
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var out []entities.ConversationTurn
	for rows.Next() {
		var t entities.ConversationTurn
		var role string
		var citationsJSON sql.NullString
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &role, &t.Text, &citationsJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Role = entities.Role(role)
		if citationsJSON.Valid && citationsJSON.String != "" {
			if err := json.Unmarshal([]byte(citationsJSON.String), &t.Citations); err != nil {
				return nil, fmt.Errorf("decoding citations of turn %s: %w", t.ID, err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ChunkCount returns the number of stored chunks.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}
