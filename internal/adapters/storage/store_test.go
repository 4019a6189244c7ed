package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// store is the full surface both adapters implement.
type store interface {
	ports.EvidenceStore
	ports.ConversationLog
	ports.WorkspaceRepository
	ChunkCount(ctx context.Context) (int, error)
	Close() error
}

var (
	_ store = (*SQLiteStore)(nil)
	_ store = (*MemoryStore)(nil)
)

func forEachStore(t *testing.T, fn func(t *testing.T, s store)) {
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(t.TempDir())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func addSource(t *testing.T, s store, wsID, name string, vecs ...[]float32) *entities.EvidenceSource {
	t.Helper()
	ctx := context.Background()
	src := &entities.EvidenceSource{WorkspaceID: wsID, Name: name, Kind: entities.SourceTXT, Origin: "/tmp/" + name, ChunkCount: len(vecs)}
	require.NoError(t, s.AddSource(ctx, src))

	chunks := make([]entities.EvidenceChunk, len(vecs))
	for i, v := range vecs {
		chunks[i] = entities.EvidenceChunk{
			ID:        fmt.Sprintf("%s-%d", src.ID, i),
			SourceID:  src.ID,
			Content:   fmt.Sprintf("%s chunk %d", name, i),
			Embedding: v,
			Metadata:  map[string]string{"chunk": fmt.Sprint(i)},
		}
	}
	require.NoError(t, s.StoreChunks(ctx, chunks))
	return src
}

func TestStore_DefaultWorkspaceIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()

		var wg sync.WaitGroup
		ids := make([]string, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ws, err := s.GetOrCreateWorkspace(ctx, entities.DefaultWorkspaceName)
				if assert.NoError(t, err) {
					ids[i] = ws.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}

		ws, err := s.GetWorkspace(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, entities.DefaultWorkspaceName, ws.Name)

		_, err = s.GetWorkspace(ctx, "missing")
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestStore_SearchOrdersByDistance(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		ws, err := s.GetOrCreateWorkspace(ctx, "w")
		require.NoError(t, err)

		src := addSource(t, s, ws.ID, "a.txt",
			[]float32{0, 1, 0},
			[]float32{1, 0, 0},
			[]float32{1, 1, 0},
		)

		got, err := s.Search(ctx, []float32{1, 0, 0}, entities.Scope{WorkspaceID: ws.ID}, 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, src.ID+"-1", got[0].ChunkID)
		assert.Equal(t, src.ID+"-2", got[1].ChunkID)
		assert.Equal(t, src.ID+"-0", got[2].ChunkID)
		assert.InDelta(t, 0, got[0].Distance, 1e-6)
		assert.Equal(t, "a.txt", got[0].SourceName)
		assert.Equal(t, "1", got[0].Metadata["chunk"])

		limited, err := s.Search(ctx, []float32{1, 0, 0}, entities.Scope{WorkspaceID: ws.ID}, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestStore_SearchTiesKeepInsertionOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		ws, _ := s.GetOrCreateWorkspace(ctx, "w")
		src := addSource(t, s, ws.ID, "same.txt",
			[]float32{1, 0}, []float32{1, 0}, []float32{1, 0},
		)

		got, err := s.Search(ctx, []float32{1, 0}, entities.Scope{WorkspaceID: ws.ID}, 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, c := range got {
			assert.Equal(t, fmt.Sprintf("%s-%d", src.ID, i), c.ChunkID)
		}
	})
}

func TestStore_SearchScopes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		w1, _ := s.GetOrCreateWorkspace(ctx, "one")
		w2, _ := s.GetOrCreateWorkspace(ctx, "two")

		a := addSource(t, s, w1.ID, "a", []float32{1, 0})
		b := addSource(t, s, w1.ID, "b", []float32{1, 0})
		addSource(t, s, w2.ID, "c", []float32{1, 0})

		all, err := s.Search(ctx, []float32{1, 0}, entities.Scope{WorkspaceID: w1.ID}, 10)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		only, err := s.Search(ctx, []float32{1, 0}, entities.Scope{WorkspaceID: w1.ID, SourceIDs: []string{b.ID}}, 10)
		require.NoError(t, err)
		require.Len(t, only, 1)
		assert.Equal(t, b.ID, only[0].SourceID)

		none, err := s.Search(ctx, []float32{1, 0}, entities.Scope{WorkspaceID: w2.ID, SourceIDs: []string{a.ID}}, 10)
		require.NoError(t, err)
		assert.Empty(t, none, "sources of another workspace are out of scope")
	})
}

func TestStore_SourcesLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		ws, _ := s.GetOrCreateWorkspace(ctx, "w")
		first := addSource(t, s, ws.ID, "first.txt", []float32{1, 0})
		second := addSource(t, s, ws.ID, "second.txt", []float32{0, 1})

		sources, err := s.ListSources(ctx, ws.ID)
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, first.ID, sources[0].ID)
		assert.Equal(t, entities.SourceTXT, sources[0].Kind)

		found, err := s.FindSourceByOrigin(ctx, ws.ID, "/tmp/second.txt")
		require.NoError(t, err)
		assert.Equal(t, second.ID, found.ID)

		_, err = s.FindSourceByOrigin(ctx, ws.ID, "/tmp/none")
		assert.True(t, errors.Is(err, entities.ErrNotFound))

		require.NoError(t, s.DeleteSource(ctx, first.ID))
		assert.ErrorIs(t, s.DeleteSource(ctx, first.ID), entities.ErrNotFound)

		count, err := s.ChunkCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		got, err := s.Search(ctx, []float32{1, 0}, entities.Scope{WorkspaceID: ws.ID}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, second.ID, got[0].SourceID)
	})
}

func TestStore_TurnsAppendAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		ws, _ := s.GetOrCreateWorkspace(ctx, "w")

		user, err := s.AppendTurn(ctx, ws.ID, entities.RoleUser, "How do I do X?", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.False(t, user.CreatedAt.IsZero())

		cites := []entities.Citation{
			{ChunkID: "c1", Index: 1, SourceID: "s1", Metadata: map[string]string{"page": "2"}},
			{ChunkID: "c2", Index: 2, SourceID: "s2"},
		}
		_, err = s.AppendTurn(ctx, ws.ID, entities.RoleAssistant, "Use the CLI [1][2].", cites)
		require.NoError(t, err)

		turns, err := s.ListTurns(ctx, ws.ID)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, user.ID, turns[0].ID)
		assert.Equal(t, entities.RoleUser, turns[0].Role)
		assert.Empty(t, turns[0].Citations)
		assert.Equal(t, entities.RoleAssistant, turns[1].Role)
		assert.Equal(t, cites, turns[1].Citations)

		other, err := s.ListTurns(ctx, "elsewhere")
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	ws, err := s.GetOrCreateWorkspace(ctx, entities.DefaultWorkspaceName)
	require.NoError(t, err)
	_, err = s.AppendTurn(ctx, ws.ID, entities.RoleUser, "remember me", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	again, err := reopened.GetOrCreateWorkspace(ctx, entities.DefaultWorkspaceName)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, again.ID)

	turns, err := reopened.ListTurns(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "remember me", turns[0].Text)
}

func TestSQLiteStore_RejectsTurnForUnknownWorkspace(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.AppendTurn(context.Background(), "ghost", entities.RoleUser, "hi", nil)
	assert.Error(t, err)
}

func TestSQLiteStore_SearchWarnsOnCorruptedRows(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	ws, err := s.GetOrCreateWorkspace(ctx, entities.DefaultWorkspaceName)
	require.NoError(t, err)
	src := addSource(t, s, ws.ID, "notes.txt", []float32{1, 0}, []float32{0, 1})

	_, err = s.db.Exec(`UPDATE chunks SET metadata = '{broken' WHERE id = ?`, src.ID+"-0")
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE chunks SET embedding = 'not json' WHERE id = ?`, src.ID+"-1")
	require.NoError(t, err)

	var logs bytes.Buffer
	logging.SetOutput(&logs)
	defer logging.SetOutput(os.Stderr)

	got, err := s.Search(ctx, []float32{1, 0}, entities.Scope{WorkspaceID: ws.ID}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, src.ID+"-0", got[0].ChunkID)
	assert.Nil(t, got[0].Metadata)
	assert.Contains(t, logs.String(), "dropping corrupted metadata")
	assert.Contains(t, logs.String(), "corrupted embedding")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
