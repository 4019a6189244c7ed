package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcro3dile/workspace-rag/internal/adapters/embedding"
	"github.com/0xcro3dile/workspace-rag/internal/adapters/filewatcher"
	"github.com/0xcro3dile/workspace-rag/internal/adapters/llm"
	"github.com/0xcro3dile/workspace-rag/internal/adapters/loader"
	"github.com/0xcro3dile/workspace-rag/internal/adapters/parser"
	"github.com/0xcro3dile/workspace-rag/internal/adapters/storage"
	"github.com/0xcro3dile/workspace-rag/internal/config"
	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/domain/usecases"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// backend is everything a storage driver provides.
type backend interface {
	ports.EvidenceStore
	ports.ConversationLog
	ports.WorkspaceRepository
	Close() error
}

// app is the wired application shared by all commands.
type app struct {
	cfg        *config.AppConfig
	store      backend
	parser     *parser.PythonPDFParser
	web        *loader.WebLoader
	loader     *loader.MultiLoader
	queries    *usecases.QueryUseCase
	ingest     *usecases.IngestUseCase
	workspaces *usecases.WorkspaceUseCase
}

func newApp(cfg *config.AppConfig) (*app, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	embedder, chat := newProviders(cfg.Provider)

	pdf := parser.NewPythonPDFParser(cfg.Ingest.PDFServiceURL)
	web := loader.NewWebLoader(cfg.Provider.Timeout())

	a := &app{
		cfg:    cfg,
		store:  store,
		parser: pdf,
		web:    web,
		loader: loader.NewMultiLoader(pdf, web),
		queries: usecases.NewQueryUseCase(embedder, store, store, chat, usecases.QueryConfig{
			Ranker: usecases.RankerConfig{
				TopK:         cfg.Retrieval.TopK,
				PoolSize:     cfg.Retrieval.PoolSize,
				PerSourceCap: cfg.Retrieval.PerSourceCap,
			},
			EmptyUnscoped: usecases.EmptyUnscopedPolicy(cfg.Retrieval.EmptyUnscoped),
		}),
		ingest:     usecases.NewIngestUseCase(embedder, store, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		workspaces: usecases.NewWorkspaceUseCase(store, store, store),
	}
	return a, nil
}

func openStore(cfg config.StorageConfig) (backend, error) {
	switch cfg.Driver {
	case "memory":
		logging.Warn("Using in-memory storage: nothing survives a restart")
		return storage.NewMemoryStore(), nil
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening store at %s: %w", cfg.Path, err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func newProviders(cfg config.ProviderConfig) (ports.EmbeddingService, ports.LLMService) {
	timeout := cfg.Timeout()
	if cfg.Type == "openai" {
		key := cfg.APIKey()
		if key == "" {
			logging.Warn("%s is not set; requests go out unauthenticated", cfg.APIKeyEnv)
		}
		return embedding.NewOpenAIAdapter(cfg.BaseURL, key, cfg.EmbedModel, timeout),
			llm.NewOpenAIAdapter(cfg.BaseURL, key, cfg.ChatModel, timeout)
	}
	return embedding.NewOllamaAdapter(cfg.BaseURL, cfg.EmbedModel, timeout),
		llm.NewOllamaLLMAdapter(cfg.BaseURL, cfg.ChatModel, timeout)
}

// workspace resolves id, falling back to the default workspace.
func (a *app) workspace(ctx context.Context, id string) (*entities.Workspace, error) {
	return a.workspaces.Resolve(ctx, id)
}

// autoIngest builds a watcher-backed AutoIngest for the workspace.
func (a *app) autoIngest(workspaceID string) (*usecases.AutoIngest, *filewatcher.FSNotifyWatcher, error) {
	watcher, err := filewatcher.NewFSNotifyWatcher(a.extensions())
	if err != nil {
		return nil, nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return usecases.NewAutoIngest(watcher, &filteredLoader{MultiLoader: a.loader, exts: a.extensions()}, a.ingest, workspaceID), watcher, nil
}

func (a *app) extensions() []string {
	if len(a.cfg.Ingest.Extensions) > 0 {
		return a.cfg.Ingest.Extensions
	}
	return filewatcher.DefaultExtensions
}

// Close releases the store.
func (a *app) Close() error {
	return a.store.Close()
}

// filteredLoader limits the extensions AutoIngest picks up to the
// configured ones.
type filteredLoader struct {
	*loader.MultiLoader
	exts []string
}

func (l *filteredLoader) SupportedExtensions() []string {
	supported := map[string]bool{}
	for _, e := range l.MultiLoader.SupportedExtensions() {
		supported[e] = true
	}
	var out []string
	for _, e := range l.exts {
		if supported[e] {
			out = append(out, e)
		}
	}
	return out
}

// withTimeout bounds one-shot CLI operations.
func withTimeout(ctx context.Context, cfg *config.AppConfig) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.Provider.Timeout()+30*time.Second)
}
