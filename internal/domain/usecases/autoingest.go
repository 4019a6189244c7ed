package usecases

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// AutoIngest keeps a workspace in sync with a directory.
type AutoIngest struct {
	watcher     ports.FileWatcher
	loader      ports.DocumentLoader
	ingest      *IngestUseCase
	workspaceID string
}

// NewAutoIngest creates an AutoIngest feeding workspaceID.
func NewAutoIngest(watcher ports.FileWatcher, loader ports.DocumentLoader, ingest *IngestUseCase, workspaceID string) *AutoIngest {
	return &AutoIngest{
		watcher:     watcher,
		loader:      loader,
		ingest:      ingest,
		workspaceID: workspaceID,
	}
}

// Sync ingests every supported file already present under dir and returns
// how many were ingested. Files that fail are logged and skipped.
func (a *AutoIngest) Sync(ctx context.Context, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !a.supported(path) {
			return nil
		}
		if a.ingestFile(ctx, path) {
			count++
		}
		return nil
	})
	return count, err
}

// Run watches dir until ctx is cancelled: created and modified files are
// (re)ingested, deleted files have their source removed.
func (a *AutoIngest) Run(ctx context.Context, dir string) error {
	events, err := a.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	logging.Info("Watching %s for changes", dir)

	for ev := range events {
		logging.Debug("File %s: %s", ev.Operation, ev.Path)
		switch ev.Operation {
		case ports.FileCreated, ports.FileModified:
			a.ingestFile(ctx, ev.Path)
		case ports.FileDeleted:
			origin := absPath(ev.Path)
			if err := a.ingest.DeleteByOrigin(ctx, a.workspaceID, origin); err != nil {
				logging.Error("Removing %s: %v", origin, err)
			} else {
				logging.Info("Removed source for %s", origin)
			}
		}
	}
	return ctx.Err()
}

func (a *AutoIngest) ingestFile(ctx context.Context, path string) bool {
	path = absPath(path)
	doc, err := a.loader.Load(ctx, path)
	if err != nil {
		logging.Error("Loading %s: %v", path, err)
		return false
	}
	doc.Origin = path
	if _, err := a.ingest.Ingest(ctx, a.workspaceID, doc); err != nil {
		logging.Error("Ingesting %s: %v", path, err)
		return false
	}
	return true
}

func (a *AutoIngest) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range a.loader.SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
