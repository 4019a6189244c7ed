package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
)

// WorkspaceUseCase resolves workspaces and reads their history and sources.
type WorkspaceUseCase struct {
	workspaces ports.WorkspaceRepository
	turns      ports.ConversationLog
	store      ports.EvidenceStore
}

// NewWorkspaceUseCase creates a WorkspaceUseCase.
func NewWorkspaceUseCase(workspaces ports.WorkspaceRepository, turns ports.ConversationLog, store ports.EvidenceStore) *WorkspaceUseCase {
	return &WorkspaceUseCase{workspaces: workspaces, turns: turns, store: store}
}

// Default returns the default workspace, creating it on first access.
func (uc *WorkspaceUseCase) Default(ctx context.Context) (*entities.Workspace, error) {
	ws, err := uc.workspaces.GetOrCreateWorkspace(ctx, entities.DefaultWorkspaceName)
	if err != nil {
		return nil, &entities.StoreError{Op: "default workspace", Err: err}
	}
	return ws, nil
}

// Resolve returns the workspace with id, or the default one when id is blank.
func (uc *WorkspaceUseCase) Resolve(ctx context.Context, id string) (*entities.Workspace, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return uc.Default(ctx)
	}
	ws, err := uc.workspaces.GetWorkspace(ctx, id)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, &entities.ValidationError{Field: "workspace_id", Reason: "unknown workspace " + id}
	}
	if err != nil {
		return nil, &entities.StoreError{Op: "get workspace", Err: err}
	}
	return ws, nil
}

// History returns the turns of a workspace in order.
func (uc *WorkspaceUseCase) History(ctx context.Context, workspaceID string) ([]entities.ConversationTurn, error) {
	turns, err := uc.turns.ListTurns(ctx, workspaceID)
	if err != nil {
		return nil, &entities.StoreError{Op: "list turns", Err: err}
	}
	return turns, nil
}

// Sources lists the sources of a workspace.
func (uc *WorkspaceUseCase) Sources(ctx context.Context, workspaceID string) ([]entities.EvidenceSource, error) {
	sources, err := uc.store.ListSources(ctx, workspaceID)
	if err != nil {
		return nil, &entities.StoreError{Op: "list sources", Err: err}
	}
	return sources, nil
}
