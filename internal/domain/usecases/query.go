// Package usecases - query.go runs a question through mode selection,
// retrieval, ranking, generation and the conversation log.
package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// QueryConfig tunes retrieval and the empty-evidence fallback.
type QueryConfig struct {
	Ranker        RankerConfig
	EmptyUnscoped EmptyUnscopedPolicy
}

// QueryUseCase is the query orchestrator. Each call is independent; calls
// against the same workspace may interleave their turns.
type QueryUseCase struct {
	embedder ports.EmbeddingService
	store    ports.EvidenceStore
	turns    ports.ConversationLog
	synth    *Synthesizer
	ranker   *DiversityRanker
	modes    *ModeSelector
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	embedder ports.EmbeddingService,
	store ports.EvidenceStore,
	turns ports.ConversationLog,
	llm ports.LLMService,
	cfg QueryConfig,
) *QueryUseCase {
	return &QueryUseCase{
		embedder: embedder,
		store:    store,
		turns:    turns,
		synth:    NewSynthesizer(llm),
		ranker:   NewDiversityRanker(cfg.Ranker),
		modes:    NewModeSelector(cfg.EmptyUnscoped),
	}
}

// Synthesizer exposes the answer synthesizer, mainly to swap its picker.
func (uc *QueryUseCase) Synthesizer() *Synthesizer {
	return uc.synth
}

// Query answers a question in one shot. The user turn is persisted before
// anything else; the assistant turn only once an answer exists. On error the
// returned response is nil and no assistant turn was written.
func (uc *QueryUseCase) Query(ctx context.Context, req *entities.QueryRequest) (*entities.QueryResponse, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	userTurn, err := uc.appendTurn(ctx, req.WorkspaceID, entities.RoleUser, req.Query, nil)
	if err != nil {
		return nil, err
	}

	scoped := req.Scope().Explicit()
	mode := uc.modes.Initial(req.Query, scoped)

	var evidence []entities.RetrievalCandidate
	if mode == entities.ModeRAG {
		evidence, err = uc.retrieve(ctx, req)
		if err != nil {
			return nil, err
		}
		mode = uc.modes.AfterRetrieval(scoped, len(evidence) == 0)
	}
	logging.Info("Query workspace=%s mode=%s evidence=%d", req.WorkspaceID, mode, len(evidence))

	var ans *SynthesizedAnswer
	switch mode {
	case entities.ModeNoEvidence:
		ans = uc.synth.NoEvidence(ctx, req.Query)
	case entities.ModeRAG:
		ans, err = uc.synth.Generate(ctx, mode, req.Query, evidence)
	default:
		ans, err = uc.synth.Generate(ctx, entities.ModeGeneral, req.Query, nil)
	}
	if err != nil {
		logging.Error("Generation failed for turn %s: %v", userTurn.ID, err)
		return nil, err
	}

	citations := []entities.Citation{}
	if mode == entities.ModeRAG {
		citations = BuildCitations(evidence)
	}

	assistantTurn, err := uc.appendTurn(ctx, req.WorkspaceID, entities.RoleAssistant, ans.Text, citations)
	if err != nil {
		return nil, err
	}

	return &entities.QueryResponse{
		UserTurn:      userTurn,
		Answer:        ans.Text,
		Citations:     citations,
		AssistantTurn: assistantTurn,
		Followups:     ans.Followups,
		Scope:         req.ScopeMode(),
		AnswerMode:    mode,
		SourcesUsed:   countSources(evidence, mode),
	}, nil
}

// QueryStream answers a question as a sequence of events. Validation and the
// user turn happen before it returns; everything else runs in a goroutine
// that closes the channel after exactly one complete or error event. If ctx is
// cancelled forwarding stops, buffered text is discarded and no assistant turn
// is written.
func (uc *QueryUseCase) QueryStream(ctx context.Context, req *entities.QueryRequest) (<-chan entities.Event, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	userTurn, err := uc.appendTurn(ctx, req.WorkspaceID, entities.RoleUser, req.Query, nil)
	if err != nil {
		return nil, err
	}

	events := make(chan entities.Event, 16)
	r := &streamRun{uc: uc, ctx: ctx, req: req, userTurn: userTurn, events: events}
	go func() {
		defer close(events)
		r.run()
	}()
	return events, nil
}

type streamRun struct {
	uc       *QueryUseCase
	ctx      context.Context
	req      *entities.QueryRequest
	userTurn *entities.ConversationTurn
	events   chan<- entities.Event
}

func (r *streamRun) emit(ev entities.Event) bool {
	ev.UserTurnID = r.userTurn.ID
	select {
	case r.events <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *streamRun) fail(err error) {
	if r.ctx.Err() != nil {
		logging.Info("Stream for turn %s cancelled: %v", r.userTurn.ID, r.ctx.Err())
		return
	}
	logging.Error("Stream for turn %s failed: %v", r.userTurn.ID, err)
	r.emit(entities.Event{Type: entities.EventError, Message: UserMessage(err)})
}

func (r *streamRun) run() {
	uc := r.uc
	scoped := r.req.Scope().Explicit()
	mode := uc.modes.Initial(r.req.Query, scoped)

	var evidence []entities.RetrievalCandidate
	if mode == entities.ModeRAG {
		if !r.emit(entities.Event{Type: entities.EventSearching}) {
			return
		}
		var err error
		evidence, err = uc.retrieve(r.ctx, r.req)
		if err != nil {
			r.fail(err)
			return
		}
		mode = uc.modes.AfterRetrieval(scoped, len(evidence) == 0)
	}
	logging.Info("Stream workspace=%s mode=%s evidence=%d", r.req.WorkspaceID, mode, len(evidence))

	citations := []entities.Citation{}
	var ans *SynthesizedAnswer
	switch mode {
	case entities.ModeNoEvidence:
		if !r.emit(entities.Event{Type: entities.EventGenerating, Citations: citations}) {
			return
		}
		ans = uc.synth.NoEvidence(r.ctx, r.req.Query)
		if r.ctx.Err() != nil {
			return
		}
		if !r.emit(entities.Event{Type: entities.EventToken, Token: ans.Text}) {
			return
		}
	case entities.ModeRAG:
		citations = BuildCitations(evidence)
		if !r.emit(entities.Event{Type: entities.EventGenerating, Citations: citations}) {
			return
		}
		ans = r.forward(mode, evidence)
	default:
		if !r.emit(entities.Event{Type: entities.EventThinking}) {
			return
		}
		ans = r.forward(entities.ModeGeneral, nil)
	}
	if ans == nil || r.ctx.Err() != nil {
		return
	}

	assistantTurn, err := uc.appendTurn(r.ctx, r.req.WorkspaceID, entities.RoleAssistant, ans.Text, citations)
	if err != nil {
		r.fail(err)
		return
	}

	r.emit(entities.Event{
		Type:          entities.EventComplete,
		AssistantTurn: assistantTurn,
		Citations:     citations,
		Followups:     ans.Followups,
		Scope:         r.req.ScopeMode(),
		AnswerMode:    mode,
		SourcesUsed:   countSources(evidence, mode),
	})
}

// forward streams the answer deltas as token events. It returns nil when the
// run has already ended with an error or a cancellation.
func (r *streamRun) forward(mode entities.AnswerMode, evidence []entities.RetrievalCandidate) *SynthesizedAnswer {
	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	st, err := r.uc.synth.Stream(ctx, mode, r.req.Query, evidence)
	if err != nil {
		r.fail(err)
		return nil
	}
	for delta := range st.Deltas {
		if !r.emit(entities.Event{Type: entities.EventToken, Token: delta}) {
			cancel()
			for range st.Deltas {
			}
			return nil
		}
	}
	ans, err := st.Result()
	if err != nil {
		r.fail(err)
		return nil
	}
	return ans
}

// retrieve embeds the query, searches the wide pool and ranks it.
func (uc *QueryUseCase) retrieve(ctx context.Context, req *entities.QueryRequest) ([]entities.RetrievalCandidate, error) {
	vec, err := uc.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, asStoreError("embed", err)
	}
	candidates, err := uc.store.Search(ctx, vec, req.Scope(), uc.ranker.Config().PoolSize)
	if err != nil {
		return nil, asStoreError("search", err)
	}
	ranked := uc.ranker.Rank(candidates)
	logging.Debug("Retrieved %d candidates, ranked %d", len(candidates), len(ranked))
	return ranked, nil
}

func (uc *QueryUseCase) appendTurn(ctx context.Context, workspaceID string, role entities.Role, text string, citations []entities.Citation) (*entities.ConversationTurn, error) {
	turn, err := uc.turns.AppendTurn(ctx, workspaceID, role, text, citations)
	if err != nil {
		return nil, asStoreError("append", err)
	}
	return turn, nil
}

func asStoreError(op string, err error) error {
	var se *entities.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &entities.StoreError{Op: op, Err: err}
}

// normalizeRequest validates a request and drops blank source ids.
func normalizeRequest(req *entities.QueryRequest) (*entities.QueryRequest, error) {
	if req == nil {
		return nil, &entities.ValidationError{Field: "request", Reason: "is required"}
	}
	out := &entities.QueryRequest{
		WorkspaceID: strings.TrimSpace(req.WorkspaceID),
		Query:       strings.TrimSpace(req.Query),
	}
	if out.WorkspaceID == "" {
		return nil, &entities.ValidationError{Field: "workspace_id", Reason: "is required"}
	}
	if out.Query == "" {
		return nil, &entities.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	for _, id := range req.SourceIDs {
		if id = strings.TrimSpace(id); id != "" {
			out.SourceIDs = append(out.SourceIDs, id)
		}
	}
	return out, nil
}

func countSources(evidence []entities.RetrievalCandidate, mode entities.AnswerMode) int {
	if mode != entities.ModeRAG {
		return 0
	}
	seen := make(map[string]bool)
	for _, e := range evidence {
		seen[e.SourceID] = true
	}
	return len(seen)
}
