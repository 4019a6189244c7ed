package entities

// ScopeMode is the resolved source scope of a query.
type ScopeMode string

const (
	ScopeAll      ScopeMode = "all"
	ScopeSelected ScopeMode = "selected"
)

// AnswerMode is the path the orchestrator took to produce an answer.
type AnswerMode string

const (
	ModeGeneral    AnswerMode = "general"
	ModeRAG        AnswerMode = "rag"
	ModeNoEvidence AnswerMode = "no_evidence"
)

// QueryRequest is a question submitted against a workspace.
type QueryRequest struct {
	WorkspaceID string   `json:"workspace_id"`
	Query       string   `json:"query"`
	SourceIDs   []string `json:"source_ids,omitempty"`
}

// Scope returns the evidence scope the request asks for.
func (r *QueryRequest) Scope() Scope {
	return Scope{WorkspaceID: r.WorkspaceID, SourceIDs: r.SourceIDs}
}

// ScopeMode returns "selected" when explicit sources were given, "all" otherwise.
func (r *QueryRequest) ScopeMode() ScopeMode {
	if len(r.SourceIDs) > 0 {
		return ScopeSelected
	}
	return ScopeAll
}

// QueryResponse is the one-shot result of a query.
type QueryResponse struct {
	UserTurn      *ConversationTurn `json:"user_turn"`
	Answer        string            `json:"answer"`
	Citations     []Citation        `json:"citations"`
	AssistantTurn *ConversationTurn `json:"assistant_turn"`
	Followups     []string          `json:"followups"`
	Scope         ScopeMode         `json:"mode"`
	AnswerMode    AnswerMode        `json:"answer_mode"`
	SourcesUsed   int               `json:"sources_used"`
}

// EventType names a lifecycle event of a streamed query.
type EventType string

const (
	EventSearching  EventType = "searching"
	EventThinking   EventType = "thinking"
	EventGenerating EventType = "generating"
	EventToken      EventType = "token"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
)

// Terminal reports whether no event follows this one.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// Event is one message of a streamed query. Exactly one terminal event
// (complete or error) ends every stream.
type Event struct {
	Type          EventType         `json:"type"`
	UserTurnID    string            `json:"user_turn_id"`
	Token         string            `json:"token,omitempty"`
	Citations     []Citation        `json:"citations,omitempty"`
	AssistantTurn *ConversationTurn `json:"assistant_turn,omitempty"`
	Followups     []string          `json:"followups,omitempty"`
	Scope         ScopeMode         `json:"mode,omitempty"`
	AnswerMode    AnswerMode        `json:"answer_mode,omitempty"`
	SourcesUsed   int               `json:"sources_used,omitempty"`
	Message       string            `json:"message,omitempty"`
}
