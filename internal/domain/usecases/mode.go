package usecases

import (
	"regexp"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

// EmptyUnscopedPolicy decides what an unscoped query with no evidence falls back to.
type EmptyUnscopedPolicy string

const (
	EmptyUnscopedGeneral   EmptyUnscopedPolicy = "general"
	EmptyUnscopedNoResults EmptyUnscopedPolicy = "no_results"
)

var smallTalk = regexp.MustCompile(`^(hi|hello|hey|hiya|yo|howdy|greetings|good (morning|afternoon|evening|day)|thanks|thank you|thx|cheers|bye|goodbye|see you|how are you|how's it going|what's up|sup|nice to meet you|ok|okay|cool|great)( there| everyone| all| again| so much| a lot)?[\s!.?,:)]*$`)

// IsSmallTalk reports whether the query is a greeting or pleasantry.
func IsSmallTalk(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.Join(strings.Fields(q), " ")
	return q != "" && smallTalk.MatchString(q)
}

// ModeSelector is a pure function of the query, whether an explicit source
// scope was given, and whether ranked retrieval came back empty.
type ModeSelector struct {
	emptyUnscoped EmptyUnscopedPolicy
}

// NewModeSelector creates a selector. An unknown policy falls back to general.
func NewModeSelector(policy EmptyUnscopedPolicy) *ModeSelector {
	if policy != EmptyUnscopedNoResults {
		policy = EmptyUnscopedGeneral
	}
	return &ModeSelector{emptyUnscoped: policy}
}

// Initial picks the path before retrieval: general chat for unscoped small
// talk, retrieval for everything else. An explicit scope always retrieves.
func (s *ModeSelector) Initial(query string, scoped bool) entities.AnswerMode {
	if !scoped && IsSmallTalk(query) {
		return entities.ModeGeneral
	}
	return entities.ModeRAG
}

// AfterRetrieval resolves the final mode once the ranked set is known.
func (s *ModeSelector) AfterRetrieval(scoped, empty bool) entities.AnswerMode {
	if !empty {
		return entities.ModeRAG
	}
	if scoped || s.emptyUnscoped == EmptyUnscopedNoResults {
		return entities.ModeNoEvidence
	}
	return entities.ModeGeneral
}

// Select combines both steps into one decision.
func (s *ModeSelector) Select(query string, scoped, empty bool) entities.AnswerMode {
	if mode := s.Initial(query, scoped); mode == entities.ModeGeneral {
		return mode
	}
	return s.AfterRetrieval(scoped, empty)
}
