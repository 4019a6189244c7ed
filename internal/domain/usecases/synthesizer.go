package usecases

import (
	"context"
	"strings"
	"sync"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// Synthesizer prompts the language model and turns its output into an answer
// with follow-up suggestions.
type Synthesizer struct {
	llm  ports.LLMService
	pick func(n int) int
}

// NewSynthesizer creates a Synthesizer backed by llm.
func NewSynthesizer(llm ports.LLMService) *Synthesizer {
	return &Synthesizer{llm: llm, pick: randomPick}
}

// WithPicker replaces the random choice of canned messages.
func (s *Synthesizer) WithPicker(pick func(n int) int) *Synthesizer {
	s.pick = pick
	return s
}

// Generate runs one atomic generation and parses the result.
func (s *Synthesizer) Generate(ctx context.Context, mode entities.AnswerMode, query string, evidence []entities.RetrievalCandidate) (*SynthesizedAnswer, error) {
	raw, err := s.llm.Generate(ctx, BuildMessages(mode, query, evidence))
	if err != nil {
		return nil, &entities.GenerationError{Op: "generate", Err: err}
	}
	return s.finish(raw, query), nil
}

// NoEvidence answers with the no-results prompt. It always produces an
// answer: a failed generation falls back to a canned message.
func (s *Synthesizer) NoEvidence(ctx context.Context, query string) *SynthesizedAnswer {
	ans, err := s.Generate(ctx, entities.ModeNoEvidence, query, nil)
	if err != nil {
		logging.Warn("no-results generation failed, using canned reply: %v", err)
		return &SynthesizedAnswer{
			Text:      pickFrom(s.pick, NoResultsMessages),
			Followups: HeuristicFollowups(query),
		}
	}
	return ans
}

func (s *Synthesizer) finish(raw, query string) *SynthesizedAnswer {
	ans := ParseAnswer(raw, query)
	if ans.Text == "" {
		ans.Text = pickFrom(s.pick, ApologyMessages)
	}
	return &ans
}

// AnswerStream is a lazy, finite sequence of answer deltas followed by the
// parsed result. Deltas must be drained (or ctx cancelled) before Result returns.
type AnswerStream struct {
	Deltas <-chan string

	done   chan struct{}
	once   sync.Once
	answer *SynthesizedAnswer
	err    error
}

// Result blocks until the stream has ended and returns the parsed answer or
// the generation error.
func (a *AnswerStream) Result() (*SynthesizedAnswer, error) {
	<-a.done
	return a.answer, a.err
}

func (a *AnswerStream) finish(ans *SynthesizedAnswer, err error) {
	a.once.Do(func() {
		a.answer, a.err = ans, err
		close(a.done)
	})
}

// Stream starts a streaming generation. Visible answer text is sent on
// Deltas as it arrives; the full output is parsed once the model finishes.
func (s *Synthesizer) Stream(ctx context.Context, mode entities.AnswerMode, query string, evidence []entities.RetrievalCandidate) (*AnswerStream, error) {
	tokens, err := s.llm.GenerateStream(ctx, BuildMessages(mode, query, evidence))
	if err != nil {
		return nil, &entities.GenerationError{Op: "stream", Err: err}
	}

	deltas := make(chan string)
	stream := &AnswerStream{Deltas: deltas, done: make(chan struct{})}

	go func() {
		defer close(deltas)

		var raw strings.Builder
		var x answerExtractor
		for {
			var tok ports.StreamToken
			var ok bool
			select {
			case <-ctx.Done():
				stream.finish(nil, &entities.GenerationError{Op: "stream", Err: ctx.Err()})
				return
			case tok, ok = <-tokens:
			}
			if !ok {
				break
			}
			if tok.Error != nil {
				stream.finish(nil, &entities.GenerationError{Op: "stream", Err: tok.Error})
				return
			}
			if tok.Content != "" {
				raw.WriteString(tok.Content)
				if visible := x.Feed(tok.Content); visible != "" {
					select {
					case deltas <- visible:
					case <-ctx.Done():
						stream.finish(nil, &entities.GenerationError{Op: "stream", Err: ctx.Err()})
						return
					}
				}
			}
			if tok.Done {
				break
			}
		}
		if rest := x.Flush(); rest != "" {
			select {
			case deltas <- rest:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			stream.finish(nil, &entities.GenerationError{Op: "stream", Err: ctx.Err()})
			return
		}
		stream.finish(s.finish(raw.String(), query), nil)
	}()

	return stream, nil
}
