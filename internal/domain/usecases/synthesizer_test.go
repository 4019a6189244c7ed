package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

func TestParseAnswer_Structured(t *testing.T) {
	ans := ParseAnswer(`{"answer":"X [1]","followups":["a","b"]}`, "what is X?")
	assert.Equal(t, "X [1]", ans.Text)
	assert.Equal(t, []string{"a", "b"}, ans.Followups)
}

func TestParseAnswer_ProseAroundJSON(t *testing.T) {
	raw := "Sure! Here you go:\n```json\n{\"answer\": \"Y is true [2].\", \"followups\": [\"why?\"]}\n```\nHope that helps."
	ans := ParseAnswer(raw, "is Y true?")
	assert.Equal(t, "Y is true [2].", ans.Text)
	assert.Equal(t, []string{"why?"}, ans.Followups)
}

func TestParseAnswer_CapsFollowups(t *testing.T) {
	ans := ParseAnswer(`{"answer":"ok","followups":["a"," ","b","A","c","d"]}`, "")
	assert.Equal(t, []string{"a", "b", "c"}, ans.Followups)
}

func TestParseAnswer_PlainText(t *testing.T) {
	ans := ParseAnswer("just plain text", "tell me something")
	assert.Equal(t, "Just plain text.", ans.Text)
	assert.NotEmpty(t, ans.Followups)
	assert.LessOrEqual(t, len(ans.Followups), 3)
}

func TestParseAnswer_BrokenJSONFallsBack(t *testing.T) {
	ans := ParseAnswer(`{"answer": "unterminated`, "how does it work?")
	assert.NotEmpty(t, ans.Text)
	assert.Equal(t, HeuristicFollowups("how does it work?"), ans.Followups)
}

func TestParseAnswer_EmptyAnswerJSON(t *testing.T) {
	ans := ParseAnswer(`{"answer":"","followups":["a"]}`, "what is x")
	assert.Equal(t, "", ans.Text)
	assert.Equal(t, []string{"a"}, ans.Followups)
}

func TestParseAnswer_LenientFollowups(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single string", `{"answer":"ok","followups":"What next?"}`, []string{"What next?"}},
		{"mixed array", `{"answer":"ok","followups":["a",2,null,"b"]}`, []string{"a", "b"}},
		{"object", `{"answer":"ok","followups":{"q":"a"}}`, HeuristicFollowups("how so?")},
		{"null", `{"answer":"ok","followups":null}`, HeuristicFollowups("how so?")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := ParseAnswer(tt.raw, "how so?")
			assert.Equal(t, "ok", ans.Text)
			assert.Equal(t, tt.want, ans.Followups)
		})
	}
}

func TestParseAnswer_ObjectWithoutAnswerFallsBack(t *testing.T) {
	ans := ParseAnswer(`use {"x": 1} here`, "q")
	assert.Equal(t, `Use {"x": 1} here.`, ans.Text)
}

func TestSynthesizer_BlankStructuredAnswerUsesApology(t *testing.T) {
	s := NewSynthesizer(&mockLLM{response: `{"answer":"  ","followups":["Try again?"]}`})
	ans, err := s.Generate(context.Background(), entities.ModeGeneral, "what is x", nil)
	require.NoError(t, err)
	assert.Contains(t, ApologyMessages, ans.Text)
	assert.Equal(t, []string{"Try again?"}, ans.Followups)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"filler opener", "Based on the context, the sky is blue", "The sky is blue."},
		{"well opener", "Well, it depends.", "It depends."},
		{"whitespace", "one   two\t three", "One two three."},
		{"sentence starts", "first point. second point! third?", "First point. Second point! Third?"},
		{"trailing comma", "a list,", "A list."},
		{"citations kept", "see the table [1]", "See the table [1]."},
		{"code fence", "```\nfenced text\n```", "Fenced text."},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestHeuristicFollowups(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"How do I do X?", followupsByKeyword["how"]},
		{"what is this", followupsByKeyword["what"]},
		{"Tell me why it failed", followupsByKeyword["why"]},
		{"when was it built?", followupsByKeyword["when"]},
		{"summarize", defaultFollowups},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := HeuristicFollowups(tt.query)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, len(got), 1)
			assert.LessOrEqual(t, len(got), 3)
		})
	}
}

func TestAnswerExtractor(t *testing.T) {
	tests := []struct {
		name   string
		deltas []string
		want   string
	}{
		{"single chunk", []string{`{"answer":"hello","followups":[]}`}, "hello"},
		{"split key", []string{`{"ans`, `wer": "he`, `llo world`, `", "followups": ["x"]}`}, "hello world"},
		{"escapes", []string{`{"answer":"line\nnext \"q\" a\\b"}`}, "line\nnext \"q\" a\\b"},
		{"split escape", []string{`{"answer":"a\`, `nb"}`}, "a\nb"},
		{"unicode escape", []string{`{"answer":"caf\u00`, `e9"}`}, "café"},
		{"surrogate pair", []string{`{"answer":"\ud83d`, `\ude00!"}`}, "😀!"},
		{"plain text passthrough", []string{"  Just ", "text"}, "  Just text"},
		{"code fenced json", []string{"```json\n{\"answer\":\"fenced\"}\n```"}, "fenced"},
		{"lead-in before object", []string{"Sure! Here it is: ", `{"answer": "Use the CLI [1].", "followups": []}`}, "Use the CLI [1]."},
		{"braces without answer key", []string{"Use {name} as ", "a placeholder."}, "Use {name} as a placeholder."},
		{"long prose", []string{strings.Repeat("word ", 60), "end"}, strings.Repeat("word ", 60) + "end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var x answerExtractor
			var sb strings.Builder
			for _, d := range tt.deltas {
				sb.WriteString(x.Feed(d))
			}
			sb.WriteString(x.Flush())
			assert.Equal(t, tt.want, sb.String())
		})
	}
}

func TestBuildMessages_RAGEnumeratesContext(t *testing.T) {
	evidence := []entities.RetrievalCandidate{
		{ChunkID: "c1", SourceName: "guide.pdf", Content: "first"},
		{ChunkID: "c2", Content: "second"},
	}
	msgs := BuildMessages(entities.ModeRAG, "What?", evidence)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "[n]")
	assert.Contains(t, msgs[1].Content, "(1) [guide.pdf] first")
	assert.Contains(t, msgs[1].Content, "(2) second")
	assert.True(t, strings.HasSuffix(msgs[1].Content, "Question: What?"))
}

func TestBuildMessages_GeneralHasNoContext(t *testing.T) {
	msgs := BuildMessages(entities.ModeGeneral, "hello", nil)
	assert.Equal(t, "Question: hello", msgs[1].Content)
	assert.Equal(t, generalSystemPrompt, msgs[0].Content)
	assert.Equal(t, noResultsSystemPrompt, BuildMessages(entities.ModeNoEvidence, "x", nil)[0].Content)
}

func TestBuildCitations(t *testing.T) {
	meta := map[string]string{"page": "3"}
	cites := BuildCitations([]entities.RetrievalCandidate{
		{ChunkID: "c1", SourceID: "s1", Metadata: meta},
		{ChunkID: "c2", SourceID: "s2"},
	})
	require.Len(t, cites, 2)
	assert.Equal(t, 1, cites[0].Index)
	assert.Equal(t, 2, cites[1].Index)
	assert.Equal(t, "3", cites[0].Metadata["page"])

	meta["page"] = "9"
	assert.Equal(t, "3", cites[0].Metadata["page"], "metadata must be copied")
}

func TestSynthesizer_NoEvidenceFallsBackToCanned(t *testing.T) {
	llm := &mockLLM{err: errors.New("model offline")}
	s := NewSynthesizer(llm).WithPicker(func(n int) int { return n - 1 })

	ans := s.NoEvidence(context.Background(), "what is X?")
	assert.Equal(t, NoResultsMessages[len(NoResultsMessages)-1], ans.Text)
	assert.NotEmpty(t, ans.Followups)
}

func TestSynthesizer_EmptyOutputUsesApology(t *testing.T) {
	s := NewSynthesizer(&mockLLM{response: "   "})
	ans, err := s.Generate(context.Background(), entities.ModeGeneral, "hi", nil)
	require.NoError(t, err)
	assert.Contains(t, ApologyMessages, ans.Text)
}

func TestSynthesizer_StreamForwardsAnswerText(t *testing.T) {
	llm := &mockLLM{chunks: []string{`{"answer": "Use `, `the CLI [1].", `, `"followups": ["How?"]}`}}
	s := NewSynthesizer(llm)

	st, err := s.Stream(context.Background(), entities.ModeRAG, "How do I do X?", nil)
	require.NoError(t, err)

	var got []string
	for d := range st.Deltas {
		got = append(got, d)
	}
	ans, err := st.Result()
	require.NoError(t, err)
	assert.Equal(t, "Use the CLI [1].", strings.Join(got, ""))
	assert.Equal(t, "Use the CLI [1].", ans.Text)
	assert.Equal(t, []string{"How?"}, ans.Followups)
}

func TestAnswerExtractor_LongProseStreamsBeforeEnd(t *testing.T) {
	var x answerExtractor
	prose := strings.Repeat("plain words ", 30)
	assert.Equal(t, prose, x.Feed(prose))
	assert.Equal(t, "more", x.Feed("more"))
	assert.Equal(t, "", x.Flush())
}

func TestSynthesizer_StreamDropsLeadInProse(t *testing.T) {
	llm := &mockLLM{chunks: []string{"Sure! Here it is: ", `{"answer": "Use the CLI [1].", `, `"followups": ["How?"]}`}}
	s := NewSynthesizer(llm)

	st, err := s.Stream(context.Background(), entities.ModeRAG, "How do I do X?", nil)
	require.NoError(t, err)

	var got []string
	for d := range st.Deltas {
		got = append(got, d)
	}
	ans, err := st.Result()
	require.NoError(t, err)
	assert.Equal(t, "Use the CLI [1].", strings.Join(got, ""))
	assert.Equal(t, ans.Text, strings.Join(got, ""))
}

func TestSynthesizer_StreamFlushesPlainText(t *testing.T) {
	llm := &mockLLM{chunks: []string{"Just ", "plain text."}}
	s := NewSynthesizer(llm)

	st, err := s.Stream(context.Background(), entities.ModeGeneral, "hi", nil)
	require.NoError(t, err)

	var got []string
	for d := range st.Deltas {
		got = append(got, d)
	}
	_, err = st.Result()
	require.NoError(t, err)
	assert.Equal(t, "Just plain text.", strings.Join(got, ""))
}

func TestSynthesizer_StreamError(t *testing.T) {
	llm := &mockLLM{chunks: []string{`{"answer": "partial`}, streamErr: errors.New("connection reset")}
	s := NewSynthesizer(llm)

	st, err := s.Stream(context.Background(), entities.ModeRAG, "q", nil)
	require.NoError(t, err)
	for range st.Deltas {
	}
	_, err = st.Result()
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrGenerationFailed)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "invalid query: must not be empty",
		UserMessage(&entities.ValidationError{Field: "query", Reason: "must not be empty"}))
	assert.Equal(t, SearchFailedMessage, UserMessage(&entities.StoreError{Op: "search", Err: errors.New("x")}))
	assert.Contains(t, ApologyMessages, UserMessage(&entities.GenerationError{Op: "generate", Err: errors.New("x")}))
	assert.Equal(t, genericFailureMessage, UserMessage(errors.New("boom")))
}
