package usecases

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
)

const responseFormat = `Respond with a single JSON object and nothing else, in exactly this shape:
{"answer": "<your answer>", "followups": ["<short follow-up question>", "..."]}
Give at most 3 followups.`

const ragSystemPrompt = `You are a research assistant answering questions about the documents in the user's workspace.
Use only the numbered context items. Cite every claim inline with [n] markers, where n is the number of the supporting context item.
If the context does not contain the answer, say so plainly instead of guessing.
` + responseFormat

const generalSystemPrompt = `You are a friendly assistant for a document workspace.
The user is chatting rather than asking about specific documents. Reply conversationally and briefly, without citations.
` + responseFormat

const noResultsSystemPrompt = `You are a helpful assistant for a document workspace.
No passages relevant to the user's question were found in the sources they selected.
Tell them kindly that these sources do not seem to cover it, and suggest how to rephrase the question or what kind of source to add.
Do not invent facts and do not use citations.
` + responseFormat

// BuildMessages assembles the chat prompt for a mode. For the RAG mode the
// evidence is enumerated from 1 in the given order, so that [n] in the answer
// refers to evidence[n-1].
func BuildMessages(mode entities.AnswerMode, query string, evidence []entities.RetrievalCandidate) []ports.Message {
	var system string
	switch mode {
	case entities.ModeRAG:
		system = ragSystemPrompt
	case entities.ModeNoEvidence:
		system = noResultsSystemPrompt
	default:
		system = generalSystemPrompt
	}

	var sb strings.Builder
	if mode == entities.ModeRAG && len(evidence) > 0 {
		sb.WriteString("Context:\n")
		sb.WriteString(formatContext(evidence))
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(query))

	return []ports.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: sb.String()},
	}
}

func formatContext(evidence []entities.RetrievalCandidate) string {
	var sb strings.Builder
	for i, e := range evidence {
		fmt.Fprintf(&sb, "(%d) ", i+1)
		if e.SourceName != "" {
			fmt.Fprintf(&sb, "[%s] ", e.SourceName)
		}
		sb.WriteString(strings.TrimSpace(e.Content))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// BuildCitations maps ranked evidence to display citations indexed from 1.
func BuildCitations(evidence []entities.RetrievalCandidate) []entities.Citation {
	citations := make([]entities.Citation, len(evidence))
	for i, e := range evidence {
		var meta map[string]string
		if len(e.Metadata) > 0 {
			meta = make(map[string]string, len(e.Metadata))
			for k, v := range e.Metadata {
				meta[k] = v
			}
		}
		citations[i] = entities.Citation{
			ChunkID:  e.ChunkID,
			Index:    i + 1,
			SourceID: e.SourceID,
			Metadata: meta,
		}
	}
	return citations
}
