package usecases

import (
	"errors"
	"math/rand/v2"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

// NoResultsMessages are used when the no-results prompt itself cannot be answered.
var NoResultsMessages = []string{
	"I couldn't find anything about that in the selected sources. Try rephrasing your question or selecting other sources.",
	"Those sources don't seem to cover this topic. You could add a source that does, or ask about something they discuss.",
	"I looked through the selected sources but found nothing relevant to your question. A different wording might help.",
}

// ApologyMessages are shown when answer generation fails.
var ApologyMessages = []string{
	"Sorry, I couldn't generate an answer right now. Please try again.",
	"Something went wrong while I was writing the answer. Please try again in a moment.",
	"Apologies, the answer could not be completed. Please ask again.",
}

// SearchFailedMessage is shown when the evidence store or embedder fails.
const SearchFailedMessage = "Search failed. Please try again in a moment."

const genericFailureMessage = "Something went wrong. Please try again."

// randomPick returns a uniform index in [0, n). Canned message choice is
// deliberately random.
func randomPick(n int) int {
	return rand.IntN(n)
}

func pickFrom(pick func(int) int, set []string) string {
	if pick == nil {
		pick = randomPick
	}
	return set[pick(len(set))]
}

// UserMessage maps an error to a message that is safe to show a user.
func UserMessage(err error) string {
	var ve *entities.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, entities.ErrStoreUnavailable):
		return SearchFailedMessage
	case errors.Is(err, entities.ErrGenerationFailed):
		return pickFrom(nil, ApologyMessages)
	}
	return genericFailureMessage
}
