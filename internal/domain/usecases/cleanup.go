package usecases

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFollowups = 3

// SynthesizedAnswer is the parsed model output.
type SynthesizedAnswer struct {
	Text      string
	Followups []string
}

type structuredAnswer struct {
	Answer    *string         `json:"answer"`
	Followups json.RawMessage `json:"followups"`
}

// ParseAnswer extracts the structured answer from raw model output. It never
// fails. An object with an answer field is trusted even when the answer is
// blank; the caller substitutes its own text then. Output without such an
// object falls back to the cleaned raw text. Missing followups are filled
// from the query.
func ParseAnswer(raw, query string) SynthesizedAnswer {
	var out SynthesizedAnswer
	if parsed, ok := parseStructured(raw); ok {
		out.Text = strings.TrimSpace(*parsed.Answer)
		out.Followups = normalizeFollowups(decodeFollowups(parsed.Followups))
	} else {
		out.Text = CleanText(raw)
	}
	if len(out.Followups) == 0 {
		out.Followups = HeuristicFollowups(query)
	}
	return out
}

// parseStructured decodes the span from the first '{' to the last '}'.
func parseStructured(raw string) (structuredAnswer, bool) {
	var parsed structuredAnswer
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return parsed, false
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil || parsed.Answer == nil {
		return parsed, false
	}
	return parsed, true
}

// decodeFollowups accepts an array of strings, a single string, or a mixed
// array whose string elements are kept.
func decodeFollowups(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var single string
	if json.Unmarshal(raw, &single) == nil {
		return []string{single}
	}
	var mixed []interface{}
	if json.Unmarshal(raw, &mixed) != nil {
		return nil
	}
	var kept []string
	for _, v := range mixed {
		if str, ok := v.(string); ok {
			kept = append(kept, str)
		}
	}
	return kept
}

func normalizeFollowups(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range in {
		f = strings.TrimSpace(f)
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
		if len(out) == maxFollowups {
			break
		}
	}
	return out
}

var (
	codeFence    = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	fillerOpener = regexp.MustCompile(`(?i)^(based on (the |this )?(provided |given )?(context|sources?|information|evidence|documents?)[,:]?|according to (the )?(provided |given )?(context|sources?|documents?)[,:]?|well[,!]?|so,|okay[,!]|ok,|sure[,!]|certainly[,!]|of course[,!]|great question[,!.]?)\s+`)
	inlineSpace  = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines   = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

// CleanText repairs free-form model output: it drops code fences and filler
// openers, collapses whitespace, capitalizes sentence starts and makes sure
// the text ends with punctuation.
func CleanText(raw string) string {
	text := codeFence.ReplaceAllString(raw, "")
	text = strings.TrimSpace(text)

	for {
		stripped := fillerOpener.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = strings.TrimSpace(stripped)
	}

	text = inlineSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return ""
	}

	text = capitalizeSentences(text)
	return ensureTerminal(text)
}

func capitalizeSentences(text string) string {
	runes := []rune(text)
	upNext := true
	for i, r := range runes {
		switch {
		case upNext && unicode.IsLetter(r):
			runes[i] = unicode.ToUpper(r)
			upNext = false
		case upNext && !unicode.IsSpace(r):
			upNext = false
		case r == '.' || r == '!' || r == '?':
			// only a boundary when followed by whitespace
			upNext = i+1 < len(runes) && unicode.IsSpace(runes[i+1])
		}
	}
	return string(runes)
}

func ensureTerminal(text string) string {
	text = strings.TrimRight(text, ",;: ")
	last, _ := utf8.DecodeLastRuneInString(text)
	switch last {
	case '.', '!', '?', '"', '\'', '`', '*':
		return text
	}
	return text + "."
}

var followupsByKeyword = map[string][]string{
	"how": {
		"Can you walk me through it step by step?",
		"What are the prerequisites for this?",
		"Are there common pitfalls to avoid?",
	},
	"what": {
		"Can you give an example?",
		"How does this work in practice?",
		"What is it related to?",
	},
	"why": {
		"What are the consequences of this?",
		"What evidence supports this?",
		"Are there alternative explanations?",
	},
	"when": {
		"What happened before that?",
		"What happened afterwards?",
		"Is there a timeline of related events?",
	},
}

var defaultFollowups = []string{
	"Can you summarize the key points?",
	"What should I look into next?",
}

// HeuristicFollowups suggests follow-up questions from the first
// interrogative word in the query.
func HeuristicFollowups(query string) []string {
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if f, ok := followupsByKeyword[w]; ok {
			return append([]string(nil), f...)
		}
	}
	return append([]string(nil), defaultFollowups...)
}
