package usecases

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

type extractState int

const (
	extractDetect extractState = iota
	extractSeekKey
	extractInString
	extractDone
	extractPassthrough
)

var answerKey = regexp.MustCompile(`"answer"\s*:\s*"`)

const (
	// maxLeadIn is how much prose may precede the JSON object.
	maxLeadIn = 256
	// maxKeySeek is how far into the object the "answer" key may start.
	maxKeySeek = 1024
)

// answerExtractor turns the deltas of a streamed JSON answer object into the
// decoded contents of its "answer" field. A short lead-in before the object
// is dropped. Output that never turns into an object with an answer field is
// released unchanged, either once the hold-back limits are exceeded or on
// Flush.
type answerExtractor struct {
	state   extractState
	pending string
	held    string
}

// Feed consumes one delta and returns the text that became visible.
func (x *answerExtractor) Feed(delta string) string {
	switch x.state {
	case extractDone:
		return ""
	case extractPassthrough:
		return delta
	case extractDetect, extractSeekKey:
		x.held += delta
	}

	buf := x.pending + delta
	x.pending = ""

	if x.state == extractDetect {
		start := strings.IndexByte(buf, '{')
		if trimmed := strings.TrimLeft(buf, " \t\r\n"); strings.HasPrefix(trimmed, "`") {
			start = len(buf) - len(trimmed)
		}
		if start < 0 {
			if len(buf) > maxLeadIn {
				return x.release()
			}
			x.pending = buf
			return ""
		}
		x.state = extractSeekKey
		buf = buf[start:]
	}

	if x.state == extractSeekKey {
		loc := answerKey.FindStringIndex(buf)
		if loc == nil {
			if len(x.held) > maxLeadIn+maxKeySeek {
				return x.release()
			}
			x.pending = buf
			return ""
		}
		x.state = extractInString
		x.held = ""
		buf = buf[loc[1]:]
	}

	return x.decode(buf)
}

// Flush returns the held-back text when the output ended before an answer
// field started, and nothing otherwise.
func (x *answerExtractor) Flush() string {
	if x.state == extractDetect || x.state == extractSeekKey {
		return x.release()
	}
	return ""
}

// release switches to passthrough and hands back everything held so far.
func (x *answerExtractor) release() string {
	out := x.held
	x.held, x.pending = "", ""
	x.state = extractPassthrough
	return out
}

// decode unescapes JSON string content up to the closing quote. Incomplete
// escape sequences at the end of buf are held back for the next delta.
func (x *answerExtractor) decode(buf string) string {
	var sb strings.Builder
	i := 0
	for i < len(buf) {
		c := buf[i]
		if c == '"' {
			x.state = extractDone
			return sb.String()
		}
		if c != '\\' {
			sb.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(buf) {
			x.pending = buf[i:]
			return sb.String()
		}
		switch buf[i+1] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'u':
			r, width, complete := decodeUnicodeEscape(buf[i:])
			if !complete {
				x.pending = buf[i:]
				return sb.String()
			}
			sb.WriteRune(r)
			i += width
			continue
		default:
			// \" \\ \/ and anything unknown: emit the escaped byte
			sb.WriteByte(buf[i+1])
		}
		i += 2
	}
	return sb.String()
}

// decodeUnicodeEscape decodes \uXXXX (and a following low surrogate) at the
// start of s. complete is false when more input is needed.
func decodeUnicodeEscape(s string) (r rune, width int, complete bool) {
	if len(s) < 6 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(s[2:6], 16, 16)
	if err != nil {
		return utf8.RuneError, 6, true
	}
	r = rune(v)
	if !utf16.IsSurrogate(r) {
		return r, 6, true
	}
	if len(s) < 12 {
		return 0, 0, false
	}
	if s[6] == '\\' && s[7] == 'u' {
		if lo, err := strconv.ParseUint(s[8:12], 16, 16); err == nil {
			if dec := utf16.DecodeRune(r, rune(lo)); dec != utf8.RuneError {
				return dec, 12, true
			}
		}
	}
	return utf8.RuneError, 6, true
}
