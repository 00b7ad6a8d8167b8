// Package segment splits streamed model output into speakable sentences.
//
// Split and Feed partition their input exactly: the returned sentences
// concatenated with the remainder reproduce the input byte for byte, so a
// caller can keep the remainder as its buffer and append the next delta.
// Sentences keep their surrounding whitespace; trim before speaking them.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Terminal punctuation accepted at the end of a complete sentence.
var terminals = []string{"。。。", "...", ".", "!", "?", "。", "！", "？"}

// A candidate ending in one of these is never complete on its own.
var abbreviations = []string{
	"Mr.", "Mrs.", "Dr.", "Prof.", "Inc.", "Ltd.", "Jr.", "Sr.",
	"e.g.", "i.e.", "vs.", "St.", "Rd.",
}

// Feed appends chunk to buffer and splits the result.
func Feed(buffer, chunk string, fasterFirst bool) (sentences []string, remainder string) {
	return Split(buffer+chunk, fasterFirst)
}

// Split returns the complete sentences at the front of text and the
// incomplete remainder. With fasterFirst the first complete sentence is
// further split after its first clause separator so speech can start early.
//
// A boundary is decided only from the text up to the first rune of the
// following word, so splitting a text whole or as it streams in gives the
// same sentences. A boundary at the very end of text stays open.
func Split(text string, fasterFirst bool) (sentences []string, remainder string) {
	return split(text, fasterFirst, false)
}

// Flush splits text at the end of a stream: boundaries at the end of text
// are accepted and a non-blank unterminated tail becomes the last sentence.
func Flush(text string, fasterFirst bool) []string {
	sentences, rest := split(text, fasterFirst, true)
	if strings.TrimSpace(rest) != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func split(text string, fasterFirst, final bool) (sentences []string, remainder string) {
	if strings.TrimSpace(text) == "" {
		return nil, text
	}

	start := 0
	for _, end := range boundaries(text) {
		if end <= start {
			continue
		}
		if !complete(text[start:end]) {
			continue
		}
		window, ok := lookahead(text, end, final)
		if !ok {
			break
		}
		if window < 0 || !confirmed(text[start:window], end-start) {
			continue
		}
		sentences = append(sentences, text[start:end])
		start = end
	}
	remainder = text[start:]

	if fasterFirst && len(sentences) > 0 {
		commas := localeFor(detectLanguage(sentences[0])).commas
		if head, tail, ok := splitClause(sentences[0], commas); ok {
			sentences = append([]string{head, tail}, sentences[1:]...)
		}
	}
	return sentences, remainder
}

// lookahead returns the end of the text that decides a boundary at end:
// through the first rune of the next word. window is -1 when the boundary is
// rejected outright and ok is false while more text is needed.
func lookahead(text string, end int, final bool) (window int, ok bool) {
	if end == len(text) {
		return len(text), final
	}
	next, _ := utf8.DecodeRuneInString(text[end:])
	if !unicode.IsSpace(next) {
		last, _ := utf8.DecodeLastRuneInString(trimClosers(text[:end]))
		if isWideTerminal(last) {
			return end, true
		}
		return -1, true
	}
	i := strings.IndexFunc(text[end:], func(r rune) bool { return !unicode.IsSpace(r) })
	if i < 0 {
		return len(text), final
	}
	_, size := utf8.DecodeRuneInString(text[end+i:])
	return end + i + size, true
}

// confirmed lets punkt veto a single-period English boundary at offset end
// of window. Other terminals and locales are accepted as they are.
func confirmed(window string, end int) bool {
	body := trimClosers(window[:end])
	if !strings.HasSuffix(body, ".") || strings.HasSuffix(body, "...") {
		return true
	}
	if detectLanguage(window) != defaultLanguage {
		return true
	}
	ends, ok := punktBoundaries(window)
	if !ok {
		return true
	}
	for _, e := range ends {
		if e == end || e == len(body) {
			return true
		}
	}
	return false
}

func complete(piece string) bool {
	t := trimClosers(strings.TrimSpace(piece))
	if t == "" {
		return false
	}
	return hasTerminal(t) && !endsWithAbbreviation(t)
}

func hasTerminal(s string) bool {
	for _, mark := range terminals {
		if strings.HasSuffix(s, mark) {
			return true
		}
	}
	return false
}

func endsWithAbbreviation(s string) bool {
	for _, abbr := range abbreviations {
		if !strings.HasSuffix(s, abbr) {
			continue
		}
		before := s[:len(s)-len(abbr)]
		if before == "" {
			return true
		}
		r, _ := utf8.DecodeLastRuneInString(before)
		if !unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isWideTerminal(r rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	}
	return false
}

// closers may trail a terminal and belong to the same sentence.
const closers = "\"'”’)]}」』»"

func trimClosers(s string) string {
	return strings.TrimRight(s, closers)
}

func splitClause(sentence string, commas []string) (head, tail string, ok bool) {
	cut := -1
	width := 0
	for _, c := range commas {
		if i := strings.Index(sentence, c); i >= 0 && (cut < 0 || i < cut) {
			cut, width = i, len(c)
		}
	}
	if cut < 0 {
		return "", "", false
	}
	head, tail = sentence[:cut+width], sentence[cut+width:]
	if strings.TrimSpace(head) == "" || strings.TrimSpace(tail) == "" {
		return "", "", false
	}
	return head, tail, true
}
