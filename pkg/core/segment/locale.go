package segment

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

const defaultLanguage = "en"

var (
	defaultCommas = []string{",", "،", "，", "、", "፣", "၊", ";", "΄", "‛", "।", "﹐", "꓾", "⹁", "︐", "﹑", "､"}
	cjkCommas     = []string{"，", "、", "､", "﹑", "﹐", ",", ";"}

	terminalRun = regexp.MustCompile(`[.!?。！？]+`)
)

type locale struct {
	lang   string
	commas []string
}

func localeFor(lang string) locale {
	switch lang {
	case "en":
		return locale{lang: lang, commas: defaultCommas}
	case "zh", "ja":
		return locale{lang: lang, commas: cjkCommas}
	default:
		return locale{lang: lang, commas: defaultCommas}
	}
}

// detectLanguage returns an ISO 639-1 code, or "en" when detection is
// unreliable. Han and kana script short-circuit statistical detection.
func detectLanguage(text string) string {
	han := false
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return "ja"
		}
		if unicode.Is(unicode.Han, r) {
			han = true
		}
	}
	if han {
		return "zh"
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return defaultLanguage
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return defaultLanguage
	}
	return code
}

// boundaries returns ascending byte offsets where a sentence may end: after
// each run of terminal punctuation and any closing quotes or brackets.
func boundaries(text string) []int {
	matches := terminalRun.FindAllStringIndex(text, -1)
	ends := make([]int, 0, len(matches))
	for _, m := range matches {
		end := m[1]
		for end < len(text) {
			r, size := utf8.DecodeRuneInString(text[end:])
			if !strings.ContainsRune(closers, r) {
				break
			}
			end += size
		}
		ends = append(ends, end)
	}
	return ends
}

var punkt struct {
	once sync.Once
	mu   sync.Mutex
	tok  *sentences.DefaultSentenceTokenizer
	err  error
}

func punktTokenizer() (*sentences.DefaultSentenceTokenizer, error) {
	punkt.once.Do(func() {
		punkt.tok, punkt.err = english.NewSentenceTokenizer(nil)
	})
	return punkt.tok, punkt.err
}

// punktBoundaries locates each punkt sentence in text. ok is false when the
// tokenizer is unavailable or its output cannot be mapped back onto text.
func punktBoundaries(text string) (ends []int, ok bool) {
	tok, err := punktTokenizer()
	if err != nil || tok == nil {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			ends, ok = nil, false
		}
	}()

	found := tokenize(tok, text)
	cursor := 0
	for _, s := range found {
		body := strings.TrimSpace(s.Text)
		if body == "" {
			continue
		}
		i := strings.Index(text[cursor:], body)
		if i < 0 {
			return nil, false
		}
		cursor += i + len(body)
		ends = append(ends, cursor)
	}
	return ends, true
}

func tokenize(tok *sentences.DefaultSentenceTokenizer, text string) []*sentences.Sentence {
	punkt.mu.Lock()
	defer punkt.mu.Unlock()
	return tok.Tokenize(text)
}
