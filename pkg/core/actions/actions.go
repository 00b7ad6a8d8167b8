// Package actions pulls avatar expression and motion markers out of model text.
//
// The model is prompted to emit "[e:<key>]" for expressions and "[m:<key>]"
// for motions. Only keys on the character's allow-lists are recognized;
// anything else is left in the text untouched.
package actions

import (
	"regexp"
	"strings"
)

// Result is the cleaned text plus the recognized keys in order of
// appearance. Keys are lowercase; duplicates are kept.
type Result struct {
	Text        string
	Expressions []string
	Motions     []string
}

// Extractor matches markers against fixed allow-lists. Safe for concurrent use.
type Extractor struct {
	expression *regexp.Regexp
	motion     *regexp.Regexp
}

func NewExtractor(expressionKeys, motionKeys []string) *Extractor {
	return &Extractor{
		expression: markerPattern("e", expressionKeys),
		motion:     markerPattern("m", motionKeys),
	}
}

// Extract is a one-shot helper for callers without a cached Extractor.
func Extract(text string, expressionKeys, motionKeys []string) Result {
	return NewExtractor(expressionKeys, motionKeys).Extract(text)
}

func (e *Extractor) Extract(text string) Result {
	var res Result
	text, res.Expressions = strip(e.expression, text)
	text, res.Motions = strip(e.motion, text)
	res.Text = strings.TrimSpace(text)
	return res
}

func strip(re *regexp.Regexp, text string) (string, []string) {
	if re == nil {
		return text, nil
	}
	var keys []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		keys = append(keys, strings.ToLower(m[1]))
	}
	return re.ReplaceAllString(text, ""), keys
}

func markerPattern(prefix string, keys []string) *regexp.Regexp {
	alts := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(k))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`\[` + prefix + `:((?i:` + strings.Join(alts, "|") + `))\]`)
}
