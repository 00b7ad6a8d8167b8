package character

import (
	"embed"
	"strings"
)

//go:embed prompts/*.txt
var promptFS embed.FS

func prompt(name string) string {
	b, err := promptFS.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func markerList(prefix string, keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, "["+prefix+":"+k+"]")
	}
	return strings.Join(parts, " ")
}

// SystemPrompt seeds a new conversation: persona, speech guidance, the
// available expression and motion markers, then style guidance.
func (c *Character) SystemPrompt() string {
	sections := []string{
		strings.TrimSpace(c.Persona),
		prompt("speakable"),
		strings.ReplaceAll(prompt("expression"), "{{markers}}", markerList("e", c.ExpressionKeys())),
		strings.ReplaceAll(prompt("motion"), "{{markers}}", markerList("m", c.MotionKeys())),
		prompt("concise_style"),
	}
	out := sections[:0]
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}
