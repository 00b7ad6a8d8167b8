package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_RemovesRecognizedMarkers(t *testing.T) {
	res := Extract("Hello [e:happy] there [m:wave]!", []string{"happy"}, []string{"wave"})
	assert.Equal(t, "Hello  there !", res.Text)
	assert.Equal(t, []string{"happy"}, res.Expressions)
	assert.Equal(t, []string{"wave"}, res.Motions)
}

func TestExtract_LeavesUnknownMarkers(t *testing.T) {
	res := Extract("[e:unknown] hi", []string{"happy"}, nil)
	assert.Equal(t, "[e:unknown] hi", res.Text)
	assert.Empty(t, res.Expressions)
	assert.Empty(t, res.Motions)
}

func TestExtract_CaseInsensitiveKeysKeepDuplicatesInOrder(t *testing.T) {
	res := Extract("[e:Happy] one [e:sad] two [e:HAPPY]", []string{"happy", "sad"}, nil)
	assert.Equal(t, "one  two", res.Text)
	assert.Equal(t, []string{"happy", "sad", "happy"}, res.Expressions)
}

func TestExtract_PrefixIsCaseSensitive(t *testing.T) {
	res := Extract("[E:happy] hi [M:wave]", []string{"happy"}, []string{"wave"})
	assert.Equal(t, "[E:happy] hi [M:wave]", res.Text)
	assert.Empty(t, res.Expressions)
	assert.Empty(t, res.Motions)
}

func TestExtract_KeysAreQuoted(t *testing.T) {
	res := Extract("[m:a.b] [m:axb]", nil, []string{"a.b"})
	assert.Equal(t, "[m:axb]", res.Text)
	assert.Equal(t, []string{"a.b"}, res.Motions)
}

func TestExtractor_NoKeys(t *testing.T) {
	res := NewExtractor(nil, nil).Extract("  plain [e:happy] text  ")
	assert.Equal(t, "plain [e:happy] text", res.Text)
	assert.Nil(t, res.Expressions)
	assert.Nil(t, res.Motions)
}
