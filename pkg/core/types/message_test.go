package types

import "testing"

func TestCloneMessages_DoesNotAlias(t *testing.T) {
	in := []Message{UserMessage("hi")}
	out := CloneMessages(in)
	out[0].Content = "changed"
	if in[0].Content != "hi" {
		t.Fatalf("source mutated: %q", in[0].Content)
	}
	if CloneMessages(nil) != nil {
		t.Fatalf("CloneMessages(nil) should be nil")
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]Message{
		SystemMessage("persona"),
		UserMessage("hello"),
		SystemMessage("style"),
		AssistantMessage("hi"),
	})
	if system != "persona\n\nstyle" {
		t.Fatalf("system=%q", system)
	}
	if len(rest) != 2 || rest[0].Role != RoleUser || rest[1].Role != RoleAssistant {
		t.Fatalf("rest=%+v", rest)
	}
}
