package session

import "github.com/vango-go/avatar-live/pkg/core/types"

// historyManager is the conversation sent to the model. It is append-only
// apart from seeding the system prompt; callers hold Session.mu.
type historyManager struct {
	messages []types.Message
}

func newHistoryManager() *historyManager {
	return &historyManager{messages: make([]types.Message, 0, 16)}
}

// seed replaces the history with a single system prompt.
func (h *historyManager) seed(system string) {
	h.messages = h.messages[:0]
	if system != "" {
		h.messages = append(h.messages, types.SystemMessage(system))
	}
}

func (h *historyManager) appendUser(text string) {
	h.messages = append(h.messages, types.UserMessage(text))
}

func (h *historyManager) appendAssistant(text string) {
	h.messages = append(h.messages, types.AssistantMessage(text))
}

func (h *historyManager) snapshot() []types.Message {
	return types.CloneMessages(h.messages)
}
