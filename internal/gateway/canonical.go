package gateway

import "strings"

// canonicalize joins the model identifier and every message (role-tagged)
// into one text, so the embedding captures full conversational context
// rather than just the latest message (spec §4.9).
func canonicalize(model string, messages []ChatMessage) string {
	var b strings.Builder
	b.WriteString("model:")
	b.WriteString(model)
	for _, m := range messages {
		b.WriteString("\n[")
		b.WriteString(m.Role)
		b.WriteString("] ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// lastUserMessage returns the last user-role message's content, if any.
func lastUserMessage(messages []ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content, true
		}
	}
	return "", false
}
