package chat

import (
	"fmt"

	"github.com/criadex/criabot/criadex"
)

const (
	// ExtraTokenMargin is reserved headroom below max_input_tokens.
	ExtraTokenMargin = 5

	// TokenCountMetaKey caches a message's token count in its metadata
	// so later turns skip re-tokenization.
	TokenCountMetaKey = "token_count"

	// EphemeralMetaKey marks the per-call system injection. Messages
	// carrying it are never persisted.
	EphemeralMetaKey = "is_ephemeral"
)

// Buffer maintains a token-bounded window over a chat history. The sum
// of tokens in the returned window never exceeds maxTokens; a safety
// margin of ExtraTokenMargin is always reserved.
type Buffer struct {
	maxTokens int
	tokenizer Tokenizer
	history   []criadex.ChatMessage
}

// NewBuffer wraps an existing history. The history is windowed lazily,
// on the next AddMessage or Window call.
func NewBuffer(maxTokens int, history []criadex.ChatMessage, tokenizer Tokenizer) *Buffer {
	return &Buffer{
		maxTokens: maxTokens,
		tokenizer: tokenizer,
		history:   history,
	}
}

// History returns the persistent (non-ephemeral) history.
func (b *Buffer) History() []criadex.ChatMessage {
	return b.history
}

// AddMessage appends a message and re-windows the history.
func (b *Buffer) AddMessage(msg criadex.ChatMessage) {
	b.history = append(b.history, msg)
	b.Window(nil)
}

// tokenCount reads the cached token count from message metadata.
// JSON round-trips turn ints into float64, so both shapes are accepted.
func tokenCount(msg *criadex.ChatMessage) (int, bool) {
	if msg.Metadata == nil {
		return 0, false
	}
	switch v := msg.Metadata[TokenCountMetaKey].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// setTokenCount recomputes and caches the token count of a message.
func (b *Buffer) setTokenCount(msg *criadex.ChatMessage) int {
	count := b.tokenizer.Count(msg.Content)
	if msg.Metadata == nil {
		msg.Metadata = map[string]interface{}{}
	}
	msg.Metadata[TokenCountMetaKey] = count
	return count
}

// ensureTokenCount computes the token count only when not cached.
func (b *Buffer) ensureTokenCount(msg *criadex.ChatMessage) int {
	if count, ok := tokenCount(msg); ok {
		return count
	}
	return b.setTokenCount(msg)
}

func historyTokens(history []criadex.ChatMessage) int {
	total := 0
	for i := range history {
		count, _ := tokenCount(&history[i])
		total += count
	}
	return total
}

// popSystem removes the system message from a history slice and returns
// it. At most one system message is allowed.
func popSystem(history []criadex.ChatMessage) ([]criadex.ChatMessage, *criadex.ChatMessage, error) {
	var system *criadex.ChatMessage
	kept := make([]criadex.ChatMessage, 0, len(history))
	for i := range history {
		if history[i].Role == "system" {
			if system != nil {
				return nil, nil, fmt.Errorf("history contains more than one system message")
			}
			m := history[i]
			system = &m
			continue
		}
		kept = append(kept, history[i])
	}
	return kept, system, nil
}

// Window recomputes the token-bounded window and replaces the
// persistent history with it. When systemEphemeral is supplied, it is
// budgeted for and included in the returned list immediately before the
// final message (the current user prompt), but never persisted.
func (b *Buffer) Window(systemEphemeral *criadex.ChatMessage) ([]criadex.ChatMessage, error) {
	history := make([]criadex.ChatMessage, len(b.history))
	copy(history, b.history)

	history, system, err := popSystem(history)
	if err != nil {
		return nil, err
	}

	for i := range history {
		b.ensureTokenCount(&history[i])
	}

	ephemeralTokens := 0
	if systemEphemeral != nil {
		ephemeralTokens = b.setTokenCount(systemEphemeral)
		systemEphemeral.Metadata[EphemeralMetaKey] = true
	}

	systemTokens := 0
	if system != nil {
		systemTokens = b.setTokenCount(system)
		system.Metadata[EphemeralMetaKey] = false
	}

	available := b.maxTokens - systemTokens - ephemeralTokens - ExtraTokenMargin
	if available < 0 {
		available = 0
	}

	// Shrink from the oldest end until the suffix fits.
	count := len(history)
	for count > 1 && historyTokens(history[len(history)-count:]) > available {
		count--
	}
	history = history[len(history)-count:]

	// A single surviving message may still be over budget on its own.
	if len(history) == 1 {
		b.truncateMessage(&history[0], available)
	}

	if system != nil {
		history = append([]criadex.ChatMessage{*system}, history...)
	}

	b.history = make([]criadex.ChatMessage, len(history))
	copy(b.history, history)

	// The ephemeral goes immediately before the last message, which is
	// the user prompt for this turn.
	if systemEphemeral != nil {
		if len(history) > 1 {
			idx := len(history) - 1
			out := make([]criadex.ChatMessage, 0, len(history)+1)
			out = append(out, history[:idx]...)
			out = append(out, *systemEphemeral)
			out = append(out, history[idx:]...)
			history = out
		} else {
			history = append(history, *systemEphemeral)
		}
	}

	return history, nil
}

// truncateMessage trims message content until it fits maxTokens.
// 1 token is roughly 4 characters; a factor of 3 avoids overshooting.
func (b *Buffer) truncateMessage(msg *criadex.ChatMessage, maxTokens int) {
	for b.setTokenCount(msg) > maxTokens {
		current, _ := tokenCount(msg)
		excess := current - maxTokens
		removeChars := excess * 3

		runes := []rune(msg.Content)
		if removeChars >= len(runes) {
			msg.Content = ""
			continue
		}
		msg.Content = string(runes[:len(runes)-removeChars])
	}
}
