package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/criadex/criabot/criadex"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChatState is the persisted form of a chat session, keyed by chat id.
// History keeps every message's metadata, including computed token
// counts, so later turns skip re-tokenization.
type ChatState struct {
	StartedAt int64                 `json:"started_at"`
	History   []criadex.ChatMessage `json:"history"`
}

// UpdateSystemMessage replaces the session's system message. At most one
// system message exists and it sits at index 0.
func (s *ChatState) UpdateSystemMessage(system criadex.ChatMessage) error {
	if system.Role != "system" {
		return fmt.Errorf("tried to update system message with role %q", system.Role)
	}

	kept := s.History[:0]
	for _, m := range s.History {
		if m.Role != "system" {
			kept = append(kept, m)
		}
	}
	s.History = append([]criadex.ChatMessage{system}, kept...)
	return nil
}

// Chats stores chat sessions. Every write resets the TTL.
type Chats struct {
	client *redis.Client
	ttl    time.Duration
}

// TTL returns the configured session lifetime.
func (c *Chats) TTL() time.Duration {
	return c.ttl
}

// Set serializes the full state and resets the TTL.
func (c *Chats) Set(ctx context.Context, chatID string, state *ChatState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("serialize chat %s: %w", chatID, err)
	}

	if err := c.client.Set(ctx, chatID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set chat %s: %w", chatID, err)
	}
	return nil
}

// Get returns the state, or (nil, nil) when the chat is unknown or
// expired. A payload that fails to deserialize indicates corruption and
// is returned as an error rather than dropped.
func (c *Chats) Get(ctx context.Context, chatID string) (*ChatState, error) {
	payload, err := c.client.Get(ctx, chatID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get chat %s: %w", chatID, err)
	}

	var state ChatState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("corrupt chat state %s: %w", chatID, err)
	}
	return &state, nil
}

// Delete removes the chat. Deleting a missing chat is not an error.
func (c *Chats) Delete(ctx context.Context, chatID string) error {
	if err := c.client.Del(ctx, chatID).Err(); err != nil {
		return fmt.Errorf("cache delete chat %s: %w", chatID, err)
	}
	return nil
}

// Exists reports whether the chat is present and readable.
func (c *Chats) Exists(ctx context.Context, chatID string) (bool, error) {
	state, err := c.Get(ctx, chatID)
	if err != nil {
		return false, err
	}
	return state != nil, nil
}
