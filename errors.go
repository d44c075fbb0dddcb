package criabot

import (
	"errors"
	"fmt"
)

var (
	// ErrBotNotFound is returned when an operation names an unknown bot.
	ErrBotNotFound = errors.New("bot not found")

	// ErrBotExists is returned when creating a bot whose name is taken.
	ErrBotExists = errors.New("bot already exists")

	// ErrInitializedAlready is returned on a second Initialize call.
	ErrInitializedAlready = errors.New("criabot is already initialized")
)

// ChatNotFoundError is returned when a chat id is unknown or expired.
type ChatNotFoundError struct {
	ChatID string
}

func (e *ChatNotFoundError) Error() string {
	return fmt.Sprintf("chat %s not found", e.ChatID)
}
