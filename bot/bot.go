// Package bot provides the per-bot handle over the RAG backend: index
// naming, search, content management, and chat session bootstrap.
package bot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/criadex/criabot/cache"
	"github.com/criadex/criabot/criadex"
)

// indexSuffix maps an index type to its group name suffix. These names
// are part of the provisioned group layout and must not change.
var indexSuffix = map[criadex.IndexType]string{
	criadex.IndexTypeDocument: "-document-index",
	criadex.IndexTypeQuestion: "-question-index",
}

// GroupName derives the backend group name for a bot's index.
func GroupName(botName string, indexType criadex.IndexType) string {
	return botName + indexSuffix[indexType]
}

// Bot is a handle over one bot's indexes.
type Bot struct {
	name    string
	content criadex.ContentAPI
	groups  criadex.GroupsAPI
	chats   *cache.Chats
}

func New(name string, client *criadex.Client, chats *cache.Chats) *Bot {
	return &Bot{
		name:    name,
		content: client.Content,
		groups:  client.Groups,
		chats:   chats,
	}
}

func (b *Bot) Name() string {
	return b.name
}

// GroupName returns the group name of one of this bot's indexes.
func (b *Bot) GroupName(indexType criadex.IndexType) string {
	return GroupName(b.name, indexType)
}

// GroupNameFor derives the group name of another bot's index, used when
// federating peer indexes into a search.
func (b *Bot) GroupNameFor(botName string, indexType criadex.IndexType) string {
	return GroupName(botName, indexType)
}

// SearchGroup queries one of the bot's indexes and returns the group
// name alongside the response so callers can key merged results.
func (b *Bot) SearchGroup(ctx context.Context, indexType criadex.IndexType, config criadex.SearchGroupConfig) (string, *criadex.GroupSearchResponse, error) {
	groupName := b.GroupName(indexType)
	response, err := b.content.Search(ctx, groupName, config)
	if err != nil {
		return groupName, nil, err
	}
	return groupName, response, nil
}

// RetrieveGroupInfo returns the model bindings for this bot. Both
// indexes share bindings, so the document group is authoritative.
func (b *Bot) RetrieveGroupInfo(ctx context.Context) (*criadex.GroupAbout, error) {
	return b.groups.About(ctx, b.GroupName(criadex.IndexTypeDocument))
}

// UploadContent adds a document to one of the bot's indexes.
func (b *Bot) UploadContent(ctx context.Context, indexType criadex.IndexType, file criadex.ContentUpload) (*criadex.ContentUploadResponse, error) {
	return b.content.Upload(ctx, b.GroupName(indexType), file)
}

// UpdateContent replaces a document in one of the bot's indexes.
func (b *Bot) UpdateContent(ctx context.Context, indexType criadex.IndexType, file criadex.ContentUpload) (*criadex.ContentUploadResponse, error) {
	return b.content.Update(ctx, b.GroupName(indexType), file)
}

// DeleteContent removes a document from one of the bot's indexes.
func (b *Bot) DeleteContent(ctx context.Context, indexType criadex.IndexType, documentName string) error {
	return b.content.Delete(ctx, b.GroupName(indexType), documentName)
}

// ListContent returns the document names in one of the bot's indexes.
func (b *Bot) ListContent(ctx context.Context, indexType criadex.IndexType) ([]string, error) {
	return b.content.List(ctx, b.GroupName(indexType))
}

// StartChat registers a fresh chat session and returns its id.
func StartChat(ctx context.Context, chats *cache.Chats) (string, error) {
	chatID := uuid.NewString()

	state := &cache.ChatState{
		StartedAt: time.Now().Unix(),
	}
	if err := chats.Set(ctx, chatID, state); err != nil {
		return "", err
	}
	return chatID, nil
}
