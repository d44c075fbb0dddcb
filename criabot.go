// Package criabot orchestrates chat sessions in front of the Criadex
// RAG backend: bot lifecycle, session cache, retrieval, and the reply
// pipeline.
package criabot

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/pkg/errors"

	"github.com/criadex/criabot/bot"
	"github.com/criadex/criabot/bot/chat"
	"github.com/criadex/criabot/cache"
	"github.com/criadex/criabot/criadex"
	"github.com/criadex/criabot/internal/profile"
	"github.com/criadex/criabot/store"
	"github.com/criadex/criabot/store/db"
)

// BotCreateConfig configures a new bot: the backend models its groups
// bind to, plus its initial tuning parameters.
type BotCreateConfig struct {
	LLMModelID       int                 `json:"llm_model_id"`
	EmbeddingModelID int                 `json:"embedding_model_id"`
	RerankModelID    int                 `json:"rerank_model_id"`
	Parameters       store.BotParameters `json:"parameters"`
}

// AboutBot describes a bot and its current parameters.
type AboutBot struct {
	Info   *store.Bot           `json:"info"`
	Params *store.BotParameters `json:"params"`
}

// Criabot is the top-level manager. It owns the store, the session
// cache, and the Criadex client, and hands out transient chat handles.
type Criabot struct {
	profile *profile.Profile
	client  *criadex.Client

	store     *store.Store
	cache     *cache.Cache
	tokenizer chat.Tokenizer

	initialized bool
	sendLocks   chatLocks
}

// New creates an uninitialized manager. Call Initialize before use.
func New(p *profile.Profile) *Criabot {
	return &Criabot{
		profile: p,
		client: criadex.NewClient(&criadex.Config{
			BaseURL: p.CriadexBaseURL,
			APIKey:  p.CriadexAPIKey,
		}),
		sendLocks: chatLocks{locks: map[string]*chatLock{}},
	}
}

// Initialize opens the database and the session cache and runs
// migrations. Calling it twice is an error.
func (c *Criabot) Initialize(ctx context.Context) error {
	if c.initialized {
		return ErrInitializedAlready
	}

	driver, err := db.NewDBDriver(c.profile)
	if err != nil {
		return errors.Wrap(err, "failed to create database driver")
	}

	c.store = store.New(driver, c.profile)
	if err := c.store.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	c.cache, err = cache.New(ctx, cache.Config{
		Addr:       c.profile.RedisAddr,
		Username:   c.profile.RedisUsername,
		Password:   c.profile.RedisPassword,
		DB:         c.profile.RedisDB,
		ExpireTime: c.profile.ChatExpireTime,
	})
	if err != nil {
		return errors.Wrap(err, "failed to connect to cache")
	}

	c.tokenizer = chat.NewTokenizer()
	c.initialized = true
	return nil
}

// Close releases the database and cache connections.
func (c *Criabot) Close() error {
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			return err
		}
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Store exposes the underlying bot store.
func (c *Criabot) Store() *store.Store {
	return c.store
}

// Exists reports whether every named bot exists.
func (c *Criabot) Exists(ctx context.Context, names ...string) (bool, error) {
	return c.store.BotsExist(ctx, names...)
}

// Create provisions a bot: a scoped API key, one group per index type
// with that key authorized, and the bot row with its parameters. The
// generated key is returned to the caller for end-user access.
func (c *Criabot) Create(ctx context.Context, name string, config *BotCreateConfig) (string, error) {
	exists, err := c.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrBotExists
	}

	apiKey, err := newBotAPIKey()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate bot api key")
	}
	if err := c.client.Auth.CreateKey(ctx, apiKey, false); err != nil {
		return "", err
	}

	for _, indexType := range criadex.IndexTypes {
		groupName := bot.GroupName(name, indexType)

		err := c.client.Groups.Create(ctx, groupName, criadex.GroupConfig{
			Type:             indexType,
			LLMModelID:       config.LLMModelID,
			EmbeddingModelID: config.EmbeddingModelID,
			RerankModelID:    config.RerankModelID,
		})
		if err != nil {
			return "", err
		}

		if err := c.client.Auth.GrantGroup(ctx, groupName, apiKey); err != nil {
			return "", err
		}
	}

	created, err := c.store.CreateBot(ctx, name)
	if err != nil {
		return "", err
	}

	params := config.Parameters
	params.BotID = created.ID
	if err := c.store.UpsertBotParameters(ctx, &params); err != nil {
		return "", err
	}

	return apiKey, nil
}

// Delete removes a bot: its groups (which drops their authorizations),
// its parameters, and finally the bot row.
func (c *Criabot) Delete(ctx context.Context, name string) error {
	existing, err := c.store.GetBot(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrBotNotFound
	}

	for _, indexType := range criadex.IndexTypes {
		if err := c.client.Groups.Delete(ctx, bot.GroupName(name, indexType)); err != nil {
			return err
		}
	}

	if err := c.store.DeleteBotParameters(ctx, existing.ID); err != nil {
		return err
	}
	return c.store.DeleteBot(ctx, name)
}

// About returns a bot's record and parameters.
func (c *Criabot) About(ctx context.Context, name string) (*AboutBot, error) {
	existing, err := c.store.GetBot(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrBotNotFound
	}

	params, err := c.store.GetBotParameters(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	return &AboutBot{Info: existing, Params: params}, nil
}

// UpdateParameters replaces a bot's parameter row.
func (c *Criabot) UpdateParameters(ctx context.Context, name string, params store.BotParameters) error {
	existing, err := c.store.GetBot(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrBotNotFound
	}

	params.BotID = existing.ID
	return c.store.UpsertBotParameters(ctx, &params)
}

// GetBot returns a handle over an existing bot.
func (c *Criabot) GetBot(ctx context.Context, name string) (*bot.Bot, error) {
	exists, err := c.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrBotNotFound
	}
	return bot.New(name, c.client, c.cache.Chats), nil
}

// StartChat registers a fresh chat session and returns its id.
func (c *Criabot) StartChat(ctx context.Context) (string, error) {
	return bot.StartChat(ctx, c.cache.Chats)
}

// EndChat deletes a chat session. Ending an unknown chat is an error.
func (c *Criabot) EndChat(ctx context.Context, chatID string) error {
	exists, err := c.cache.Chats.Exists(ctx, chatID)
	if err != nil {
		return err
	}
	if !exists {
		return &ChatNotFoundError{ChatID: chatID}
	}
	return c.cache.Chats.Delete(ctx, chatID)
}

// ChatExists reports whether a chat session is live.
func (c *Criabot) ChatExists(ctx context.Context, chatID string) (bool, error) {
	return c.cache.Chats.Exists(ctx, chatID)
}

// ChatHistory returns the persisted history of a chat session.
func (c *Criabot) ChatHistory(ctx context.Context, chatID string) ([]criadex.ChatMessage, error) {
	state, err := c.cache.Chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, &ChatNotFoundError{ChatID: chatID}
	}
	return state.History, nil
}

// GetBotChat assembles the transient chat handle for one turn.
func (c *Criabot) GetBotChat(ctx context.Context, botName, chatID string) (*chat.Chat, error) {
	state, err := c.cache.Chats.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, &ChatNotFoundError{ChatID: chatID}
	}

	about, err := c.About(ctx, botName)
	if err != nil {
		return nil, err
	}

	handle, err := c.GetBot(ctx, botName)
	if err != nil {
		return nil, err
	}

	groupInfo, err := handle.RetrieveGroupInfo(ctx)
	if err != nil {
		return nil, err
	}

	return chat.New(chat.Config{
		ChatID:        chatID,
		BotName:       botName,
		Searcher:      handle,
		Agents:        c.client.Agents,
		LLMModelID:    groupInfo.LLMModelID,
		RerankModelID: groupInfo.RerankModelID,
		Params:        about.Params,
		State:         state,
		Sessions:      c.cache.Chats,
		Tokenizer:     c.tokenizer,
	})
}

// Send runs one chat turn. Sends on the same chat id are serialized so
// concurrent turns cannot clobber each other's history.
func (c *Criabot) Send(ctx context.Context, chatID, botName, prompt string, metadataFilter *criadex.Filter, extraBots []string) (*chat.ChatReply, error) {
	unlock := c.sendLocks.lock(chatID)
	defer unlock()

	session, err := c.GetBotChat(ctx, botName, chatID)
	if err != nil {
		return nil, err
	}
	return session.Send(ctx, prompt, metadataFilter, extraBots)
}

// Query runs a one-shot turn: start a chat, send the prompt, and end
// the chat regardless of outcome.
func (c *Criabot) Query(ctx context.Context, botName, prompt string, metadataFilter *criadex.Filter, extraBots []string) (*chat.ChatReply, error) {
	chatID, err := c.StartChat(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.EndChat(ctx, chatID) }() //nolint:errcheck // cleanup

	return c.Send(ctx, chatID, botName, prompt, metadataFilter, extraBots)
}

// newBotAPIKey generates a URL-safe random key for end-user access.
func newBotAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// chatLocks serializes sends per chat id. Entries are reference counted
// so idle chats do not accumulate locks.
type chatLocks struct {
	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	sync.Mutex
	refs int
}

func (l *chatLocks) lock(chatID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[chatID]
	if !ok {
		entry = &chatLock{}
		l.locks[chatID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()

	return func() {
		entry.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}
