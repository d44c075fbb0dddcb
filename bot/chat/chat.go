// Package chat implements the reply pipeline for a single chat turn:
// retrieval fan-out, context classification, history buffering, and the
// branching reply policy.
package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/criadex/criabot/cache"
	"github.com/criadex/criabot/criadex"
	"github.com/criadex/criabot/metrics"
	"github.com/criadex/criabot/store"
)

// SessionStore persists chat state between turns.
type SessionStore interface {
	Set(ctx context.Context, chatID string, state *cache.ChatState) error
}

// ReplyMessage is the assistant message returned to the caller, with
// the assets it references resolved.
type ReplyMessage struct {
	criadex.ChatMessage
	Assets []criadex.Asset `json:"assets"`
}

// ChatReply is the full result of one chat turn.
type ChatReply struct {
	Prompt           string                                  `json:"prompt"`
	TokenUsage       []criadex.CompletionUsage               `json:"token_usage"`
	TotalUsage       criadex.CompletionUsage                 `json:"total_usage"`
	SearchUnits      int                                     `json:"search_units"`
	Content          ReplyMessage                            `json:"content"`
	History          []criadex.ChatMessage                   `json:"history"`
	RelatedPrompts   []criadex.RelatedPrompt                 `json:"related_prompts"`
	Context          *Context                                `json:"context"`
	GroupResponses   map[string]*criadex.GroupSearchResponse `json:"group_responses"`
	VerifiedResponse bool                                    `json:"verified_response"`
}

// Config assembles the collaborators for one chat session.
type Config struct {
	ChatID        string
	BotName       string
	Searcher      GroupSearcher
	Agents        criadex.AgentsAPI
	LLMModelID    int
	RerankModelID int
	Params        *store.BotParameters
	State         *cache.ChatState
	Sessions      SessionStore
	Tokenizer     Tokenizer
}

// Chat is a transient per-turn view over a cached chat session.
type Chat struct {
	chatID    string
	botName   string
	agents    criadex.AgentsAPI
	llmModel  int
	params    *store.BotParameters
	state     *cache.ChatState
	sessions  SessionStore
	buffer    *Buffer
	retriever *Retriever
}

// New builds a chat over an existing session state. The persisted
// system message is refreshed from the bot's current parameters.
func New(cfg Config) (*Chat, error) {
	if cfg.Params.SystemMessage != "" {
		err := cfg.State.UpdateSystemMessage(criadex.ChatMessage{
			Role:     "system",
			Content:  cfg.Params.SystemMessage,
			Metadata: map[string]interface{}{"bot_name": cfg.BotName},
		})
		if err != nil {
			return nil, err
		}
	}

	return &Chat{
		chatID:    cfg.ChatID,
		botName:   cfg.BotName,
		agents:    cfg.Agents,
		llmModel:  cfg.LLMModelID,
		params:    cfg.Params,
		state:     cfg.State,
		sessions:  cfg.Sessions,
		buffer:    NewBuffer(cfg.Params.MaxInputTokens, cfg.State.History, cfg.Tokenizer),
		retriever: NewRetriever(cfg.Searcher, cfg.Agents, cfg.RerankModelID, cfg.Params),
	}, nil
}

// History returns the persistent (non-ephemeral) chat history.
func (c *Chat) History() []criadex.ChatMessage {
	return c.buffer.History()
}

func (c *Chat) replyMetadata() map[string]interface{} {
	return map[string]interface{}{"bot_name": c.botName}
}

// Send runs one chat turn: retrieve context, pick a reply branch,
// persist the updated history, and resolve related prompts and assets.
func (c *Chat) Send(ctx context.Context, prompt string, metadataFilter *criadex.Filter, extraBots []string) (*ChatReply, error) {
	retrieved, err := c.retriever.Retrieve(ctx, prompt, metadataFilter, extraBots)
	if err != nil {
		return nil, err
	}

	c.buffer.AddMessage(criadex.ChatMessage{
		Role:     "user",
		Content:  prompt,
		Metadata: c.replyMetadata(),
	})

	// The user's message is written back before the model is asked for
	// anything, so a failed LLM call never loses it.
	if err := c.persist(ctx); err != nil {
		return nil, err
	}

	var (
		replyHistory []criadex.ChatMessage
		replyUsage   *criadex.CompletionUsage
		branch       string
	)

	switch {
	case retrieved.Context.IsText():
		branch = metrics.BranchText
		replyHistory, replyUsage, err = c.textContextReply(ctx, retrieved.Context)
	case retrieved.Context.IsQuestion():
		branch = metrics.BranchQuestion
		replyHistory = c.questionContextReply(retrieved.Context)
	default:
		branch, replyHistory, replyUsage, err = c.noContextReply(ctx)
	}
	if err != nil {
		return nil, err
	}

	tokenUsage := make([]criadex.CompletionUsage, 0, len(retrieved.TokenUsage)+1)
	if replyUsage != nil {
		tokenUsage = append(tokenUsage, *replyUsage)
	}
	tokenUsage = append(tokenUsage, retrieved.TokenUsage...)

	if err := c.persist(ctx); err != nil {
		return nil, err
	}

	replyContent := replyHistory[len(replyHistory)-1]
	relatedPrompts := c.resolveRelatedPrompts(ctx, prompt, retrieved.Context, replyContent.Content, &tokenUsage)
	assets := c.resolveAssets(retrieved, replyContent.Content)

	totalUsage := criadex.CompletionUsage{}
	for _, usage := range tokenUsage {
		totalUsage = totalUsage.Add(usage)
	}

	metrics.ChatTurns.WithLabelValues(branch).Inc()
	metrics.SearchUnits.Add(float64(retrieved.SearchUnits))
	metrics.ObserveUsage(totalUsage.PromptTokens, totalUsage.CompletionTokens)

	return &ChatReply{
		Prompt:           prompt,
		TokenUsage:       tokenUsage,
		TotalUsage:       totalUsage,
		SearchUnits:      retrieved.SearchUnits,
		Content:          ReplyMessage{ChatMessage: replyContent, Assets: assets},
		History:          replyHistory,
		RelatedPrompts:   relatedPrompts,
		Context:          retrieved.Context,
		GroupResponses:   StripAssetData(retrieved.GroupResponses),
		VerifiedResponse: retrieved.Context.IsQuestion(),
	}, nil
}

func (c *Chat) persist(ctx context.Context) error {
	c.state.History = c.buffer.History()
	return c.sessions.Set(ctx, c.chatID, c.state)
}

// queryLLM sends the buffered history to the chat agent and stamps the
// reply with this bot's metadata.
func (c *Chat) queryLLM(ctx context.Context, history []criadex.ChatMessage) (*criadex.ChatAgentResponse, error) {
	timer := prometheus.NewTimer(metrics.LLMRequestDuration)
	defer timer.ObserveDuration()

	response, err := c.agents.Chat(ctx, c.llmModel, criadex.ChatAgentConfig{
		History:        history,
		MaxReplyTokens: c.params.MaxReplyTokens,
		Temperature:    c.params.Temperature,
		TopP:           c.params.TopP,
	})
	if err != nil {
		return nil, err
	}

	if response.Message.Metadata == nil {
		response.Message.Metadata = map[string]interface{}{}
	}
	for key, value := range c.replyMetadata() {
		response.Message.Metadata[key] = value
	}
	return response, nil
}

func (c *Chat) textContextReply(ctx context.Context, textCtx *Context) ([]criadex.ChatMessage, *criadex.CompletionUsage, error) {
	buffered, err := c.buffer.Window(&criadex.ChatMessage{
		Role:     "system",
		Content:  BuildContextPrompt(textCtx, c.params.NoContextLLMGuess),
		Metadata: c.replyMetadata(),
	})
	if err != nil {
		return nil, nil, err
	}

	response, err := c.queryLLM(ctx, buffered)
	if err != nil {
		return nil, nil, err
	}

	c.buffer.AddMessage(response.Message)
	buffered = append(buffered, response.Message)
	return buffered, &response.Usage, nil
}

// questionContextReply answers directly from the matched question node,
// skipping the model entirely.
func (c *Chat) questionContextReply(questionCtx *Context) []criadex.ChatMessage {
	metadata := c.replyMetadata()
	metadata["no_llm_reply"] = map[string]interface{}{
		FileNameMetaKey:  questionCtx.FileName,
		GroupNameMetaKey: questionCtx.GroupName,
	}

	c.buffer.AddMessage(criadex.ChatMessage{
		Role:     "assistant",
		Content:  metaString(questionCtx.Node.Node.Metadata, AnswerMetaKey),
		Metadata: metadata,
	})
	return c.buffer.History()
}

func (c *Chat) noContextReply(ctx context.Context) (string, []criadex.ChatMessage, *criadex.CompletionUsage, error) {
	switch {
	case c.params.NoContextLLMGuess:
		history, usage, err := c.noContextGuessReply(ctx)
		return metrics.BranchNoContextGuess, history, usage, err

	case c.params.NoContextMessage != "":
		c.buffer.AddMessage(criadex.ChatMessage{
			Role:     "assistant",
			Content:  c.params.NoContextMessage,
			Metadata: c.replyMetadata(),
		})
		return metrics.BranchNoContextMessage, c.buffer.History(), nil, nil

	default:
		history, usage, err := c.noContextLLMReply(ctx)
		return metrics.BranchNoContextLLM, history, usage, err
	}
}

func (c *Chat) noContextGuessReply(ctx context.Context) ([]criadex.ChatMessage, *criadex.CompletionUsage, error) {
	buffered, err := c.buffer.Window(&criadex.ChatMessage{
		Role:     "system",
		Content:  BuildNoContextGuessPrompt(c.params.NoContextMessage, c.params.NoContextUseMessage),
		Metadata: c.replyMetadata(),
	})
	if err != nil {
		return nil, nil, err
	}

	response, err := c.queryLLM(ctx, buffered)
	if err != nil {
		return nil, nil, err
	}

	// The canned message was already shown, so the guess continues it.
	if c.params.NoContextUseMessage {
		response.Message.Content = strings.TrimSpace(c.params.NoContextMessage) + "\n\n" + response.Message.Content
		delete(response.Message.Metadata, TokenCountMetaKey)
	}

	c.buffer.AddMessage(response.Message)
	buffered = append(buffered, response.Message)
	return buffered, &response.Usage, nil
}

func (c *Chat) noContextLLMReply(ctx context.Context) ([]criadex.ChatMessage, *criadex.CompletionUsage, error) {
	buffered, err := c.buffer.Window(&criadex.ChatMessage{
		Role:     "system",
		Content:  BuildNoContextLLMPrompt(),
		Metadata: c.replyMetadata(),
	})
	if err != nil {
		return nil, nil, err
	}

	response, err := c.queryLLM(ctx, buffered)
	if err != nil {
		return nil, nil, err
	}

	c.buffer.AddMessage(response.Message)
	buffered = append(buffered, response.Message)
	return buffered, &response.Usage, nil
}

// resolveRelatedPrompts returns the context's attached prompts, or asks
// the related-prompts agent for suggestions when none are attached. A
// failed suggestion pass never fails the turn.
func (c *Chat) resolveRelatedPrompts(ctx context.Context, prompt string, replyCtx *Context, reply string, tokenUsage *[]criadex.CompletionUsage) []criadex.RelatedPrompt {
	if replyCtx != nil && len(replyCtx.RelatedPrompts) > 0 {
		return replyCtx.RelatedPrompts
	}

	if !c.params.LLMGenerateRelatedPrompts {
		return []criadex.RelatedPrompt{}
	}

	response, err := c.agents.RelatedPrompts(ctx, c.llmModel, criadex.RelatedPromptsConfig{
		Prompt: prompt,
		Reply:  reply,
	})
	if err != nil {
		slog.Error("related prompts generation failed", "chat_id", c.chatID, "error", err)
		return []criadex.RelatedPrompt{}
	}

	*tokenUsage = append(*tokenUsage, response.Usage...)
	if response.RelatedPrompts == nil {
		return []criadex.RelatedPrompt{}
	}
	return response.RelatedPrompts
}

// resolveAssets collects the assets the reply actually references.
// Assets only attach to text contexts.
func (c *Chat) resolveAssets(retrieved *RetrieverResponse, reply string) []criadex.Asset {
	if !retrieved.Context.IsText() {
		return []criadex.Asset{}
	}

	var all []criadex.Asset
	for _, name := range retrieved.GroupOrder {
		if response := retrieved.GroupResponses[name]; response != nil {
			all = append(all, response.Assets...)
		}
	}

	used := UsedAssets(reply, all)
	if used == nil {
		return []criadex.Asset{}
	}
	return used
}
