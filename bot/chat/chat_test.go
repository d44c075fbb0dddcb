package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/criadex/criabot/cache"
	"github.com/criadex/criabot/criadex"
	"github.com/criadex/criabot/store"
)

// fakeSessions records every persisted snapshot.
type fakeSessions struct {
	sets []cache.ChatState
}

func (f *fakeSessions) Set(_ context.Context, _ string, state *cache.ChatState) error {
	history := make([]criadex.ChatMessage, len(state.History))
	copy(history, state.History)
	f.sets = append(f.sets, cache.ChatState{StartedAt: state.StartedAt, History: history})
	return nil
}

type chatFixture struct {
	chat     *Chat
	agents   *fakeAgents
	sessions *fakeSessions
	searcher *fakeSearcher
}

func newChatFixture(t *testing.T, params *store.BotParameters, searcher *fakeSearcher, agents *fakeAgents) *chatFixture {
	t.Helper()

	sessions := &fakeSessions{}
	state := &cache.ChatState{StartedAt: 1700000000}

	c, err := New(Config{
		ChatID:        "chat-1",
		BotName:       searcher.botName,
		Searcher:      searcher,
		Agents:        agents,
		LLMModelID:    1,
		RerankModelID: 2,
		Params:        params,
		State:         state,
		Sessions:      sessions,
		Tokenizer:     runeTokenizer{},
	})
	require.NoError(t, err)

	return &chatFixture{chat: c, agents: agents, sessions: sessions, searcher: searcher}
}

func documentSearcher(nodes ...criadex.TextNodeWithScore) *fakeSearcher {
	return &fakeSearcher{
		botName: "helpdesk",
		responses: map[criadex.IndexType]*criadex.GroupSearchResponse{
			criadex.IndexTypeDocument: {Nodes: nodes, SearchUnits: 1},
		},
	}
}

func TestSendTextContext(t *testing.T) {
	searcher := documentSearcher(textNode("A", 0.8), textNode("B", 0.7))
	agents := &fakeAgents{
		chatResponse: &criadex.ChatAgentResponse{
			Message: criadex.ChatMessage{Role: "assistant", Content: "reply"},
			Usage:   criadex.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}

	fx := newChatFixture(t, testParams(), searcher, agents)
	reply, err := fx.chat.Send(context.Background(), "what is A?", nil, nil)
	require.NoError(t, err)

	require.Equal(t, "reply", reply.Content.Content)
	require.False(t, reply.VerifiedResponse)
	require.True(t, reply.Context.IsText())
	require.Equal(t, "[DOCUMENT #1]\nA\n\n[DOCUMENT #2]\nB", reply.Context.Text)

	// user prompt, ephemeral system, assistant reply
	require.Len(t, reply.History, 3)
	require.Equal(t, "user", reply.History[0].Role)
	require.Equal(t, "system", reply.History[1].Role)
	require.Equal(t, "assistant", reply.History[2].Role)

	require.Equal(t, 1, agents.chatCalls)
	require.Equal(t, 15, reply.TotalUsage.TotalTokens)

	// The ephemeral never reaches the persisted history.
	final := fx.sessions.sets[len(fx.sessions.sets)-1]
	require.Len(t, final.History, 2)
	for _, m := range final.History {
		if flag, _ := m.Metadata[EphemeralMetaKey].(bool); flag {
			t.Errorf("persisted history contains ephemeral message %q", m.Content)
		}
	}
}

func TestSendQuestionContext(t *testing.T) {
	node := criadex.TextNodeWithScore{
		Node: criadex.TextNode{
			Text: "Q: meaning of life?",
			Metadata: map[string]interface{}{
				AnswerMetaKey:    "42",
				LLMReplyMetaKey:  false,
				FileNameMetaKey:  "f",
				GroupNameMetaKey: "g",
			},
		},
		Score: 0.9,
	}
	searcher := documentSearcher(node)
	agents := &fakeAgents{}

	fx := newChatFixture(t, testParams(), searcher, agents)
	reply, err := fx.chat.Send(context.Background(), "meaning of life?", nil, nil)
	require.NoError(t, err)

	require.Zero(t, agents.chatCalls)
	require.Equal(t, "42", reply.Content.Content)
	require.True(t, reply.VerifiedResponse)
	require.True(t, reply.Context.IsQuestion())

	assistant := reply.History[len(reply.History)-1]
	require.Equal(t, map[string]interface{}{
		FileNameMetaKey:  "f",
		GroupNameMetaKey: "g",
	}, assistant.Metadata["no_llm_reply"])
}

func TestSendNoContextCannedMessage(t *testing.T) {
	params := testParams()
	params.NoContextMessage = "Sorry, I'm not sure about that."
	params.NoContextLLMGuess = false

	fx := newChatFixture(t, params, &fakeSearcher{botName: "helpdesk"}, &fakeAgents{})
	reply, err := fx.chat.Send(context.Background(), "anything?", nil, nil)
	require.NoError(t, err)

	require.Zero(t, fx.agents.chatCalls)
	require.Equal(t, "Sorry, I'm not sure about that.", reply.Content.Content)
	require.Nil(t, reply.Context)
	require.False(t, reply.VerifiedResponse)
	require.Empty(t, reply.TokenUsage)
}

func TestSendNoContextGuessPrependsMessage(t *testing.T) {
	params := testParams()
	params.NoContextMessage = "Sorry."
	params.NoContextLLMGuess = true
	params.NoContextUseMessage = true

	agents := &fakeAgents{
		chatResponse: &criadex.ChatAgentResponse{
			Message: criadex.ChatMessage{Role: "assistant", Content: "Maybe X"},
			Usage:   criadex.CompletionUsage{TotalTokens: 3},
		},
	}

	fx := newChatFixture(t, params, &fakeSearcher{botName: "helpdesk"}, agents)
	reply, err := fx.chat.Send(context.Background(), "anything?", nil, nil)
	require.NoError(t, err)

	require.Equal(t, 1, agents.chatCalls)
	require.Equal(t, "Sorry.\n\nMaybe X", reply.Content.Content)
}

func TestSendNoContextLLMStatesUnknown(t *testing.T) {
	params := testParams()
	params.NoContextMessage = ""
	params.NoContextLLMGuess = false

	agents := &fakeAgents{
		chatResponse: &criadex.ChatAgentResponse{
			Message: criadex.ChatMessage{Role: "assistant", Content: "I don't know."},
		},
	}

	fx := newChatFixture(t, params, &fakeSearcher{botName: "helpdesk"}, agents)
	reply, err := fx.chat.Send(context.Background(), "anything?", nil, nil)
	require.NoError(t, err)

	require.Equal(t, 1, agents.chatCalls)
	require.Equal(t, "I don't know.", reply.Content.Content)
}

func TestSendPersistsUserPromptBeforeLLM(t *testing.T) {
	searcher := documentSearcher(textNode("A", 0.8))
	agents := &fakeAgents{chatErr: errors.New("model exploded")}

	fx := newChatFixture(t, testParams(), searcher, agents)
	_, err := fx.chat.Send(context.Background(), "what is A?", nil, nil)
	require.Error(t, err)

	require.NotEmpty(t, fx.sessions.sets)
	persisted := fx.sessions.sets[len(fx.sessions.sets)-1]
	require.Len(t, persisted.History, 1)
	require.Equal(t, "user", persisted.History[0].Role)
	require.Equal(t, "what is A?", persisted.History[0].Content)
}

func TestSendResolvesUsedAssets(t *testing.T) {
	assetID := uuid.NewString()
	node := textNode("A", 0.8)

	searcher := &fakeSearcher{
		botName: "helpdesk",
		responses: map[criadex.IndexType]*criadex.GroupSearchResponse{
			criadex.IndexTypeDocument: {
				Nodes:  []criadex.TextNodeWithScore{node},
				Assets: []criadex.Asset{{UUID: assetID, Data: "aGVsbG8="}},
			},
		},
	}
	agents := &fakeAgents{
		chatResponse: &criadex.ChatAgentResponse{
			Message: criadex.ChatMessage{
				Role:    "assistant",
				Content: fmt.Sprintf("See ![diagram](%s)", assetID),
			},
		},
	}

	fx := newChatFixture(t, testParams(), searcher, agents)
	reply, err := fx.chat.Send(context.Background(), "show me", nil, nil)
	require.NoError(t, err)

	require.Len(t, reply.Content.Assets, 1)
	require.Equal(t, assetID, reply.Content.Assets[0].UUID)
	require.Equal(t, "aGVsbG8=", reply.Content.Assets[0].Data)

	// Raw group responses ship without asset payloads.
	stripped := reply.GroupResponses["helpdesk-document-index"]
	require.Equal(t, "<stripped>", stripped.Assets[0].Data)
}

func TestSendGeneratesRelatedPrompts(t *testing.T) {
	searcher := documentSearcher(textNode("A", 0.8))
	agents := &fakeAgents{
		chatResponse: &criadex.ChatAgentResponse{
			Message: criadex.ChatMessage{Role: "assistant", Content: "reply"},
		},
		relatedResponse: &criadex.RelatedPromptsResponse{
			RelatedPrompts: []criadex.RelatedPrompt{{Label: "More", Prompt: "Tell me more"}},
			Usage:          []criadex.CompletionUsage{{TotalTokens: 2}},
		},
	}

	fx := newChatFixture(t, testParams(), searcher, agents)
	reply, err := fx.chat.Send(context.Background(), "what is A?", nil, nil)
	require.NoError(t, err)

	require.Equal(t, 1, agents.relatedCalls)
	require.Len(t, reply.RelatedPrompts, 1)
	require.Equal(t, "More", reply.RelatedPrompts[0].Label)
}

func TestSendRelatedPromptsFailureIsSwallowed(t *testing.T) {
	searcher := documentSearcher(textNode("A", 0.8))
	agents := &fakeAgents{
		chatResponse: &criadex.ChatAgentResponse{
			Message: criadex.ChatMessage{Role: "assistant", Content: "reply"},
		},
		relatedErr: errors.New("suggestion service down"),
	}

	fx := newChatFixture(t, testParams(), searcher, agents)
	reply, err := fx.chat.Send(context.Background(), "what is A?", nil, nil)
	require.NoError(t, err)
	require.Empty(t, reply.RelatedPrompts)
}

func TestSendSkipsRelatedPromptsWhenDisabled(t *testing.T) {
	params := testParams()
	params.LLMGenerateRelatedPrompts = false

	searcher := documentSearcher(textNode("A", 0.8))
	agents := &fakeAgents{
		chatResponse: &criadex.ChatAgentResponse{
			Message: criadex.ChatMessage{Role: "assistant", Content: "reply"},
		},
	}

	fx := newChatFixture(t, params, searcher, agents)
	reply, err := fx.chat.Send(context.Background(), "what is A?", nil, nil)
	require.NoError(t, err)

	require.Zero(t, agents.relatedCalls)
	require.Empty(t, reply.RelatedPrompts)
}

func TestNewRefreshesSystemMessage(t *testing.T) {
	params := testParams()
	params.SystemMessage = "You are a helpful assistant."

	sessions := &fakeSessions{}
	state := &cache.ChatState{
		History: []criadex.ChatMessage{
			{Role: "system", Content: "stale"},
			{Role: "user", Content: "hi"},
		},
	}

	_, err := New(Config{
		ChatID:    "chat-1",
		BotName:   "helpdesk",
		Searcher:  &fakeSearcher{botName: "helpdesk"},
		Agents:    &fakeAgents{},
		Params:    params,
		State:     state,
		Sessions:  sessions,
		Tokenizer: runeTokenizer{},
	})
	require.NoError(t, err)

	require.Equal(t, "system", state.History[0].Role)
	require.Equal(t, "You are a helpful assistant.", state.History[0].Content)
}
