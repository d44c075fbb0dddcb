package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/criadex/criabot/criadex"
	"github.com/criadex/criabot/store"
)

func textNode(text string, score float64) criadex.TextNodeWithScore {
	return criadex.TextNodeWithScore{
		Node:  criadex.TextNode{Text: text, Metadata: map[string]interface{}{}},
		Score: score,
	}
}

func questionNode(answer string, llmReply bool, score float64) criadex.TextNodeWithScore {
	return criadex.TextNodeWithScore{
		Node: criadex.TextNode{
			Text: "Q: something?",
			Metadata: map[string]interface{}{
				AnswerMetaKey:    answer,
				LLMReplyMetaKey:  llmReply,
				FileNameMetaKey:  "faq.md",
				GroupNameMetaKey: "helpdesk-question-index",
			},
		},
		Score: score,
	}
}

func TestBuildTextContext(t *testing.T) {
	nodes := []criadex.TextNodeWithScore{
		textNode("A", 0.8),
		textNode("B", 0.7),
		textNode("C", 0.6),
	}

	text := BuildTextContext(nodes)
	if text != "[DOCUMENT #1]\nA\n\n[DOCUMENT #2]\nB\n\n[DOCUMENT #3]\nC" {
		t.Fatalf("unexpected context text: %q", text)
	}

	// Every block appears exactly once and in order.
	lastIdx := -1
	for i, node := range nodes {
		block := fmt.Sprintf("[DOCUMENT #%d]\n%s", i+1, node.Node.Text)
		idx := strings.Index(text, block)
		if idx < 0 || idx <= lastIdx {
			t.Errorf("block %q out of order (index %d)", block, idx)
		}
		if strings.Count(text, block) != 1 {
			t.Errorf("block %q appears more than once", block)
		}
		lastIdx = idx
	}
}

func TestBuildContextPlainNodes(t *testing.T) {
	nodes := []criadex.TextNodeWithScore{textNode("A", 0.8), textNode("B", 0.7)}

	built := BuildContext(nodes)
	require.True(t, built.IsText())
	require.Equal(t, "[DOCUMENT #1]\nA\n\n[DOCUMENT #2]\nB", built.Text)
	require.Len(t, built.Nodes, 2)
	require.Empty(t, built.RelatedPrompts)
}

func TestBuildContextQuestionDirect(t *testing.T) {
	nodes := []criadex.TextNodeWithScore{
		questionNode("42", false, 0.9),
		textNode("filler", 0.5),
	}

	built := BuildContext(nodes)
	require.True(t, built.IsQuestion())
	require.Equal(t, "faq.md", built.FileName)
	require.Equal(t, "helpdesk-question-index", built.GroupName)
	require.NotNil(t, built.Node)
	require.Equal(t, "42", built.Node.Node.Metadata[AnswerMetaKey])
}

func TestBuildContextQuestionLLMReply(t *testing.T) {
	top := questionNode("42", true, 0.9)
	nodes := []criadex.TextNodeWithScore{top, textNode("other", 0.5)}

	built := BuildContext(nodes)
	require.True(t, built.IsText())

	// Only the matched question contributes text.
	require.Equal(t, "[DOCUMENT #1]\n"+top.Node.Text, built.Text)
	// The full ranked list stays attached for asset collection.
	require.Len(t, built.Nodes, 2)
}

func TestBuildContextTieBreakFirstWins(t *testing.T) {
	nodes := []criadex.TextNodeWithScore{
		questionNode("first", false, 0.8),
		questionNode("second", false, 0.8),
	}

	built := BuildContext(nodes)
	require.True(t, built.IsQuestion())
	require.Equal(t, "first", built.Node.Node.Metadata[AnswerMetaKey])
}

func TestBuildContextRelatedPromptsDecoded(t *testing.T) {
	node := questionNode("42", false, 0.9)
	// Metadata values arrive as generic maps after a JSON round trip.
	node.Node.Metadata[RelatedPromptsMetaKey] = []interface{}{
		map[string]interface{}{"label": "More", "prompt": "Tell me more"},
	}

	built := BuildContext([]criadex.TextNodeWithScore{node})
	require.Len(t, built.RelatedPrompts, 1)
	require.Equal(t, "More", built.RelatedPrompts[0].Label)
	require.Equal(t, "Tell me more", built.RelatedPrompts[0].Prompt)
}

func TestContextNilPredicates(t *testing.T) {
	var absent *Context
	require.False(t, absent.IsText())
	require.False(t, absent.IsQuestion())
}

// fakeSearcher serves canned responses per index type. Searches run
// concurrently, so recorded calls are guarded.
type fakeSearcher struct {
	mu        sync.Mutex
	botName   string
	responses map[criadex.IndexType]*criadex.GroupSearchResponse
	configs   map[criadex.IndexType]criadex.SearchGroupConfig
}

func (f *fakeSearcher) SearchGroup(_ context.Context, indexType criadex.IndexType, config criadex.SearchGroupConfig) (string, *criadex.GroupSearchResponse, error) {
	f.mu.Lock()
	if f.configs == nil {
		f.configs = map[criadex.IndexType]criadex.SearchGroupConfig{}
	}
	f.configs[indexType] = config
	f.mu.Unlock()

	name := f.GroupNameFor(f.botName, indexType)
	response := f.responses[indexType]
	if response == nil {
		response = &criadex.GroupSearchResponse{}
	}
	return name, response, nil
}

func (f *fakeSearcher) GroupNameFor(botName string, indexType criadex.IndexType) string {
	suffix := "-document-index"
	if indexType == criadex.IndexTypeQuestion {
		suffix = "-question-index"
	}
	return botName + suffix
}

// fakeAgents returns scripted agent responses and records calls.
type fakeAgents struct {
	rerankCalls    int
	rerankedInput  []criadex.TextNodeWithScore
	rerankResponse *criadex.RerankAgentResponse

	chatCalls    int
	chatHistory  []criadex.ChatMessage
	chatResponse *criadex.ChatAgentResponse
	chatErr      error

	relatedCalls    int
	relatedResponse *criadex.RelatedPromptsResponse
	relatedErr      error
}

func (f *fakeAgents) Chat(_ context.Context, _ int, config criadex.ChatAgentConfig) (*criadex.ChatAgentResponse, error) {
	f.chatCalls++
	f.chatHistory = config.History
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	response := *f.chatResponse
	return &response, nil
}

func (f *fakeAgents) Rerank(_ context.Context, _ int, config criadex.RerankAgentConfig) (*criadex.RerankAgentResponse, error) {
	f.rerankCalls++
	f.rerankedInput = config.Nodes
	if f.rerankResponse != nil {
		return f.rerankResponse, nil
	}
	return &criadex.RerankAgentResponse{RankedNodes: config.Nodes}, nil
}

func (f *fakeAgents) RelatedPrompts(_ context.Context, _ int, _ criadex.RelatedPromptsConfig) (*criadex.RelatedPromptsResponse, error) {
	f.relatedCalls++
	if f.relatedErr != nil {
		return nil, f.relatedErr
	}
	if f.relatedResponse != nil {
		return f.relatedResponse, nil
	}
	return &criadex.RelatedPromptsResponse{}, nil
}

func testParams() *store.BotParameters {
	params := store.DefaultBotParameters()
	return &params
}

func TestRetrieverMergeOrder(t *testing.T) {
	searcher := &fakeSearcher{
		botName: "helpdesk",
		responses: map[criadex.IndexType]*criadex.GroupSearchResponse{
			criadex.IndexTypeDocument: {
				Nodes:       []criadex.TextNodeWithScore{textNode("doc", 0.6)},
				SearchUnits: 2,
			},
			criadex.IndexTypeQuestion: {
				Nodes:       []criadex.TextNodeWithScore{textNode("question", 0.9)},
				SearchUnits: 3,
			},
		},
	}
	agents := &fakeAgents{rerankResponse: &criadex.RerankAgentResponse{
		RankedNodes: []criadex.TextNodeWithScore{textNode("question", 0.9), textNode("doc", 0.6)},
		SearchUnits: 1,
	}}

	retriever := NewRetriever(searcher, agents, 7, testParams())
	response, err := retriever.Retrieve(context.Background(), "help", nil, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"helpdesk-document-index", "helpdesk-question-index"}, response.GroupOrder)
	require.Equal(t, 6, response.SearchUnits)

	// Document nodes precede question nodes in the merged candidate set.
	require.Equal(t, 1, agents.rerankCalls)
	require.Equal(t, "doc", agents.rerankedInput[0].Node.Text)
	require.Equal(t, "question", agents.rerankedInput[1].Node.Text)

	require.True(t, response.Context.IsText())
}

func TestRetrieverFederatesExtraBots(t *testing.T) {
	searcher := &fakeSearcher{botName: "helpdesk"}
	agents := &fakeAgents{}

	retriever := NewRetriever(searcher, agents, 7, testParams())
	_, err := retriever.Retrieve(context.Background(), "help", nil, []string{"wiki", "docs"})
	require.NoError(t, err)

	docConfig := searcher.configs[criadex.IndexTypeDocument]
	require.Equal(t, []string{"wiki-document-index", "docs-document-index"}, docConfig.ExtraGroups)

	questionConfig := searcher.configs[criadex.IndexTypeQuestion]
	require.Equal(t, []string{"wiki-question-index", "docs-question-index"}, questionConfig.ExtraGroups)
}

func TestRetrieverNoNodesSkipsRerank(t *testing.T) {
	searcher := &fakeSearcher{botName: "helpdesk"}
	agents := &fakeAgents{}

	retriever := NewRetriever(searcher, agents, 7, testParams())
	response, err := retriever.Retrieve(context.Background(), "help", nil, nil)
	require.NoError(t, err)

	require.Zero(t, agents.rerankCalls)
	require.Nil(t, response.Context)
}

func TestRetrieverEmptyRerankMeansNoContext(t *testing.T) {
	searcher := &fakeSearcher{
		botName: "helpdesk",
		responses: map[criadex.IndexType]*criadex.GroupSearchResponse{
			criadex.IndexTypeDocument: {Nodes: []criadex.TextNodeWithScore{textNode("doc", 0.2)}},
		},
	}
	agents := &fakeAgents{rerankResponse: &criadex.RerankAgentResponse{SearchUnits: 1}}

	retriever := NewRetriever(searcher, agents, 7, testParams())
	response, err := retriever.Retrieve(context.Background(), "help", nil, nil)
	require.NoError(t, err)

	require.Equal(t, 1, agents.rerankCalls)
	require.Nil(t, response.Context)
	require.Equal(t, 1, response.SearchUnits)
}
