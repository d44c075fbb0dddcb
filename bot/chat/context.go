package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/criadex/criabot/criadex"
	"github.com/criadex/criabot/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata keys recognized on retrieved nodes.
const (
	FileNameMetaKey       = "file_name"
	GroupNameMetaKey      = "group_name"
	AnswerMetaKey         = "answer"
	LLMReplyMetaKey       = "llm_reply"
	RelatedPromptsMetaKey = "related_prompts"
)

// ContextType discriminates the two context shapes.
type ContextType string

const (
	ContextTypeText     ContextType = "TEXT"
	ContextTypeQuestion ContextType = "QUESTION"
)

// Context is the classified retrieval result for a turn. A nil *Context
// means retrieval produced nothing usable.
//
// Text contexts carry the rendered document block plus the full ranked
// node list. Question contexts carry the single matched question node
// and where it came from.
type Context struct {
	Type ContextType `json:"type"`

	// Text context fields
	Text  string                      `json:"text,omitempty"`
	Nodes []criadex.TextNodeWithScore `json:"nodes,omitempty"`

	// Question context fields
	FileName  string                     `json:"file_name,omitempty"`
	GroupName string                     `json:"group_name,omitempty"`
	Node      *criadex.TextNodeWithScore `json:"node,omitempty"`

	RelatedPrompts []criadex.RelatedPrompt `json:"related_prompts"`
}

func (c *Context) IsText() bool {
	return c != nil && c.Type == ContextTypeText
}

func (c *Context) IsQuestion() bool {
	return c != nil && c.Type == ContextTypeQuestion
}

// BuildTextContext renders ranked nodes as a numbered document block.
func BuildTextContext(nodes []criadex.TextNodeWithScore) string {
	blocks := make([]string, len(nodes))
	for i, node := range nodes {
		blocks[i] = fmt.Sprintf("[DOCUMENT #%d]\n%s", i+1, node.Node.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// GroupSearcher issues a search against one of a bot's indexes and
// derives federated group names for peers.
type GroupSearcher interface {
	SearchGroup(ctx context.Context, indexType criadex.IndexType, config criadex.SearchGroupConfig) (string, *criadex.GroupSearchResponse, error)
	GroupNameFor(botName string, indexType criadex.IndexType) string
}

// RetrieverResponse is the retrieval result for one turn.
type RetrieverResponse struct {
	Context        *Context
	GroupResponses map[string]*criadex.GroupSearchResponse

	// GroupOrder records the deterministic merge order of the group
	// responses, DOCUMENT before QUESTION, own index before federated.
	GroupOrder []string

	TokenUsage  []criadex.CompletionUsage
	SearchUnits int
}

// Nodes concatenates all retrieved nodes in merge order.
func (r *RetrieverResponse) Nodes() []criadex.TextNodeWithScore {
	var nodes []criadex.TextNodeWithScore
	for _, name := range r.GroupOrder {
		if response := r.GroupResponses[name]; response != nil {
			nodes = append(nodes, response.Nodes...)
		}
	}
	return nodes
}

// Retriever fans searches out over a bot's indexes, re-ranks the merged
// candidates, and classifies the winner into a context.
type Retriever struct {
	searcher      GroupSearcher
	agents        criadex.AgentsAPI
	rerankModelID int
	params        *store.BotParameters
}

func NewRetriever(searcher GroupSearcher, agents criadex.AgentsAPI, rerankModelID int, params *store.BotParameters) *Retriever {
	return &Retriever{
		searcher:      searcher,
		agents:        agents,
		rerankModelID: rerankModelID,
		params:        params,
	}
}

func (r *Retriever) buildSearchGroupConfig(prompt string, metadataFilter *criadex.Filter, extraGroups []string) criadex.SearchGroupConfig {
	return criadex.SearchGroupConfig{
		Prompt:       prompt,
		TopK:         r.params.TopK,
		MinK:         r.params.MinK,
		TopN:         r.params.TopN,
		MinN:         r.params.MinN,
		SearchFilter: metadataFilter,
		ExtraGroups:  extraGroups,
	}
}

type groupResult struct {
	name     string
	response *criadex.GroupSearchResponse
}

// searchGroups runs one search per index type concurrently and returns
// the responses in index-type order.
func (r *Retriever) searchGroups(ctx context.Context, prompt string, metadataFilter *criadex.Filter, extraBots []string) ([]groupResult, error) {
	results := make([]groupResult, len(criadex.IndexTypes))

	eg, ctx := errgroup.WithContext(ctx)
	for i, indexType := range criadex.IndexTypes {
		i, indexType := i, indexType
		extraGroups := make([]string, 0, len(extraBots))
		for _, extraBot := range extraBots {
			extraGroups = append(extraGroups, r.searcher.GroupNameFor(extraBot, indexType))
		}

		config := r.buildSearchGroupConfig(prompt, metadataFilter, extraGroups)

		eg.Go(func() error {
			name, response, err := r.searcher.SearchGroup(ctx, indexType, config)
			if err != nil {
				return err
			}
			results[i] = groupResult{name: name, response: response}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Retrieve executes the full retrieval pipeline for a prompt.
func (r *Retriever) Retrieve(ctx context.Context, prompt string, metadataFilter *criadex.Filter, extraBots []string) (*RetrieverResponse, error) {
	results, err := r.searchGroups(ctx, prompt, metadataFilter, extraBots)
	if err != nil {
		return nil, err
	}

	response := &RetrieverResponse{
		GroupResponses: make(map[string]*criadex.GroupSearchResponse, len(results)),
	}
	for _, result := range results {
		response.GroupOrder = append(response.GroupOrder, result.name)
		response.GroupResponses[result.name] = result.response
		if result.response != nil {
			response.SearchUnits += result.response.SearchUnits
		}
	}

	nodes := response.Nodes()
	if len(nodes) == 0 {
		return response, nil
	}

	rerankResponse, err := r.agents.Rerank(ctx, r.rerankModelID, criadex.RerankAgentConfig{
		Prompt: prompt,
		Nodes:  nodes,
		TopN:   r.params.TopN,
		MinN:   r.params.MinN,
	})
	if err != nil {
		return nil, err
	}

	response.SearchUnits += rerankResponse.SearchUnits

	if len(rerankResponse.RankedNodes) > 0 {
		response.Context = BuildContext(rerankResponse.RankedNodes)
	}
	return response, nil
}

// BuildContext classifies the ranked nodes into a context. Ranked nodes
// arrive in descending score order; on score ties the earlier node wins.
func BuildContext(rankedNodes []criadex.TextNodeWithScore) *Context {
	top := rankedNodes[0]
	for _, node := range rankedNodes {
		if node.Score > top.Score {
			top = node
		}
	}

	if isQuestionNode(top) {
		relatedPrompts := decodeRelatedPrompts(top.Node.Metadata[RelatedPromptsMetaKey])

		if !isLLMReply(top) {
			node := top
			return &Context{
				Type:           ContextTypeQuestion,
				FileName:       metaString(top.Node.Metadata, FileNameMetaKey),
				GroupName:      metaString(top.Node.Metadata, GroupNameMetaKey),
				Node:           &node,
				RelatedPrompts: relatedPrompts,
			}
		}

		// Only the matched question feeds the prompt text, but the full
		// ranked list stays attached for asset collection downstream.
		return &Context{
			Type:           ContextTypeText,
			Text:           BuildTextContext([]criadex.TextNodeWithScore{top}),
			Nodes:          rankedNodes,
			RelatedPrompts: relatedPrompts,
		}
	}

	return &Context{
		Type:           ContextTypeText,
		Text:           BuildTextContext(rankedNodes),
		Nodes:          rankedNodes,
		RelatedPrompts: []criadex.RelatedPrompt{},
	}
}

// isQuestionNode reports whether a node came from a question index.
// Question nodes carry both answer and llm_reply metadata.
func isQuestionNode(node criadex.TextNodeWithScore) bool {
	if node.Node.Metadata == nil {
		return false
	}
	_, hasAnswer := node.Node.Metadata[AnswerMetaKey]
	_, hasLLMReply := node.Node.Metadata[LLMReplyMetaKey]
	return hasAnswer && hasLLMReply
}

func isLLMReply(node criadex.TextNodeWithScore) bool {
	if !isQuestionNode(node) {
		return false
	}
	reply, _ := node.Node.Metadata[LLMReplyMetaKey].(bool)
	return reply
}

func metaString(metadata map[string]interface{}, key string) string {
	s, _ := metadata[key].(string)
	return s
}

// decodeRelatedPrompts converts the raw metadata value into typed
// related prompts. The value arrives as []interface{} of maps after a
// JSON round-trip.
func decodeRelatedPrompts(value interface{}) []criadex.RelatedPrompt {
	if value == nil {
		return []criadex.RelatedPrompt{}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("failed to encode related prompts metadata", "error", err)
		return []criadex.RelatedPrompt{}
	}

	var prompts []criadex.RelatedPrompt
	if err := json.Unmarshal(raw, &prompts); err != nil {
		slog.Warn("failed to decode related prompts metadata", "error", err)
		return []criadex.RelatedPrompt{}
	}
	if prompts == nil {
		prompts = []criadex.RelatedPrompt{}
	}
	return prompts
}
