package criadex

// IndexType identifies which of a bot's two indexes an operation targets.
type IndexType string

const (
	IndexTypeDocument IndexType = "DOCUMENT"
	IndexTypeQuestion IndexType = "QUESTION"
)

// IndexTypes lists the supported index types in retrieval order.
var IndexTypes = []IndexType{IndexTypeDocument, IndexTypeQuestion}

// FilterCondition is a single metadata constraint.
type FilterCondition struct {
	Key   string      `json:"key"`
	Match interface{} `json:"match"`
}

// Filter is a structured metadata filter forwarded verbatim to the
// search backend.
type Filter struct {
	Must    []FilterCondition `json:"must,omitempty"`
	MustNot []FilterCondition `json:"must_not,omitempty"`
	Should  []FilterCondition `json:"should,omitempty"`
}

// TextNode is a retrieved chunk of indexed content.
type TextNode struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// TextNodeWithScore pairs a node with its similarity score.
type TextNodeWithScore struct {
	Node  TextNode `json:"node"`
	Score float64  `json:"score"`
}

// Asset is an auxiliary binary referenced by retrieved nodes.
// Data is base64-encoded.
type Asset struct {
	UUID        string `json:"uuid"`
	Data        string `json:"data"`
	Description string `json:"description"`
	Mimetype    string `json:"mimetype"`
}

// GroupSearchResponse is the result of one group search.
type GroupSearchResponse struct {
	Nodes       []TextNodeWithScore    `json:"nodes"`
	Assets      []Asset                `json:"assets"`
	SearchUnits int                    `json:"search_units"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SearchGroupConfig configures a group search.
type SearchGroupConfig struct {
	Prompt       string   `json:"prompt"`
	TopK         int      `json:"top_k"`
	MinK         float64  `json:"min_k"`
	TopN         int      `json:"top_n"`
	MinN         float64  `json:"min_n"`
	SearchFilter *Filter  `json:"search_filter,omitempty"`
	ExtraGroups  []string `json:"extra_groups,omitempty"`
}

// ChatMessage is a single message in a chat history.
type ChatMessage struct {
	Role     string                 `json:"role"` // system, user, assistant
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CompletionUsage reports token consumption for one model call.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add sums another usage record into this one.
func (u CompletionUsage) Add(other CompletionUsage) CompletionUsage {
	return CompletionUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// ChatAgentConfig configures a chat completion.
type ChatAgentConfig struct {
	History        []ChatMessage `json:"history"`
	MaxReplyTokens int           `json:"max_reply_tokens"`
	Temperature    float64       `json:"temperature"`
	TopP           float64       `json:"top_p"`
}

// ChatAgentResponse is the chat agent reply.
type ChatAgentResponse struct {
	Message ChatMessage     `json:"message"`
	Usage   CompletionUsage `json:"usage"`
}

// RerankAgentConfig configures a re-ranking pass over candidate nodes.
type RerankAgentConfig struct {
	Prompt string              `json:"prompt"`
	Nodes  []TextNodeWithScore `json:"nodes"`
	TopN   int                 `json:"top_n"`
	MinN   float64             `json:"min_n"`
}

// RerankAgentResponse holds nodes in descending score order, at most
// TopN long, each scoring at least MinN.
type RerankAgentResponse struct {
	RankedNodes []TextNodeWithScore `json:"ranked_nodes"`
	SearchUnits int                 `json:"search_units"`
}

// RelatedPrompt is a follow-up suggestion generated after a reply.
type RelatedPrompt struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// RelatedPromptsConfig configures the related-prompts agent.
type RelatedPromptsConfig struct {
	Prompt string `json:"prompt"`
	Reply  string `json:"reply"`
}

// RelatedPromptsResponse is the related-prompts agent reply.
type RelatedPromptsResponse struct {
	RelatedPrompts []RelatedPrompt   `json:"related_prompts"`
	Usage          []CompletionUsage `json:"usage"`
}

// GroupAbout describes the models bound to a group.
type GroupAbout struct {
	LLMModelID       int `json:"llm_model_id"`
	RerankModelID    int `json:"rerank_model_id"`
	EmbeddingModelID int `json:"embedding_model_id"`
}

// GroupConfig configures group creation.
type GroupConfig struct {
	Type             IndexType `json:"type"`
	LLMModelID       int       `json:"llm_model_id"`
	EmbeddingModelID int       `json:"embedding_model_id"`
	RerankModelID    int       `json:"rerank_model_id"`
}

// ContentUpload is a file payload for the content routes.
type ContentUpload struct {
	Name     string                 `json:"name"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ContentUploadResponse reports the outcome of an upload or update.
type ContentUploadResponse struct {
	DocumentName string `json:"document_name"`
	Units        int    `json:"units"`
}
