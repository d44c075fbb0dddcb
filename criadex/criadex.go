// Package criadex is a client for the Criadex RAG backend. It exposes
// the capability interfaces the chat core consumes (content search,
// agent calls, group management) and an HTTP implementation of them.
// Decoding of backend responses stays at this boundary; the rest of the
// codebase only sees the canonical DTOs in schemas.go.
package criadex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContentAPI covers index content operations.
type ContentAPI interface {
	// Search queries one group, optionally federating extra groups.
	Search(ctx context.Context, groupName string, config SearchGroupConfig) (*GroupSearchResponse, error)

	// Upload adds a document to a group.
	Upload(ctx context.Context, groupName string, file ContentUpload) (*ContentUploadResponse, error)

	// Update replaces an existing document in a group.
	Update(ctx context.Context, groupName string, file ContentUpload) (*ContentUploadResponse, error)

	// Delete removes a document from a group.
	Delete(ctx context.Context, groupName string, documentName string) error

	// List returns the document names stored in a group.
	List(ctx context.Context, groupName string) ([]string, error)
}

// AgentsAPI covers model-backed operations.
type AgentsAPI interface {
	// Chat synthesizes a completion from a chat history.
	Chat(ctx context.Context, modelID int, config ChatAgentConfig) (*ChatAgentResponse, error)

	// Rerank re-scores candidate nodes against a prompt.
	Rerank(ctx context.Context, modelID int, config RerankAgentConfig) (*RerankAgentResponse, error)

	// RelatedPrompts suggests follow-up prompts for a finished turn.
	RelatedPrompts(ctx context.Context, modelID int, config RelatedPromptsConfig) (*RelatedPromptsResponse, error)
}

// GroupsAPI covers group lifecycle and metadata.
type GroupsAPI interface {
	// About returns the model bindings of a group.
	About(ctx context.Context, groupName string) (*GroupAbout, error)

	// Create provisions a new group.
	Create(ctx context.Context, groupName string, config GroupConfig) error

	// Delete tears a group down, content included.
	Delete(ctx context.Context, groupName string) error
}

// AuthAPI covers API key provisioning for bots.
type AuthAPI interface {
	// CreateKey registers a new API key with the backend.
	CreateKey(ctx context.Context, apiKey string, master bool) error

	// GrantGroup authorizes an API key on a group.
	GrantGroup(ctx context.Context, groupName string, apiKey string) error
}

// Client bundles the capability implementations. Fields are interfaces
// so callers can swap fakes in tests.
type Client struct {
	Content ContentAPI
	Agents  AgentsAPI
	Groups  GroupsAPI
	Auth    AuthAPI
}

// Config represents Criadex client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout int // request timeout in seconds (default: 120)
}

// NewClient creates a Client speaking the Criadex HTTP API.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}

	t := &transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	return &Client{
		Content: &contentService{t},
		Agents:  &agentsService{t},
		Groups:  &groupsService{t},
		Auth:    &authService{t},
	}
}

// UpstreamError is a non-success response from the Criadex API. The
// original message is preserved for the caller.
type UpstreamError struct {
	Route   string
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("criadex %s: %s (HTTP %d, code %s)", e.Route, e.Message, e.Status, e.Code)
}

// envelope is the wire framing every Criadex route shares.
type envelope struct {
	Status   int                 `json:"status"`
	Code     string              `json:"code"`
	Message  string              `json:"message"`
	Response jsoniter.RawMessage `json:"response"`
}

type transport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// do issues one API call and decodes the enveloped response into out.
// out may be nil for routes whose payload the caller ignores.
func (t *transport) do(ctx context.Context, method, route string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", route, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+route, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", route, err)
	}

	req.Header.Set("X-Api-Key", t.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("criadex %s: %w", route, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // cleanup

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", route, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", route, err)
	}

	if resp.StatusCode != http.StatusOK || (env.Status != 0 && env.Status != http.StatusOK) {
		slog.Error("criadex request failed",
			"route", route,
			"http_status", resp.StatusCode,
			"code", env.Code,
			"message", env.Message,
		)
		status := env.Status
		if status == 0 {
			status = resp.StatusCode
		}
		return &UpstreamError{
			Route:   route,
			Status:  status,
			Code:    env.Code,
			Message: env.Message,
		}
	}

	if out != nil && len(env.Response) > 0 {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("decode %s payload: %w", route, err)
		}
	}

	return nil
}
