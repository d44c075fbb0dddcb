package criadex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type agentsService struct {
	t *transport
}

func (s *agentsService) Chat(ctx context.Context, modelID int, config ChatAgentConfig) (*ChatAgentResponse, error) {
	slog.Debug("criadex chat request",
		"model_id", modelID,
		"history_len", len(config.History),
		"max_reply_tokens", config.MaxReplyTokens,
	)

	start := time.Now()

	var out ChatAgentResponse
	route := fmt.Sprintf("/agents/%d/chat", modelID)
	if err := s.t.do(ctx, http.MethodPost, route, config, &out); err != nil {
		return nil, err
	}

	slog.Debug("criadex chat response",
		"model_id", modelID,
		"content_length", len(out.Message.Content),
		"total_tokens", out.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &out, nil
}

func (s *agentsService) Rerank(ctx context.Context, modelID int, config RerankAgentConfig) (*RerankAgentResponse, error) {
	var out RerankAgentResponse
	route := fmt.Sprintf("/agents/%d/rerank", modelID)
	if err := s.t.do(ctx, http.MethodPost, route, config, &out); err != nil {
		return nil, err
	}

	slog.Debug("criadex rerank response",
		"model_id", modelID,
		"candidates", len(config.Nodes),
		"ranked", len(out.RankedNodes),
		"search_units", out.SearchUnits,
	)

	return &out, nil
}

func (s *agentsService) RelatedPrompts(ctx context.Context, modelID int, config RelatedPromptsConfig) (*RelatedPromptsResponse, error) {
	var out RelatedPromptsResponse
	route := fmt.Sprintf("/agents/%d/related_prompts", modelID)
	if err := s.t.do(ctx, http.MethodPost, route, config, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
