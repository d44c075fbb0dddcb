package criadex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

type contentService struct {
	t *transport
}

func (s *contentService) Search(ctx context.Context, groupName string, config SearchGroupConfig) (*GroupSearchResponse, error) {
	start := time.Now()

	var out GroupSearchResponse
	route := fmt.Sprintf("/content/%s/search", url.PathEscape(groupName))
	if err := s.t.do(ctx, http.MethodPost, route, config, &out); err != nil {
		return nil, err
	}

	slog.Debug("criadex search completed",
		"group", groupName,
		"nodes", len(out.Nodes),
		"search_units", out.SearchUnits,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &out, nil
}

func (s *contentService) Upload(ctx context.Context, groupName string, file ContentUpload) (*ContentUploadResponse, error) {
	var out ContentUploadResponse
	route := fmt.Sprintf("/content/%s/upload", url.PathEscape(groupName))
	if err := s.t.do(ctx, http.MethodPost, route, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *contentService) Update(ctx context.Context, groupName string, file ContentUpload) (*ContentUploadResponse, error) {
	var out ContentUploadResponse
	route := fmt.Sprintf("/content/%s/update", url.PathEscape(groupName))
	if err := s.t.do(ctx, http.MethodPut, route, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *contentService) Delete(ctx context.Context, groupName string, documentName string) error {
	route := fmt.Sprintf("/content/%s/%s", url.PathEscape(groupName), url.PathEscape(documentName))
	return s.t.do(ctx, http.MethodDelete, route, nil, nil)
}

func (s *contentService) List(ctx context.Context, groupName string) ([]string, error) {
	var out struct {
		Files []string `json:"files"`
	}
	route := fmt.Sprintf("/content/%s/list", url.PathEscape(groupName))
	if err := s.t.do(ctx, http.MethodGet, route, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}
