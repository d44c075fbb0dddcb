package criadex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type groupsService struct {
	t *transport
}

func (s *groupsService) About(ctx context.Context, groupName string) (*GroupAbout, error) {
	var out GroupAbout
	route := fmt.Sprintf("/groups/%s/about", url.PathEscape(groupName))
	if err := s.t.do(ctx, http.MethodGet, route, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *groupsService) Create(ctx context.Context, groupName string, config GroupConfig) error {
	route := fmt.Sprintf("/groups/%s/create", url.PathEscape(groupName))
	return s.t.do(ctx, http.MethodPost, route, config, nil)
}

func (s *groupsService) Delete(ctx context.Context, groupName string) error {
	route := fmt.Sprintf("/groups/%s", url.PathEscape(groupName))
	return s.t.do(ctx, http.MethodDelete, route, nil, nil)
}

type authService struct {
	t *transport
}

func (s *authService) CreateKey(ctx context.Context, apiKey string, master bool) error {
	body := map[string]interface{}{
		"api_key": apiKey,
		"master":  master,
	}
	return s.t.do(ctx, http.MethodPost, "/auth/create", body, nil)
}

func (s *authService) GrantGroup(ctx context.Context, groupName string, apiKey string) error {
	body := map[string]interface{}{
		"api_key": apiKey,
	}
	route := fmt.Sprintf("/groups/%s/auth", url.PathEscape(groupName))
	return s.t.do(ctx, http.MethodPost, route, body, nil)
}
