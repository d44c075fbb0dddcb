package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/criadex/criabot/criadex"
)

// ChatPromptRequest is the body shared by send and query.
type ChatPromptRequest struct {
	Bot            string          `json:"bot"`
	Prompt         string          `json:"prompt"`
	ExtraBots      []string        `json:"extra_bots"`
	MetadataFilter *criadex.Filter `json:"metadata_filter"`
}

func (r *ChatPromptRequest) validate() (code, message string, ok bool) {
	if r.Bot == "" {
		return "MISSING_BOT", "a bot name is required", false
	}
	if r.Prompt == "" {
		return "MISSING_PROMPT", "a non-empty prompt is required", false
	}
	return "", "", true
}

// StartChat registers a new chat session.
func (s *APIV1Service) StartChat(c echo.Context) error {
	chatID, err := s.Manager.StartChat(c.Request().Context())
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, map[string]string{"chat_id": chatID})
}

// SendChat runs one turn of an existing chat.
func (s *APIV1Service) SendChat(c echo.Context) error {
	request := &ChatPromptRequest{}
	if err := c.Bind(request); err != nil {
		return respondError(c, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
	}
	if code, message, ok := request.validate(); !ok {
		return respondError(c, http.StatusBadRequest, code, message)
	}

	reply, err := s.Manager.Send(
		c.Request().Context(),
		c.Param("chatID"),
		request.Bot,
		request.Prompt,
		request.MetadataFilter,
		request.ExtraBots,
	)
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, reply)
}

// Query runs a one-shot chat turn with no persistent session.
func (s *APIV1Service) Query(c echo.Context) error {
	request := &ChatPromptRequest{}
	if err := c.Bind(request); err != nil {
		return respondError(c, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
	}
	if code, message, ok := request.validate(); !ok {
		return respondError(c, http.StatusBadRequest, code, message)
	}

	reply, err := s.Manager.Query(
		c.Request().Context(),
		request.Bot,
		request.Prompt,
		request.MetadataFilter,
		request.ExtraBots,
	)
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, reply)
}

// ChatExists reports whether a chat session is live.
func (s *APIV1Service) ChatExists(c echo.Context) error {
	exists, err := s.Manager.ChatExists(c.Request().Context(), c.Param("chatID"))
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, map[string]bool{"exists": exists})
}

// ChatHistory returns the persisted history of a chat session.
func (s *APIV1Service) ChatHistory(c echo.Context) error {
	history, err := s.Manager.ChatHistory(c.Request().Context(), c.Param("chatID"))
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, map[string]interface{}{"history": history})
}

// EndChat deletes a chat session.
func (s *APIV1Service) EndChat(c echo.Context) error {
	if err := s.Manager.EndChat(c.Request().Context(), c.Param("chatID")); err != nil {
		return respondWithError(c, err)
	}
	return respond(c, nil)
}
