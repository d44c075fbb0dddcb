package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/criadex/criabot"
	"github.com/criadex/criabot/store"
)

// CreateBotRequest configures a new bot. Parameter knobs left at their
// zero value fall back to the documented defaults.
type CreateBotRequest struct {
	LLMModelID       int                  `json:"llm_model_id"`
	EmbeddingModelID int                  `json:"embedding_model_id"`
	RerankModelID    int                  `json:"rerank_model_id"`
	Parameters       *store.BotParameters `json:"parameters"`
}

// CreateBot provisions a bot and returns its scoped API key.
func (s *APIV1Service) CreateBot(c echo.Context) error {
	request := &CreateBotRequest{}
	if err := c.Bind(request); err != nil {
		return respondError(c, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
	}

	params := store.DefaultBotParameters()
	if request.Parameters != nil {
		params = *request.Parameters
	}

	apiKey, err := s.Manager.Create(c.Request().Context(), c.Param("bot"), &criabot.BotCreateConfig{
		LLMModelID:       request.LLMModelID,
		EmbeddingModelID: request.EmbeddingModelID,
		RerankModelID:    request.RerankModelID,
		Parameters:       params,
	})
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, map[string]string{"api_key": apiKey})
}

// AboutBot returns a bot's record and parameters.
func (s *APIV1Service) AboutBot(c echo.Context) error {
	about, err := s.Manager.About(c.Request().Context(), c.Param("bot"))
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, about)
}

// BotExists reports whether the named bot exists.
func (s *APIV1Service) BotExists(c echo.Context) error {
	exists, err := s.Manager.Exists(c.Request().Context(), c.Param("bot"))
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, map[string]bool{"exists": exists})
}

// UpdateBotParameters replaces a bot's tuning parameters.
func (s *APIV1Service) UpdateBotParameters(c echo.Context) error {
	params := &store.BotParameters{}
	if err := c.Bind(params); err != nil {
		return respondError(c, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
	}

	if err := s.Manager.UpdateParameters(c.Request().Context(), c.Param("bot"), *params); err != nil {
		return respondWithError(c, err)
	}
	return respond(c, nil)
}

// DeleteBot removes a bot, its groups, and its parameters.
func (s *APIV1Service) DeleteBot(c echo.Context) error {
	if err := s.Manager.Delete(c.Request().Context(), c.Param("bot")); err != nil {
		return respondWithError(c, err)
	}
	return respond(c, nil)
}
