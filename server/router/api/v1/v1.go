// Package v1 exposes the criabot management and chat API over HTTP.
// Responses share the enveloped JSON framing of the Criadex backend so
// clients can reuse one decoder for both services.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/criadex/criabot"
	"github.com/criadex/criabot/criadex"
	"github.com/criadex/criabot/internal/profile"
)

type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Manager *criabot.Criabot
}

func NewAPIV1Service(secret string, p *profile.Profile, manager *criabot.Criabot) *APIV1Service {
	return &APIV1Service{
		Secret:  secret,
		Profile: p,
		Manager: manager,
	}
}

// RegisterRoutes mounts the v1 API under /api/v1.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1", s.authMiddleware)

	// Chats
	g.POST("/chats/start", s.StartChat)
	g.POST("/chats/query", s.Query)
	g.POST("/chats/:chatID/send", s.SendChat)
	g.GET("/chats/:chatID/exists", s.ChatExists)
	g.GET("/chats/:chatID/history", s.ChatHistory)
	g.DELETE("/chats/:chatID", s.EndChat)

	// Bots
	g.POST("/bots/:bot/create", s.CreateBot)
	g.GET("/bots/:bot/about", s.AboutBot)
	g.GET("/bots/:bot/exists", s.BotExists)
	g.PATCH("/bots/:bot/parameters", s.UpdateBotParameters)
	g.DELETE("/bots/:bot", s.DeleteBot)

	// Content
	g.POST("/bots/:bot/content/:indexType/upload", s.UploadContent)
	g.PUT("/bots/:bot/content/:indexType/update", s.UpdateContent)
	g.GET("/bots/:bot/content/:indexType/list", s.ListContent)
	g.DELETE("/bots/:bot/content/:indexType/:document", s.DeleteContent)
}

// authMiddleware requires the master API key on every route. Dev mode
// with no key configured runs open.
func (s *APIV1Service) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.Secret == "" && s.Profile.IsDev() {
			return next(c)
		}
		if c.Request().Header.Get("X-Api-Key") != s.Secret {
			return respondError(c, http.StatusUnauthorized, "INVALID_API_KEY", "a valid master api key is required")
		}
		return next(c)
	}
}

// envelope mirrors the Criadex wire framing.
type envelope struct {
	Status   int         `json:"status"`
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Response interface{} `json:"response,omitempty"`
}

func respond(c echo.Context, payload interface{}) error {
	return c.JSON(http.StatusOK, &envelope{
		Status:   http.StatusOK,
		Code:     "SUCCESS",
		Message:  "The operation completed successfully.",
		Response: payload,
	})
}

func respondError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, &envelope{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// respondWithError maps core errors onto HTTP statuses.
func respondWithError(c echo.Context, err error) error {
	var chatNotFound *criabot.ChatNotFoundError
	var upstream *criadex.UpstreamError

	switch {
	case errors.As(err, &chatNotFound):
		return respondError(c, http.StatusNotFound, "CHAT_NOT_FOUND", err.Error())
	case errors.Is(err, criabot.ErrBotNotFound):
		return respondError(c, http.StatusNotFound, "BOT_NOT_FOUND", err.Error())
	case errors.Is(err, criabot.ErrBotExists):
		return respondError(c, http.StatusConflict, "BOT_EXISTS", err.Error())
	case errors.As(err, &upstream):
		return respondError(c, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
	default:
		return respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// indexTypeParam parses the :indexType route segment.
func indexTypeParam(c echo.Context) (criadex.IndexType, bool) {
	switch c.Param("indexType") {
	case "document", "DOCUMENT":
		return criadex.IndexTypeDocument, true
	case "question", "QUESTION":
		return criadex.IndexTypeQuestion, true
	default:
		return "", false
	}
}
