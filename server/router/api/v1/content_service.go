package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/criadex/criabot/criadex"
)

// ContentRequest is a document payload for upload and update.
type ContentRequest struct {
	Name     string                 `json:"name"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (r *ContentRequest) validate() (code, message string, ok bool) {
	if r.Name == "" {
		return "MISSING_NAME", "a document name is required", false
	}
	if r.Content == "" {
		return "MISSING_CONTENT", "document content is required", false
	}
	return "", "", true
}

// UploadContent adds a document to one of a bot's indexes.
func (s *APIV1Service) UploadContent(c echo.Context) error {
	return s.pushContent(c, false)
}

// UpdateContent replaces a document in one of a bot's indexes.
func (s *APIV1Service) UpdateContent(c echo.Context) error {
	return s.pushContent(c, true)
}

func (s *APIV1Service) pushContent(c echo.Context, isUpdate bool) error {
	indexType, ok := indexTypeParam(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "INVALID_INDEX_TYPE", "index type must be document or question")
	}

	request := &ContentRequest{}
	if err := c.Bind(request); err != nil {
		return respondError(c, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
	}
	if code, message, ok := request.validate(); !ok {
		return respondError(c, http.StatusBadRequest, code, message)
	}

	ctx := c.Request().Context()
	handle, err := s.Manager.GetBot(ctx, c.Param("bot"))
	if err != nil {
		return respondWithError(c, err)
	}

	file := criadex.ContentUpload{
		Name:     request.Name,
		Content:  request.Content,
		Metadata: request.Metadata,
	}

	var response *criadex.ContentUploadResponse
	if isUpdate {
		response, err = handle.UpdateContent(ctx, indexType, file)
	} else {
		response, err = handle.UploadContent(ctx, indexType, file)
	}
	if err != nil {
		return respondWithError(c, err)
	}
	return respond(c, response)
}

// ListContent returns the document names in one of a bot's indexes.
func (s *APIV1Service) ListContent(c echo.Context) error {
	indexType, ok := indexTypeParam(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "INVALID_INDEX_TYPE", "index type must be document or question")
	}

	ctx := c.Request().Context()
	handle, err := s.Manager.GetBot(ctx, c.Param("bot"))
	if err != nil {
		return respondWithError(c, err)
	}

	files, err := handle.ListContent(ctx, indexType)
	if err != nil {
		return respondWithError(c, err)
	}
	if files == nil {
		files = []string{}
	}
	return respond(c, map[string][]string{"files": files})
}

// DeleteContent removes a document from one of a bot's indexes.
func (s *APIV1Service) DeleteContent(c echo.Context) error {
	indexType, ok := indexTypeParam(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "INVALID_INDEX_TYPE", "index type must be document or question")
	}

	ctx := c.Request().Context()
	handle, err := s.Manager.GetBot(ctx, c.Param("bot"))
	if err != nil {
		return respondWithError(c, err)
	}

	if err := handle.DeleteContent(ctx, indexType, c.Param("document")); err != nil {
		return respondWithError(c, err)
	}
	return respond(c, nil)
}
