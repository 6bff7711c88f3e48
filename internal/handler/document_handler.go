package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/middleware"
	"github.com/daonbank/kcs/kcs-backend/internal/service"
)

// DocumentHandler handles appeal supporting documents.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// DocumentURLResponse carries a time-limited download link.
type DocumentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadDocument handles POST /api/v1/applications/:id/documents.
// Documents are accepted only while an appeal is possible.
func (h *DocumentHandler) UploadDocument(c echo.Context) error {
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	// If storage isn't configured, don't attempt to process/upload.
	if h.documents == nil || !h.documents.IsEnabled() {
		return NewUnavailableError(c, "Document uploads are disabled (storage not configured)")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "File is required"},
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	actor := middleware.GetSubject(c)
	if actor == "" {
		actor = "applicant"
	}

	doc, err := h.documents.Upload(c.Request().Context(), applicationID, data, file.Filename, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentTooLarge),
			errors.Is(err, service.ErrInvalidDocumentFormat),
			errors.Is(err, service.ErrDocumentTooSmall),
			errors.Is(err, service.ErrInvalidDocumentData):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: err.Error()},
			})
		case errors.Is(err, service.ErrDocumentStorageNotConfigured):
			return NewUnavailableError(c, "Document uploads are disabled (storage not configured)")
		default:
			return FromDomainError(c, err, "Failed to upload document")
		}
	}

	return c.JSON(http.StatusCreated, doc)
}

// ListDocuments handles GET /api/v1/applications/:id/documents
func (h *DocumentHandler) ListDocuments(c echo.Context) error {
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	docs, err := h.documents.List(c.Request().Context(), applicationID)
	if err != nil {
		return FromDomainError(c, err, "Failed to list documents")
	}
	return c.JSON(http.StatusOK, docs)
}

// GetDocumentURL handles GET /api/v1/documents/:id/url. The link
// expires after expiryMinutes, default 15, capped at one hour.
func (h *DocumentHandler) GetDocumentURL(c echo.Context) error {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid document ID", nil)
	}

	if h.documents == nil || !h.documents.IsEnabled() {
		return NewUnavailableError(c, "Document downloads are disabled (storage not configured)")
	}

	expiry := 15 * time.Minute
	if minutes := intParam(c, "expiryMinutes"); minutes > 0 {
		if minutes > 60 {
			minutes = 60
		}
		expiry = time.Duration(minutes) * time.Minute
	}

	url, err := h.documents.DownloadURL(c.Request().Context(), documentID, expiry)
	if err != nil {
		return FromDomainError(c, err, "Failed to generate download URL")
	}

	return c.JSON(http.StatusOK, DocumentURLResponse{
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(expiry),
	})
}

// DeleteDocument handles DELETE /api/v1/documents/:id
func (h *DocumentHandler) DeleteDocument(c echo.Context) error {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid document ID", nil)
	}

	if h.documents == nil || !h.documents.IsEnabled() {
		return NewUnavailableError(c, "Document deletion is disabled (storage not configured)")
	}

	if err := h.documents.Delete(c.Request().Context(), documentID, middleware.GetSubject(c)); err != nil {
		return FromDomainError(c, err, "Failed to delete document")
	}

	log.Info().
		Str("document_id", documentID.String()).
		Msg("Appeal document deleted")

	return c.NoContent(http.StatusNoContent)
}
