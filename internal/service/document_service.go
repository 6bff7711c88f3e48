package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
	"github.com/daonbank/kcs/kcs-backend/internal/repository/storage"
)

const (
	MaxDocumentSize  = 5 * 1024 * 1024 // 5MB
	MinImageWidth    = 50
	MinImageHeight   = 50
	DocumentMaxWidth = 1600
	JPEGQuality      = 85

	defaultURLExpiry = 15 * time.Minute
)

var (
	ErrDocumentTooLarge             = errors.New("file too large. Maximum size is 5MB")
	ErrInvalidDocumentFormat        = errors.New("invalid format. Supported: JPEG, PNG, WebP")
	ErrDocumentTooSmall             = errors.New("image too small. Minimum 50x50 pixels")
	ErrInvalidDocumentData          = errors.New("invalid image data")
	ErrDocumentStorageNotConfigured = errors.New("document storage not configured")
)

// AllowedImageFormats contains the supported image MIME types
var AllowedImageFormats = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AllowedExtensions maps extensions to content types
var AllowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// appealDocumentStatuses are the application states that accept
// supporting documents.
var appealDocumentStatuses = map[domain.ApplicationStatus]bool{
	domain.StatusRejected:     true,
	domain.StatusManualReview: true,
	domain.StatusAppealed:     true,
}

// DocumentService handles appeal supporting documents: intake
// validation, image normalization and object storage.
type DocumentService struct {
	store           storage.DocumentStore
	documentRepo    domain.AppealDocumentRepository
	applicationRepo domain.ApplicationRepository
	auditRepo       domain.AuditLogRepository
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	store storage.DocumentStore,
	documentRepo domain.AppealDocumentRepository,
	applicationRepo domain.ApplicationRepository,
	auditRepo domain.AuditLogRepository,
) *DocumentService {
	return &DocumentService{
		store:           store,
		documentRepo:    documentRepo,
		applicationRepo: applicationRepo,
		auditRepo:       auditRepo,
	}
}

// IsEnabled indicates whether uploads/deletes are supported (storage configured).
func (s *DocumentService) IsEnabled() bool {
	return s != nil && s.store != nil
}

// ValidateDocument validates document format and size
func (s *DocumentService) ValidateDocument(data []byte, filename string) error {
	_, err := s.validateAndDecode(data, filename)
	return err
}

// validateAndDecode validates the document and returns the decoded image
func (s *DocumentService) validateAndDecode(data []byte, filename string) (image.Image, error) {
	// Check file size
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	// Check file extension
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := AllowedExtensions[ext]; !ok {
		return nil, ErrInvalidDocumentFormat
	}

	// Decode to verify it's a valid image and check dimensions
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidDocumentData
	}

	bounds := img.Bounds()
	if bounds.Dx() < MinImageWidth || bounds.Dy() < MinImageHeight {
		return nil, ErrDocumentTooSmall
	}

	return img, nil
}

// Upload validates, normalizes and stores one supporting document for
// an appeal. Only rejected, manual_review and appealed applications
// accept documents.
func (s *DocumentService) Upload(ctx context.Context, applicationID uuid.UUID, data []byte, filename, actor string) (*domain.AppealDocument, error) {
	if !s.IsEnabled() {
		return nil, ErrDocumentStorageNotConfigured
	}

	app, err := s.applicationRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if !appealDocumentStatuses[app.Status] {
		return nil, fmt.Errorf("%w: documents are only accepted while an appeal is possible (status %s)",
			domain.ErrInvalidTransition, app.Status)
	}

	img, err := s.validateAndDecode(data, filename)
	if err != nil {
		return nil, err
	}

	// Bound the width and re-encode. Decoding and re-encoding also
	// drops any embedded EXIF metadata.
	processed := img
	if img.Bounds().Dx() > DocumentMaxWidth {
		processed = imaging.Resize(img, DocumentMaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	docID := uuid.New()
	objectPath := fmt.Sprintf("applications/%s/appeals/%s.jpg", applicationID, docID)

	if _, err := s.store.Upload(ctx, objectPath, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	doc := &domain.AppealDocument{
		ID:            docID,
		ApplicationID: applicationID,
		FileName:      filename,
		ObjectPath:    objectPath,
		ContentType:   "image/jpeg",
		SizeBytes:     int64(buf.Len()),
		UploadedBy:    actor,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	created, err := s.documentRepo.Create(ctx, doc)
	if err != nil {
		// Best-effort cleanup of the orphaned object.
		if delErr := s.store.Delete(ctx, objectPath); delErr != nil {
			log.Warn().Err(delErr).Str("object_path", objectPath).Msg("Failed to clean up orphaned document object")
		}
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	s.recordAudit(ctx, created.ID.String(), "document.uploaded", actor, map[string]any{
		"application_id": applicationID.String(),
		"file_name":      filename,
		"object_path":    objectPath,
		"size_bytes":     created.SizeBytes,
	})

	log.Info().
		Str("application_id", applicationID.String()).
		Str("document_id", created.ID.String()).
		Int64("size_bytes", created.SizeBytes).
		Msg("Appeal document uploaded")

	return created, nil
}

// List returns the documents attached to an application.
func (s *DocumentService) List(ctx context.Context, applicationID uuid.UUID) ([]*domain.AppealDocument, error) {
	if _, err := s.applicationRepo.GetByID(ctx, applicationID); err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return s.documentRepo.ListByApplicationID(ctx, applicationID)
}

// DownloadURL returns a time-limited URL for one document.
func (s *DocumentService) DownloadURL(ctx context.Context, documentID uuid.UUID, expiry time.Duration) (string, error) {
	if !s.IsEnabled() {
		return "", ErrDocumentStorageNotConfigured
	}
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to get document: %w", err)
	}
	return s.store.GenerateURL(ctx, doc.ObjectPath, expiry)
}

// Delete removes a document and its stored object.
func (s *DocumentService) Delete(ctx context.Context, documentID uuid.UUID, actor string) error {
	if !s.IsEnabled() {
		return ErrDocumentStorageNotConfigured
	}
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := s.store.Delete(ctx, doc.ObjectPath); err != nil {
		log.Warn().Err(err).Str("object_path", doc.ObjectPath).Msg("Failed to delete document object")
	}

	if err := s.documentRepo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.recordAudit(ctx, documentID.String(), "document.deleted", actor, map[string]any{
		"application_id": doc.ApplicationID.String(),
		"object_path":    doc.ObjectPath,
	})

	return nil
}

func (s *DocumentService) recordAudit(ctx context.Context, entityID, action, actor string, changes map[string]any) {
	if s.auditRepo == nil {
		return
	}
	entry := &domain.AuditLog{
		EntityType: "appeal_document",
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor,
		ActorType:  domain.ActorUser,
		Changes:    changes,
	}
	if _, err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to record audit log")
	}
}

// GetContentType returns the content type for a file extension
func GetContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := AllowedExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsValidImageFormat checks if a content type is a valid image format
func IsValidImageFormat(contentType string) bool {
	return AllowedImageFormats[contentType]
}
