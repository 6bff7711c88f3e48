package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppealDocument is one supporting file attached to an appeal. The
// bytes live in object storage; only the object path is persisted.
type AppealDocument struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"applicationId"`
	FileName      string    `json:"fileName"`
	ObjectPath    string    `json:"objectPath"`
	ContentType   string    `json:"contentType"`
	SizeBytes     int64     `json:"sizeBytes"`
	UploadedBy    string    `json:"uploadedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (d *AppealDocument) Validate() error {
	if d.ApplicationID == uuid.Nil {
		return NewValidationError("applicationId", "application is required")
	}
	if d.FileName == "" {
		return NewValidationError("fileName", "file name is required")
	}
	if d.ObjectPath == "" {
		return NewValidationError("objectPath", "object path is required")
	}
	return nil
}

type AppealDocumentRepository interface {
	Create(ctx context.Context, doc *AppealDocument) (*AppealDocument, error)
	GetByID(ctx context.Context, id uuid.UUID) (*AppealDocument, error)
	ListByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*AppealDocument, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
