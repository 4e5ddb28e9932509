package ports

import (
	"context"
	"time"

	"github.com/kirillkom/leave-intake/internal/core/domain"
)

// ExtractionService turns raw document bytes into license fields.
type ExtractionService interface {
	Extract(ctx context.Context, upload domain.RawUpload) (domain.License, error)
}

// PersistenceService durably stores a reviewed license.
type PersistenceService interface {
	Persist(ctx context.Context, license domain.License) (*domain.ConfirmedRecord, error)
}

// PersistenceFunc adapts a plain callback to PersistenceService.
type PersistenceFunc func(ctx context.Context, license domain.License) (*domain.ConfirmedRecord, error)

func (f PersistenceFunc) Persist(ctx context.Context, license domain.License) (*domain.ConfirmedRecord, error) {
	return f(ctx, license)
}

// LicenseRepository persists and reads confirmed licenses.
type LicenseRepository interface {
	Create(ctx context.Context, record *domain.ConfirmedRecord) error
	GetByID(ctx context.Context, id string) (*domain.ConfirmedRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ConfirmedRecord, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// MessageQueue publishes/consumes confirmation events.
type MessageQueue interface {
	PublishLicenseConfirmed(ctx context.Context, licenseID string) error
	SubscribeLicenseConfirmed(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentModel reads license fields out of a document with an AI model.
type DocumentModel interface {
	ExtractFromImage(ctx context.Context, mimeType string, data []byte) (domain.License, error)
	ExtractFromText(ctx context.Context, text string) (domain.License, error)
}

// TextExtractor pulls embedded text out of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Notifier tells the school about a confirmed leave so a replacement can be found.
type Notifier interface {
	NotifyReplacement(ctx context.Context, record domain.ConfirmedRecord) error
}

// LicenseExporter renders confirmed licenses into a downloadable document.
type LicenseExporter interface {
	Export(records []domain.ConfirmedRecord) ([]byte, error)
}
