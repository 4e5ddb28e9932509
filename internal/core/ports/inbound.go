package ports

import (
	"context"

	"github.com/kirillkom/leave-intake/internal/core/domain"
)

// LicenseExtractor is the inbound contract behind POST /extract-license.
type LicenseExtractor interface {
	ExtractLicense(ctx context.Context, upload domain.RawUpload) (domain.License, error)
}

// LicenseRegistrar is the inbound contract behind POST /licenses.
type LicenseRegistrar interface {
	Register(ctx context.Context, license domain.License) (*domain.ConfirmedRecord, error)
}

// LicenseReader is the inbound read model for stored licenses.
type LicenseReader interface {
	GetByID(ctx context.Context, id string) (*domain.ConfirmedRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ConfirmedRecord, error)
}

// ReplacementDispatcher handles confirmation events in the worker.
type ReplacementDispatcher interface {
	DispatchByID(ctx context.Context, licenseID string) error
}
