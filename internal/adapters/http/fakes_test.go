package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/kirillkom/leave-intake/internal/config"
	"github.com/kirillkom/leave-intake/internal/core/domain"
)

type extractorFake struct {
	mu      sync.Mutex
	uploads []domain.RawUpload
	result  domain.License
	err     error
}

func (f *extractorFake) ExtractLicense(_ context.Context, upload domain.RawUpload) (domain.License, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, upload)
	f.mu.Unlock()
	if f.err != nil {
		return domain.License{}, f.err
	}
	return f.result, nil
}

func (f *extractorFake) received() []domain.RawUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RawUpload(nil), f.uploads...)
}

type registrarFake struct {
	mu       sync.Mutex
	licenses []domain.License
	err      error
}

func (f *registrarFake) Register(_ context.Context, license domain.License) (*domain.ConfirmedRecord, error) {
	f.mu.Lock()
	f.licenses = append(f.licenses, license)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ConfirmedRecord{
		ID:        "lic-1",
		License:   license.Normalized(),
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

type readerFake struct {
	records   []domain.ConfirmedRecord
	err       error
	lastLimit int
}

func (f *readerFake) GetByID(_ context.Context, id string) (*domain.ConfirmedRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, record := range f.records {
		if record.ID == id {
			return &record, nil
		}
	}
	return nil, domain.WrapError(domain.ErrLicenseNotFound, "get license", errors.New("id="+id))
}

func (f *readerFake) ListRecent(_ context.Context, limit int) ([]domain.ConfirmedRecord, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type exporterFake struct {
	exported []domain.ConfirmedRecord
	err      error
}

func (f *exporterFake) Export(records []domain.ConfirmedRecord) ([]byte, error) {
	f.exported = records
	if f.err != nil {
		return nil, f.err
	}
	return []byte("PK-xlsx"), nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(
		cfg,
		&extractorFake{result: domain.License{ProfessionalName: "Ana Ruiz"}},
		&registrarFake{},
		&readerFake{},
		&exporterFake{},
	).Handler()
}
