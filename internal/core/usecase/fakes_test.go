package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/leave-intake/internal/core/domain"
)

type extractorFake struct {
	mu      sync.Mutex
	calls   int
	uploads []domain.RawUpload

	result domain.License
	err    error

	started chan struct{}
	release chan struct{}
}

func (f *extractorFake) Extract(_ context.Context, upload domain.RawUpload) (domain.License, error) {
	f.mu.Lock()
	f.calls++
	f.uploads = append(f.uploads, upload)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return domain.License{}, f.err
	}
	return f.result, nil
}

func (f *extractorFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type persisterFake struct {
	mu       sync.Mutex
	calls    int
	received []domain.License

	record *domain.ConfirmedRecord
	err    error

	started chan struct{}
	release chan struct{}
}

func (f *persisterFake) Persist(_ context.Context, license domain.License) (*domain.ConfirmedRecord, error) {
	f.mu.Lock()
	f.calls++
	f.received = append(f.received, license)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.record != nil {
		rec := *f.record
		return &rec, nil
	}
	return &domain.ConfirmedRecord{ID: "lic-1", License: license}, nil
}

func (f *persisterFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type detailError struct {
	status int
	detail string
}

func (e *detailError) Error() string  { return "persistence status error: " + e.detail }
func (e *detailError) Detail() string { return e.detail }

type licenseRepoFake struct {
	created  *domain.ConfirmedRecord
	byID     map[string]domain.ConfirmedRecord
	notified []string
	err      error
}

func (f *licenseRepoFake) Create(_ context.Context, record *domain.ConfirmedRecord) error {
	if f.err != nil {
		return f.err
	}
	copyRecord := *record
	f.created = &copyRecord
	return nil
}

func (f *licenseRepoFake) GetByID(_ context.Context, id string) (*domain.ConfirmedRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.byID[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrLicenseNotFound, "get license", errors.New("id="+id))
	}
	return &record, nil
}

func (f *licenseRepoFake) ListRecent(context.Context, int) ([]domain.ConfirmedRecord, error) {
	return nil, nil
}

func (f *licenseRepoFake) MarkNotified(_ context.Context, id string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.notified = append(f.notified, id)
	if record, ok := f.byID[id]; ok {
		record.NotifiedAt = at
		f.byID[id] = record
	}
	return nil
}

type queueFake struct {
	licenseID string
	err       error
}

func (f *queueFake) PublishLicenseConfirmed(_ context.Context, licenseID string) error {
	if f.err != nil {
		return f.err
	}
	f.licenseID = licenseID
	return nil
}

func (f *queueFake) SubscribeLicenseConfirmed(context.Context, func(context.Context, string) error) error {
	return nil
}
