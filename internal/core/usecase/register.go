package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/core/ports"
)

const InvalidRUTReason = "RUT inválido"

type RegisterLicenseUseCase struct {
	repo       ports.LicenseRepository
	queue      ports.MessageQueue
	strictRUT  bool
	logger     *slog.Logger
	now        func() time.Time
	generateID func() string
}

// NewRegisterLicenseUseCase builds the registrar. A nil queue disables
// confirmation events.
func NewRegisterLicenseUseCase(
	repo ports.LicenseRepository,
	queue ports.MessageQueue,
	strictRUT bool,
	logger *slog.Logger,
) *RegisterLicenseUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterLicenseUseCase{
		repo:       repo,
		queue:      queue,
		strictRUT:  strictRUT,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		generateID: uuid.NewString,
	}
}

// Register stores a reviewed license. Server-side normalization may make the
// stored record differ from the submitted draft.
func (uc *RegisterLicenseUseCase) Register(ctx context.Context, license domain.License) (*domain.ConfirmedRecord, error) {
	normalized := license.Normalized()
	if err := uc.check(normalized); err != nil {
		return nil, err
	}

	record := &domain.ConfirmedRecord{
		ID:        uc.generateID(),
		License:   normalized,
		CreatedAt: uc.now(),
	}
	if err := uc.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create license record: %w", err)
	}

	if uc.queue != nil {
		if err := uc.queue.PublishLicenseConfirmed(ctx, record.ID); err != nil {
			// The record is stored; a resubmission would duplicate it.
			uc.logger.Warn("publish_license_confirmed_failed", "license_id", record.ID, "error", err)
		}
	}
	return record, nil
}

// Persist lets the registrar act as an in-process persistence service for the
// workflow.
func (uc *RegisterLicenseUseCase) Persist(ctx context.Context, license domain.License) (*domain.ConfirmedRecord, error) {
	record, err := uc.Register(ctx, license)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	return record, nil
}

func (uc *RegisterLicenseUseCase) check(license domain.License) error {
	if uc.strictRUT && license.ProfessionalID != "" && !domain.ValidRUT(license.ProfessionalID) {
		return domain.Reject(InvalidRUTReason)
	}
	if license.RestDays < 0 {
		return domain.Reject("dias_reposo must not be negative")
	}
	start, startOK := domain.ParseDate(license.StartDate)
	end, endOK := domain.ParseDate(license.EndDate)
	if startOK && endOK && end.Before(start) {
		return domain.Reject("fecha_fin is before fecha_inicio")
	}
	return nil
}

type ReplacementDispatchUseCase struct {
	repo     ports.LicenseRepository
	notifier ports.Notifier
	logger   *slog.Logger
	now      func() time.Time
	onLag    func(time.Duration)
}

func NewReplacementDispatchUseCase(repo ports.LicenseRepository, notifier ports.Notifier, logger *slog.Logger) *ReplacementDispatchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplacementDispatchUseCase{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnQueueLag registers fn to receive the delay between a record's creation and
// the start of its dispatch.
func (uc *ReplacementDispatchUseCase) OnQueueLag(fn func(time.Duration)) {
	uc.onLag = fn
}

// DispatchOutcome says what a dispatch did with one confirmation event.
type DispatchOutcome string

const (
	OutcomeNotified        DispatchOutcome = "notified"
	OutcomeAlreadyNotified DispatchOutcome = "already_notified"
	OutcomeNotFound        DispatchOutcome = "not_found"
	OutcomeFailed          DispatchOutcome = "failed"
)

func (uc *ReplacementDispatchUseCase) DispatchByID(ctx context.Context, licenseID string) error {
	_, err := uc.Dispatch(ctx, licenseID)
	return err
}

// Dispatch notifies at most once per record under normal delivery; a crash
// between notify and mark can repeat the notification on redelivery.
func (uc *ReplacementDispatchUseCase) Dispatch(ctx context.Context, licenseID string) (DispatchOutcome, error) {
	if licenseID == "" {
		return OutcomeFailed, domain.WrapError(domain.ErrInvalidInput, "dispatch replacement", errors.New("empty license id"))
	}
	record, err := uc.repo.GetByID(ctx, licenseID)
	if err != nil {
		if domain.IsKind(err, domain.ErrLicenseNotFound) {
			return OutcomeNotFound, fmt.Errorf("fetch license by id: %w", err)
		}
		return OutcomeFailed, fmt.Errorf("fetch license by id: %w", err)
	}
	if uc.onLag != nil && !record.CreatedAt.IsZero() {
		uc.onLag(uc.now().Sub(record.CreatedAt))
	}
	if !record.NotifiedAt.IsZero() {
		uc.logger.Info("replacement_already_notified", "license_id", licenseID)
		return OutcomeAlreadyNotified, nil
	}
	if err := uc.notifier.NotifyReplacement(ctx, *record); err != nil {
		return OutcomeFailed, fmt.Errorf("notify replacement: %w", err)
	}
	if err := uc.repo.MarkNotified(ctx, licenseID, uc.now()); err != nil {
		return OutcomeNotified, fmt.Errorf("mark license notified: %w", err)
	}
	return OutcomeNotified, nil
}
