package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/core/ports"
)

type ReviewSession struct {
	persister ports.PersistenceService
	logger    *slog.Logger

	mu         sync.Mutex
	draft      domain.License
	open       bool
	submitting bool
}

// OpenReview seeds a fresh draft from an extraction result. The session owns
// its copy; callers only ever see copies of it.
func OpenReview(seed domain.License, persister ports.PersistenceService, logger *slog.Logger) *ReviewSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewSession{
		persister: persister,
		logger:    logger,
		draft:     seed,
		open:      true,
	}
}

func (s *ReviewSession) Draft() (domain.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return domain.License{}, domain.ErrSessionClosed
	}
	return s.draft, nil
}

func (s *ReviewSession) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *ReviewSession) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Annotations runs the field schema over the current draft.
func (s *ReviewSession) Annotations() domain.FieldErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	return domain.Validate(s.draft)
}

func (s *ReviewSession) Edit(field domain.Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return domain.ErrSessionClosed
	}
	if s.submitting {
		return domain.WrapError(domain.ErrBusy, "edit draft", fmt.Errorf("submission in progress"))
	}
	return s.draft.Set(field, value)
}

// Submit sends the draft to the persistence service. Field annotations are
// returned alongside but never prevent the call.
func (s *ReviewSession) Submit(ctx context.Context) (*domain.ConfirmedRecord, domain.FieldErrors, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionClosed
	}
	if s.submitting {
		s.mu.Unlock()
		return nil, nil, domain.WrapError(domain.ErrBusy, "submit draft", fmt.Errorf("submission already in progress"))
	}
	s.submitting = true
	snapshot := s.draft
	s.mu.Unlock()

	annotations := domain.Validate(snapshot)
	if len(annotations) > 0 {
		s.logger.Info("draft_submitted_with_annotations", "annotations", len(annotations))
	}

	record, err := s.persister.Persist(ctx, snapshot)
	if err == nil && record == nil {
		err = errors.New("persistence service returned no record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false

	if err != nil {
		var persistErr *domain.PersistenceError
		if !errors.As(err, &persistErr) {
			persistErr = domain.NewPersistenceError(err)
		}
		s.logger.Warn("persistence_failed", "message", persistErr.Message, "error", err)
		return nil, annotations, persistErr
	}

	s.open = false
	s.draft = domain.License{}
	return record, annotations, nil
}

// Cancel discards the draft without any network call. Only an in-flight
// submission can refuse it.
func (s *ReviewSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return domain.WrapError(domain.ErrBusy, "cancel review", fmt.Errorf("submission in progress"))
	}
	s.open = false
	s.draft = domain.License{}
	return nil
}
