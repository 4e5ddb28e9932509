package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/core/ports"
)

type Phase string

const (
	PhaseIntake Phase = "intake"
	PhaseReview Phase = "review"
)

type Event string

const (
	EventExtractionSucceeded Event = "extraction_succeeded"
	EventExtractionFailed    Event = "extraction_failed"
	EventSubmitSucceeded     Event = "submit_succeeded"
	EventSubmitFailed        Event = "submit_failed"
	EventCancelled           Event = "cancelled"
)

// Transition is the pure state function of the intake cycle. Pairs not listed
// are rejected with ErrInvalidTransition.
func Transition(from Phase, event Event) (Phase, error) {
	switch {
	case from == PhaseIntake && event == EventExtractionSucceeded:
		return PhaseReview, nil
	case from == PhaseIntake && event == EventExtractionFailed:
		return PhaseIntake, nil
	case from == PhaseReview && event == EventSubmitSucceeded:
		return PhaseIntake, nil
	case from == PhaseReview && event == EventSubmitFailed:
		return PhaseReview, nil
	case from == PhaseReview && event == EventCancelled:
		return PhaseIntake, nil
	default:
		return from, domain.WrapError(domain.ErrInvalidTransition, "transition", fmt.Errorf("%s on %s", event, from))
	}
}

type WorkflowOptions struct {
	Logger *slog.Logger
	// OnConfirmed receives every ConfirmedRecord after the cycle loops back to intake.
	OnConfirmed func(domain.ConfirmedRecord)
	// OnStatusChange mirrors the intake controller's busy indicator.
	OnStatusChange func(IntakeStatus)
}

// Workflow binds the intake controller and the review session into the
// upload -> review -> confirm/cancel cycle. At most one draft is alive at a time.
type Workflow struct {
	intake    *IntakeController
	persister ports.PersistenceService
	logger    *slog.Logger

	onConfirmed func(domain.ConfirmedRecord)

	mu      sync.Mutex
	phase   Phase
	session *ReviewSession
	lastErr error
}

func NewWorkflow(extractor ports.ExtractionService, persister ports.PersistenceService, opts WorkflowOptions) *Workflow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	intake := NewIntakeController(extractor, logger)
	intake.OnStatusChange(opts.OnStatusChange)

	return &Workflow{
		intake:      intake,
		persister:   persister,
		logger:      logger,
		onConfirmed: opts.OnConfirmed,
		phase:       PhaseIntake,
	}
}

type Snapshot struct {
	Phase        Phase
	IntakeStatus IntakeStatus
	Busy         bool
	LastError    error
	Draft        *domain.License
	Annotations  domain.FieldErrors
}

func (w *Workflow) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	session := w.session
	snap := Snapshot{
		Phase:        w.phase,
		IntakeStatus: w.intake.Status(),
		LastError:    w.lastErr,
	}
	w.mu.Unlock()

	snap.Busy = snap.IntakeStatus == IntakeInProgress
	if session != nil {
		if draft, err := session.Draft(); err == nil {
			snap.Draft = &draft
			snap.Annotations = domain.Validate(draft)
		}
		snap.Busy = snap.Busy || session.Submitting()
	}
	return snap
}

// Upload runs one extraction. On success the workflow enters review with the
// result as the draft seed.
func (w *Workflow) Upload(ctx context.Context, upload domain.RawUpload) (domain.License, error) {
	w.mu.Lock()
	if w.phase != PhaseIntake {
		phase := w.phase
		w.mu.Unlock()
		return domain.License{}, domain.WrapError(domain.ErrInvalidTransition, "upload", fmt.Errorf("cancel or confirm the %s draft first", phase))
	}
	w.mu.Unlock()

	result, err := w.intake.SubmitUpload(ctx, upload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		// Format and busy rejections leave no trace.
		if domain.IsKind(err, domain.ErrExtractionFailed) {
			w.phase, _ = Transition(w.phase, EventExtractionFailed)
			w.lastErr = err
		}
		return domain.License{}, err
	}

	next, err := Transition(w.phase, EventExtractionSucceeded)
	if err != nil {
		return domain.License{}, err
	}
	w.session = OpenReview(result, w.persister, w.logger)
	w.phase = next
	w.lastErr = nil
	return result, nil
}

func (w *Workflow) Edit(field domain.Field, value any) error {
	session, err := w.activeSession("edit")
	if err != nil {
		return err
	}
	return session.Edit(field, value)
}

// Submit persists the draft. Annotations are returned even on success so the
// caller can surface them.
func (w *Workflow) Submit(ctx context.Context) (*domain.ConfirmedRecord, domain.FieldErrors, error) {
	session, err := w.activeSession("submit")
	if err != nil {
		return nil, nil, err
	}

	record, annotations, err := session.Submit(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrPersistenceFailed) {
			w.mu.Lock()
			if w.session == session {
				w.phase, _ = Transition(w.phase, EventSubmitFailed)
				w.lastErr = err
			}
			w.mu.Unlock()
		}
		return nil, annotations, err
	}

	w.mu.Lock()
	if w.session == session {
		if next, terr := Transition(w.phase, EventSubmitSucceeded); terr == nil {
			w.phase = next
		}
		w.session = nil
		w.lastErr = nil
	}
	w.mu.Unlock()

	w.logger.Info("license_confirmed", "license_id", record.ID, "annotations", len(annotations))
	if w.onConfirmed != nil {
		w.onConfirmed(*record)
	}
	return record, annotations, nil
}

func (w *Workflow) Cancel() error {
	session, err := w.activeSession("cancel")
	if err != nil {
		return err
	}
	if err := session.Cancel(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := Transition(w.phase, EventCancelled)
	if err != nil {
		return err
	}
	w.phase = next
	w.session = nil
	w.lastErr = nil
	return nil
}

func (w *Workflow) activeSession(operation string) (*ReviewSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != PhaseReview || w.session == nil {
		return nil, domain.WrapError(domain.ErrInvalidTransition, operation, fmt.Errorf("no draft under review"))
	}
	return w.session, nil
}
