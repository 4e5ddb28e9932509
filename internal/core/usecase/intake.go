package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/core/ports"
)

type IntakeStatus string

const (
	IntakeIdle       IntakeStatus = "idle"
	IntakeInProgress IntakeStatus = "in_progress"
)

type IntakeController struct {
	extractor ports.ExtractionService
	logger    *slog.Logger

	mu        sync.Mutex
	status    IntakeStatus
	observers []func(IntakeStatus)
}

func NewIntakeController(extractor ports.ExtractionService, logger *slog.Logger) *IntakeController {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeController{
		extractor: extractor,
		logger:    logger,
		status:    IntakeIdle,
	}
}

func (c *IntakeController) Status() IntakeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// OnStatusChange registers fn to be called on every idle/in-progress switch.
func (c *IntakeController) OnStatusChange(fn func(IntakeStatus)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *IntakeController) SubmitUpload(ctx context.Context, upload domain.RawUpload) (domain.License, error) {
	if !domain.IsSupportedMediaType(upload.MimeType) {
		return domain.License{}, domain.WrapError(
			domain.ErrUnsupportedFormat,
			"submit upload",
			fmt.Errorf("mime type %q is neither image/* nor %s", upload.MimeType, domain.MimePDF),
		)
	}

	if !c.begin() {
		return domain.License{}, domain.WrapError(domain.ErrBusy, "submit upload", fmt.Errorf("an extraction is already in progress"))
	}
	defer c.finish()

	start := time.Now()
	result, err := c.extractor.Extract(ctx, upload)
	if err != nil {
		extractErr := domain.NewExtractionError(err)
		c.logger.Warn("extraction_failed",
			"filename", upload.Filename,
			"mime_type", upload.MediaType(),
			"size_bytes", upload.SizeBytes(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"error", err,
		)
		return domain.License{}, extractErr
	}

	c.logger.Info("extraction_completed",
		"filename", upload.Filename,
		"mime_type", upload.MediaType(),
		"size_bytes", upload.SizeBytes(),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return result, nil
}

func (c *IntakeController) begin() bool {
	c.mu.Lock()
	if c.status == IntakeInProgress {
		c.mu.Unlock()
		return false
	}
	c.status = IntakeInProgress
	observers := append([]func(IntakeStatus){}, c.observers...)
	c.mu.Unlock()

	notifyStatus(observers, IntakeInProgress)
	return true
}

func (c *IntakeController) finish() {
	c.mu.Lock()
	c.status = IntakeIdle
	observers := append([]func(IntakeStatus){}, c.observers...)
	c.mu.Unlock()

	notifyStatus(observers, IntakeIdle)
}

func notifyStatus(observers []func(IntakeStatus), status IntakeStatus) {
	for _, fn := range observers {
		fn(status)
	}
}
