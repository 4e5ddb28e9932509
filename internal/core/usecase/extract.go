package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/leave-intake/internal/core/domain"
	"github.com/kirillkom/leave-intake/internal/core/ports"
)

// ExtractLicenseUseCase serves POST /extract-license: it routes the document
// to the model and normalizes what comes back. Raw bytes are never stored.
type ExtractLicenseUseCase struct {
	model    ports.DocumentModel
	pdfText  ports.TextExtractor
	maxBytes int64
}

func NewExtractLicenseUseCase(model ports.DocumentModel, pdfText ports.TextExtractor, maxBytes int64) *ExtractLicenseUseCase {
	return &ExtractLicenseUseCase{
		model:    model,
		pdfText:  pdfText,
		maxBytes: maxBytes,
	}
}

func (uc *ExtractLicenseUseCase) ExtractLicense(ctx context.Context, upload domain.RawUpload) (domain.License, error) {
	mediaType := resolveMediaType(upload)
	if !domain.IsSupportedMediaType(mediaType) {
		return domain.License{}, domain.WrapError(
			domain.ErrUnsupportedFormat,
			"extract license",
			fmt.Errorf("unsupported file %q (%s); upload a PDF or an image", upload.Filename, upload.MimeType),
		)
	}
	if len(upload.Data) == 0 {
		return domain.License{}, domain.WrapError(domain.ErrInvalidInput, "extract license", errors.New("empty file"))
	}
	if uc.maxBytes > 0 && upload.SizeBytes() > uc.maxBytes {
		return domain.License{}, domain.WrapError(
			domain.ErrInvalidInput,
			"extract license",
			fmt.Errorf("file is %d bytes, limit is %d", upload.SizeBytes(), uc.maxBytes),
		)
	}

	var (
		license domain.License
		err     error
	)
	if mediaType == domain.MimePDF {
		license, err = uc.extractPDF(ctx, upload.Data)
	} else {
		license, err = uc.model.ExtractFromImage(ctx, mediaType, upload.Data)
		if err != nil {
			err = fmt.Errorf("model extraction: %w", err)
		}
	}
	if err != nil {
		return domain.License{}, err
	}
	return license.Normalized(), nil
}

func (uc *ExtractLicenseUseCase) extractPDF(ctx context.Context, data []byte) (domain.License, error) {
	text, err := uc.pdfText.ExtractText(ctx, data)
	if err != nil {
		return domain.License{}, domain.WrapError(domain.ErrInvalidInput, "read pdf", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.License{}, domain.WrapError(
			domain.ErrInvalidInput,
			"read pdf",
			errors.New("pdf has no embedded text; upload a photo of the certificate instead"),
		)
	}
	license, err := uc.model.ExtractFromText(ctx, text)
	if err != nil {
		return domain.License{}, fmt.Errorf("model extraction: %w", err)
	}
	return license, nil
}

// resolveMediaType trusts the declared type unless it is missing or generic.
func resolveMediaType(upload domain.RawUpload) string {
	mediaType := upload.MediaType()
	if mediaType == "" || mediaType == "application/octet-stream" {
		if guessed := domain.MediaTypeFromFilename(upload.Filename); guessed != "" {
			return guessed
		}
	}
	return mediaType
}
