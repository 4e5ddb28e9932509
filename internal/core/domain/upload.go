package domain

import (
	"mime"
	"path/filepath"
	"strings"
)

const MimePDF = "application/pdf"

// RawUpload is one selected file, consumed by a single extraction attempt.
type RawUpload struct {
	Filename string
	MimeType string
	Data     []byte
}

func (u RawUpload) SizeBytes() int64 {
	return int64(len(u.Data))
}

// MediaType returns the lower-cased media type without parameters.
func (u RawUpload) MediaType() string {
	return NormalizeMediaType(u.MimeType)
}

func NormalizeMediaType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimeType
		if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
			mediaType = mediaType[:idx]
		}
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsSupportedMediaType accepts any image/* type and application/pdf.
func IsSupportedMediaType(mimeType string) bool {
	mediaType := NormalizeMediaType(mimeType)
	if mediaType == MimePDF {
		return true
	}
	return strings.HasPrefix(mediaType, "image/") && len(mediaType) > len("image/")
}

// MediaTypeFromFilename guesses the media type of the supported extensions.
func MediaTypeFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return ""
	}
}
