package audio

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

// DefaultMaxUploadSize is the upload size limit in bytes (500 MB)
const DefaultMaxUploadSize int64 = 500 * 1024 * 1024

// DefaultFormats are the accepted audio container extensions
var DefaultFormats = []string{"wav", "mp3", "m4a", "ogg", "flac", "webm"}

var mimeFormats = map[string]string{
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/wave":   "wav",
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/mp4":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/ogg":    "ogg",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
	"audio/webm":   "webm",
}

// Validator checks uploaded audio files before they are stored
type Validator struct {
	formats []string
	maxSize int64
}

type ValidatorOption func(*Validator)

func WithFormats(formats ...string) ValidatorOption {
	return func(v *Validator) {
		v.formats = formats
	}
}

func WithMaxSize(size int64) ValidatorOption {
	return func(v *Validator) {
		v.maxSize = size
	}
}

func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		formats: DefaultFormats,
		maxSize: DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the audio format derived from the file extension. A content type that
// disagrees with the extension is logged but accepted.
func (v *Validator) Validate(filename, contentType string, size int64) (string, error) {
	if size > v.maxSize {
		return "", goerr.Wrap(model.ErrFileValidation,
			fmt.Sprintf("file size %.1fMB exceeds limit of %dMB", float64(size)/(1024*1024), v.maxSize/(1024*1024)),
			goerr.V("size", size), goerr.V("max_size", v.maxSize))
	}
	if size == 0 {
		return "", goerr.Wrap(model.ErrFileValidation, "file is empty")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !slices.Contains(v.formats, ext) {
		return "", goerr.Wrap(model.ErrFileValidation,
			fmt.Sprintf("file format '%s' is not supported", ext),
			goerr.V("allowed_formats", v.formats))
	}

	if detected, ok := mimeFormats[contentType]; ok && detected != ext {
		logging.Default().Warn("MIME type mismatch",
			"extension", ext,
			"content_type", contentType,
			"detected", detected)
	}

	return ext, nil
}

// NewKey returns a unique storage key for an upload of the user
func NewKey(userID model.UserID, format string) string {
	return string(userID) + "/" + string(model.NewMeetingID()) + "." + format
}
