package validator

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/feichai0017/bookmeta/internal/agent"
	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// UploadValidator checks cover uploads before a run is enqueued.
type UploadValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

type ValidatorConfig struct {
	MaxFileSize  int64               // bytes
	AllowedTypes map[string][]string // extension -> accepted MIME types
	MinDimension int                 // pixels, shortest side
	MaxDimension int                 // pixels, longest side
}

func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 20 * 1024 * 1024,
		AllowedTypes: map[string][]string{
			".jpg":  {"image/jpeg"},
			".jpeg": {"image/jpeg"},
			".png":  {"image/png"},
			".webp": {"image/webp"},
			".gif":  {"image/gif"},
			".tif":  {"image/tiff"},
			".tiff": {"image/tiff"},
		},
		MinDimension: 100,
		MaxDimension: 10000,
	}
}

type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

func (r *ValidationResult) add(code, field, format string, args ...interface{}) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{Code: code, Message: fmt.Sprintf(format, args...), Field: field})
}

// Err folds the validation errors into an InvalidQuery error, or nil.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return apperr.InvalidQuery("validate upload", strings.Join(msgs, "; "))
}

func NewUploadValidator(log logger.Logger, config *ValidatorConfig) *UploadValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &UploadValidator{logger: log, config: config}
}

// ValidateEvent checks an object-created notification. The object itself is
// not read; type comes from the declared content type or the key extension.
func (v *UploadValidator) ValidateEvent(ev models.UploadEvent) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  ev.Key,
			Size:      ev.Size,
			Extension: strings.ToLower(filepath.Ext(ev.Key)),
		},
	}

	if strings.TrimSpace(ev.Key) == "" {
		result.add("MISSING_KEY", "key", "object key is required")
	}
	if strings.TrimSpace(ev.OwnerID) == "" {
		result.add("MISSING_OWNER", "ownerId", "owner id is required")
	}
	if ev.Size < 0 {
		result.add("INVALID_SIZE", "size", "size must not be negative")
	}
	if ev.Size > v.config.MaxFileSize {
		result.add("FILE_TOO_LARGE", "size", "file size exceeds maximum limit of %d bytes", v.config.MaxFileSize)
	}
	if ev.Key != "" {
		mime, ok := agent.ContentTypeFor(ev.Key, ev.ContentType)
		if !ok {
			result.add("INVALID_FILE_TYPE", "contentType", "%s is not an image upload", ev.Key)
		}
		result.FileInfo.MimeType = mime
	}

	if !result.IsValid {
		v.logger.Warn("Upload event rejected",
			logger.String("key", ev.Key),
			logger.Int("errors", len(result.Errors)),
		)
	}
	return result
}

// ValidateFile checks uploaded bytes: extension, sniffed MIME type, size and,
// for decodable formats, the image dimensions. The reader is consumed.
func (v *UploadValidator) ValidateFile(r io.Reader, filename string) (*ValidationResult, []byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.config.MaxFileSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}

	sum := sha256.Sum256(data)
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      int64(len(data)),
			Extension: strings.ToLower(filepath.Ext(filename)),
			MimeType:  http.DetectContentType(data),
			Hash:      hex.EncodeToString(sum[:]),
		},
	}
	info := &result.FileInfo

	if info.Size == 0 {
		result.add("EMPTY_FILE", "size", "file is empty")
	}
	if info.Size > v.config.MaxFileSize {
		result.add("FILE_TOO_LARGE", "size", "file size exceeds maximum limit of %d bytes", v.config.MaxFileSize)
	}

	allowed, ok := v.config.AllowedTypes[info.Extension]
	switch {
	case !ok:
		result.add("INVALID_FILE_TYPE", "extension", "file type %s is not allowed", info.Extension)
	case !contains(allowed, info.MimeType):
		result.add("INVALID_MIME_TYPE", "mimeType", "invalid MIME type %s for extension %s", info.MimeType, info.Extension)
	}

	if result.IsValid {
		v.validateDimensions(data, result)
	}
	return result, data, nil
}

func (v *UploadValidator) validateDimensions(data []byte, result *ValidationResult) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return
	}
	if err != nil {
		result.add("CORRUPT_IMAGE", "file", "image cannot be decoded: %v", err)
		return
	}
	result.FileInfo.Width, result.FileInfo.Height = cfg.Width, cfg.Height

	short, long := cfg.Width, cfg.Height
	if short > long {
		short, long = long, short
	}
	if short < v.config.MinDimension {
		result.add("IMAGE_TOO_SMALL", "dimensions", "image must be at least %dpx on each side", v.config.MinDimension)
	}
	if long > v.config.MaxDimension {
		result.add("IMAGE_TOO_LARGE", "dimensions", "image must be at most %dpx on each side", v.config.MaxDimension)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
