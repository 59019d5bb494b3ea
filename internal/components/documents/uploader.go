package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/validate"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

var (
	ErrUnknownDocument = errors.New("unknown document type")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
)

// DefaultMaxBytes caps uploads when no limit is configured.
const DefaultMaxBytes = 10 << 20

var allowedTypes = []string{"application/pdf", "image/png", "image/jpeg"}

// API is the part of the remote client the uploader needs.
type API interface {
	GetFacility(ctx context.Context, a portalapi.Auth, facilityID string) (*portalapi.Facility, error)
	UploadFacilityDocument(ctx context.Context, a portalapi.Auth, facilityID, endpointSuffix string, f portalapi.File) (*portalapi.Facility, error)
}

// Invalidator drops cached progress for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Uploader uploads facility documents.
type Uploader struct {
	api      API
	inv      Invalidator
	maxBytes int64
	logger   *slog.Logger
}

// NewUploader creates an uploader. inv may be nil.
func NewUploader(api API, inv Invalidator, maxBytes int64, logger *slog.Logger) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Uploader{api: api, inv: inv, maxBytes: maxBytes, logger: logutil.NoopIfNil(logger)}
}

// Check validates a file for upload and returns its detected content type.
func (u *Uploader) Check(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: %w", ErrEmptyFile, validate.Field("file", "is empty"))
	}
	if int64(len(content)) > u.maxBytes {
		return "", fmt.Errorf("%w: %w", ErrTooLarge, validate.Field("file", fmt.Sprintf("must be at most %d bytes", u.maxBytes)))
	}
	mt := mimetype.Detect(content)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w %s: %w", ErrUnsupportedType, mt.String(), validate.Field("file", "must be a PDF, PNG or JPEG"))
}

// Upload sends one document for a facility and returns the facility with the
// upload response merged in. Nothing is sent when the key or the file is
// rejected.
func (u *Uploader) Upload(ctx context.Context, a portalapi.Auth, facilityID string, key Key, filename string, content []byte) (*portalapi.Facility, error) {
	t, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w %q: %w", ErrUnknownDocument, key, validate.Field("key", "is not a known document type"))
	}
	contentType, err := u.Check(content)
	if err != nil {
		return nil, err
	}

	current, err := u.api.GetFacility(ctx, a, facilityID)
	if err != nil {
		return nil, fmt.Errorf("load facility: %w", err)
	}
	partial, err := u.api.UploadFacilityDocument(ctx, a, facilityID, t.EndpointSuffix, portalapi.File{
		Name:        filename,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	Merge(current, t, partial)
	logutil.Ctx(ctx).Info("document uploaded", "facility_id", facilityID, "document", key, "bytes", len(content))

	if u.inv != nil {
		u.inv.Invalidate(ctx, a.UserID)
	}
	return current, nil
}
