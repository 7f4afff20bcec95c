// Package media issues presigned S3 uploads for user images and deletes stored objects.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jarrod-lowe/jmap-service-libs/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
)

// UploadExpiry is how long a presigned upload URL stays valid.
const UploadExpiry = 15 * time.Minute

// Upload purposes; each is the first segment of the object key.
const (
	PurposeAvatar    = "avatars"
	PurposePost      = "posts"
	PurposeWorkspace = "workspaces"
	PurposeProject   = "projects"
)

var purposes = map[string]bool{
	PurposeAvatar:    true,
	PurposePost:      true,
	PurposeWorkspace: true,
	PurposeProject:   true,
}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Error types for media operations.
var (
	ErrUnsupportedType    = apperr.Validation("contentType must be one of: image/jpeg image/png image/gif image/webp")
	ErrUnsupportedPurpose = apperr.Validation("purpose must be one of: avatars posts workspaces projects")
	ErrDisabled           = apperr.Validation("Media uploads are not configured")
)

// Upload is a presigned PUT the client performs directly against the bucket.
type Upload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
}

// Presigner signs S3 PUT requests.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectDeleter deletes S3 objects.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Remover releases stored objects. Store deletes synchronously; the mediadelete publisher
// defers deletion to a queue consumer.
type Remover interface {
	Remove(ctx context.Context, keys []string) error
}

// Store issues uploads into one bucket.
type Store struct {
	presigner Presigner
	deleter   ObjectDeleter
	bucket    string
	baseURL   string
}

// NewStore creates a Store. An empty baseURL serves objects from the bucket's virtual-hosted URL.
func NewStore(presigner Presigner, deleter ObjectDeleter, bucket, region, baseURL string) *Store {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &Store{
		presigner: presigner,
		deleter:   deleter,
		bucket:    bucket,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// CreateUpload presigns a PUT for a new object owned by sub.
func (s *Store) CreateUpload(ctx context.Context, sub, purpose, contentType string) (*Upload, error) {
	tracer := tracing.Tracer("collab-media")
	ctx, span := tracer.Start(ctx, "media.CreateUpload",
		trace.WithAttributes(
			tracing.ContentType(contentType),
			attribute.String("media.purpose", purpose),
		))
	defer span.End()

	if !purposes[purpose] {
		return nil, ErrUnsupportedPurpose
	}
	ext, ok := extensions[contentType]
	if !ok {
		return nil, ErrUnsupportedType
	}

	key := fmt.Sprintf("%s/%s/%s.%s", purpose, sub, uuid.NewString(), ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(UploadExpiry))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &Upload{Key: key, UploadURL: req.URL, PublicURL: s.PublicURL(key)}, nil
}

// PublicURL is where a stored object is served from.
func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Remove deletes each object. Deleting a missing object succeeds.
func (s *Store) Remove(ctx context.Context, keys []string) error {
	tracer := tracing.Tracer("collab-media")
	ctx, span := tracer.Start(ctx, "media.Remove",
		trace.WithAttributes(attribute.Int("media.keys", len(keys))))
	defer span.End()

	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, err := s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			tracing.RecordError(span, err)
			return fmt.Errorf("delete object %s: %w", key, err)
		}
	}
	return nil
}

// OwnedBy reports whether key was issued to sub by CreateUpload.
func OwnedBy(key, sub string) bool {
	parts := strings.Split(key, "/")
	return len(parts) == 3 && purposes[parts[0]] && parts[1] == sub && parts[2] != ""
}
