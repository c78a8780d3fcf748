package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"alumnisync/internal/logging"
)

// ErrArchival marks snapshot storage failures. Archival is best-effort:
// callers record the profile sync as partial rather than failed.
var ErrArchival = errors.New("document archival failed")

// MaxDocumentSize caps stored snapshots at 10 MB.
const MaxDocumentSize = 10 * 1024 * 1024

// Sink stores profile snapshot documents and returns a stable URL.
type Sink interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// B2Sink archives documents to a Backblaze B2 bucket over its S3-compatible
// endpoint.
type B2Sink struct {
	client *minio.Client
	bucket string
	log    *logging.Logger
}

// B2Options carries the bucket credentials from config.
type B2Options struct {
	Endpoint string
	KeyID    string
	AppKey   string
	Bucket   string
	UseSSL   bool
	Logger   *logging.Logger
}

// NewB2Sink connects to the configured bucket.
func NewB2Sink(opts B2Options) (*B2Sink, error) {
	if opts.KeyID == "" || opts.AppKey == "" || opts.Bucket == "" {
		return nil, errors.New("b2 credentials not configured, run 'alumnisync config set b2_key_id ...'")
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("info")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.KeyID, opts.AppKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to b2: %w", err)
	}
	return &B2Sink{
		client: client,
		bucket: opts.Bucket,
		log:    opts.Logger.With("module", "archive"),
	}, nil
}

// Store uploads the document under key and returns its public URL.
func (s *B2Sink) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrArchival)
	}
	if len(data) > MaxDocumentSize {
		return "", fmt.Errorf("%w: document is %d bytes, limit %d", ErrArchival, len(data), MaxDocumentSize)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrArchival, key, err)
	}

	url := fmt.Sprintf("https://%s/%s/%s", s.client.EndpointURL().Host, s.bucket, key)
	s.log.Info("document archived", "key", key, "bytes", len(data))
	return url, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)

// SnapshotKey builds the object key for one profile snapshot:
// profile-pdfs/<alumniID>/<name-slug>_<timestamp>.pdf
func SnapshotKey(alumniID int, name string, ts time.Time) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = slugUnsafe.ReplaceAllString(slug, "")
	if slug == "" {
		slug = "profile"
	}
	return fmt.Sprintf("profile-pdfs/%d/%s_%s.pdf", alumniID, slug, ts.UTC().Format("20060102T150405Z"))
}
