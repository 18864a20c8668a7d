// Package archive persists pipeline snapshots to S3 as PNG images, giving
// an audit trail of what each display was showing.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// ObjectPutter is the slice of the S3 client the store needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store writes frame snapshots under s3://bucket/prefix/.
type Store struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a snapshot store. prefix may be empty; a trailing slash
// is added when missing.
func NewStore(client ObjectPutter, bucket, prefix string) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: slog.Default().With("component", "archive", "bucket", bucket),
		now:    time.Now,
	}
}

// Save encodes f as PNG and uploads it, returning the object key. Keys are
// pipeline-scoped and timestamped: <prefix><pipeline>/20060102T150405.png.
func (s *Store) Save(ctx context.Context, pipeline string, f *frame.Frame) (string, error) {
	if f == nil {
		return "", fmt.Errorf("archive: no frame to save")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, f.ToImage()); err != nil {
		return "", fmt.Errorf("archive: encode png: %w", err)
	}

	key := fmt.Sprintf("%s%s/%s.png", s.prefix, pipeline, s.now().UTC().Format("20060102T150405"))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/png"),
		Metadata: map[string]string{
			"pipeline":   pipeline,
			"resolution": fmt.Sprintf("%dx%d", f.Width, f.Height),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive: upload failed: %w", err)
	}

	s.logger.Info("snapshot archived", "key", key, "bytes", buf.Len())
	return key, nil
}
