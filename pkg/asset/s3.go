package asset

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/kookworks/kgate/internal/errors"
	"github.com/kookworks/kgate/pkg/message"
)

// s3API is the slice of the S3 client the uploader needs.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Presigner generates time-limited GET URLs for uploaded objects.
type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4PresignedRequest, error)
}

// v4PresignedRequest mirrors the fields of the SDK's signed request
// that the uploader reads.
type v4PresignedRequest struct {
	URL string
}

// S3Uploader stores media in an S3 bucket and hands out presigned
// GET URLs.
type S3Uploader struct {
	client    s3API
	presigner s3Presigner
	bucket    string
	prefix    string
	maxSize   int64
	urlExpiry time.Duration
}

// S3Option configures an S3Uploader.
type S3Option func(*S3Uploader)

// WithMaxSize rejects uploads larger than n bytes. Zero means no limit.
func WithMaxSize(n int64) S3Option {
	return func(u *S3Uploader) { u.maxSize = n }
}

// WithURLExpiry sets how long presigned URLs stay valid.
func WithURLExpiry(d time.Duration) S3Option {
	return func(u *S3Uploader) { u.urlExpiry = d }
}

// NewS3Uploader creates an uploader backed by the given S3 client.
// Keys are written under prefix with a random suffix.
func NewS3Uploader(client *s3.Client, bucket, prefix string, opts ...S3Option) *S3Uploader {
	u := &S3Uploader{
		client:    client,
		presigner: presignAdapter{s3.NewPresignClient(client)},
		bucket:    bucket,
		prefix:    prefix,
		urlExpiry: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// presignAdapter narrows *s3.PresignClient to s3Presigner.
type presignAdapter struct {
	inner *s3.PresignClient
}

func (a presignAdapter) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4PresignedRequest, error) {
	signed, err := a.inner.PresignGetObject(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return &v4PresignedRequest{URL: signed.URL}, nil
}

// Upload writes the file to the bucket and returns a presigned URL.
func (u *S3Uploader) Upload(ctx context.Context, r io.Reader, name string) (string, error) {
	var buf bytes.Buffer
	if u.maxSize > 0 {
		n, err := io.Copy(&buf, io.LimitReader(r, u.maxSize+1))
		if err != nil {
			return "", errors.Newf(errors.CategoryUpload, "read media: %v", err)
		}
		if n > u.maxSize {
			return "", errors.Newf(errors.CategoryUpload, "media exceeds %d bytes", u.maxSize)
		}
	} else if _, err := io.Copy(&buf, r); err != nil {
		return "", errors.Newf(errors.CategoryUpload, "read media: %v", err)
	}

	key := u.prefix + uuid.NewString() + path.Ext(name)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
		Metadata: map[string]string{
			"original-filename": name,
			"upload-time":       time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", errors.Newf(errors.CategoryUpload, "s3 put %s: %v", key, err)
	}

	signed, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.urlExpiry))
	if err != nil {
		return "", errors.Newf(errors.CategoryUpload, "presign %s: %v", key, err)
	}
	return signed.URL, nil
}

var _ message.Uploader = (*S3Uploader)(nil)
