package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"lectern/internal/observability"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO stores blobs in an S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects and creates the bucket if it does not exist.
func NewMinIO(ctx context.Context, opts MinIOOptions) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &MinIO{client: client, bucket: opts.Bucket}, nil
}

func (m *MinIO) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	ctx, span := observability.StartStorageSpan(ctx, "put", cleaned)
	defer span.End()
	_, err = m.client.PutObject(ctx, m.bucket, cleaned, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload %s: %w", cleaned, err)
	}
	return nil
}

// Open returns a seekable object. Seeks translate into ranged GETs so
// partial responses only pull the requested window.
func (m *MinIO) Open(ctx context.Context, key string) (*Object, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	ctx, span := observability.StartStorageSpan(ctx, "open", cleaned)
	defer span.End()
	obj, err := m.client.GetObject(ctx, m.bucket, cleaned, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinIOError(err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, translateMinIOError(err)
	}
	return &Object{ReadSeekCloser: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

func (m *MinIO) Delete(ctx context.Context, key string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	ctx, span := observability.StartStorageSpan(ctx, "delete", cleaned)
	defer span.End()
	err = m.client.RemoveObject(ctx, m.bucket, cleaned, minio.RemoveObjectOptions{})
	if err != nil && !errors.Is(translateMinIOError(err), ErrNotFound) {
		return fmt.Errorf("failed to remove %s: %w", cleaned, err)
	}
	return nil
}

func translateMinIOError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}
