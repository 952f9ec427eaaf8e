// Package s3 archives dumps in an S3-compatible bucket through minio-go.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tablescan/tablescan/internal/storage"
)

const defaultContentType = "text/plain; charset=utf-8"

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// objectAPI is the subset of *minio.Client a Bucket calls.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

// Bucket is a storage.Archive writing below an optional key prefix.
type Bucket struct {
	api    objectAPI
	name   string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Bucket, error) {
	endpoint, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	bucket, err := newBucket(client, cfg.Bucket, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := bucket.provision(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

func newBucket(api objectAPI, name, prefix string) (*Bucket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix = path.Clean(prefix)
	}
	if prefix == "." {
		prefix = ""
	}
	return &Bucket{api: api, name: name, prefix: prefix}, nil
}

// Store uploads the dump with its metadata, then stats the object to confirm
// the bucket holds every byte.
func (b *Bucket) Store(ctx context.Context, upload storage.Upload) (storage.Receipt, error) {
	key, err := b.objectKey(upload.Key)
	if err != nil {
		return storage.Receipt{}, err
	}
	if upload.Body == nil {
		return storage.Receipt{}, fmt.Errorf("upload body is required")
	}
	if upload.Size < 0 {
		return storage.Receipt{}, fmt.Errorf("upload size must be known, got %d", upload.Size)
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	uri := b.uri(key)

	put, err := b.api.PutObject(ctx, b.name, key, upload.Body, upload.Size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: upload.Metadata,
	})
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("upload %s: %w", uri, err)
	}

	stored, err := b.api.StatObject(ctx, b.name, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return storage.Receipt{}, fmt.Errorf("verify %s: %w", uri, storage.ErrObjectNotFound)
		}
		return storage.Receipt{}, fmt.Errorf("verify %s: %w", uri, err)
	}
	if stored.Size != upload.Size {
		return storage.Receipt{}, fmt.Errorf("verify %s: %w: stored %d bytes, uploaded %d", uri, storage.ErrSizeMismatch, stored.Size, upload.Size)
	}

	etag := stored.ETag
	if etag == "" {
		etag = put.ETag
	}
	return storage.Receipt{Key: key, URI: uri, Size: stored.Size, ETag: etag, Metadata: upload.Metadata}, nil
}

func (b *Bucket) provision(ctx context.Context, region string) error {
	exists, err := b.api.BucketExists(ctx, b.name)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.name, err)
	}
	if exists {
		return nil
	}
	if err := b.api.MakeBucket(ctx, b.name, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", b.name, err)
	}
	return nil
}

// objectKey places key below the prefix. Keys may not climb out of it.
func (b *Bucket) objectKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	cleaned := path.Clean(key)
	if key == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return path.Join(b.prefix, cleaned), nil
}

func (b *Bucket) uri(key string) string {
	return "s3://" + b.name + "/" + key
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

// splitEndpoint accepts host[:port] or a URL; a URL scheme overrides useSSL.
func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("s3 endpoint %q has no host", raw)
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, false, nil
	default:
		return "", false, fmt.Errorf("s3 endpoint scheme %q is not http or https", parsed.Scheme)
	}
}
