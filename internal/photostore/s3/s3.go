package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nrkitap/adboard/internal/config"
	"github.com/nrkitap/adboard/internal/photostore"
)

// Store keeps photos in an S3-compatible bucket, one key prefix per
// submission id. It is safe for concurrent use.
type Store struct {
	client *minio.Client
	bucket string
}

// New creates an S3-backed photo store. It validates connectivity and
// ensures the bucket exists, creating it when missing.
func New(cfg *config.Config) (*Store, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cli, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	s := &Store{client: cli, bucket: cfg.S3Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Save(ctx context.Context, submissionID, filename string, r io.Reader) (string, error) {
	name := filename
	key := objectKey(submissionID, name)

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		name = fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:6], ext)
		key = objectKey(submissionID, name)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: extToMimeType(name),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	return name, nil
}

func (s *Store) Open(ctx context.Context, submissionID, filename string) (io.ReadCloser, string, error) {
	key := objectKey(submissionID, filename)

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object %q: %w", key, err)
	}

	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", photostore.ErrNotFound
		}
		return nil, "", fmt.Errorf("stat object %q: %w", key, err)
	}

	mimeType := info.ContentType
	if mimeType == "" {
		mimeType = extToMimeType(filename)
	}
	return obj, mimeType, nil
}

func (s *Store) List(ctx context.Context, submissionID string) ([]string, error) {
	prefix := submissionID + "/"

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, obj.Err)
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Delete(ctx context.Context, submissionID, filename string) error {
	key := objectKey(submissionID, filename)

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return photostore.ErrNotFound
		}
		return fmt.Errorf("stat object %q: %w", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, submissionID string) error {
	names, err := s.List(ctx, submissionID)
	if err != nil {
		return err
	}
	for _, name := range names {
		key := objectKey(submissionID, name)
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %q: %w", key, err)
		}
	}
	return nil
}

// objectKey builds the bucket key, collapsing any path elements in the
// filename so a crafted name cannot address another submission's prefix.
func objectKey(submissionID, filename string) string {
	return submissionID + "/" + path.Base(filename)
}

func extToMimeType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
