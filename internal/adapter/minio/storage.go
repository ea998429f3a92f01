// Package minio stores media blobs in an S3-compatible bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// Config holds connection settings for the object store
type Config struct {
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	Bucket    string        `mapstructure:"bucket"`
	Region    string        `mapstructure:"region"`
	Prefix    string        `mapstructure:"prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ObjectAPI is the subset of the minio client used by Storage
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListIncompleteUploads(ctx context.Context, bucketName, objectPrefix string, recursive bool) <-chan minio.ObjectMultipartInfo
	RemoveIncompleteUpload(ctx context.Context, bucketName, objectName string) error
}

// Storage implements port.AssetStorage on a bucket
type Storage struct {
	api    ObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// Ensure Storage implements port.AssetStorage
var _ port.AssetStorage = (*Storage)(nil)

// NewClient creates a minio client with bounded connection timeouts
func NewClient(cfg Config) (*minio.Client, error) {
	// Minio expects endpoint without scheme
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// New creates a Storage and makes sure the bucket exists
func New(ctx context.Context, api ObjectAPI, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	exists, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Storage{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
	}, nil
}

func (s *Storage) objectName(storagePath string) string {
	if s.prefix == "" {
		return storagePath
	}
	return s.prefix + "/" + storagePath
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Put uploads content under a name not yet taken in the bucket
func (s *Storage) Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, int64, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", 0, fmt.Errorf("invalid storage path %q", name)
	}

	final, err := s.uniqueName(ctx, name)
	if err != nil {
		return "", 0, err
	}

	info, err := s.api.PutObject(ctx, s.bucket, s.objectName(final), reader, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload %s: %w", final, err)
	}
	return final, info.Size, nil
}

func (s *Storage) uniqueName(ctx context.Context, name string) (string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		exists, err := s.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
}

// Exists checks whether the object is present
func (s *Storage) Exists(ctx context.Context, storagePath string) (bool, error) {
	_, err := s.api.StatObject(ctx, s.bucket, s.objectName(storagePath), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", storagePath, err)
}

// Delete removes the object; missing objects are not an error
func (s *Storage) Delete(ctx context.Context, storagePath string) error {
	err := s.api.RemoveObject(ctx, s.bucket, s.objectName(storagePath), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", storagePath, err)
	}
	return nil
}

// CleanOldTempFiles aborts multipart uploads started before the cutoff
func (s *Storage) CleanOldTempFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	threshold := s.now().Add(-olderThan)
	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}

	count := 0
	for upload := range s.api.ListIncompleteUploads(ctx, s.bucket, prefix, true) {
		if upload.Err != nil {
			return count, fmt.Errorf("failed to list incomplete uploads: %w", upload.Err)
		}
		if !upload.Initiated.Before(threshold) {
			continue
		}
		if err := s.api.RemoveIncompleteUpload(ctx, s.bucket, upload.Key); err == nil {
			count++
		}
	}
	return count, nil
}
