package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *mockAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *mockAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *mockAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *mockAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

func (m *mockAPI) ListIncompleteUploads(ctx context.Context, bucketName, objectPrefix string, recursive bool) <-chan minio.ObjectMultipartInfo {
	args := m.Called(ctx, bucketName, objectPrefix, recursive)
	return args.Get(0).(<-chan minio.ObjectMultipartInfo)
}

func (m *mockAPI) RemoveIncompleteUpload(ctx context.Context, bucketName, objectName string) error {
	args := m.Called(ctx, bucketName, objectName)
	return args.Error(0)
}

var errNoSuchKey = minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}

func TestNew_CreatesMissingBucket(t *testing.T) {
	api := new(mockAPI)
	api.On("BucketExists", mock.Anything, "media").Return(false, nil)
	api.On("MakeBucket", mock.Anything, "media", mock.Anything).Return(nil)

	_, err := New(context.Background(), api, Config{Bucket: "media"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), new(mockAPI), Config{})
	assert.Error(t, err)
}

func TestPut_PicksFreeName(t *testing.T) {
	api := new(mockAPI)
	api.On("BucketExists", mock.Anything, "media").Return(true, nil)
	api.On("StatObject", mock.Anything, "media", "sync/logo-1-acme.png", mock.Anything).
		Return(minio.ObjectInfo{Key: "sync/logo-1-acme.png"}, nil)
	api.On("StatObject", mock.Anything, "media", "sync/logo-1-acme-1.png", mock.Anything).
		Return(minio.ObjectInfo{}, errNoSuchKey)
	api.On("PutObject", mock.Anything, "media", "sync/logo-1-acme-1.png", mock.Anything, int64(-1),
		minio.PutObjectOptions{ContentType: "image/png"}).
		Return(minio.UploadInfo{Size: 4}, nil)

	s, err := New(context.Background(), api, Config{Bucket: "media", Prefix: "/sync/"})
	require.NoError(t, err)

	name, size, err := s.Put(context.Background(), "logo-1-acme.png", strings.NewReader("data"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "logo-1-acme-1.png", name)
	assert.Equal(t, int64(4), size)
	api.AssertExpectations(t)
}

func TestExists_PropagatesServerErrors(t *testing.T) {
	api := new(mockAPI)
	api.On("BucketExists", mock.Anything, "media").Return(true, nil)
	api.On("StatObject", mock.Anything, "media", "a.png", mock.Anything).
		Return(minio.ObjectInfo{}, errors.New("connection refused"))

	s, err := New(context.Background(), api, Config{Bucket: "media"})
	require.NoError(t, err)

	_, err = s.Exists(context.Background(), "a.png")
	assert.Error(t, err)
}

func TestDelete_IgnoresMissing(t *testing.T) {
	api := new(mockAPI)
	api.On("BucketExists", mock.Anything, "media").Return(true, nil)
	api.On("RemoveObject", mock.Anything, "media", "a.png", mock.Anything).Return(errNoSuchKey)

	s, err := New(context.Background(), api, Config{Bucket: "media"})
	require.NoError(t, err)

	assert.NoError(t, s.Delete(context.Background(), "a.png"))
}

func TestCleanOldTempFiles(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	uploads := make(chan minio.ObjectMultipartInfo, 2)
	uploads <- minio.ObjectMultipartInfo{Key: "old.png", Initiated: now.Add(-3 * time.Hour)}
	uploads <- minio.ObjectMultipartInfo{Key: "new.png", Initiated: now.Add(-time.Minute)}
	close(uploads)

	api := new(mockAPI)
	api.On("BucketExists", mock.Anything, "media").Return(true, nil)
	api.On("ListIncompleteUploads", mock.Anything, "media", "", true).
		Return((<-chan minio.ObjectMultipartInfo)(uploads))
	api.On("RemoveIncompleteUpload", mock.Anything, "media", "old.png").Return(nil)

	s, err := New(context.Background(), api, Config{Bucket: "media"})
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	n, err := s.CleanOldTempFiles(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	api.AssertExpectations(t)
}
