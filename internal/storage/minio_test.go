package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBucket = "flora-images"

// s3Stub 最小化的S3服务端，只支持本包用到的请求
type s3Stub struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    map[string]string
	deny    bool
}

func newS3Stub() *s3Stub {
	return &s3Stub{objects: make(map[string][]byte), puts: make(map[string]string)}
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, object, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != testBucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if object == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if s.deny {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		s.puts[object] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		data, ok := s.objects[object]
		if !ok {
			w.Header().Set("x-minio-error-code", "NoSuchKey")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Type", imageContentType)
		w.Header().Set("ETag", `"5d41402abc4b2a76b9719d911017c592"`)
		w.Header().Set("Last-Modified", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestMirror(t *testing.T, stub *s3Stub, prefix string) *MinIOMirror {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	mirror, err := NewMinIOMirror(context.Background(), MinIOOptions{
		Endpoint:  server.URL,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    testBucket,
		Region:    "us-east-1",
		Prefix:    prefix,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return mirror
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "rose_img1", "rose_img1.jpg"},
		{"", "rose_img1.jpg", "rose_img1.jpg"},
		{"flora", "rose_img1", "flora/rose_img1.jpg"},
		{"flora", "/rose_img1.jpg", "flora/rose_img1.jpg"},
		{"flora/raw", "blue_poppy_img4", "flora/raw/blue_poppy_img4.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, objectName(tt.prefix, tt.key), "prefix=%q key=%q", tt.prefix, tt.key)
	}
}

func TestNewMinIOMirrorTrimsPrefix(t *testing.T) {
	mirror := newTestMirror(t, newS3Stub(), "/flora/")
	assert.Equal(t, "flora/rose_img1.jpg", mirror.ObjectName("rose_img1"))
}

func TestNewMinIOMirrorRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOMirror(context.Background(), MinIOOptions{})
	assert.Error(t, err)
}

func TestMirrorUploadsImage(t *testing.T) {
	stub := newS3Stub()
	mirror := newTestMirror(t, stub, "flora")

	local := filepath.Join(t.TempDir(), "rose_img1.jpg")
	require.NoError(t, os.WriteFile(local, []byte("jpeg bytes"), 0o644))

	require.NoError(t, mirror.Mirror(context.Background(), local, "rose_img1"))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Contains(t, stub.puts, "flora/rose_img1.jpg")
	assert.Equal(t, imageContentType, stub.puts["flora/rose_img1.jpg"])
}

func TestRestoreMissingObject(t *testing.T) {
	mirror := newTestMirror(t, newS3Stub(), "")
	local := filepath.Join(t.TempDir(), "rose_img1.jpg")

	restored, err := mirror.Restore(context.Background(), "rose_img1", local)

	require.NoError(t, err)
	assert.False(t, restored)
	assert.NoFileExists(t, local)
}

func TestRestoreExistingObject(t *testing.T) {
	stub := newS3Stub()
	stub.objects["flora/rose_img1.jpg"] = []byte("hello")
	mirror := newTestMirror(t, stub, "flora")
	local := filepath.Join(t.TempDir(), "rose_img1.jpg")

	restored, err := mirror.Restore(context.Background(), "rose_img1", local)

	require.NoError(t, err)
	assert.True(t, restored)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRestoreStatFailure(t *testing.T) {
	stub := newS3Stub()
	mirror := newTestMirror(t, stub, "")
	stub.mu.Lock()
	stub.deny = true
	stub.mu.Unlock()

	restored, err := mirror.Restore(context.Background(), "rose_img1", filepath.Join(t.TempDir(), "x.jpg"))

	assert.Error(t, err)
	assert.False(t, restored)
}

func TestHealthCheck(t *testing.T) {
	mirror := newTestMirror(t, newS3Stub(), "")
	assert.NoError(t, mirror.HealthCheck(context.Background()))
}
