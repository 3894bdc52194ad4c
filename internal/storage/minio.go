package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const imageContentType = "image/jpeg"

// MinIOOptions MinIO镜像配置
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
	Logger    *zap.Logger
}

// MinIOMirror 将本地缓存的花卉图片镜像到对象存储
type MinIOMirror struct {
	client *minio.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewMinIOMirror 创建MinIO镜像并确保bucket存在
func NewMinIOMirror(ctx context.Context, opts MinIOOptions) (*MinIOMirror, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}
	if opts.Bucket == "" {
		opts.Bucket = "flora-images"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	// minio.New 不需要协议前缀
	endpoint := strings.TrimPrefix(opts.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	m := &MinIOMirror{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		logger: opts.Logger,
	}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIOMirror) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var exists bool
	var err error
	for i := 0; i < 3; i++ {
		exists, err = m.client.BucketExists(ctx, m.bucket)
		if err == nil {
			break
		}
		wait := time.Second * time.Duration((i+1)*2)
		m.logger.Warn("MinIO bucket check failed, retrying",
			zap.Int("attempt", i+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("check bucket %s: %w", m.bucket, ctx.Err())
		case <-time.After(wait):
		}
	}
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyExists" || code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("Created MinIO bucket", zap.String("bucket", m.bucket))
	return nil
}

// ObjectName 拼接前缀后的对象名
func (m *MinIOMirror) ObjectName(key string) string {
	return objectName(m.prefix, key)
}

func objectName(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if !strings.HasSuffix(key, ".jpg") {
		key += ".jpg"
	}
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// Mirror 上传本地图片
func (m *MinIOMirror) Mirror(ctx context.Context, localPath, key string) error {
	_, err := m.client.FPutObject(ctx, m.bucket, m.ObjectName(key), localPath, minio.PutObjectOptions{
		ContentType: imageContentType,
	})
	if err != nil {
		return fmt.Errorf("mirror %s: %w", key, err)
	}
	return nil
}

// Restore 本地缺失时从对象存储取回，不存在返回false
func (m *MinIOMirror) Restore(ctx context.Context, key, localPath string) (bool, error) {
	object := m.ObjectName(key)
	if _, err := m.client.StatObject(ctx, m.bucket, object, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", object, err)
	}
	if err := m.client.FGetObject(ctx, m.bucket, object, localPath, minio.GetObjectOptions{}); err != nil {
		return false, fmt.Errorf("restore %s: %w", object, err)
	}
	return true, nil
}

// HealthCheck 执行健康检查
func (m *MinIOMirror) HealthCheck(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}
