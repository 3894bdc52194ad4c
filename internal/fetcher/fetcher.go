// Package fetcher 下载花卉图片到本地缓存目录
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aihub/flora-search/internal/metrics"
)

// DefaultTimeout 单次下载超时
const DefaultTimeout = 30 * time.Second

var (
	// ErrEmptyURL 空URL不发起请求
	ErrEmptyURL = errors.New("image url is empty")
	// ErrNotCached 仅缓存模式下本地无文件
	ErrNotCached = errors.New("image not in local cache")
)

// FetchError 下载失败
type FetchError struct {
	URL   string
	Key   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Key, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Mirror 对象存储镜像
type Mirror interface {
	Mirror(ctx context.Context, localPath, key string) error
	Restore(ctx context.Context, key, localPath string) (bool, error)
}

// Options 下载器配置
type Options struct {
	Dir        string
	CacheOnly  bool
	Timeout    time.Duration
	HTTPClient *http.Client
	Mirror     Mirror
	Logger     *zap.Logger
}

// ImageFetcher 带本地缓存的图片下载器
type ImageFetcher struct {
	dir       string
	cacheOnly bool
	client    *http.Client
	mirror    Mirror
	logger    *zap.Logger
}

// New 创建下载器，目标目录不存在时创建
func New(opts Options) (*ImageFetcher, error) {
	if opts.Dir == "" {
		opts.Dir = "img"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", opts.Dir, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ImageFetcher{
		dir:       opts.Dir,
		cacheOnly: opts.CacheOnly,
		client:    client,
		mirror:    opts.Mirror,
		logger:    opts.Logger,
	}, nil
}

// Dir 缓存目录
func (f *ImageFetcher) Dir() string {
	return f.dir
}

// Path 缓存键对应的本地路径
func (f *ImageFetcher) Path(key string) string {
	return filepath.Join(f.dir, key+".jpg")
}

// Fetch 返回图片的本地路径，已缓存时不发起请求
func (f *ImageFetcher) Fetch(ctx context.Context, url, key string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		metrics.ObserveDownload(metrics.DownloadSkipped)
		return "", &FetchError{URL: url, Key: key, Cause: ErrEmptyURL}
	}

	path := f.Path(key)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		metrics.ObserveDownload(metrics.DownloadCached)
		return path, nil
	}

	if f.mirror != nil {
		restored, err := f.mirror.Restore(ctx, key, path)
		if err != nil {
			f.logger.Warn("Failed to restore image from mirror", zap.String("key", key), zap.Error(err))
		} else if restored {
			metrics.ObserveDownload(metrics.DownloadCached)
			return path, nil
		}
	}

	if f.cacheOnly {
		metrics.ObserveDownload(metrics.DownloadSkipped)
		return "", &FetchError{URL: url, Key: key, Cause: ErrNotCached}
	}

	if err := f.download(ctx, url, path); err != nil {
		metrics.ObserveDownload(metrics.DownloadFailed)
		f.logger.Warn("Failed to download image",
			zap.String("url", url),
			zap.String("key", key),
			zap.Error(err))
		return "", &FetchError{URL: url, Key: key, Cause: err}
	}
	metrics.ObserveDownload(metrics.DownloadFetched)

	if f.mirror != nil {
		if err := f.mirror.Mirror(ctx, path, key); err != nil {
			f.logger.Warn("Failed to mirror image", zap.String("key", key), zap.Error(err))
		}
	}
	return path, nil
}

func (f *ImageFetcher) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// 先写临时文件再改名，避免半截文件进入缓存
	tmp, err := os.CreateTemp(f.dir, ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
