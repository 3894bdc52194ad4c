// Package cache 检索结果缓存
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/aihub/flora-search/internal/flora"
)

// 缓存键前缀
const (
	KeyPrefix      = "flora:search:"
	textKeyPrefix  = KeyPrefix + "text:"
	imageKeyPrefix = KeyPrefix + "img:"
)

// ResultCache 检索结果缓存，未命中与出错都视为miss
type ResultCache interface {
	Get(ctx context.Context, key string) ([]flora.Flower, bool)
	Set(ctx context.Context, key string, flowers []flora.Flower)
	Invalidate(ctx context.Context) error
}

// TextKey 文本检索缓存键
func TextKey(text string, k int, filter map[string]string) string {
	return textKeyPrefix + digest([]byte(text), k, filter)
}

// ImageKey 以图搜图缓存键
func ImageKey(payload []byte, k int, filter map[string]string) string {
	return imageKeyPrefix + digest(payload, k, filter)
}

func digest(payload []byte, k int, filter map[string]string) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k)))

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		h.Write([]byte{0})
		h.Write([]byte(key))
		h.Write([]byte{'='})
		h.Write([]byte(filter[key]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NoopCache 不缓存
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string) ([]flora.Flower, bool) { return nil, false }
func (NoopCache) Set(ctx context.Context, key string, flowers []flora.Flower) {}
func (NoopCache) Invalidate(ctx context.Context) error                     { return nil }
