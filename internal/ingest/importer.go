// Package ingest 将花卉目录导入双集合存储
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aihub/flora-search/internal/fetcher"
	"github.com/aihub/flora-search/internal/flora"
	"github.com/aihub/flora-search/internal/kafka"
	"github.com/aihub/flora-search/internal/metrics"
)

// Writer 导入所需的存储写操作
type Writer interface {
	AddTextDocument(ctx context.Context, id, text string, metadata map[string]any) error
	AddImageDocumentsBatch(ctx context.Context, ids, uris []string, metadatas []map[string]any) error
}

// Fetcher 图片下载
type Fetcher interface {
	Fetch(ctx context.Context, url, key string) (string, error)
}

// EventPublisher 导入事件发布
type EventPublisher interface {
	PublishImported(ctx context.Context, event kafka.FloraImported) error
}

// Report 导入统计
type Report struct {
	Processed     int `json:"processed"`
	Failed        int `json:"failed"`
	ImageFailures int `json:"image_failures"`
}

// Added 成功写入文本集合的行数
func (r Report) Added() int {
	return r.Processed - r.Failed
}

// Options 导入器可选项
type Options struct {
	Events EventPublisher
	Logger *zap.Logger
	// OnRow 每行处理完回调，row为原始行号
	OnRow func(row int, f flora.Flower)
	NewID func() string
}

// Importer 目录导入器
type Importer struct {
	writer  Writer
	fetcher Fetcher
	events  EventPublisher
	logger  *zap.Logger
	onRow   func(int, flora.Flower)
	newID   func() string
}

// NewImporter 创建导入器
func NewImporter(writer Writer, fetch Fetcher, opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Importer{
		writer:  writer,
		fetcher: fetch,
		events:  opts.Events,
		logger:  opts.Logger,
		onRow:   opts.OnRow,
		newID:   opts.NewID,
	}
}

// Import 按顺序处理[start, end)范围内的行
func (im *Importer) Import(ctx context.Context, source RowSource, start int, end *int) (Report, error) {
	var report Report

	rows, err := source.ReadRows(ctx)
	if err != nil {
		return report, err
	}
	rows = SliceRows(rows, start, end)
	if start < 0 {
		start = 0
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		im.importRow(ctx, start+i, row, &report)
	}
	return report, nil
}

func (im *Importer) importRow(ctx context.Context, rowNum int, row map[string]string, report *Report) {
	f := flora.FromRow(row)
	log := im.logger.With(zap.Int("row", rowNum), zap.String("common_name", f.CommonName))
	if missing := f.MissingRequired(); len(missing) > 0 {
		log.Warn("Row is missing required fields", zap.Strings("fields", missing))
	}

	localURIs := im.fetchImages(ctx, log, f)

	textID := im.newID()
	err := im.writer.AddTextDocument(ctx, textID, flora.JoinTextFields(f), f.Metadata(localURIs))
	report.Processed++
	metrics.ObserveImportRow(err)
	if err != nil {
		report.Failed++
		log.Error("Failed to write text document, skipping row", zap.Error(err))
		return
	}

	imageIDs := im.writeImages(ctx, log, textID, localURIs, report)

	log.Info("Processed", zap.String("flora_id", textID), zap.Int("images", len(imageIDs)))
	if im.onRow != nil {
		im.onRow(rowNum, f)
	}

	if im.events != nil {
		event := kafka.FloraImported{
			FloraID:    textID,
			CommonName: f.CommonName,
			ImageIDs:   imageIDs,
			Timestamp:  time.Now(),
		}
		if err := im.events.PublishImported(ctx, event); err != nil {
			log.Warn("Failed to publish import event", zap.Error(err))
		}
	}
}

// fetchImages 下载失败的槽位直接跳过
func (im *Importer) fetchImages(ctx context.Context, log *zap.Logger, f flora.Flower) map[string]string {
	localURIs := make(map[string]string, flora.MaxImages)
	for i, url := range f.ImageURLs() {
		if url == "" {
			continue
		}
		slot := i + 1
		path, err := im.fetcher.Fetch(ctx, url, flora.SafeFilename(f.CommonName, slot))
		if err != nil {
			if !errors.Is(err, fetcher.ErrEmptyURL) {
				log.Warn("Image unavailable", zap.Int("slot", slot), zap.Error(err))
			}
			continue
		}
		localURIs[flora.LocalURIKey(slot)] = path
	}
	return localURIs
}

func (im *Importer) writeImages(ctx context.Context, log *zap.Logger, textID string, localURIs map[string]string, report *Report) []string {
	var ids, uris []string
	var metadatas []map[string]any
	for slot := 1; slot <= flora.MaxImages; slot++ {
		uri, ok := localURIs[flora.LocalURIKey(slot)]
		if !ok {
			continue
		}
		ids = append(ids, im.newID())
		uris = append(uris, uri)
		metadatas = append(metadatas, map[string]any{flora.KeyFloraID: textID})
	}
	if len(ids) == 0 {
		return nil
	}

	if err := im.writer.AddImageDocumentsBatch(ctx, ids, uris, metadatas); err != nil {
		report.ImageFailures++
		log.Error("Failed to write image documents", zap.Int("count", len(ids)), zap.Error(err))
		return nil
	}
	return ids
}
