// Package metrics 检索与导入流程的Prometheus指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 标签取值
const (
	ModeText  = "text"
	ModeImage = "image"

	StatusOK    = "ok"
	StatusError = "error"

	DownloadFetched = "fetched"
	DownloadCached  = "cached"
	DownloadSkipped = "skipped"
	DownloadFailed  = "failed"
)

var (
	searchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flora_search_requests_total",
			Help: "Total number of flower searches",
		},
		[]string{"mode", "status"},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flora_search_duration_seconds",
			Help:    "Duration of flower searches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	importRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flora_import_rows_total",
			Help: "Total number of imported catalogue rows",
		},
		[]string{"status"},
	)

	imageDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flora_image_downloads_total",
			Help: "Image fetch outcomes during import",
		},
		[]string{"result"},
	)
)

// ObserveSearch 记录一次检索
func ObserveSearch(mode string, started time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	searchRequests.WithLabelValues(mode, status).Inc()
	searchDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

// ObserveImportRow 记录一行导入结果
func ObserveImportRow(err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	importRows.WithLabelValues(status).Inc()
}

// ObserveDownload 记录图片下载结果
func ObserveDownload(result string) {
	imageDownloads.WithLabelValues(result).Inc()
}

// Handler 返回Prometheus指标的HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
