package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSearchCountsByStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(searchRequests.WithLabelValues(ModeText, StatusOK))
	errBefore := testutil.ToFloat64(searchRequests.WithLabelValues(ModeText, StatusError))

	ObserveSearch(ModeText, time.Now(), nil)
	ObserveSearch(ModeText, time.Now(), errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(searchRequests.WithLabelValues(ModeText, StatusOK)))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(searchRequests.WithLabelValues(ModeText, StatusError)))
}

func TestObserveDownload(t *testing.T) {
	before := testutil.ToFloat64(imageDownloads.WithLabelValues(DownloadCached))
	ObserveDownload(DownloadCached)
	assert.Equal(t, before+1, testutil.ToFloat64(imageDownloads.WithLabelValues(DownloadCached)))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveImportRow(nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flora_import_rows_total")
}
