package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aihub/flora-search/internal/embedding"
	"github.com/aihub/flora-search/internal/fetcher"
	"github.com/aihub/flora-search/internal/flora"
	"github.com/aihub/flora-search/internal/index"
	"github.com/aihub/flora-search/internal/kafka"
	"github.com/aihub/flora-search/internal/search"
	"github.com/aihub/flora-search/internal/store"
)

const csvHeader = "botanical_name,family,url,common_name,description,image1_url,image2_url,image3_url,image4_url\n"

func intPtr(v int) *int { return &v }

func numberedRows(n int) []map[string]string {
	rows := make([]map[string]string, n)
	for i := range rows {
		rows[i] = map[string]string{"common_name": fmt.Sprintf("row%d", i)}
	}
	return rows
}

func TestSliceRows(t *testing.T) {
	rows := numberedRows(10)

	mid := SliceRows(rows, 2, intPtr(7))
	require.Len(t, mid, 5)
	assert.Equal(t, "row2", mid[0]["common_name"])
	assert.Equal(t, "row6", mid[4]["common_name"])

	tail := SliceRows(rows, 5, nil)
	require.Len(t, tail, 5)
	assert.Equal(t, "row5", tail[0]["common_name"])

	assert.Empty(t, SliceRows(rows, 12, nil))
	assert.Len(t, SliceRows(rows, 8, intPtr(50)), 2)
	assert.Empty(t, SliceRows(rows, 6, intPtr(3)))

	mid[0] = map[string]string{"common_name": "changed"}
	assert.Len(t, rows, 10)
	assert.Equal(t, "row2", rows[2]["common_name"])
}

func TestCSVSourceMapsHeader(t *testing.T) {
	src := NewCSVReader(strings.NewReader(csvHeader +
		"Rosa damascena,Rosaceae,http://x,Damask Rose,\"Fragrant, pink\",,,,\n"))
	rows, err := src.ReadRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Damask Rose", rows[0]["common_name"])
	assert.Equal(t, "Fragrant, pink", rows[0]["description"])
	assert.Equal(t, "", rows[0]["image1_url"])
}

func pngBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type recordingPublisher struct {
	events []kafka.FloraImported
}

func (p *recordingPublisher) PublishImported(ctx context.Context, event kafka.FloraImported) error {
	p.events = append(p.events, event)
	return nil
}

func TestImportEndToEnd(t *testing.T) {
	red := pngBytes(t, color.RGBA{R: 220, A: 255})
	yellow := pngBytes(t, color.RGBA{R: 230, G: 220, A: 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rose.png":
			w.Write(red)
		case "/primula.png":
			w.Write(yellow)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	csvData := csvHeader +
		fmt.Sprintf("Rosa webbiana,Rosaceae,http://example.org/rose,Wild Rose,Pink rose of dry slopes,%s/rose.png,%s/gone.png,,\n", srv.URL, srv.URL) +
		fmt.Sprintf("Primula sikkimensis,Primulaceae,http://example.org/primula,Sikkim Cowslip,Yellow bells by streams,%s/primula.png,,%s/gone2.png,\n", srv.URL, srv.URL)

	ctx := context.Background()
	idx := index.NewMemoryIndex()
	st, err := store.New(ctx, idx, embedding.NewHashingEmbedder(128), embedding.NewHistogramEmbedder(), store.Options{})
	require.NoError(t, err)
	imgs, err := fetcher.New(fetcher.Options{Dir: t.TempDir()})
	require.NoError(t, err)

	events := &recordingPublisher{}
	var progress []string
	importer := NewImporter(st, imgs, Options{
		Events: events,
		OnRow:  func(row int, f flora.Flower) { progress = append(progress, fmt.Sprintf("%d:%s", row, f.CommonName)) },
	})

	report, err := importer.Import(ctx, NewCSVReader(strings.NewReader(csvData)), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Processed: 2}, report)
	assert.Equal(t, 2, report.Added())
	assert.Equal(t, []string{"0:Wild Rose", "1:Sikkim Cowslip"}, progress)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Text: 2, Images: 2}, stats)

	require.Len(t, events.events, 2)
	assert.Len(t, events.events[0].ImageIDs, 1)

	results, err := search.NewEngine(st, nil, nil).Search(ctx, search.Query{Text: "rose", K: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byName := map[string]flora.Flower{}
	for _, f := range results {
		byName[f.CommonName] = f
	}
	rose := byName["Wild Rose"]
	assert.Equal(t, "Rosa webbiana", rose.BotanicalName)
	assert.Equal(t, "Rosaceae", rose.Family)
	assert.Equal(t, "Pink rose of dry slopes", rose.Description)
	assert.Equal(t, srv.URL+"/rose.png", rose.Image1URL)
	assert.Equal(t, imgs.Path("wild_rose_img1"), rose.Image1LocalURI)
	assert.Empty(t, rose.Image2LocalURI)

	cowslip := byName["Sikkim Cowslip"]
	assert.Equal(t, imgs.Path("sikkim_cowslip_img1"), cowslip.Image1LocalURI)
	assert.Empty(t, cowslip.Image3LocalURI)

	imageResults, err := search.NewEngine(st, nil, nil).Search(ctx, search.Query{Image: red, K: 2})
	require.NoError(t, err)
	require.NotEmpty(t, imageResults)
	assert.Equal(t, "Wild Rose", imageResults[0].CommonName)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) AddTextDocument(ctx context.Context, id, text string, metadata map[string]any) error {
	return m.Called(ctx, id, text, metadata).Error(0)
}

func (m *mockWriter) AddImageDocumentsBatch(ctx context.Context, ids, uris []string, metadatas []map[string]any) error {
	return m.Called(ctx, ids, uris, metadatas).Error(0)
}

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, url, key string) (string, error) {
	return "/cache/" + key + ".jpg", nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestImportTextFailureSkipsImagesOnly(t *testing.T) {
	writer := &mockWriter{}
	writer.On("AddTextDocument", mock.Anything, "id-1", mock.Anything, mock.Anything).Return(errors.New("rejected"))
	writer.On("AddTextDocument", mock.Anything, "id-2", mock.Anything, mock.Anything).Return(nil)
	writer.On("AddImageDocumentsBatch", mock.Anything, []string{"id-3"}, []string{"/cache/b_img1.jpg"},
		[]map[string]any{{flora.KeyFloraID: "id-2"}}).Return(nil)

	importer := NewImporter(writer, stubFetcher{}, Options{NewID: sequentialIDs()})
	csvData := csvHeader + "A,F,,a,,http://x/a,,,\n" + "B,F,,b,,http://x/b,,,\n"

	report, err := importer.Import(context.Background(), NewCSVReader(strings.NewReader(csvData)), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Processed: 2, Failed: 1}, report)
	writer.AssertExpectations(t)
	writer.AssertNumberOfCalls(t, "AddImageDocumentsBatch", 1)
}

func TestImportImageFailureStillCountsRow(t *testing.T) {
	writer := &mockWriter{}
	writer.On("AddTextDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	writer.On("AddImageDocumentsBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("embed failed"))

	importer := NewImporter(writer, stubFetcher{}, Options{NewID: sequentialIDs()})
	csvData := csvHeader + "A,F,,a,,http://x/a,http://x/a2,,\n"

	report, err := importer.Import(context.Background(), NewCSVReader(strings.NewReader(csvData)), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Processed: 1, ImageFailures: 1}, report)
}

func TestImportRespectsRangeAndCancellation(t *testing.T) {
	writer := &mockWriter{}
	writer.On("AddTextDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var seen []int
	importer := NewImporter(writer, stubFetcher{}, Options{OnRow: func(row int, f flora.Flower) { seen = append(seen, row) }})
	csvData := csvHeader + "A,F,,a,,,,,\nB,F,,b,,,,,\nC,F,,c,,,,,\nD,F,,d,,,,,\n"

	report, err := importer.Import(context.Background(), NewCSVReader(strings.NewReader(csvData)), 1, intPtr(3))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, []int{1, 2}, seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err = importer.Import(ctx, NewCSVReader(strings.NewReader(csvData)), 0, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Processed)
}
