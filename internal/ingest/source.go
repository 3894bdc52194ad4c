package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// RowSource 提供按表头映射的目录行
type RowSource interface {
	ReadRows(ctx context.Context) ([]map[string]string, error)
}

// CSVSource 从CSV读取，第一行为表头
type CSVSource struct {
	open func() (io.ReadCloser, error)
	name string
}

// NewCSVFile 从文件读取
func NewCSVFile(path string) *CSVSource {
	return &CSVSource{
		name: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// NewCSVReader 从任意Reader读取
func NewCSVReader(r io.Reader) *CSVSource {
	return &CSVSource{
		name: "reader",
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

func (s *CSVSource) ReadRows(ctx context.Context) ([]map[string]string, error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.name, err)
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", s.name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.name, err)
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(record) {
				row[key] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SliceRows 返回rows[start:end]的副本，越界时截断，end为nil表示到末尾
func SliceRows(rows []map[string]string, start int, end *int) []map[string]string {
	if start < 0 {
		start = 0
	}
	if start > len(rows) {
		start = len(rows)
	}
	stop := len(rows)
	if end != nil && *end < stop {
		stop = *end
	}
	if stop < start {
		stop = start
	}
	out := make([]map[string]string, stop-start)
	copy(out, rows[start:stop])
	return out
}
