package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

const (
	milvusFieldID       = "id"
	milvusFieldDocument = "document"
	milvusFieldURI      = "uri"
	milvusFieldMetadata = "metadata"
	milvusFieldVector   = "vector"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address  string
	Username string
	Password string
	Database string
	Distance string
	UseTLS   bool
	Timeout  time.Duration
	Logger   *zap.Logger
}

// MilvusIndex 基于Milvus的向量索引，每个逻辑集合对应一个Milvus集合
type MilvusIndex struct {
	milvusClient client.Client
	distance     string
	logger       *zap.Logger

	mu         sync.Mutex
	dimensions map[string]int
}

// NewMilvusIndex 创建Milvus向量索引
func NewMilvusIndex(ctx context.Context, opts MilvusOptions) (*MilvusIndex, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Distance == "" {
		opts.Distance = "COSINE"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	milvusClient, err := client.NewClient(connectCtx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &MilvusIndex{
		milvusClient: milvusClient,
		distance:     formatMilvusDistance(opts.Distance),
		logger:       opts.Logger,
		dimensions:   make(map[string]int),
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "L2", "EUCLIDEAN":
		return "L2"
	default:
		return "COSINE"
	}
}

func (s *MilvusIndex) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if known, ok := s.dimensions[name]; ok {
		if known != dimensions {
			return fmt.Errorf("collection %s has %d dimensions, requested %d: %w", name, known, dimensions, ErrDimensionMismatch)
		}
		return nil
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !hasCollection {
		if err := s.createCollection(ctx, name, dimensions); err != nil {
			return err
		}
	}

	if err := s.milvusClient.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}

	s.dimensions[name] = dimensions
	return nil
}

func (s *MilvusIndex) createCollection(ctx context.Context, name string, dimensions int) error {
	schema := &entity.Schema{
		CollectionName: name,
		Description:    fmt.Sprintf("flora collection %s", name),
		Fields: []*entity.Field{
			{
				Name:       milvusFieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       milvusFieldDocument,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:       milvusFieldURI,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "2048"},
			},
			{
				Name:     milvusFieldMetadata,
				DataType: entity.FieldTypeJSON,
			},
			{
				Name:       milvusFieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dimensions)},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	var index entity.Index
	index, err := entity.NewIndexHNSW(entity.MetricType(s.distance), 8, 64)
	if err != nil {
		// HNSW参数不合法时退回IVF_FLAT
		index, err = entity.NewIndexIvfFlat(entity.MetricType(s.distance), 128)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.milvusClient.CreateIndex(ctx, name, milvusFieldVector, index, false); err != nil {
		return fmt.Errorf("failed to create index for collection %s: %w", name, err)
	}
	return nil
}

func (s *MilvusIndex) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	dims, ok := s.dimensions[collection]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("upsert into %s: %w", collection, ErrCollectionNotFound)
	}

	ids := make([]string, 0, len(docs))
	documents := make([]string, 0, len(docs))
	uris := make([]string, 0, len(docs))
	metadatas := make([][]byte, 0, len(docs))
	vectors := make([][]float32, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Vector) != dims {
			return fmt.Errorf("upsert %s into %s: got %d dimensions, want %d: %w",
				doc.ID, collection, len(doc.Vector), dims, ErrDimensionMismatch)
		}
		metadata := doc.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", doc.ID, err)
		}
		ids = append(ids, doc.ID)
		documents = append(documents, doc.Document)
		uris = append(uris, doc.URI)
		metadatas = append(metadatas, raw)
		vectors = append(vectors, doc.Vector)
	}

	_, err := s.milvusClient.Upsert(ctx, collection, "",
		entity.NewColumnVarChar(milvusFieldID, ids),
		entity.NewColumnVarChar(milvusFieldDocument, documents),
		entity.NewColumnVarChar(milvusFieldURI, uris),
		entity.NewColumnJSONBytes(milvusFieldMetadata, metadatas),
		entity.NewColumnFloatVector(milvusFieldVector, dims, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, collection, false); err != nil {
		// 刷新失败不影响写入
		s.logger.Warn("failed to flush milvus collection", zap.String("collection", collection), zap.Error(err))
	}
	return nil
}

func (s *MilvusIndex) Query(ctx context.Context, collection string, req QueryRequest) ([]Match, error) {
	if len(req.Vector) == 0 {
		return nil, nil
	}
	if req.K <= 0 {
		req.K = 10
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		collection,
		[]string{},
		filterExpr(req.Filter),
		[]string{milvusFieldDocument, milvusFieldURI, milvusFieldMetadata},
		[]entity.Vector{entity.FloatVector(req.Vector)},
		milvusFieldVector,
		entity.MetricType(s.distance),
		req.K,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []Match{}, nil
	}

	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []Match{}, nil
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}
	documents, uris, metadatas := decodeColumns(result.Fields)

	matches := make([]Match, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		m := Match{Metadata: map[string]any{}}
		if i < len(ids) {
			m.ID = ids[i]
		}
		if i < len(documents) {
			m.Document = documents[i]
		}
		if i < len(uris) {
			m.URI = uris[i]
		}
		if i < len(metadatas) && metadatas[i] != nil {
			m.Metadata = metadatas[i]
		}
		if i < len(result.Scores) {
			m.Score = float64(result.Scores[i])
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *MilvusIndex) Get(ctx context.Context, collection string, req GetRequest) ([]Document, error) {
	var clauses []string
	if len(req.IDs) > 0 {
		quoted := make([]string, len(req.IDs))
		for i, id := range req.IDs {
			quoted[i] = strconv.Quote(id)
		}
		clauses = append(clauses, fmt.Sprintf("%s in [%s]", milvusFieldID, strings.Join(quoted, ",")))
	}
	if expr := filterExpr(req.Filter); expr != "" {
		clauses = append(clauses, expr)
	}
	expr := strings.Join(clauses, " && ")
	if expr == "" {
		expr = fmt.Sprintf("%s != \"\"", milvusFieldID)
	}

	var opts []client.SearchQueryOptionFunc
	if req.Limit > 0 {
		opts = append(opts, client.WithLimit(int64(req.Limit)))
	}
	if req.Offset > 0 {
		opts = append(opts, client.WithOffset(int64(req.Offset)))
	}

	columns, err := s.milvusClient.Query(ctx, collection, []string{}, expr,
		[]string{milvusFieldID, milvusFieldDocument, milvusFieldURI, milvusFieldMetadata}, opts...)
	if err != nil {
		return nil, fmt.Errorf("milvus query failed: %w", err)
	}

	var ids []string
	for _, col := range columns {
		if col.Name() == milvusFieldID {
			if v, ok := col.(*entity.ColumnVarChar); ok {
				ids = v.Data()
			}
		}
	}
	documents, uris, metadatas := decodeColumns(columns)

	docs := make([]Document, 0, len(ids))
	for i, id := range ids {
		doc := Document{ID: id, Metadata: map[string]any{}}
		if i < len(documents) {
			doc.Document = documents[i]
		}
		if i < len(uris) {
			doc.URI = uris[i]
		}
		if i < len(metadatas) && metadatas[i] != nil {
			doc.Metadata = metadatas[i]
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *MilvusIndex) Count(ctx context.Context, collection string) (int, error) {
	stats, err := s.milvusClient.GetCollectionStatistics(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("milvus statistics failed: %w", err)
	}
	count, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("invalid row_count %q: %w", stats["row_count"], err)
	}
	return count, nil
}

func (s *MilvusIndex) DropCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	delete(s.dimensions, collection)
	s.mu.Unlock()

	if err := s.milvusClient.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("milvus drop collection failed: %w", err)
	}
	return nil
}

func (s *MilvusIndex) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

// Close 关闭Milvus连接
func (s *MilvusIndex) Close() error {
	return s.milvusClient.Close()
}

// filterExpr 将等值过滤编译为Milvus JSON字段表达式，键排序保证表达式稳定
func filterExpr(filter Filter) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s[%s] == %s", milvusFieldMetadata, strconv.Quote(k), strconv.Quote(filter[k])))
	}
	return strings.Join(clauses, " && ")
}

func decodeColumns(columns []entity.Column) (documents, uris []string, metadatas []map[string]any) {
	for _, col := range columns {
		switch col.Name() {
		case milvusFieldDocument:
			if v, ok := col.(*entity.ColumnVarChar); ok {
				documents = v.Data()
			}
		case milvusFieldURI:
			if v, ok := col.(*entity.ColumnVarChar); ok {
				uris = v.Data()
			}
		case milvusFieldMetadata:
			if v, ok := col.(*entity.ColumnJSONBytes); ok {
				for _, raw := range v.Data() {
					var metadata map[string]any
					if err := json.Unmarshal(raw, &metadata); err != nil {
						metadata = nil
					}
					metadatas = append(metadatas, metadata)
				}
			}
		}
	}
	return documents, uris, metadatas
}
