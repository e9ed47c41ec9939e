package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"morph/internal/contextutil"
)

// docIDKey is the payload field holding the caller's point id. Qdrant only
// accepts UUID or integer ids, so ids are mapped to name-based UUIDs.
const docIDKey = "doc_id"

// Qdrant implements Index using a Qdrant server.
type Qdrant struct {
	client *qdrant.Client
}

// NewQdrant creates a new Qdrant index client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port is derived from the HTTP port.
func NewQdrant(urlStr string) (*Qdrant, error) {
	host, port, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &Qdrant{client: client}, nil
}

// grpcAddress derives the gRPC host and port from the HTTP URL. The gRPC
// port is the HTTP port + 1, or 6334 when the URL has no port.
func grpcAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// pointID maps an arbitrary id onto a stable UUID.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// Ensure creates the collection with cosine distance and the HNSW graph
// parameters of c. An existing collection must have the same vector size.
func (s *Qdrant) Ensure(ctx context.Context, c Collection) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.client.CollectionExists(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", c.Name, "vector_size", c.Dimensions, "m", c.M, "ef_construction", c.EfConstruction)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
			HnswConfig: hnswConfig(c),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	if size := vectorSize(info); size != c.Dimensions {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", c.Dimensions, size)
	}

	logger.InfoContext(ctx, "collection validated", "collection", c.Name, "vector_size", c.Dimensions)
	return nil
}

func hnswConfig(c Collection) *qdrant.HnswConfigDiff {
	if c.M <= 0 && c.EfConstruction <= 0 {
		return nil
	}
	cfg := &qdrant.HnswConfigDiff{}
	if c.M > 0 {
		cfg.M = qdrant.PtrOf(uint64(c.M))
	}
	if c.EfConstruction > 0 {
		cfg.EfConstruct = qdrant.PtrOf(uint64(c.EfConstruction))
	}
	return cfg
}

func vectorSize(info *qdrant.CollectionInfo) int {
	if info == nil || info.Config == nil || info.Config.Params == nil {
		return 0
	}
	vectorsConfig := info.Config.Params.GetVectorsConfig()
	if vectorsConfig == nil || vectorsConfig.GetParams() == nil {
		return 0
	}
	return int(vectorsConfig.GetParams().Size)
}

// Upsert inserts or updates points in the collection.
func (s *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		payload := make(map[string]any, len(point.Meta)+1)
		for k, v := range point.Meta {
			payload[k] = v
		}
		payload[docIDKey] = point.ID

		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      pointID(point.ID),
			Vectors: qdrant.NewVectors(point.Vec...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search performs a similarity search. Filters match payload fields by
// keyword equality.
func (s *Qdrant) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	limit := uint64(k)
	queryReq := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFilter(filters),
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, result := range scoredPoints {
		meta := map[string]any{}
		if result.Payload != nil {
			meta = convertPayloadToMap(result.Payload)
		}
		id, _ := meta[docIDKey].(string)
		delete(meta, docIDKey)
		if id == "" && result.Id != nil {
			id = result.Id.GetUuid()
		}

		results = append(results, SearchResult{
			ID:    id,
			Score: result.Score,
			Meta:  meta,
		})
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

func buildFilter(filters map[string]any) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filters))
	for k, v := range filters {
		switch val := v.(type) {
		case int:
			must = append(must, qdrant.NewMatchInt(k, int64(val)))
		case int64:
			must = append(must, qdrant.NewMatchInt(k, val))
		case bool:
			must = append(must, qdrant.NewMatchBool(k, val))
		default:
			must = append(must, qdrant.NewMatch(k, fmt.Sprint(val)))
		}
	}
	return &qdrant.Filter{Must: must}
}

// Delete removes points by their IDs.
func (s *Qdrant) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, pointID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.DebugContext(ctx, "deleted points", "collection", collection, "count", len(ids))
	return nil
}

// Close closes the underlying gRPC connection.
func (s *Qdrant) Close() error {
	return s.client.Close()
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
