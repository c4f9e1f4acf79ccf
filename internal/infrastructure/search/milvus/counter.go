package milvus

import (
	"context"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/domain/similarity"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Collection field names.
const (
	fieldID     = "id"
	fieldKey    = "synthon_key"
	fieldVector = "vector"
)

const (
	insertBatchSize  = 1000
	indexNList       = 128
	searchNProbe     = 64
	maxPrefilterHits = 16384
	collectionShards = 2
)

// Counter implements similarity.Counter on top of a Milvus collection.
//
// The moment metric maps the mean absolute difference d to 1/(1+d), so a
// similarity of at least t is equivalent to an L1 distance of at most
// dim*(1-t)/t.  Because L2 never exceeds L1, a range search with that radius
// returns a superset of the true neighbors; candidates are then rescored
// exactly against the in-memory library.  The Tversky metric admits no such
// distance bound, so the backend rejects it at construction.
type Counter struct {
	client     *Client
	collection string
	metric     similarity.MomentDistance
	opts       similarity.Options
	log        logging.Logger
}

// NewCounter builds the accelerated backend.
func NewCounter(c *Client, cfg config.MilvusConfig, metric similarity.Metric, opts similarity.Options, log logging.Logger) (*Counter, error) {
	md, ok := metric.(similarity.MomentDistance)
	if !ok {
		return nil, errors.Newf(errors.CodeBackendUnknown,
			"milvus backend requires the %q metric, got %q", similarity.MetricMoment, metric.Name())
	}
	collection := cfg.Collection
	if collection == "" {
		return nil, errors.New(errors.CodeInvalidParam, "milvus collection name is empty")
	}
	return &Counter{
		client:     c,
		collection: collection,
		metric:     md,
		opts:       opts,
		log:        log.Named("milvus_counter"),
	}, nil
}

// SyncLibrary rebuilds the collection from lib.  Any previous contents are
// dropped; the collection is indexed and loaded before returning.
func (c *Counter) SyncLibrary(ctx context.Context, lib *library.Library) error {
	mc := c.client.Raw()

	has, err := mc.HasCollection(ctx, c.collection)
	if err != nil {
		return errors.Wrap(err, errors.CodeSearchFailed, "check collection existence")
	}
	if has {
		if err := mc.DropCollection(ctx, c.collection); err != nil {
			return errors.Wrap(err, errors.CodeSearchFailed, "drop stale collection")
		}
	}

	schema := &entity.Schema{
		CollectionName: c.collection,
		Description:    "reference synthon descriptor vectors",
		Fields: []*entity.Field{
			{Name: fieldID, DataType: entity.FieldTypeInt64, PrimaryKey: true, AutoID: true},
			{Name: fieldKey, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "1024"}},
			{Name: fieldVector, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": strconv.Itoa(lib.Dim())}},
		},
	}
	if err := mc.CreateCollection(ctx, schema, collectionShards); err != nil {
		return errors.Wrap(err, errors.CodeSearchFailed, "create collection")
	}

	entries := lib.Entries()
	for start := 0; start < len(entries); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		keys := make([]string, len(batch))
		vectors := make([][]float32, len(batch))
		for i, e := range batch {
			keys[i] = e.Key
			vectors[i] = toFloat32(e.Vector)
		}
		_, err := mc.Insert(ctx, c.collection, "",
			entity.NewColumnVarChar(fieldKey, keys),
			entity.NewColumnFloatVector(fieldVector, lib.Dim(), vectors))
		if err != nil {
			return errors.Wrap(err, errors.CodeSearchFailed, "insert library entries")
		}
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, indexNList)
	if err != nil {
		return errors.Wrap(err, errors.CodeSearchFailed, "build index definition")
	}
	if err := mc.CreateIndex(ctx, c.collection, fieldVector, idx, false); err != nil {
		return errors.Wrap(err, errors.CodeSearchFailed, "create vector index")
	}
	if err := mc.Flush(ctx, c.collection, false); err != nil {
		return errors.Wrap(err, errors.CodeSearchFailed, "flush collection")
	}
	if err := mc.LoadCollection(ctx, c.collection, false); err != nil {
		return errors.Wrap(err, errors.CodeSearchFailed, "load collection")
	}

	c.log.Info("library synced",
		logging.String("collection", c.collection),
		logging.Int("entries", lib.Len()),
		logging.Int("dim", lib.Dim()))
	return nil
}

// NeighborTallies implements similarity.Counter.
func (c *Counter) NeighborTallies(ctx context.Context, queries [][]float64, lib *library.Library) ([]float64, error) {
	for qi, q := range queries {
		if len(q) != lib.Dim() {
			return nil, errors.Newf(errors.CodeVectorDimMismatch,
				"query %d has dim %d, library dim %d", qi, len(q), lib.Dim())
		}
	}
	out := make([]float64, len(queries))
	if len(queries) == 0 || lib.Len() == 0 {
		return out, nil
	}

	threshold := c.opts.Threshold
	if threshold == 0 {
		threshold = similarity.DefaultThreshold
	}

	// Milvus reports squared L2 distances, so the radius is the squared L1
	// bound implied by the threshold.  The slack absorbs float32 rounding in
	// the stored vectors.
	l1Bound := float64(lib.Dim()) * (1 - threshold) / threshold
	radius := l1Bound * l1Bound * 1.01

	topK := lib.Len()
	if topK > maxPrefilterHits {
		topK = maxPrefilterHits
		c.log.Warn("prefilter capped below library size",
			logging.Int("cap", maxPrefilterHits),
			logging.Int("library", lib.Len()))
	}

	vectors := make([]entity.Vector, len(queries))
	for i, q := range queries {
		vectors[i] = entity.FloatVector(toFloat32(q))
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(searchNProbe)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSearchFailed, "build search params")
	}
	sp.AddRadius(radius)

	results, err := c.client.Raw().Search(ctx, c.collection, nil, "",
		[]string{fieldKey}, vectors, fieldVector, entity.L2, topK, sp)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSearchFailed, "range search")
	}
	if len(results) != len(queries) {
		return nil, errors.Newf(errors.CodeSearchFailed,
			"got %d result sets for %d queries", len(results), len(queries))
	}

	for qi, res := range results {
		col := res.Fields.GetColumn(fieldKey)
		keyCol, ok := col.(*entity.ColumnVarChar)
		if !ok {
			return nil, errors.Newf(errors.CodeSearchFailed, "unexpected %s column type", fieldKey)
		}
		out[qi] = c.rescore(queries[qi], keyCol.Data(), lib, threshold)
	}
	return out, nil
}

// rescore applies the exact metric to the prefiltered candidates, using the
// library's float64 vectors and tallies rather than the float32 copies held
// by Milvus.
func (c *Counter) rescore(query []float64, keys []string, lib *library.Library, threshold float64) float64 {
	total := 0.0
	for _, key := range keys {
		e, ok := lib.Get(key)
		if !ok {
			c.log.Warn("collection entry missing from library", logging.String("key", key))
			continue
		}
		if c.opts.ExcludeIdentical && vectorsEqual(query, e.Vector) {
			continue
		}
		if c.metric.Similarity(query, e.Vector) >= threshold {
			total += e.Tally
		}
	}
	return total
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func vectorsEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
