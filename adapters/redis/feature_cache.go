// Package redis caches computed feature tables in Redis, snappy-compressed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"demandcast/domain/core"
	"demandcast/domain/features"
	"demandcast/domain/series"
	"demandcast/internal/observability"
	"demandcast/ports"
)

const defaultKeyPrefix = "demandcast:features:"

// FeatureCache implements ports.FeatureCache.
type FeatureCache struct {
	client    *goredis.Client
	keyPrefix string
	metrics   *observability.Metrics
	log       logrus.FieldLogger
}

var _ ports.FeatureCache = (*FeatureCache)(nil)

// NewFeatureCache creates a cache over client. metrics may be nil.
func NewFeatureCache(client *goredis.Client, metrics *observability.Metrics, log logrus.FieldLogger) *FeatureCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FeatureCache{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		metrics:   metrics,
		log:       log.WithField("component", "feature_cache"),
	}
}

// Get returns the cached result for key, or nil on a miss.
func (c *FeatureCache) Get(ctx context.Context, key string) (*features.Result, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.metrics.ObserveCacheLookup("miss")
			return nil, nil
		}
		c.metrics.ObserveCacheLookup("error")
		return nil, fmt.Errorf("failed to read feature cache: %w", err)
	}

	res, err := decodeResult(data)
	if err != nil {
		// A corrupt entry is dropped and treated as a miss.
		c.metrics.ObserveCacheLookup("error")
		log := c.log.WithError(err).WithField("key", key)
		if delErr := c.client.Del(ctx, c.keyPrefix+key).Err(); delErr != nil {
			log.WithField("evict_error", delErr.Error()).Error("Failed to evict corrupt feature cache entry")
		} else {
			log.Warn("Evicted corrupt feature cache entry")
		}
		return nil, nil
	}
	c.metrics.ObserveCacheLookup("hit")
	return res, nil
}

// Put stores result under key. A zero ttl keeps the entry until evicted.
func (c *FeatureCache) Put(ctx context.Context, key string, result *features.Result, ttl time.Duration) error {
	data, err := encodeResult(result)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write feature cache: %w", err)
	}
	return nil
}

// Invalidate removes one entry.
func (c *FeatureCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key).Err()
}

// Purge removes every cached feature table. Callers use it after the underlying series change.
func (c *FeatureCache) Purge(ctx context.Context) (int, error) {
	var removed int
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to purge feature cache: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan feature cache: %w", err)
	}
	return removed, nil
}

// cachedResult is the wire form of a features.Result. Missing values are null.
type cachedResult struct {
	Result   *features.Result      `json:"result"`
	Columns  []string              `json:"columns"`
	Entities []series.EntityKey    `json:"entities"`
	Dates    []string              `json:"dates"`
	Values   map[string][]*float64 `json:"values"`
}

func encodeResult(r *features.Result) ([]byte, error) {
	if r == nil || r.Frame == nil {
		return nil, core.NewValidationError("feature cache", "result has no frame")
	}
	f := r.Frame
	w := cachedResult{
		Result:   r,
		Columns:  f.ColumnNames(),
		Entities: make([]series.EntityKey, f.Len()),
		Dates:    make([]string, f.Len()),
		Values:   make(map[string][]*float64, len(f.ColumnNames())),
	}
	for i := 0; i < f.Len(); i++ {
		w.Entities[i] = f.Entity(i)
		w.Dates[i] = core.FormatDate(f.Date(i))
	}
	for _, c := range w.Columns {
		col, _ := f.Column(c)
		out := make([]*float64, len(col))
		for i, v := range col {
			if !series.IsMissing(v) {
				v := v
				out[i] = &v
			}
		}
		w.Values[c] = out
	}

	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feature result: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodeResult(data []byte) (*features.Result, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	var w cachedResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Result == nil || len(w.Entities) != len(w.Dates) {
		return nil, errors.New("malformed cache entry")
	}

	f := series.NewFrame(w.Columns...)
	for i := range w.Entities {
		d, err := core.ParseDate(w.Dates[i])
		if err != nil {
			return nil, err
		}
		values := make(map[string]float64, len(w.Columns))
		for _, c := range w.Columns {
			col := w.Values[c]
			if i < len(col) && col[i] != nil {
				values[c] = *col[i]
			}
		}
		f.AppendRow(series.Row{Entity: w.Entities[i], Date: d, Values: values})
	}
	w.Result.Frame = f
	return w.Result, nil
}
