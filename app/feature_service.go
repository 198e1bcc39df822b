package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/internal/features"
	"demandcast/ports"
)

// FeatureRequest selects the series to load and how to featurize them.
type FeatureRequest struct {
	// Source names the data the loader reads (kind plus file or table). Feature tables cached
	// for one source are never served for another.
	Source string
	Query  ports.SeriesQuery
	Config *domainfeatures.FeatureConfig
	// Cutoff, when set, excludes every row dated after it before any feature is computed.
	Cutoff *time.Time
}

// FeatureService loads series and runs the feature engine, consulting the cache when one is configured
type FeatureService struct {
	loader ports.SeriesLoader
	engine *features.Engine
	cache  ports.FeatureCache
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewFeatureService creates a feature service. cache may be nil.
func NewFeatureService(loader ports.SeriesLoader, engine *features.Engine, cache ports.FeatureCache, ttl time.Duration, log logrus.FieldLogger) *FeatureService {
	return &FeatureService{
		loader: loader,
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		log:    log.WithField("component", "feature_service"),
	}
}

// Compute returns the feature table for req.
func (s *FeatureService) Compute(ctx context.Context, req FeatureRequest) (*domainfeatures.Result, error) {
	if req.Config == nil {
		return nil, core.NewValidationError("features", "a feature config is required")
	}
	log := s.log.WithField("config_hash", req.Config.Hash().Short())

	cache := s.cache
	var key string
	if cache != nil {
		source, err := s.sourceIdentity(ctx, req.Source)
		if err != nil {
			log.WithError(err).Warn("Cannot version feature source, skipping cache")
			cache = nil
		}
		key = CacheKey(req.Config, source, req.Query, req.Cutoff)
	}

	if cache != nil {
		cached, err := cache.Get(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Feature cache read failed")
		} else if cached != nil {
			log.Debug("Feature cache hit")
			return cached, nil
		}
	}

	frame, err := s.loader.LoadSeries(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	result, err := s.engine.Compute(frame, req.Config, req.Cutoff)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Put(ctx, key, result, s.ttl); err != nil {
			log.WithError(err).Warn("Feature cache write failed")
		}
	}
	return result, nil
}

// sourceIdentity appends the loader's data version to the configured source name, so a file
// rewritten in place does not hit tables computed from its old contents.
func (s *FeatureService) sourceIdentity(ctx context.Context, source string) (string, error) {
	v, ok := s.loader.(ports.SourceVersioner)
	if !ok {
		return source, nil
	}
	version, err := v.SourceVersion(ctx)
	if err != nil {
		return "", err
	}
	return source + "#" + version, nil
}

// CacheKey identifies a feature table by config hash and the cohort it was computed over:
// data source, entities, load range and cutoff.
func CacheKey(cfg *domainfeatures.FeatureConfig, source string, q ports.SeriesQuery, cutoff *time.Time) string {
	entities := make([]string, len(q.EntityIDs))
	for i, e := range q.EntityIDs {
		entities[i] = e.String()
	}

	date := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return core.FormatDate(*t)
	}
	cohort := core.ComputeCohortHash(entities, map[string]interface{}{
		"source": source,
		"start":  date(q.Start),
		"end":    date(q.End),
		"cutoff": date(cutoff),
	})
	return cfg.Hash().String() + ":" + cohort.String()
}
