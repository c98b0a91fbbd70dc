// Package localinfo assembles the local business-context dashboard: labor
// costs, events, infrastructure, weather and traffic around the company's
// area, built from web search results behind a TTL cache.
package localinfo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/pkg/brave"
)

// DataType keys the dashboard cache rows for this payload.
const DataType = "local_info"

// DefaultTTL is the cache freshness window.
const DefaultTTL = 30 * time.Minute

// Cache is the slice of the store the service needs. Rows older than maxAge
// are treated as misses.
type Cache interface {
	GetDashboardCache(ctx context.Context, userID, companyID, dataType string, maxAge time.Duration) (json.RawMessage, time.Time, bool, error)
	SetDashboardCache(ctx context.Context, userID, companyID, dataType string, data json.RawMessage, expiresAt time.Time) error
}

// Result wraps the payload with its cache provenance.
type Result struct {
	Data      *model.LocalInfo `json:"data"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Cached    bool             `json:"cached"`
}

// Service builds and caches the dashboard data. search may be nil; every
// branch then comes back empty, which the dashboard renders as "no data".
type Service struct {
	search brave.Client
	cache  Cache
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a Service with the default TTL.
func NewService(search brave.Client, cache Cache) *Service {
	return &Service{search: search, cache: cache, ttl: DefaultTTL, now: time.Now}
}

// WithTTL overrides the cache freshness window. Non-positive values keep the
// current TTL.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// Get returns the dashboard data for the user's company area, from cache when
// fresh enough, otherwise rebuilt from live searches. refresh forces a
// rebuild. A cache write failure is logged, never surfaced; the data is good
// even when the cache is not.
func (s *Service) Get(ctx context.Context, userID, companyID string, area model.Area, refresh bool) (*Result, error) {
	if !refresh && s.cache != nil {
		raw, updatedAt, ok, err := s.cache.GetDashboardCache(ctx, userID, companyID, DataType, s.ttl)
		if err != nil {
			zap.L().Warn("dashboard cache read failed", zap.Error(err))
		} else if ok {
			var data model.LocalInfo
			if err := json.Unmarshal(raw, &data); err == nil {
				return &Result{Data: &data, UpdatedAt: updatedAt, Cached: true}, nil
			}
			zap.L().Warn("dashboard cache row undecodable, rebuilding", zap.Error(err))
		}
	}

	data, err := s.build(ctx, area)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if s.cache != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, eris.Wrap(err, "localinfo: encode dashboard data")
		}
		if err := s.cache.SetDashboardCache(ctx, userID, companyID, DataType, raw, now.Add(s.ttl)); err != nil {
			zap.L().Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return &Result{Data: data, UpdatedAt: now, Cached: false}, nil
}

// build fans out the five branches and waits for all of them. A branch that
// fails contributes its zero value; the goroutines never return an error so
// one bad search cannot abort the rest.
func (s *Service) build(ctx context.Context, area model.Area) (*model.LocalInfo, error) {
	data := &model.LocalInfo{}
	loginDate := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data.LaborCosts = s.laborCosts(gctx, area, loginDate)
		return nil
	})
	g.Go(func() error {
		data.Events = s.events(gctx, area, loginDate)
		return nil
	})
	g.Go(func() error {
		data.Infrastructure = s.infrastructure(gctx, area)
		return nil
	})
	g.Go(func() error {
		data.Weather = s.weather(gctx, area, loginDate)
		return nil
	})
	g.Go(func() error {
		data.Traffic = s.traffic(gctx, area)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "localinfo: build dashboard")
	}
	return data, nil
}

// doSearch runs one query, swallowing failures into an empty result set.
func (s *Service) doSearch(ctx context.Context, query string, count int) []brave.Result {
	if s.search == nil {
		return nil
	}
	results, err := s.search.Search(ctx, query, count)
	if err != nil {
		zap.L().Warn("local info search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return results
}
