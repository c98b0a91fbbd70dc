package localinfo

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/pkg/brave"
)

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	results map[string][]brave.Result
}

func (s *fakeSearch) Search(_ context.Context, query string, count int) ([]brave.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.results[query], nil
}

type fakeCache struct {
	mu      sync.Mutex
	raw     json.RawMessage
	updated time.Time
	hit     bool
	gets    int
	sets    int
	setData json.RawMessage
}

func (c *fakeCache) GetDashboardCache(_ context.Context, userID, companyID, dataType string, maxAge time.Duration) (json.RawMessage, time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.raw, c.updated, c.hit, nil
}

func (c *fakeCache) SetDashboardCache(_ context.Context, userID, companyID, dataType string, data json.RawMessage, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.setData = data
	return nil
}

var testLogin = time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

func testService(search brave.Client, cache Cache) *Service {
	s := NewService(search, cache)
	s.now = func() time.Time { return testLogin }
	return s
}

func testArea() model.Area {
	return model.Area{Prefecture: "愛知県", City: "名古屋市", Industry: "製造業"}
}

func TestGetReturnsFreshCache(t *testing.T) {
	cached := model.LocalInfo{LaborCosts: model.LaborCosts{Current: 1200}}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	cache := &fakeCache{raw: raw, updated: testLogin.Add(-5 * time.Minute), hit: true}
	search := &fakeSearch{}

	res, err := testService(search, cache).Get(context.Background(), "u1", "c1", testArea(), false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1200, res.Data.LaborCosts.Current)
	assert.Empty(t, search.queries, "cache hit must not search")
	assert.Equal(t, 0, cache.sets)
}

func TestGetRefreshBypassesCache(t *testing.T) {
	cache := &fakeCache{raw: json.RawMessage(`{}`), updated: testLogin, hit: true}
	search := &fakeSearch{}

	res, err := testService(search, cache).Get(context.Background(), "u1", "c1", testArea(), true)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 0, cache.gets)
	assert.Equal(t, 1, cache.sets)
	assert.NotEmpty(t, search.queries)
}

func TestGetBuildsAndCachesOnMiss(t *testing.T) {
	cache := &fakeCache{}
	search := &fakeSearch{}

	res, err := testService(search, cache).Get(context.Background(), "u1", "c1", testArea(), false)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, testLogin, res.UpdatedAt)
	require.Equal(t, 1, cache.sets)

	var stored model.LocalInfo
	require.NoError(t, json.Unmarshal(cache.setData, &stored))
	assert.Equal(t, defaultHourlyWage, stored.LaborCosts.Current)
	assert.Len(t, stored.Weather.Week, 7)
}

func TestBuildQueriesCompressArea(t *testing.T) {
	search := &fakeSearch{}
	_, err := testService(search, nil).Get(context.Background(), "u1", "c1", testArea(), false)
	require.NoError(t, err)

	require.NotEmpty(t, search.queries)
	assert.Contains(t, search.queries, "愛知名古屋 製造業 アルバイト 時給 2026")
	for _, q := range search.queries {
		assert.NotContains(t, q, "愛知県")
	}
}

func TestLaborCostsWageExtraction(t *testing.T) {
	wageQuery := "愛知名古屋 製造業 アルバイト 時給 2026"
	search := &fakeSearch{results: map[string][]brave.Result{
		wageQuery: {
			{Title: "名古屋の時給相場", Description: "時給は1100円から1300円が中心です"},
			{Title: "広告 限定オファー", Description: "時給9999円 今すぐ"},
		},
	}}
	s := testService(search, nil)
	lc := s.laborCosts(context.Background(), testArea(), testLogin)

	assert.Equal(t, 1200, lc.Current)
	require.Len(t, lc.MonthlyData, 6)
	assert.Equal(t, "3月", lc.MonthlyData[0].Month)
	assert.Equal(t, "8月", lc.MonthlyData[5].Month)
	assert.Equal(t, float64(1200), lc.MonthlyData[5].Value)
}

func TestLaborCostsFallbackBaseline(t *testing.T) {
	s := testService(&fakeSearch{}, nil)
	lc := s.laborCosts(context.Background(), testArea(), testLogin)
	assert.Equal(t, defaultHourlyWage, lc.Current)
}

func TestEventsFilteredAndDated(t *testing.T) {
	query := "愛知名古屋 製造業 イベント 2026 8月 9月 セミナー 展示会 見本市"
	search := &fakeSearch{results: map[string][]brave.Result{
		query: {
			{Title: "製造業セミナー", Description: "9月12日開催の勉強会"},
			{Title: "無関係な記事", Description: "ラーメン特集"},
		},
	}}
	s := testService(search, nil)
	events := s.events(context.Background(), testArea(), testLogin)

	require.Len(t, events, 1)
	assert.Equal(t, "製造業セミナー", events[0].Title)
	assert.Equal(t, "9月12日", events[0].Date)
}

func TestTrafficStatusGrading(t *testing.T) {
	assert.Equal(t, StatusWarning, extractTrafficStatus("名古屋高速で渋滞が発生"))
	assert.Equal(t, StatusError, extractTrafficStatus("事故により通行止め"))
	assert.Equal(t, StatusNormal, extractTrafficStatus("順調に流れています"))

	assert.Equal(t, StatusWarning, extractStatus("道路工事のお知らせ"))
	assert.Equal(t, StatusError, extractStatus("回線の不通が続いています"))
	assert.Equal(t, StatusNormal, extractStatus("通常どおり供給中"))
}

func TestWeatherWeekStartsAtLogin(t *testing.T) {
	s := testService(&fakeSearch{}, nil)
	w := s.weather(context.Background(), testArea(), testLogin)

	require.Len(t, w.Week, 7)
	// 2026-08-30 is a Sunday.
	assert.Equal(t, "日", w.Week[0].Day)
	assert.Equal(t, "8/30", w.Week[0].Date)
	assert.Equal(t, "9/5", w.Week[6].Date)
}
