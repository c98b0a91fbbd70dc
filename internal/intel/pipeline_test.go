package intel

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozorabiz/kaisha-intel/internal/fetcher"
	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/pkg/anthropic"
	"github.com/aozorabiz/kaisha-intel/pkg/brave"
)

type fakeFetcher struct {
	mu       sync.Mutex
	homepage *model.FetchedPage
	homeErr  error
	pages    map[string]*model.FetchedPage
	pdfs     map[string][]byte
	fetched  []string
}

func (f *fakeFetcher) FetchHomepage(_ context.Context, url string) (*model.FetchedPage, error) {
	if f.homeErr != nil {
		return nil, f.homeErr
	}
	return f.homepage, nil
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) *model.FetchedPage {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()
	if p, ok := f.pages[url]; ok {
		return p
	}
	return &model.FetchedPage{URL: url, OK: false}
}

func (f *fakeFetcher) FetchPDF(_ context.Context, url string) ([]byte, error) {
	if b, ok := f.pdfs[url]; ok {
		return b, nil
	}
	return nil, eris.New("fake: no pdf")
}

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	results map[string][]brave.Result
}

func (s *fakeSearch) Search(_ context.Context, query string, count int) ([]brave.Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return s.results[query], nil
}

type fakeLLM struct {
	mu      sync.Mutex
	calls   int
	replies []string
	err     error
}

func (l *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	reply := "{}"
	if l.calls < len(l.replies) {
		reply = l.replies[l.calls]
	}
	l.calls++
	return &anthropic.MessageResponse{Text: reply}, nil
}

func testPipeline(f *fakeFetcher, s brave.Client, l anthropic.Client) *Pipeline {
	p := New(f, s, l, DefaultConfig())
	p.now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestRunRejectsEmptyWebsite(t *testing.T) {
	p := testPipeline(&fakeFetcher{}, nil, &fakeLLM{})
	_, err := p.Run(context.Background(), model.IntelRequest{Website: "  "})
	assert.ErrorIs(t, err, ErrMissingWebsite)
}

func TestRunRejectsMissingLLM(t *testing.T) {
	p := testPipeline(&fakeFetcher{}, nil, nil)
	_, err := p.Run(context.Background(), model.IntelRequest{Website: "example.jp"})
	assert.ErrorIs(t, err, ErrMissingLLMKey)
}

func TestRunHomepageFailurePropagatesReason(t *testing.T) {
	reason := &fetcher.FailureReason{Kind: fetcher.FailureDNS, Details: "DNS解決に失敗しました"}
	f := &fakeFetcher{homeErr: reason}
	llm := &fakeLLM{}
	p := testPipeline(f, nil, llm)

	resp, err := p.Run(context.Background(), model.IntelRequest{Website: "no-such.example.jp"})
	require.Error(t, err)
	var got *fetcher.FailureReason
	require.ErrorAs(t, err, &got)
	assert.Equal(t, fetcher.FailureDNS, got.Kind)
	assert.Equal(t, "direct_fetch_failed", resp.Meta.Method)
	assert.Equal(t, 0, llm.calls, "no llm spend on an unreachable site")
}

func TestRunEmptyHomepageContentIsFetchFailure(t *testing.T) {
	f := &fakeFetcher{homepage: &model.FetchedPage{
		URL:         "https://example.co.jp",
		OK:          false,
		Status:      200,
		ContentType: "application/pdf",
	}}
	llm := &fakeLLM{}
	p := testPipeline(f, nil, llm)

	resp, err := p.Run(context.Background(), model.IntelRequest{Website: "https://example.co.jp"})
	require.Error(t, err)
	var got *fetcher.FailureReason
	require.ErrorAs(t, err, &got)
	assert.Equal(t, fetcher.FailureOther, got.Kind)
	assert.Contains(t, got.Details, "コンテンツ取得に失敗しました")
	assert.Equal(t, "direct_fetch_empty", resp.Meta.Method)
	assert.Equal(t, 0, resp.Meta.ScrapedCharacters)
	assert.Equal(t, 0, llm.calls, "no llm spend on an empty corpus")
}

func TestRunHappyPathCompleteHomepage(t *testing.T) {
	home := &model.FetchedPage{
		OK:     true,
		Status: 200,
		Text:   "株式会社 青空商事、東京都の企業です。従業員: 120名 売上高: 12億円 支店: 大阪",
		HTML:   `<html><body><a href="/company/">会社概要</a></body></html>`,
	}
	f := &fakeFetcher{
		homepage: home,
		pages: map[string]*model.FetchedPage{
			"https://aozora.example.jp/company/": {OK: true, Text: "会社概要ページ"},
		},
	}
	llm := &fakeLLM{replies: []string{
		`{"industry": "卸売業", "annualRevenue": "10-50億円", "employeeCount": "100-299名", "extraBullets": ["主要事業: 産業資材の卸売"]}`,
	}}
	search := &fakeSearch{}
	p := testPipeline(f, search, llm)

	resp, err := p.Run(context.Background(), model.IntelRequest{
		Website: "aozora.example.jp",
		Options: model.IntelOptions{RevenueRanges: testRevenueRanges, EmployeeRanges: testEmployeeRanges},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Data)

	assert.Equal(t, "direct_fetch", resp.Meta.Method)
	assert.Equal(t, "https://aozora.example.jp", resp.Meta.Source)
	assert.Equal(t, "株式会社青空商事", resp.Meta.CompanyNameGuess)
	assert.False(t, resp.Meta.NeedsEmployee)
	assert.False(t, resp.Meta.NeedsRevenue)
	assert.False(t, resp.Meta.NeedsLocations)
	assert.Empty(t, search.queries, "complete homepage needs no external search")
	assert.Contains(t, resp.Meta.InternalPages, "https://aozora.example.jp/company/")

	require.NotNil(t, resp.Data.AnnualRevenue)
	assert.Equal(t, "10-50億円", *resp.Data.AnnualRevenue)
	require.NotNil(t, resp.Data.Industry)
	assert.Equal(t, "卸売業", *resp.Data.Industry)
}

func TestRunMissingFiguresTriggerExternalSearch(t *testing.T) {
	home := &model.FetchedPage{
		OK:   true,
		Text: "株式会社 青空商事、東京都の企業です。事業内容の紹介。",
		HTML: "<html><body></body></html>",
	}
	query := "株式会社青空商事 売上高 最新 2026"
	f := &fakeFetcher{
		homepage: home,
		pages: map[string]*model.FetchedPage{
			"https://irbank.net/1234": {OK: true, Text: "2026年3月期 売上高 12億円 従業員 120名"},
		},
	}
	search := &fakeSearch{results: map[string][]brave.Result{
		query: {{URL: "https://irbank.net/1234", Title: "売上高の推移"}},
	}}
	llm := &fakeLLM{replies: []string{`{"industry": "卸売業"}`}}
	p := testPipeline(f, search, llm)

	resp, err := p.Run(context.Background(), model.IntelRequest{
		Website: "https://aozora.example.jp",
		Options: model.IntelOptions{RevenueRanges: testRevenueRanges, EmployeeRanges: testEmployeeRanges},
	})
	require.NoError(t, err)
	assert.True(t, resp.Meta.NeedsEmployee)
	assert.True(t, resp.Meta.NeedsRevenue)
	require.NotEmpty(t, search.queries)
	assert.Contains(t, search.queries, query)
	assert.Contains(t, resp.Meta.ExternalPages, "https://irbank.net/1234")
	require.NotNil(t, resp.FactCheck)
}

func TestRunDiscardsAddressConflictingExternalPage(t *testing.T) {
	home := &model.FetchedPage{
		OK:   true,
		Text: "株式会社 青空商事、福岡県の企業です。",
		HTML: "<html></html>",
	}
	conflictURL := "https://example-db.jp/aozora"
	f := &fakeFetcher{
		homepage: home,
		pages: map[string]*model.FetchedPage{
			conflictURL: {OK: true, Text: "株式会社青空商事 本社: 東京都港区 従業員 500名"},
		},
	}
	search := &fakeSearch{results: map[string][]brave.Result{
		"株式会社青空商事 売上高 最新 2026": {{URL: conflictURL, Title: "企業情報"}},
	}}
	llm := &fakeLLM{replies: []string{`{}`}}
	p := testPipeline(f, search, llm)

	resp, err := p.Run(context.Background(), model.IntelRequest{
		Website:           "https://aozora.example.jp",
		CompanyPrefecture: "福岡県",
		CompanyCity:       "福岡市",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Meta.DiscardedPages, conflictURL)
	assert.NotContains(t, resp.Meta.ExternalPages, conflictURL)
}

func TestRunDerivesPrefectureFromAddressForConflictGuard(t *testing.T) {
	home := &model.FetchedPage{
		OK:   true,
		Text: "株式会社 青空商事、福岡県の企業です。",
		HTML: "<html></html>",
	}
	conflictURL := "https://example-db.jp/aozora"
	f := &fakeFetcher{
		homepage: home,
		pages: map[string]*model.FetchedPage{
			conflictURL: {OK: true, Text: "株式会社青空商事 本社: 東京都港区 従業員 500名"},
		},
	}
	search := &fakeSearch{results: map[string][]brave.Result{
		"株式会社青空商事 売上高 最新 2026": {{URL: conflictURL, Title: "企業情報"}},
	}}
	llm := &fakeLLM{replies: []string{`{}`}}
	p := testPipeline(f, search, llm)

	// No prefecture field; only a full address.
	resp, err := p.Run(context.Background(), model.IntelRequest{
		Website:        "https://aozora.example.jp",
		CompanyAddress: "福岡県福岡市博多区1-2-3",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Meta.DiscardedPages, conflictURL)
	assert.NotContains(t, resp.Meta.ExternalPages, conflictURL)
}

func TestRunKnownSourcesFallbackWithoutSearchKey(t *testing.T) {
	home := &model.FetchedPage{
		OK:   true,
		Text: "株式会社 青空商事、東京都の企業です。証券コード: 7203 従業員 120名 売上高 12億円 支店 大阪",
		HTML: "<html></html>",
	}
	f := &fakeFetcher{
		homepage: home,
		pages: map[string]*model.FetchedPage{
			"https://irbank.net/7203": {OK: true, Text: "2026年3月期 売上高 46,984百万円"},
		},
	}
	llm := &fakeLLM{replies: []string{`{}`}}
	p := testPipeline(f, nil, llm)

	resp, err := p.Run(context.Background(), model.IntelRequest{
		Website:             "https://aozora.example.jp",
		ForceExternalSearch: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "known_sources_no_search_api", resp.Meta.Method)
	assert.Equal(t, "7203", resp.Meta.StockCode)
	assert.Contains(t, resp.Meta.ExternalPages, "https://irbank.net/7203")
}

func TestRunLLMParseFailureIsHardError(t *testing.T) {
	home := &model.FetchedPage{OK: true, Text: "従業員 10名 売上 1億円 店舗あり", HTML: "<html></html>"}
	f := &fakeFetcher{homepage: home}
	llm := &fakeLLM{replies: []string{"すみません、抽出できませんでした。"}}
	p := testPipeline(f, nil, llm)

	_, err := p.Run(context.Background(), model.IntelRequest{Website: "https://aozora.example.jp"})
	assert.ErrorIs(t, err, ErrLLMParse)
}

func TestRunQuotaErrorPropagates(t *testing.T) {
	home := &model.FetchedPage{OK: true, Text: "従業員 10名 売上 1億円 店舗あり", HTML: "<html></html>"}
	f := &fakeFetcher{homepage: home}
	llm := &fakeLLM{err: anthropic.ErrQuotaExceeded}
	p := testPipeline(f, nil, llm)

	_, err := p.Run(context.Background(), model.IntelRequest{Website: "https://aozora.example.jp"})
	require.Error(t, err)
	assert.True(t, anthropic.IsQuotaExceeded(err))
}

func TestNormalizeWebsiteURL(t *testing.T) {
	assert.Equal(t, "https://example.jp", normalizeWebsiteURL("example.jp"))
	assert.Equal(t, "http://example.jp", normalizeWebsiteURL("http://example.jp"))
	assert.Equal(t, "https://example.jp/path", normalizeWebsiteURL("https://example.jp/path"))
}

func TestTruncateKeepsShortStrings(t *testing.T) {
	assert.Equal(t, "短文", truncate("短文", 100))
	assert.Equal(t, strings.Repeat("あ", 5), truncate(strings.Repeat("あ", 9), 5))
}
