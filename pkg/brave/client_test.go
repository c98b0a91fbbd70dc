package brave

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "株式会社テスト 売上高", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		assert.Equal(t, "JP", r.URL.Query().Get("country"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"株式会社テスト - 会社概要","url":"https://example.co.jp/company","description":"売上高 469億円"},
			{"title":"テスト(株)の基本情報","url":"https://irbank.net/1234","description":"従業員数 1,200名"}
		]}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	results, err := c.Search(context.Background(), "株式会社テスト 売上高", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://example.co.jp/company", results[0].URL)
	assert.Contains(t, results[1].Description, "1,200名")
}

func TestSearchMissingKeyReturnsEmpty(t *testing.T) {
	c := NewClient("")
	results, err := c.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"ok","url":"https://example.com","description":""}]}}`))
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL), WithMaxRetries(2))
	results, err := c.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchPermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL), WithMaxRetries(2))
	_, err := c.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
