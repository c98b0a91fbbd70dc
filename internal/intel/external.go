package intel

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// preferredSites are external sources ranked by how reliably they carry
// current-year financials and headcounts. Order matters: earlier sites score
// higher and get the site-restricted query slots.
var preferredSites = []string{
	// financial/IR aggregators, most likely to show the latest fiscal year
	"irbank.net",
	"kabutan.jp",
	"finance.yahoo.co.jp",
	// recruiting profiles, most likely to show headcount
	"job.rikunabi.com",
	"mynavi.jp",
	"wantedly.com",
	// company DBs and PR, supporting evidence
	"salesnow.jp",
	"baseconnect.in",
	"prtimes.jp",
}

// BuildSearchQueries builds the external search queries for a company. qBase
// is the guessed company name, or the site hostname when no name was found.
func BuildSearchQueries(qBase string, year int) []string {
	y := strconv.Itoa(year)
	return []string{
		qBase + " 売上高 最新 " + y,
		qBase + " 年商 最新 " + y,
		qBase + " 従業員数 最新",
		qBase + " 会社概要 従業員数 売上高",
		qBase + " 売上高 " + y + " site:" + preferredSites[0],
		qBase + " 売上高 " + y + " site:" + preferredSites[1],
		qBase + " 売上高 " + y + " site:" + preferredSites[2],
		qBase + " 従業員数 site:" + preferredSites[3],
		qBase + " 会社概要 site:" + preferredSites[4],
		qBase + " 会社概要 従業員数 site:" + preferredSites[5],
	}
}

// RankedResult is a search result with its relevance score attached.
type RankedResult struct {
	model.WebResult
	Score int `json:"score"`
}

// RankExternalResults dedupes by URL, drops results on the company's own
// origin, scores by preferred domain and keyword hits, and returns the top
// `limit` results highest score first.
func RankExternalResults(results []model.WebResult, ownOrigin string, year, limit int) []RankedResult {
	seen := map[string]bool{}
	var ranked []RankedResult
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		if ownOrigin != "" && strings.HasPrefix(r.URL, ownOrigin) {
			continue
		}
		seen[r.URL] = true
		ranked = append(ranked, RankedResult{
			WebResult: r,
			Score:     preferredDomainScore(r.URL) + keywordScore(r, year),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func preferredDomainScore(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	host := u.Hostname()
	for i, d := range preferredSites {
		if host == d || strings.HasSuffix(host, "."+d) {
			return 50 - i
		}
	}
	return 0
}

func keywordScore(r model.WebResult, year int) int {
	text := strings.ToLower(r.Title + " " + r.Description)
	score := 0
	if strings.Contains(text, "売上") {
		score += 5
	}
	if strings.Contains(text, "年商") {
		score += 4
	}
	if strings.Contains(text, "従業員") {
		score += 5
	}
	if strings.Contains(text, "会社概要") {
		score += 3
	}
	if strings.Contains(text, strconv.Itoa(year)) {
		score += 4
	}
	if strings.Contains(text, strconv.Itoa(year-1)) {
		score += 2
	}
	return score
}

// KnownSource is a deterministic external URL derived from a stock code, used
// when no search API key is configured.
type KnownSource struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// KnownExternalSources builds aggregator URLs for a listed company's stock
// code. Yahoo Finance needs a market suffix; .T assumes Tokyo, which covers
// nearly all codes this pipeline sees.
func KnownExternalSources(stockCode string) []KnownSource {
	code := strings.TrimSpace(stockCode)
	if len(code) != 4 {
		return nil
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return nil
		}
	}
	return []KnownSource{
		{URL: "https://irbank.net/" + code, Label: "IRBANK"},
		{URL: "https://kabutan.jp/stock/finance?code=" + code, Label: "Kabutan"},
		{URL: fmt.Sprintf("https://finance.yahoo.co.jp/quote/%s.T", code), Label: "YahooFinance"},
	}
}
