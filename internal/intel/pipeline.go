// Package intel runs the company intelligence pipeline: crawl the official
// site, supplement from external sources and IR disclosures, extract a
// structured profile with the LLM, then reconcile everything under a
// strict "latest data or nothing" policy.
package intel

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aozorabiz/kaisha-intel/internal/factcheck"
	"github.com/aozorabiz/kaisha-intel/internal/fetcher"
	"github.com/aozorabiz/kaisha-intel/internal/jpfin"
	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/internal/scorer"
	"github.com/aozorabiz/kaisha-intel/internal/scrape"
	"github.com/aozorabiz/kaisha-intel/pkg/anthropic"
	"github.com/aozorabiz/kaisha-intel/pkg/brave"
)

// Pipeline errors the API layer maps onto status codes.
var (
	// ErrMissingWebsite reports a request without a website, a 400.
	ErrMissingWebsite = eris.New("intel: website is required")
	// ErrMissingLLMKey reports missing Anthropic credentials, a 500.
	ErrMissingLLMKey = eris.New("intel: anthropic api key is not configured")
	// ErrLLMParse reports an LLM reply unparsable even after repair, a 500.
	ErrLLMParse = eris.New("intel: llm response could not be parsed")
)

// Config tunes the pipeline.
type Config struct {
	Model            string
	FactsModel       string
	MaxTokens        int64
	MaxInternalPages int
	MaxExternalPages int
	MaxQueries       int
	MaxPDFCandidates int
	StaleAgeYears    int
	Weights          scorer.ListedWeights
}

// DefaultConfig returns production pipeline settings.
func DefaultConfig() Config {
	return Config{
		Model:            "claude-haiku-4-5-20251001",
		FactsModel:       "claude-sonnet-4-5-20250929",
		MaxTokens:        800,
		MaxInternalPages: 10,
		MaxExternalPages: 10,
		MaxQueries:       6,
		MaxPDFCandidates: 5,
		StaleAgeYears:    2,
		Weights:          scorer.DefaultListedWeights(),
	}
}

// Response is the pipeline output envelope.
type Response struct {
	Data      *model.CompanyIntel `json:"data"`
	Meta      *model.IntelMeta    `json:"meta"`
	FactCheck *factcheck.Result   `json:"factCheck,omitempty"`
}

// Pipeline wires the fetcher, search client and LLM into one Run operation.
// search may be nil (no API key); llm may be nil, in which case Run fails
// with ErrMissingLLMKey before any network work.
type Pipeline struct {
	fetch  fetcher.PageFetcher
	search brave.Client
	llm    anthropic.Client
	cfg    Config
	now    func() time.Time
}

// New creates a Pipeline.
func New(fetch fetcher.PageFetcher, search brave.Client, llm anthropic.Client, cfg Config) *Pipeline {
	if cfg.MaxInternalPages == 0 {
		cfg = DefaultConfig()
	}
	return &Pipeline{fetch: fetch, search: search, llm: llm, cfg: cfg, now: time.Now}
}

// Run executes the full pipeline for one request.
func (p *Pipeline) Run(ctx context.Context, req model.IntelRequest) (*Response, error) {
	website := strings.TrimSpace(req.Website)
	if website == "" {
		return nil, ErrMissingWebsite
	}
	if p.llm == nil {
		return nil, ErrMissingLLMKey
	}
	normalizedURL := normalizeWebsiteURL(website)
	meta := &model.IntelMeta{Source: normalizedURL}

	// 1. Homepage. The only fetch allowed to fail the request.
	home, err := p.fetch.FetchHomepage(ctx, normalizedURL)
	if err != nil {
		meta.Method = "direct_fetch_failed"
		return &Response{Meta: meta}, err
	}
	meta.Method = "direct_fetch"
	meta.DirectStatus = home.Status
	meta.DirectContentType = home.ContentType
	meta.ScrapedCharacters = len(home.Text)

	// A 2xx answer with no scrapable text (non-HTML body, empty page) is
	// still a fetch failure; the crawl and the LLM have nothing to work on.
	if strings.TrimSpace(home.Text) == "" {
		meta.Method = "direct_fetch_empty"
		return &Response{Meta: meta}, &fetcher.FailureReason{
			Kind:    fetcher.FailureOther,
			Status:  home.Status,
			Details: "通常fetchでコンテンツ取得に失敗しました。URLや対象サイトの制限をご確認ください。",
		}
	}

	// 2. Internal crawl over the best homepage links, concurrently.
	internalText, internalPages := p.crawlInternal(ctx, normalizedURL, home.HTML)
	meta.InternalPages = internalPages

	officialText := home.Text + "\n\n" + internalText
	nameGuess := jpfin.GuessCompanyName(officialText)
	meta.CompanyNameGuess = nameGuess

	meta.NeedsEmployee = !strings.Contains(officialText, "従業員")
	meta.NeedsRevenue = !containsAny(officialText, "売上", "売上高", "売上収益", "年商")
	meta.NeedsLocations = !containsAny(officialText, "支店", "営業所", "工場", "店舗")

	// 3. External enrichment.
	externalText, extSources := p.gatherExternal(ctx, req, normalizedURL, nameGuess, officialText, meta)

	// 4. IR candidate pages on the official origin, plus disclosure PDFs.
	irText, pdfLinks := p.gatherIR(ctx, normalizedURL)
	meta.DiscoveredPDFLinks = pdfLinks

	listed := scorer.DetectListed(officialText+"\n"+irText, internalPages, p.cfg.Weights)
	meta.StockCode = listed.StockCode
	meta.Listed = &model.ListedSummary{
		IsListed:   listed.IsListed,
		StockCode:  listed.StockCode,
		Confidence: listed.Confidence,
		Score:      listed.Score,
		Reasons:    listed.Evidence,
	}

	// 5. Strong facts from the first readable disclosure PDF.
	var facts *model.FinancialFacts
	var factsSource string
	for i, pdfURL := range pdfLinks {
		if i >= p.cfg.MaxPDFCandidates {
			break
		}
		got, err := p.extractFinancialFacts(ctx, pdfURL)
		if err != nil {
			return &Response{Meta: meta}, err
		}
		if !got.Empty() {
			facts = got
			factsSource = pdfURL
			meta.FinancialPDF = pdfURL
			break
		}
	}

	// 6. LLM structured extraction.
	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(SystemPrompt()),
		Messages: []anthropic.Message{
			anthropic.TextMessage("user",
				BuildUserPrompt(normalizedURL, req.Options, officialText, externalText, irText, facts)),
		},
		Temperature: floatPtr(0.2),
	})
	if err != nil {
		return &Response{Meta: meta}, eris.Wrap(err, "intel: extraction call")
	}
	resp.Usage.LogCost(p.cfg.Model, "extraction")

	parsed := &model.CompanyIntel{}
	if err := ParseLLMJSON(resp.Text, parsed); err != nil {
		zap.L().Error("llm reply unparsable", zap.Error(err), zap.String("reply", truncate(resp.Text, 500)))
		return &Response{Meta: meta}, ErrLLMParse
	}

	// 7. Reconcile.
	reconcile(parsed, reconcileInput{
		Facts:         facts,
		FactsSource:   factsSource,
		OfficialText:  home.Text,
		IRText:        irText,
		ExternalText:  externalText,
		Opts:          req.Options,
		Now:           p.now(),
		StaleAgeYears: p.cfg.StaleAgeYears,
	})
	if parsed.LatestRevenueText != nil {
		if v, ok := jpfin.ParseOkuYen(*parsed.LatestRevenueText); ok {
			meta.RevenueOku = &v
		}
	}
	if parsed.LatestEmployeesText != nil {
		if n, ok := jpfin.ParseEmployees(*parsed.LatestEmployeesText); ok {
			meta.EmployeesN = &n
		}
	}

	check := factcheck.CheckAll(extSources, narrativeOf(parsed), p.now())
	return &Response{Data: parsed, Meta: meta, FactCheck: &check}, nil
}

// narrativeOf joins the free-text fields of a result, the part worth
// screening for hedged language.
func narrativeOf(d *model.CompanyIntel) string {
	var parts []string
	if d.Summary != nil {
		parts = append(parts, *d.Summary)
	}
	if d.RawNotes != nil {
		parts = append(parts, *d.RawNotes)
	}
	return strings.Join(parts, "\n")
}

// crawlInternal fetches the top-scored homepage links concurrently and
// returns the joined page texts. Failures are skipped.
func (p *Pipeline) crawlInternal(ctx context.Context, baseURL, html string) (string, []string) {
	links, err := scrape.HarvestLinks(baseURL, html)
	if err != nil || len(links) == 0 {
		return "", nil
	}
	if len(links) > p.cfg.MaxInternalPages {
		links = links[:p.cfg.MaxInternalPages]
	}

	texts := make([]string, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, link := range links {
		g.Go(func() error {
			page := p.fetch.FetchPage(gctx, link.URL)
			if page.OK && page.Text != "" {
				texts[i] = "(公式HP: " + link.URL + ")\n" + truncate(page.Text, 2500)
			}
			return nil
		})
	}
	_ = g.Wait()

	var chunks []string
	var fetched []string
	for i, t := range texts {
		if t != "" {
			chunks = append(chunks, t)
			fetched = append(fetched, links[i].URL)
		}
	}
	return strings.Join(chunks, "\n\n"), fetched
}

// gatherExternal runs the external search leg when warranted and returns the
// joined candidate page texts plus the per-source records for fact checking.
// Candidates whose text conflicts with the company's registered address are
// dropped from evidence: a same-name company elsewhere is worse than nothing.
func (p *Pipeline) gatherExternal(ctx context.Context, req model.IntelRequest, normalizedURL, nameGuess, officialText string, meta *model.IntelMeta) (string, []factcheck.Source) {
	shouldSearch := p.search != nil &&
		(req.ForceExternalSearch || meta.NeedsEmployee || meta.NeedsRevenue || meta.NeedsLocations)

	if !shouldSearch {
		if req.ForceExternalSearch && p.search == nil {
			return p.gatherKnownSources(ctx, officialText, meta)
		}
		return "", nil
	}

	origin := originOf(normalizedURL)
	qBase := nameGuess
	if qBase == "" {
		qBase = hostnameOf(normalizedURL)
	}
	year := p.now().Year()
	queries := BuildSearchQueries(qBase, year)
	if len(queries) > p.cfg.MaxQueries {
		queries = queries[:p.cfg.MaxQueries]
	}
	meta.Queries = queries

	// Queries run concurrently; a failed query contributes nothing.
	resultLists := make([][]model.WebResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, q := range queries {
		g.Go(func() error {
			results, err := p.search.Search(gctx, q, 6)
			if err != nil {
				zap.L().Warn("external search failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			list := make([]model.WebResult, 0, len(results))
			for _, r := range results {
				list = append(list, model.WebResult{URL: r.URL, Title: r.Title, Description: r.Description})
			}
			resultLists[i] = list
			return nil
		})
	}
	_ = g.Wait()

	var all []model.WebResult
	for _, list := range resultLists {
		all = append(all, list...)
	}
	ranked := RankExternalResults(all, origin, year, p.cfg.MaxExternalPages)

	// Requests sometimes carry a full address but no prefecture field; the
	// conflict guard still needs one.
	prefecture := req.CompanyPrefecture
	if prefecture == "" {
		prefecture = scorer.ExtractPrefecture(req.CompanyAddress)
	}

	type fetchedPage struct {
		chunk  string
		source factcheck.Source
		url    string
	}
	pages := make([]*fetchedPage, len(ranked))
	var mu sync.Mutex
	var discarded []string

	g2, gctx2 := errgroup.WithContext(ctx)
	g2.SetLimit(4)
	for i, r := range ranked {
		g2.Go(func() error {
			page := p.fetch.FetchPage(gctx2, r.URL)
			if !page.OK || page.Text == "" {
				return nil
			}
			if prefecture != "" {
				match := scorer.CheckAddressMatch(prefecture, req.CompanyCity, req.CompanyAddress, page.Text)
				if match.IsAddressConflict {
					mu.Lock()
					discarded = append(discarded, r.URL)
					mu.Unlock()
					zap.L().Info("external candidate discarded on address conflict",
						zap.String("url", r.URL), zap.Int("score", match.Score))
					return nil
				}
			}
			pages[i] = &fetchedPage{
				chunk: "(外部情報: " + r.URL + ")\n(title: " + r.Title + ")\n(desc: " + r.Description + ")\n" +
					truncate(page.Text, 2500),
				source: factcheck.Source{URL: r.URL, Title: r.Title},
				url:    r.URL,
			}
			return nil
		})
	}
	_ = g2.Wait()

	var chunks []string
	var sources []factcheck.Source
	for _, pg := range pages {
		if pg == nil {
			continue
		}
		chunks = append(chunks, pg.chunk)
		sources = append(sources, pg.source)
		meta.ExternalPages = append(meta.ExternalPages, pg.url)
	}
	meta.DiscardedPages = discarded
	return strings.Join(chunks, "\n\n"), sources
}

// gatherKnownSources is the no-search-key fallback: a listed company's stock
// code yields deterministic aggregator URLs.
func (p *Pipeline) gatherKnownSources(ctx context.Context, officialText string, meta *model.IntelMeta) (string, []factcheck.Source) {
	code := jpfin.FindStockCode(officialText)
	if code == "" {
		return "", nil
	}
	meta.StockCode = code
	meta.Method = "known_sources_no_search_api"

	var chunks []string
	var sources []factcheck.Source
	for _, c := range KnownExternalSources(code) {
		page := p.fetch.FetchPage(ctx, c.URL)
		if !page.OK || page.Text == "" {
			continue
		}
		chunks = append(chunks, "(外部情報:"+c.Label+": "+c.URL+")\n"+truncate(page.Text, 3500))
		sources = append(sources, factcheck.Source{URL: c.URL, Title: c.Label})
		meta.ExternalPages = append(meta.ExternalPages, c.URL)
	}
	return strings.Join(chunks, "\n\n"), sources
}

// gatherIR probes conventional IR paths on the official origin and collects
// disclosure PDF links off whatever responds.
func (p *Pipeline) gatherIR(ctx context.Context, normalizedURL string) (string, []string) {
	candidates := scrape.IRCandidateURLs(normalizedURL)
	if len(candidates) > 12 {
		candidates = candidates[:12]
	}

	type irPage struct {
		text string
		pdfs []string
	}
	results := make([]*irPage, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range candidates {
		g.Go(func() error {
			page := p.fetch.FetchPage(gctx, u)
			if !page.OK {
				return nil
			}
			r := &irPage{}
			for _, pdf := range scrape.HarvestPDFLinks(u, page.HTML) {
				if scrape.IsDisclosurePDF(pdf) {
					r.pdfs = append(r.pdfs, pdf)
				}
			}
			if len(page.Text) > 400 {
				r.text = "(IR候補ページ: " + u + ")\n" + truncate(page.Text, 4000)
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	var texts []string
	var pdfs []string
	seen := map[string]bool{}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.text != "" {
			texts = append(texts, r.text)
		}
		for _, pdf := range r.pdfs {
			if !seen[pdf] {
				seen[pdf] = true
				pdfs = append(pdfs, pdf)
			}
		}
	}
	return strings.Join(texts, "\n\n"), pdfs
}

func normalizeWebsiteURL(website string) string {
	if strings.HasPrefix(website, "http://") || strings.HasPrefix(website, "https://") {
		return website
	}
	return "https://" + website
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
