package scrape

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// linkKeywords weight URL-path and anchor-text hints toward company-profile
// and IR pages. IR outranks everything else; they are where financial figures
// actually live.
var linkKeywords = []struct {
	word   string
	weight int
}{
	{"ir", 6}, {"investor", 6}, {"investors", 6},
	{"company", 5}, {"corporate", 5},
	{"about", 4}, {"profile", 4}, {"overview", 4}, {"outline", 4},
	{"service", 4}, {"product", 4},
	{"business", 3}, {"office", 3}, {"factory", 3}, {"shop", 3}, {"store", 3},
	{"recruit", 2}, {"access", 2}, {"location", 2}, {"history", 2},
}

// jpLinkKeywords score Japanese anchor text the same way.
var jpLinkKeywords = []struct {
	word   string
	weight int
}{
	{"投資家", 6}, {"ir情報", 6}, {"株主", 6},
	{"会社概要", 5}, {"企業情報", 5}, {"会社案内", 5},
	{"事業内容", 4}, {"サービス", 4}, {"製品", 4},
	{"拠点", 3}, {"事業所", 3}, {"工場", 3}, {"店舗", 3},
	{"採用", 2}, {"アクセス", 2}, {"沿革", 2},
}

// maxHarvestedLinks caps how many homepage links get fetched per company.
const maxHarvestedLinks = 10

// ScoredLink is a same-site link harvested from a homepage, ranked by how
// likely it is to carry profile or financial content.
type ScoredLink struct {
	URL   string
	Text  string
	Score int
}

// HarvestLinks parses homepage HTML and returns the best same-host links,
// highest score first, at most maxHarvestedLinks of them. Links scoring zero
// are dropped.
func HarvestLinks(baseURL, html string) ([]ScoredLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: invalid base url %q", baseURL)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse homepage html")
	}

	seen := map[string]bool{}
	var links []ScoredLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := resolveLink(base, href)
		if abs == "" || seen[abs] {
			return
		}
		text := strings.TrimSpace(sel.Text())
		score := scoreLink(abs, text)
		if score == 0 {
			return
		}
		seen[abs] = true
		links = append(links, ScoredLink{URL: abs, Text: text, Score: score})
	})

	sort.SliceStable(links, func(i, j int) bool { return links[i].Score > links[j].Score })
	if len(links) > maxHarvestedLinks {
		links = links[:maxHarvestedLinks]
	}
	return links, nil
}

// HarvestPDFLinks returns absolute PDF links found in html, any host. IR pages
// routinely park disclosure documents on eir-parts.net and similar CDNs, so
// the same-host rule does not apply here.
func HarvestPDFLinks(baseURL, html string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var pdfs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !strings.HasSuffix(strings.ToLower(abs.Path), ".pdf") {
			return
		}
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			pdfs = append(pdfs, s)
		}
	})
	return pdfs
}

// disclosureURLMarkers flag PDF URLs hosted on disclosure infrastructure.
var disclosureURLMarkers = []string{"eir-parts.net/doc/", "/tdnet/", "/yuho_pdf/"}

// disclosureTextKeywords flag anchor/file names of statutory filings.
var disclosureTextKeywords = []string{
	"有価証券報告書", "決算短信", "決算説明", "yuho", "kessan", "tanshin",
}

// IsDisclosurePDF reports whether a PDF link looks like a statutory financial
// filing rather than a brochure.
func IsDisclosurePDF(pdfURL string) bool {
	lower := strings.ToLower(pdfURL)
	for _, m := range disclosureURLMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, kw := range disclosureTextKeywords {
		if strings.Contains(lower, kw) || strings.Contains(pdfURL, kw) {
			return true
		}
	}
	return false
}

// irCandidatePaths are the conventional IR locations to probe directly when a
// homepage exposes no IR link.
var irCandidatePaths = []string{
	"/ir", "/ir/",
	"/investor", "/investors", "/investor-relations", "/investor_relations",
	"/ir/library", "/ir/library/result/", "/ir/library/securities/",
	"/ir/financial/", "/ir/financial/highlight/", "/ir/financial/report/",
	"/ir/ir-library", "/ir/finance", "/ir/financial", "/ir/yuho",
	"/ir/disclosure", "/company/ir",
}

// IRCandidateURLs joins the conventional IR paths onto the site origin.
func IRCandidateURLs(baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil
	}
	origin := base.Scheme + "://" + base.Host
	urls := make([]string, 0, len(irCandidatePaths))
	for _, p := range irCandidatePaths {
		urls = append(urls, origin+p)
	}
	return urls
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if !strings.EqualFold(abs.Host, base.Host) {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func scoreLink(absURL, text string) int {
	lowerURL := strings.ToLower(absURL)
	lowerText := strings.ToLower(text)
	score := 0
	for _, kw := range linkKeywords {
		if containsWord(lowerURL, kw.word) || containsWord(lowerText, kw.word) {
			score += kw.weight
		}
	}
	for _, kw := range jpLinkKeywords {
		if strings.Contains(text, kw.word) || strings.Contains(lowerText, kw.word) {
			score += kw.weight
		}
	}
	return score
}

// containsWord matches word in s on ASCII word boundaries, so "ir" does not
// fire inside "hiring" or "direct".
func containsWord(s, word string) bool {
	for idx := 0; ; {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(s[start-1])
		afterOK := end == len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
