package scorer

import (
	"strings"

	"github.com/aozorabiz/kaisha-intel/internal/jpfin"
)

// ListedResult is the classifier verdict for one company's crawled text.
type ListedResult struct {
	IsListed   bool     `json:"isListed"`
	Confidence string   `json:"confidence"` // "high" | "medium" | "low" | "none"
	Score      int      `json:"score"`
	StockCode  string   `json:"stockCode,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
}

// marketMentions are exchange and listing phrases, each worth one
// MarketMention score when present.
var marketMentions = []string{
	"東京証券取引所",
	"東証プライム",
	"東証スタンダード",
	"東証グロース",
	"名古屋証券取引所",
	"札幌証券取引所",
	"福岡証券取引所",
	"上場企業",
	"上場会社",
}

// irIndicators mark IR pages in link URLs or page text. Matching any one of
// them scores IRIndicator, at most once.
var irIndicators = []string{
	"/ir/", "/ir", "/investor", "投資家情報", "ir情報", "株主・投資家", "irライブラリ",
}

// disclosureKeywords are statutory-filing terms, each worth one Disclosure
// score when present.
var disclosureKeywords = []string{
	"有価証券報告書",
	"決算短信",
	"決算説明資料",
	"edinet",
	"tdnet",
	"適時開示",
	"株主総会招集通知",
}

// DetectListed classifies whether the company behind text and links is a
// listed company. Scoring is additive over fixed signals; the verdict is a
// threshold tiering of the total. Deterministic: same text, same answer.
func DetectListed(text string, links []string, weights ListedWeights) ListedResult {
	res := ListedResult{Confidence: "none"}
	lower := strings.ToLower(text)

	if code := jpfin.FindStockCode(text); code != "" {
		res.StockCode = code
		res.Score += weights.StockCode
		res.Evidence = append(res.Evidence, "証券コード "+code)
	}

	for _, m := range marketMentions {
		if strings.Contains(text, m) {
			res.Score += weights.MarketMention
			res.Evidence = append(res.Evidence, m)
		}
	}

	if hasIRIndicator(lower, links) {
		res.Score += weights.IRIndicator
		res.Evidence = append(res.Evidence, "IRページ")
	}

	for _, kw := range disclosureKeywords {
		if strings.Contains(lower, kw) || strings.Contains(text, kw) {
			res.Score += weights.Disclosure
			res.Evidence = append(res.Evidence, kw)
		}
	}

	if capital, ok := jpfin.ParseCapital(text); ok && capital >= 100_000_000 {
		res.Score += weights.LargeCapital
		res.Evidence = append(res.Evidence, "資本金1億円以上")
	}
	if emp, ok := jpfin.ParseEmployees(text); ok && emp >= 1000 {
		res.Score += weights.ManyEmployees
		res.Evidence = append(res.Evidence, "従業員1000名以上")
	}

	switch {
	case res.Score >= weights.HighThreshold:
		res.IsListed, res.Confidence = true, "high"
	case res.Score >= weights.MediumThreshold:
		res.IsListed, res.Confidence = true, "medium"
	case res.Score >= weights.LowThreshold:
		res.IsListed, res.Confidence = true, "low"
	}
	return res
}

func hasIRIndicator(lowerText string, links []string) bool {
	for _, ind := range irIndicators {
		if strings.Contains(lowerText, ind) {
			return true
		}
	}
	for _, link := range links {
		lower := strings.ToLower(link)
		for _, ind := range irIndicators {
			if strings.Contains(lower, ind) {
				return true
			}
		}
	}
	return false
}
