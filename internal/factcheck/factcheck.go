// Package factcheck scores the trustworthiness of search-derived and
// LLM-derived data before it reaches users. Scores are 0-100 and map onto
// coarse levels; nothing here blocks a response, it only annotates it.
package factcheck

import (
	"fmt"
	"strings"
	"time"
)

// Level buckets a confidence score.
type Level string

const (
	LevelVerified   Level = "verified"   // >= 90
	LevelHigh       Level = "high"       // >= 75
	LevelMedium     Level = "medium"     // >= 50
	LevelLow        Level = "low"        // >= 25
	LevelUnverified Level = "unverified" // < 25
)

// Result is the outcome of one fact-check run.
type Result struct {
	Passed     bool      `json:"passed"`
	Confidence int       `json:"confidence"` // 0-100
	Level      Level     `json:"level"`
	Checks     []Item    `json:"checks"`
	Summary    string    `json:"summary"`
	Timestamp  time.Time `json:"timestamp"`
}

// Item is a single check within a Result.
type Item struct {
	Category   string `json:"category"`
	Field      string `json:"field"`
	Passed     bool   `json:"passed"`
	Message    string `json:"message"`
	Severity   string `json:"severity"` // "info" | "warning" | "error"
	Suggestion string `json:"suggestion,omitempty"`
}

// Source is one evidence source behind a claim.
type Source struct {
	URL   string
	Title string
	Date  time.Time // zero when unknown
}

func levelFor(confidence int) Level {
	switch {
	case confidence >= 90:
		return LevelVerified
	case confidence >= 75:
		return LevelHigh
	case confidence >= 50:
		return LevelMedium
	case confidence >= 25:
		return LevelLow
	default:
		return LevelUnverified
	}
}

// trustedDomains mark official bodies and major media.
var trustedDomains = []string{
	"go.jp", "or.jp", "ac.jp",
	"gov", "edu", "org",
	"nikkei.com", "nhk.or.jp", "asahi.com", "yomiuri.co.jp",
	"reuters.com", "bloomberg.com", "wsj.com",
}

// freshnessWindow is how old a source may be and still count as current.
const freshnessWindow = 365 * 24 * time.Hour

// CheckSources scores the evidence sources behind an extraction: domain
// trust, freshness, and source count. An empty source list yields an
// unverified result.
func CheckSources(sources []Source, now time.Time) Result {
	checks, totalScore, checkCount := sourceChecks(sources, now)
	return finish(checks, totalScore, checkCount, now)
}

func sourceChecks(sources []Source, now time.Time) ([]Item, int, int) {
	var checks []Item
	totalScore, checkCount := 0, 0

	if len(sources) > 0 {
		checkCount++
		trusted := 0
		for _, s := range sources {
			if isTrustedURL(s.URL) {
				trusted++
			}
		}
		if trusted > 0 {
			score := trusted*100/len(sources) + 30
			if score > 100 {
				score = 100
			}
			totalScore += score
			checks = append(checks, Item{
				Category: "検索結果", Field: "sources", Passed: true, Severity: "info",
				Message: fmt.Sprintf("%d件の信頼性の高いソースが含まれています", trusted),
			})
		} else {
			totalScore += 30
			checks = append(checks, Item{
				Category: "検索結果", Field: "sources", Passed: false, Severity: "warning",
				Message:    "信頼性の高いソースが見つかりませんでした",
				Suggestion: "公的機関や主要メディアのソースを確認してください",
			})
		}

		checkCount++
		fresh := 0
		for _, s := range sources {
			if !s.Date.IsZero() && now.Sub(s.Date) <= freshnessWindow {
				fresh++
			}
		}
		if fresh > 0 {
			totalScore += 100
			checks = append(checks, Item{
				Category: "検索結果", Field: "freshness", Passed: true, Severity: "info",
				Message: fmt.Sprintf("%d件の最新情報（1年以内）が含まれています", fresh),
			})
		} else {
			totalScore += 50
			checks = append(checks, Item{
				Category: "検索結果", Field: "freshness", Passed: false, Severity: "warning",
				Message:    "最新の情報が見つかりませんでした",
				Suggestion: "情報の日付を確認し、最新の情報を参照してください",
			})
		}
	}

	if len(sources) >= 2 {
		checkCount++
		totalScore += 80
		checks = append(checks, Item{
			Category: "検索結果", Field: "multiSource", Passed: true, Severity: "info",
			Message: fmt.Sprintf("%d件の複数ソースから情報を取得しています", len(sources)),
		})
	}

	return checks, totalScore, checkCount
}

// uncertainPhrases flag hedged LLM output.
var uncertainPhrases = []string{
	"おそらく", "可能性がある", "思われる", "かもしれない",
	"probably", "might be", "could be", "possibly",
}

// CheckExtraction scores an LLM extraction: hedged language in the content
// lowers confidence.
func CheckExtraction(content string, now time.Time) Result {
	checks, totalScore, checkCount := extractionChecks(content)
	return finish(checks, totalScore, checkCount, now)
}

// CheckAll combines the source checks and the extraction checks into one
// result, the shape the intel response carries.
func CheckAll(sources []Source, content string, now time.Time) Result {
	checks, totalScore, checkCount := sourceChecks(sources, now)
	ec, es, en := extractionChecks(content)
	return finish(append(checks, ec...), totalScore+es, checkCount+en, now)
}

func extractionChecks(content string) ([]Item, int, int) {
	var checks []Item
	totalScore, checkCount := 0, 0

	if content != "" {
		checkCount++
		lower := strings.ToLower(content)
		uncertain := false
		for _, p := range uncertainPhrases {
			if strings.Contains(lower, strings.ToLower(p)) {
				uncertain = true
				break
			}
		}
		if !uncertain {
			totalScore += 100
			checks = append(checks, Item{
				Category: "AI結果", Field: "certainty", Passed: true, Severity: "info",
				Message: "断定的な表現が使用されています",
			})
		} else {
			totalScore += 70
			checks = append(checks, Item{
				Category: "AI結果", Field: "certainty", Passed: false, Severity: "warning",
				Message:    "不確実な表現が含まれています",
				Suggestion: "情報の確実性を確認してください",
			})
		}
	}

	return checks, totalScore, checkCount
}

func finish(checks []Item, totalScore, checkCount int, now time.Time) Result {
	confidence := 0
	if checkCount > 0 {
		confidence = (totalScore + checkCount/2) / checkCount
		if confidence > 100 {
			confidence = 100
		}
	}
	failed := 0
	for _, c := range checks {
		if !c.Passed {
			failed++
		}
	}
	passed := failed == 0 && checkCount > 0

	summary := fmt.Sprintf("%d件の項目に注意が必要です", failed)
	if passed {
		summary = fmt.Sprintf("%d件のチェックをすべてパスしました", checkCount)
	}
	return Result{
		Passed:     passed,
		Confidence: confidence,
		Level:      levelFor(confidence),
		Checks:     checks,
		Summary:    summary,
		Timestamp:  now,
	}
}

func isTrustedURL(url string) bool {
	for _, d := range trustedDomains {
		if strings.Contains(url, d) {
			return true
		}
	}
	return false
}
