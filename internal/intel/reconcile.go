package intel

import (
	"fmt"
	"regexp"
	"time"

	"github.com/aozorabiz/kaisha-intel/internal/jpfin"
	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// maxExtraBullets caps the advisory bullet list shown to the user.
const maxExtraBullets = 12

var (
	looseRevenueRe   = regexp.MustCompile(`(\d[\d,]{2,8})\s*百万円`)
	looseEmployeesRe = regexp.MustCompile(`(\d[\d,]{1,7})\s*(?:名|人)`)
)

// reconcileInput bundles everything reconcile needs beyond the LLM output.
type reconcileInput struct {
	Facts         *model.FinancialFacts
	FactsSource   string
	OfficialText  string // homepage text, pre-crawl
	IRText        string
	ExternalText  string
	Opts          model.IntelOptions
	Now           time.Time
	StaleAgeYears int
}

// reconcile applies the post-LLM fix-up policy to parsed, in place:
//
//  1. Disclosure-document facts always beat both the LLM's fields and any
//     heuristic scan; their parsed figures are re-bucketed into the caller's
//     ranges.
//  2. annualRevenue must be an exact member of the caller's range list;
//     anything else is re-derived or nulled, never passed through.
//  3. When only stale external text backs the figures and no document fact
//     exists, both form fields are nulled and the user is warned. Old data
//     is worse than no data in a form that looks authoritative.
//  4. A loose scan of the raw text fills advisory bullets, and primary
//     fields only when still empty.
func reconcile(parsed *model.CompanyIntel, in reconcileInput) {
	var factBullets []string

	var revenueOku *float64
	var employeesN *int
	if in.Facts != nil {
		if in.Facts.RevenueText != nil {
			if v, ok := jpfin.ParseOkuYen(*in.Facts.RevenueText); ok {
				revenueOku = &v
			}
			parsed.LatestRevenueText = in.Facts.RevenueText
			factBullets = append(factBullets, "売上高(最新): "+*in.Facts.RevenueText+factsSourceNote(in.FactsSource))
		}
		if in.Facts.EmployeesText != nil {
			if n, ok := jpfin.ParseEmployees(*in.Facts.EmployeesText); ok {
				employeesN = &n
			}
			parsed.LatestEmployeesText = in.Facts.EmployeesText
			factBullets = append(factBullets, "従業員数(最新): "+*in.Facts.EmployeesText+factsSourceNote(in.FactsSource))
		}
	}
	if in.FactsSource != "" {
		src := in.FactsSource
		parsed.LatestFactsSource = &src
	}

	if revenueOku != nil && len(in.Opts.RevenueRanges) > 0 {
		if mapped := MapRevenueToRange(*revenueOku, in.Opts.RevenueRanges); mapped != "" {
			parsed.AnnualRevenue = &mapped
		}
	}
	if employeesN != nil && len(in.Opts.EmployeeRanges) > 0 {
		if mapped := MapEmployeesToRange(*employeesN, in.Opts.EmployeeRanges); mapped != "" {
			parsed.EmployeeCount = &mapped
		}
	}

	// The LLM is told to return an exact candidate string, but it drifts.
	// Anything off-list is re-derived from its own latest-revenue text, or
	// dropped.
	if parsed.AnnualRevenue != nil && !IsExactRange(*parsed.AnnualRevenue, in.Opts.RevenueRanges) {
		replaced := false
		if parsed.LatestRevenueText != nil {
			if v, ok := jpfin.ParseOkuYen(*parsed.LatestRevenueText); ok {
				if mapped := MapRevenueToRange(v, in.Opts.RevenueRanges); mapped != "" {
					parsed.AnnualRevenue = &mapped
					replaced = true
				}
			}
		}
		if !replaced {
			if v, ok := jpfin.ParseOkuYen(*parsed.AnnualRevenue); ok {
				if mapped := MapRevenueToRange(v, in.Opts.RevenueRanges); mapped != "" {
					parsed.AnnualRevenue = &mapped
					replaced = true
				}
			}
		}
		if !replaced {
			parsed.AnnualRevenue = nil
		}
	}
	if parsed.EmployeeCount != nil && !IsExactRange(*parsed.EmployeeCount, in.Opts.EmployeeRanges) {
		replaced := false
		if n, ok := jpfin.ParseEmployees(*parsed.EmployeeCount); ok {
			if mapped := MapEmployeesToRange(n, in.Opts.EmployeeRanges); mapped != "" {
				parsed.EmployeeCount = &mapped
				replaced = true
			}
		}
		if !replaced {
			parsed.EmployeeCount = nil
		}
	}

	// Stale-external guard: external text whose newest year is two or more
	// behind, with no document fact to back it, must not fill the form.
	if in.FactsSource == "" && in.ExternalText != "" &&
		jpfin.IsStale(in.ExternalText, in.Now.Year(), in.StaleAgeYears) {
		parsed.AnnualRevenue = nil
		parsed.EmployeeCount = nil
		warn := "外部情報の数値が最新であることを確認できないためフォーム入力は未設定にしました（要確認）"
		if years := jpfin.ExtractYears(in.ExternalText); len(years) > 0 {
			warn = fmt.Sprintf("外部情報の数値は%d年の記載が中心で、最新であることを確認できないためフォーム入力は未設定にしました（要確認）", years[0])
		}
		parsed.ExtraBullets = capBullets(append([]string{warn}, parsed.ExtraBullets...))
	}

	// Loose scan: text fragments only, flagged as 参考 (reference), because
	// matching a bare 百万円/名 pattern without its label is guesswork.
	if in.Facts == nil || in.Facts.RevenueText == nil || in.Facts.EmployeesText == nil {
		combined := in.OfficialText + "\n" + in.IRText
		if (in.Facts == nil || in.Facts.RevenueText == nil) && parsed.LatestRevenueText == nil {
			if m := looseRevenueRe.FindStringSubmatch(combined); m != nil {
				txt := m[1] + "百万円"
				parsed.LatestRevenueText = &txt
				factBullets = append(factBullets, "売上高(参考): "+txt)
				if parsed.AnnualRevenue == nil && len(in.Opts.RevenueRanges) > 0 {
					if v, ok := jpfin.ParseOkuYen(txt); ok {
						if mapped := MapRevenueToRange(v, in.Opts.RevenueRanges); mapped != "" {
							parsed.AnnualRevenue = &mapped
						}
					}
				}
			}
		}
		if (in.Facts == nil || in.Facts.EmployeesText == nil) && parsed.LatestEmployeesText == nil {
			if m := looseEmployeesRe.FindStringSubmatch(combined); m != nil {
				txt := m[1] + "名"
				parsed.LatestEmployeesText = &txt
				factBullets = append(factBullets, "従業員数(参考): "+txt)
				if parsed.EmployeeCount == nil && len(in.Opts.EmployeeRanges) > 0 {
					if n, ok := jpfin.ParseEmployees(txt); ok {
						if mapped := MapEmployeesToRange(n, in.Opts.EmployeeRanges); mapped != "" {
							parsed.EmployeeCount = &mapped
						}
					}
				}
			}
		}
	}

	var evidence []string
	if in.Facts != nil {
		for _, l := range in.Facts.EvidenceLines {
			if l != "" {
				evidence = append(evidence, l)
			}
		}
	}
	merged := make([]string, 0, len(factBullets)+len(evidence)+len(parsed.ExtraBullets))
	merged = append(merged, factBullets...)
	merged = append(merged, evidence...)
	merged = append(merged, parsed.ExtraBullets...)
	parsed.ExtraBullets = capBullets(merged)
}

func capBullets(bullets []string) []string {
	var out []string
	for _, b := range bullets {
		if b == "" {
			continue
		}
		out = append(out, b)
		if len(out) == maxExtraBullets {
			break
		}
	}
	return out
}

func factsSourceNote(source string) string {
	if source == "" {
		return ""
	}
	return "（決算短信/有報）"
}
