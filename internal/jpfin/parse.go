// Package jpfin parses financial figures out of Japanese corporate text.
//
// Everything here is heuristic pattern matching over scraped plaintext. The
// pattern order inside ParseOkuYen is load-bearing: compound 億+万 notations
// must win over bare 億 and the 百万円 fallback, or figures like
// "469億8,400万円" silently lose their fractional part.
package jpfin

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Normalize folds full-width digits and latin letters to ASCII and strips
// comma separators, so the numeric patterns below only need ASCII digits.
func Normalize(text string) string {
	folded := width.Fold.String(text)
	return strings.NewReplacer(",", "", "，", "").Replace(folded)
}

var (
	okuHyakumanRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*億\s*(\d+(?:\.\d+)?)\s*百万円`)
	okuManRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*億\s*(\d+(?:\.\d+)?)\s*万`)
	okuYenRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*億円`)
	okuBareRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*億(?:[^0-9円万千百]|$)`)
	hyakumanRe    = regexp.MustCompile(`(\d{1,10}(?:\.\d+)?)\s*百万円`)
	senmanRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*千万円`)
	senRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*千円`)
	manRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*万円`)
	plainYenRe    = regexp.MustCompile(`(\d{10,})\s*円`)
)

// ParseOkuYen extracts a yen figure from text and normalizes it to 億円
// (hundred-million yen). Patterns are tried most-specific first; the first
// match wins. Returns false when nothing matches or the number fails to parse.
func ParseOkuYen(text string) (float64, bool) {
	s := Normalize(text)

	if m := okuHyakumanRe.FindStringSubmatch(s); m != nil {
		oku, err1 := strconv.ParseFloat(m[1], 64)
		hyakuman, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil {
			return 0, false
		}
		if err2 != nil {
			return oku, true
		}
		return oku + hyakuman/100, true
	}

	if m := okuManRe.FindStringSubmatch(s); m != nil {
		oku, err1 := strconv.ParseFloat(m[1], 64)
		man, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil {
			return 0, false
		}
		if err2 != nil {
			return oku, true
		}
		return oku + man/10000, true
	}

	if m := okuYenRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
		return 0, false
	}

	if m := okuBareRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
		return 0, false
	}

	// Sub-億 units only apply when the text never mentions 億 at all;
	// otherwise "1180億1万円"-style strings would misparse on the 万円 leg.
	if !strings.Contains(s, "億") {
		if m := hyakumanRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v / 100, true
			}
			return 0, false
		}
		if m := senmanRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v / 10, true
			}
			return 0, false
		}
		if m := senRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v / 100000, true
			}
			return 0, false
		}
		if m := manRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v / 10000, true
			}
			return 0, false
		}
		if m := plainYenRe.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 1_000_000_000 {
				return v / 100_000_000, true
			}
			return 0, false
		}
	}

	return 0, false
}

var employeesRe = regexp.MustCompile(`(\d{1,7})\s*(?:名|人)`)

// ParseEmployees extracts an employee headcount ("1,234名" / "567人").
func ParseEmployees(text string) (int, bool) {
	s := Normalize(text)
	m := employeesRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

var capitalRe = regexp.MustCompile(`資本金\s*[:：]?\s*(\d+(?:\.\d+)?)\s*(億円|百万円|千万円|万円|円)`)

// ParseCapital extracts the 資本金 figure in yen.
func ParseCapital(text string) (int64, bool) {
	s := Normalize(text)
	m := capitalRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "億円":
		v *= 100_000_000
	case "千万円":
		v *= 10_000_000
	case "百万円":
		v *= 1_000_000
	case "万円":
		v *= 10_000
	}
	return int64(v), true
}

// Stock code patterns, most explicit label first.
var stockCodeRes = []*regexp.Regexp{
	regexp.MustCompile(`証券コード\s*[:：]?\s*(\d{4})`),
	regexp.MustCompile(`銘柄コード\s*[:：]?\s*(\d{4})`),
	regexp.MustCompile(`コード\s*[:：]\s*(\d{4})`),
	regexp.MustCompile(`(?:東証|東京証券取引所|名証|札証|福証)[^\d]{0,10}(\d{4})`),
}

// FindStockCode returns the first 4-digit stock code found in text, or "".
func FindStockCode(text string) string {
	s := Normalize(text)
	for _, re := range stockCodeRes {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

var yearRe = regexp.MustCompile(`(20\d{2})\s*年`)

// ExtractYears returns the distinct 20XX years mentioned in text, newest first.
func ExtractYears(text string) []int {
	s := Normalize(text)
	seen := map[int]bool{}
	var years []int
	for _, m := range yearRe.FindAllStringSubmatch(s, -1) {
		y, err := strconv.Atoi(m[1])
		if err != nil || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	// Insertion sort, descending; the list is tiny.
	for i := 1; i < len(years); i++ {
		for j := i; j > 0 && years[j] > years[j-1]; j-- {
			years[j], years[j-1] = years[j-1], years[j]
		}
	}
	return years
}

// IsStale reports whether the newest year mentioned in text is maxAgeYears or
// more behind nowYear. Text without any year is not stale: absence of a date
// is no evidence of age.
func IsStale(text string, nowYear, maxAgeYears int) bool {
	years := ExtractYears(text)
	if len(years) == 0 {
		return false
	}
	return years[0] <= nowYear-maxAgeYears
}

var companyNameRe = regexp.MustCompile(`(株式会社|有限会社|合同会社)\s*([^\s、。]{2,40})`)

// GuessCompanyName pulls the first 株式会社/有限会社/合同会社-prefixed name from text.
func GuessCompanyName(text string) string {
	m := companyNameRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1]+m[2], " ", "")
}
