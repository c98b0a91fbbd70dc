package factcheck

import (
	"strings"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

// Kind selects the per-topic relevance keywords for FilterResults.
type Kind string

const (
	KindLabor          Kind = "labor"
	KindEvent          Kind = "event"
	KindInfrastructure Kind = "infrastructure"
	KindWeather        Kind = "weather"
)

var spamKeywords = []string{
	"広告", "advertisement", "sponsored", "click here", "今すぐ", "無料体験", "限定",
}

var suspiciousDomains = []string{"bit.ly", "tinyurl", "goo.gl", "adf.ly"}

var kindKeywords = map[Kind][]string{
	KindLabor: {
		"時給", "賃金", "給与", "報酬", "アルバイト", "パート", "派遣", "最低賃金", "求人", "雇用",
	},
	KindEvent: {
		"イベント", "セミナー", "展示会", "見本市", "フォーラム", "カンファレンス", "シンポジウム", "勉強会",
	},
	KindInfrastructure: {
		"高速", "道路", "工事", "規制", "電力", "供給", "港", "運行", "交通", "物流", "インフラ",
	},
	KindWeather: {
		"天気", "気温", "降水", "晴れ", "雨", "雪", "気象", "天候", "予報",
	},
}

// FilterResults drops empty, spammy, link-shortened and off-topic search
// results. Run it on every search result set before anything is shown to a
// user or averaged into a number.
func FilterResults(results []model.WebResult, kind Kind) []model.WebResult {
	if len(results) == 0 {
		return nil
	}
	keywords := kindKeywords[kind]
	var kept []model.WebResult
	for _, r := range results {
		if r.Title == "" && r.Description == "" {
			continue
		}
		text := strings.ToLower(r.Title + " " + r.Description)
		if containsAny(text, spamKeywords) {
			continue
		}
		if r.URL != "" && containsAny(r.URL, suspiciousDomains) {
			continue
		}
		if len(keywords) > 0 && !containsAny(text, keywords) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) || strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
