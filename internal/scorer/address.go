package scorer

import (
	"regexp"
	"strings"
)

// prefectures lists all 47, longest-first look-up not needed since names never
// prefix each other.
var prefectures = []string{
	"北海道", "青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県", "岐阜県",
	"静岡県", "愛知県", "三重県", "滋賀県", "京都府", "大阪府", "兵庫県",
	"奈良県", "和歌山県", "鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県", "福岡県", "佐賀県", "長崎県",
	"熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県",
}

// AddressMatch is the signed-score comparison between a company's registered
// address and a candidate page's text.
type AddressMatch struct {
	Score             int      `json:"score"`
	IsAddressConflict bool     `json:"isAddressConflict"`
	Reasons           []string `json:"reasons,omitempty"`
}

var cityRe = regexp.MustCompile(`[一-龠ぁ-んァ-ヶー]{1,8}[市区町村]`)

// CheckAddressMatch scores how well candidate text agrees with the target
// company address. A strongly negative score driven by an explicit prefecture
// mismatch marks the candidate as conflicting; callers must then drop it from
// evidence. This is the guard against same-name-different-company pages when
// enriching from external search.
func CheckAddressMatch(targetPrefecture, targetCity, targetAddress, text string) AddressMatch {
	var m AddressMatch

	if targetPrefecture != "" {
		switch {
		case strings.Contains(text, targetPrefecture):
			m.Score += 40
			m.Reasons = append(m.Reasons, "都道府県一致: "+targetPrefecture)
		case containsOtherPrefecture(text, targetPrefecture):
			m.Score -= 50
			m.Reasons = append(m.Reasons, "都道府県不一致")
		}
	}

	if targetCity != "" {
		cities := cityRe.FindAllString(text, -1)
		switch {
		case strings.Contains(text, targetCity):
			m.Score += 30
			m.Reasons = append(m.Reasons, "市区町村一致: "+targetCity)
		case len(cities) > 0:
			m.Score -= 30
			m.Reasons = append(m.Reasons, "市区町村不一致")
		}
	}

	for _, tok := range addressTokens(targetAddress, targetPrefecture, targetCity) {
		if strings.Contains(text, tok) {
			m.Score += 10
			m.Reasons = append(m.Reasons, "住所トークン一致: "+tok)
			break
		}
	}

	m.IsAddressConflict = m.Score < -30 && hasReason(m.Reasons, "都道府県不一致")
	return m
}

// ExtractPrefecture returns the first prefecture named in text, or "".
func ExtractPrefecture(text string) string {
	best, bestIdx := "", -1
	for _, p := range prefectures {
		if i := strings.Index(text, p); i >= 0 && (bestIdx < 0 || i < bestIdx) {
			best, bestIdx = p, i
		}
	}
	return best
}

func containsOtherPrefecture(text, target string) bool {
	for _, p := range prefectures {
		if p != target && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

var tokenSplitRe = regexp.MustCompile(`[\s0-9０-９\-−ー－丁目番地号,、]+`)

// addressTokens chops the street part of the address into matchable chunks,
// dropping the prefecture/city prefix and anything shorter than 2 runes.
func addressTokens(address, prefecture, city string) []string {
	s := strings.TrimSpace(address)
	s = strings.TrimPrefix(s, prefecture)
	s = strings.TrimPrefix(s, city)
	var toks []string
	for _, t := range tokenSplitRe.Split(s, -1) {
		if len([]rune(t)) >= 2 {
			toks = append(toks, t)
		}
	}
	return toks
}

func hasReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
