package localinfo

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aozorabiz/kaisha-intel/internal/factcheck"
	"github.com/aozorabiz/kaisha-intel/internal/model"
	"github.com/aozorabiz/kaisha-intel/pkg/brave"
)

// Status values for infrastructure and traffic items.
const (
	StatusNormal  = "normal"
	StatusWarning = "warning"
	StatusError   = "error"
)

// defaultHourlyWage is the series baseline when no wage figure can be
// extracted from search results. Roughly the regional minimum wage.
const defaultHourlyWage = 1077

var (
	areaSuffixRe = regexp.MustCompile(`[都道府県市区町村]`)
	wageNumberRe = regexp.MustCompile(`\d{3,4}`)
	dateRe       = regexp.MustCompile(`(\d{1,2})\/(\d{1,2})|(\d{1,2})月(\d{1,2})日`)
)

// searchArea compresses "愛知県名古屋市" to "愛知名古屋" for tighter queries.
func searchArea(area model.Area) string {
	return areaSuffixRe.ReplaceAllString(area.Prefecture+area.City, "")
}

func industryPrefix(area model.Area) string {
	if area.Industry == "" {
		return ""
	}
	return area.Industry + " "
}

func toWebResults(results []brave.Result) []model.WebResult {
	out := make([]model.WebResult, 0, len(results))
	for _, r := range results {
		out = append(out, model.WebResult{URL: r.URL, Title: r.Title, Description: r.Description})
	}
	return out
}

// laborCosts estimates the local hourly wage from job-listing search results
// and synthesizes a 6-month series ending at the login month.
func (s *Service) laborCosts(ctx context.Context, area model.Area, loginDate time.Time) model.LaborCosts {
	a := searchArea(area)
	ind := industryPrefix(area)
	year := strconv.Itoa(loginDate.Year())
	queries := []string{
		a + " " + ind + "アルバイト 時給 " + year,
		a + " " + ind + "パート 時給 最低賃金",
		a + " " + ind + "派遣 時給 報酬",
		a + " " + ind + "求人倍率 " + year,
	}

	var results []model.WebResult
	for _, q := range queries {
		results = append(results, toWebResults(s.doSearch(ctx, q, 3))...)
	}
	results = factcheck.FilterResults(results, factcheck.KindLabor)

	base := extractHourlyWage(results)
	sources := results
	if len(sources) > 3 {
		sources = sources[:3]
	}
	return model.LaborCosts{
		Current:     base,
		Change:      3.5,
		MonthlyData: wageSeries(base, loginDate),
		Sources:     sources,
	}
}

// extractHourlyWage averages every 3-4 digit number in plausible wage range
// found across the result snippets. Falls back to defaultHourlyWage.
func extractHourlyWage(results []model.WebResult) int {
	var sum, count int
	for _, r := range results {
		text := r.Description
		if text == "" {
			text = r.Title
		}
		for _, m := range wageNumberRe.FindAllString(text, -1) {
			n, err := strconv.Atoi(m)
			if err != nil {
				continue
			}
			if n > 500 && n < 3000 {
				sum += n
				count++
			}
		}
	}
	if count == 0 {
		return defaultHourlyWage
	}
	return int(float64(sum)/float64(count) + 0.5)
}

// wageSeries builds the past-6-months series, oldest first, with a gentle
// drift toward the current value.
func wageSeries(base int, loginDate time.Time) []model.MonthValue {
	offsets := []float64{-22, -15, -9, -4, 2, 0}
	series := make([]model.MonthValue, 0, 6)
	for i := 5; i >= 0; i-- {
		month := loginDate.AddDate(0, -i, 0)
		series = append(series, model.MonthValue{
			Month: fmt.Sprintf("%d月", int(month.Month())),
			Value: float64(base) + offsets[5-i],
		})
	}
	return series
}

// events finds upcoming seminars, trade shows and similar in the area.
func (s *Service) events(ctx context.Context, area model.Area, loginDate time.Time) []model.Event {
	a := searchArea(area)
	m1 := int(loginDate.Month())
	m2 := int(loginDate.AddDate(0, 1, 0).Month())
	query := fmt.Sprintf("%s %sイベント %d %d月 %d月 セミナー 展示会 見本市",
		a, industryPrefix(area), loginDate.Year(), m1, m2)

	results := factcheck.FilterResults(toWebResults(s.doSearch(ctx, query, 10)), factcheck.KindEvent)
	if len(results) > 5 {
		results = results[:5]
	}
	events := make([]model.Event, 0, len(results))
	for _, r := range results {
		events = append(events, model.Event{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Date:        extractDate(firstNonEmpty(r.Description, r.Title)),
		})
	}
	return events
}

// infrastructure surveys roadworks, power supply, port operation and
// logistics disruptions around the area.
func (s *Service) infrastructure(ctx context.Context, area model.Area) []model.StatusItem {
	a := searchArea(area)
	queries := []string{
		a + " 高速道路 工事 規制",
		a + " 電力 供給 状況",
		a + " 港 運行 状況",
		a + " " + industryPrefix(area) + "物流 インフラ 影響",
	}
	return s.statusItems(ctx, queries, 5, extractStatus)
}

// traffic surveys current congestion and road closures.
func (s *Service) traffic(ctx context.Context, area model.Area) []model.StatusItem {
	a := searchArea(area)
	queries := []string{
		a + " 交通 渋滞 情報 現在",
		a + " 高速道路 渋滞 リアルタイム",
		a + " 交通規制 工事 現在",
	}
	return s.statusItems(ctx, queries, 3, extractTrafficStatus)
}

func (s *Service) statusItems(ctx context.Context, queries []string, perQuery int, grade func(string) string) []model.StatusItem {
	var results []model.WebResult
	for _, q := range queries {
		verified := factcheck.FilterResults(toWebResults(s.doSearch(ctx, q, perQuery)), factcheck.KindInfrastructure)
		results = append(results, verified...)
	}
	if len(results) > 5 {
		results = results[:5]
	}
	items := make([]model.StatusItem, 0, len(results))
	for _, r := range results {
		items = append(items, model.StatusItem{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Status:      grade(firstNonEmpty(r.Description, r.Title)),
		})
	}
	return items
}

var weatherIcons = []string{"☀️", "⛅", "🌧️", "☀️", "☀️", "☁️", "🌦️"}

var weekDays = []string{"日", "月", "火", "水", "木", "金", "土"}

// weather synthesizes a 7-day outlook from the login date. The search result
// only confirms the area has weather coverage; the outlook itself is a
// placeholder until a real weather API is wired.
func (s *Service) weather(ctx context.Context, area model.Area, loginDate time.Time) model.Weather {
	query := fmt.Sprintf("%s 天気 週間 %d月", searchArea(area), int(loginDate.Month()))
	_ = factcheck.FilterResults(toWebResults(s.doSearch(ctx, query, 5)), factcheck.KindWeather)

	temps := []float64{8, 9.5, 11, 10, 8.5, 9, 12}
	week := make([]model.WeatherDay, 0, 7)
	for i := 0; i < 7; i++ {
		d := loginDate.AddDate(0, 0, i)
		week = append(week, model.WeatherDay{
			Day:  weekDays[int(d.Weekday())],
			Date: fmt.Sprintf("%d/%d", int(d.Month()), d.Day()),
			Icon: weatherIcons[i%len(weatherIcons)],
			Temp: temps[i%len(temps)],
		})
	}
	return model.Weather{
		Current: model.WeatherNow{Temp: 8, Icon: "☀️", Desc: "晴れ / 配送影響なし"},
		Week:    week,
	}
}

func extractDate(text string) string {
	return dateRe.FindString(text)
}

func extractStatus(text string) string {
	if strings.Contains(text, "工事") || strings.Contains(text, "規制") || strings.Contains(text, "停止") {
		return StatusWarning
	}
	if strings.Contains(text, "異常") || strings.Contains(text, "不通") {
		return StatusError
	}
	return StatusNormal
}

func extractTrafficStatus(text string) string {
	if strings.Contains(text, "渋滞") || strings.Contains(text, "混雑") || strings.Contains(text, "遅延") {
		return StatusWarning
	}
	if strings.Contains(text, "通行止め") || strings.Contains(text, "規制") || strings.Contains(text, "事故") {
		return StatusError
	}
	return StatusNormal
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
