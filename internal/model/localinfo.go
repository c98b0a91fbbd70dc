package model

import "time"

// Area identifies the region a local-info lookup runs for.
type Area struct {
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Industry   string `json:"industry,omitempty"`
}

// LocalInfo aggregates the dashboard's local business context blocks.
type LocalInfo struct {
	LaborCosts     LaborCosts   `json:"laborCosts"`
	Events         []Event      `json:"events"`
	Infrastructure []StatusItem `json:"infrastructure"`
	Weather        Weather      `json:"weather"`
	Traffic        []StatusItem `json:"traffic"`
}

// LaborCosts holds the hourly-wage estimate and a six-month series.
type LaborCosts struct {
	Current     int          `json:"current"`
	Change      float64      `json:"change"`
	MonthlyData []MonthValue `json:"monthlyData"`
	Sources     []WebResult  `json:"sources"`
}

// MonthValue is one point in the labor cost series.
type MonthValue struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// Event is a regional business event found via search.
type Event struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
}

// StatusItem is an infrastructure or traffic notice with a coarse status.
type StatusItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Status      string `json:"status"` // normal | warning | error
}

// Weather holds current conditions and a seven-day outlook.
type Weather struct {
	Current WeatherNow   `json:"current"`
	Week    []WeatherDay `json:"week"`
}

// WeatherNow is the current weather block.
type WeatherNow struct {
	Temp int    `json:"temp"`
	Icon string `json:"icon"`
	Desc string `json:"desc"`
}

// WeatherDay is one day in the weekly outlook.
type WeatherDay struct {
	Day  string  `json:"day"`
	Date string  `json:"date"`
	Icon string  `json:"icon"`
	Temp float64 `json:"temp"`
}

// DashboardCacheEntry is a cached dashboard payload with its write time.
type DashboardCacheEntry struct {
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
}
