package models

type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Summary     string `json:"summary"`
	URL         string `json:"url"`
}

// EconomicEvent is one calendar entry. Impact is "high", "medium" or "low".
type EconomicEvent struct {
	Event    string `json:"event"`
	Country  string `json:"country"`
	Time     string `json:"time"`
	Impact   string `json:"impact"`
	Actual   string `json:"actual"`
	Estimate string `json:"estimate"`
	Previous string `json:"previous"`
}
