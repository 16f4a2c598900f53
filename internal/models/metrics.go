package models

import "strings"

// Metric is one of the closed set of campaign performance metrics the
// evaluator understands.
type Metric string

const (
	MetricGMV         Metric = "gmv"
	MetricOrderCount  Metric = "order_count"
	MetricROI         Metric = "roi"
	MetricClicks      Metric = "clicks"
	MetricCost        Metric = "cost"
	MetricCPC         Metric = "cpc"
	MetricCTR         Metric = "ctr"
	MetricImpressions Metric = "impressions"
	MetricViews       Metric = "views"
	MetricCPM         Metric = "cpm"
	MetricBalance     Metric = "balance"
	MetricDailyBudget Metric = "daily_budget"
)

// ParseMetric maps a stored metric name, camelCase spellings included, to
// the closed metric set.
func ParseMetric(s string) (Metric, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gmv":
		return MetricGMV, true
	case "order_count", "ordercount", "orders":
		return MetricOrderCount, true
	case "roi", "roas":
		return MetricROI, true
	case "clicks":
		return MetricClicks, true
	case "cost", "spend":
		return MetricCost, true
	case "cpc":
		return MetricCPC, true
	case "ctr":
		return MetricCTR, true
	case "impressions":
		return MetricImpressions, true
	case "views":
		return MetricViews, true
	case "cpm":
		return MetricCPM, true
	case "balance":
		return MetricBalance, true
	case "daily_budget", "dailybudget", "budget":
		return MetricDailyBudget, true
	default:
		return "", false
	}
}

// Snapshot holds one campaign's metric values for one evaluation cycle.
// Sourced fresh from the metrics query service each cycle, never persisted
// by the engine.
type Snapshot map[Metric]float64

// Value looks up a metric in the snapshot.
func (s Snapshot) Value(m Metric) (float64, bool) {
	v, ok := s[m]
	return v, ok
}

// DailyBudget returns the campaign's current daily budget, with a second
// return reporting whether the metrics response contained one. Callers
// must treat a missing budget as a loud fallback, not a silent zero.
func (s Snapshot) DailyBudget() (float64, bool) {
	return s.Value(MetricDailyBudget)
}

// Credentials is the external access material resolved per store before
// any metrics or control call. The engine only carries it; issuance and
// refresh are external.
type Credentials struct {
	StoreID     string `json:"store_id"`
	AccessToken string `json:"access_token"`
	Region      string `json:"region,omitempty"`
}
