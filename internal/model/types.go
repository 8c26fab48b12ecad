package model

// Field is a named scalar datum attached to a security.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// PricingRecord holds the latest reference fields for one security.
type PricingRecord struct {
	Security string  `json:"security"`
	Fields   []Field `json:"fields"`
}

// SecurityValues holds one security's fields within a historical date entry.
type SecurityValues struct {
	Security string  `json:"security"`
	Fields   []Field `json:"fields"`
}

// HistoricalSeries groups values for one date across all requested
// securities.
type HistoricalSeries struct {
	Date   string           `json:"date"`
	Values []SecurityValues `json:"values"`
}

// LatestResult is the payload served for a reference-data request. Errors
// are additive: a result may carry data and errors simultaneously.
type LatestResult struct {
	Response []PricingRecord `json:"response"`
	Errors   []string        `json:"errors"`
}

// HistoricalResult is the payload served for a historical-data request.
type HistoricalResult struct {
	Response []HistoricalSeries `json:"response"`
	Errors   []string           `json:"errors"`
}

// UpdateTypeData tags streaming pricing updates.
const UpdateTypeData = "SUBSCRIPTION_DATA"

// Update is one streaming update pushed to subscribers.
type Update struct {
	Type     string            `json:"type"`
	Security string            `json:"security"`
	Values   map[string]string `json:"values"`
}

// Status reports bridge health to the API surface.
type Status struct {
	Up                bool `json:"up"`
	SubscriptionCount int  `json:"subscriptionCount"`
}
