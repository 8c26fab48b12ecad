package model

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
)

// HistoricalQuery identifies a historical-data request. Identical queries
// yield identical results for a day, so the query's content hash doubles as
// HTTP ETag and cache key.
type HistoricalQuery struct {
	Securities []string `json:"securities"`
	Fields     []string `json:"fields"`
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
}

// ETag returns the quoted SHA-1 content hash of the query.
func (q HistoricalQuery) ETag() string {
	data, _ := json.Marshal(q)
	sum := sha1.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
