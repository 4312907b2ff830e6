package models

import (
	"time"
)

// TrendSnapshot is one derived point of a trend series. Never persisted.
type TrendSnapshot struct {
	Timestamp   time.Time          `json:"timestamp"`
	Counts      map[string]int64   `json:"counts"`
	Percentages map[string]float64 `json:"percentages"`
}
