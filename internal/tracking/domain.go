// Package tracking holds the independently recorded actuals: material
// procurement rows and labour time rows logged against a BOQ while the work
// runs. These records are read-only input to the reconciliation engine.
package tracking

import (
	"encoding/json"
	"errors"
)

// MaterialRecord is one actual procurement tracking row. PurchaseHistory is
// kept raw because two incompatible legacy shapes exist in the data; the
// normalizer in this package decodes both.
type MaterialRecord struct {
	ID               int64
	BOQID            int64
	MasterItemID     int64
	MasterMaterialID *int64
	MaterialName     string
	PurchaseHistory  json.RawMessage
}

// Entries returns the record's purchase history in normalized form.
func (r MaterialRecord) Entries() []PurchaseEntry {
	return NormalizePurchaseHistory(r.PurchaseHistory)
}

// LabourRecord is one actual labour tracking row.
type LabourRecord struct {
	ID             int64
	BOQID          int64
	MasterItemID   int64
	MasterLabourID *int64
	Role           string
	History        []LabourEntry
}

// LabourEntry is one logged unit of labour work.
type LabourEntry struct {
	Hours       float64 `json:"hours"`
	RatePerHour float64 `json:"rate_per_hour"`
	TotalCost   float64 `json:"total_cost"`
	Worker      string  `json:"worker,omitempty"`
	Date        string  `json:"date,omitempty"`
}

// TotalCost sums the labour record's logged costs, deriving hours×rate when
// the stored total is absent.
func (r LabourRecord) TotalCost() float64 {
	var total float64
	for _, e := range r.History {
		if e.TotalCost > 0 {
			total += e.TotalCost
			continue
		}
		total += e.Hours * e.RatePerHour
	}
	return total
}

// TotalHours sums logged hours.
func (r LabourRecord) TotalHours() float64 {
	var total float64
	for _, e := range r.History {
		total += e.Hours
	}
	return total
}

// ErrNotFound indicates no tracking rows exist for the query.
var ErrNotFound = errors.New("tracking: not found")
