// Package changerequest holds amendment records raised against a baselined
// BOQ: added or revised materials with their procurement pricing. Change
// requests are fetched independently of the planned tree and merged into it
// at read time by the reconciliation engine; they are never written back
// into the BOQ document.
package changerequest

import (
	"errors"
	"time"
)

// Status enumerates the change request approval lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

// PurchaseStatuses are the statuses whose materials count as actual spend.
var PurchaseStatuses = []Status{StatusApproved, StatusCompleted}

// ChangeRequest is one amendment record.
type ChangeRequest struct {
	ID            int64
	Number        string
	BOQID         int64
	ProjectID     int64
	ItemID        int64
	ItemName      string
	Justification string
	Status        Status
	Materials     []MaterialData
	CreatedAt     time.Time
}

// MaterialData is one material row inside a change request.
type MaterialData struct {
	MasterMaterialID *int64  `json:"master_material_id,omitempty"`
	MaterialName     string  `json:"material_name"`
	Unit             string  `json:"unit,omitempty"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	TotalPrice       float64 `json:"total_price"`
}

// Total returns the line total, deriving it from quantity and unit price
// when the stored total is absent.
func (m MaterialData) Total() float64 {
	if m.TotalPrice > 0 {
		return m.TotalPrice
	}
	return m.Quantity * m.UnitPrice
}

var (
	// ErrNotFound indicates the change request is missing.
	ErrNotFound = errors.New("changerequest: not found")
	// ErrDuplicateNumber indicates the CR number already exists for the BOQ.
	ErrDuplicateNumber = errors.New("changerequest: duplicate number")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("changerequest: invalid input")
)
