package tracking

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// PurchaseEntry is one procurement transaction in uniform shape, regardless
// of which legacy shape it was stored in.
type PurchaseEntry struct {
	MasterMaterialID *int64  `json:"master_material_id,omitempty"`
	MaterialName     string  `json:"material_name,omitempty"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	TotalPrice       float64 `json:"total_price"`
	Unit             string  `json:"unit,omitempty"`
	PurchasedBy      string  `json:"purchased_by,omitempty"`
	PurchasedAt      string  `json:"purchased_at,omitempty"`
}

// Total returns the entry total, deriving quantity×unit price when the
// stored total is absent.
func (e PurchaseEntry) Total() float64 {
	if e.TotalPrice > 0 {
		return e.TotalPrice
	}
	return e.Quantity * e.UnitPrice
}

// NormalizePurchaseHistory decodes a purchase_history value of either legacy
// shape into a flat entry list:
//
//   - a plain list of purchase entries, or
//   - a mapping holding a "materials" list plus zero or more sibling keys
//     (such as "new_material") whose values are single-entry mappings.
//
// Malformed input never fails: unrecognized shapes yield an empty list and
// unknown or non-numeric fields decode to zero.
func NormalizePurchaseHistory(raw json.RawMessage) []PurchaseEntry {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '[':
		return decodeEntryList(trimmed)
	case '{':
		return decodeLegacyMapping(trimmed)
	default:
		return nil
	}
}

func decodeEntryList(raw []byte) []PurchaseEntry {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil
	}
	entries := make([]PurchaseEntry, 0, len(elements))
	for _, element := range elements {
		if entry, ok := decodeEntry(element); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func decodeLegacyMapping(raw []byte) []PurchaseEntry {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	var entries []PurchaseEntry
	if materials, ok := fields["materials"]; ok {
		entries = append(entries, decodeEntryList(materials)...)
	}
	// Stray sibling keys hold single-purchase records from the oldest data.
	// Sorted key order keeps the output deterministic.
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "materials" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if entry, ok := decodeEntry(fields[key]); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// decodeEntry accepts a JSON object and reports whether it looks like a
// purchase record at all (any of the known value fields present).
func decodeEntry(raw json.RawMessage) (PurchaseEntry, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return PurchaseEntry{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return PurchaseEntry{}, false
	}
	recognized := false
	for _, key := range []string{"quantity", "unit_price", "total_price", "material_name", "master_material_id"} {
		if _, ok := fields[key]; ok {
			recognized = true
			break
		}
	}
	if !recognized {
		return PurchaseEntry{}, false
	}
	var wire struct {
		MasterMaterialID looseID    `json:"master_material_id"`
		MaterialName     string     `json:"material_name"`
		Quantity         looseFloat `json:"quantity"`
		UnitPrice        looseFloat `json:"unit_price"`
		TotalPrice       looseFloat `json:"total_price"`
		Unit             string     `json:"unit"`
		PurchasedBy      string     `json:"purchased_by"`
		PurchasedAt      string     `json:"purchased_at"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return PurchaseEntry{}, false
	}
	return PurchaseEntry{
		MasterMaterialID: wire.MasterMaterialID.value,
		MaterialName:     wire.MaterialName,
		Quantity:         float64(wire.Quantity),
		UnitPrice:        float64(wire.UnitPrice),
		TotalPrice:       float64(wire.TotalPrice),
		Unit:             wire.Unit,
		PurchasedBy:      wire.PurchasedBy,
		PurchasedAt:      wire.PurchasedAt,
	}, true
}

// looseFloat tolerates numbers stored as JSON numbers, numeric strings, or
// garbage; anything unparseable decodes to zero.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = looseFloat(parsed)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		*f = 0
		return nil
	}
	*f = looseFloat(v)
	return nil
}

// looseID tolerates ids stored as numbers or numeric strings; anything else
// decodes to nil.
type looseID struct {
	value *int64
}

func (id *looseID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		id.value = nil
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			id.value = nil
			return nil
		}
		parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			id.value = nil
			return nil
		}
		id.value = &parsed
		return nil
	}
	var v int64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		id.value = nil
		return nil
	}
	id.value = &v
	return nil
}
