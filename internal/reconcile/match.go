package reconcile

import (
	"github.com/granite-erp/granite-erp/internal/tracking"
)

// MaterialKey identifies a planned material line for matching.
type MaterialKey struct {
	MasterItemID     int64
	MasterMaterialID *int64
	Name             string
}

// LabourKey identifies a planned labour line for matching.
type LabourKey struct {
	MasterItemID   int64
	MasterLabourID *int64
}

// materialStrategy resolves a planned material to at most one actual record.
type materialStrategy func(MaterialKey, []tracking.MaterialRecord) *tracking.MaterialRecord

// materialCascade is the fixed strategy order; matching stops at the first
// hit and never scores alternatives.
var materialCascade = []materialStrategy{
	matchMaterialByIDAndItem,
	matchMaterialByID,
	matchMaterialByHistoryID,
	matchMaterialByName,
	matchMaterialByHistoryName,
}

// MatchMaterial resolves a planned material to at most one actual tracking
// record via the ordered strategy cascade.
func MatchMaterial(key MaterialKey, records []tracking.MaterialRecord) *tracking.MaterialRecord {
	for _, strategy := range materialCascade {
		if rec := strategy(key, records); rec != nil {
			return rec
		}
	}
	return nil
}

func matchMaterialByIDAndItem(key MaterialKey, records []tracking.MaterialRecord) *tracking.MaterialRecord {
	if key.MasterMaterialID == nil {
		return nil
	}
	for i := range records {
		rec := &records[i]
		if rec.MasterMaterialID != nil && *rec.MasterMaterialID == *key.MasterMaterialID && rec.MasterItemID == key.MasterItemID {
			return rec
		}
	}
	return nil
}

func matchMaterialByID(key MaterialKey, records []tracking.MaterialRecord) *tracking.MaterialRecord {
	if key.MasterMaterialID == nil {
		return nil
	}
	for i := range records {
		rec := &records[i]
		if rec.MasterMaterialID != nil && *rec.MasterMaterialID == *key.MasterMaterialID {
			return rec
		}
	}
	return nil
}

func matchMaterialByHistoryID(key MaterialKey, records []tracking.MaterialRecord) *tracking.MaterialRecord {
	if key.MasterMaterialID == nil {
		return nil
	}
	for i := range records {
		rec := &records[i]
		for _, entry := range rec.Entries() {
			if entry.MasterMaterialID != nil && *entry.MasterMaterialID == *key.MasterMaterialID {
				return rec
			}
		}
	}
	return nil
}

// matchMaterialByName is only attempted for planned materials that carry no
// master material id.
func matchMaterialByName(key MaterialKey, records []tracking.MaterialRecord) *tracking.MaterialRecord {
	if key.MasterMaterialID != nil {
		return nil
	}
	name := NormalizeName(key.Name)
	if name == "" {
		return nil
	}
	for i := range records {
		rec := &records[i]
		if NormalizeName(rec.MaterialName) == name {
			return rec
		}
	}
	return nil
}

func matchMaterialByHistoryName(key MaterialKey, records []tracking.MaterialRecord) *tracking.MaterialRecord {
	name := NormalizeName(key.Name)
	if name == "" {
		return nil
	}
	for i := range records {
		rec := &records[i]
		for _, entry := range rec.Entries() {
			if NormalizeName(entry.MaterialName) == name {
				return rec
			}
		}
	}
	return nil
}

// MatchLabour resolves a planned labour line to at most one actual record:
// master labour id within the same item first, then the id alone.
func MatchLabour(key LabourKey, records []tracking.LabourRecord) *tracking.LabourRecord {
	if key.MasterLabourID == nil {
		return nil
	}
	for i := range records {
		rec := &records[i]
		if rec.MasterLabourID != nil && *rec.MasterLabourID == *key.MasterLabourID && rec.MasterItemID == key.MasterItemID {
			return rec
		}
	}
	for i := range records {
		rec := &records[i]
		if rec.MasterLabourID != nil && *rec.MasterLabourID == *key.MasterLabourID {
			return rec
		}
	}
	return nil
}
