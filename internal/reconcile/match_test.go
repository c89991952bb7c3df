package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/granite-erp/granite-erp/internal/tracking"
)

func TestMatchMaterialPrefersIDWithinItem(t *testing.T) {
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 9, MasterMaterialID: iptr(101), MaterialName: "Cement"},
		{ID: 2, MasterItemID: 1, MasterMaterialID: iptr(101), MaterialName: "Cement"},
	}

	got := MatchMaterial(MaterialKey{MasterItemID: 1, MasterMaterialID: iptr(101), Name: "Cement"}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(2), got.ID)
}

func TestMatchMaterialFallsBackToIDAcrossItems(t *testing.T) {
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 9, MasterMaterialID: iptr(101), MaterialName: "Cement"},
	}

	got := MatchMaterial(MaterialKey{MasterItemID: 1, MasterMaterialID: iptr(101), Name: "Cement"}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.ID)
}

func TestMatchMaterialFindsIDInsidePurchaseHistory(t *testing.T) {
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 1, MaterialName: "Misc Supplies",
			PurchaseHistory: json.RawMessage(`[{"master_material_id":101,"quantity":5,"unit_price":6}]`)},
	}

	got := MatchMaterial(MaterialKey{MasterItemID: 1, MasterMaterialID: iptr(101), Name: "Cement"}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.ID)
}

func TestMatchMaterialByNameOnlyWithoutID(t *testing.T) {
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 1, MaterialName: "  CEMENT "},
	}

	got := MatchMaterial(MaterialKey{MasterItemID: 1, Name: "cement"}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.ID)

	// A planned material that carries an id never matches on the record
	// name; only the history-entry name strategy remains.
	got = MatchMaterial(MaterialKey{MasterItemID: 1, MasterMaterialID: iptr(999), Name: "cement"}, records)
	require.Nil(t, got)
}

func TestMatchMaterialNameInsidePurchaseHistory(t *testing.T) {
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 1, MaterialName: "Misc Supplies",
			PurchaseHistory: json.RawMessage(`[{"material_name":" Cement ","quantity":5,"unit_price":6}]`)},
	}

	got := MatchMaterial(MaterialKey{MasterItemID: 1, MasterMaterialID: iptr(999), Name: "cement"}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.ID)
}

func TestMatchMaterialEarliestStrategyWins(t *testing.T) {
	// Record 3 would match by name, record 2 by id alone, record 1 by id
	// within the item; the cascade must pick record 1.
	records := []tracking.MaterialRecord{
		{ID: 3, MasterItemID: 1, MaterialName: "Cement"},
		{ID: 2, MasterItemID: 9, MasterMaterialID: iptr(101), MaterialName: "Cement"},
		{ID: 1, MasterItemID: 1, MasterMaterialID: iptr(101), MaterialName: "Cement"},
	}

	got := MatchMaterial(MaterialKey{MasterItemID: 1, MasterMaterialID: iptr(101), Name: "Cement"}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.ID)
}

func TestMatchMaterialNoMatch(t *testing.T) {
	records := []tracking.MaterialRecord{
		{ID: 1, MasterItemID: 1, MasterMaterialID: iptr(101), MaterialName: "Cement"},
	}
	require.Nil(t, MatchMaterial(MaterialKey{MasterItemID: 1, MasterMaterialID: iptr(999), Name: "Steel"}, records))
}

func TestMatchLabourCascade(t *testing.T) {
	records := []tracking.LabourRecord{
		{ID: 1, MasterItemID: 9, MasterLabourID: iptr(201), Role: "Mason"},
		{ID: 2, MasterItemID: 1, MasterLabourID: iptr(201), Role: "Mason"},
	}

	got := MatchLabour(LabourKey{MasterItemID: 1, MasterLabourID: iptr(201)}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(2), got.ID)

	got = MatchLabour(LabourKey{MasterItemID: 5, MasterLabourID: iptr(201)}, records)
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.ID)

	require.Nil(t, MatchLabour(LabourKey{MasterItemID: 1}, records), "planned labour without an id never matches")
}
