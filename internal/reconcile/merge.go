package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/changerequest"
)

// NormalizeName canonicalises a material or item name for matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MergeChangeRequests projects change requests into the planned tree. Each
// CR material either revises a material the tree already plans (attached as
// the latest CRRevision) or lands in a synthetic "Extra Materials" sub-item
// appended to the target item. The inputs are not mutated; merging the same
// inputs twice yields the same tree.
func MergeChangeRequests(tree boq.PlannedTree, crs []changerequest.ChangeRequest) MergedTree {
	merged := MergedTree{
		Items:              make([]MergedItem, 0, len(tree.Items)),
		DiscountPercentage: tree.DiscountPercentage,
		DiscountAmount:     tree.DiscountAmount,
		Preliminaries:      tree.Preliminaries,
	}
	for _, item := range tree.Items {
		merged.Items = append(merged.Items, copyItem(item))
	}
	if len(merged.Items) == 0 {
		return merged
	}

	index := buildMaterialIndex(merged.Items)

	// Ascending CR id order makes "highest CR id wins" a plain overwrite
	// and keeps the merge deterministic.
	ordered := make([]changerequest.ChangeRequest, len(crs))
	copy(ordered, crs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, cr := range ordered {
		if len(cr.Materials) == 0 {
			continue
		}
		itemIdx := findTargetItem(merged.Items, cr)
		var extra []MergedMaterial
		for _, m := range cr.Materials {
			if existing := index.lookup(itemIdx, m); existing != nil {
				attachRevision(existing, cr.ID, m)
				continue
			}
			extra = append(extra, MergedMaterial{
				MasterMaterialID:  m.MasterMaterialID,
				Name:              m.MaterialName,
				Unit:              m.Unit,
				Quantity:          m.Quantity,
				UnitPrice:         m.UnitPrice,
				TotalPrice:        m.Total(),
				FromChangeRequest: true,
				ChangeRequestID:   cr.ID,
			})
		}
		if len(extra) == 0 {
			continue
		}
		sub := MergedSubItem{
			Name:              fmt.Sprintf("Extra Materials - CR #%d", cr.ID),
			Materials:         extra,
			FromChangeRequest: true,
			ChangeRequestID:   cr.ID,
		}
		merged.Items[itemIdx].SubItems = append(merged.Items[itemIdx].SubItems, sub)
		// Register the appended materials so a later CR touching the same
		// material classifies as a revision, not a second new row.
		subIdx := len(merged.Items[itemIdx].SubItems) - 1
		for i := range merged.Items[itemIdx].SubItems[subIdx].Materials {
			index.register(itemIdx, &merged.Items[itemIdx].SubItems[subIdx].Materials[i])
		}
	}
	return merged
}

func copyItem(item boq.Item) MergedItem {
	out := MergedItem{
		MasterItemID: item.MasterItemID,
		Name:         item.Name,
		SubItems:     make([]MergedSubItem, 0, len(item.SubItems)),
	}
	for _, sub := range item.SubItems {
		materials := make([]MergedMaterial, 0, len(sub.Materials))
		for _, m := range sub.Materials {
			materials = append(materials, MergedMaterial{
				MasterMaterialID: m.MasterMaterialID,
				Name:             m.Name,
				Unit:             m.Unit,
				Quantity:         m.Quantity,
				UnitPrice:        m.UnitPrice,
				TotalPrice:       m.TotalPrice,
			})
		}
		labour := make([]boq.Labour, len(sub.Labour))
		copy(labour, sub.Labour)
		out.SubItems = append(out.SubItems, MergedSubItem{
			Name:                     sub.Name,
			Quantity:                 sub.Quantity,
			Rate:                     sub.Rate,
			BaseTotal:                sub.BaseTotal,
			PerUnitCost:              sub.PerUnitCost,
			ClientRate:               sub.ClientRate,
			MiscPercentage:           sub.MiscPercentage,
			OverheadProfitPercentage: sub.OverheadProfitPercentage,
			TransportPercentage:      sub.TransportPercentage,
			DiscountPercentage:       sub.DiscountPercentage,
			DiscountAmount:           sub.DiscountAmount,
			Materials:                materials,
			Labour:                   labour,
		})
	}
	return out
}

// findTargetItem resolves the item a CR belongs to: master item id match,
// then case-insensitive trimmed name match, then the first item. A CR is
// never dropped for a bad item reference.
func findTargetItem(items []MergedItem, cr changerequest.ChangeRequest) int {
	if cr.ItemID != 0 {
		for i, item := range items {
			if item.MasterItemID == cr.ItemID {
				return i
			}
		}
	}
	if name := NormalizeName(cr.ItemName); name != "" {
		for i, item := range items {
			if NormalizeName(item.Name) == name {
				return i
			}
		}
	}
	return 0
}

// materialIndex resolves CR materials against the materials already present
// in an item's sub-items, keyed by master material id or normalized name.
// When two distinct materials normalize to the same name, the first
// registration wins and later ones are ignored.
type materialIndex struct {
	byKey map[string]*MergedMaterial
}

func buildMaterialIndex(items []MergedItem) *materialIndex {
	idx := &materialIndex{byKey: make(map[string]*MergedMaterial)}
	for i := range items {
		for j := range items[i].SubItems {
			for k := range items[i].SubItems[j].Materials {
				idx.register(i, &items[i].SubItems[j].Materials[k])
			}
		}
	}
	return idx
}

func (idx *materialIndex) register(itemIdx int, m *MergedMaterial) {
	if m.MasterMaterialID != nil {
		key := idKey(itemIdx, *m.MasterMaterialID)
		if _, ok := idx.byKey[key]; !ok {
			idx.byKey[key] = m
		}
	}
	if name := NormalizeName(m.Name); name != "" {
		key := nameKey(itemIdx, name)
		if _, ok := idx.byKey[key]; !ok {
			idx.byKey[key] = m
		}
	}
}

func (idx *materialIndex) lookup(itemIdx int, m changerequest.MaterialData) *MergedMaterial {
	if m.MasterMaterialID != nil {
		if found, ok := idx.byKey[idKey(itemIdx, *m.MasterMaterialID)]; ok {
			return found
		}
	}
	if name := NormalizeName(m.MaterialName); name != "" {
		if found, ok := idx.byKey[nameKey(itemIdx, name)]; ok {
			return found
		}
	}
	return nil
}

func idKey(itemIdx int, id int64) string {
	return "id:" + strconv.Itoa(itemIdx) + ":" + strconv.FormatInt(id, 10)
}

func nameKey(itemIdx int, name string) string {
	return "name:" + strconv.Itoa(itemIdx) + ":" + name
}

// attachRevision keeps the revision with the highest CR id: the latest
// update wins.
func attachRevision(m *MergedMaterial, crID int64, data changerequest.MaterialData) {
	if m.CRUpdate != nil && m.CRUpdate.ChangeRequestID >= crID {
		return
	}
	m.CRUpdate = &CRRevision{
		ChangeRequestID: crID,
		Quantity:        data.Quantity,
		UnitPrice:       data.UnitPrice,
		TotalPrice:      data.Total(),
		// Planned fields stay zero: the baseline holds nothing for spend
		// introduced after it was locked.
	}
}
