// Package remap provides the label renumber/remap collaborator: dense
// renumbering of a label alphabet, table-driven remapping, and the
// component-to-original-value map used by the hole-filling assembler.
package remap

import (
	"fmt"

	"volmorph/pkg/volume"
)

// Renumber maps the distinct values of a volume onto dense uint32 ids in
// order of first appearance, with 0 fixed to 0. It returns the renumbered
// volume, the table from id back to the original value (index 0 holds 0),
// and the number of nonzero ids.
func Renumber[T volume.Label](vol *volume.Volume[T]) (*volume.Volume[uint32], []T, int) {
	out := &volume.Volume[uint32]{
		Data: make([]uint32, len(vol.Data)),
		Sx:   vol.Sx,
		Sy:   vol.Sy,
		Sz:   vol.Sz,
	}
	forward := make(map[T]uint32)
	table := []T{0}
	for i, val := range vol.Data {
		if val == 0 {
			continue
		}
		id, ok := forward[val]
		if !ok {
			table = append(table, val)
			id = uint32(len(table) - 1)
			forward[val] = id
		}
		out.Data[i] = id
	}
	return out, table, len(table) - 1
}

// Apply rewrites a volume through a remap table. Values absent from the
// table pass through unchanged, so the table is total. When inPlace is set
// the input buffer is reused.
func Apply[T volume.Label](vol *volume.Volume[T], table map[T]T, inPlace bool) *volume.Volume[T] {
	out := vol
	if !inPlace {
		out = vol.Clone()
	}
	for i, val := range out.Data {
		if mapped, ok := table[val]; ok {
			out.Data[i] = mapped
		}
	}
	return out
}

// ComponentMap returns, for each component id 1..n of cc, the original
// volume value of its voxels. Entry 0 holds 0. The two volumes must share a
// shape, and every component is assumed to cover voxels of a single value.
func ComponentMap[T volume.Label](cc *volume.Volume[uint32], orig *volume.Volume[T], n int) ([]T, error) {
	if cc.Sx != orig.Sx || cc.Sy != orig.Sy || cc.Sz != orig.Sz {
		return nil, fmt.Errorf("component volume shape (%d, %d, %d) does not match original (%d, %d, %d): %w",
			cc.Sx, cc.Sy, cc.Sz, orig.Sx, orig.Sy, orig.Sz, volume.ErrInvalidArgument)
	}
	table := make([]T, n+1)
	seen := make([]bool, n+1)
	remaining := n
	for i, id := range cc.Data {
		if id == 0 || int(id) > n || seen[id] {
			continue
		}
		table[id] = orig.Data[i]
		seen[id] = true
		remaining--
		if remaining == 0 {
			break
		}
	}
	return table, nil
}
