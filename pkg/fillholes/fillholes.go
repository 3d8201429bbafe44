// Package fillholes fills topologically enclosed cavities in labeled
// volumes. A connected-component labeling (background counted as a
// component) is reduced to a region adjacency graph; components that never
// touch the bounding box are grouped by graph traversal and merged into
// their single enclosing label when the merge-confidence threshold allows.
package fillholes

import (
	"fmt"
	"slices"

	"volmorph/pkg/cclabel"
	"volmorph/pkg/rag"
	"volmorph/pkg/remap"
	"volmorph/pkg/volume"
)

// Options configures Fill.
type Options struct {
	// MergeThreshold is the minimum fraction of a hole group's total
	// boundary surface area a single enclosing label must own before the
	// group is merged into it. 1 demands total enclosure by one label; 0
	// merges into whichever single label owns the largest contact area.
	MergeThreshold float64

	// FixBorders resolves holes that are only visible on the six
	// bounding-box faces before edge classification, so they are not
	// mistaken for components open to the boundary.
	FixBorders bool

	// Anisotropy is the per-axis voxel resolution used to weight contact
	// surface areas. The zero value means isotropic (1, 1, 1).
	Anisotropy [3]float64

	// Parallelism is accepted for contract parity but unused here: the
	// component and graph passes run single-threaded, since component
	// counts are orders of magnitude smaller than voxel counts.
	Parallelism int
}

// DefaultOptions returns the operation contract defaults.
func DefaultOptions() Options {
	return Options{MergeThreshold: 1, Anisotropy: [3]float64{1, 1, 1}}
}

// Fill classifies and fills the enclosed components of a labeled volume.
// It returns the filled volume and a sparse hole volume that is background
// everywhere except at reclassified voxels, which keep their original
// value. The input is never mutated.
func Fill[T volume.Label](vol *volume.Volume[T], opts Options) (filled, holes *volume.Volume[T], err error) {
	if opts.MergeThreshold < 0 || opts.MergeThreshold > 1 {
		return nil, nil, fmt.Errorf("merge threshold (%g) must be within [0, 1]: %w",
			opts.MergeThreshold, volume.ErrInvalidArgument)
	}
	if opts.Anisotropy == ([3]float64{}) {
		opts.Anisotropy = [3]float64{1, 1, 1}
	}

	labeling, err := cclabel.Label(vol, cclabel.Conn26)
	if err != nil {
		return nil, nil, err
	}
	cc := labeling.Components
	n := labeling.Count

	origMap, err := remap.ComponentMap(cc, vol, n)
	if err != nil {
		return nil, nil, err
	}

	graph, err := rag.Build(cc, cclabel.Conn6, opts.Anisotropy)
	if err != nil {
		return nil, nil, err
	}

	edgeLabels, err := collectEdgeLabels(cc, origMap, graph, opts)
	if err != nil {
		return nil, nil, err
	}

	table, holeSet := classifyHoles(graph, edgeLabels, n, opts.MergeThreshold)

	filled, holes = assemble(vol, cc, origMap, table, holeSet)
	return filled, holes, nil
}

// FillCounts tallies, per final label, how many voxels a fill reclassified.
// orig and filled are the input and output of Fill.
func FillCounts[T volume.Label](orig, filled *volume.Volume[T]) (map[T]int64, error) {
	if !orig.SameShape(filled) {
		return nil, fmt.Errorf("volumes have different shapes: %w", volume.ErrInvalidArgument)
	}
	counts := make(map[T]int64)
	for i := range orig.Data {
		if orig.Data[i] != filled.Data[i] {
			counts[filled.Data[i]]++
		}
	}
	return counts, nil
}

// collectEdgeLabels gathers the component ids that can never be holes: ids
// on any bounding-box face, minus face-local 2D holes when FixBorders is
// set, plus every neighbor of a background component that reaches the
// boundary (background leaking to the image edge makes everything along the
// leak an edge component).
func collectEdgeLabels[T volume.Label](cc *volume.Volume[uint32], origMap []T, graph *rag.Graph, opts Options) (map[uint32]bool, error) {
	edgeLabels := make(map[uint32]bool)
	bgEdge := make(map[uint32]bool)

	for _, fid := range volume.Faces {
		face := cc.Face(fid)

		uniq := make(map[uint32]bool)
		for _, id := range face.Data {
			uniq[id] = true
		}
		for id := range uniq {
			if origMap[id] == 0 {
				bgEdge[id] = true
			}
		}

		if opts.FixBorders {
			holes2d, err := fixFace(face, opts.MergeThreshold, faceAnisotropy(fid, opts.Anisotropy))
			if err != nil {
				return nil, err
			}
			for id := range holes2d {
				delete(uniq, id)
			}
		}

		for id := range uniq {
			edgeLabels[id] = true
		}
	}

	for id := range bgEdge {
		for _, nb := range graph.Neighbors(id) {
			edgeLabels[nb] = true
		}
	}
	return edgeLabels, nil
}

// faceAnisotropy projects the volume anisotropy onto a face's two in-plane
// axes, in the (u, v) order produced by Volume.Face.
func faceAnisotropy(fid volume.FaceID, aniso [3]float64) [3]float64 {
	switch fid {
	case volume.FaceXNeg, volume.FaceXPos:
		return [3]float64{aniso[1], aniso[2], 1}
	case volume.FaceYNeg, volume.FaceYPos:
		return [3]float64{aniso[0], aniso[2], 1}
	default:
		return [3]float64{aniso[0], aniso[1], 1}
	}
}

// fixFace detects 2D holes in one bounding-box face, treated as an
// independent 2D label image of component ids at 4-connectivity. A face
// component whose contact area is owned by a single passing neighbor is a
// 2D hole, unless it touches the face's own edges, where enclosure cannot
// be judged. Returned ids are removed from the edge-label set so the 3D
// classifier fills them like any interior hole.
func fixFace(face *volume.Volume[uint32], mergeThreshold float64, aniso [3]float64) (map[uint32]bool, error) {
	graph, err := rag.Build(face, cclabel.Conn4, aniso)
	if err != nil {
		return nil, err
	}

	protected := make(map[uint32]bool)
	su, sv := face.Sx, face.Sy
	for u := 0; u < su; u++ {
		protected[face.Data[u]] = true
		protected[face.Data[u+su*(sv-1)]] = true
	}
	for v := 0; v < sv; v++ {
		protected[face.Data[su*v]] = true
		protected[face.Data[su-1+su*v]] = true
	}

	holes2d := make(map[uint32]bool)
	for _, id := range graph.Labels() {
		if protected[id] {
			continue
		}
		neighbors := graph.Neighbors(id)
		total := 0.0
		for _, nb := range neighbors {
			total += graph.Weight(id, nb)
		}
		if total == 0 {
			continue
		}
		passing := 0
		for _, nb := range neighbors {
			if graph.Weight(id, nb)/total >= mergeThreshold {
				passing++
			}
		}
		if passing == 1 {
			holes2d[id] = true
		}
	}
	return holes2d, nil
}

// classifyHoles walks the adjacency graph restricted to candidate
// components (those not in edgeLabels), grouping each connected candidate
// set and collecting the distinct edge labels directly reachable from it.
// Groups with exactly one admissible edge label are merged into it; groups
// reaching no edge label at all are left alone, and groups with a true
// multi-owner boundary are never merged.
func classifyHoles(graph *rag.Graph, edgeLabels map[uint32]bool, n int, mergeThreshold float64) (map[uint32]uint32, map[uint32]bool) {
	table := make(map[uint32]uint32)
	holeSet := make(map[uint32]bool)

	visited := make([]bool, n+1)
	var stack []uint32
	var group []uint32

	for id := uint32(1); int(id) <= n; id++ {
		if visited[id] || edgeLabels[id] || !graph.Has(id) {
			continue
		}

		group = group[:0]
		foundEdges := make(map[uint32]bool)
		stack = append(stack[:0], id)
		visited[id] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, cur)
			for _, nb := range graph.Neighbors(cur) {
				if edgeLabels[nb] {
					foundEdges[nb] = true
				} else if !visited[nb] {
					visited[nb] = true
					stack = append(stack, nb)
				}
			}
		}

		owner, ok := resolveOwner(graph, group, foundEdges, mergeThreshold)
		if !ok {
			continue
		}
		for _, member := range group {
			table[member] = owner
			holeSet[member] = true
		}
	}
	return table, holeSet
}

// resolveOwner decides which single edge label, if any, absorbs a hole
// group. With multiple reachable edges each edge's share of the group's
// total boundary surface area is computed; edges below the threshold are
// discarded, or, at threshold zero, only the largest-area edge is kept.
func resolveOwner(graph *rag.Graph, group []uint32, foundEdges map[uint32]bool, mergeThreshold float64) (uint32, bool) {
	if len(foundEdges) == 0 {
		// No reachable boundary: ambiguous, conservative no-op.
		return 0, false
	}
	if len(foundEdges) == 1 {
		for e := range foundEdges {
			return e, true
		}
	}

	areas := edgeContactAreas(graph, group, foundEdges)
	total := 0.0
	for _, a := range areas {
		total += a
	}
	if total == 0 {
		return 0, false
	}

	var keep []uint32
	if mergeThreshold > 0 {
		for e, a := range areas {
			if a/total >= mergeThreshold {
				keep = append(keep, e)
			}
		}
	} else {
		var best uint32
		bestArea := -1.0
		for e, a := range areas {
			if a > bestArea || (a == bestArea && e < best) {
				best = e
				bestArea = a
			}
		}
		keep = append(keep, best)
	}

	if len(keep) != 1 {
		return 0, false
	}
	return keep[0], true
}

// edgeContactAreas accumulates, per reachable edge label, its contact
// surface area with the hole group. Whichever is cheaper is used: direct
// group x edge weight lookups, or one pass over the global edge table when
// the pair enumeration would be larger.
func edgeContactAreas(graph *rag.Graph, group []uint32, foundEdges map[uint32]bool) map[uint32]float64 {
	areas := make(map[uint32]float64, len(foundEdges))
	if len(group)*len(foundEdges) <= graph.EdgeCount() {
		for e := range foundEdges {
			for _, m := range group {
				areas[e] += graph.Weight(m, e)
			}
		}
		return areas
	}

	inGroup := make(map[uint32]bool, len(group))
	for _, m := range group {
		inGroup[m] = true
	}
	graph.ForEachEdge(func(a, b uint32, w float64) {
		if inGroup[a] && foundEdges[b] {
			areas[b] += w
		} else if inGroup[b] && foundEdges[a] {
			areas[a] += w
		}
	})
	return areas
}

// assemble applies the merge table to produce the filled volume in the
// original label alphabet, plus the sparse record of exactly what changed.
func assemble[T volume.Label](vol *volume.Volume[T], cc *volume.Volume[uint32], origMap []T, table map[uint32]uint32, holeSet map[uint32]bool) (*volume.Volume[T], *volume.Volume[T]) {
	filled := &volume.Volume[T]{Data: make([]T, len(vol.Data)), Sx: vol.Sx, Sy: vol.Sy, Sz: vol.Sz}
	holes := &volume.Volume[T]{Data: make([]T, len(vol.Data)), Sx: vol.Sx, Sy: vol.Sy, Sz: vol.Sz}
	for i, id := range cc.Data {
		owner := id
		if merged, ok := table[id]; ok {
			owner = merged
		}
		filled.Data[i] = origMap[owner]
		if holeSet[id] {
			holes.Data[i] = vol.Data[i]
		}
	}
	return filled, holes
}

// sortedKeys is a small test/debug helper shared by the legacy path.
func sortedKeys[M ~map[uint32]bool](m M) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
