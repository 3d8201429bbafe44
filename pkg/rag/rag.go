// Package rag builds the region adjacency graph of a component labeling:
// nodes are component ids and edges carry the anisotropy-weighted contact
// surface area accumulated over every adjacent voxel pair.
package rag

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/simple"

	"volmorph/pkg/cclabel"
	"volmorph/pkg/volume"
)

// pairKey is a canonical unordered component pair, packed as lo<<32 | hi
// with lo <= hi.
type pairKey uint64

func makePair(a, b uint32) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey(uint64(a)<<32 | uint64(b))
}

// Graph is a region adjacency graph over component ids. Edge weights are
// non-negative contact surface areas. Adjacency traversal and weight lookup
// are backed by a gonum weighted undirected graph; accumulation happens in a
// canonical-pair table first so the result does not depend on any
// associative-container iteration order.
type Graph struct {
	wg    *simple.WeightedUndirectedGraph
	edges int
}

// Build scans every adjacent voxel pair of cc along the connectivity's
// positive offsets and accumulates anisotropy[axis]-weighted face area per
// distinct-id pair. Only the face connectivities are meaningful for surface
// area: Conn6 for 3D volumes and Conn4 for 2D face images. Every id present
// in the volume becomes a node, even if isolated.
func Build(cc *volume.Volume[uint32], conn cclabel.Connectivity, anisotropy [3]float64) (*Graph, error) {
	if conn != cclabel.Conn6 && conn != cclabel.Conn4 {
		return nil, fmt.Errorf("adjacency graphs use face connectivity (6 or 4), got %d: %w",
			conn, volume.ErrInvalidArgument)
	}
	if conn == cclabel.Conn4 && cc.Sz != 1 {
		return nil, fmt.Errorf("connectivity 4 requires a 2D volume, got Sz=%d: %w",
			cc.Sz, volume.ErrInvalidArgument)
	}

	sx, sy, sz := cc.Sx, cc.Sy, cc.Sz
	weights := make(map[pairKey]float64)
	present := make(map[uint32]struct{})

	axes := 3
	if conn == cclabel.Conn4 {
		axes = 2
	}

	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				loc := cc.Index(x, y, z)
				id := cc.Data[loc]
				present[id] = struct{}{}
				if x+1 < sx {
					if other := cc.Data[loc+1]; other != id {
						weights[makePair(id, other)] += anisotropy[0]
					}
				}
				if y+1 < sy {
					if other := cc.Data[loc+sx]; other != id {
						weights[makePair(id, other)] += anisotropy[1]
					}
				}
				if axes == 3 && z+1 < sz {
					if other := cc.Data[loc+sx*sy]; other != id {
						weights[makePair(id, other)] += anisotropy[2]
					}
				}
			}
		}
	}

	g := &Graph{wg: simple.NewWeightedUndirectedGraph(0, 0)}
	for id := range present {
		g.wg.AddNode(simple.Node(int64(id)))
	}
	for pair, w := range weights {
		a := int64(pair >> 32)
		b := int64(pair & 0xffffffff)
		g.wg.SetWeightedEdge(g.wg.NewWeightedEdge(simple.Node(a), simple.Node(b), w))
		g.edges++
	}
	return g, nil
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id uint32) bool {
	return g.wg.Node(int64(id)) != nil
}

// Weight returns the accumulated contact surface area between two ids, or 0
// if they are not adjacent.
func (g *Graph) Weight(a, b uint32) float64 {
	e := g.wg.WeightedEdgeBetween(int64(a), int64(b))
	if e == nil {
		return 0
	}
	return e.Weight()
}

// Neighbors returns the ids adjacent to id, sorted ascending for
// deterministic traversal.
func (g *Graph) Neighbors(id uint32) []uint32 {
	it := g.wg.From(int64(id))
	var out []uint32
	for it.Next() {
		out = append(out, uint32(it.Node().ID()))
	}
	slices.Sort(out)
	return out
}

// Labels returns every node id, sorted ascending.
func (g *Graph) Labels() []uint32 {
	it := g.wg.Nodes()
	var out []uint32
	for it.Next() {
		out = append(out, uint32(it.Node().ID()))
	}
	slices.Sort(out)
	return out
}

// EdgeCount returns the number of distinct adjacent pairs.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// ForEachEdge visits every edge once with its canonical (low, high) ids and
// weight.
func (g *Graph) ForEachEdge(fn func(a, b uint32, w float64)) {
	it := g.wg.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		a := uint32(e.From().ID())
		b := uint32(e.To().ID())
		if a > b {
			a, b = b, a
		}
		fn(a, b, e.Weight())
	}
}
