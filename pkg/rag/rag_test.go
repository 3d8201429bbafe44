package rag

import (
	"errors"
	"math"
	"testing"

	"volmorph/pkg/cclabel"
	"volmorph/pkg/volume"
)

// mustComponents wraps a column-major id buffer or fails the test
func mustComponents(t *testing.T, data []uint32, sx, sy, sz int) *volume.Volume[uint32] {
	t.Helper()
	v, err := volume.FromSlice(data, sx, sy, sz)
	if err != nil {
		t.Fatalf("Failed to create component volume: %v", err)
	}
	return v
}

var isotropic = [3]float64{1, 1, 1}

// TestBuildContactAreas verifies that edge weights accumulate one unit per
// touching voxel face
func TestBuildContactAreas(t *testing.T) {
	// 2x2x1: ids 1 and 2 side by side, touching along two x-faces
	cc := mustComponents(t, []uint32{1, 2, 1, 2}, 2, 2, 1)

	g, err := Build(cc, cclabel.Conn6, isotropic)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	if !g.Has(1) || !g.Has(2) {
		t.Fatal("Expected both ids as graph nodes")
	}
	if w := g.Weight(1, 2); w != 2 {
		t.Errorf("Expected contact area 2, got %g", w)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("Expected 1 edge, got %d", g.EdgeCount())
	}
}

// TestBuildAnisotropy verifies that contact along each axis is weighted by
// that axis's resolution
func TestBuildAnisotropy(t *testing.T) {
	// 2x2x1: id 1 in the left column, id 2 at top right, id 3 at bottom
	// right. 1-2 and 1-3 touch along x; 2-3 touch along y.
	cc := mustComponents(t, []uint32{1, 2, 1, 3}, 2, 2, 1)

	aniso := [3]float64{2, 5, 11}
	g, err := Build(cc, cclabel.Conn6, aniso)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	if w := g.Weight(1, 2); w != 2 {
		t.Errorf("Expected x-contact weight 2, got %g", w)
	}
	if w := g.Weight(1, 3); w != 2 {
		t.Errorf("Expected x-contact weight 2, got %g", w)
	}
	if w := g.Weight(2, 3); w != 5 {
		t.Errorf("Expected y-contact weight 5, got %g", w)
	}
}

// TestBuildZAxis verifies contact accumulation across z for 3D volumes
func TestBuildZAxis(t *testing.T) {
	// 1x1x2 column: ids 1 over 2, one z-face of contact
	cc := mustComponents(t, []uint32{1, 2}, 1, 1, 2)

	aniso := [3]float64{2, 3, 7}
	g, err := Build(cc, cclabel.Conn6, aniso)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	if w := g.Weight(1, 2); w != 7 {
		t.Errorf("Expected z-contact weight 7, got %g", w)
	}
}

// TestNeighborsAndLabels verifies sorted traversal and isolated nodes
func TestNeighborsAndLabels(t *testing.T) {
	// 3x1x1: ids 5, 1, 9 in a row; 5-1 and 1-9 touch, 5-9 do not
	cc := mustComponents(t, []uint32{5, 1, 9}, 3, 1, 1)

	g, err := Build(cc, cclabel.Conn6, isotropic)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}

	labels := g.Labels()
	wantLabels := []uint32{1, 5, 9}
	if len(labels) != len(wantLabels) {
		t.Fatalf("Expected %d labels, got %d", len(wantLabels), len(labels))
	}
	for i := range wantLabels {
		if labels[i] != wantLabels[i] {
			t.Errorf("Expected labels %v, got %v", wantLabels, labels)
			break
		}
	}

	neighbors := g.Neighbors(1)
	wantNeighbors := []uint32{5, 9}
	if len(neighbors) != len(wantNeighbors) {
		t.Fatalf("Expected %d neighbors, got %d", len(wantNeighbors), len(neighbors))
	}
	for i := range wantNeighbors {
		if neighbors[i] != wantNeighbors[i] {
			t.Errorf("Expected neighbors %v, got %v", wantNeighbors, neighbors)
			break
		}
	}

	if g.Weight(5, 9) != 0 {
		t.Error("Expected zero weight between non-adjacent ids")
	}
}

// TestForEachEdge verifies canonical edge enumeration
func TestForEachEdge(t *testing.T) {
	cc := mustComponents(t, []uint32{5, 1, 9}, 3, 1, 1)
	g, err := Build(cc, cclabel.Conn6, isotropic)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}

	total := 0.0
	edges := 0
	g.ForEachEdge(func(a, b uint32, w float64) {
		if a > b {
			t.Errorf("Expected canonical edge order, got (%d, %d)", a, b)
		}
		total += w
		edges++
	})
	if edges != g.EdgeCount() {
		t.Errorf("Expected %d edges visited, got %d", g.EdgeCount(), edges)
	}
	if math.Abs(total-2) > 1e-12 {
		t.Errorf("Expected total contact area 2, got %g", total)
	}
}

// TestBuildRejectsCornerConnectivity verifies that only face connectivities
// are accepted
func TestBuildRejectsCornerConnectivity(t *testing.T) {
	cc := mustComponents(t, []uint32{1, 2}, 2, 1, 1)

	if _, err := Build(cc, cclabel.Conn26, isotropic); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for connectivity 26, got %v", err)
	}

	cc3, _ := volume.New[uint32](2, 2, 2)
	if _, err := Build(cc3, cclabel.Conn4, isotropic); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for connectivity 4 on a 3D volume, got %v", err)
	}
}
