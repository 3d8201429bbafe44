// Package cclabel provides connected-component labeling of multilabel
// volumes and per-component statistics. It implements the narrow
// collaborator contract consumed by the hole-filling pipeline: every voxel,
// background included, receives exactly one component id, so the components
// partition the volume.
package cclabel

import (
	"fmt"

	"volmorph/pkg/volume"
)

// Connectivity selects the neighborhood used to join equal-valued voxels.
type Connectivity int

const (
	// Conn4 and Conn8 are the in-plane connectivities for 2D volumes
	// (Sz == 1).
	Conn4 Connectivity = 4
	Conn8 Connectivity = 8

	// Conn6 joins voxels across faces; Conn26 additionally joins across
	// edges and corners.
	Conn6  Connectivity = 6
	Conn26 Connectivity = 26
)

// offsets returns the neighbor offsets of a connectivity.
func (c Connectivity) offsets() [][3]int {
	switch c {
	case Conn4:
		return [][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}}
	case Conn8:
		var offs [][3]int
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 {
					offs = append(offs, [3]int{dx, dy, 0})
				}
			}
		}
		return offs
	case Conn6:
		return [][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}
	case Conn26:
		var offs [][3]int
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx != 0 || dy != 0 || dz != 0 {
						offs = append(offs, [3]int{dx, dy, dz})
					}
				}
			}
		}
		return offs
	}
	return nil
}

// Labeling is the result of connected-component labeling: a dense component
// id per voxel (ids start at 1) and the component count.
type Labeling struct {
	Components *volume.Volume[uint32]
	Count      int
}

// Label assigns a component id to every maximal connected set of
// equal-valued voxels. Value 0 regions are labeled like any other value, so
// holes carved out of background remain distinguishable from holes carved
// out of a foreground label. Ids are assigned in scan order and are dense.
func Label[T volume.Label](vol *volume.Volume[T], conn Connectivity) (*Labeling, error) {
	offs := conn.offsets()
	if offs == nil {
		return nil, fmt.Errorf("unsupported connectivity %d: %w", conn, volume.ErrInvalidArgument)
	}
	if (conn == Conn4 || conn == Conn8) && vol.Sz != 1 {
		return nil, fmt.Errorf("connectivity %d requires a 2D volume, got Sz=%d: %w",
			conn, vol.Sz, volume.ErrInvalidArgument)
	}

	out, err := volume.New[uint32](vol.Sx, vol.Sy, vol.Sz)
	if err != nil {
		return nil, err
	}

	sx, sy, sz := vol.Sx, vol.Sy, vol.Sz
	next := uint32(0)

	// Explicit stack instead of recursion: components can span the whole
	// volume.
	var stack []int

	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				seed := vol.Index(x, y, z)
				if out.Data[seed] != 0 {
					continue
				}
				next++
				id := next
				val := vol.Data[seed]
				out.Data[seed] = id
				stack = append(stack[:0], seed)
				for len(stack) > 0 {
					loc := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					cx := loc % sx
					cy := (loc / sx) % sy
					cz := loc / (sx * sy)
					for _, off := range offs {
						nx, ny, nz := cx+off[0], cy+off[1], cz+off[2]
						if nx < 0 || nx >= sx || ny < 0 || ny >= sy || nz < 0 || nz >= sz {
							continue
						}
						nloc := vol.Index(nx, ny, nz)
						if out.Data[nloc] == 0 && vol.Data[nloc] == val {
							out.Data[nloc] = id
							stack = append(stack, nloc)
						}
					}
				}
			}
		}
	}

	return &Labeling{Components: out, Count: int(next)}, nil
}

// BoundingBox is a half-open voxel region [X0,X1) x [Y0,Y1) x [Z0,Z1).
type BoundingBox struct {
	X0, X1 int
	Y0, Y1 int
	Z0, Z1 int
}

// Stat carries the per-id statistics of a label volume.
type Stat struct {
	VoxelCount int64
	Bounds     BoundingBox
}

// Statistics computes voxel counts and bounding boxes for ids 1..n of a
// dense label volume. The returned slice is indexed by id; entry 0 is
// unused. Ids that never appear have a zero VoxelCount.
func Statistics(vol *volume.Volume[uint32], n int) ([]Stat, error) {
	if n < 0 {
		return nil, fmt.Errorf("label count (%d) must be non-negative: %w", n, volume.ErrInvalidArgument)
	}
	stats := make([]Stat, n+1)
	sx, sy := vol.Sx, vol.Sy
	for i, id := range vol.Data {
		if id == 0 || int(id) > n {
			continue
		}
		x := i % sx
		y := (i / sx) % sy
		z := i / (sx * sy)
		s := &stats[id]
		if s.VoxelCount == 0 {
			s.Bounds = BoundingBox{X0: x, X1: x + 1, Y0: y, Y1: y + 1, Z0: z, Z1: z + 1}
		} else {
			b := &s.Bounds
			if x < b.X0 {
				b.X0 = x
			}
			if x+1 > b.X1 {
				b.X1 = x + 1
			}
			if y < b.Y0 {
				b.Y0 = y
			}
			if y+1 > b.Y1 {
				b.Y1 = y + 1
			}
			if z < b.Z0 {
				b.Z0 = z
			}
			if z+1 > b.Z1 {
				b.Z1 = z + 1
			}
		}
		s.VoxelCount++
	}
	return stats, nil
}
