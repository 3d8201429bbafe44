// Package fillvoids fills enclosed background in binary volumes: any
// background region not reachable from the bounding box along faces is
// flipped to foreground. This is the fast-path collaborator for pure boolean
// hole filling and the per-face filler used by the legacy border fix.
package fillvoids

import (
	"fmt"

	"volmorph/pkg/volume"
)

// Fill flips interior background voxels of a binary volume to foreground
// and returns the number of voxels filled. Background connected to any
// bounding-box face (6-connectivity, degrading to 4 for 2D volumes) is left
// untouched. When inPlace is set the input buffer is reused; otherwise a
// copy is returned.
func Fill(vol *volume.Volume[uint8], inPlace bool) (*volume.Volume[uint8], int, error) {
	if !volume.IsBinary(vol) {
		return nil, 0, fmt.Errorf("void filling is only supported for binary volumes: %w", volume.ErrInvalidArgument)
	}

	out := vol
	if !inPlace {
		out = vol.Clone()
	}

	sx, sy, sz := vol.Sx, vol.Sy, vol.Sz
	open := make([]bool, len(vol.Data))
	var stack []int

	seed := func(loc int) {
		if out.Data[loc] == 0 && !open[loc] {
			open[loc] = true
			stack = append(stack, loc)
		}
	}

	// Seed from every boundary voxel. Axes of extent 1 (the flat axis of a
	// 2D image) contribute no boundary: every voxel would lie on it, and the
	// fill would degenerate to a no-op.
	for z := 0; z < sz; z++ {
		zEdge := sz > 1 && (z == 0 || z == sz-1)
		for y := 0; y < sy; y++ {
			yEdge := sy > 1 && (y == 0 || y == sy-1)
			for x := 0; x < sx; x++ {
				if zEdge || yEdge || (sx > 1 && (x == 0 || x == sx-1)) {
					seed(out.Index(x, y, z))
				}
			}
		}
	}

	// Flood outward-connected background.
	for len(stack) > 0 {
		loc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x := loc % sx
		y := (loc / sx) % sy
		z := loc / (sx * sy)
		if x > 0 {
			seed(loc - 1)
		}
		if x < sx-1 {
			seed(loc + 1)
		}
		if y > 0 {
			seed(loc - sx)
		}
		if y < sy-1 {
			seed(loc + sx)
		}
		if z > 0 {
			seed(loc - sx*sy)
		}
		if z < sz-1 {
			seed(loc + sx*sy)
		}
	}

	filled := 0
	for i := range out.Data {
		if out.Data[i] == 0 && !open[i] {
			out.Data[i] = 1
			filled++
		}
	}
	return out, filled, nil
}
