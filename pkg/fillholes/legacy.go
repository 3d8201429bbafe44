package fillholes

import (
	"fmt"
	"sort"

	"volmorph/pkg/cclabel"
	"volmorph/pkg/fillvoids"
	"volmorph/pkg/morphology"
	"volmorph/pkg/remap"
	"volmorph/pkg/volume"
)

// EnclosureError reports that the single-pass fill found interior labels
// that would have been deleted by the operation while enclosure removal was
// disabled. The call aborts and returns no output.
type EnclosureError struct {
	// Labels holds the enclosed labels, in the original alphabet.
	Labels []int64
}

func (e *EnclosureError) Error() string {
	return fmt.Sprintf("labels %v would have been deleted by this operation", e.Labels)
}

// LegacyOptions configures FillLegacy.
type LegacyOptions struct {
	// RemoveEnclosed deletes labels totally enclosed by another label
	// instead of failing with an EnclosureError.
	RemoveEnclosed bool

	// FixBorders runs a 2D void fill along the six faces of each
	// component's bounding box before the 3D fill.
	FixBorders bool

	// MorphologicalClosing dilates each component mask before filling and
	// erodes at the end, closing single-voxel cracks in the shell.
	MorphologicalClosing bool

	// Parallelism bounds the worker pool of the closing passes.
	Parallelism int
}

// FillLegacy is the single-pass hole fill: each label is isolated in its
// bounding box as a binary mask, void-filled, and painted back. It returns
// the filled volume, the per-label fill counts, and the sorted set of
// enclosed labels that were removed. Pure boolean volumes with no border
// fix or closing take a fast path through the binary void filler.
func FillLegacy[T volume.Label](vol *volume.Volume[T], opts LegacyOptions) (*volume.Volume[T], map[T]int64, []T, error) {
	if volume.IsBinary(vol) && !opts.FixBorders && !opts.MorphologicalClosing {
		return fillBinaryFast(vol)
	}

	renumbered, table, n := remap.Renumber(vol)
	stats, err := cclabel.Statistics(renumbered, n)
	if err != nil {
		return nil, nil, nil, err
	}

	output := &volume.Volume[T]{Data: make([]T, len(vol.Data)), Sx: vol.Sx, Sy: vol.Sy, Sz: vol.Sz}
	fillCounts := make(map[T]int64)
	removed := make(map[uint32]bool)

	for id := uint32(1); int(id) <= n; id++ {
		if removed[id] || stats[id].VoxelCount == 0 {
			continue
		}

		bb := stats[id].Bounds
		mask := cropMask(renumbered, bb, id)
		pixelsFilled := 0

		if opts.MorphologicalClosing {
			dilated, err := morphology.Dilate(mask, morphology.DilateOptions{
				BackgroundOnly: true,
				Iterations:     1,
				Parallelism:    opts.Parallelism,
			})
			if err != nil {
				return nil, nil, nil, err
			}
			diff, err := volume.CountDifferences(dilated, mask)
			if err != nil {
				return nil, nil, nil, err
			}
			pixelsFilled += diff
			mask = dilated
		}

		if opts.FixBorders {
			for _, fid := range volume.Faces {
				face := mask.Face(fid)
				face, ct, err := fillvoids.Fill(face, true)
				if err != nil {
					return nil, nil, nil, err
				}
				if err := mask.SetFace(fid, face); err != nil {
					return nil, nil, nil, err
				}
				pixelsFilled += ct
			}
		}

		mask, ct, err := fillvoids.Fill(mask, true)
		if err != nil {
			return nil, nil, nil, err
		}
		pixelsFilled += ct

		if opts.MorphologicalClosing {
			eroded, err := morphology.Erode(mask, morphology.ErodeOptions{
				ErodeBorder: false,
				Iterations:  1,
				Parallelism: opts.Parallelism,
			})
			if err != nil {
				return nil, nil, nil, err
			}
			diff, err := volume.CountDifferences(eroded, mask)
			if err != nil {
				return nil, nil, nil, err
			}
			pixelsFilled -= diff
			mask = eroded
		}

		fillCounts[table[id]] = int64(pixelsFilled)
		paintMask(output, mask, bb, table[id])

		if pixelsFilled == 0 {
			continue
		}

		// Labels covered by the filled mask were enclosed by this one.
		subCounts := make(map[uint32]int64)
		forEachMaskVoxel(renumbered, mask, bb, func(sub uint32) {
			subCounts[sub]++
		})
		delete(subCounts, id)
		delete(subCounts, 0)

		var enclosed []uint32
		for sub, ct := range subCounts {
			// Under closing the dilated mask can graze neighbors that
			// are not enclosed; only fully covered labels count.
			if opts.MorphologicalClosing && ct != stats[sub].VoxelCount {
				continue
			}
			enclosed = append(enclosed, sub)
		}

		if len(enclosed) > 0 && !opts.RemoveEnclosed {
			labels := make([]int64, 0, len(enclosed))
			for _, sub := range enclosed {
				labels = append(labels, int64(table[sub]))
			}
			sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
			return nil, nil, nil, &EnclosureError{Labels: labels}
		}
		for _, sub := range enclosed {
			removed[sub] = true
		}
	}

	for id := range removed {
		delete(fillCounts, table[id])
	}

	removedLabels := make([]T, 0, len(removed))
	for _, id := range sortedKeys(removed) {
		removedLabels = append(removedLabels, table[id])
	}
	return output, fillCounts, removedLabels, nil
}

// fillBinaryFast handles pure boolean volumes with the binary void filler.
func fillBinaryFast[T volume.Label](vol *volume.Volume[T]) (*volume.Volume[T], map[T]int64, []T, error) {
	mask := &volume.Volume[uint8]{Data: make([]uint8, len(vol.Data)), Sx: vol.Sx, Sy: vol.Sy, Sz: vol.Sz}
	for i, v := range vol.Data {
		if v != 0 {
			mask.Data[i] = 1
		}
	}
	mask, ct, err := fillvoids.Fill(mask, true)
	if err != nil {
		return nil, nil, nil, err
	}
	out := &volume.Volume[T]{Data: make([]T, len(vol.Data)), Sx: vol.Sx, Sy: vol.Sy, Sz: vol.Sz}
	for i, v := range mask.Data {
		out.Data[i] = T(v)
	}
	counts := make(map[T]int64)
	if ct > 0 {
		counts[T(1)] = int64(ct)
	}
	return out, counts, nil, nil
}

// cropMask extracts the bounding box of one component as a binary mask.
func cropMask(labels *volume.Volume[uint32], bb cclabel.BoundingBox, id uint32) *volume.Volume[uint8] {
	sx := bb.X1 - bb.X0
	sy := bb.Y1 - bb.Y0
	sz := bb.Z1 - bb.Z0
	mask := &volume.Volume[uint8]{Data: make([]uint8, sx*sy*sz), Sx: sx, Sy: sy, Sz: sz}
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				if labels.At(bb.X0+x, bb.Y0+y, bb.Z0+z) == id {
					mask.Set(x, y, z, 1)
				}
			}
		}
	}
	return mask
}

// paintMask writes val into the output volume at every set voxel of a
// bounding-box mask.
func paintMask[T volume.Label](out *volume.Volume[T], mask *volume.Volume[uint8], bb cclabel.BoundingBox, val T) {
	for z := 0; z < mask.Sz; z++ {
		for y := 0; y < mask.Sy; y++ {
			for x := 0; x < mask.Sx; x++ {
				if mask.At(x, y, z) != 0 {
					out.Set(bb.X0+x, bb.Y0+y, bb.Z0+z, val)
				}
			}
		}
	}
}

// forEachMaskVoxel calls fn with the label under every set mask voxel.
func forEachMaskVoxel(labels *volume.Volume[uint32], mask *volume.Volume[uint8], bb cclabel.BoundingBox, fn func(uint32)) {
	for z := 0; z < mask.Sz; z++ {
		for y := 0; y < mask.Sy; y++ {
			for x := 0; x < mask.Sx; x++ {
				if mask.At(x, y, z) != 0 {
					fn(labels.At(bb.X0+x, bb.Y0+y, bb.Z0+z))
				}
			}
		}
	}
}
