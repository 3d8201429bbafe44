package fillholes

import (
	"errors"
	"testing"

	"volmorph/pkg/volume"
)

// solidVolume builds a volume with every voxel at the same value
func solidVolume(t *testing.T, sx, sy, sz int, val uint8) *volume.Volume[uint8] {
	t.Helper()
	v, err := volume.New[uint8](sx, sy, sz)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	for i := range v.Data {
		v.Data[i] = val
	}
	return v
}

// countNonzero returns the number of foreground voxels
func countNonzero(v *volume.Volume[uint8]) int {
	ct := 0
	for _, val := range v.Data {
		if val != 0 {
			ct++
		}
	}
	return ct
}

// TestFillTwoLabelCavities verifies the basic contract: one cavity per label
// region, each filled with its enclosing label
func TestFillTwoLabelCavities(t *testing.T) {
	// Label 2 in the lower half (z < 5), label 1 in the upper half, with
	// one carved-out voxel in each
	v := solidVolume(t, 10, 10, 10, 1)
	for z := 0; z < 5; z++ {
		for y := 0; y < 10; y++ {
			for x := 0; x < 10; x++ {
				v.Set(x, y, z, 2)
			}
		}
	}
	v.Set(5, 5, 2, 0)
	v.Set(5, 5, 7, 0)

	filled, holes, err := Fill(v, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}

	if got := countNonzero(filled); got != filled.Len() {
		t.Errorf("Expected every voxel filled, %d of %d are foreground", got, filled.Len())
	}
	if got := filled.At(5, 5, 2); got != 2 {
		t.Errorf("Expected the lower cavity filled with 2, got %d", got)
	}
	if got := filled.At(5, 5, 7); got != 1 {
		t.Errorf("Expected the upper cavity filled with 1, got %d", got)
	}

	// Untouched voxels keep their values
	if filled.At(0, 0, 0) != 2 || filled.At(9, 9, 9) != 1 {
		t.Error("Fill changed voxels outside the cavities")
	}

	// The carved voxels were background, so the hole volume stays empty
	if got := countNonzero(holes); got != 0 {
		t.Errorf("Expected an empty hole volume for background cavities, got %d voxels", got)
	}

	counts, err := FillCounts(v, filled)
	if err != nil {
		t.Fatalf("Failed to count fills: %v", err)
	}
	if counts[1] != 1 || counts[2] != 1 || len(counts) != 2 {
		t.Errorf("Expected one fill per label, got %v", counts)
	}

	// The input must not be mutated
	if v.At(5, 5, 2) != 0 {
		t.Error("Fill mutated its input")
	}
}

// TestFillEnclosedLabel verifies that a label fully inside another is merged
// into its surroundings and recorded in the hole volume
func TestFillEnclosedLabel(t *testing.T) {
	v := solidVolume(t, 8, 8, 8, 1)
	v.Set(4, 4, 4, 3)

	filled, holes, err := Fill(v, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if got := filled.At(4, 4, 4); got != 1 {
		t.Errorf("Expected the enclosed label absorbed into 1, got %d", got)
	}
	if got := holes.At(4, 4, 4); got != 3 {
		t.Errorf("Expected the hole volume to keep the original value 3, got %d", got)
	}
	if got := countNonzero(holes); got != 1 {
		t.Errorf("Expected exactly one recorded hole voxel, got %d", got)
	}
}

// TestMergeThreshold verifies the boundary-share filter on a cavity
// straddling two labels
func TestMergeThreshold(t *testing.T) {
	// Label 1 for x < 5, label 2 for x >= 5, with a two-voxel cavity
	// straddling the boundary: each label owns half the cavity surface
	straddling := solidVolume(t, 10, 10, 10, 1)
	for z := 0; z < 10; z++ {
		for y := 0; y < 10; y++ {
			for x := 5; x < 10; x++ {
				straddling.Set(x, y, z, 2)
			}
		}
	}
	straddling.Set(4, 5, 5, 0)
	straddling.Set(5, 5, 5, 0)

	// At full confidence nothing owns the whole boundary, so nothing merges
	opts := DefaultOptions()
	filled, _, err := Fill(straddling, opts)
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if filled.At(4, 5, 5) != 0 || filled.At(5, 5, 5) != 0 {
		t.Error("Expected the straddling cavity preserved at threshold 1")
	}

	// With both owners above the bar the merge stays ambiguous
	opts.MergeThreshold = 0.4
	filled, _, err = Fill(straddling, opts)
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if filled.At(4, 5, 5) != 0 {
		t.Error("Expected the cavity preserved when two owners pass the threshold")
	}

	// At threshold zero the larger (here equal, so lowest-id) owner wins
	opts.MergeThreshold = 0
	filled, _, err = Fill(straddling, opts)
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if got := filled.At(4, 5, 5); got != 1 {
		t.Errorf("Expected the tie at threshold 0 to resolve to label 1, got %d", got)
	}
	if got := filled.At(5, 5, 5); got != 1 {
		t.Errorf("Expected the whole group to merge together, got %d", got)
	}
}

// TestMergeThresholdMajorityOwner verifies that a dominant owner can pass a
// partial threshold
func TestMergeThresholdMajorityOwner(t *testing.T) {
	// A single-voxel cavity at the label boundary: five faces touch label
	// 1, one face touches label 2
	v := solidVolume(t, 10, 10, 10, 1)
	for z := 0; z < 10; z++ {
		for y := 0; y < 10; y++ {
			for x := 5; x < 10; x++ {
				v.Set(x, y, z, 2)
			}
		}
	}
	v.Set(4, 5, 5, 0)

	opts := DefaultOptions()
	filled, _, err := Fill(v, opts)
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if filled.At(4, 5, 5) != 0 {
		t.Error("Expected a 5/6 owner rejected at threshold 1")
	}

	opts.MergeThreshold = 0.8
	filled, _, err = Fill(v, opts)
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if got := filled.At(4, 5, 5); got != 1 {
		t.Errorf("Expected the 5/6 owner to absorb the cavity at threshold 0.8, got %d", got)
	}
}

// TestFixBorders verifies that a pocket open only to a bounding-box face is
// treated as a hole when border fixing is enabled
func TestFixBorders(t *testing.T) {
	v := solidVolume(t, 8, 8, 8, 1)
	v.Set(4, 4, 0, 0)

	// Without border fixing the pocket touches the boundary and is kept
	filled, _, err := Fill(v, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if filled.At(4, 4, 0) != 0 {
		t.Error("Expected the face pocket preserved without border fixing")
	}

	opts := DefaultOptions()
	opts.FixBorders = true
	filled, _, err = Fill(v, opts)
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if got := filled.At(4, 4, 0); got != 1 {
		t.Errorf("Expected the face pocket filled with border fixing, got %d", got)
	}
}

// TestFixBordersProtectsOpenEdges verifies that face components touching the
// face's own edges are never reclassified
func TestFixBordersProtectsOpenEdges(t *testing.T) {
	v := solidVolume(t, 8, 8, 8, 1)
	// A groove running off the edge of the z=0 face
	for x := 0; x < 8; x++ {
		v.Set(x, 4, 0, 0)
	}

	opts := DefaultOptions()
	opts.FixBorders = true
	filled, _, err := Fill(v, opts)
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if filled.At(4, 4, 0) != 0 {
		t.Error("Expected the open groove preserved, its face component touches the face edge")
	}
}

// TestFillValidation verifies option validation and shape checks
func TestFillValidation(t *testing.T) {
	v := solidVolume(t, 4, 4, 4, 1)

	opts := DefaultOptions()
	opts.MergeThreshold = 1.5
	if _, _, err := Fill(v, opts); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a threshold above 1, got %v", err)
	}
	opts.MergeThreshold = -0.1
	if _, _, err := Fill(v, opts); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a negative threshold, got %v", err)
	}

	other := solidVolume(t, 4, 4, 5, 1)
	if _, err := FillCounts(v, other); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for mismatched shapes, got %v", err)
	}
}

// TestFillNoHoles verifies the identity case
func TestFillNoHoles(t *testing.T) {
	v := solidVolume(t, 6, 6, 6, 5)

	filled, holes, err := Fill(v, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	if diff, _ := volume.CountDifferences(v, filled); diff != 0 {
		t.Errorf("Expected a hole-free volume unchanged, %d voxels differ", diff)
	}
	if countNonzero(holes) != 0 {
		t.Error("Expected an empty hole volume")
	}
}
