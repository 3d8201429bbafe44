package morphology

import (
	"fmt"

	"volmorph/pkg/volume"
)

// DistanceTransform is the contract for the external Euclidean distance
// transform collaborator used by the spherical variants. It returns, per
// voxel, the anisotropy-weighted distance to the nearest zero voxel of the
// mask. When blackBorder is set, the region outside the volume is treated as
// zero as well, so border foreground voxels report their distance to the
// bounding box.
type DistanceTransform func(mask *volume.Volume[uint8], anisotropy [3]float64, blackBorder bool) ([]float64, error)

// SphericalOptions configures the radius-based variants. These do not use a
// structuring element: voxel distances come from the exact Euclidean
// distance transform, hence "spherical".
type SphericalOptions struct {
	// Radius is the physical distance, under Anisotropy, that the
	// operation reaches (inclusive).
	Radius float64

	// Anisotropy is the voxel resolution along x, y and z. The zero value
	// means isotropic (1, 1, 1).
	Anisotropy [3]float64

	// InPlace mutates the input volume instead of allocating a copy.
	// If the transform fails mid-call the input may be left partially
	// mutated; this is a documented caveat of the in-place path.
	InPlace bool

	// Transform supplies the distance transform. Required.
	Transform DistanceTransform
}

func (o *SphericalOptions) normalize() error {
	if o.Transform == nil {
		return fmt.Errorf("spherical operations require a distance transform collaborator: %w", volume.ErrInvalidArgument)
	}
	if o.Anisotropy == ([3]float64{}) {
		o.Anisotropy = [3]float64{1, 1, 1}
	}
	return nil
}

// SphericalDilate grows the foreground of a binary volume to every voxel
// within Radius of it.
func SphericalDilate(vol *volume.Volume[uint8], opts SphericalOptions) (*volume.Volume[uint8], error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if !volume.IsBinary(vol) {
		return nil, fmt.Errorf("spherical dilation is only supported for binary volumes: %w", volume.ErrInvalidArgument)
	}

	// Distance from each background voxel to the nearest foreground voxel
	// is the distance transform of the complemented mask.
	complement := newLike(vol)
	for i, v := range vol.Data {
		if v == 0 {
			complement.Data[i] = 1
		}
	}
	dt, err := opts.Transform(complement, opts.Anisotropy, false)
	if err != nil {
		return nil, fmt.Errorf("distance transform failed: %v", err)
	}
	if len(dt) != vol.Len() {
		return nil, fmt.Errorf("distance transform returned %d values for %d voxels: %w",
			len(dt), vol.Len(), volume.ErrInvalidArgument)
	}

	out := vol
	if !opts.InPlace {
		out = vol.Clone()
	}
	for i := range out.Data {
		if dt[i] <= opts.Radius {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// SphericalErode removes foreground voxels of a binary volume closer than
// Radius to the background or to the volume boundary.
func SphericalErode(vol *volume.Volume[uint8], opts SphericalOptions) (*volume.Volume[uint8], error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if !volume.IsBinary(vol) {
		return nil, fmt.Errorf("spherical erosion is only supported for binary volumes: %w", volume.ErrInvalidArgument)
	}

	dt, err := opts.Transform(vol, opts.Anisotropy, true)
	if err != nil {
		return nil, fmt.Errorf("distance transform failed: %v", err)
	}
	if len(dt) != vol.Len() {
		return nil, fmt.Errorf("distance transform returned %d values for %d voxels: %w",
			len(dt), vol.Len(), volume.ErrInvalidArgument)
	}

	out := vol
	if !opts.InPlace {
		out = vol.Clone()
	}
	for i := range out.Data {
		if dt[i] < opts.Radius {
			out.Data[i] = 0
		}
	}
	return out, nil
}

// SphericalOpen erodes then dilates a binary volume at the same radius.
func SphericalOpen(vol *volume.Volume[uint8], opts SphericalOptions) (*volume.Volume[uint8], error) {
	eroded, err := SphericalErode(vol, opts)
	if err != nil {
		return nil, err
	}
	return SphericalDilate(eroded, opts)
}

// SphericalClose dilates then erodes a binary volume at the same radius.
func SphericalClose(vol *volume.Volume[uint8], opts SphericalOptions) (*volume.Volume[uint8], error) {
	dilated, err := SphericalDilate(vol, opts)
	if err != nil {
		return nil, err
	}
	return SphericalErode(dilated, opts)
}
