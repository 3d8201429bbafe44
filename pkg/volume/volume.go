// Package volume provides the shared data model for labeled image volumes:
// a flat, column-major buffer of a single integer scalar type with explicit
// dimensions. The first axis (x) varies fastest, matching the access pattern
// of the stencil kernels in pkg/morphology. Two-dimensional images are
// represented as volumes with Sz == 1.
package volume

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every error caused by a caller-supplied
// parameter (negative iteration counts, mismatched shapes, bad dimensions).
// Such errors are detected before any heavy work starts and are never
// retried.
var ErrInvalidArgument = errors.New("invalid argument")

// Label is the scalar constraint for volume voxels: one of the eight
// fixed-width integer types. The value 0 is reserved as background.
// Boolean images are carried as {0,1} uint8 volumes (see FromBools).
type Label interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Volume is a labeled image volume stored in column-major order:
// Data[x + Sx*(y + Sy*z)].
type Volume[T Label] struct {
	Data []T

	Sx, Sy, Sz int
}

// New allocates a zeroed volume with the given dimensions.
func New[T Label](sx, sy, sz int) (*Volume[T], error) {
	if sx <= 0 || sy <= 0 || sz <= 0 {
		return nil, fmt.Errorf("volume dimensions (%d, %d, %d) must be positive: %w",
			sx, sy, sz, ErrInvalidArgument)
	}
	return &Volume[T]{
		Data: make([]T, sx*sy*sz),
		Sx:   sx,
		Sy:   sy,
		Sz:   sz,
	}, nil
}

// FromSlice wraps an existing column-major buffer. The buffer is used
// directly, not copied.
func FromSlice[T Label](data []T, sx, sy, sz int) (*Volume[T], error) {
	v, err := New[T](sx, sy, sz)
	if err != nil {
		return nil, err
	}
	if len(data) != sx*sy*sz {
		return nil, fmt.Errorf("buffer length %d does not match dimensions (%d, %d, %d): %w",
			len(data), sx, sy, sz, ErrInvalidArgument)
	}
	v.Data = data
	return v, nil
}

// FromRowMajor copies a row-major (C order, z fastest) buffer into a new
// column-major volume. Callers holding volumes in the other layout are
// normalized through this before processing.
func FromRowMajor[T Label](data []T, sx, sy, sz int) (*Volume[T], error) {
	v, err := New[T](sx, sy, sz)
	if err != nil {
		return nil, err
	}
	if len(data) != sx*sy*sz {
		return nil, fmt.Errorf("buffer length %d does not match dimensions (%d, %d, %d): %w",
			len(data), sx, sy, sz, ErrInvalidArgument)
	}
	for x := 0; x < sx; x++ {
		for y := 0; y < sy; y++ {
			for z := 0; z < sz; z++ {
				v.Data[x+sx*(y+sy*z)] = data[z+sz*(y+sy*x)]
			}
		}
	}
	return v, nil
}

// FromBools converts a boolean image to its {0,1} uint8 representation.
// The buffer is interpreted as column-major.
func FromBools(bits []bool, sx, sy, sz int) (*Volume[uint8], error) {
	v, err := New[uint8](sx, sy, sz)
	if err != nil {
		return nil, err
	}
	if len(bits) != sx*sy*sz {
		return nil, fmt.Errorf("buffer length %d does not match dimensions (%d, %d, %d): %w",
			len(bits), sx, sy, sz, ErrInvalidArgument)
	}
	for i, b := range bits {
		if b {
			v.Data[i] = 1
		}
	}
	return v, nil
}

// ToBools converts a {0,1} volume back to a boolean buffer. Any nonzero
// voxel maps to true.
func ToBools[T Label](v *Volume[T]) []bool {
	bits := make([]bool, len(v.Data))
	for i, val := range v.Data {
		bits[i] = val != 0
	}
	return bits
}

// Index returns the flat offset of voxel (x, y, z).
func (v *Volume[T]) Index(x, y, z int) int {
	return x + v.Sx*(y+v.Sy*z)
}

// At returns the voxel value at (x, y, z).
func (v *Volume[T]) At(x, y, z int) T {
	return v.Data[v.Index(x, y, z)]
}

// Set assigns the voxel value at (x, y, z).
func (v *Volume[T]) Set(x, y, z int, val T) {
	v.Data[v.Index(x, y, z)] = val
}

// Len returns the number of voxels.
func (v *Volume[T]) Len() int {
	return len(v.Data)
}

// Clone returns a deep copy.
func (v *Volume[T]) Clone() *Volume[T] {
	out := &Volume[T]{
		Data: make([]T, len(v.Data)),
		Sx:   v.Sx,
		Sy:   v.Sy,
		Sz:   v.Sz,
	}
	copy(out.Data, v.Data)
	return out
}

// SameShape reports whether two volumes have identical dimensions.
func (v *Volume[T]) SameShape(o *Volume[T]) bool {
	return v.Sx == o.Sx && v.Sy == o.Sy && v.Sz == o.Sz
}

// IsBinary reports whether every voxel is 0 or 1.
func IsBinary[T Label](v *Volume[T]) bool {
	for _, val := range v.Data {
		if val != 0 && val != 1 {
			return false
		}
	}
	return true
}

// CountDifferences returns the number of positions at which two same-shaped
// volumes differ. It is used to measure how many voxels a morphological pass
// changed.
func CountDifferences[T Label](a, b *Volume[T]) (int, error) {
	if !a.SameShape(b) {
		return 0, fmt.Errorf("volumes have different shapes (%d, %d, %d) vs (%d, %d, %d): %w",
			a.Sx, a.Sy, a.Sz, b.Sx, b.Sy, b.Sz, ErrInvalidArgument)
	}
	ct := 0
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			ct++
		}
	}
	return ct, nil
}
