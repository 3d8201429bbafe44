package volume

import "fmt"

// FaceID identifies one of the six bounding-box faces of a volume.
type FaceID int

const (
	FaceXNeg FaceID = iota // x == 0 plane, axes (y, z)
	FaceXPos               // x == Sx-1 plane, axes (y, z)
	FaceYNeg               // y == 0 plane, axes (x, z)
	FaceYPos               // y == Sy-1 plane, axes (x, z)
	FaceZNeg               // z == 0 plane, axes (x, y)
	FaceZPos               // z == Sz-1 plane, axes (x, y)
)

// Faces lists all six bounding-box faces.
var Faces = [6]FaceID{FaceXNeg, FaceXPos, FaceYNeg, FaceYPos, FaceZNeg, FaceZPos}

// faceFrame returns the fixed coordinate of the face plane plus the flat
// strides of the face's two in-plane axes (u, v) and their extents.
func (v *Volume[T]) faceFrame(f FaceID) (origin, strideU, strideV, su, sv int) {
	sxy := v.Sx * v.Sy
	switch f {
	case FaceXNeg:
		return 0, v.Sx, sxy, v.Sy, v.Sz
	case FaceXPos:
		return v.Sx - 1, v.Sx, sxy, v.Sy, v.Sz
	case FaceYNeg:
		return 0, 1, sxy, v.Sx, v.Sz
	case FaceYPos:
		return (v.Sy - 1) * v.Sx, 1, sxy, v.Sx, v.Sz
	case FaceZNeg:
		return 0, 1, v.Sx, v.Sx, v.Sy
	case FaceZPos:
		return (v.Sz - 1) * sxy, 1, v.Sx, v.Sx, v.Sy
	}
	panic(fmt.Sprintf("unknown face id %d", f))
}

// Face extracts one bounding-box face as a 2D volume (Sz == 1). The in-plane
// axes follow the FaceID documentation: the lower-order volume axis becomes
// the face's first axis.
func (v *Volume[T]) Face(f FaceID) *Volume[T] {
	origin, strideU, strideV, su, sv := v.faceFrame(f)
	face := &Volume[T]{
		Data: make([]T, su*sv),
		Sx:   su,
		Sy:   sv,
		Sz:   1,
	}
	for j := 0; j < sv; j++ {
		for i := 0; i < su; i++ {
			face.Data[i+su*j] = v.Data[origin+i*strideU+j*strideV]
		}
	}
	return face
}

// SetFace writes a 2D volume produced by Face back onto the corresponding
// bounding-box plane.
func (v *Volume[T]) SetFace(f FaceID, face *Volume[T]) error {
	origin, strideU, strideV, su, sv := v.faceFrame(f)
	if face.Sx != su || face.Sy != sv || face.Sz != 1 {
		return fmt.Errorf("face shape (%d, %d, %d) does not match target plane (%d, %d, 1): %w",
			face.Sx, face.Sy, face.Sz, su, sv, ErrInvalidArgument)
	}
	for j := 0; j < sv; j++ {
		for i := 0; i < su; i++ {
			v.Data[origin+i*strideU+j*strideV] = face.Data[i+su*j]
		}
	}
	return nil
}
