package volume

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Container format for volumes on disk: a gzip stream wrapping a small
// little-endian header (magic "VMV1", one dtype byte, three uint32
// dimensions) followed by the raw column-major voxel payload.

var containerMagic = [4]byte{'V', 'M', 'V', '1'}

// Dtype identifies the scalar type of a stored volume.
type Dtype uint8

const (
	DtypeUint8 Dtype = iota + 1
	DtypeUint16
	DtypeUint32
	DtypeUint64
	DtypeInt8
	DtypeInt16
	DtypeInt32
	DtypeInt64
)

func (d Dtype) String() string {
	switch d {
	case DtypeUint8:
		return "uint8"
	case DtypeUint16:
		return "uint16"
	case DtypeUint32:
		return "uint32"
	case DtypeUint64:
		return "uint64"
	case DtypeInt8:
		return "int8"
	case DtypeInt16:
		return "int16"
	case DtypeInt32:
		return "int32"
	case DtypeInt64:
		return "int64"
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// DtypeOf returns the container dtype code for T. Named types defined on an
// integer base are not representable in the container.
func DtypeOf[T Label]() (Dtype, error) {
	switch any(T(0)).(type) {
	case uint8:
		return DtypeUint8, nil
	case uint16:
		return DtypeUint16, nil
	case uint32:
		return DtypeUint32, nil
	case uint64:
		return DtypeUint64, nil
	case int8:
		return DtypeInt8, nil
	case int16:
		return DtypeInt16, nil
	case int32:
		return DtypeInt32, nil
	case int64:
		return DtypeInt64, nil
	}
	return 0, fmt.Errorf("scalar type %T has no container dtype: %w", T(0), ErrInvalidArgument)
}

type containerHeader struct {
	Magic [4]byte
	Dtype Dtype
	Sx    uint32
	Sy    uint32
	Sz    uint32
}

// Write serializes a volume to the container format.
func Write[T Label](w io.Writer, v *Volume[T]) error {
	dt, err := DtypeOf[T]()
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(w)
	hdr := containerHeader{
		Magic: containerMagic,
		Dtype: dt,
		Sx:    uint32(v.Sx),
		Sy:    uint32(v.Sy),
		Sz:    uint32(v.Sz),
	}
	if err := binary.Write(zw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("failed to write volume header: %v", err)
	}
	if err := binary.Write(zw, binary.LittleEndian, v.Data); err != nil {
		return fmt.Errorf("failed to write voxel data: %v", err)
	}
	return zw.Close()
}

// Read deserializes a volume from the container format. The concrete result
// is a *Volume[T] matching the stored dtype, returned as any; callers
// dispatch with a type switch.
func Read(r io.Reader) (any, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume stream: %v", err)
	}
	defer zr.Close()

	var hdr containerHeader
	if err := binary.Read(zr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read volume header: %v", err)
	}
	if hdr.Magic != containerMagic {
		return nil, fmt.Errorf("bad volume magic %q: %w", hdr.Magic[:], ErrInvalidArgument)
	}

	switch hdr.Dtype {
	case DtypeUint8:
		return readPayload[uint8](zr, hdr)
	case DtypeUint16:
		return readPayload[uint16](zr, hdr)
	case DtypeUint32:
		return readPayload[uint32](zr, hdr)
	case DtypeUint64:
		return readPayload[uint64](zr, hdr)
	case DtypeInt8:
		return readPayload[int8](zr, hdr)
	case DtypeInt16:
		return readPayload[int16](zr, hdr)
	case DtypeInt32:
		return readPayload[int32](zr, hdr)
	case DtypeInt64:
		return readPayload[int64](zr, hdr)
	}
	return nil, fmt.Errorf("unknown dtype code %d: %w", hdr.Dtype, ErrInvalidArgument)
}

func readPayload[T Label](r io.Reader, hdr containerHeader) (*Volume[T], error) {
	v, err := New[T](int(hdr.Sx), int(hdr.Sy), int(hdr.Sz))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, v.Data); err != nil {
		return nil, fmt.Errorf("failed to read voxel data: %v", err)
	}
	return v, nil
}

// WriteFile serializes a volume to a container file.
func WriteFile[T Label](path string, v *Volume[T]) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file: %v", err)
	}
	if err := Write(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile deserializes a volume from a container file.
func ReadFile(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume file: %v", err)
	}
	defer f.Close()
	return Read(f)
}
