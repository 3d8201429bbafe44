package volume

import (
	"bytes"
	"path/filepath"
	"testing"
)

// TestContainerRoundTrip verifies that a volume survives serialization
func TestContainerRoundTrip(t *testing.T) {
	v, err := New[int16](4, 3, 2)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	for i := range v.Data {
		v.Data[i] = int16(i) - 5
	}

	var buf bytes.Buffer
	if err := Write(&buf, v); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Failed to read volume: %v", err)
	}
	back, ok := got.(*Volume[int16])
	if !ok {
		t.Fatalf("Expected *Volume[int16], got %T", got)
	}
	if !back.SameShape(v) {
		t.Errorf("Expected shape (%d, %d, %d), got (%d, %d, %d)",
			v.Sx, v.Sy, v.Sz, back.Sx, back.Sy, back.Sz)
	}
	diff, err := CountDifferences(v, back)
	if err != nil {
		t.Fatalf("Failed to compare volumes: %v", err)
	}
	if diff != 0 {
		t.Errorf("Round trip changed %d voxels", diff)
	}
}

// TestReadRejectsBadStream verifies stream validation
func TestReadRejectsBadStream(t *testing.T) {
	// Not a gzip stream at all
	if _, err := Read(bytes.NewReader([]byte("not a volume"))); err == nil {
		t.Error("Expected an error for a non-gzip stream")
	}

	// A truncated container
	v, _ := New[uint8](1, 1, 1)
	var buf bytes.Buffer
	if err := Write(&buf, v); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	trunc := buf.Bytes()[:len(buf.Bytes())/2]
	if _, err := Read(bytes.NewReader(trunc)); err == nil {
		t.Error("Expected an error for a truncated stream")
	}
}

// TestFileRoundTrip verifies the file-level helpers
func TestFileRoundTrip(t *testing.T) {
	v, _ := New[uint32](2, 2, 2)
	v.Data[3] = 7

	path := filepath.Join(t.TempDir(), "vol.vmv")
	if err := WriteFile(path, v); err != nil {
		t.Fatalf("Failed to write volume file: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read volume file: %v", err)
	}
	back, ok := got.(*Volume[uint32])
	if !ok {
		t.Fatalf("Expected *Volume[uint32], got %T", got)
	}
	if back.Data[3] != 7 {
		t.Errorf("Expected 7 at offset 3, got %d", back.Data[3])
	}
}

// TestDtypeOf verifies the dtype codes for all supported scalar types
func TestDtypeOf(t *testing.T) {
	if dt, err := DtypeOf[uint8](); err != nil || dt != DtypeUint8 {
		t.Errorf("Expected DtypeUint8, got %v (%v)", dt, err)
	}
	if dt, err := DtypeOf[int64](); err != nil || dt != DtypeInt64 {
		t.Errorf("Expected DtypeInt64, got %v (%v)", dt, err)
	}
	if DtypeInt32.String() != "int32" {
		t.Errorf("Expected dtype name int32, got %s", DtypeInt32.String())
	}
}
