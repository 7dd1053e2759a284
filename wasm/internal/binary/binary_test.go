package binary

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestU32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 300, 16384, math.MaxUint32}
	for _, v := range values {
		w := NewWriter()
		w.WriteU32(v)
		r := NewReader(bytes.NewReader(w.Bytes()))
		got, err := r.ReadU32()
		if err != nil {
			t.Fatalf("ReadU32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d = %d", v, got)
		}
		if r.Position() != w.Len() {
			t.Errorf("position %d, wrote %d bytes", r.Position(), w.Len())
		}
	}
}

func TestS32RoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 63, 64, -64, -65, math.MaxInt32, math.MinInt32}
	for _, v := range values {
		w := NewWriter()
		w.WriteS32(v)
		r := NewReader(bytes.NewReader(w.Bytes()))
		got, err := r.ReadS32()
		if err != nil {
			t.Fatalf("ReadS32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d = %d", v, got)
		}
	}
}

func TestS64RoundTrip(t *testing.T) {
	values := []int64{0, -1, math.MaxInt64, math.MinInt64, 1 << 40, -(1 << 40)}
	for _, v := range values {
		w := NewWriter()
		w.WriteS64(v)
		r := NewReader(bytes.NewReader(w.Bytes()))
		got, err := r.ReadS64()
		if err != nil {
			t.Fatalf("ReadS64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d = %d", v, got)
		}
	}
}

func TestReadU32Overflow(t *testing.T) {
	// Six continuation bytes exceed the 32-bit range.
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	r := NewReader(bytes.NewReader(data))
	if _, err := r.ReadU32(); !errors.Is(err, ErrOverflow) {
		t.Errorf("err = %v, want ErrOverflow", err)
	}
}

func TestReadName(t *testing.T) {
	w := NewWriter()
	w.WriteName("env")
	r := NewReader(bytes.NewReader(w.Bytes()))
	name, err := r.ReadName()
	if err != nil {
		t.Fatalf("ReadName: %v", err)
	}
	if name != "env" {
		t.Errorf("name = %q, want env", name)
	}

	// Invalid UTF-8 is rejected.
	r = NewReader(bytes.NewReader([]byte{0x02, 0xff, 0xfe}))
	if _, err := r.ReadName(); err == nil {
		t.Error("ReadName accepted invalid UTF-8")
	}
}

func TestFixedWidth(t *testing.T) {
	w := NewWriter()
	w.WriteU32LE(0xDEADBEEF)
	w.WriteU64LE(math.Float64bits(6.25))

	r := NewReader(bytes.NewReader(w.Bytes()))
	u, err := r.ReadU32LE()
	if err != nil || u != 0xDEADBEEF {
		t.Fatalf("ReadU32LE = %x, %v", u, err)
	}
	raw, err := r.ReadBytes(8)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if math.Float64frombits(leU64(raw)) != 6.25 {
		t.Errorf("f64 payload = %v", raw)
	}
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func TestSliceHelpers(t *testing.T) {
	for _, v := range []uint32{0, 5, 127, 128, 300, 1 << 20} {
		enc := AppendULEB128(nil, v)
		got, n := ULEB128(enc)
		if got != v || n != len(enc) {
			t.Errorf("ULEB128(AppendULEB128(%d)) = %d, %d", v, got, n)
		}
	}
}

func TestParseError(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02}))
	_, _ = r.ReadByte()
	err := r.WrapError("import section", errors.New("bad kind"))

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("WrapError did not produce *ParseError: %v", err)
	}
	if perr.Position != 1 || perr.Section != "import section" {
		t.Errorf("ParseError = %+v", perr)
	}
}
