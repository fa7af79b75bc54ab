package encoding

import (
	"errors"
	"testing"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 10, 10, 10, 1, 1, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 1)
	}
	in = append(in, 20, 11, 11, 11)

	out, err := DecodeRLE(EncodeRLE(in), len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestDecodeRLE_LengthChecked(t *testing.T) {
	enc := EncodeRLE([]uint16{1, 1, 1, 2})
	for _, want := range []int{3, 5} {
		if _, err := DecodeRLE(enc, want); !errors.Is(err, ErrLength) {
			t.Fatalf("want=%d: expected ErrLength, got %v", want, err)
		}
	}
	if out, err := DecodeRLE(enc, -1); err != nil || len(out) != 4 {
		t.Fatalf("unchecked decode: %v %v", out, err)
	}
}

func TestBools_RoundTrip(t *testing.T) {
	in := []bool{true, true, false, true, false, false}
	out, err := DecodeBools(EncodeBools(in), len(in))
	if err != nil {
		t.Fatalf("DecodeBools: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d", i)
		}
	}
}
