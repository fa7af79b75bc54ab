// Package encoding packs per-tile layers (tile numbers, rotations, passability) for snapshots.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrLength = errors.New("encoding: decoded layer has wrong length")

// EncodeRLE encodes a layer as base64 of uvarint (value, run) pairs.
func EncodeRLE(layer []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(layer); {
		v := layer[i]
		j := i + 1
		for j < len(layer) && layer[j] == v {
			j++
		}
		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(j-i))
		buf.Write(tmp[:n])
		i = j
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. A non-negative want rejects layers of any other length, which
// also bounds the allocation a corrupt run can cause.
func DecodeRLE(s string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, max(want, 0))
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad value varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 || run == 0 {
			return nil, fmt.Errorf("bad run varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		if want >= 0 && uint64(len(out))+run > uint64(want) {
			return nil, ErrLength
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(v))
		}
	}
	if want >= 0 && len(out) != want {
		return nil, ErrLength
	}
	return out, nil
}

// EncodeBools packs a boolean layer as an RLE layer of 0/1.
func EncodeBools(layer []bool) string {
	vals := make([]uint16, len(layer))
	for i, b := range layer {
		if b {
			vals[i] = 1
		}
	}
	return EncodeRLE(vals)
}

func DecodeBools(s string, want int) ([]bool, error) {
	vals, err := DecodeRLE(s, want)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v != 0
	}
	return out, nil
}
