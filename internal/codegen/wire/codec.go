// Package wire executes command plans over byte buffers. It mirrors what the
// generated C does with the TPM type library, using small Go codecs, so the
// ordering and size bookkeeping of a plan can be checked end to end.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Alia5/tpm2gen/internal/codegen/plan"
)

var (
	// ErrInsufficient mirrors TPM_RC_INSUFFICIENT.
	ErrInsufficient = errors.New("insufficient bytes")
	// ErrSize mirrors TPM_RC_SIZE.
	ErrSize = errors.New("size mismatch")
	// ErrValue mirrors TPM_RC_VALUE.
	ErrValue = errors.New("value not allowed")
	// ErrHandleCount is returned when a request references a handle that was
	// not supplied.
	ErrHandleCount = errors.New("missing request handle")
	ErrNoCodec     = errors.New("no codec for type")
	ErrValueType   = errors.New("unexpected Go value type")
)

// Codec is the Go stand-in for a type's Marshal/Unmarshal primitives.
type Codec interface {
	// Decode reads one value from the front of b and returns it with the
	// number of bytes consumed.
	Decode(b []byte, flag plan.Flag) (any, int, error)
	// Encode appends v to dst.
	Encode(dst []byte, v any) ([]byte, error)
}

// Codecs maps type names to codecs.
type Codecs map[string]Codec

func (c Codecs) lookup(typ string) (Codec, error) {
	codec, ok := c[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCodec, typ)
	}
	return codec, nil
}

// Uint is a big-endian unsigned integer of Size bytes (1, 2, 4 or 8).
// Values are uint64.
type Uint struct {
	Size int
}

func (u Uint) Decode(b []byte, _ plan.Flag) (any, int, error) {
	if len(b) < u.Size {
		return nil, 0, ErrInsufficient
	}
	var v uint64
	for _, c := range b[:u.Size] {
		v = v<<8 | uint64(c)
	}
	return v, u.Size, nil
}

func (u Uint) Encode(dst []byte, v any) ([]byte, error) {
	n, ok := v.(uint64)
	if !ok {
		return dst, fmt.Errorf("%w: %T", ErrValueType, v)
	}
	for i := u.Size - 1; i >= 0; i-- {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst, nil
}

// Interface is a Uint whose Null value is only accepted when the caller
// passes FlagTrue, like TPMI_ types marked with '+' in the command listing.
type Interface struct {
	Uint
	Null uint64
}

func (i Interface) Decode(b []byte, flag plan.Flag) (any, int, error) {
	v, n, err := i.Uint.Decode(b, flag)
	if err != nil {
		return nil, 0, err
	}
	if v.(uint64) == i.Null && flag != plan.FlagTrue {
		return nil, 0, ErrValue
	}
	return v, n, nil
}

// Sized is a TPM2B-style buffer: a 2-byte size followed by that many bytes.
// Values are []byte.
type Sized struct {
	Max int
}

func (s Sized) Decode(b []byte, _ plan.Flag) (any, int, error) {
	if len(b) < 2 {
		return nil, 0, ErrInsufficient
	}
	size := int(binary.BigEndian.Uint16(b))
	if s.Max > 0 && size > s.Max {
		return nil, 0, ErrSize
	}
	if len(b)-2 < size {
		return nil, 0, ErrInsufficient
	}
	out := make([]byte, size)
	copy(out, b[2:2+size])
	return out, 2 + size, nil
}

func (s Sized) Encode(dst []byte, v any) ([]byte, error) {
	data, ok := v.([]byte)
	if !ok {
		return dst, fmt.Errorf("%w: %T", ErrValueType, v)
	}
	if s.Max > 0 && len(data) > s.Max {
		return dst, ErrSize
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(data)))
	return append(dst, data...), nil
}
