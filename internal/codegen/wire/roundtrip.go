package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/Alia5/tpm2gen/internal/codegen/plan"
	"github.com/Alia5/tpm2gen/internal/codegen/typemap"
)

// ErrRoundTrip reports a plan whose encode and decode disagree.
var ErrRoundTrip = errors.New("round trip mismatch")

// syntheticNull is the Null value of synthetic interface codecs. Synthetic
// field values never use it.
const syntheticNull = 0x40000007

// Synthetic builds stand-in codecs for every type in the table: scalar kinds
// become 4-byte integers (conditional ones gain a Null value) and structures
// become sized buffers. Unions get no codec.
func Synthetic(types *typemap.Table) Codecs {
	codecs := make(Codecs, types.Len())
	for _, name := range types.Names() {
		typ, err := types.Lookup(name)
		if err != nil {
			continue
		}
		switch typ.Kind {
		case typemap.KindStructure:
			codecs[name] = Sized{}
		case typemap.KindUnion:
		default:
			if typ.Conditional {
				codecs[name] = Interface{Uint: Uint{Size: 4}, Null: syntheticNull}
			} else {
				codecs[name] = Uint{Size: 4}
			}
		}
	}
	return codecs
}

func (m *Machine) sample(typ string, i int) (any, error) {
	codec, err := m.codecs.lookup(typ)
	if err != nil {
		return nil, err
	}
	switch c := codec.(type) {
	case Sized:
		n := i + 1
		if c.Max > 0 && n > c.Max {
			n = c.Max
		}
		return bytes.Repeat([]byte{byte(i + 1)}, n), nil
	default:
		return uint64(0x80000000 + i), nil
	}
}

// RoundTrip runs p's request and response plans over synthetic values and
// checks that decoding returns what was encoded and that parameter_size
// equals the encoded total minus the response handle bytes.
func (m *Machine) RoundTrip(p *plan.Command) error {
	if p.Request != nil {
		if err := m.roundTripRequest(p); err != nil {
			return fmt.Errorf("%s request: %w", p.Name, err)
		}
	}
	if p.Response != nil {
		if err := m.roundTripResponse(p.Response); err != nil {
			return fmt.Errorf("%s response: %w", p.Name, err)
		}
	}
	return nil
}

func (m *Machine) roundTripRequest(p *plan.Command) error {
	want := make(Fields)
	var handles []uint32
	var handleBuf, params []byte
	for i, op := range p.Request.Ops {
		switch op.Kind {
		case plan.OpAssignHandle:
			v, err := m.sample(op.Type, i)
			if err != nil {
				return err
			}
			h, ok := v.(uint64)
			if !ok {
				return fmt.Errorf("%w: handle %s of type %s is not an integer", ErrValueType, op.Field, op.Type)
			}
			want[op.Field] = v
			handles = append(handles, uint32(h))
			handleBuf = binary.BigEndian.AppendUint32(handleBuf, uint32(h))
		case plan.OpDecode:
			v, err := m.sample(op.Type, i)
			if err != nil {
				return err
			}
			codec, _ := m.codecs.lookup(op.Type)
			if params, err = codec.Encode(params, v); err != nil {
				return err
			}
			want[op.Field] = v
		}
	}

	parsed, n, err := m.ParseHandles(p.HandleOps, handleBuf)
	if err != nil {
		return err
	}
	if n != len(handleBuf) || !reflect.DeepEqual(parsed, handles) {
		return fmt.Errorf("%w: handles %v, parsed %v", ErrRoundTrip, handles, parsed)
	}

	got, err := m.DecodeRequest(p.Request, handles, params)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("%w: decoded %v, want %v", ErrRoundTrip, got, want)
	}
	return nil
}

func (m *Machine) roundTripResponse(e *plan.Encode) error {
	want := make(Fields)
	for i, op := range e.Ops {
		if op.Kind != plan.OpEncode {
			continue
		}
		v, err := m.sample(op.Type, i)
		if err != nil {
			return err
		}
		want[op.Field] = v
	}

	out, total, err := m.EncodeResponse(e, true, want)
	if err != nil {
		return err
	}
	handleBytes := e.Handles * plan.HandleSize
	if len(out) < handleBytes+plan.ParamSizeSize {
		return fmt.Errorf("%w: response of %d bytes has no room for parameter_size", ErrRoundTrip, len(out))
	}
	paramSize := int(binary.BigEndian.Uint32(out[handleBytes:]))
	if paramSize != total-handleBytes || total != len(out)-plan.ParamSizeSize {
		return fmt.Errorf("%w: parameter_size %d, total %d, handle bytes %d", ErrRoundTrip, paramSize, total, handleBytes)
	}

	got, err := m.DecodeResponse(e, true, out)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("%w: decoded %v, want %v", ErrRoundTrip, got, want)
	}
	return nil
}
