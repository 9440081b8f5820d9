package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/Alia5/tpm2gen/internal/codegen/plan"
	"github.com/Alia5/tpm2gen/internal/log"
)

// Fields holds the values of a command's In or Out structure by field name.
type Fields map[string]any

// Machine runs plans.
type Machine struct {
	codecs Codecs
	raw    log.RawLogger
}

// New returns a Machine using codecs. raw receives every request buffer
// consumed (in) and response buffer produced (out); it may be nil.
func New(codecs Codecs, raw log.RawLogger) *Machine {
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Machine{codecs: codecs, raw: raw}
}

// ParseHandles decodes the request handle area the way ParseHandleBuffer
// does. It returns the handles decoded so far and the bytes consumed; the
// first decode failure stops it.
func (m *Machine) ParseHandles(ops []plan.Op, buf []byte) ([]uint32, int, error) {
	m.raw.Log(true, buf)
	var handles []uint32
	off := 0
	for _, op := range ops {
		codec, err := m.codecs.lookup(op.Type)
		if err != nil {
			return handles, off, err
		}
		v, n, err := codec.Decode(buf[off:], op.Flag)
		if err != nil {
			return handles, off, err
		}
		h, ok := v.(uint64)
		if !ok {
			return handles, off, fmt.Errorf("%w: handle %s decoded as %T", ErrValueType, op.Field, v)
		}
		handles = append(handles, uint32(h))
		off += n
	}
	return handles, off, nil
}

// DecodeRequest runs an In_Unmarshal plan. Handle fields come from handles,
// parameters from params. The first failing step ends the decode and its
// error is returned as is.
func (m *Machine) DecodeRequest(d *plan.Decode, handles []uint32, params []byte) (Fields, error) {
	m.raw.Log(true, params)
	f := make(Fields)
	off := 0
	for _, op := range d.Ops {
		switch op.Kind {
		case plan.OpAssignHandle:
			if op.Index >= len(handles) {
				return nil, ErrHandleCount
			}
			f[op.Field] = uint64(handles[op.Index])
		case plan.OpDecode:
			codec, err := m.codecs.lookup(op.Type)
			if err != nil {
				return nil, err
			}
			v, n, err := codec.Decode(params[off:], op.Flag)
			if err != nil {
				return nil, err
			}
			f[op.Field] = v
			off += n
		case plan.OpCheckTrailing:
			if off != len(params) {
				return nil, ErrSize
			}
		}
	}
	return f, nil
}

// EncodeResponse runs an Out_Marshal plan. It returns the handle area,
// optional parameter_size and parameter area, plus the total the generated
// function reports: handles and parameters, not parameter_size.
func (m *Machine) EncodeResponse(e *plan.Encode, sessions bool, f Fields) ([]byte, int, error) {
	var buf []byte
	total := 0
	placeholder := -1
	for _, op := range e.Ops {
		switch op.Kind {
		case plan.OpEncode:
			codec, err := m.codecs.lookup(op.Type)
			if err != nil {
				return nil, 0, err
			}
			before := len(buf)
			if buf, err = codec.Encode(buf, f[op.Field]); err != nil {
				return nil, 0, fmt.Errorf("encode %s: %w", op.Field, err)
			}
			total += len(buf) - before
		case plan.OpReserveParamSize:
			if sessions {
				placeholder = len(buf)
				buf = append(buf, make([]byte, plan.ParamSizeSize)...)
			}
		case plan.OpPatchParamSize:
			if sessions {
				binary.BigEndian.PutUint32(buf[placeholder:], uint32(total-e.Handles*plan.HandleSize))
			}
		}
	}
	m.raw.Log(false, buf)
	return buf, total, nil
}

// DecodeResponse parses what EncodeResponse produced, checking that a
// parameter_size field matches the parameter bytes that follow it.
func (m *Machine) DecodeResponse(e *plan.Encode, sessions bool, b []byte) (Fields, error) {
	f := make(Fields)
	off := 0
	paramSize, paramStart := 0, 0
	for _, op := range e.Ops {
		switch op.Kind {
		case plan.OpEncode:
			codec, err := m.codecs.lookup(op.Type)
			if err != nil {
				return nil, err
			}
			v, n, err := codec.Decode(b[off:], plan.FlagTrue)
			if err != nil {
				return nil, err
			}
			f[op.Field] = v
			off += n
		case plan.OpReserveParamSize:
			if sessions {
				if len(b)-off < plan.ParamSizeSize {
					return nil, ErrInsufficient
				}
				paramSize = int(binary.BigEndian.Uint32(b[off:]))
				off += plan.ParamSizeSize
				paramStart = off
			}
		case plan.OpPatchParamSize:
			if sessions && off-paramStart != paramSize {
				return nil, fmt.Errorf("%w: parameter_size %d, parameter area %d", ErrSize, paramSize, off-paramStart)
			}
		}
	}
	if off != len(b) {
		return nil, ErrSize
	}
	return f, nil
}
