package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/tpm2gen/internal/codegen/model"
	"github.com/Alia5/tpm2gen/internal/codegen/plan"
	"github.com/Alia5/tpm2gen/internal/codegen/typemap"
	"github.com/Alia5/tpm2gen/internal/log"
)

const (
	rhNull    = 0x40000007
	algNull   = 0x0010
	transient = 0x80000000
)

var testCodecs = Codecs{
	"TPM_HANDLE":      Uint{Size: 4},
	"TPMI_DH_OBJECT":  Interface{Uint: Uint{Size: 4}, Null: rhNull},
	"TPMI_ALG_HASH":   Interface{Uint: Uint{Size: 2}, Null: algNull},
	"TPMT_SIG_SCHEME": Interface{Uint: Uint{Size: 2}, Null: algNull},
	"TPM2B_DATA":      Sized{Max: 64},
	"TPM2B_NAME":      Sized{},
	"TPM2B_AUTH":      Sized{},
	"TPM2B_ATTEST":    Sized{},
	"TPMT_SIGNATURE":  Sized{},
	"UINT64":          Uint{Size: 8},
}

func build(t *testing.T, cmd *model.Command) *plan.Command {
	t.Helper()
	types, err := typemap.Default()
	require.NoError(t, err)
	p, err := plan.Build(cmd, types)
	require.NoError(t, err)
	return p
}

var certify = &model.Command{
	Name:        "TPM2_Certify",
	CommandCode: "TPM_CC_Certify",
	RequestArgs: []model.Argument{
		{Type: "TPMI_DH_OBJECT", Name: "objectHandle"},
		{Type: "TPMI_DH_OBJECT", Name: "signHandle", HasConditional: true},
		{Type: "TPM2B_DATA", Name: "qualifyingData"},
		{Type: "TPMT_SIG_SCHEME", Name: "inScheme", HasConditional: true},
	},
	ResponseArgs: []model.Argument{
		{Type: "TPM2B_ATTEST", Name: "certifyInfo"},
		{Type: "TPMT_SIGNATURE", Name: "signature"},
	},
}

var load = &model.Command{
	Name:        "TPM2_HashSequenceStart",
	CommandCode: "TPM_CC_HashSequenceStart",
	RequestArgs: []model.Argument{
		{Type: "TPM2B_AUTH", Name: "auth"},
		{Type: "TPMI_ALG_HASH", Name: "hashAlg", HasConditional: true},
	},
	ResponseArgs: []model.Argument{
		{Type: "TPM_HANDLE", Name: "sequenceHandle"},
		{Type: "TPM2B_NAME", Name: "name"},
	},
}

func sized(b ...byte) []byte {
	return append(binary.BigEndian.AppendUint16(nil, uint16(len(b))), b...)
}

func TestDecodeRequest(t *testing.T) {
	p := build(t, certify)
	m := New(testCodecs, nil)

	params := append(sized(1, 2, 3), 0x00, 0x10)
	f, err := m.DecodeRequest(p.Request, []uint32{transient, rhNull}, params)
	require.NoError(t, err)
	assert.Equal(t, Fields{
		"objectHandle":   uint64(transient),
		"signHandle":     uint64(rhNull),
		"qualifyingData": []byte{1, 2, 3},
		"inScheme":       uint64(algNull),
	}, f)
}

func TestDecodeRequestFailures(t *testing.T) {
	p := build(t, certify)
	m := New(testCodecs, nil)
	handles := []uint32{transient, transient}

	tests := []struct {
		name    string
		handles []uint32
		params  []byte
		want    error
	}{
		{name: "trailing byte", handles: handles, params: append(sized(1), 0x00, 0x10, 0xff), want: ErrSize},
		{name: "short parameter", handles: handles, params: sized(1)[:2], want: ErrInsufficient},
		{name: "oversized buffer", handles: handles, params: append(sized(make([]byte, 65)...), 0x00, 0x10), want: ErrSize},
		{name: "missing handle", handles: handles[:1], params: append(sized(), 0x00, 0x10), want: ErrHandleCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := m.DecodeRequest(p.Request, tt.handles, tt.params)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, f)
		})
	}
}

func TestDecodeRequestNullNeedsConditional(t *testing.T) {
	cmd := &model.Command{
		Name:        "TPM2_HashSequenceStart",
		CommandCode: "TPM_CC_HashSequenceStart",
		RequestArgs: []model.Argument{
			{Type: "TPM2B_AUTH", Name: "auth"},
			{Type: "TPMI_ALG_HASH", Name: "hashAlg"},
		},
	}
	p := build(t, cmd)
	_, err := New(testCodecs, nil).DecodeRequest(p.Request, nil, append(sized(), 0x00, 0x10))
	assert.ErrorIs(t, err, ErrValue)

	p = build(t, load)
	f, err := New(testCodecs, nil).DecodeRequest(p.Request, nil, append(sized(), 0x00, 0x10))
	require.NoError(t, err)
	assert.Equal(t, uint64(algNull), f["hashAlg"])
}

func TestParseHandles(t *testing.T) {
	p := build(t, certify)
	m := New(testCodecs, nil)

	buf := binary.BigEndian.AppendUint32(nil, transient)
	buf = binary.BigEndian.AppendUint32(buf, rhNull)
	handles, n, err := m.ParseHandles(p.HandleOps, buf)
	require.NoError(t, err)
	assert.Equal(t, []uint32{transient, rhNull}, handles)
	assert.Equal(t, 8, n)

	// objectHandle is not conditional, so TPM_RH_NULL is refused and the
	// count stays at zero.
	buf = binary.BigEndian.AppendUint32(nil, rhNull)
	buf = binary.BigEndian.AppendUint32(buf, transient)
	handles, n, err = m.ParseHandles(p.HandleOps, buf)
	assert.ErrorIs(t, err, ErrValue)
	assert.Empty(t, handles)
	assert.Equal(t, 0, n)

	handles, n, err = m.ParseHandles(p.HandleOps, buf[:6])
	assert.ErrorIs(t, err, ErrValue)
	assert.Empty(t, handles)
	assert.Zero(t, n)

	buf = binary.BigEndian.AppendUint32(nil, transient)
	handles, n, err = m.ParseHandles(p.HandleOps, append(buf, 0x80))
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, []uint32{transient}, handles)
	assert.Equal(t, 4, n)
}

func TestEncodeResponseParameterSize(t *testing.T) {
	tests := []struct {
		name   string
		cmd    *model.Command
		fields Fields
	}{
		{
			name: "no response handles",
			cmd:  certify,
			fields: Fields{
				"certifyInfo": bytes.Repeat([]byte{0xaa}, 17),
				"signature":   []byte{1, 2},
			},
		},
		{
			name:   "one response handle",
			cmd:    load,
			fields: Fields{"sequenceHandle": uint64(transient), "name": []byte("seq")},
		},
		{
			name:   "empty parameters",
			cmd:    load,
			fields: Fields{"sequenceHandle": uint64(transient), "name": []byte{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, tt.cmd)
			m := New(testCodecs, nil)
			handleBytes := p.ResponseHandles() * plan.HandleSize

			out, total, err := m.EncodeResponse(p.Response, true, tt.fields)
			require.NoError(t, err)
			assert.Equal(t, len(out)-plan.ParamSizeSize, total)

			paramSize := binary.BigEndian.Uint32(out[handleBytes:])
			assert.Equal(t, uint32(total-handleBytes), paramSize)
			assert.Equal(t, len(out)-handleBytes-plan.ParamSizeSize, int(paramSize))

			back, err := m.DecodeResponse(p.Response, true, out)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, back)

			plain, plainTotal, err := m.EncodeResponse(p.Response, false, tt.fields)
			require.NoError(t, err)
			assert.Equal(t, total, plainTotal)
			assert.Len(t, plain, plainTotal)
			assert.Equal(t, out[:handleBytes], plain[:handleBytes])
			assert.Equal(t, out[handleBytes+plan.ParamSizeSize:], plain[handleBytes:])
		})
	}
}

func TestDecodeResponseRejectsBadParameterSize(t *testing.T) {
	p := build(t, load)
	m := New(testCodecs, nil)
	out, _, err := m.EncodeResponse(p.Response, true, Fields{"sequenceHandle": uint64(transient), "name": []byte("x")})
	require.NoError(t, err)

	binary.BigEndian.PutUint32(out[plan.HandleSize:], 99)
	_, err = m.DecodeResponse(p.Response, true, out)
	assert.ErrorIs(t, err, ErrSize)

	_, err = m.DecodeResponse(p.Response, true, out[:6])
	assert.ErrorIs(t, err, ErrInsufficient)
}

func TestEncodeResponseErrors(t *testing.T) {
	p := build(t, load)

	_, _, err := New(testCodecs, nil).EncodeResponse(p.Response, true, Fields{"sequenceHandle": "nope"})
	assert.ErrorIs(t, err, ErrValueType)

	_, _, err = New(Codecs{}, nil).EncodeResponse(p.Response, true, Fields{})
	assert.ErrorIs(t, err, ErrNoCodec)
}

func TestRawLogging(t *testing.T) {
	var raw bytes.Buffer
	p := build(t, load)
	m := New(testCodecs, log.NewRaw(&raw))

	_, err := m.DecodeRequest(p.Request, nil, append(sized(7), 0x00, 0x0b))
	require.NoError(t, err)
	_, _, err = m.EncodeResponse(p.Response, true, Fields{"sequenceHandle": uint64(transient), "name": []byte{}})
	require.NoError(t, err)

	assert.Contains(t, raw.String(), "#1 cmd 5 bytes")
	assert.Contains(t, raw.String(), "#2 rsp 10 bytes")
}
