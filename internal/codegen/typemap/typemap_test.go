package typemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 126, tbl.Len())

	typ, err := tbl.Lookup("TPMI_DH_OBJECT")
	require.NoError(t, err)
	assert.Equal(t, KindInterface, typ.Kind)
	assert.True(t, typ.Conditional)

	typ, err = tbl.Lookup("TPM2B_DIGEST")
	require.NoError(t, err)
	assert.Equal(t, KindStructure, typ.Kind)
	assert.False(t, typ.Conditional)

	typ, err = tbl.Lookup("TPMU_HA")
	require.NoError(t, err)
	assert.False(t, typ.CommandField())

	_, err = tbl.Lookup("TPM2B_NOT_A_TYPE")
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Contains(t, err.Error(), "TPM2B_NOT_A_TYPE")
}

func TestParseFormats(t *testing.T) {
	type testCase struct {
		name   string
		format string
		data   string
	}

	cases := []testCase{
		{
			name:   "yaml",
			format: "yaml",
			data: `types:
  - name: VENDOR_HANDLE
    kind: interface
    conditional: true
  - name: VENDOR_BLOB
`,
		},
		{
			name:   "toml",
			format: "toml",
			data: `[[types]]
name = "VENDOR_HANDLE"
kind = "interface"
conditional = true

[[types]]
name = "VENDOR_BLOB"
`,
		},
		{
			name:   "json",
			format: "json",
			data:   `{"types":[{"name":"VENDOR_HANDLE","kind":"interface","conditional":true},{"name":"VENDOR_BLOB"}]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl, err := Parse([]byte(tc.data), tc.format)
			require.NoError(t, err)
			assert.Equal(t, []string{"VENDOR_BLOB", "VENDOR_HANDLE"}, tbl.Names())

			h, err := tbl.Lookup("VENDOR_HANDLE")
			require.NoError(t, err)
			assert.Equal(t, Type{Name: "VENDOR_HANDLE", Kind: KindInterface, Conditional: true}, h)

			b, err := tbl.Lookup("VENDOR_BLOB")
			require.NoError(t, err)
			assert.Equal(t, KindTypedef, b.Kind, "empty kind defaults to typedef")
		})
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse([]byte("types:\n  - name: X\n    kind: bitfield\n"), "yaml")
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = Parse([]byte("types:\n  - kind: typedef\n"), "yaml")
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = Parse([]byte("{}"), "xml")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLoadAndMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vendor.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[[types]]
name = "TPM2B_DIGEST"
kind = "structure"
conditional = true

[[types]]
name = "VENDOR_BLOB"
`), 0o644))

	extra, err := Load(path)
	require.NoError(t, err)

	tbl, err := Default()
	require.NoError(t, err)
	before := tbl.Len()
	tbl.Merge(extra)

	assert.Equal(t, before+1, tbl.Len())
	d, err := tbl.Lookup("TPM2B_DIGEST")
	require.NoError(t, err)
	assert.True(t, d.Conditional, "user table overrides built-in entries")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
