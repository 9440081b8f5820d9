package cgen

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/tpm2gen/internal/codegen/common"
	"github.com/Alia5/tpm2gen/internal/codegen/grammar"
	"github.com/Alia5/tpm2gen/internal/codegen/meta"
	"github.com/Alia5/tpm2gen/internal/codegen/model"
	"github.com/Alia5/tpm2gen/internal/codegen/plan"
	"github.com/Alia5/tpm2gen/internal/codegen/typemap"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func listingMetadata(t *testing.T, jobs int) *meta.Metadata {
	t.Helper()
	f, err := os.Open("../../testdata/commands.txt")
	require.NoError(t, err)
	defer f.Close()

	cmds, err := grammar.Parse(f, discard())
	require.NoError(t, err)
	types, err := typemap.Default()
	require.NoError(t, err)
	plans, err := plan.BuildAll(cmds, types)
	require.NoError(t, err)

	return &meta.Metadata{
		Commands: cmds,
		Plans:    plans,
		Types:    types,
		Stamp:    common.Stamp{Version: "1.2.3", Digest: common.Digest([]byte("listing"))},
		Jobs:     jobs,
	}
}

func render(t *testing.T, md *meta.Metadata) map[string]string {
	t.Helper()
	artifacts, err := Render(context.Background(), discard(), md)
	require.NoError(t, err)
	out := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		out[a.Name] = string(a.Data)
	}
	return out
}

func TestRenderArtifactSet(t *testing.T) {
	md := listingMetadata(t, 2)
	artifacts, err := Render(context.Background(), discard(), md)
	require.NoError(t, err)

	var names, kinds []string
	for _, a := range artifacts {
		names = append(names, a.Name)
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []string{
		"Certify_fp.h", "Marshal_Certify.c",
		"FlushContext_fp.h", "Marshal_FlushContext.c",
		"HashSequenceStart_fp.h", "Marshal_HashSequenceStart.c",
		"PolicyPCR_fp.h", "Marshal_PolicyPCR.c",
		"ReadClock_fp.h", "Marshal_ReadClock.c",
		"Startup_fp.h", "Marshal_Startup.c",
		"ZGen_2Phase_fp.h", "Marshal_ZGen_2Phase.c",
		DispatcherFile, HandleProcessFile, CommandCodeStringHeaderFile, CommandCodeStringFile,
	}, names)
	assert.Equal(t, meta.KindHeader, kinds[0])
	assert.Equal(t, meta.KindMarshal, kinds[1])
	assert.Equal(t, meta.KindDispatcher, kinds[14])

	for _, a := range artifacts {
		s, err := common.ReadStamp(a.Data)
		require.NoError(t, err, a.Name)
		assert.Equal(t, md.Stamp, s, a.Name)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	serial := render(t, listingMetadata(t, 1))
	parallel := render(t, listingMetadata(t, 8))
	unlimited := render(t, listingMetadata(t, 0))
	assert.Equal(t, serial, parallel)
	assert.Equal(t, serial, unlimited)
}

func TestRenderRequestOnlyCommand(t *testing.T) {
	files := render(t, listingMetadata(t, 0))

	h := files["Startup_fp.h"]
	assert.Contains(t, h, "#ifndef TPM2_STARTUP_FP_H_\n#define TPM2_STARTUP_FP_H_\n")
	assert.Contains(t, h, "typedef struct {\n  TPM_SU startupType;\n} Startup_In;\n")
	assert.NotContains(t, h, "Startup_Out")
	assert.Contains(t, h, "TPM_RC TPM2_Startup(\n    Startup_In *in);")
	assert.Contains(t, h, "#endif  // TPM2_STARTUP_FP_H_\n")

	c := files["Marshal_Startup.c"]
	assert.NotContains(t, c, "_Out_Marshal")
	assert.Contains(t, c, `TPM_RC Startup_In_Unmarshal(
    Startup_In *target,
    TPM_HANDLE request_handles[],
    BYTE **buffer,
    INT32 *size) {
  TPM_RC result = TPM_RC_SUCCESS;
  // Unmarshal request parameters.
  result = TPM_SU_Unmarshal(&target->startupType, buffer, size);
  if (result != TPM_RC_SUCCESS) {
    return result;
  }
  if ((result == TPM_RC_SUCCESS) && *size) {
    result = TPM_RC_SIZE;
  }
  return result;
}
`)
	assert.Contains(t, c, "  Startup_In in;\n#ifdef TPM_CC_Startup\n  BYTE *response_buffer;\n  INT32 response_buffer_size;\n#endif\n")
	assert.Contains(t, c, "result = TPM2_Startup(&in);")
	assert.Contains(t, c, "response_buffer = MemoryGetResponseBuffer(TPM_CC_Startup) + 10;")
	assert.Contains(t, c, "// Add parameter_size field, always equal to 0 here.")
}

func TestRenderHandlesAndFlags(t *testing.T) {
	files := render(t, listingMetadata(t, 0))

	c := files["Marshal_Certify.c"]
	assert.Contains(t, c, "  // Get request handles from request_handles array.\n"+
		"  target->objectHandle = request_handles[0];\n"+
		"  target->signHandle = request_handles[1];\n"+
		"  // Unmarshal request parameters.\n"+
		"  result = TPM2B_DATA_Unmarshal(&target->qualifyingData, buffer, size);\n")
	assert.Contains(t, c, "result = TPMT_SIG_SCHEME_Unmarshal(&target->inScheme, buffer, size, TRUE);")
	assert.Contains(t, c, "  UINT32 num_response_handles = 0;\n")
	assert.Contains(t, c, "  // Marshal response parameters.\n"+
		"  total_size += TPM2B_ATTEST_Marshal(&source->certifyInfo, buffer, size);\n"+
		"  total_size += TPMT_SIGNATURE_Marshal(&source->signature, buffer, size);\n"+
		"  // Compute actual parameter_size. Don't add result to total_size.\n")
	assert.Contains(t, c, "result = TPM2_Certify(&in, &out);")
	assert.Less(t, strings.Index(c, "_Out_Marshal("), strings.Index(c, "_In_Unmarshal("))

	z := files["Marshal_ZGen_2Phase.c"]
	assert.Contains(t, z, "TPMI_ECC_KEY_EXCHANGE_Unmarshal(&target->inScheme, buffer, size, FALSE);")
	assert.Contains(t, z, "UINT16_Unmarshal(&target->counter, buffer, size);")

	hp := files[HandleProcessFile]
	assert.Contains(t, hp, "#ifdef TPM_CC_Certify\n    case TPM_CC_Certify:\n"+
		"      result = TPMI_DH_OBJECT_Unmarshal((TPMI_DH_OBJECT*)&request_handles[*num_request_handles], request_handle_buffer_start, request_buffer_remaining_size, FALSE);\n"+
		"      if (result != TPM_RC_SUCCESS) {\n        return result;\n      }\n"+
		"      ++(*num_request_handles);\n"+
		"      result = TPMI_DH_OBJECT_Unmarshal((TPMI_DH_OBJECT*)&request_handles[*num_request_handles], request_handle_buffer_start, request_buffer_remaining_size, TRUE);\n")
	assert.Contains(t, hp, "TPMI_SH_POLICY_Unmarshal((TPMI_SH_POLICY*)&request_handles[*num_request_handles], request_handle_buffer_start, request_buffer_remaining_size);")
	assert.Contains(t, hp, "#ifdef TPM_CC_FlushContext\n    case TPM_CC_FlushContext:\n      return TPM_RC_SUCCESS;\n#endif")
	assert.Equal(t, 4, strings.Count(hp, "++(*num_request_handles);"))
}

func TestRenderResponseHandlePrecedesParameterSize(t *testing.T) {
	files := render(t, listingMetadata(t, 0))
	c := files["Marshal_HashSequenceStart.c"]

	assert.Contains(t, c, "  UINT32 num_response_handles = 1;\n"+
		"  // Marshal response handles.\n"+
		"  total_size += TPMI_DH_OBJECT_Marshal(&source->sequenceHandle, buffer, size);\n"+
		"  // Add parameter_size=0 to indicate size of the parameter area. Will be\n")
	assert.NotContains(t, c, "// Marshal response parameters.")
	assert.Contains(t, c, "  UINT16 num_response_handles = 1;\n")
	assert.Contains(t, c, "TPMI_ALG_HASH_Unmarshal(&target->hashAlg, buffer, size, TRUE);")
}

func TestRenderResponseOnlyCommand(t *testing.T) {
	files := render(t, listingMetadata(t, 0))

	h := files["ReadClock_fp.h"]
	assert.Contains(t, h, "} ReadClock_Out;")
	assert.NotContains(t, h, "ReadClock_In")
	assert.Contains(t, h, "TPM_RC TPM2_ReadClock(\n    ReadClock_Out *out);")

	c := files["Marshal_ReadClock.c"]
	assert.NotContains(t, c, "_In_Unmarshal")
	assert.Contains(t, c, "result = TPM2_ReadClock(&out);")
	assert.Contains(t, c, "bytes_marshalled = ReadClock_Out_Marshal(\n      &out, tag, &response_buffer, &response_buffer_size);")
}

func TestRenderCommandWithoutFields(t *testing.T) {
	types, err := typemap.Default()
	require.NoError(t, err)
	p, err := plan.Build(&model.Command{Name: "TPM2_Nop", CommandCode: "TPM_CC_Nop"}, types)
	require.NoError(t, err)

	files := render(t, &meta.Metadata{Plans: []*plan.Command{p}, Stamp: common.Stamp{Version: "1.0.0", Digest: "d"}})

	h := files["Nop_fp.h"]
	assert.NotContains(t, h, "typedef struct")
	assert.Contains(t, h, "// Executes Nop.\nTPM_RC TPM2_Nop(void);")

	c := files["Marshal_Nop.c"]
	assert.NotContains(t, c, "Nop_In")
	assert.NotContains(t, c, "Nop_Out")
	assert.Contains(t, c, "result = TPM2_Nop();")
	assert.Contains(t, c, "return TPM_RC_COMMAND_CODE;\n}\n")
}

func TestRenderAggregates(t *testing.T) {
	files := render(t, listingMetadata(t, 0))

	d := files[DispatcherFile]
	assert.Contains(t, d, "#include \"Certify_fp.h\"\n#include \"FlushContext_fp.h\"\n")
	assert.Contains(t, d, "#ifdef TPM_CC_ZGen_2Phase\n    case TPM_CC_ZGen_2Phase:\n      return Exec_ZGen_2Phase(tag, &request_parameter_buffer,")
	assert.Equal(t, 7, strings.Count(d, "#ifdef TPM_CC_"))
	assert.Contains(t, d, "default:\n      return TPM_RC_COMMAND_CODE;")

	s := files[CommandCodeStringFile]
	assert.Contains(t, s, "#ifdef TPM_CC_ReadClock\n    case TPM_CC_ReadClock:\n      return \"ReadClock\";\n#endif")
	assert.Contains(t, s, "return \"Unknown command\";")
	assert.Contains(t, files[CommandCodeStringHeaderFile], "const char* GetCommandCodeString(TPM_CC command_code);")
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Render(ctx, discard(), listingMetadata(t, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateWritesFiles(t *testing.T) {
	dir := t.TempDir()
	artifacts, err := Generate(context.Background(), discard(), dir, listingMetadata(t, 0))
	require.NoError(t, err)

	for _, a := range artifacts {
		data, err := os.ReadFile(filepath.Join(dir, a.Name))
		require.NoError(t, err)
		assert.Equal(t, a.Data, data)
	}
}

func TestExecParams(t *testing.T) {
	assert.Equal(t, "void", execParams("X", plan.ShapeNone))
	assert.Equal(t, "\n    X_In *in,\n    X_Out *out", execParams("X", plan.ShapeInOut))
	assert.Equal(t, "", execArgs(plan.ShapeNone))
	assert.Equal(t, "&out", execArgs(plan.ShapeOut))
}
