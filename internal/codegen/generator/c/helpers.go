package cgen

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Alia5/tpm2gen/internal/codegen/plan"
)

func tplFuncs() template.FuncMap {
	return template.FuncMap{
		"upper":         strings.ToUpper,
		"indent":        indent,
		"execArgs":      execArgs,
		"execParams":    execParams,
		"unmarshalBody": unmarshalBody,
		"marshalBody":   marshalBody,
		"handleCase":    handleCase,
	}
}

func indent(spaces int, s string) string {
	prefix := strings.Repeat(" ", spaces)
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		if p != "" {
			parts[i] = prefix + p
		}
	}
	return strings.Join(parts, "\n")
}

// execArgs is the argument list passed to TPM2_<Method>.
func execArgs(s plan.Shape) string {
	switch s {
	case plan.ShapeInOut:
		return "&in, &out"
	case plan.ShapeIn:
		return "&in"
	case plan.ShapeOut:
		return "&out"
	default:
		return ""
	}
}

// execParams is the parameter list of the TPM2_<Method> prototype.
func execParams(method string, s plan.Shape) string {
	switch s {
	case plan.ShapeInOut:
		return fmt.Sprintf("\n    %s_In *in,\n    %s_Out *out", method, method)
	case plan.ShapeIn:
		return fmt.Sprintf("\n    %s_In *in", method)
	case plan.ShapeOut:
		return fmt.Sprintf("\n    %s_Out *out", method)
	default:
		return "void"
	}
}

func unmarshalCall(op plan.Op, target, buffer, size string) string {
	call := fmt.Sprintf("%s_Unmarshal(%s, %s, %s", op.Type, target, buffer, size)
	if op.Flag != plan.FlagNone {
		call += ", " + op.Flag.Literal()
	}
	return call + ")"
}

const checkResult = `if (result != TPM_RC_SUCCESS) {
  return result;
}`

// unmarshalBody renders the statements of <Method>_In_Unmarshal.
func unmarshalBody(d *plan.Decode) string {
	var b strings.Builder
	handles, params := false, false
	for _, op := range d.Ops {
		switch op.Kind {
		case plan.OpAssignHandle:
			if !handles {
				b.WriteString("// Get request handles from request_handles array.\n")
				handles = true
			}
			fmt.Fprintf(&b, "target->%s = request_handles[%d];\n", op.Field, op.Index)
		case plan.OpDecode:
			if !params {
				b.WriteString("// Unmarshal request parameters.\n")
				params = true
			}
			fmt.Fprintf(&b, "result = %s;\n%s\n", unmarshalCall(op, "&target->"+op.Field, "buffer", "size"), checkResult)
		case plan.OpCheckTrailing:
			b.WriteString("if ((result == TPM_RC_SUCCESS) && *size) {\n  result = TPM_RC_SIZE;\n}\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// marshalBody renders the statements of <Method>_Out_Marshal.
func marshalBody(e *plan.Encode) string {
	var b strings.Builder
	handles, params := false, false
	for _, op := range e.Ops {
		switch op.Kind {
		case plan.OpEncode:
			if op.Handle && !handles {
				b.WriteString("// Marshal response handles.\n")
				handles = true
			}
			if !op.Handle && !params {
				b.WriteString("// Marshal response parameters.\n")
				params = true
			}
			fmt.Fprintf(&b, "total_size += %s_Marshal(&source->%s, buffer, size);\n", op.Type, op.Field)
		case plan.OpReserveParamSize:
			b.WriteString(`// Add parameter_size=0 to indicate size of the parameter area. Will be
// replaced later by computed parameter_size.
if (tag == TPM_ST_SESSIONS) {
  parameter_size_location = *buffer;
  // Don't add to total_size, but increment *buffer and decrement *size.
  UINT32_Marshal(&parameter_size, buffer, size);
}
`)
		case plan.OpPatchParamSize:
			b.WriteString(`// Compute actual parameter_size. Don't add result to total_size.
if (tag == TPM_ST_SESSIONS) {
  parameter_size = total_size - num_response_handles*sizeof(TPM_HANDLE);
  UINT32_Marshal(
      &parameter_size, &parameter_size_location, &parameter_size_size);
}
`)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// handleCase renders the handle decodes of one ParseHandleBuffer case.
func handleCase(ops []plan.Op) string {
	var b strings.Builder
	for _, op := range ops {
		target := fmt.Sprintf("(%s*)&request_handles[*num_request_handles]", op.Type)
		fmt.Fprintf(&b, "result = %s;\n%s\n++(*num_request_handles);\n",
			unmarshalCall(op, target, "request_handle_buffer_start", "request_buffer_remaining_size"), checkResult)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
