package cgen

// commandSourceTmpl renders Marshal_<Method>.c. The exec wrapper is a single
// template switched on the command shape.
const commandSourceTmpl = `{{.Header}}
#include "MemoryLib_fp.h"
#include "{{.Method}}_fp.h"
{{- with .Response}}

UINT16 {{$.Method}}_Out_Marshal(
    {{$.Method}}_Out *source,
    TPMI_ST_COMMAND_TAG tag,
    BYTE **buffer,
    INT32 *size) {
  UINT16 total_size = 0;
  UINT32 parameter_size = 0;
  BYTE *parameter_size_location;
  INT32 parameter_size_size = sizeof(UINT32);
  UINT32 num_response_handles = {{.Handles}};
{{marshalBody . | indent 2}}
  return total_size;
}
{{- end}}
{{- with .Request}}

TPM_RC {{$.Method}}_In_Unmarshal(
    {{$.Method}}_In *target,
    TPM_HANDLE request_handles[],
    BYTE **buffer,
    INT32 *size) {
  TPM_RC result = TPM_RC_SUCCESS;
{{unmarshalBody . | indent 2}}
  return result;
}
{{- end}}

TPM_RC Exec_{{.Method}}(
    TPMI_ST_COMMAND_TAG tag,
    BYTE **request_parameter_buffer,
    INT32 *request_parameter_buffer_size,
    TPM_HANDLE request_handles[],
    UINT32 *response_handle_buffer_size,
    UINT32 *response_parameter_buffer_size) {
  TPM_RC result = TPM_RC_SUCCESS;
{{- if .Shape.HasRequest}}
  {{.Method}}_In in;
{{- end}}
{{- if .Shape.HasResponse}}
  {{.Method}}_Out out;
{{- end}}
#ifdef {{.Code}}
  BYTE *response_buffer;
  INT32 response_buffer_size;
{{- if .Shape.HasResponse}}
  UINT16 bytes_marshalled;
  UINT16 num_response_handles = {{.ResponseHandles}};
{{- end}}
#endif
  *response_handle_buffer_size = 0;
  *response_parameter_buffer_size = 0;
{{- if .Shape.HasRequest}}
  // Unmarshal request parameters to input structure.
  result = {{.Method}}_In_Unmarshal(&in, request_handles,
      request_parameter_buffer, request_parameter_buffer_size);
  if (result != TPM_RC_SUCCESS) {
    return result;
  }
{{- end}}
  // Execute command.
  result = TPM2_{{.Method}}({{execArgs .Shape}});
  if (result != TPM_RC_SUCCESS) {
    return result;
  }
#ifdef {{.Code}}
  response_buffer = MemoryGetResponseBuffer({{.Code}}) + 10;
  response_buffer_size = MAX_RESPONSE_SIZE - 10;
{{- if .Shape.HasResponse}}
  // Marshal output structure to global response buffer.
  bytes_marshalled = {{.Method}}_Out_Marshal(
      &out, tag, &response_buffer, &response_buffer_size);
  *response_handle_buffer_size = num_response_handles*sizeof(TPM_HANDLE);
  *response_parameter_buffer_size =
      bytes_marshalled - *response_handle_buffer_size;
{{- else}}
  // Add parameter_size field, always equal to 0 here.
  if (tag == TPM_ST_SESSIONS) {
    UINT32_Marshal(response_parameter_buffer_size, &response_buffer,
        &response_buffer_size);
  }
{{- end}}
  return TPM_RC_SUCCESS;
#endif
  return TPM_RC_COMMAND_CODE;
}
`
