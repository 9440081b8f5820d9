package cgen

const dispatcherTmpl = `{{.Header}}
{{- range .Plans}}
#include "{{.Method}}_fp.h"
{{- end}}

#include "Implementation.h"
#include "CommandDispatcher_fp.h"

TPM_RC CommandDispatcher(
    TPMI_ST_COMMAND_TAG tag,
    TPM_CC command_code,
    INT32 *request_parameter_buffer_size,
    BYTE *request_parameter_buffer_start,
    TPM_HANDLE request_handles[],
    UINT32 *response_handle_buffer_size,
    UINT32 *response_parameter_buffer_size) {
  BYTE *request_parameter_buffer = request_parameter_buffer_start;
  switch(command_code) {
{{- range .Plans}}
#ifdef {{.Code}}
    case {{.Code}}:
      return Exec_{{.Method}}(tag, &request_parameter_buffer,
          request_parameter_buffer_size, request_handles,
          response_handle_buffer_size, response_parameter_buffer_size);
#endif
{{- end}}
    default:
      return TPM_RC_COMMAND_CODE;
  }
}
`

const handleProcessTmpl = `{{.Header}}
#include "tpm_generated.h"
#include "HandleProcess_fp.h"
#include "Implementation.h"
#include "TPM_Types.h"

TPM_RC ParseHandleBuffer(
    TPM_CC command_code,
    BYTE **request_handle_buffer_start,
    INT32 *request_buffer_remaining_size,
    TPM_HANDLE request_handles[],
    UINT32 *num_request_handles) {
  TPM_RC result = TPM_RC_SUCCESS;
  *num_request_handles = 0;
  switch(command_code) {
{{- range .Plans}}
#ifdef {{.Code}}
    case {{.Code}}:
{{- if .HandleOps}}
{{handleCase .HandleOps | indent 6}}
{{- end}}
      return TPM_RC_SUCCESS;
#endif
{{- end}}
    default:
      return TPM_RC_COMMAND_CODE;
  }
}
`

const commandCodeStringHeaderTmpl = `{{.Header}}
#ifndef TPM2_GET_COMMAND_CODE_STRING_FP_H_
#define TPM2_GET_COMMAND_CODE_STRING_FP_H_

#include "TPM_Types.h"

const char* GetCommandCodeString(TPM_CC command_code);

#endif  // TPM2_GET_COMMAND_CODE_STRING_FP_H_
`

const commandCodeStringTmpl = `{{.Header}}
#include "GetCommandCodeString_fp.h"

const char* GetCommandCodeString(TPM_CC command_code) {
  switch(command_code) {
{{- range .Plans}}
#ifdef {{.Code}}
    case {{.Code}}:
      return "{{.Method}}";
#endif
{{- end}}
    default:
      return "Unknown command";
  }
}
`
