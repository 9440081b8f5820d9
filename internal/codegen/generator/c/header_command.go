package cgen

const commandHeaderTmpl = `{{.Header}}
#ifndef TPM2_{{upper .Method}}_FP_H_
#define TPM2_{{upper .Method}}_FP_H_

#include "tpm_generated.h"
{{- if .In}}

typedef struct {
{{- range .In}}
  {{.Type}} {{.Name}};
{{- end}}
} {{.Method}}_In;
{{- end}}
{{- if .Out}}

typedef struct {
{{- range .Out}}
  {{.Type}} {{.Name}};
{{- end}}
} {{.Method}}_Out;
{{- end}}

// Executes {{.Method}}
{{- if .Shape.HasRequest}} with request handles and parameters from |in|{{end}}
{{- if .Shape.HasResponse}} and computes response handles and parameters to
// |out|{{end}}.
TPM_RC TPM2_{{.Method}}({{execParams .Method .Shape}});
{{- if .Shape.HasRequest}}

// Initializes handle fields in |target| from |request_handles|. Unmarshals
// parameter fields in |target| from |buffer|.
TPM_RC {{.Method}}_In_Unmarshal(
    {{.Method}}_In *target,
    TPM_HANDLE request_handles[],
    BYTE **buffer,
    INT32 *size);
{{- end}}
{{- if .Shape.HasResponse}}

// Marshals response handles and parameters from |source| to |buffer|. Computes
// and marshals the size of the parameter area (parameter_size) if |tag| ==
// TPM_ST_SESSIONS. Returns size of (parameter area + handle area) in bytes.
// Does not include parameter_size field.
UINT16 {{.Method}}_Out_Marshal(
    {{.Method}}_Out *source,
    TPMI_ST_COMMAND_TAG tag,
    BYTE **buffer,
    INT32 *size);
{{- end}}

// Unmarshals any request parameters starting at |request_parameter_buffer|.
// Executes command. Marshals any response handles and parameters to the
// global response buffer and computes |*response_handle_buffer_size| and
// |*response_parameter_buffer_size|. If |tag| == TPM_ST_SESSIONS, marshals
// parameter_size indicating the size of the parameter area. parameter_size
// field is located between the handle area and parameter area.
TPM_RC Exec_{{.Method}}(
    TPMI_ST_COMMAND_TAG tag,
    BYTE **request_parameter_buffer,
    INT32 *request_parameter_buffer_size,
    TPM_HANDLE request_handles[],
    UINT32 *response_handle_buffer_size,
    UINT32 *response_parameter_buffer_size);

#endif  // TPM2_{{upper .Method}}_FP_H_
`
