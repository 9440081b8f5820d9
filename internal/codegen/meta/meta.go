package meta

import (
	"github.com/Alia5/tpm2gen/internal/codegen/common"
	"github.com/Alia5/tpm2gen/internal/codegen/model"
	"github.com/Alia5/tpm2gen/internal/codegen/plan"
	"github.com/Alia5/tpm2gen/internal/codegen/typemap"
)

// Metadata holds everything the language generators need. It is built once
// by the orchestrator and treated as read-only afterwards.
type Metadata struct {
	Commands []*model.Command // as parsed, sorted by name
	Plans    []*plan.Command  // commands that can be generated, same order
	Types    *typemap.Table
	Stamp    common.Stamp

	// Jobs limits concurrent per-command rendering; <= 0 means no limit.
	Jobs int

	// ParseErr is the grammar error that ended parsing early, if any.
	// Commands holds what was parsed before it.
	ParseErr error
}

// Artifact kinds.
const (
	KindHeader            = "header"
	KindMarshal           = "marshal"
	KindDispatcher        = "dispatcher"
	KindHandleProcess     = "handle-process"
	KindCommandCodeString = "command-code-string"
)

// Artifact is one generated file, Name relative to the language output
// directory.
type Artifact struct {
	Name string
	Kind string
	Data []byte
}
