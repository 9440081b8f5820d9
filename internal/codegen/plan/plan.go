// Package plan turns a parsed command into the ordered operations its
// generated marshalling code performs. Renderers and the wire interpreter
// both consume these plans, so handle/parameter classification is computed
// in exactly one place.
package plan

import (
	"errors"
	"fmt"

	"github.com/Alia5/tpm2gen/internal/codegen/model"
	"github.com/Alia5/tpm2gen/internal/codegen/typemap"
)

// HandleSize is the wire size of a TPM_HANDLE.
const HandleSize = 4

// ParamSizeSize is the wire size of the parameter_size field of a response
// with sessions.
const ParamSizeSize = 4

// OpKind selects what an Op does.
type OpKind int

const (
	// OpAssignHandle copies request_handles[Index] into Field.
	OpAssignHandle OpKind = iota
	// OpDecode unmarshals Field from the buffer.
	OpDecode
	// OpCheckTrailing fails the request if bytes remain after the last
	// parameter.
	OpCheckTrailing
	// OpEncode marshals Field and adds its size to the running total.
	OpEncode
	// OpReserveParamSize writes a zero parameter_size placeholder (sessions
	// only) without counting it.
	OpReserveParamSize
	// OpPatchParamSize overwrites the placeholder with the parameter area
	// size (sessions only).
	OpPatchParamSize
)

var opNames = map[OpKind]string{
	OpAssignHandle:     "assign-handle",
	OpDecode:           "decode",
	OpCheckTrailing:    "check-trailing",
	OpEncode:           "encode",
	OpReserveParamSize: "reserve-parameter-size",
	OpPatchParamSize:   "patch-parameter-size",
}

func (k OpKind) String() string { return opNames[k] }

// Flag is the conditional-value argument passed to an Unmarshal primitive.
type Flag int

const (
	// FlagNone means the primitive takes no flag.
	FlagNone Flag = iota
	// FlagFalse passes FALSE: the null value is rejected.
	FlagFalse
	// FlagTrue passes TRUE: the null value is accepted.
	FlagTrue
)

// Literal returns the C spelling of the flag.
func (f Flag) Literal() string {
	if f == FlagTrue {
		return "TRUE"
	}
	return "FALSE"
}

// Op is one step of a marshalling routine.
type Op struct {
	Kind   OpKind
	Field  string
	Type   string
	Index  int
	Flag   Flag
	Handle bool // field lives in the handle area
}

// Decode is the plan of <Method>_In_Unmarshal.
type Decode struct {
	Handles int
	Ops     []Op
}

// Encode is the plan of <Method>_Out_Marshal.
type Encode struct {
	// Handles is the number of response handles written ahead of the
	// parameter area; the parameter_size patch deducts Handles*HandleSize.
	Handles int
	Ops     []Op
}

// Command is everything the emitters need for one command.
type Command struct {
	Name   string
	Method string
	Code   string
	Shape  Shape

	In  []model.Argument
	Out []model.Argument

	Request  *Decode // nil without request fields
	Response *Encode // nil without response fields

	// HandleOps decode the request handles for ParseHandleBuffer.
	HandleOps []Op
}

// CommandError reports a command that cannot be generated.
type CommandError struct {
	Command string
	Type    string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s: type %s: %v", e.Command, e.Type, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Build plans cmd against the type table.
func Build(cmd *model.Command, types *typemap.Table) (*Command, error) {
	flags := make(map[string]Flag)
	check := func(args []model.Argument) error {
		for _, arg := range args {
			typ, err := types.Lookup(arg.Type)
			if err != nil {
				return &CommandError{Command: cmd.Name, Type: arg.Type, Err: err}
			}
			if !typ.CommandField() {
				return &CommandError{Command: cmd.Name, Type: arg.Type, Err: typemap.ErrNoSelector}
			}
			flags[arg.Type] = FlagNone
			if typ.Conditional {
				flags[arg.Type] = FlagFalse
			}
		}
		return nil
	}
	if err := check(cmd.RequestArgs); err != nil {
		return nil, err
	}
	if err := check(cmd.ResponseArgs); err != nil {
		return nil, err
	}
	flagOf := func(arg model.Argument) Flag {
		f := flags[arg.Type]
		if f != FlagNone && arg.HasConditional {
			return FlagTrue
		}
		return f
	}

	p := &Command{
		Name:   cmd.Name,
		Method: cmd.MethodName(),
		Code:   cmd.CommandCode,
		Shape:  ShapeOf(cmd.HasRequest(), cmd.HasResponse()),
		In:     cmd.RequestArgs,
		Out:    cmd.ResponseArgs,
	}

	if cmd.HasRequest() {
		handles, params := cmd.SplitArgs(cmd.RequestArgs)
		d := &Decode{Handles: len(handles)}
		for i, h := range handles {
			d.Ops = append(d.Ops, Op{Kind: OpAssignHandle, Field: h.Name, Type: h.Type, Index: i, Handle: true})
			p.HandleOps = append(p.HandleOps, Op{Kind: OpDecode, Field: h.Name, Type: h.Type, Index: i, Flag: flagOf(h), Handle: true})
		}
		for _, a := range params {
			d.Ops = append(d.Ops, Op{Kind: OpDecode, Field: a.Name, Type: a.Type, Flag: flagOf(a)})
		}
		d.Ops = append(d.Ops, Op{Kind: OpCheckTrailing})
		p.Request = d
	}

	if cmd.HasResponse() {
		handles, params := cmd.SplitArgs(cmd.ResponseArgs)
		e := &Encode{Handles: len(handles)}
		for _, h := range handles {
			e.Ops = append(e.Ops, Op{Kind: OpEncode, Field: h.Name, Type: h.Type, Handle: true})
		}
		e.Ops = append(e.Ops, Op{Kind: OpReserveParamSize})
		for _, a := range params {
			e.Ops = append(e.Ops, Op{Kind: OpEncode, Field: a.Name, Type: a.Type})
		}
		e.Ops = append(e.Ops, Op{Kind: OpPatchParamSize})
		p.Response = e
	}

	return p, nil
}

// BuildAll plans every command. Commands that fail are left out and their
// errors joined; the remaining plans keep the input order.
func BuildAll(cmds []*model.Command, types *typemap.Table) ([]*Command, error) {
	var plans []*Command
	var errs []error
	for _, cmd := range cmds {
		p, err := Build(cmd, types)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, p)
	}
	return plans, errors.Join(errs...)
}

// ResponseHandles is the number of response handles, zero without a
// response.
func (c *Command) ResponseHandles() int {
	if c.Response == nil {
		return 0
	}
	return c.Response.Handles
}
