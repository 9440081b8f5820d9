package model

import "regexp"

// Role tells where an argument travels on the wire.
type Role int

const (
	// RoleParameter fields travel in the parameter byte stream.
	RoleParameter Role = iota
	// RoleHandle fields travel in the handle area ahead of the parameters.
	RoleHandle
)

func (r Role) String() string {
	if r == RoleHandle {
		return "handle"
	}
	return "parameter"
}

// RawHandleType is always a handle.
const RawHandleType = "TPM_HANDLE"

// handleTypePattern matches interface types over handle ranges (TPMI_DH_*,
// TPMI_RH_*, TPMI_SH_*).
var handleTypePattern = regexp.MustCompile(`TPMI_.H_.*`)

// parameterHandleTypes look like handle types but are sent as parameters.
var parameterHandleTypes = map[string]struct{}{
	"TPMI_RH_ENABLES":    {},
	"TPMI_DH_PERSISTENT": {},
}

// parameterOverrides lists, per command code, additional handle-looking types
// that the command sends as parameters. TPM2_FlushContext takes the context
// to flush in its parameter area.
var parameterOverrides = map[string]map[string]struct{}{
	"TPM_CC_FlushContext": {"TPMI_DH_CONTEXT": {}},
}

// Classify returns the wire role of a field of type typ in the command
// identified by commandCode.
func Classify(commandCode, typ string) Role {
	if typ == RawHandleType {
		return RoleHandle
	}
	if _, ok := parameterHandleTypes[typ]; ok {
		return RoleParameter
	}
	if override, ok := parameterOverrides[commandCode]; ok {
		if _, ok := override[typ]; ok {
			return RoleParameter
		}
	}
	if handleTypePattern.MatchString(typ) {
		return RoleHandle
	}
	return RoleParameter
}

// SplitArgs partitions args into handles and parameters, keeping the relative
// order of each.
func (c *Command) SplitArgs(args []Argument) (handles, parameters []Argument) {
	for _, arg := range args {
		if Classify(c.CommandCode, arg.Type) == RoleHandle {
			handles = append(handles, arg)
		} else {
			parameters = append(parameters, arg)
		}
	}
	return handles, parameters
}

func (c *Command) RequestHandles() []Argument {
	h, _ := c.SplitArgs(c.RequestArgs)
	return h
}

func (c *Command) RequestParameters() []Argument {
	_, p := c.SplitArgs(c.RequestArgs)
	return p
}

func (c *Command) ResponseHandles() []Argument {
	h, _ := c.SplitArgs(c.ResponseArgs)
	return h
}

func (c *Command) ResponseParameters() []Argument {
	_, p := c.SplitArgs(c.ResponseArgs)
	return p
}

// NumRequestHandles is the number of request fields carried in the handle area.
func (c *Command) NumRequestHandles() int { return len(c.RequestHandles()) }

// NumResponseHandles is the number of response fields carried in the handle area.
func (c *Command) NumResponseHandles() int { return len(c.ResponseHandles()) }
