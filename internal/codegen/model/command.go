// Package model holds the command/argument data shared by the grammar parser
// and every code emitter.
package model

import "strings"

// Argument is one field of a command request or response.
type Argument struct {
	Type           string `json:"type" yaml:"type" toml:"type"`
	Name           string `json:"name" yaml:"name" toml:"name"`
	HasConditional bool   `json:"hasConditional" yaml:"hasConditional" toml:"hasConditional"`
}

// Command is a single TPM command as described by the grammar.
//
// Commands are built by the grammar parser and treated as read-only by
// everything downstream.
type Command struct {
	Name         string     `json:"name" yaml:"name" toml:"name"`                         // e.g. "TPM2_Startup"
	CommandCode  string     `json:"commandCode" yaml:"commandCode" toml:"commandCode"`    // e.g. "TPM_CC_Startup"
	RequestArgs  []Argument `json:"requestArgs" yaml:"requestArgs" toml:"requestArgs"`    // wire order
	ResponseArgs []Argument `json:"responseArgs" yaml:"responseArgs" toml:"responseArgs"` // wire order
}

// OutSuffix is appended to response argument names that collide with a
// request argument name.
const OutSuffix = "_out"

// MethodName is the command name without its "TPM2_" prefix. Generated
// identifiers are derived from it.
func (c *Command) MethodName() string {
	return strings.TrimPrefix(c.Name, "TPM2_")
}

// HasRequest reports whether the command has any request fields beyond the
// envelope.
func (c *Command) HasRequest() bool { return len(c.RequestArgs) > 0 }

// HasResponse reports whether the command has any response fields beyond the
// envelope.
func (c *Command) HasResponse() bool { return len(c.ResponseArgs) > 0 }

// DisambiguateResponse renames response arguments whose name is also used by
// a request argument. Order and types are left untouched.
func (c *Command) DisambiguateResponse() {
	requestNames := make(map[string]struct{}, len(c.RequestArgs))
	for _, arg := range c.RequestArgs {
		requestNames[arg.Name] = struct{}{}
	}
	for i := range c.ResponseArgs {
		if _, ok := requestNames[c.ResponseArgs[i].Name]; ok {
			c.ResponseArgs[i].Name += OutSuffix
		}
	}
}
