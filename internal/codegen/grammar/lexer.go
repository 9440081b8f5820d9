// Package grammar parses the annotated command listing extracted from the
// TPM 2.0 Library Specification, Part 3.
//
// The listing is line oriented:
//
//	_BEGIN
//	_INPUT_START TPM2_Startup
//	_TYPE TPMI_ST_COMMAND_TAG
//	_NAME tag
//	_COMMENT TPM_ST_NO_SESSIONS
//	_TYPE TPM_CC
//	_NAME commandCode
//	_COMMENT TPM_CC_Startup {NV}
//	_TYPE TPM_SU
//	_NAME startupType
//	_OUTPUT_START TPM2_Startup
//	_TYPE TPM_ST
//	_NAME tag
//	_END
//
// A trailing '+' on a _TYPE marks a type that may take a conditional value.
package grammar

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// Kind identifies the construct found on a line.
type Kind int

const (
	NoMatch     Kind = iota // line matches no construct
	Begin                   // _BEGIN
	End                     // _END
	InputStart              // _INPUT_START <command>
	OutputStart             // _OUTPUT_START <command>
	Type                    // _TYPE <type>[+]
	Name                    // _NAME <field>
	Comment                 // _COMMENT <text>
	EOF                     // end of input
)

var kindNames = map[Kind]string{
	NoMatch:     "no match",
	Begin:       "_BEGIN",
	End:         "_END",
	InputStart:  "_INPUT_START",
	OutputStart: "_OUTPUT_START",
	Type:        "_TYPE",
	Name:        "_NAME",
	Comment:     "_COMMENT",
	EOF:         "end of input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Token is the result of lexing one line.
type Token struct {
	Kind Kind
	// Value is the command name, type name, field name or comment text.
	Value string
	// Conditional is set for "_TYPE <T>+".
	Conditional bool
	// CommandCode holds a leading TPM_CC_* constant of a comment, if any.
	CommandCode string
	Line        int
	Text        string
}

var (
	inputStartRE  = regexp.MustCompile(`^_INPUT_START\s+(\w+)$`)
	outputStartRE = regexp.MustCompile(`^_OUTPUT_START\s+(\w+)$`)
	typeRE        = regexp.MustCompile(`^_TYPE\s+(\w+)(\+?)$`)
	nameRE        = regexp.MustCompile(`^_NAME\s+(\w+)$`)
	commentCCRE   = regexp.MustCompile(`^_COMMENT\s+(TPM_CC_\w+)`)
	commentRE     = regexp.MustCompile(`^_COMMENT\s+(.*)`)
)

// Lexer hands out one Token per input line.
type Lexer struct {
	sc   *bufio.Scanner
	line int
	done bool
}

// NewLexer returns a Lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Lexer{sc: sc}
}

// Next lexes the next line. Once the input is exhausted it keeps returning an
// EOF token. A read error is returned alongside an EOF token.
func (l *Lexer) Next() (Token, error) {
	if l.done {
		return Token{Kind: EOF, Line: l.line}, nil
	}
	if !l.sc.Scan() {
		l.done = true
		return Token{Kind: EOF, Line: l.line}, l.sc.Err()
	}
	l.line++
	return lexLine(strings.TrimRight(l.sc.Text(), "\r"), l.line), nil
}

func lexLine(text string, line int) Token {
	tok := Token{Kind: NoMatch, Line: line, Text: text}
	switch {
	case text == "_BEGIN":
		tok.Kind = Begin
	case text == "_END":
		tok.Kind = End
	case strings.HasPrefix(text, "_INPUT_START"):
		if m := inputStartRE.FindStringSubmatch(text); m != nil {
			tok.Kind, tok.Value = InputStart, m[1]
		}
	case strings.HasPrefix(text, "_OUTPUT_START"):
		if m := outputStartRE.FindStringSubmatch(text); m != nil {
			tok.Kind, tok.Value = OutputStart, m[1]
		}
	case strings.HasPrefix(text, "_TYPE"):
		if m := typeRE.FindStringSubmatch(text); m != nil {
			tok.Kind, tok.Value, tok.Conditional = Type, m[1], m[2] == "+"
		}
	case strings.HasPrefix(text, "_NAME"):
		if m := nameRE.FindStringSubmatch(text); m != nil {
			tok.Kind, tok.Value = Name, m[1]
		}
	case strings.HasPrefix(text, "_COMMENT"):
		if m := commentRE.FindStringSubmatch(text); m != nil {
			tok.Kind, tok.Value = Comment, m[1]
			if cc := commentCCRE.FindStringSubmatch(text); cc != nil {
				tok.CommandCode = cc[1]
			}
		}
	}
	return tok
}
