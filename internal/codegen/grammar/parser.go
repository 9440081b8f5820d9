package grammar

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/Alia5/tpm2gen/internal/codegen/model"
)

// envelopeFields are handled by the command/response header, not by the
// generated per-command code.
var envelopeFields = map[string]struct{}{
	"tag":          {},
	"Tag":          {},
	"commandSize":  {},
	"commandCode":  {},
	"responseSize": {},
	"responseCode": {},
}

type state int

const (
	stateStart   state = iota // expecting _BEGIN
	stateBlock                // expecting _INPUT_START or _END
	stateFields               // expecting _TYPE or the marker closing the field list
	stateName                 // expecting _NAME
	stateComment              // optional _COMMENT
	stateDone
)

type section int

const (
	sectionRequest section = iota
	sectionResponse
)

// Parser turns a command listing into model.Commands.
type Parser struct {
	logger *slog.Logger

	state    state
	section  section
	cur      *model.Command
	curStart Token
	pending  model.Argument
	commands []*model.Command
}

// NewParser returns a Parser that reports diagnostics to logger.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse reads the whole listing. The returned commands are sorted by name.
// On error, the commands completed before the failure are returned along
// with a *ParseError; the failure is also logged once.
func (p *Parser) Parse(r io.Reader) ([]*model.Command, error) {
	*p = Parser{logger: p.logger}
	lx := NewLexer(r)

	err := p.run(lx)
	sort.SliceStable(p.commands, func(i, j int) bool {
		return p.commands[i].Name < p.commands[j].Name
	})
	if err != nil {
		p.logger.Error("Failed to parse command listing", "error", err)
		return p.commands, err
	}
	p.logger.Debug("Parsed command listing", "commands", len(p.commands))
	return p.commands, nil
}

func (p *Parser) run(lx *Lexer) error {
	for p.state != stateDone {
		tok, err := lx.Next()
		if err != nil {
			return fmt.Errorf("read listing: %w", err)
		}
		for {
			again, err := p.step(tok)
			if err != nil {
				return err
			}
			if !again {
				break
			}
		}
	}
	return nil
}

// step feeds one token to the state machine. It reports whether the same
// token must be fed again after a transition that did not consume it.
func (p *Parser) step(tok Token) (bool, error) {
	if tok.Kind == EOF {
		return false, p.fail(tok, ErrUnexpectedEOF)
	}

	switch p.state {
	case stateStart:
		if tok.Kind != Begin {
			return false, p.fail(tok, ErrMissingBegin)
		}
		p.state = stateBlock

	case stateBlock:
		switch tok.Kind {
		case InputStart:
			p.cur = &model.Command{Name: tok.Value}
			p.curStart = tok
			p.section = sectionRequest
			p.state = stateFields
		case End:
			p.state = stateDone
		default:
			return false, p.fail(tok, ErrUnexpectedLine)
		}

	case stateFields:
		switch {
		case tok.Kind == Type:
			p.pending = model.Argument{Type: tok.Value, HasConditional: tok.Conditional}
			p.state = stateName
		case tok.Kind == OutputStart && p.section == sectionRequest:
			if tok.Value != p.cur.Name {
				return false, p.fail(tok, ErrOutputMismatch)
			}
			p.section = sectionResponse
		case p.section == sectionResponse:
			// Anything else closes the response list; the block state
			// decides whether the line is acceptable.
			if err := p.finish(); err != nil {
				return false, err
			}
			p.state = stateBlock
			return true, nil
		default:
			return false, p.fail(tok, ErrOutputMismatch)
		}

	case stateName:
		if tok.Kind != Name {
			return false, p.fail(tok, ErrMissingName)
		}
		p.pending.Name = tok.Value
		p.state = stateComment

	case stateComment:
		p.state = stateFields
		p.addPending()
		if tok.Kind != Comment {
			return true, nil
		}
		if tok.CommandCode != "" && p.cur.CommandCode == "" {
			p.cur.CommandCode = tok.CommandCode
		}
	}
	return false, nil
}

func (p *Parser) addPending() {
	arg := p.pending
	p.pending = model.Argument{}
	if _, ok := envelopeFields[arg.Name]; ok {
		return
	}
	if p.section == sectionRequest {
		p.cur.RequestArgs = append(p.cur.RequestArgs, arg)
	} else {
		p.cur.ResponseArgs = append(p.cur.ResponseArgs, arg)
	}
}

func (p *Parser) finish() error {
	cmd := p.cur
	if cmd.CommandCode == "" {
		return p.fail(p.curStart, ErrMissingCommandCode)
	}
	cmd.DisambiguateResponse()
	p.commands = append(p.commands, cmd)
	p.cur = nil
	return nil
}

func (p *Parser) fail(tok Token, err error) error {
	pe := &ParseError{Line: tok.Line, Text: tok.Text, Err: err}
	if p.cur != nil {
		pe.Command = p.cur.Name
	}
	return pe
}

// Parse is a convenience wrapper around NewParser(logger).Parse(r).
func Parse(r io.Reader, logger *slog.Logger) ([]*model.Command, error) {
	return NewParser(logger).Parse(r)
}
