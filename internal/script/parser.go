// ============================================================================
// Mimic Command Parser
// ============================================================================
//
// Package: internal/script
// File: parser.go
// Purpose: Turn a command script into a Program of scheduled actions
//
// Grammar (whitespace separated, left to right):
//   record                 start capturing input
//   replay <file>          replay a saved recording
//   type '<message>'       type a message; the apostrophes are required and
//                          the message may contain spaces
//   wait_time <seconds>    sleep, fractional seconds allowed
//   await_press <key>      block until the key is pressed
//   repeat                 loop every action parsed so far, itself included
//
// A repeat followed by more commands only draws a warning: those commands
// are parsed and queued once but never reached by the loop.
//
// ============================================================================

package script

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/TeYo001/Mimic/pkg/types"
)

var (
	// ErrUnknownCommand indicates a leading token that names no command
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingArgument indicates a command whose argument is absent
	ErrMissingArgument = errors.New("missing argument")
	// ErrUnquotedMessage indicates a type message without matching apostrophes
	ErrUnquotedMessage = errors.New("message must be within apostrophes")
	// ErrBadDuration indicates a wait_time argument that is not a finite number
	ErrBadDuration = errors.New("invalid duration")
	// ErrProgramTooLarge indicates a script with more actions than the scripted queue holds
	ErrProgramTooLarge = errors.New("script has more actions than the scripted queue holds")
)

// ParseError reports where in the script parsing failed
type ParseError struct {
	Pos   int    // byte offset of the offending token
	Token string // offending token, empty at end of input
	Err   error
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("script: offset %d: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("script: offset %d near %q: %v", e.Pos, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options configures a Parser
type Options struct {
	// MaxActions rejects scripts producing more actions, 0 means no limit
	MaxActions int
	Logger     *slog.Logger
}

// Parser converts scripts into programs
type Parser struct {
	maxActions int
	log        *slog.Logger
}

// NewParser creates a parser
func NewParser(opts Options) *Parser {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Parser{maxActions: opts.MaxActions, log: log}
}

// Parse parses src with default options
func Parse(src string) (*types.Program, error) {
	return NewParser(Options{}).Parse(src)
}

// Parse turns src into a Program. Every action carries OriginCommand and is
// preemptible; the caller enqueues Program.Actions() in order.
func (p *Parser) Parse(src string) (*types.Program, error) {
	s := &scanner{src: src}
	var actions []types.Action

	for {
		tok, ok := s.next()
		if !ok {
			break
		}

		var (
			a   types.Action
			err error
		)
		switch tok.text {
		case "record":
			a = types.NewAction(types.OriginCommand, types.StateRecording, false)
		case "replay":
			a, err = p.parseReplay(s, tok)
		case "type":
			a, err = p.parseType(s, tok)
		case "wait_time":
			a, err = p.parseWaitTime(s, tok)
		case "await_press":
			a, err = p.parseAwaitPress(s, tok)
		case "repeat":
			a = p.parseRepeat(s, tok, len(actions))
		default:
			err = &ParseError{Pos: tok.pos, Token: tok.text, Err: ErrUnknownCommand}
		}
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	if p.maxActions > 0 && len(actions) > p.maxActions {
		return nil, fmt.Errorf("%w: %d actions, capacity %d", ErrProgramTooLarge, len(actions), p.maxActions)
	}
	return types.NewProgram(actions), nil
}

// ============================================================================
// Commands
// ============================================================================

func (p *Parser) parseReplay(s *scanner, cmd token) (types.Action, error) {
	arg, err := s.argument(cmd)
	if err != nil {
		return types.Action{}, err
	}
	a := types.NewAction(types.OriginCommand, types.StateReplaying, false)
	a.Filename = arg.text
	return a, nil
}

func (p *Parser) parseType(s *scanner, cmd token) (types.Action, error) {
	msg, err := s.quoted(cmd)
	if err != nil {
		return types.Action{}, err
	}
	a := types.NewAction(types.OriginCommand, types.StateTyping, false)
	a.Message = msg
	return a, nil
}

func (p *Parser) parseWaitTime(s *scanner, cmd token) (types.Action, error) {
	arg, err := s.argument(cmd)
	if err != nil {
		return types.Action{}, err
	}
	secs, err := strconv.ParseFloat(arg.text, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) ||
		math.Abs(secs) > float64(math.MaxInt64)/float64(time.Second) {
		return types.Action{}, &ParseError{Pos: arg.pos, Token: arg.text, Err: ErrBadDuration}
	}
	a := types.NewAction(types.OriginCommand, types.StateWaitTime, false)
	a.Wait = time.Duration(secs * float64(time.Second))
	return a, nil
}

func (p *Parser) parseAwaitPress(s *scanner, cmd token) (types.Action, error) {
	arg, err := s.argument(cmd)
	if err != nil {
		return types.Action{}, err
	}
	key, err := types.ParseKey(arg.text)
	if err != nil {
		return types.Action{}, &ParseError{Pos: arg.pos, Token: arg.text, Err: err}
	}
	a := types.NewAction(types.OriginCommand, types.StateAwaitPress, false)
	a.Key = key
	return a, nil
}

// parseRepeat builds a repeat over indices 0..self. The Program binding
// happens in types.NewProgram once the whole arena exists.
func (p *Parser) parseRepeat(s *scanner, cmd token, self int) types.Action {
	if s.more() {
		p.log.Warn("Commands after repeat will never be reached by the loop", "pos", cmd.pos)
	}
	a := types.NewAction(types.OriginCommand, types.StateRepeat, false)
	a.Sequence = make([]int, self+1)
	for i := range a.Sequence {
		a.Sequence[i] = i
	}
	return a
}

// ============================================================================
// Scanner
// ============================================================================

type token struct {
	text string
	pos  int
}

type scanner struct {
	src string
	off int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (s *scanner) skipSpace() {
	for s.off < len(s.src) && isSpace(s.src[s.off]) {
		s.off++
	}
}

func (s *scanner) more() bool {
	s.skipSpace()
	return s.off < len(s.src)
}

func (s *scanner) next() (token, bool) {
	s.skipSpace()
	if s.off >= len(s.src) {
		return token{}, false
	}
	start := s.off
	for s.off < len(s.src) && !isSpace(s.src[s.off]) {
		s.off++
	}
	return token{text: s.src[start:s.off], pos: start}, true
}

// argument reads the single token following cmd
func (s *scanner) argument(cmd token) (token, error) {
	arg, ok := s.next()
	if !ok {
		return token{}, &ParseError{Pos: cmd.pos, Token: cmd.text, Err: ErrMissingArgument}
	}
	return arg, nil
}

// quoted reads an apostrophe-delimited message. The closing apostrophe is the
// first one that ends a token, so apostrophes inside words are kept.
func (s *scanner) quoted(cmd token) (string, error) {
	s.skipSpace()
	if s.off >= len(s.src) {
		return "", &ParseError{Pos: cmd.pos, Token: cmd.text, Err: ErrMissingArgument}
	}
	start := s.off
	if s.src[start] != '\'' {
		tok, _ := s.next()
		return "", &ParseError{Pos: start, Token: tok.text, Err: ErrUnquotedMessage}
	}

	for i := start + 1; i < len(s.src); i++ {
		if s.src[i] == '\'' && (i+1 == len(s.src) || isSpace(s.src[i+1])) {
			s.off = i + 1
			return s.src[start+1 : i], nil
		}
	}

	rest := strings.TrimRight(s.src[start:], " \t\r\n")
	return "", &ParseError{Pos: start, Token: rest, Err: ErrUnquotedMessage}
}
