package types

import (
	"time"

	"github.com/google/uuid"
)

// Action is one unit of work submitted to the scheduler.
//
// Only the payload fields relevant to Target are set:
//
//	Replaying, Saving  Filename (empty means the last used file)
//	Typing             Message
//	WaitTime           Wait
//	AwaitPress         Key
//	Repeat             Program + Sequence
type Action struct {
	ID         uuid.UUID // instance id, fresh every time an action is enqueued
	Origin     Origin
	Target     State
	MustFinish bool // run phase cannot be preempted by interrupts

	Filename string
	Message  string
	Wait     time.Duration
	Key      Key

	// Repeat payload. Sequence indexes into Program; the repeat action's own
	// index is part of it, which is how the loop refers back to itself.
	Program  *Program
	Sequence []int
}

// NewAction creates an action with a fresh instance id
func NewAction(origin Origin, target State, mustFinish bool) Action {
	return Action{
		ID:         uuid.New(),
		Origin:     origin,
		Target:     target,
		MustFinish: mustFinish,
	}
}

// Program is an immutable arena of parsed actions in source order.
// Actions handed out by a Program are copies, so executing one never
// mutates the arena.
type Program struct {
	actions []Action
}

// NewProgram builds an arena from actions. Repeat actions are bound to the
// new arena so their Sequence indices resolve against it.
func NewProgram(actions []Action) *Program {
	p := &Program{actions: make([]Action, len(actions))}
	copy(p.actions, actions)
	for i := range p.actions {
		if p.actions[i].Target == StateRepeat {
			p.actions[i].Program = p
		}
	}
	return p
}

// Len returns the number of actions in the arena
func (p *Program) Len() int {
	if p == nil {
		return 0
	}
	return len(p.actions)
}

// At returns a fresh instance of the action at index i
func (p *Program) At(i int) Action {
	a := p.actions[i]
	a.ID = uuid.New()
	return a
}

// Actions returns fresh instances of every action in source order
func (p *Program) Actions() []Action {
	out := make([]Action, p.Len())
	for i := range out {
		out[i] = p.At(i)
	}
	return out
}

// Expand returns fresh instances of the actions a repeat action re-enqueues.
// It returns nil for anything that is not a bound repeat.
func (a Action) Expand() []Action {
	if a.Target != StateRepeat || a.Program == nil {
		return nil
	}
	out := make([]Action, 0, len(a.Sequence))
	for _, i := range a.Sequence {
		next := a.Program.At(i)
		next.Origin = OriginCommandSequence
		out = append(out, next)
	}
	return out
}
