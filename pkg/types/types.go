// Package types defines the core domain model shared by every mimic component:
// recorded input events, keys, scheduler states and the actions that drive them.
package types

import (
	"fmt"
	"strings"
)

// State is a scheduler state
type State int

// Scheduler states
const (
	StateIdle       State = iota // waiting for work
	StateRecording               // capture listeners enabled
	StateReplaying               // injecting a loaded recording
	StateSaving                  // writing the capture buffer to disk
	StateTyping                  // typing a message
	StateWaitTime                // sleeping for a fixed duration
	StateAwaitPress              // waiting for a key press
	StateRepeat                  // re-enqueueing the current program
	StateExiting                 // terminal
	StateInvalid                 // error sentinel, never dispatched
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateRecording:  "recording",
	StateReplaying:  "replaying",
	StateSaving:     "saving",
	StateTyping:     "typing",
	StateWaitTime:   "wait_time",
	StateAwaitPress: "await_press",
	StateRepeat:     "repeat",
	StateExiting:    "exiting",
	StateInvalid:    "invalid",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState resolves a state from its String() form
func ParseState(name string) (State, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == name && State(i) != StateInvalid {
			return State(i), nil
		}
	}
	return StateInvalid, fmt.Errorf("unknown state %q", name)
}

// Origin records who created an action. Informational only.
type Origin int

const (
	OriginSpecialKey      Origin = iota // hotkey or remote interrupt
	OriginCommand                       // single scripted command
	OriginCommandSequence               // produced by a repeat
)

func (o Origin) String() string {
	switch o {
	case OriginSpecialKey:
		return "special_key"
	case OriginCommand:
		return "command"
	case OriginCommandSequence:
		return "command_sequence"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}
