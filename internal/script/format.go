package script

import (
	"strconv"
	"strings"

	"github.com/TeYo001/Mimic/pkg/types"
)

// Format renders an action back into script syntax. Actions that have no
// script form (hotkey states) are rendered by state name.
func Format(a types.Action) string {
	switch a.Target {
	case types.StateRecording:
		return "record"
	case types.StateReplaying:
		return strings.TrimSpace("replay " + a.Filename)
	case types.StateTyping:
		return "type '" + a.Message + "'"
	case types.StateWaitTime:
		return "wait_time " + strconv.FormatFloat(a.Wait.Seconds(), 'f', -1, 64)
	case types.StateAwaitPress:
		return "await_press " + a.Key.String()
	case types.StateRepeat:
		return "repeat"
	}
	return a.Target.String()
}

// FormatProgram renders a whole program, one command per element
func FormatProgram(p *types.Program) []string {
	out := make([]string, 0, p.Len())
	for _, a := range p.Actions() {
		out = append(out, Format(a))
	}
	return out
}
