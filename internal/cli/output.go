package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/TeYo001/Mimic/internal/scheduler"
	"github.com/TeYo001/Mimic/internal/script"
	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/fatih/color"
)

var (
	stateColor = color.New(color.FgCyan)
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.Faint)
)

// printProgram lists a parsed program, one action per line
func printProgram(w io.Writer, p *types.Program) {
	for i, a := range p.Actions() {
		fmt.Fprintf(w, "%3d  ", i)
		stateColor.Fprintf(w, "%-12s", a.Target)
		fmt.Fprintf(w, " %s", script.Format(a))
		if a.Target == types.StateRepeat && len(a.Sequence) > 0 {
			dimColor.Fprintf(w, "  (actions %d-%d)", a.Sequence[0], a.Sequence[len(a.Sequence)-1])
		}
		fmt.Fprintln(w)
	}
	okColor.Fprintf(w, "OK")
	fmt.Fprintf(w, " %d actions\n", p.Len())
}

// printCheckError shows where in src parsing failed
func printCheckError(w io.Writer, src string, err error) {
	errColor.Fprint(w, "ERROR")
	fmt.Fprintf(w, " %v\n", err)

	var pe *script.ParseError
	if !errors.As(err, &pe) || pe.Pos < 0 || pe.Pos > len(src) {
		return
	}
	fmt.Fprintf(w, "  %s\n", src)
	fmt.Fprintf(w, "  %s", strings.Repeat(" ", len([]rune(src[:pe.Pos]))))
	errColor.Fprintln(w, "^")
}

// printStatus renders a scheduler status
func printStatus(w io.Writer, st scheduler.Status) {
	mode := "one-shot"
	if st.Daemon {
		mode = "daemon"
	}

	fmt.Fprint(w, "State:       ")
	stateColor.Fprintln(w, st.State)
	fmt.Fprintf(w, "Mode:        %s\n", mode)
	fmt.Fprintf(w, "Session:     %s\n", st.Session)
	fmt.Fprintf(w, "Dispatched:  %d\n", st.Dispatched)
	fmt.Fprintf(w, "Queues:      interrupt=%d scripted=%d\n", st.InterruptDepth, st.ScriptedDepth)
	fmt.Fprintf(w, "Events:      buffered=%d ", st.EventsBuffered)
	if st.EventsDropped > 0 {
		errColor.Fprintf(w, "dropped=%d\n", st.EventsDropped)
	} else {
		fmt.Fprintf(w, "dropped=%d\n", st.EventsDropped)
	}
}
