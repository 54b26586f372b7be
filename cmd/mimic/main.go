// Command mimic records, replays and scripts mouse and keyboard input.
package main

import (
	"fmt"
	"os"

	"github.com/TeYo001/Mimic/internal/cli"
	"github.com/fatih/color"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := cli.Execute(); err != nil {
		color.New(color.FgRed).Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
