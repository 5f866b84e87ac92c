// pagetree drives a page tree from the shell.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
