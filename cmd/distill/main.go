package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCommand()
	err := root.Execute()
	if err == nil {
		return
	}
	// Ctrl-C mid-command is not an error worth printing.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "distill: %v\n", err)
	}
	os.Exit(1)
}
