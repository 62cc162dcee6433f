package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/zipray/zipray/internal/analyze"
)

func main() {
	var cmd analyze.Command

	p := flags.NewParser(&cmd, flags.Default)
	args, err := p.Parse()
	if err == nil {
		err = cmd.Execute(args)
	}

	waitConsole()

	// flag errors are already printed by the parser.
	var flagsErr *flags.Error
	if err != nil && !errors.As(err, &flagsErr) {
		_, _ = fmt.Fprintf(os.Stderr, "zipray: %v\n", err)
	}

	os.Exit(exitCode(err))
}
