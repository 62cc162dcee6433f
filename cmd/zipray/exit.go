package main

import (
	"context"
	"errors"

	"github.com/jessevdk/go-flags"
	"github.com/zipray/zipray"
	"github.com/zipray/zipray/cd"
	"github.com/zipray/zipray/internal/analyze"
)

// Exit codes: 0 success, 2 input errors, 3 archive-level errors, 4 cancelled, 1 anything else.
const (
	exitOK = iota
	exitInternal
	exitInput
	exitArchive
	exitCancelled
)

func exitCode(err error) int {
	var (
		flagsErr  *flags.Error
		inputErr  *analyze.InputError
		sizeErr   *zipray.SizeLimitError
		malformed *cd.MalformedError
	)

	switch {
	case err == nil, flags.WroteHelp(err):
		return exitOK
	case errors.As(err, &flagsErr), errors.As(err, &inputErr):
		return exitInput
	case errors.As(err, &sizeErr), errors.As(err, &malformed):
		return exitArchive
	case errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitInternal
	}
}
