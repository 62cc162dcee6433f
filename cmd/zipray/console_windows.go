//go:build windows

package main

import (
	"fmt"
	"os"
)

// need this on windows to keep the console open.
func waitConsole() {
	_, _ = fmt.Fprintf(os.Stderr, "Press any key to close console\n")
	_, _ = fmt.Scanf("h")
}
