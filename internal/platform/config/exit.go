package config

import (
	"fmt"
	"os"
)

// Exitf reports a failed nftgen command on stderr and exits with status 1.
// The newline is added here so callers pass bare messages.
func Exitf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	os.Exit(1)
}
