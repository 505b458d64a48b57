//go:build unix

package privilege

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func isElevated() bool {
	return unix.Geteuid() == 0
}

func needsSudo() bool { return true }

func relaunch(args []string) error {
	return fmt.Errorf("%w: %s", ErrNotElevated, hint(args))
}

func hint(args []string) string {
	return "re-run with sudo: sudo " + quoteArgs(args)
}
