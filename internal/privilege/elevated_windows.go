//go:build windows

package privilege

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

const swShowNormal = 1

func isElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func needsSudo() bool { return false }

// relaunch запускает копию процесса через UAC (verb "runas").
func relaunch(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("%w: resolve executable: %v", ErrNotElevated, err)
	}
	verb, _ := windows.UTF16PtrFromString("runas")
	file, _ := windows.UTF16PtrFromString(exe)
	params, _ := windows.UTF16PtrFromString(quoteArgs(args[1:]))
	cwd, _ := os.Getwd()
	dir, _ := windows.UTF16PtrFromString(cwd)
	if err := windows.ShellExecute(0, verb, file, params, dir, swShowNormal); err != nil {
		return fmt.Errorf("%w: %s", ErrNotElevated, hint(args))
	}
	return ErrRelaunched
}

func hint(args []string) string {
	return "run the console from an elevated prompt (Run as administrator)"
}
