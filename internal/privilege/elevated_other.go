//go:build !unix && !windows

package privilege

// Для прочих ОС проверка не выполняется.
func isElevated() bool { return true }

func needsSudo() bool { return false }

func relaunch(args []string) error { return nil }

func hint(args []string) string {
	return "ensure the console runs with the required permissions"
}
