package platform

import "sysconsole/internal/executor"

// exitUpdatesAvailable код dnf/yum check-update при наличии обновлений.
const exitUpdatesAvailable = 100

// PackageManager команды apt, dnf или yum.
type PackageManager struct {
	Name string
}

func (m PackageManager) List() Listing {
	if m.Name == "apt" {
		return raw("Installed packages", cmd("apt", "list", "--installed"))
	}
	return raw("Installed packages", cmd(m.Name, "list", "installed"))
}

func (m PackageManager) Search(name string) Listing {
	return raw("Search results", cmd(m.Name, "search", name))
}

// Refresh обновляет индекс пакетов.
func (m PackageManager) Refresh() executor.Command {
	if m.Name == "apt" {
		return elevated("apt", "update")
	}
	return elevated(m.Name, "check-update")
}

func (m PackageManager) Upgrade() executor.Command {
	if m.Name == "apt" {
		return elevated("apt", "upgrade", "-y")
	}
	return elevated(m.Name, "update", "-y")
}

func (m PackageManager) Install(name string) executor.Command {
	return elevated(m.Name, "install", "-y", name)
}

func (m PackageManager) Remove(name string) executor.Command {
	return elevated(m.Name, "remove", "-y", name)
}

// RefreshOK сообщает, считается ли код завершения Refresh успешным.
func (m PackageManager) RefreshOK(code int) bool {
	if code == 0 {
		return true
	}
	return m.Name != "apt" && code == exitUpdatesAvailable
}
