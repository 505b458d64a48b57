package platform

import (
	"os"
	"os/exec"

	"sysconsole/internal/executor"
	"sysconsole/internal/parse"
	"sysconsole/internal/table"
)

// Linux команды iproute2, systemd, ufw/iptables и shadow-utils.
type Linux struct {
	exists   func(path string) bool
	lookPath func(file string) (string, error)
}

// NewLinux создает Provider, проверяющий файловую систему и PATH хоста.
func NewLinux() Linux {
	return Linux{
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		lookPath: exec.LookPath,
	}
}

func (Linux) OS() string { return "linux" }

var (
	passwdFields = []string{"name", "password", "uid", "gid", "gecos", "home", "shell"}
	groupFields  = []string{"name", "password", "gid", "members"}
)

func (Linux) ListUsers() Listing {
	return Listing{
		Title:     "System users",
		Command:   cmd("getent", "passwd"),
		Shape:     Delimited,
		Delimited: parse.DelimitedSpec{Delim: ':', Headers: passwdFields},
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "name", Header: "Name", Width: 24},
				{Field: "uid", Header: "UID", Width: 8},
				{Field: "gid", Header: "GID", Width: 8},
				{Field: "home", Header: "Home", Width: 30},
				{Field: "shell", Header: "Shell", Width: 24},
			},
			Empty: "No users found.",
		},
	}
}

func (Linux) ListGroups() Listing {
	return Listing{
		Title:     "System groups",
		Command:   cmd("getent", "group"),
		Shape:     Delimited,
		Delimited: parse.DelimitedSpec{Delim: ':', Headers: groupFields},
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "name", Header: "Name", Width: 24},
				{Field: "gid", Header: "GID", Width: 8},
				{Field: "members", Header: "Members", Width: 50, Convert: table.Default("-")},
			},
			Empty: "No groups found.",
		},
	}
}

func (Linux) AddUser(name, password string) []executor.Command {
	cmds := []executor.Command{elevated("useradd", "-m", name)}
	if password != "" {
		c := elevated("chpasswd")
		c.Stdin = name + ":" + password + "\n"
		cmds = append(cmds, c)
	}
	return cmds
}

func (Linux) DeleteUser(name string) executor.Command { return elevated("userdel", name) }
func (Linux) AddGroup(name string) executor.Command   { return elevated("groupadd", name) }
func (Linux) DeleteGroup(name string) executor.Command {
	return elevated("groupdel", name)
}

func (Linux) AddToGroup(user, group string) executor.Command {
	return elevated("usermod", "-aG", group, user)
}

func (Linux) RemoveFromGroup(user, group string) executor.Command {
	return elevated("gpasswd", "-d", user, group)
}

func (Linux) Interfaces() Listing {
	return Listing{
		Title:   "Network interfaces",
		Command: cmd("ip", "-brief", "address"),
		Shape:   Columns,
		Columns: parse.ColumnSpec{Headers: []string{"iface", "state", "addresses"}},
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "iface", Header: "Interface", Width: 16},
				{Field: "state", Header: "State", Width: 10},
				{Field: "addresses", Header: "Addresses", Width: 60},
			},
			Empty: "No interfaces found.",
		},
	}
}

func (Linux) SetAddress(addr Address) []executor.Command {
	cmds := []executor.Command{
		elevated("ip", "address", "add", addr.IP+"/"+addr.Mask, "dev", addr.Interface),
	}
	if addr.Gateway != "" {
		cmds = append(cmds, elevated("ip", "route", "add", "default", "via", addr.Gateway, "dev", addr.Interface))
	}
	return cmds
}

func (Linux) SetLinkState(iface string, up bool) executor.Command {
	state := "down"
	if up {
		state = "up"
	}
	return elevated("ip", "link", "set", "dev", iface, state)
}

func (Linux) Routes() Listing      { return raw("Routing table", cmd("ip", "route")) }
func (Linux) Connections() Listing { return raw("Network connections", cmd("ss", "-tunap")) }

func (Linux) FirewallStatus() []Listing {
	return []Listing{
		raw("UFW (Uncomplicated Firewall)", elevated("ufw", "status")),
		raw("iptables", elevated("iptables", "-L", "-n", "-v")),
	}
}

func (Linux) FirewallRules() []Listing {
	return []Listing{
		raw("UFW rules", elevated("ufw", "status", "verbose")),
		raw("iptables rules", elevated("iptables", "-L", "-n", "-v")),
	}
}

func (Linux) SetFirewall(enabled bool) executor.Command {
	if enabled {
		return elevated("ufw", "--force", "enable")
	}
	return elevated("ufw", "disable")
}

func ufwTarget(rule FirewallRule) string {
	if rule.Protocol == "" || rule.Protocol == "any" {
		return rule.Port
	}
	return rule.Port + "/" + rule.Protocol
}

func ufwVerb(rule FirewallRule) string {
	if rule.Block {
		return "deny"
	}
	return "allow"
}

func (Linux) AddPortRule(rule FirewallRule) executor.Command {
	args := []string{ufwVerb(rule)}
	if rule.Direction == "out" {
		args = append(args, "out")
	}
	return elevated("ufw", append(args, ufwTarget(rule))...)
}

func (Linux) DeletePortRule(rule FirewallRule) executor.Command {
	args := []string{"delete", ufwVerb(rule)}
	if rule.Direction == "out" {
		args = append(args, "out")
	}
	return elevated("ufw", append(args, ufwTarget(rule))...)
}

func (l Linux) AddAppRule(AppRule) (executor.Command, error) {
	return executor.Command{}, unsupported(l.OS(), "application rules")
}

func (l Linux) DeleteRule(string) (executor.Command, error) {
	return executor.Command{}, unsupported(l.OS(), "named rules")
}

func (l Linux) ShowRule(string) (Listing, error) {
	return Listing{}, unsupported(l.OS(), "named rules")
}

func (Linux) Disks() []Listing {
	return []Listing{raw("Disks and partitions", cmd("lsblk", "-o", "NAME,SIZE,FSTYPE,MOUNTPOINT,UUID,MODEL,STATE"))}
}

func (Linux) DiskUsage() Listing {
	return Listing{
		Title:   "Mounted partitions",
		Command: cmd("df", "-hT"),
		Shape:   Columns,
		Columns: parse.ColumnSpec{
			Headers:    []string{"Filesystem", "Type", "Size", "Used", "Avail", "Use%", "Mounted"},
			SkipHeader: true,
		},
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "Filesystem", Header: "Filesystem", Width: 28},
				{Field: "Type", Header: "Type", Width: 10},
				{Field: "Size", Header: "Size", Width: 8},
				{Field: "Used", Header: "Used", Width: 8},
				{Field: "Avail", Header: "Avail", Width: 8},
				{Field: "Use%", Header: "Use%", Width: 6},
				{Field: "Mounted", Header: "Mounted on", Width: 30},
			},
			Empty: "No mounted partitions found.",
		},
	}
}

func (Linux) Processes() Listing {
	return Listing{
		Title:   "Processes",
		Command: cmd("ps", "aux"),
		Shape:   Columns,
		Columns: parse.ColumnSpec{
			Headers:    []string{"USER", "PID", "%CPU", "%MEM", "VSZ", "RSS", "TTY", "STAT", "START", "TIME", "COMMAND"},
			SkipHeader: true,
		},
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "PID", Header: "PID", Width: 8},
				{Field: "USER", Header: "User", Width: 12},
				{Field: "%CPU", Header: "CPU %", Width: 6},
				{Field: "%MEM", Header: "Mem %", Width: 6},
				{Field: "COMMAND", Header: "Command", Width: 60},
			},
			Empty: "No processes found.",
		},
	}
}

func (Linux) KillPID(pid string) executor.Command   { return elevated("kill", pid) }
func (Linux) KillName(name string) executor.Command { return elevated("pkill", name) }

func (Linux) Services() Listing {
	return Listing{
		Title:   "Services",
		Command: cmd("systemctl", "list-units", "--type=service", "--all", "--no-pager", "--plain", "--no-legend"),
		Shape:   Columns,
		Columns: parse.ColumnSpec{Headers: []string{"UNIT", "LOAD", "ACTIVE", "SUB", "DESCRIPTION"}},
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "UNIT", Header: "UNIT", Width: 40},
				{Field: "LOAD", Header: "LOAD", Width: 10},
				{Field: "ACTIVE", Header: "ACTIVE", Width: 10},
				{Field: "SUB", Header: "SUB", Width: 10},
				{Field: "DESCRIPTION", Header: "DESCRIPTION", Width: 50},
			},
			Empty: "No services found.",
		},
	}
}

func (Linux) ServiceStatus(name string) Listing {
	return raw("Service status", cmd("systemctl", "status", name, "--no-pager"))
}

func (Linux) ControlService(action, name string) ([]executor.Command, error) {
	switch action {
	case "start", "stop", "restart", "enable", "disable":
		return []executor.Command{elevated("systemctl", action, name)}, nil
	default:
		return nil, unsupported("linux", "service action "+action)
	}
}

// Packages определяет менеджер пакетов: apt для Debian, dnf или yum для Red Hat.
func (l Linux) Packages() (PackageManager, error) {
	switch {
	case l.exists("/etc/debian_version"):
		return PackageManager{Name: "apt"}, nil
	case l.exists("/etc/redhat-release"), l.exists("/etc/fedora-release"):
		if _, err := l.lookPath("dnf"); err == nil {
			return PackageManager{Name: "dnf"}, nil
		}
		return PackageManager{Name: "yum"}, nil
	}
	for _, name := range []string{"apt", "dnf", "yum"} {
		if _, err := l.lookPath(name); err == nil {
			return PackageManager{Name: name}, nil
		}
	}
	return PackageManager{}, unsupported(l.OS(), "package management without apt/dnf/yum")
}
