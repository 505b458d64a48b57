package platform

import (
	"net"
	"strconv"

	"sysconsole/internal/executor"
	"sysconsole/internal/table"
)

// Windows команды net, netsh, wmic, sc и tasklist.
type Windows struct{}

func (Windows) OS() string { return "windows" }

func (Windows) ListUsers() Listing  { return raw("System users", cmd("net", "user")) }
func (Windows) ListGroups() Listing { return raw("Local groups", cmd("net", "localgroup")) }

func (Windows) AddUser(name, password string) []executor.Command {
	c := elevated("net", "user", name, password, "/add")
	c.Redact = []string{password}
	return []executor.Command{c}
}

func (Windows) DeleteUser(name string) executor.Command {
	return elevated("net", "user", name, "/delete")
}

func (Windows) AddGroup(name string) executor.Command {
	return elevated("net", "localgroup", name, "/add")
}

func (Windows) DeleteGroup(name string) executor.Command {
	return elevated("net", "localgroup", name, "/delete")
}

func (Windows) AddToGroup(user, group string) executor.Command {
	return elevated("net", "localgroup", group, user, "/add")
}

func (Windows) RemoveFromGroup(user, group string) executor.Command {
	return elevated("net", "localgroup", group, user, "/delete")
}

func (Windows) Interfaces() Listing { return raw("IP configuration", cmd("ipconfig", "/all")) }

// dottedMask переводит префикс (24) в точечную маску, которую ожидает netsh.
func dottedMask(mask string) string {
	n, err := strconv.Atoi(mask)
	if err != nil || n < 0 || n > 32 {
		return mask
	}
	return net.IP(net.CIDRMask(n, 32)).String()
}

func (Windows) SetAddress(addr Address) []executor.Command {
	args := []string{"interface", "ip", "set", "address", "name=" + addr.Interface, "static", addr.IP, dottedMask(addr.Mask)}
	if addr.Gateway != "" {
		args = append(args, addr.Gateway, "1")
	}
	return []executor.Command{elevated("netsh", args...)}
}

func (Windows) SetLinkState(iface string, up bool) executor.Command {
	admin := "admin=disable"
	if up {
		admin = "admin=enable"
	}
	return elevated("netsh", "interface", "set", "interface", "name="+iface, admin)
}

func (Windows) Routes() Listing      { return raw("Routing table", cmd("route", "print")) }
func (Windows) Connections() Listing { return raw("Network connections", cmd("netstat", "-ano")) }

func (Windows) FirewallStatus() []Listing {
	return []Listing{raw("Windows Defender Firewall", cmd("netsh", "advfirewall", "show", "allprofiles", "state"))}
}

func (Windows) FirewallRules() []Listing {
	return []Listing{raw("Firewall rules", cmd("netsh", "advfirewall", "firewall", "show", "rule", "name=all"))}
}

func (Windows) SetFirewall(enabled bool) executor.Command {
	state := "off"
	if enabled {
		state = "on"
	}
	return elevated("netsh", "advfirewall", "set", "allprofiles", "state", state)
}

func (Windows) AddPortRule(rule FirewallRule) executor.Command {
	action := "allow"
	if rule.Block {
		action = "block"
	}
	return elevated("netsh", "advfirewall", "firewall", "add", "rule",
		"name="+rule.Name, "dir="+rule.Direction, "action="+action,
		"protocol="+rule.Protocol, "localport="+rule.Port)
}

func (Windows) DeletePortRule(rule FirewallRule) executor.Command {
	return elevated("netsh", "advfirewall", "firewall", "delete", "rule", "name="+rule.Name)
}

func (Windows) AddAppRule(rule AppRule) (executor.Command, error) {
	return elevated("netsh", "advfirewall", "firewall", "add", "rule",
		"name="+rule.Name, "dir="+rule.Direction, "action="+rule.Action,
		"program="+rule.Program, "enable=yes"), nil
}

func (Windows) DeleteRule(name string) (executor.Command, error) {
	return elevated("netsh", "advfirewall", "firewall", "delete", "rule", "name="+name), nil
}

func (Windows) ShowRule(name string) (Listing, error) {
	return raw("Firewall rule", cmd("netsh", "advfirewall", "firewall", "show", "rule", "name="+name)), nil
}

func logicalDiskColumns(withUsage bool) []table.Column {
	cols := []table.Column{
		{Field: "Caption", Header: "Caption", Width: 10},
		{Field: "FileSystem", Header: "File System", Width: 15},
		{Field: "Size", Header: "Total Size (GB)", Width: 20, Convert: table.GiB},
		{Field: "FreeSpace", Header: "Free Space (GB)", Width: 20, Convert: table.GiB},
	}
	if withUsage {
		cols = append(cols,
			table.Column{Header: "Used (GB)", Width: 12, Convert: table.UsedGiB("Size", "FreeSpace")},
			table.Column{Header: "Used %", Width: 8, Convert: table.UsedPercent("Size", "FreeSpace")},
		)
	}
	return cols
}

func (Windows) Disks() []Listing {
	return []Listing{
		{
			Title:   "Physical disks",
			Command: cmd("wmic", "diskdrive", "get", "Caption,Size,MediaType,Model,SerialNumber", "/value"),
			Shape:   KeyValue,
			Table: table.Spec{
				Columns: []table.Column{
					{Field: "Model", Header: "Model", Width: 40},
					{Field: "Size", Header: "Size (GB)", Width: 15, Convert: table.GiB},
					{Field: "MediaType", Header: "Media Type", Width: 20},
					{Field: "SerialNumber", Header: "Serial Number", Width: 25},
				},
				Empty: "No physical disks found.",
			},
		},
		{
			Title:   "Partitions",
			Command: cmd("wmic", "partition", "get", "Name,DiskIndex,Size,StartingOffset", "/value"),
			Shape:   KeyValue,
			Table: table.Spec{
				Columns: []table.Column{
					{Field: "Name", Header: "Name", Width: 45, Convert: table.Basename(`\`)},
					{Field: "DiskIndex", Header: "Disk Index", Width: 12},
					{Field: "Size", Header: "Size (GB)", Width: 15, Convert: table.GiB},
				},
				Empty: "No partitions found.",
			},
		},
		{
			Title:   "Logical drives (volumes)",
			Command: cmd("wmic", "logicaldisk", "get", "Caption,Size,FreeSpace,FileSystem", "/value"),
			Shape:   KeyValue,
			Table:   table.Spec{Columns: logicalDiskColumns(false), Empty: "No logical drives found."},
		},
	}
}

func (Windows) DiskUsage() Listing {
	return Listing{
		Title:   "Volume usage",
		Command: cmd("wmic", "logicaldisk", "get", "Caption,Size,FreeSpace,FileSystem", "/value"),
		Shape:   KeyValue,
		Table:   table.Spec{Columns: logicalDiskColumns(true), Empty: "No logical drives found."},
	}
}

func (Windows) Processes() Listing {
	return Listing{
		Title:   "Processes",
		Command: cmd("tasklist", "/fo", "csv"),
		Shape:   Delimited,
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "Image Name", Header: "Image Name", Width: 30},
				{Field: "PID", Header: "PID", Width: 8},
				{Field: "Session Name", Header: "Session Name", Width: 16},
				{Field: "Mem Usage", Header: "Mem Usage", Width: 14},
			},
			Empty: "No processes found.",
		},
	}
}

func (Windows) KillPID(pid string) executor.Command {
	return elevated("taskkill", "/PID", pid, "/F")
}

func (Windows) KillName(name string) executor.Command {
	return elevated("taskkill", "/IM", name, "/F")
}

func (Windows) Services() Listing {
	return Listing{
		Title:   "Services",
		Command: cmd("wmic", "service", "get", "Name,DisplayName,State,StartMode", "/FORMAT:CSV"),
		Shape:   Delimited,
		Table: table.Spec{
			Columns: []table.Column{
				{Field: "DisplayName", Header: "Display Name", Width: 40},
				{Field: "Name", Header: "Name", Width: 30},
				{Field: "State", Header: "State", Width: 10},
				{Field: "StartMode", Header: "Start Mode", Width: 12},
			},
			Empty: "No Windows services found.",
		},
	}
}

func (Windows) ServiceStatus(name string) Listing {
	return raw("Service status", cmd("sc", "query", name))
}

func (Windows) ControlService(action, name string) ([]executor.Command, error) {
	switch action {
	case "start":
		return []executor.Command{elevated("net", "start", name)}, nil
	case "stop":
		return []executor.Command{elevated("net", "stop", name)}, nil
	case "restart":
		return []executor.Command{elevated("net", "stop", name), elevated("net", "start", name)}, nil
	case "enable":
		return []executor.Command{elevated("sc", "config", name, "start=", "auto")}, nil
	case "disable":
		return []executor.Command{elevated("sc", "config", name, "start=", "disabled")}, nil
	default:
		return nil, unsupported("windows", "service action "+action)
	}
}

func (w Windows) Packages() (PackageManager, error) {
	return PackageManager{}, unsupported(w.OS(), "package management")
}
