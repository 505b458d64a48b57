// Package platform скрывает различия ОС: для каждой операции возвращает
// argv-команды и форму разбора/отображения их вывода.
package platform

import (
	"errors"
	"fmt"
	"runtime"

	"sysconsole/internal/executor"
	"sysconsole/internal/parse"
	"sysconsole/internal/table"
)

// ErrUnsupported операция недоступна на текущей ОС.
var ErrUnsupported = errors.New("operation not supported on this platform")

func unsupported(os, op string) error {
	return fmt.Errorf("%s on %s: %w", op, os, ErrUnsupported)
}

// Shape форма вывода утилиты.
type Shape int

const (
	// Raw вывод показывается как есть.
	Raw Shape = iota
	// KeyValue блоки KEY=VALUE (wmic /value).
	KeyValue
	// Delimited CSV-подобный вывод.
	Delimited
	// Columns колонки, выровненные пробелами.
	Columns
)

// Listing описывает команду просмотра и способ отображения ее вывода.
type Listing struct {
	Title     string
	Command   executor.Command
	Shape     Shape
	Delimited parse.DelimitedSpec
	Columns   parse.ColumnSpec
	Table     table.Spec
}

// Records разбирает вывод команды согласно Shape. Для Raw записей нет.
func (l Listing) Records(text string) ([]parse.Record, []parse.Warning) {
	switch l.Shape {
	case KeyValue:
		return parse.KeyValueBlocks(text), nil
	case Delimited:
		return parse.Delimited(text, l.Delimited)
	case Columns:
		return parse.Columns(text, l.Columns)
	default:
		return nil, nil
	}
}

// Render возвращает текст для оператора и предупреждения разбора.
func (l Listing) Render(text string) (string, []parse.Warning) {
	if l.Shape == Raw {
		return text, nil
	}
	recs, warnings := l.Records(text)
	return l.Table.Render(recs), warnings
}

// FirewallRule параметры правила брандмауэра по порту.
type FirewallRule struct {
	Name      string
	Port      string
	Protocol  string
	Direction string
	Block     bool
}

// AppRule правило для исполняемого файла (Windows).
type AppRule struct {
	Name      string
	Program   string
	Action    string
	Direction string
}

// Address статическая адресация интерфейса.
type Address struct {
	Interface string
	IP        string
	Mask      string
	Gateway   string
}

// Provider набор команд конкретной ОС.
type Provider interface {
	OS() string

	ListUsers() Listing
	ListGroups() Listing
	AddUser(name, password string) []executor.Command
	DeleteUser(name string) executor.Command
	AddGroup(name string) executor.Command
	DeleteGroup(name string) executor.Command
	AddToGroup(user, group string) executor.Command
	RemoveFromGroup(user, group string) executor.Command

	Interfaces() Listing
	SetAddress(addr Address) []executor.Command
	SetLinkState(iface string, up bool) executor.Command
	Routes() Listing
	Connections() Listing

	// FirewallStatus и FirewallRules возвращают команды в порядке предпочтения:
	// следующая используется, если предыдущая завершилась ошибкой.
	FirewallStatus() []Listing
	FirewallRules() []Listing
	SetFirewall(enabled bool) executor.Command
	AddPortRule(rule FirewallRule) executor.Command
	DeletePortRule(rule FirewallRule) executor.Command
	AddAppRule(rule AppRule) (executor.Command, error)
	DeleteRule(name string) (executor.Command, error)
	ShowRule(name string) (Listing, error)

	Disks() []Listing
	DiskUsage() Listing

	Processes() Listing
	KillPID(pid string) executor.Command
	KillName(name string) executor.Command

	Services() Listing
	ServiceStatus(name string) Listing
	ControlService(action, name string) ([]executor.Command, error)

	Packages() (PackageManager, error)
}

// Current возвращает Provider для ОС, на которой запущен процесс.
func Current() Provider {
	return For(runtime.GOOS)
}

// For возвращает Provider по имени ОС (runtime.GOOS); все, что не windows, считается Linux.
func For(goos string) Provider {
	if goos == "windows" {
		return Windows{}
	}
	return NewLinux()
}

func cmd(program string, args ...string) executor.Command {
	return executor.Command{Program: program, Args: args}
}

func elevated(program string, args ...string) executor.Command {
	return executor.Command{Program: program, Args: args, Elevate: true}
}

func raw(title string, c executor.Command) Listing {
	return Listing{Title: title, Command: c, Shape: Raw}
}
