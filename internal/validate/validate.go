// Package validate проверяет ввод оператора до построения команды.
package validate

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalid базовая ошибка валидации; сообщения оборачивают ее через %w.
var ErrInvalid = errors.New("invalid input")

var (
	nameRegex      = regexp.MustCompile(`^[a-zA-Z0-9._\\-]+$`)
	labelRegex     = regexp.MustCompile(`^[a-zA-Z0-9 ._:()\\-]+$`)
	containerRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	packageRegex   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9+._:~-]*$`)
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

// Required проверяет, что значение не пустое.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s cannot be empty", field)
	}
	return nil
}

// Name проверяет имя пользователя, группы, интерфейса, службы или пакета.
func Name(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if len(value) > 128 {
		return invalid("%s too long (max 128 characters)", field)
	}
	if strings.HasPrefix(value, "-") {
		return invalid("%s must not start with '-'", field)
	}
	if !nameRegex.MatchString(value) {
		return invalid("%s contains invalid characters", field)
	}
	return nil
}

// Password проверяет пароль нового пользователя. Пустой пароль допустим.
// Пароль уходит строкой в stdin chpasswd или аргументом net user, поэтому
// управляющие символы и префиксы ключей запрещены.
func Password(value string) error {
	if value == "" {
		return nil
	}
	if len(value) > 256 {
		return invalid("password too long (max 256 characters)")
	}
	if strings.HasPrefix(value, "-") || strings.HasPrefix(value, "/") {
		return invalid("password must not start with '-' or '/'")
	}
	if strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return invalid("password contains control characters")
	}
	return nil
}

// Label проверяет имя правила брандмауэра или интерфейса Windows (допускаются пробелы).
func Label(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if len(value) > 256 {
		return invalid("%s too long (max 256 characters)", field)
	}
	if strings.HasPrefix(value, "-") {
		return invalid("%s must not start with '-'", field)
	}
	if !labelRegex.MatchString(value) {
		return invalid("%s contains invalid characters", field)
	}
	return nil
}

// Container проверяет ID или имя Docker-контейнера.
func Container(value string) error {
	if err := Required("container", value); err != nil {
		return err
	}
	if !containerRegex.MatchString(value) {
		return invalid("container %q has invalid format", value)
	}
	return nil
}

// Package проверяет имя пакета (допускаются '+', ':' и '~', как в g++ или libc6:amd64).
func Package(value string) error {
	if err := Required("package", value); err != nil {
		return err
	}
	if !packageRegex.MatchString(value) {
		return invalid("package name %q has invalid format", value)
	}
	return nil
}

// Path проверяет путь к файлу (compose-файл, исполняемый файл приложения).
func Path(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if strings.HasPrefix(value, "-") {
		return invalid("%s must not start with '-'", field)
	}
	if strings.ContainsAny(value, "\x00\n\r") {
		return invalid("%s contains control characters", field)
	}
	return nil
}

// Port проверяет номер порта 1-65535.
func Port(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return invalid("port must be a number")
	}
	if n < 1 || n > 65535 {
		return invalid("port out of valid range (1-65535)")
	}
	return nil
}

// PID проверяет идентификатор процесса.
func PID(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return invalid("pid must be a positive number")
	}
	return nil
}

// Lines проверяет необязательное число строк журнала.
func Lines(value string) error {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return invalid("number of lines must be a positive number")
	}
	return nil
}

// Protocol нормализует протокол: tcp, udp или any (по умолчанию).
func Protocol(value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		return "any", nil
	case "tcp", "udp", "any":
		return v, nil
	default:
		return "", invalid("protocol must be tcp, udp or any")
	}
}

// Direction нормализует направление: in (по умолчанию) или out.
func Direction(value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		return "in", nil
	case "in", "out":
		return v, nil
	default:
		return "", invalid("direction must be 'in' or 'out'")
	}
}

// RuleAction нормализует действие правила приложения: allow (по умолчанию) или block.
func RuleAction(value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		return "allow", nil
	case "allow", "block":
		return v, nil
	default:
		return "", invalid("action must be 'allow' or 'block'")
	}
}

// LinkState разбирает желаемое состояние интерфейса.
func LinkState(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "up", "enable", "on", "habilitar":
		return true, nil
	case "down", "disable", "off", "deshabilitar":
		return false, nil
	default:
		return false, invalid("state must be 'up' or 'down'")
	}
}

// IPv4 проверяет адрес IPv4.
func IPv4(field, value string) error {
	ip := net.ParseIP(strings.TrimSpace(value))
	if ip == nil || ip.To4() == nil {
		return invalid("%s %q is not a valid IPv4 address", field, value)
	}
	return nil
}

// Mask проверяет маску: префикс 0-32 или точечная запись.
func Mask(value string) error {
	v := strings.TrimSpace(value)
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 || n > 32 {
			return invalid("prefix length out of range (0-32)")
		}
		return nil
	}
	ip := net.ParseIP(v).To4()
	if ip == nil {
		return invalid("mask %q is not valid", value)
	}
	if _, bits := net.IPMask(ip).Size(); bits == 0 {
		return invalid("mask %q is not contiguous", value)
	}
	return nil
}
