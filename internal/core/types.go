package core

import (
	"context"
	"errors"

	"sysconsole/internal/console"
	"sysconsole/internal/platform"
	"sysconsole/internal/validate"
)

// Статусы Response.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Коды ошибок Response.
const (
	CodeModuleNotFound = "module_not_found"
	CodeUnknownAction  = "unknown_action"
	CodeInvalidInput   = "invalid_input"
	CodeUnsupported    = "unsupported"
	CodeCommandFailed  = "command_failed"
	CodeNoAnswer       = "no_answer"
	CodeCancelled      = "cancelled"
)

var (
	// ErrUnknownAction модуль не знает действие.
	ErrUnknownAction = errors.New("unknown action")
	// ErrCommandFailed внешняя команда завершилась с ненулевым кодом.
	ErrCommandFailed = errors.New("command failed")
)

// Response описывает унифицированный результат выполнения действия.
type Response struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
}

// OK успешный ответ.
func OK(data interface{}) (Response, error) {
	return Response{Status: StatusOK, Data: data}, nil
}

// Cancelled ответ на отказ оператора подтвердить действие.
func Cancelled() (Response, error) {
	return Response{Status: StatusCancelled}, nil
}

// Fail переводит ошибку в Response с устойчивым кодом.
func Fail(err error) (Response, error) {
	return Response{Status: StatusError, ErrorCode: CodeFor(err)}, err
}

// CodeFor возвращает код ошибки для Response.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, errUnknownProvider):
		return CodeModuleNotFound
	case errors.Is(err, ErrUnknownAction):
		return CodeUnknownAction
	case errors.Is(err, validate.ErrInvalid):
		return CodeInvalidInput
	case errors.Is(err, platform.ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, console.ErrNoAnswer), errors.Is(err, console.ErrNotCollecting):
		return CodeNoAnswer
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	default:
		return CodeCommandFailed
	}
}

// ActionSpec описание действия для меню, CLI и web-формы.
type ActionSpec struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Params      []string `json:"params,omitempty"`
	Destructive bool     `json:"destructive,omitempty"`
}

// Module определяет контракт ресурсного модуля.
type Module interface {
	Name() string
	Title() string
	Init(ctx context.Context) error
	Actions() []ActionSpec
	Execute(ctx context.Context, env *Env, action string, args []string) (Response, error)
}

// ModuleInfo описание модуля в каталоге.
type ModuleInfo struct {
	Name    string       `json:"name"`
	Title   string       `json:"title"`
	Actions []ActionSpec `json:"actions"`
}
