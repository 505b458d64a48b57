package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"sysconsole/internal/core"
	"sysconsole/internal/storage"
	"sysconsole/internal/transports/common"
)

// executeRequest тело POST /v1/actions/execute. Вместо module/action можно
// передать command в виде "/module action args...".
type executeRequest struct {
	Module  string   `json:"module"`
	Action  string   `json:"action"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Answers []string `json:"answers"`
}

// executeResponse результат действия: статус, данные и накопленный вывод сессии.
type executeResponse struct {
	RequestID string          `json:"request_id"`
	SessionID string          `json:"session_id"`
	Status    string          `json:"status"`
	Data      interface{}     `json:"data"`
	ErrorCode string          `json:"error_code,omitempty"`
	Output    string          `json:"output"`
	Entries   []core.LogEntry `json:"entries"`
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id":  requestIDFromContext(r.Context()),
		"subject":     id.Subject,
		"roles":       id.Roles,
		"auth_method": id.Method,
	})
}

func (a *Adapter) handleModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"items":      a.service.Registry.Catalog(),
	})
}

func (a *Adapter) handleExecute(w http.ResponseWriter, r *http.Request) {
	subject := identityFrom(r.Context()).Subject
	requestID := requestIDFromContext(r.Context())

	req, code, status := readExecuteRequest(r)
	if code != "" {
		writeError(w, r, status, code)
		a.writeAudit(r.Context(), subject, "Execute", "rejected: "+code, core.StatusError, requestID)
		return
	}

	res, err := a.service.Execute(r.Context(), common.Request{
		Subject: subject,
		Module:  req.Module,
		Action:  req.Action,
		Args:    req.Args,
		Answers: req.Answers,
	})
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		err = context.DeadlineExceeded
	}
	if status, code := executeStatus(res, err); status != http.StatusOK {
		writeError(w, r, status, code)
		return
	}

	entries := res.Entries
	if entries == nil {
		entries = []core.LogEntry{}
	}
	writeJSON(w, r, http.StatusOK, executeResponse{
		RequestID: requestID,
		SessionID: res.SessionID,
		Status:    res.Response.Status,
		Data:      res.Response.Data,
		ErrorCode: res.Response.ErrorCode,
		Output:    res.Output,
		Entries:   entries,
	})
}

func readExecuteRequest(r *http.Request) (executeRequest, string, int) {
	var req executeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, "payload_too_large", http.StatusRequestEntityTooLarge
		}
		return req, "invalid_json", http.StatusBadRequest
	}
	if dec.More() {
		return req, "invalid_json", http.StatusBadRequest
	}
	if req.Module == "" && req.Action == "" && req.Command != "" {
		module, action, args, err := common.ParseTextCommand(req.Command)
		if err != nil {
			return req, common.CodeBadCommand, http.StatusBadRequest
		}
		req.Module, req.Action, req.Args = module, action, append(args, req.Args...)
	}
	if req.Module == "" || req.Action == "" {
		return req, common.CodeBadCommand, http.StatusBadRequest
	}
	return req, "", 0
}

// executeStatus переводит итог действия в HTTP-статус; ошибки самого действия
// возвращаются в теле с кодом 200, чтобы форма показала вывод.
func executeStatus(res common.Result, err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, common.CodeAccessDenied
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, common.CodeRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request_timeout"
	case res.Response.ErrorCode == core.CodeModuleNotFound, res.Response.ErrorCode == core.CodeUnknownAction:
		return http.StatusNotFound, res.Response.ErrorCode
	}
	return http.StatusOK, ""
}

func (a *Adapter) handleLatestMetric(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	if module == "" {
		writeError(w, r, http.StatusBadRequest, "module_required")
		return
	}

	rec, err := a.store.LatestMetric(r.Context(), module)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "metric_not_found")
		return
	default:
		writeStoreError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"module":     rec.Module,
		"ts":         rec.TS.UTC().Format(time.RFC3339),
		"payload":    json.RawMessage(rec.Payload),
	})
}

func (a *Adapter) handleLog(w http.ResponseWriter, r *http.Request) {
	q, code := parseLogQuery(r.URL.Query())
	if code != "" {
		writeError(w, r, http.StatusBadRequest, code)
		return
	}
	entries, err := a.store.QueryActions(r.Context(), q)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []storage.ActionEntry{}
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"items":      entries,
	})
}

// parseLogQuery разбирает component, from/to (RFC 3339) и limit.
func parseLogQuery(v url.Values) (storage.ActionQuery, string) {
	q := storage.ActionQuery{Component: v.Get("component")}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil {
		q.Limit = n
	}
	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"from", &q.From}, {"to", &q.To}} {
		raw := v.Get(bound.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, "bad_" + bound.name
		}
		*bound.dst = ts
	}
	return q, ""
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
		return
	}
	writeError(w, r, http.StatusInternalServerError, "query_failed")
}

// writeAudit фиксирует события самого транспорта (отказы, ошибки разбора) в журнале действий.
func (a *Adapter) writeAudit(ctx context.Context, subject, action, outcome, status, requestID string) {
	common.Record(ctx, a.store, common.Meta{Session: requestID, Source: "web", Subject: subject},
		[]core.LogEntry{{Component: component, Action: action, Outcome: outcome}}, status)
}

func newRequestID() string {
	return uuid.NewString()
}

var errorMessages = map[string]string{
	"auth_required":         "authentication is required",
	"invalid_token":         "token is invalid",
	common.CodeAccessDenied: "access denied",
	common.CodeRateLimited:  "too many requests",
	common.CodeBadCommand:   "module and action are required",
	"invalid_json":          "request body is not valid JSON",
	"payload_too_large":     "request payload is too large",
	"request_timeout":       "request timeout",
	core.CodeModuleNotFound: "module not found",
	core.CodeUnknownAction:  "unknown action",
	"metric_not_found":      "no metric recorded for module",
	"cors_denied":           "cors policy denied request",
	"cors_method_denied":    "cors policy denied request",
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code string) {
	msg, ok := errorMessages[code]
	if !ok {
		msg = code
	}
	writeJSON(w, r, statusCode, map[string]string{
		"request_id": requestIDFromContext(r.Context()),
		"error_code": code,
		"message":    msg,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestIDFromContext(r.Context()))
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
