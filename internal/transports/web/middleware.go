package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"sysconsole/internal/core"
	"sysconsole/internal/transports/common"
)

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxIdentity  contextKey = "identity"
)

type middleware func(http.Handler) http.Handler

// chain применяет middleware так, что первый в списке выполняется первым.
func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if !validRequestID(id) {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

// validRequestID принимает до 64 символов из [A-Za-z0-9-_.:].
func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	return strings.IndexFunc(id, func(ch rune) bool {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			return false
		case strings.ContainsRune("-_.:", ch):
			return false
		}
		return true
	}) < 0
}

func (a *Adapter) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Adapter) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxRequestBody)
		next.ServeHTTP(w, r)
	})
}

// corsPolicy разрешает браузерные запросы только с перечисленных origin.
type corsPolicy struct {
	origins      map[string]struct{}
	methods      []string
	allowMethods string
	allowHeaders string
}

func newCORSPolicy(cfg Config) corsPolicy {
	p := corsPolicy{
		origins:      make(map[string]struct{}, len(cfg.CORSAllowedOrigins)),
		methods:      cfg.CORSAllowedMethods,
		allowMethods: strings.Join(cfg.CORSAllowedMethods, ", "),
		allowHeaders: strings.Join(cfg.CORSAllowedHeaders, ", "),
	}
	for _, origin := range cfg.CORSAllowedOrigins {
		if o := strings.TrimSpace(origin); o != "" {
			p.origins[o] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) allowsMethod(method string) bool {
	for _, m := range p.methods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}

func (p corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := p.origins[origin]; !ok {
			writeError(w, r, http.StatusForbidden, "cors_denied")
			return
		}

		h := w.Header()
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", p.allowMethods)
		h.Set("Access-Control-Allow-Headers", p.allowHeaders)
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if m := strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")); m != "" && !p.allowsMethod(m) {
			writeError(w, r, http.StatusForbidden, "cors_method_denied")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// identity аутентифицированный клиент web-формы.
type identity struct {
	Subject string
	Roles   []string
	Method  string
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(ctxIdentity).(identity)
	return id
}

// tokenTable bearer-токены по sha256 (hex, нижний регистр).
type tokenTable map[string]TokenEntry

func newTokenTable(tokens []TokenEntry) tokenTable {
	t := make(tokenTable, len(tokens))
	for _, token := range tokens {
		h := strings.ToLower(strings.TrimSpace(token.TokenSHA256))
		if len(h) == 64 {
			t[h] = token
		}
	}
	return t
}

func (t tokenTable) lookup(raw string) (TokenEntry, bool) {
	sum := sha256.Sum256([]byte(raw))
	entry, ok := t[hex.EncodeToString(sum[:])]
	if !ok || !entry.Enabled || entry.Subject == "" {
		return TokenEntry{}, false
	}
	return entry, true
}

// identify возвращает клиента запроса или код ошибки аутентификации.
func (a *Adapter) identify(r *http.Request) (identity, string) {
	if scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "bearer") {
		entry, found := a.tokens.lookup(strings.TrimSpace(token))
		if !found {
			return identity{}, "invalid_token"
		}
		return identity{Subject: entry.Subject, Roles: append([]string(nil), entry.Roles...), Method: "bearer"}, ""
	}
	if a.cfg.AllowLegacySubjectHeader {
		if subject := strings.TrimSpace(r.Header.Get("X-Subject-ID")); subject != "" {
			return identity{Subject: subject, Method: "legacy_header"}, ""
		}
	}
	return identity{}, "auth_required"
}

func (a *Adapter) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, code := a.identify(r)
		if code != "" {
			writeError(w, r, http.StatusUnauthorized, code)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxIdentity, id)))
	})
}

// authorizeWith проверяет действие, выбранное pick, до вызова обработчика.
func (a *Adapter) authorizeWith(pick func(*http.Request) (core.Action, bool)) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action, ok := pick(r)
			if !ok || a.service.Authorizer == nil {
				next.ServeHTTP(w, r)
				return
			}
			id := identityFrom(r.Context())
			if err := a.service.Authorizer.Authorize(core.Subject{Source: "web", ID: id.Subject}, action); err != nil {
				writeError(w, r, http.StatusForbidden, common.CodeAccessDenied)
				a.writeAudit(r.Context(), id.Subject, action.String(), "denied via "+id.Method, "denied", requestIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestID).(string); ok && v != "" {
		return v
	}
	return newRequestID()
}
