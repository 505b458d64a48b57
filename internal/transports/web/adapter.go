package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"sysconsole/internal/core"
	"sysconsole/internal/storage"
	"sysconsole/internal/transports/common"
)

const component = "Web"

// TokenEntry описывает web bearer-токен; хранится только sha256.
type TokenEntry struct {
	ID          string
	TokenSHA256 string
	Subject     string
	Roles       []string
	Enabled     bool
}

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr               string
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	ShutdownTimeout          time.Duration
	RequestTimeout           time.Duration
	MaxRequestBody           int64
	AllowLegacySubjectHeader bool
	Tokens                   []TokenEntry
	CORSAllowedOrigins       []string
	CORSAllowedMethods       []string
	CORSAllowedHeaders       []string
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Minute
	}
	// Ответ с выводом долгого действия должен успеть записаться.
	if c.WriteTimeout <= c.RequestTimeout {
		c.WriteTimeout = c.RequestTimeout + 10*time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxRequestBody <= 0 {
		c.MaxRequestBody = 1 << 20
	}
	if len(c.CORSAllowedMethods) == 0 {
		c.CORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORSAllowedHeaders) == 0 {
		c.CORSAllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	return c
}

// Adapter реализует web-форму поверх net/http: каждое действие выполняется
// в отдельной buffered-сессии, клиент получает накопленный вывод.
type Adapter struct {
	service *common.Service
	store   storage.Store
	cfg     Config
	tokens  tokenTable
	cors    corsPolicy

	mu     sync.Mutex
	server *http.Server
}

// NewAdapter создает web transport. Источник service должен быть "web".
func NewAdapter(service *common.Service, store storage.Store, cfg Config) *Adapter {
	cfg = cfg.withDefaults()
	return &Adapter{
		service: service,
		store:   store,
		cfg:     cfg,
		tokens:  newTokenTable(cfg.Tokens),
		cors:    newCORSPolicy(cfg),
	}
}

func (a *Adapter) Name() string { return "web" }

// Start занимает адрес и обслуживает запросы в фоне до отмены ctx.
// Ошибка привязки к адресу возвращается сразу.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return errors.New("web transport already started")
	}

	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:      a.routes(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}
	a.server = srv

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("web transport stopped", "addr", a.cfg.ListenAddr, "err", err)
			a.writeAudit(context.Background(), "", "Serve", "error: "+err.Error(), core.StatusError, "")
		}
	}()
	slog.Info("web transport listening", "addr", ln.Addr().String())
	return nil
}

// Stop завершает HTTP server.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// route защищенный маршрут. guard выбирает действие для authorizer;
// nil означает, что проверку делает сам обработчик (execute).
type route struct {
	pattern   string
	handler   http.HandlerFunc
	guard     func(*http.Request) (core.Action, bool)
	limitBody bool
}

func fixed(module, command string) func(*http.Request) (core.Action, bool) {
	action := core.Action{Module: module, Command: command}
	return func(*http.Request) (core.Action, bool) { return action, true }
}

// metricAction требует права read_metrics на модуль; без module проверять нечего.
func metricAction(r *http.Request) (core.Action, bool) {
	module := r.URL.Query().Get("module")
	if module == "" {
		return core.Action{}, false
	}
	return core.Action{Module: module, Command: "read_metrics"}, true
}

func (a *Adapter) routes() http.Handler {
	table := []route{
		{pattern: "GET /v1/me", handler: a.handleMe, guard: fixed("web", "me")},
		{pattern: "GET /v1/modules", handler: a.handleModules, guard: fixed("web", "modules")},
		{pattern: "POST /v1/actions/execute", handler: a.handleExecute, limitBody: true},
		{pattern: "GET /v1/metrics/latest", handler: a.handleLatestMetric, guard: metricAction},
		{pattern: "GET /v1/log", handler: a.handleLog, guard: fixed("log", "read")},
		// Неизвестные пути под /v1/ отвечают 404 только аутентифицированным клиентам.
		{pattern: "GET /v1/", handler: http.NotFound},
		{pattern: "POST /v1/", handler: http.NotFound},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", a.handleHealth)
	for _, rt := range table {
		mws := []middleware{a.withTimeout, a.authenticate}
		if rt.guard != nil {
			mws = append(mws, a.authorizeWith(rt.guard))
		}
		if rt.limitBody {
			mws = append(mws, a.limitBody)
		}
		mux.Handle(rt.pattern, chain(rt.handler, mws...))
	}
	return chain(mux, withRequestID, a.cors.middleware)
}
