package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sysconsole/internal/config"
	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/modules/disk"
	"sysconsole/internal/modules/docker"
	"sysconsole/internal/modules/firewall"
	"sysconsole/internal/modules/network"
	"sysconsole/internal/modules/packages"
	"sysconsole/internal/modules/process"
	"sysconsole/internal/modules/resource"
	"sysconsole/internal/modules/service"
	"sysconsole/internal/modules/users"
	"sysconsole/internal/platform"
	"sysconsole/internal/privilege"
	"sysconsole/internal/storage"
	"sysconsole/internal/storage/sqlite"
	"sysconsole/internal/transports/common"
	"sysconsole/internal/transports/web"
)

// App агрегирует зависимости ядра.
type App struct {
	Config     config.Config
	Registry   *core.Registry
	Exec       executor.Runner
	Store      storage.Store
	Authorizer core.Authorizer
	Limiter    *common.RateLimiter
	Transports *core.TransportManager
	Resources  *resource.Module
}

// Modules возвращает модули консоли в порядке главного меню.
func Modules(p platform.Provider, res *resource.Module) []core.Module {
	return []core.Module{
		users.New(p),
		network.New(p),
		firewall.New(p),
		disk.New(p),
		process.New(p, nil),
		service.New(p),
		packages.New(p),
		docker.New(),
		res,
	}
}

// New строит приложение: исполнитель, реестр модулей, хранилище и транспорты.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	opts := []executor.Option{executor.WithTimeout(time.Duration(cfg.Executor.TimeoutSeconds) * time.Second)}
	if cfg.Executor.UseSudo {
		opts = append(opts, executor.WithElevator(privilege.Elevator()))
	}
	exec := executor.New(opts...)

	res := resource.New(nil)
	r := core.NewRegistry()
	for _, m := range Modules(platform.Current(), res) {
		if err := r.Register(ctx, m); err != nil {
			return nil, fmt.Errorf("register %s module: %w", m.Name(), err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	st, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &App{
		Config:     cfg,
		Registry:   r,
		Exec:       exec,
		Store:      st,
		Authorizer: core.NewAllowlistAuthorizer(cfg.Security.Allowlist).Deny(cfg.Security.DenyActions...),
		Transports: core.NewTransportManager(),
		Resources:  res,
	}
	// rate_limit 0 отключает ограничение.
	if cfg.Security.RateLimit > 0 {
		a.Limiter = common.NewRateLimiter(cfg.Security.RateLimit, time.Duration(cfg.Security.RateWindowSeconds)*time.Second)
	}
	if cfg.Web.Enabled {
		if err := a.Transports.Register(a.webAdapter()); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("register web transport: %w", err)
		}
	}
	return a, nil
}

// Service возвращает общий пайплайн исполнения для транспорта source.
func (a *App) Service(source string) *common.Service {
	return &common.Service{
		Source:      source,
		Registry:    a.Registry,
		Exec:        a.Exec,
		Authorizer:  a.Authorizer,
		RateLimiter: a.Limiter,
		Sink:        a.Store,
	}
}

func (a *App) webAdapter() *web.Adapter {
	cfg := a.Config.Web
	tokens := make([]web.TokenEntry, 0, len(cfg.Tokens))
	for id, token := range cfg.Tokens {
		tokens = append(tokens, web.TokenEntry{
			ID:          id,
			TokenSHA256: token.TokenSHA256,
			Subject:     token.Subject,
			Roles:       token.Roles,
			Enabled:     token.Enabled,
		})
	}
	return web.NewAdapter(a.Service("web"), a.Store, web.Config{
		ListenAddr:               cfg.ListenAddr,
		ReadTimeout:              time.Duration(cfg.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:             time.Duration(cfg.WriteTimeoutMS) * time.Millisecond,
		RequestTimeout:           time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		ShutdownTimeout:          time.Duration(cfg.ShutdownTimeoutS) * time.Second,
		MaxRequestBody:           cfg.MaxBodyBytes,
		AllowLegacySubjectHeader: cfg.AllowLegacySubjectHeader,
		Tokens:                   tokens,
		CORSAllowedOrigins:       cfg.CORSAllowedOrigins,
	})
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Serve запускает транспорты и планировщик до отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Transports.StopAll(stopCtx); err != nil {
			slog.Warn("stop transports", "err", err)
		}
	}()

	if !a.Config.Scheduler.Enabled {
		<-ctx.Done()
		return nil
	}
	sched := core.NewScheduler(time.Duration(a.Config.Scheduler.IntervalSeconds) * time.Second)
	sched.Add("resource-snapshot", a.SnapshotJob)
	if a.Config.SQLite.RetentionDays > 0 {
		sched.Add("prune-log", a.PruneJob)
	}
	if a.Limiter != nil {
		sched.Add("limiter-sweep", func(context.Context) error {
			if n := a.Limiter.Sweep(time.Now()); n > 0 {
				slog.Debug("rate limiter swept", "keys", n)
			}
			return nil
		})
	}
	sched.Start(ctx)
	return nil
}

// SnapshotJob сохраняет снимок ресурсов как метрику.
func (a *App) SnapshotJob(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	snap, err := a.Resources.Collect(runCtx)
	if err != nil {
		slog.Warn("resource snapshot is incomplete", "err", err)
	}
	payload, err := sqlite.MarshalPayload(snap)
	if err != nil {
		return err
	}
	return a.Store.SaveMetric(ctx, storage.MetricRecord{Module: resource.MetricName, Payload: payload, TS: snap.Time})
}

// PruneJob удаляет записи старше срока хранения.
func (a *App) PruneJob(ctx context.Context) error {
	before := time.Now().UTC().AddDate(0, 0, -a.Config.SQLite.RetentionDays)
	n, err := a.Store.Prune(ctx, before)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("action log pruned", "rows", n, "before", before)
	}
	return nil
}
