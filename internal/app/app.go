// Package app assembles the sync engine from its services and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"panelsync/internal/action"
	"panelsync/internal/charts"
	"panelsync/internal/chat"
	"panelsync/internal/config"
	"panelsync/internal/eventbus"
	"panelsync/internal/fragment"
	"panelsync/internal/httpx"
	"panelsync/internal/notify"
	"panelsync/internal/observe"
	"panelsync/internal/page"
	"panelsync/internal/runtime/supervisor"
	"panelsync/internal/storage"
	logx "panelsync/pkg/logx"
)

const defaultAuditRetain = 720 * time.Hour // 30 days

type App struct {
	cfgMgr *config.Manager
	host   Host

	logSvc *logx.Service
	log    logx.Logger

	bus    eventbus.Bus
	sup    *supervisor.Supervisor
	client *httpx.Client
	toasts *notify.Service
	frags  *fragment.Engine
	chatS  *chat.Session
	chartS *charts.Sync
	acts   *action.Engine
	store  storage.Store
	status *observe.Server
	cronSv *cron.Cron

	cfgCh chan *config.Config
}

// New loads the config and prepares (but does not start) the app.
func New(cfgPath string, host Host) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	mgr.SetLogger(log)

	return &App{
		cfgMgr: mgr,
		host:   host,
		logSvc: logSvc,
		log:    log,
		bus:    eventbus.New(),
		toasts: notify.New(log),
	}, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: true,
	}
	if cfg.Logging.Console != nil {
		lc.Console = *cfg.Logging.Console
	}
	lc.File.Enabled = cfg.Logging.File.Enabled
	lc.File.Path = cfg.Logging.File.Path
	return lc
}

// Logger exposes the root logger for the embedding command.
func (a *App) Logger() logx.Logger { return a.log }

// Actions exposes the confirm-action engine to the host.
func (a *App) Actions() *action.Engine { return a.acts }

// Charts exposes the chart sync loop (hosts forward viewport resizes to it).
func (a *App) Charts() *charts.Sync { return a.chartS }

// Fragments exposes the fragment registry.
func (a *App) Fragments() *fragment.Engine { return a.frags }

// Toasts exposes the notifier.
func (a *App) Toasts() *notify.Service { return a.toasts }

// Start wires all services and launches every sync loop.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()
	if cfg == nil {
		return errors.New("config not loaded")
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	client, err := httpx.New(cfg.Panel.BaseURL, cfg.RequestTimeout(), a.log)
	if err != nil {
		return err
	}
	a.client = client

	// Host surface with headless fallbacks.
	nav := a.host.Navigator
	if nav == nil {
		nav = page.FuncNavigator(func(url string) {
			// Full-page navigation in a headless host means this page is
			// done; unload everything.
			a.log.Warn("page navigation requested; unloading", logx.String("url", url))
			a.sup.Cancel()
		})
	}
	confirm := a.host.Confirmer
	if confirm == nil {
		confirm = &declineConfirmer{log: a.log}
	}
	tokens := a.host.Tokens
	if tokens == nil {
		tokens = page.StaticTokenSource("")
	}

	if cfg.Storage != nil {
		busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, a.log)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		a.store = st
	}

	a.frags = fragment.New(client, a.toasts, a.bus, nav, a.sup, a.log,
		fragment.WithLoginPath(cfg.LoginPath()),
	)
	a.acts = action.New(client, a.toasts, tokens, confirm, a.frags, a.store, a.bus, a.log)

	// Register configured fragment regions.
	for _, fc := range cfg.Fragments {
		region := a.host.Regions[fc.ElementID]
		if region == nil {
			region = page.NewMemoryRegion(fc.ElementID, "")
		}
		interval, _ := config.ParseDurationField("fragments.interval", fc.Interval)
		if _, err := a.frags.Register(region, fragment.Spec{URL: fc.URL, Interval: interval}); err != nil {
			return fmt.Errorf("register fragment %q: %w", fc.ElementID, err)
		}
	}

	// Chat loop, when a ticket anchor exists.
	if cfg.Chat != nil {
		view := a.host.ChatView
		if view == nil {
			view = &logChatView{log: a.log.With(logx.Int64("ticket", cfg.Chat.TicketID))}
		}
		opts := []chat.Option{chat.WithLoginPath(cfg.LoginPath()), chat.WithURL(cfg.Chat.URL)}
		if d, err := config.ParseDurationField("chat.interval", cfg.Chat.Interval); err == nil && d > 0 {
			opts = append(opts, chat.WithInterval(d))
		}
		a.chatS = chat.Start(cfg.Chat.TicketID, view, client, nav, a.bus, a.sup, a.log, opts...)
	}

	// Chart loop.
	if cfg.Charts != nil {
		renderer := a.host.ChartRenderer
		if renderer == nil {
			renderer = &logChartRenderer{log: a.log}
		}
		opts := []charts.Option{charts.WithLoginPath(cfg.LoginPath()), charts.WithURL(cfg.Charts.URL), charts.WithDays(cfg.Charts.Days)}
		if d, err := config.ParseDurationField("charts.interval", cfg.Charts.Interval); err == nil && d > 0 {
			opts = append(opts, charts.WithInterval(d))
		}
		a.chartS = charts.Start(renderer, client, nav, a.bus, a.sup, a.log, opts...)
		if a.host.Viewport != nil {
			a.chartS.OnResize(a.host.Viewport.Width())
		}
	}

	// Status server.
	a.status = observe.New(a.log, observe.Sources{
		Fragments:  func() any { return a.frags.Snapshot() },
		Supervisor: func() any { return a.sup.SnapshotNow() },
		Toasts:     func() any { return a.toasts.History(20) },
	})
	a.status.Watch(a.sup.Context(), a.bus)
	a.status.Apply(ctx, observe.Config{
		Enabled: cfg.Status.Enabled,
		Addr:    cfg.Status.Addr,
		Pprof:   cfg.Status.Pprof,
	})

	a.startMaintenance(cfg)

	// Config hot reload: re-apply logging and the status server. Fragment and
	// loop topology changes take effect on restart.
	a.cfgCh = a.cfgMgr.Subscribe(2)
	a.sup.Go0("config.watch", func(ctx context.Context) { _ = a.cfgMgr.Watch(ctx) })
	a.sup.Go0("config.apply", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case ncfg, ok := <-a.cfgCh:
				if !ok || ncfg == nil {
					return
				}
				a.logSvc.Apply(loggingConfig(ncfg))
				a.status.Apply(ctx, observe.Config{
					Enabled: ncfg.Status.Enabled,
					Addr:    ncfg.Status.Addr,
					Pprof:   ncfg.Status.Pprof,
				})
				a.log.Info("runtime config applied")
			}
		}
	})

	a.log.Info("panelsync started",
		logx.String("panel", cfg.Panel.BaseURL),
		logx.Int("fragments", len(cfg.Fragments)),
		logx.Bool("chat", cfg.Chat != nil),
		logx.Bool("charts", cfg.Charts != nil),
	)
	return nil
}

// startMaintenance schedules the daily audit prune when storage is enabled.
func (a *App) startMaintenance(cfg *config.Config) {
	if a.store == nil || cfg.Maintenance.Disabled {
		return
	}
	spec := cfg.Maintenance.AuditPrune
	if spec == "" {
		spec = "0 3 * * *"
	}
	retain, err := config.ParseDurationOrDefault("maintenance.retain", cfg.Maintenance.Retain, defaultAuditRetain)
	if err != nil {
		retain = defaultAuditRetain
	}

	loc := time.Local
	if tz := cfg.Maintenance.Timezone; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			a.log.Warn("invalid maintenance timezone; using local", logx.String("tz", tz))
		}
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := a.store.PruneAudit(ctx, time.Now().Add(-retain))
		if err != nil {
			a.log.Warn("audit prune failed", logx.Err(err))
			return
		}
		a.log.Info("audit pruned", logx.Int("dropped", n))
	})
	if err != nil {
		a.log.Warn("invalid maintenance schedule", logx.String("spec", spec), logx.Err(err))
		return
	}
	c.Start()
	a.cronSv = c
	a.log.Debug("maintenance scheduled", logx.String("spec", spec), logx.Duration("retain", retain))
}

// Stop tears everything down: loops first, then servers and the store.
func (a *App) Stop(ctx context.Context) error {
	if a.cronSv != nil {
		<-a.cronSv.Stop().Done()
		a.cronSv = nil
	}
	if a.frags != nil {
		a.frags.StopAll()
	}
	if a.chatS != nil {
		a.chatS.Stop()
	}
	if a.chartS != nil {
		a.chartS.Stop()
	}

	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	if a.status != nil {
		a.status.Stop(ctx)
	}
	if a.cfgCh != nil {
		a.cfgMgr.Unsubscribe(a.cfgCh)
		a.cfgCh = nil
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("panelsync stopped")
	_ = a.logSvc.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
