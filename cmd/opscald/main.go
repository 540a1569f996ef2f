package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opscal/internal/config"
	"opscal/internal/fetch"
	"opscal/internal/log"
	"opscal/internal/model"
	"opscal/internal/registry"
	"opscal/internal/sched"
	"opscal/internal/store"
	"opscal/internal/watch"
	"opscal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		log.SetLevel(log.LevelDebug)
	}
	log.Info("opscald starting", "version", "0.2.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		log.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc := resolveLocationOrLocal(conf.Timezone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := openStore(ctx, conf)
	if err != nil {
		log.Error("failed to open store", err, "driver", conf.Store.Driver, "path", conf.Store.Path)
		os.Exit(1)
	}
	defer st.Close()

	reg := registry.New(registry.Options{
		Store:     st,
		Getter:    fetch.NewHTTPGetter(time.Duration(conf.FetchTimeoutSeconds) * time.Second),
		Manual:    store.NewManualRecords(st),
		Deadlines: store.NewDeadlineRecords(st),
		Location:  loc,
	})
	if err := reg.Load(ctx); err != nil {
		log.Error("failed to load registry state", err)
		os.Exit(1)
	}

	for _, feed := range conf.Feeds {
		if feed.URL == "" {
			continue
		}
		if _, err := reg.EnsureFeed(ctx, feed.Name, feed.URL); err != nil {
			log.Error("failed to register feed", err, "name", feed.Name)
		}
	}

	var watcher *watch.Watcher
	if conf.WatchImports {
		watcher, err = watch.New(reg)
		if err != nil {
			log.Error("failed to start file watcher; imports will not auto-refresh", err)
		} else {
			defer watcher.Close()
			// Re-arm watches for file sources restored from the store.
			for _, src := range reg.Sources() {
				if src.Origin == model.OriginImportedFile && src.Path != "" {
					if err := watcher.Add(src.Path, src.ID); err != nil {
						log.Error("failed to watch imported file", err, "path", src.Path)
					}
				}
			}
		}
	}

	reg.SyncAll(ctx)
	if flags.once {
		log.Info("single sync cycle finished, exiting")
		return
	}

	cronSched := sched.NewCron()
	defer cronSched.Stop()
	stopRefresh, err := cronSched.Schedule(conf.RefreshCron, func() {
		reg.SyncAll(context.Background())
	})
	if err != nil {
		log.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	defer stopRefresh()

	var srvWatcher web.FileWatcher
	if watcher != nil {
		srvWatcher = watcher
	}
	server := web.NewServer(web.Options{
		Config:   conf,
		Registry: reg,
		Watcher:  srvWatcher,
		Location: loc,
	})

	httpSrv := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	go func() {
		log.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", err)
	}
	log.Info("opscald exiting")
}

func openStore(ctx context.Context, conf *config.Config) (store.Store, error) {
	switch conf.Store.Driver {
	case "file":
		return store.NewFileStore(conf.Store.Path)
	default:
		return store.OpenSQLite(ctx, conf.Store.Path)
	}
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/opscal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one sync cycle and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}
