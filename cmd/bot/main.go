package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "github.com/vicky5124/robo-arc-sub000/pkg/logx"

	"github.com/vicky5124/robo-arc-sub000/internal/app"
	"github.com/vicky5124/robo-arc-sub000/internal/config"
	"github.com/vicky5124/robo-arc-sub000/internal/platform"
)

const defaultWebhookBase = "https://discord.com/api/webhooks"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config %q: %w", cfgPath, err)
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File != "", Path: cfg.Logging.File},
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()
	mgr.SetLogger(log)

	// Standalone, the daemon runs webhook-only: channel send/edit, bulk
	// delete, and the livestream API need the host's platform session.
	a, err := app.New(cfg, app.Collaborators{
		Webhooks: platform.NewWebhookClient(defaultWebhookBase),
	}, log)
	if err != nil {
		return err
	}

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer a.Stop()

	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	reloads := mgr.Subscribe(1)
	defer mgr.Unsubscribe(reloads)
	go func() {
		for next := range reloads {
			if err := a.ApplyConfig(next); err != nil {
				log.Warn("reloaded config not applied", logx.Err(err))
			}
		}
	}()

	notifyReady(log)
	go watchdog(ctx, log)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func notifyReady(log logx.Logger) {
	ok, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Debug("sd_notify failed", logx.Err(err))
		return
	}
	if ok {
		log.Debug("sd_notify: ready")
	}
}

// watchdog pings systemd at half the configured watchdog interval.
func watchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Debug("sd_notify watchdog failed", logx.Err(err))
			}
		}
	}
}
