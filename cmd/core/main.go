// The core binary is the comp-gate daemon: it enumerates connected
// USB/HID devices, tracks hotplug events, enforces the whitelist
// policy and serves the IO API to external tools.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/xfajk/comp-gate/internal/config"
	"github.com/xfajk/comp-gate/internal/device"
	"github.com/xfajk/comp-gate/internal/ioapi"
	"github.com/xfajk/comp-gate/internal/secretstore"
	"github.com/xfajk/comp-gate/internal/sysutil"
	"github.com/xfajk/comp-gate/internal/tracker"
	"github.com/xfajk/comp-gate/internal/watcher"
	"github.com/xfajk/comp-gate/internal/whitelist"
)

func main() {
	configPath := flag.String("config", "", "path to the daemon config file")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)

	sysutil.InitLogger(cfg.LogLevel)
	defer sysutil.Log.Sync()

	if cfgErr != nil {
		sysutil.Log.Fatal("Config load failed", zap.Error(cfgErr))
	}

	// Toggling device state through sysfs needs root.
	if runtime.GOOS == "linux" && os.Geteuid() != 0 {
		sysutil.LogSugar.Fatal("Must run as root (required for sysfs device control).")
	}

	sysutil.Log.Info("comp-gate core starting")

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		sysutil.Log.Fatal("IO API listener failed", zap.Error(err))
	}
	if err := ioapi.WriteConnectionFile(cfg.ConnectionFile, listener.Addr().String()); err != nil {
		sysutil.Log.Fatal("Connection file write failed", zap.Error(err))
	}
	sysutil.LogSugar.Infof("IO API on address: %s", listener.Addr())

	store, err := secretstore.Open(cfg.SecretStore.Path)
	if err != nil {
		sysutil.Log.Fatal("Secret store init failed", zap.Error(err))
	}
	defer store.Close()

	// Startup enumeration failures are fatal; the same failures during
	// steady-state are logged and survived by the event loop.
	registry := device.NewRegistry()
	trk, err := tracker.Load(registry, []device.Class{device.ClassUSB, device.ClassHID}, cfg.HubDrivers)
	if err != nil {
		sysutil.Log.Fatal("Device enumeration failed", zap.Error(err))
	}
	defer trk.Close()
	sysutil.LogSugar.Infof("tracking %d devices", trk.Len())

	wl := whitelist.New(store, cfg.SecretStore.Service, cfg.SecretStore.Account)
	if err := wl.Seed(trk); err != nil {
		sysutil.Log.Fatal("Whitelist init failed", zap.Error(err))
	}
	if cfg.Policy.EnforceOnStart {
		if err := wl.Apply(trk, cfg.FailurePolicy()); err != nil {
			if cfg.FailurePolicy() == whitelist.AbortOnFailure {
				sysutil.Log.Fatal("Whitelist enforcement failed", zap.Error(err))
			}
			sysutil.Log.Error("Whitelist enforcement incomplete", zap.Error(err))
		}
	}

	devWatcher := watcher.New()
	if err := devWatcher.Start(); err != nil {
		sysutil.Log.Fatal("Watcher init failed", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		devWatcher.Stop()
	}()

	srv := ioapi.NewServer(listener, registry, trk, wl, devWatcher, cfg.ConnectionLogLimit)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sysutil.Log.Fatal("Event loop failed", zap.Error(err))
	}
	sysutil.Log.Info("Shutting down...")
}
