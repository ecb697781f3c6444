// Command ozcored is the openzap core's process entry point: it loads
// configuration, builds the process-wide registry, configures spans
// from openzap.conf against a loopback driver (standing in for the
// dynamic hardware modules the spec places out of scope), and then
// waits for a shutdown signal. Structure mirrors flowpbx's
// cmd/flowpbx/main.go: config.Load, structured logging, a cancellable
// application context, and signal-driven graceful shutdown.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/openzap/openzap/internal/confio"
	"github.com/openzap/openzap/internal/config"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/loopback"
	"github.com/openzap/openzap/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting ozcored", "conf_dir", cfg.ConfDir, "log_level", cfg.LogLevel)

	reg := registry.New(nil, logger)

	modulesPath := filepath.Join(cfg.ConfDir, "modules.conf")
	mods, err := confio.LoadModules(modulesPath)
	if err != nil {
		slog.Warn("no modules.conf found, skipping module registration", "path", modulesPath, "error", err)
	}
	for _, name := range mods {
		reg.RegisterModule(name, name)
	}

	spanCfgs, err := loadSpanConfigs(cfg.ConfDir)
	if err != nil {
		slog.Error("failed to load span configuration", "error", err)
		os.Exit(1)
	}

	toneMapPath := filepath.Join(cfg.ConfDir, "tones.conf")
	toneMap, err := confio.LoadTones(toneMapPath, "default")
	if err != nil {
		slog.Warn("no default tone map loaded, using built-in DIAL/RING/BUSY/ATTN", "error", err)
	} else {
		slog.Info("loaded default tone map", "path", toneMapPath)
	}

	for i, sc := range spanCfgs {
		trunk := sc.TrunkType
		if trunk == "" {
			trunk = "loopback"
		}
		// Each span gets its own driver instance and registration name:
		// the spec's dynamic module loader would resolve one driver per
		// trunk type and multiplex spans onto it, but the loopback
		// stand-in keeps per-span state, so per-span instances avoid
		// one span's traffic leaking into another's ring buffer.
		driverName := fmt.Sprintf("%s#%d", trunk, i)
		d := loopback.New(driverName)
		if err := reg.RegisterDriver(d); err != nil {
			slog.Error("failed to register driver", "driver", driverName, "error", err)
			os.Exit(1)
		}

		s, err := reg.CreateSpan(driverName, sc.Name)
		if err != nil {
			slog.Error("failed to create span", "name", sc.Name, "error", err)
			os.Exit(1)
		}
		if err := reg.ConfigureSpan(s.ID, sc); err != nil {
			slog.Error("failed to configure span", "span", s.ID, "error", err)
			os.Exit(1)
		}
		if toneMap != nil {
			s.SetToneMap(toneMap)
		}
		if err := driver.InvokeSpanStart(d, s.ID); err != nil {
			slog.Warn("span start not supported by driver", "span", s.ID, "driver", driverName)
		}
		slog.Info("span configured", "id", s.ID, "name", s.Name, "channels", s.ChannelCount())
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received shutdown signal", "signal", sig.String())

	slog.Info("shutting down registry")
	reg.Shutdown()
}

// loadSpanConfigs reads openzap.conf from confDir. A missing file is
// not fatal: the core still starts with no spans configured, letting
// an operator attach spans later through whatever management surface
// wraps this process.
func loadSpanConfigs(confDir string) ([]driver.SpanConfig, error) {
	path := filepath.Join(confDir, "openzap.conf")
	spans, err := confio.LoadSpans(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("no openzap.conf found, starting with zero spans", "path", path)
			return nil, nil
		}
		return nil, err
	}
	return spans, nil
}
