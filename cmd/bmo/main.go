package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"bmo/internal/bmo"
	"bmo/internal/config"
	appLog "bmo/internal/log"
	"bmo/internal/preview"
	"bmo/internal/schedule"
	"bmo/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	headless   bool
	window     bool
	once       bool
	dump       string
	diag       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("bmo starting", "version", version)

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.headless || flags.window {
		conf.Display.Headless = true
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"headless", conf.Display.Headless,
		"spi_port", conf.Display.SPIPort,
		"rotation", conf.Display.Rotation,
		"brightness", conf.Display.Brightness,
		"expression", conf.Face.Expression,
		"once", flags.once,
		"window", flags.window,
		"diag", flags.diag,
	)

	if err := run(flags, conf); err != nil {
		appLog.Error("bmo failed", err)
		os.Exit(1)
	}
	appLog.Info("bmo exiting")
}

func run(flags flagConfig, conf *config.Config) error {
	dev, err := bmo.Build(conf)
	if err != nil {
		return err
	}
	if err := dev.BeginDisplay(); err != nil {
		return err
	}
	defer dev.EndDisplay()

	if flags.diag {
		if err := dev.Diagnostics(); err != nil {
			return err
		}
	}
	if flags.dump != "" {
		if err := dumpPreview(dev, flags.dump); err != nil {
			return err
		}
	}
	if flags.once {
		return nil
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	sched, err := schedule.New(conf.Schedule, dev)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	var wg sync.WaitGroup
	if conf.Listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.Serve(ctx, conf, dev); err != nil {
				appLog.Error("HTTP server failed", err)
				cancel()
			}
		}()
	}

	if flags.window {
		// The window owns the main goroutine until it closes.
		if err := preview.Run(ctx, "BMO", 2, dev.Framebuffer); err != nil {
			appLog.Error("preview window failed", err)
		}
		cancel()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func dumpPreview(dev *bmo.Device, path string) error {
	if dev.Framebuffer() == nil {
		return bmo.ErrNoPreview
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dev.WritePreview(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	appLog.Info("preview written", "path", path)
	return f.Close()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/bmo/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.headless, "headless", false, "Use an in-memory panel instead of SPI hardware")
	flag.BoolVar(&cfg.window, "window", false, "Mirror the panel in a desktop window (implies -headless)")
	flag.BoolVar(&cfg.once, "once", false, "Initialize the display, draw the face and exit")
	flag.StringVar(&cfg.dump, "dump", "", "Write a PNG of the screen to this path (headless only)")
	flag.BoolVar(&cfg.diag, "diag", false, "Show the diagnostic screens after start-up")

	flag.Parse()

	return cfg
}
