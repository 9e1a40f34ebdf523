package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	c "lautenbacher.net/gotouch/config"
	"lautenbacher.net/gotouch/logging"
	pl "lautenbacher.net/gotouch/platform"
	u "lautenbacher.net/gotouch/util"
)

const webShutdownTimeout = 2 * time.Second

type App struct {
	ossignal   chan os.Signal
	configFile string
	realHW     bool
	showTouch  bool

	config      *c.Config
	platform    pl.Platform
	newPlatform func(conf *c.Config) pl.Platform
	latest      *u.AtomicEvent[*u.TouchEvent]
	server      *http.Server
	watcher     *fsnotify.Watcher
	stopsignal  chan struct{}
	shutdownWg  sync.WaitGroup
}

func NewApp(ossignal chan os.Signal) *App {
	app := &App{
		ossignal:   ossignal,
		configFile: c.CONFILE,
		latest:     u.NewAtomicEvent[*u.TouchEvent](),
	}
	app.newPlatform = app.defaultPlatform
	return app
}

func main() {
	configFile := flag.String("config", c.CONFILE, "Config file to use")
	realp := flag.Bool("real", false, "Run on a Raspberry Pi with a real STMPE610 attached")
	showTouch := flag.Bool("show-touch", false, "Show real touch values in a TUI viewer (requires -real)")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(ossignal)
	app.configFile = *configFile
	app.realHW = *realp
	app.showTouch = *showTouch

	if err := app.initialise(); err != nil {
		slog.Error("Failed to start", "error", err)
		logging.Close()
		os.Exit(1)
	}

	for sig := range ossignal {
		if sig == syscall.SIGHUP {
			slog.Info("Reloading configuration...")
			app.shutdown()
			if err := app.initialise(); err != nil {
				slog.Error("Failed to restart", "error", err)
				logging.Close()
				os.Exit(1)
			}
			continue
		}
		slog.Info("Received signal, shutting down...", "signal", sig)
		app.shutdown()
		logging.Close()
		os.Exit(0)
	}
}

func (a *App) defaultPlatform(conf *c.Config) pl.Platform {
	if !conf.RealHW {
		return pl.NewTUIPlatform(conf, a.ossignal)
	}
	rpi := pl.NewRaspberryPiPlatform(conf)
	if conf.ShowTouch {
		rpi.SetTouchViewer(pl.NewTouchViewer(a.ossignal))
	}
	return rpi
}

// initialise reads the config and brings up logging, the platform, the
// event loop, the optional web server and the config watcher.
func (a *App) initialise() error {
	conf, err := c.ReadConfig(a.configFile)
	if err != nil {
		return err
	}
	conf.RealHW = a.realHW
	conf.ShowTouch = a.showTouch && a.realHW
	a.config = conf

	// The TUI and the touch viewer own the terminal, so their log lines are
	// held until a log pane takes them.
	logcfg, buffer := conf.Logging.TUI, true
	if conf.RealHW {
		logcfg, buffer = conf.Logging.HW, conf.ShowTouch
	}
	if err := logging.Init(buffer, logcfg); err != nil {
		return err
	}
	slog.Info("Starting gotouch", "config", conf.ConfigFile, "real", conf.RealHW,
		"interval", conf.Polling.Interval, "minPressure", conf.Polling.MinPressure)

	a.platform = a.newPlatform(conf)
	if err := a.platform.Start(); err != nil {
		return err
	}
	<-a.platform.Ready()

	a.stopsignal = make(chan struct{})
	a.shutdownWg.Add(1)
	go a.eventLoop()

	if conf.Web.Enabled {
		a.startWebServer(conf)
	}

	if err := a.watchConfig(conf.ConfigFile); err != nil {
		slog.Warn("Config file is not watched", "error", err)
	}
	return nil
}

func (a *App) eventLoop() {
	defer a.shutdownWg.Done()
	events := a.platform.GetTouchEvents()
	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending event loop go-routine...")
			return
		case ev := <-events:
			a.latest.Send(ev)
			if ev.Pressed {
				slog.Info("Touch", "x", ev.Point.X, "y", ev.Point.Y, "z", ev.Point.Z)
			} else {
				slog.Info("Release", "x", ev.Point.X, "y", ev.Point.Y)
			}
		}
	}
}

func (a *App) startWebServer(conf *c.Config) {
	mux := http.NewServeMux()
	mux.Handle("/api/config", c.ConfigHandler(conf.ConfigFile))
	mux.Handle("/api/touch", c.TouchHandler(a.latest))
	a.server = &http.Server{Addr: conf.Web.Address, Handler: mux}

	server := a.server
	go func() {
		slog.Info("Starting web server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web server failed", "error", err)
		}
	}()
}

// watchConfig turns writes to cfile into SIGHUP. The directory is watched,
// since editors often replace the file instead of writing it.
func (a *App) watchConfig(cfile string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(cfile)); err != nil {
		watcher.Close()
		return err
	}
	a.watcher = watcher

	target := filepath.Clean(cfile)
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				slog.Info("Config file changed", "file", ev.Name, "op", ev.Op)
				select {
				case a.ossignal <- syscall.SIGHUP:
				default:
					// reload already pending
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (a *App) shutdown() {
	if a.watcher != nil {
		a.watcher.Close()
		a.watcher = nil
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), webShutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("Error stopping web server", "error", err)
		}
		cancel()
		a.server = nil
	}
	if a.stopsignal != nil {
		close(a.stopsignal)
	}
	if a.platform != nil {
		a.platform.Stop()
	}
	a.shutdownWg.Wait()
	a.stopsignal = nil
	a.platform = nil
}
