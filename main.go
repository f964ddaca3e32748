package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rook-computer/panelcore/internal/app"
	"github.com/rook-computer/panelcore/internal/buttons"
	"github.com/rook-computer/panelcore/internal/config"
	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/state"
	"github.com/rook-computer/panelcore/internal/system"
	"github.com/rook-computer/panelcore/internal/touch"
	"github.com/rook-computer/panelcore/internal/web"
)

var version = "dev"

func main() {
	fmt.Println("panelcore starting", version)

	defaults, err := web.DefaultServerConfigFromEnv(":80")
	if err != nil {
		fmt.Println("server config error:", err)
		os.Exit(2)
	}

	// Flags
	debug := flag.Bool("debug", false, "enable debug logging to ./panelcore-debug.log")
	stdioLog := flag.String("stdio-log", "", "redirect stdout+stderr (including panics) to this file; also configurable via PANELCORE_STDIO_LOG")
	configPath := flag.String("config", config.DefaultPath, "device config file")
	listenAddr := flag.String("listen", defaults.ListenAddr, "http listen address; also configurable via "+web.EnvListenAddr)
	devMode := flag.Bool("dev", defaults.DevMode, "enable dev mode (permissive CORS); also configurable via "+web.EnvDevMode)
	staticDir := flag.String("static-dir", defaults.StaticDir, "serve static UI from this directory instead of the embedded one; also configurable via "+web.EnvStaticDir)
	console := flag.Bool("console", true, "switch the VT to graphics mode while running")
	var hw hardwareFlags
	hw.register(flag.CommandLine)
	flag.Parse()

	// Best-effort: redirect all stdout/stderr output (including panic stack traces)
	// to a file so crashes are diagnosable even when the console is left in graphics mode.
	logPath := *stdioLog
	if logPath == "" {
		logPath = os.Getenv("PANELCORE_STDIO_LOG")
	}
	if logPath != "" {
		if err := redirectStdIO(logPath, "panelcore "+version); err != nil {
			fmt.Println("stdio log redirect error:", err)
		}
	}

	var logger logging.Logger = logging.NoopLogger{}
	if *debug {
		f, err := os.OpenFile("./panelcore-debug.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			defer f.Close()
			logger = logging.NewFileLogger(f)
			logger.Infof("main", "debug logging enabled")
		} else {
			fmt.Println("debug log open error:", err)
		}
	}

	cfgStore, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(2)
	}
	if _, err := cfgStore.Update(func(c *config.Config) {
		if envErr := c.ApplyEnv(os.Getenv); envErr != nil {
			logger.Errorf("main", "env overrides: %v", envErr)
		}
	}); err != nil {
		fmt.Println("config error:", err)
		os.Exit(2)
	}
	cfg := cfgStore.Snapshot()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, closeDrv, err := hw.openDriver(logger)
	if err != nil {
		fmt.Println("display driver error:", err)
		os.Exit(1)
	}
	defer closeDrv()

	touchPath := hw.touchDevice
	if touchPath == "" {
		touchPath = cfg.Touch.Device
	}
	var touchDev touch.Device
	if touchPath != "" {
		// The active size is filled in once the engine exists.
		touchDev = touch.NewEvdev(touchPath, 0, 0, calibrationFrom(cfg.Touch), logger)
	}

	a, err := app.New(app.Options{
		Driver:     drv,
		Config:     cfgStore,
		State:      state.NewStore(version),
		Touch:      touchDev,
		Buttons:    buttons.NewEvdev([]string{touchPath}, logger),
		NetInfo:    system.InterfaceNetInfo{Preferred: []string{"wlan", "eth", "usb"}},
		Logger:     logger,
		ListenAddr: *listenAddr,
		Console:    *console && hw.driver == "fb",
	})
	if err != nil {
		fmt.Println("app error:", err)
		os.Exit(1)
	}

	server := web.NewHTTPServer(web.ServerConfig{ListenAddr: *listenAddr, DevMode: *devMode}, a.APIDeps(), logger)
	server.StaticDir = *staticDir
	a.Web = server

	if err := a.Start(ctx); err != nil {
		fmt.Println("app error:", err)
		os.Exit(1)
	}
}

func calibrationFrom(t config.Touch) touch.Calibration {
	return touch.Calibration{
		XMin: t.XMin, XMax: t.XMax,
		YMin: t.YMin, YMax: t.YMax,
		SwapXY: t.SwapXY, InvertX: t.InvertX, InvertY: t.InvertY,
	}
}
