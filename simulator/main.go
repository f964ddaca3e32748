package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/web"
)

func main() {
	defaults, err := web.DefaultServerConfigFromEnv(":8080")
	if err != nil {
		fmt.Println("server config error:", err)
		os.Exit(2)
	}

	listenAddr := flag.String("listen", defaults.ListenAddr, "http listen address; also configurable via "+web.EnvListenAddr)
	devMode := flag.Bool("dev", defaults.DevMode, "enable dev mode; also configurable via "+web.EnvDevMode)
	staticDir := flag.String("static-dir", defaults.StaticDir, "serve static UI from this directory (optional); when empty, embedded web UI assets are served; also configurable via "+web.EnvStaticDir)
	width := flag.Int("width", 240, "simulated panel width")
	height := flag.Int("height", 320, "simulated panel height")
	direct := flag.Bool("direct", false, "simulate a Direct (unbuffered) panel")
	failAlloc := flag.Bool("fail-alloc", false, "start with draw buffer allocation failing")
	failInit := flag.Bool("fail-init", false, "start with panel init failing")
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Parse()

	var logger logging.Logger = logging.NoopLogger{}
	if *verbose {
		logger = logging.NewFileLogger(os.Stderr)
	}

	processCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	control := NewSimControl(processCtx, SimPanel{Width: *width, Height: *height, Direct: *direct}, logger)
	control.StaticDir = *staticDir
	control.DevMode = *devMode
	control.SetFaults(SimFaults{AllocFail: *failAlloc, InitFail: *failInit})
	if err := control.Restart(); err != nil {
		fmt.Println("simulator start error:", err)
	}

	srv := &http.Server{Addr: *listenAddr, Handler: control, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-processCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Println("panelcore simulator listening on", *listenAddr)
	fmt.Printf("Panel: %dx%d direct=%v\n", *width, *height, *direct)
	fmt.Println("API: http://" + displayAddr(*listenAddr) + "/api/v1/")
	fmt.Println("Frame: http://" + displayAddr(*listenAddr) + "/sim/frame")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Println("server error:", err)
		os.Exit(1)
	}
	control.Stop()
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	if addr == "" {
		return "127.0.0.1:8080"
	}
	return addr
}
