package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"sync"

	"github.com/rook-computer/panelcore/internal/app"
	"github.com/rook-computer/panelcore/internal/buttons"
	"github.com/rook-computer/panelcore/internal/config"
	"github.com/rook-computer/panelcore/internal/driver"
	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/state"
	"github.com/rook-computer/panelcore/internal/system"
	"github.com/rook-computer/panelcore/internal/touch"
	"github.com/rook-computer/panelcore/internal/web"
)

var errSimInit = errors.New("simulated panel init failure")

type SimFaults struct {
	AllocFail bool `json:"allocFail"`
	InitFail  bool `json:"initFail"`
}

type SimPanel struct {
	Width  int
	Height int
	Direct bool
}

// simInstance is one run of the app against a fresh memory panel.
type simInstance struct {
	app     *app.App
	panel   *driver.Memory
	touch   *touch.Memory
	handler http.Handler
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// SimControl owns the simulated app. Faults take effect on the next Restart,
// since allocation and panel init only happen at startup.
type SimControl struct {
	StaticDir string
	DevMode   bool

	processCtx context.Context
	panel      SimPanel
	logger     logging.Logger

	mu      sync.Mutex
	faults  SimFaults
	current *simInstance
}

func NewSimControl(processCtx context.Context, panel SimPanel, logger logging.Logger) *SimControl {
	if processCtx == nil {
		processCtx = context.Background()
	}
	return &SimControl{processCtx: processCtx, panel: panel, logger: logging.OrNoop(logger)}
}

func (c *SimControl) Faults() SimFaults {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faults
}

func (c *SimControl) SetFaults(v SimFaults) {
	c.mu.Lock()
	c.faults = v
	c.mu.Unlock()
}

// Restart stops the running app, if any, and starts a new one with the
// current faults.
func (c *SimControl) Restart() error {
	c.Stop()

	faults := c.Faults()
	mode := driver.Buffered
	if c.panel.Direct {
		mode = driver.Direct
	}
	panel := driver.NewMemory(c.panel.Width, c.panel.Height, mode)
	if faults.InitFail {
		panel.InitErr = errSimInit
	}
	touchDev := touch.NewMemory()

	opts := app.Options{
		Driver:     panel,
		Config:     config.NewStore("", config.Default()),
		State:      state.NewStore("sim"),
		Touch:      touchDev,
		Buttons:    buttons.NewNoopButtons(),
		NetInfo:    system.InterfaceNetInfo{Preferred: []string{"eth", "wlan", "en"}},
		Logger:     c.logger,
		ListenAddr: ":8080",
	}
	if faults.AllocFail {
		opts.Alloc = func(int) []uint16 { return nil }
	}
	a, err := app.New(opts)
	if err != nil {
		return err
	}

	server := web.NewHTTPServer(web.ServerConfig{DevMode: c.DevMode}, a.APIDeps(), c.logger)
	server.StaticDir = c.StaticDir
	server.Extra = c.registerSimEndpoints

	ctx, cancel := context.WithCancel(c.processCtx)
	inst := &simInstance{
		app:     a,
		panel:   panel,
		touch:   touchDev,
		handler: server.Handler(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(inst.done)
		if err := a.Start(ctx); err != nil {
			c.logger.Errorf("sim", "app stopped: %v", err)
			c.mu.Lock()
			inst.err = err
			c.mu.Unlock()
		}
	}()

	c.mu.Lock()
	c.current = inst
	c.mu.Unlock()
	return nil
}

// Stop cancels the running app and waits for it to exit.
func (c *SimControl) Stop() {
	c.mu.Lock()
	inst := c.current
	c.current = nil
	c.mu.Unlock()
	if inst == nil {
		return
	}
	inst.cancel()
	<-inst.done
}

func (c *SimControl) instance() *simInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *SimControl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inst := c.instance()
	if inst == nil {
		// Keep /sim/* reachable so a failed start can be fixed and restarted.
		mux := http.NewServeMux()
		c.registerSimEndpoints(mux)
		mux.ServeHTTP(w, r)
		return
	}
	inst.handler.ServeHTTP(w, r)
}

type simTouch struct {
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Pressed bool `json:"pressed"`
}

type simStatus struct {
	Running bool      `json:"running"`
	Phase   string    `json:"phase,omitempty"`
	Screen  string    `json:"screen,omitempty"`
	Error   string    `json:"error,omitempty"`
	Faults  SimFaults `json:"faults"`
	Stats   any       `json:"panel,omitempty"`
}

func (c *SimControl) status() simStatus {
	st := simStatus{Faults: c.Faults()}
	inst := c.instance()
	if inst == nil {
		return st
	}
	c.mu.Lock()
	if inst.err != nil {
		st.Error = inst.err.Error()
	}
	c.mu.Unlock()
	select {
	case <-inst.done:
	default:
		st.Running = true
	}
	snap := inst.app.Store.Snapshot()
	st.Phase = snap.Phase.String()
	if snap.LastError != "" && st.Error == "" {
		st.Error = snap.LastError
	}
	st.Screen = inst.app.Display.CurrentScreenID()
	st.Stats = inst.panel.Stats()
	return st
}

func (c *SimControl) registerSimEndpoints(mux *http.ServeMux) {
	mux.HandleFunc("/sim/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeSimError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeSimJSON(w, http.StatusOK, c.status())
	})

	mux.HandleFunc("/sim/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeSimError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		c.SetFaults(SimFaults{})
		c.restartAsync(w)
	})

	mux.HandleFunc("/sim/restart", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeSimError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		c.restartAsync(w)
	})

	mux.HandleFunc("/sim/touch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeSimError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		inst := c.instance()
		if inst == nil {
			writeSimError(w, http.StatusServiceUnavailable, "simulator not running")
			return
		}
		var req simTouch
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeSimError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Pressed {
			inst.touch.Press(req.X, req.Y)
		} else {
			inst.touch.Release()
		}
		writeSimJSON(w, http.StatusOK, req)
	})

	mux.HandleFunc("/sim/frame", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeSimError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		inst := c.instance()
		if inst == nil {
			writeSimError(w, http.StatusServiceUnavailable, "simulator not running")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, inst.panel.Snapshot()); err != nil {
			c.logger.Errorf("sim", "frame encode: %v", err)
		}
	})

	mux.HandleFunc("/sim/faults", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeSimJSON(w, http.StatusOK, c.Faults())
		case http.MethodPost:
			var patch struct {
				AllocFail *bool `json:"allocFail"`
				InitFail  *bool `json:"initFail"`
			}
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				writeSimError(w, http.StatusBadRequest, "invalid json")
				return
			}
			current := c.Faults()
			if patch.AllocFail != nil {
				current.AllocFail = *patch.AllocFail
			}
			if patch.InitFail != nil {
				current.InitFail = *patch.InitFail
			}
			c.SetFaults(current)
			writeSimJSON(w, http.StatusOK, current)
		default:
			writeSimError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

// restartAsync replies first: the restart tears down the handler serving
// this request.
func (c *SimControl) restartAsync(w http.ResponseWriter) {
	writeSimJSON(w, http.StatusAccepted, map[string]any{"ok": true, "faults": c.Faults()})
	go func() {
		if err := c.Restart(); err != nil {
			c.logger.Errorf("sim", "restart: %v", fmt.Errorf("sim: %w", err))
		}
	}()
}

func writeSimJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSimError(w http.ResponseWriter, status int, message string) {
	writeSimJSON(w, status, map[string]any{"error": message})
}
