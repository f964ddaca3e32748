// Package app wires the display, the screen saver, input and the web API
// into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rook-computer/panelcore/internal/buttons"
	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/config"
	"github.com/rook-computer/panelcore/internal/display"
	"github.com/rook-computer/panelcore/internal/driver"
	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/render"
	"github.com/rook-computer/panelcore/internal/saver"
	"github.com/rook-computer/panelcore/internal/screens"
	"github.com/rook-computer/panelcore/internal/state"
	"github.com/rook-computer/panelcore/internal/system"
	"github.com/rook-computer/panelcore/internal/touch"
	"github.com/rook-computer/panelcore/internal/web"
)

const (
	touchRetryPeriod  = 100 * time.Millisecond
	hostPollPeriod    = 5 * time.Second
	testPatternPeriod = 3 * time.Second
)

type Options struct {
	Driver  driver.Driver
	Config  *config.Store
	State   *state.Store
	Touch   touch.Device
	Buttons buttons.Buttons
	NetInfo system.NetInfo
	Clock   clock.Clock
	Logger  logging.Logger

	// Alloc overrides the engine's draw buffer allocation.
	Alloc render.AllocFunc
	// ListenAddr is only used to build the URL shown on the info screen.
	ListenAddr string
	// Console switches the VT to graphics mode while running.
	Console bool
}

type App struct {
	Store   *state.Store
	Config  *config.Store
	Display *display.Coordinator
	Saver   *saver.Manager
	Gate    *touch.Gate
	Touch   *touch.Manager
	Buttons buttons.Buttons
	Web     web.Server
	Logger  logging.Logger

	opts  Options
	clock clock.Clock

	splash *screens.Splash
	viewer *screens.ImageViewer
	direct *screens.DirectImage

	hostMu sync.RWMutex
	host   system.HostStats

	exitOnce atomic.Bool
	exitCh   chan error
}

func New(opts Options) (*App, error) {
	if opts.Driver == nil {
		return nil, errors.New("app: no display driver")
	}
	if opts.Config == nil {
		opts.Config = config.NewStore("", config.Default())
	}
	if opts.State == nil {
		opts.State = state.NewStore("dev")
	}
	if opts.Buttons == nil {
		opts.Buttons = buttons.NewNoopButtons()
	}
	if opts.NetInfo == nil {
		opts.NetInfo = system.NoopNetInfo{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	logger := logging.OrNoop(opts.Logger)

	cfg := opts.Config.Snapshot()
	rot, err := driver.ParseRotation(cfg.Display.Rotation)
	if err != nil {
		return nil, err
	}
	coord := display.New(opts.Driver, display.Options{
		MinDelay:      time.Duration(cfg.Display.MinDelayMillis) * time.Millisecond,
		MaxDelay:      time.Duration(cfg.Display.MaxDelayMillis) * time.Millisecond,
		BufferLines:   cfg.Display.BufferLines,
		Rotation:      rot,
		Alloc:         opts.Alloc,
		Theme:         render.ThemeByName(cfg.Display.Theme),
		Clock:         opts.Clock,
		Logger:        logger,
		DefaultScreen: cfg.Display.DefaultScreen,
	})

	gate := touch.NewGate(opts.Clock)
	a := &App{
		Store:   opts.State,
		Config:  opts.Config,
		Display: coord,
		Gate:    gate,
		Buttons: opts.Buttons,
		Web:     web.NoopServer{},
		Logger:  logger,
		opts:    opts,
		clock:   opts.Clock,
		exitCh:  make(chan error, 1),
	}
	a.Touch = touch.NewManager(opts.Touch, gate, nil, logger)

	sv := saver.Options{
		Config:    opts.Config,
		Backlight: coord.Driver(),
		Gate:      gate,
		Clock:     opts.Clock,
		Logger:    logger,
	}
	if opts.Touch != nil {
		sv.Touch = a.Touch
	}
	a.Saver = saver.New(sv)
	a.Touch.SetSink(a.Saver)
	return a, nil
}

// Exit requests the app to stop running.
func (app *App) Exit(err error) {
	if !app.exitOnce.CompareAndSwap(false, true) {
		return
	}
	select {
	case app.exitCh <- err:
	default:
	}
}

// Start brings the device up and blocks until ctx is cancelled or Exit is
// called. Everything it started is stopped before it returns.
func (app *App) Start(ctx context.Context) error {
	if app.opts.Console {
		system.TakeConsole(app.Logger)
		defer system.ReleaseConsole(app.Logger)
	}

	if err := app.Display.Init(); err != nil {
		// The panel keeps running inert; the error stays visible in the API.
		app.Logger.Errorf("app", "display init: %v", err)
		app.Store.Fail(err)
	}
	engine := app.Display.Engine()
	if engine == nil {
		err := errors.New("no render engine")
		app.Store.Fail(err)
		return err
	}
	cfg := app.Config.Snapshot()

	app.splash = screens.NewSplash(engine, cfg.DeviceName)
	app.Display.SetSplash(app.splash)
	app.Display.ShowSplash(ctx)
	app.Display.SetSplashStatus(ctx, "Starting display")

	if err := app.registerScreens(engine); err != nil {
		app.Store.Fail(err)
		return err
	}

	app.Display.SetSplashStatus(ctx, "Starting screen saver")
	app.Saver.Begin()
	app.Display.AddTicker(func(context.Context) { app.Saver.Tick() })

	app.Display.SetSplashStatus(ctx, "Starting input")
	app.Touch.Init(app.Display)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if err := app.Buttons.Start(runCtx); err != nil {
		app.Logger.Errorf("app", "buttons: %v", err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.handleButtons(runCtx)
	}()

	app.Display.SetSplashStatus(ctx, "Starting web server")
	if err := app.Web.Start(runCtx); err != nil {
		app.Logger.Errorf("app", "web server: %v", err)
	}

	app.refreshHost(runCtx)
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.pollHost(runCtx)
	}()
	go func() {
		defer wg.Done()
		app.retryTouch(runCtx)
	}()

	app.Store.SetPhase(state.READY)
	app.Display.RequestShow(cfg.Display.DefaultScreen)
	app.Display.Start(runCtx)

	var err error
	select {
	case <-ctx.Done():
	case err = <-app.exitCh:
	}
	app.Store.SetPhase(state.STOPPING)
	cancel()
	app.Display.Wait()
	wg.Wait()
	app.shutdown()
	return err
}

func (app *App) registerScreens(engine *render.Engine) error {
	info := screens.NewInfo(engine, screens.InfoSourceFunc(app.infoData), app.clock, app.Logger)
	test := screens.NewTest(engine, testPatternPeriod)
	app.viewer = screens.NewImageViewer(engine)
	app.direct = screens.NewDirectImage(app.Display.Driver(), app.clock, app.Logger, app.Display.RequestReturn)

	return errors.Join(
		app.Display.Register(screens.IDInfo, "Info", info),
		app.Display.Register(screens.IDTest, "Test pattern", test),
		app.Display.Register(screens.IDViewer, "Image viewer", app.viewer),
		app.Display.RegisterDirect(screens.IDDirectImage, "Image", app.direct),
	)
}

func (app *App) shutdown() {
	if err := app.Web.Stop(); err != nil {
		app.Logger.Errorf("app", "web stop: %v", err)
	}
	if err := app.Buttons.Stop(); err != nil {
		app.Logger.Errorf("app", "buttons stop: %v", err)
	}
	if err := app.Touch.Close(); err != nil {
		app.Logger.Errorf("app", "touch close: %v", err)
	}
	app.Display.Close()
	app.Logger.Infof("app", "stopped")
}

func (app *App) retryTouch(ctx context.Context) {
	t := time.NewTicker(touchRetryPeriod)
	defer t.Stop()
	for app.Touch.Pending() {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			app.Touch.Loop()
		}
	}
}

func (app *App) handleButtons(ctx context.Context) {
	events := app.Buttons.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			app.handleButton(ev)
		}
	}
}

func (app *App) handleButton(ev buttons.Event) {
	app.Logger.Infof("app", "button %s", ev)
	switch ev {
	case buttons.Next:
		if app.Saver.IsAsleep() {
			app.Saver.NotifyActivity(true)
			return
		}
		app.Display.RequestShow(app.nextScreenID())
		app.Saver.NotifyActivity(true)
	case buttons.Sleep:
		if app.Saver.IsAsleep() {
			app.Saver.Wake()
		} else {
			app.Saver.SleepNow()
		}
	case buttons.Wake:
		app.Saver.Wake()
	case buttons.Exit:
		app.Exit(nil)
	}
}

// nextScreenID cycles through the registry in registration order.
func (app *App) nextScreenID() string {
	list := app.Display.Screens()
	if len(list) == 0 {
		return ""
	}
	cur := app.Display.CurrentScreenID()
	for i, s := range list {
		if s.ID == cur {
			return list[(i+1)%len(list)].ID
		}
	}
	return list[0].ID
}

// ShowImage puts img on the direct image screen for timeout.
func (app *App) ShowImage(ctx context.Context, img image.Image, timeout time.Duration) error {
	if app.direct == nil {
		return errors.New("display not started")
	}
	app.direct.SetImage(img, timeout)
	if !app.Display.ShowDirectImage(ctx, screens.IDDirectImage) {
		return fmt.Errorf("screen %q unavailable", screens.IDDirectImage)
	}
	app.Saver.NotifyActivity(true)
	return nil
}

func (app *App) DismissImage(ctx context.Context) {
	app.Display.ReturnToPrevious(ctx)
}

func (app *App) ShowViewer(img image.Image, caption string) error {
	if app.viewer == nil {
		return errors.New("display not started")
	}
	app.viewer.SetImage(img, caption)
	if !app.Display.RequestShow(screens.IDViewer) {
		return fmt.Errorf("screen %q unavailable", screens.IDViewer)
	}
	app.Saver.NotifyActivity(true)
	return nil
}

// APIDeps is what the HTTP API drives.
func (app *App) APIDeps() web.APIV1Deps {
	return web.APIV1Deps{
		Screens: app.Display,
		Power:   app.Saver,
		Images:  app,
		Config:  app.Config,
		Info:    web.InfoProviderFunc(app.info),
		Logger:  app.Logger,

		// Four screens' worth; larger uploads are downscaled anyway.
		MaxImagePixels: func() int { return 4 * app.Display.ActiveWidth() * app.Display.ActiveHeight() },
	}
}
