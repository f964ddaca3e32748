// Package display owns the panel: the driver, the render engine, the screen
// registry and the render goroutine that ties them together.
//
// Other goroutines never draw. They deposit requests (RequestShow,
// ShowDirectImage, ReturnToPrevious) that the render loop drains under the
// display lock, or take the lock themselves for short synchronous work.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rook-computer/panelcore/internal/clock"
	"github.com/rook-computer/panelcore/internal/driver"
	"github.com/rook-computer/panelcore/internal/logging"
	"github.com/rook-computer/panelcore/internal/render"
)

const (
	DefaultMinDelay = time.Millisecond
	DefaultMaxDelay = 20 * time.Millisecond

	fallbackWidth  = 320
	fallbackHeight = 240
)

type Options struct {
	// Loop delay clamp applied to the engine's suggested delay.
	MinDelay time.Duration
	MaxDelay time.Duration

	BufferLines int
	Rotation    driver.Rotation
	FullRefresh bool
	Alloc       render.AllocFunc
	Theme       render.Theme
	Clock       clock.Clock
	Logger      logging.Logger

	// DefaultScreen is where ReturnToPrevious goes without history.
	DefaultScreen string
}

// ScreenInfo describes a registered screen.
type ScreenInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type entry struct {
	id     string
	label  string
	screen render.Screen
	// direct screens draw to the driver themselves and stay out of history.
	direct bool
}

// Ticker runs inside the render loop with the display lock held, before the
// engine step.
type Ticker func(ctx context.Context)

type Coordinator struct {
	sem chan struct{}
	// task is the RunOnce iteration currently holding sem, if any.
	task atomic.Pointer[renderTask]

	opts   Options
	drv    *driver.Guard
	engine *render.Engine
	clock  clock.Clock
	logger logging.Logger

	// Registration happens before Start; afterwards these are read-only.
	registry []*entry
	byID     map[string]*entry
	directs  map[string]*entry
	splash   *entry

	// Render-goroutine state, guarded by the lock.
	current      *entry
	previous     *entry
	flushPending bool
	tickers      []Ticker

	pending           atomic.Pointer[entry]
	returnRequested   atomic.Bool
	directImageActive atomic.Bool
	published         atomic.Pointer[entry]
	running           atomic.Bool

	perfMu sync.Mutex
	perf   perfCounter

	done chan struct{}
}

// New wraps drv in a driver.Guard. Nothing touches hardware until Init.
func New(drv driver.Driver, opts Options) *Coordinator {
	if opts.MinDelay <= 0 {
		opts.MinDelay = DefaultMinDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	if opts.DefaultScreen == "" {
		opts.DefaultScreen = "info"
	}
	logger := logging.OrNoop(opts.Logger)
	return &Coordinator{
		sem:    make(chan struct{}, 1),
		opts:   opts,
		drv:    driver.NewGuard(drv, logger),
		clock:  opts.Clock,
		logger: logger,
		byID:    make(map[string]*entry),
		directs: make(map[string]*entry),
	}
}

// Init brings up the driver and the engine. Failures are logged and
// returned, but the coordinator stays usable: a dead driver swallows all
// output and a missing draw buffer leaves the render loop idling.
func (c *Coordinator) Init() error {
	c.Lock()
	defer c.Unlock()

	var errs []error
	if err := c.drv.Init(); err != nil {
		errs = append(errs, fmt.Errorf("display driver: %w", err))
	}
	c.drv.SetRotation(c.opts.Rotation)

	geo := driver.Geometry{
		Width:       c.drv.Width(),
		Height:      c.drv.Height(),
		Rotation:    c.opts.Rotation,
		FullRefresh: c.opts.FullRefresh,
	}
	c.drv.AdaptGeometry(&geo, c.opts.Rotation)
	if geo.Width <= 0 || geo.Height <= 0 {
		geo.Width, geo.Height = fallbackWidth, fallbackHeight
		geo.SoftwareRotate = false
	}

	engine, err := render.NewEngine(render.Options{
		Geometry:    geo,
		BufferLines: c.opts.BufferLines,
		Alloc:       c.opts.Alloc,
		Clock:       c.clock,
		Theme:       c.opts.Theme,
		Logger:      c.logger,
	})
	if engine == nil {
		return fmt.Errorf("display engine: %w", err)
	}
	if err != nil {
		errs = append(errs, err)
	}
	engine.SetFlushFunc(c.flush)
	c.engine = engine
	c.logger.Infof("display", "ready: %dx%d, mode=%s, inert=%v", geo.Width, geo.Height, c.drv.RenderMode(), c.drv.Inert())
	return errors.Join(errs...)
}

// Engine returns the render engine. Use it only with the lock held.
func (c *Coordinator) Engine() *render.Engine { return c.engine }

// Driver returns the guarded driver. Use it only with the lock held.
func (c *Coordinator) Driver() driver.Driver { return c.drv }

func (c *Coordinator) ActiveWidth() int {
	if c.engine == nil {
		return 0
	}
	return c.engine.Width()
}

func (c *Coordinator) ActiveHeight() int {
	if c.engine == nil {
		return 0
	}
	return c.engine.Height()
}

// Register adds s under id and creates it.
func (c *Coordinator) Register(id, label string, s render.Screen) error {
	return c.register(&entry{id: id, label: label, screen: s})
}

// RegisterDirect adds a screen that paints straight to the driver. It is
// reachable only through ShowDirectImage. While it is current, engine
// flushes are dropped and it never enters history.
func (c *Coordinator) RegisterDirect(id, label string, s render.Screen) error {
	return c.register(&entry{id: id, label: label, screen: s, direct: true})
}

func (c *Coordinator) register(e *entry) error {
	if e.id == "" || e.screen == nil {
		return errors.New("display: screen id and screen are required")
	}
	c.Lock()
	defer c.Unlock()
	_, dup := c.byID[e.id]
	_, dupDirect := c.directs[e.id]
	if dup || dupDirect {
		return fmt.Errorf("display: screen %q already registered", e.id)
	}
	e.screen.Create()
	if e.direct {
		c.directs[e.id] = e
		return nil
	}
	c.registry = append(c.registry, e)
	c.byID[e.id] = e
	return nil
}

// SetSplash installs the boot screen. It is not part of the registry.
func (c *Coordinator) SetSplash(s render.Screen) {
	c.Lock()
	defer c.Unlock()
	s.Create()
	c.splash = &entry{screen: s}
}

// Screens lists the registered screens in registration order.
func (c *Coordinator) Screens() []ScreenInfo {
	out := make([]ScreenInfo, 0, len(c.registry))
	for _, e := range c.registry {
		out = append(out, ScreenInfo{ID: e.id, Label: e.label})
	}
	return out
}

// CurrentScreenID is "" while the splash or an unregistered screen is up.
func (c *Coordinator) CurrentScreenID() string {
	if e := c.published.Load(); e != nil {
		return e.id
	}
	return ""
}

// RequestShow queues a switch to id for the next loop iteration. A second
// request before then replaces the first.
func (c *Coordinator) RequestShow(id string) bool {
	e, ok := c.byID[id]
	if !ok {
		c.logger.Errorf("display", "unknown screen %q", id)
		return false
	}
	c.pending.Store(e)
	c.logger.Infof("display", "queued switch to %s", id)
	return true
}

// ShowImmediate switches synchronously. It is meant for boot, before the
// render loop runs.
func (c *Coordinator) ShowImmediate(ctx context.Context, s render.Screen) {
	locked := c.LockIfNeeded(ctx)
	defer c.UnlockIfNeeded(locked)
	target := c.entryFor(s)
	if c.current != nil && c.current != target {
		c.current.screen.Hide()
	}
	c.setCurrent(target)
	target.screen.Show()
}

// ShowSplash shows the boot screen immediately.
func (c *Coordinator) ShowSplash(ctx context.Context) {
	if c.splash == nil {
		return
	}
	c.ShowImmediate(ctx, c.splash.screen)
}

func (c *Coordinator) entryFor(s render.Screen) *entry {
	if c.splash != nil && c.splash.screen == s {
		return c.splash
	}
	for _, e := range c.registry {
		if e.screen == s {
			return e
		}
	}
	for _, e := range c.directs {
		if e.screen == s {
			return e
		}
	}
	return &entry{screen: s}
}

type statusSetter interface {
	SetStatus(text string)
}

// SetSplashStatus updates the boot status line. Before the render loop
// starts the change is rendered right away.
func (c *Coordinator) SetSplashStatus(ctx context.Context, text string) {
	if c.splash == nil {
		return
	}
	if s, ok := c.splash.screen.(statusSetter); ok {
		s.SetStatus(text)
	}
	if !c.running.Load() && !c.InRenderTask(ctx) {
		c.RunOnce(ctx)
	}
}

// ShowDirectImage gates engine flushes at once, drops any present that is
// still owed, remembers where to return to and queues the direct screen.
func (c *Coordinator) ShowDirectImage(ctx context.Context, id string) bool {
	e, ok := c.directs[id]
	if !ok {
		c.logger.Errorf("display", "no direct screen %q", id)
		return false
	}
	locked := c.LockIfNeeded(ctx)
	defer c.UnlockIfNeeded(locked)
	if c.current == e {
		c.directImageActive.Store(true)
		return true
	}
	if c.current != nil {
		c.previous = c.current
	}
	c.flushPending = false
	c.directImageActive.Store(true)
	c.pending.Store(e)
	c.logger.Infof("display", "queued switch to direct screen %s", id)
	return true
}

// ReturnToPrevious queues the screen that was current before the direct
// screen, or the default screen.
func (c *Coordinator) ReturnToPrevious(ctx context.Context) {
	locked := c.LockIfNeeded(ctx)
	defer c.UnlockIfNeeded(locked)
	c.returnToPreviousLocked()
}

// RequestReturn asks the render loop to return to the previous screen on
// its next iteration. It never blocks.
func (c *Coordinator) RequestReturn() { c.returnRequested.Store(true) }

func (c *Coordinator) returnToPreviousLocked() {
	target := c.previous
	if target == nil {
		target = c.byID[c.opts.DefaultScreen]
	}
	c.directImageActive.Store(false)
	c.previous = nil
	if target == nil {
		c.logger.Errorf("display", "no screen to return to")
		return
	}
	c.pending.Store(target)
	c.logger.Infof("display", "queued return to %s", displayID(target))
}

// SetBrightness writes the backlight level.
func (c *Coordinator) SetBrightness(ctx context.Context, percent uint8) {
	locked := c.LockIfNeeded(ctx)
	defer c.UnlockIfNeeded(locked)
	c.drv.SetBrightness(percent)
}

// AddTicker registers fn to run on every loop iteration.
func (c *Coordinator) AddTicker(fn Ticker) {
	c.Lock()
	c.tickers = append(c.tickers, fn)
	c.Unlock()
}

func (c *Coordinator) setCurrent(e *entry) {
	c.current = e
	c.published.Store(e)
}

func displayID(e *entry) string {
	if e == nil {
		return "(none)"
	}
	if e.id == "" {
		return "(unregistered)"
	}
	return e.id
}

// Close hides the current screen and destroys every screen. Call it after
// the render loop has stopped.
func (c *Coordinator) Close() {
	c.Lock()
	defer c.Unlock()
	if c.current != nil {
		c.current.screen.Hide()
	}
	c.setCurrent(nil)
	c.previous = nil
	if c.splash != nil {
		c.splash.screen.Destroy()
	}
	for _, e := range c.registry {
		e.screen.Destroy()
	}
	for _, e := range c.directs {
		e.screen.Destroy()
	}
	c.logger.Infof("display", "closed")
}
