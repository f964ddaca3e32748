package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rook-computer/panelcore/internal/saver"
	"github.com/rook-computer/panelcore/internal/screens"
	"github.com/rook-computer/panelcore/internal/state"
	"github.com/rook-computer/panelcore/internal/system"
	"github.com/rook-computer/panelcore/internal/web"
)

func (app *App) pollHost(ctx context.Context) {
	t := time.NewTicker(hostPollPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			app.refreshHost(ctx)
		}
	}
}

// refreshHost reads host stats and the network address off the render
// goroutine; the info screen only sees the cached copy.
func (app *App) refreshHost(ctx context.Context) {
	stats := system.ReadHostStats(ctx)
	app.hostMu.Lock()
	app.host = stats
	app.hostMu.Unlock()

	iface, ip, err := app.opts.NetInfo.Primary(ctx)
	if err != nil {
		ip, iface = "", ""
	}
	prev := app.Store.Snapshot().Network
	next := state.NetworkInfo{Interface: iface, IP: ip, URL: system.WebURL(ip, app.opts.ListenAddr)}
	if next != prev {
		app.Store.UpdateNetwork(next)
		app.Logger.Infof("app", "network: %s %s", iface, ip)
	}
}

func (app *App) hostStats() system.HostStats {
	app.hostMu.RLock()
	defer app.hostMu.RUnlock()
	return app.host
}

func (app *App) infoData() screens.InfoData {
	snap := app.Store.Snapshot()
	cfg := app.Config.Snapshot()
	return screens.InfoData{
		DeviceName: cfg.DeviceName,
		Version:    snap.Version,
		Address:    snap.Network.IP,
		URL:        snap.Network.URL,
		Uptime:     app.Store.Uptime(),
		MemUsedPct: app.hostStats().MemUsedPct,
		Power:      powerLine(app.Saver.Status()),
	}
}

func powerLine(st saver.Status) string {
	if st.State == saver.Awake && st.SecondsUntilSleep > 0 {
		return fmt.Sprintf("%s %d%%, sleep in %ds", st.State, st.CurrentBrightness, st.SecondsUntilSleep)
	}
	return fmt.Sprintf("%s %d%%", st.State, st.CurrentBrightness)
}

func (app *App) info(ctx context.Context) web.Info {
	snap := app.Store.Snapshot()
	perf := app.Display.Perf()
	return web.Info{
		DeviceName: app.Config.Snapshot().DeviceName,
		Version:    snap.Version,
		Phase:      snap.Phase.String(),
		IP:         snap.Network.IP,
		URL:        snap.Network.URL,
		UptimeSec:  int64(app.Store.Uptime() / time.Second),
		MemUsedPct: app.hostStats().MemUsedPct,
		Width:      app.Display.ActiveWidth(),
		Height:     app.Display.ActiveHeight(),
		FPS:        perf.FPS,
	}
}
