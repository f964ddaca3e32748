package system

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is the slice of host telemetry the info screen shows.
type HostStats struct {
	Uptime     time.Duration `json:"uptime"`
	MemUsedPct float64       `json:"mem_used_pct"`
	MemTotal   uint64        `json:"mem_total"`
	Hostname   string        `json:"hostname"`
}

// ReadHostStats is best effort: fields that cannot be read stay zero.
func ReadHostStats(ctx context.Context) HostStats {
	var st HostStats
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.MemUsedPct = vm.UsedPercent
		st.MemTotal = vm.Total
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		st.Uptime = time.Duration(up) * time.Second
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		st.Hostname = info.Hostname
	}
	return st
}
