package heartbeat

import (
	"net"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is a single point-in-time reading of the host metrics carried on
// every heartbeat envelope.
type Sample struct {
	CPUPercent float64
	MemUsed    uint64
	MemTotal   uint64
	DiskUsed   uint64
	DiskTotal  uint64
	UptimeSecs uint64
	IPAddress  string
}

// Collector samples the local host. Swappable for tests.
type Collector interface {
	Collect() (Sample, error)
}

// gopsutilCollector samples CPU, memory, disk, and uptime via gopsutil,
// trimmed from the teacher's collectors.MetricsCollector down to the
// fields a live heartbeat needs (no network/process counters — those are
// RMM inventory concerns, not remote-desktop ones).
type gopsutilCollector struct {
	diskRoot string
}

// NewCollector returns the gopsutil-backed Collector for the running OS.
func NewCollector() Collector {
	root := "/"
	if runtime.GOOS == "windows" {
		root = `C:\`
	}
	return &gopsutilCollector{diskRoot: root}
}

func (c *gopsutilCollector) Collect() (Sample, error) {
	var s Sample

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		s.MemUsed = vmem.Used
		s.MemTotal = vmem.Total
	}

	if du, err := disk.Usage(c.diskRoot); err == nil {
		s.DiskUsed = du.Used
		s.DiskTotal = du.Total
	}

	if info, err := host.Info(); err == nil {
		s.UptimeSecs = info.Uptime
	}

	s.IPAddress = outboundIP()

	return s, nil
}

// outboundIP returns the local address that would be used to reach the
// public internet, without sending any packets (UDP dial doesn't write
// until Write is called).
func outboundIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 2*time.Second)
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}
