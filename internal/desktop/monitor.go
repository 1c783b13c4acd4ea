package desktop

// MonitorInfo describes one attached display, as enumerated by the
// platform-specific listMonitors implementation.
type MonitorInfo struct {
	Index     int
	Name      string
	Width     int
	Height    int
	X         int
	Y         int
	IsPrimary bool
}

// ListMonitors enumerates attached displays in stable index order.
func ListMonitors() ([]MonitorInfo, error) {
	return listMonitors()
}
