// Package ble implements BLE presence scanning (Listener) and the optional
// presence-beacon advertiser (Advertiser) described in spec.md §4.6, using
// tinygo.org/x/bluetooth.
package ble

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/logging"
)

// serviceUUID is the observed Nearby Share presence service (spec.md §3).
var serviceUUID = bluetooth.NewUUID([16]byte{
	0x00, 0x00, 0xfe, 0x2c, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
})

// rateLimit bounds "nearby device sharing" emissions to once per this
// interval (spec.md §4.6).
const rateLimit = 10 * time.Second

// Listener scans for BLE advertisements carrying the Nearby Share service
// data and forwards rate-limited presence pings, both to the event bus and
// to an internal channel the mDNS responder subscribes to for
// re-broadcast (spec.md §4.4 "Additional trigger").
type Listener struct {
	adapter *bluetooth.Adapter
	bus     *events.Bus
	log     *logging.Logger

	mu       sync.Mutex
	lastEmit time.Time

	forward chan struct{}
}

// New opens the first available Bluetooth adapter (spec.md §4.6 "Opens the
// first available Bluetooth adapter"). BLE init failure is non-fatal to the
// rest of the service (spec.md §7 "Subsystem init failures"), so callers
// should log and continue rather than abort startup.
func New(bus *events.Bus, log *logging.Logger) (*Listener, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}
	return &Listener{adapter: adapter, bus: bus, log: log, forward: make(chan struct{}, 1)}, nil
}

// Forward returns the channel the mDNS responder watches for BLE-triggered
// re-broadcast events.
func (l *Listener) Forward() <-chan struct{} {
	return l.forward
}

// Start begins scanning; it blocks until Stop is called, so callers should
// run it in its own goroutine.
func (l *Listener) Start() error {
	return l.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		// ScanFilter is unreliable on some stacks, so the service-data
		// entries are checked explicitly rather than relying on
		// adapter-side filtering (spec.md §4.6).
		for _, sd := range result.ServiceData() {
			if sd.UUID == serviceUUID {
				l.emit()
				return
			}
		}
	})
}

func (l *Listener) emit() {
	l.mu.Lock()
	now := time.Now()
	if now.Sub(l.lastEmit) < rateLimit {
		l.mu.Unlock()
		return
	}
	l.lastEmit = now
	l.mu.Unlock()

	l.bus.Publish(events.Event{Kind: events.KindNearbyDeviceSharing})

	select {
	case l.forward <- struct{}{}:
	default:
	}
}

// Stop ends the scan (best-effort).
func (l *Listener) Stop() {
	_ = l.adapter.StopScan()
}
