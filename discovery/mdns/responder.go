// Package mdns implements service registration (Responder) and discovery
// (Browser) over mDNS/DNS-SD for the local-network endpoint identity
// described by package endpoint (spec.md §4.4/§4.5).
package mdns

import (
	"context"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/martichou/rquickshare-go/endpoint"
	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/logging"
)

// Visibility is the process-wide mDNS registration state (spec.md §3).
type Visibility int

const (
	Invisible Visibility = iota
	Visible
	Temporarily
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "Visible"
	case Temporarily:
		return "Temporarily"
	default:
		return "Invisible"
	}
}

// temporaryWindow is how long a Temporarily registration stays up before
// auto-demoting to Invisible (spec.md §4.4).
const temporaryWindow = 60 * time.Second

// Responder owns the zeroconf server instance and the visibility state
// machine. Its internal state is guarded by a mutex since both the UI
// thread (visibility changes) and the BLE forwarder (re-broadcast trigger)
// call into it (spec.md §5 "Process-wide state guarded by locks").
type Responder struct {
	mu  sync.Mutex
	log *logging.Logger
	bus *events.Bus

	id         *endpoint.Identity
	port       int
	deviceName func() string

	server     *zeroconf.Server
	visibility Visibility
	timer      *time.Timer

	bleEvents <-chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewResponder builds a Responder in the Invisible state; call Start to
// begin watching BLE-triggered re-broadcast events.
func NewResponder(id *endpoint.Identity, port int, deviceName func() string, bus *events.Bus, bleEvents <-chan struct{}, log *logging.Logger) *Responder {
	return &Responder{
		log:        log,
		bus:        bus,
		id:         id,
		port:       port,
		deviceName: deviceName,
		visibility: Invisible,
		bleEvents:  bleEvents,
		done:       make(chan struct{}),
	}
}

// Start runs the background loop that reacts to BLE presence events while
// visible, and lets the auto-demote timer fire (spec.md §4.4).
func (r *Responder) Start() {
	r.wg.Add(1)
	go r.loop()
}

func (r *Responder) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case _, ok := <-r.bleEvents:
			if !ok {
				return
			}
			r.onBLEEvent()
		}
	}
}

// onBLEEvent re-broadcasts the existing registration on BLE presence,
// since some Android peers miss services registered before they started
// browsing (spec.md §4.4 "Additional trigger").
func (r *Responder) onBLEEvent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.visibility == Invisible {
		return
	}
	if err := r.registerLocked(); err != nil {
		r.log.Errorf("mdns: re-broadcast on BLE event: %v", err)
	}
}

// SetVisibility transitions the responder (spec.md §4.4's three states).
func (r *Responder) SetVisibility(v Visibility) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopTimerLocked()

	switch v {
	case Invisible:
		r.unregisterLocked()
		r.visibility = Invisible
	case Visible:
		if err := r.registerLocked(); err != nil {
			return err
		}
		r.visibility = Visible
	case Temporarily:
		if err := r.registerLocked(); err != nil {
			return err
		}
		r.visibility = Temporarily
		r.timer = time.AfterFunc(temporaryWindow, r.onTemporaryExpired)
	}

	r.bus.Publish(events.Event{Kind: events.KindVisibilityChanged, Visibility: r.visibility.String()})
	return nil
}

func (r *Responder) onTemporaryExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.visibility != Temporarily {
		return
	}
	r.unregisterLocked()
	r.visibility = Invisible
	r.bus.Publish(events.Event{Kind: events.KindVisibilityChanged, Visibility: r.visibility.String()})
}

// SetDeviceName unregisters and re-registers under the new name, which
// Android peers require to notice the change (spec.md §4.4).
func (r *Responder) SetDeviceName(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceName = func() string { return name }
	if r.visibility == Invisible {
		return nil
	}
	return r.registerLocked()
}

func (r *Responder) registerLocked() error {
	r.unregisterLocked()

	info, err := endpoint.GenEndpointInfo(endpoint.DeviceTypeLaptop, r.deviceName())
	if err != nil {
		return err
	}
	txt := []string{"n=" + endpoint.EncodeTXT(info)}

	server, err := zeroconf.Register(r.id.InstanceName(), endpoint.ServiceType, "local.", r.port, txt, nil)
	if err != nil {
		return err
	}
	r.server = server
	return nil
}

func (r *Responder) unregisterLocked() {
	if r.server != nil {
		r.server.Shutdown()
		r.server = nil
	}
}

func (r *Responder) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Stop unregisters (best-effort) and waits for the background loop to
// exit (spec.md §5 "Resource cleanup").
func (r *Responder) Stop(ctx context.Context) {
	r.mu.Lock()
	r.unregisterLocked()
	r.stopTimerLocked()
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
}
