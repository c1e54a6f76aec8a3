// Package events is the domain event bus UI shells subscribe to: session
// updates, discovered devices, visibility changes, and BLE presence pings
// (spec.md §3/§6). It wraps github.com/dustin/go-broadcast the same way the
// teacher's notify.Service does, but as a single fan-out channel rather than
// one broadcaster per session id, since spec.md's UI surface is global, not
// per-session.
package events

import (
	"sync"

	"github.com/dustin/go-broadcast"

	"github.com/martichou/rquickshare-go/endpoint"
)

// Kind discriminates the Event variants from spec.md §6's external
// interface.
type Kind int

const (
	KindMessage           Kind = iota // session state update
	KindDeviceDiscovered              // mDNS browser resolved/removed an endpoint
	KindVisibilityChanged             // mDNS visibility state machine transitioned
	KindNearbyDeviceSharing           // BLE listener observed a nearby sender
)

// Event is the single envelope type submitted to the bus; only the field
// matching Kind is populated.
type Event struct {
	Kind       Kind
	SessionID  string
	Message    any // a session.TransferMetadata snapshot
	Device     endpoint.Info
	Visibility string
}

// Bus is the process-wide broadcaster; New returns a fresh one so tests
// don't share state with a package-level singleton.
type Bus struct {
	mu sync.Mutex
	b  broadcast.Broadcaster
}

// New creates a Bus whose broadcaster input channel buffers bufferSize
// events; each subscriber channel has its own fixed buffer of 16 (see
// Subscribe).
func New(bufferSize int) *Bus {
	return &Bus{b: broadcast.NewBroadcaster(bufferSize)}
}

// Subscribe registers a new listener channel; callers must Unsubscribe when
// done to avoid leaking the channel in the broadcaster's listener set.
func (bus *Bus) Subscribe() chan any {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	ch := make(chan any, 16)
	bus.b.Register(ch)
	return ch
}

// Unsubscribe removes and closes a listener channel previously returned by
// Subscribe.
func (bus *Bus) Unsubscribe(ch chan any) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.b.Unregister(ch)
	close(ch)
}

// Publish submits an event to every current subscriber.
func (bus *Bus) Publish(ev Event) {
	bus.b.Submit(ev)
}

// Close shuts down the broadcaster; no further Publish calls are valid.
func (bus *Bus) Close() {
	bus.b.Close()
}
