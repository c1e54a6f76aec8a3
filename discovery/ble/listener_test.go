package ble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/logging"
)

// newTestListener builds a Listener without touching a real Bluetooth
// adapter, since New() requires one to be present (spec.md §7 "Subsystem
// init failures" is about exactly this: construction can fail in CI/
// headless environments).
func newTestListener(bus *events.Bus) *Listener {
	return &Listener{bus: bus, log: logging.New("test"), forward: make(chan struct{}, 1)}
}

func TestListenerEmitPublishesOnce(t *testing.T) {
	bus := events.New(4)
	sub := bus.Subscribe()
	l := newTestListener(bus)

	l.emit()

	select {
	case ev := <-sub:
		e, ok := ev.(events.Event)
		assert.True(t, ok)
		assert.Equal(t, events.KindNearbyDeviceSharing, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("emit never published to the bus")
	}
}

func TestListenerEmitIsRateLimited(t *testing.T) {
	bus := events.New(4)
	sub := bus.Subscribe()
	l := newTestListener(bus)

	l.emit()
	<-sub

	l.emit() // within rateLimit window, should be suppressed

	select {
	case <-sub:
		t.Fatal("second emit within the rate-limit window should have been suppressed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListenerEmitForwardsNonBlocking(t *testing.T) {
	bus := events.New(4)
	l := newTestListener(bus)
	bus.Subscribe() // drain target so Publish never blocks

	l.emit()

	select {
	case <-l.Forward():
	case <-time.After(time.Second):
		t.Fatal("emit never signaled the forward channel")
	}
}
