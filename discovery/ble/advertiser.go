package ble

import (
	"fmt"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"

	"github.com/martichou/rquickshare-go/logging"
)

// shortServiceUUID is the 16-bit form 0xFE2C advertised in the presence
// beacon's service-data element (spec.md §4.6/§6).
var shortServiceUUID = bluetooth.New16BitUUID(0xFE2C)

// Advertiser is an optional platform capability: not every BlueZ/CoreBluetooth
// stack supports peripheral-mode advertising, so construction failures here
// are non-fatal to the rest of the service (spec.md §7 "Subsystem init
// failures").
type Advertiser struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	handle  uuid.UUID // internal identifier for the active advertisement, for logs
	log     *logging.Logger
}

// New configures (but does not start) a presence-beacon advertisement
// carrying an opaque 24-byte service-data payload (spec.md §4.6/§6).
func New(log *logging.Logger, payload [24]byte) (*Advertiser, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	adv := adapter.DefaultAdvertisement()
	// Only the service UUID and service data are configured; the
	// advertisement type, secondary channel and TX power are not set and
	// stay at the platform's defaults. A Configure error is surfaced to the
	// caller.
	err := adv.Configure(bluetooth.AdvertisementOptions{
		ServiceUUIDs: []bluetooth.UUID{shortServiceUUID},
		ServiceData: []bluetooth.ServiceDataElement{
			{UUID: shortServiceUUID, Data: payload[:]},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ble: configure advertisement: %w", err)
	}

	return &Advertiser{adapter: adapter, adv: adv, handle: uuid.New(), log: log}, nil
}

// Start begins advertising (spec.md §4.6 "Lifecycle tied to an explicit
// discovery session").
func (a *Advertiser) Start() error {
	if err := a.adv.Start(); err != nil {
		return fmt.Errorf("ble: start advertisement %s: %w", a.handle, err)
	}
	return nil
}

// Stop ends the advertisement (best-effort).
func (a *Advertiser) Stop() {
	if err := a.adv.Stop(); err != nil {
		a.log.Errorf("ble: stop advertisement %s: %v", a.handle, err)
	}
}
