// Package service is the public facade: construction, lifecycle, the
// command surface, and the event subscription point described in spec.md
// §4.8/§6.
package service

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/martichou/rquickshare-go/discovery/ble"
	"github.com/martichou/rquickshare-go/discovery/mdns"
	"github.com/martichou/rquickshare-go/endpoint"
	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/internal/downloadpath"
	"github.com/martichou/rquickshare-go/logging"
	"github.com/martichou/rquickshare-go/session"
	"github.com/martichou/rquickshare-go/transport"
)

// Service is the not-yet-started core; New only builds collaborators.
type Service struct {
	cfg Config

	id           *endpoint.Identity
	bus          *events.Bus
	downloadRoot *downloadpath.Store

	mu         sync.RWMutex
	deviceName string
}

// New builds a Service; nothing is listening or registered yet (spec.md
// §4.8 "new(config) -> Service").
func New(cfg Config) (*Service, error) {
	id, err := endpoint.NewIdentity()
	if err != nil {
		return nil, fmt.Errorf("service: new identity: %w", err)
	}

	name := cfg.DeviceName
	if name == "" {
		if hostname, err := os.Hostname(); err == nil {
			name = hostname
		}
	}

	root := downloadpath.NewStore()
	if cfg.DownloadPath != "" {
		root.Set(cfg.DownloadPath)
	}

	return &Service{
		cfg:          cfg,
		id:           id,
		bus:          events.New(32), // bounded broadcast; a full subscriber channel blocks delivery, nothing is dropped
		downloadRoot: root,
		deviceName:   name,
	}, nil
}

func (s *Service) deviceNameFn() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceName
}

// Handle is the running service: the supervisor, responder, optional BLE
// listener, and the root cancellation token tree (spec.md §5 "a root token
// for the service; a child token for each subsystem").
type Handle struct {
	svc *Service

	rootCtx    context.Context
	rootCancel context.CancelFunc

	discoveryCtx    context.Context
	discoveryCancel context.CancelFunc

	supervisor *transport.Supervisor
	responder  *mdns.Responder
	browser    *mdns.Browser
	listener   *ble.Listener

	log *logging.Logger
	wg  sync.WaitGroup
}

// Start starts the listener, supervisor, mDNS responder, and optional BLE
// listener, returning a Handle (spec.md §4.8 "start() -> Handle"). mDNS
// init failure is fatal; BLE init failure is logged and the rest of the
// service runs (spec.md §7 "Subsystem init failures").
func (s *Service) Start() (*Handle, error) {
	log := logging.New("service")
	rootCtx, rootCancel := context.WithCancel(context.Background())

	deps := session.Deps{
		Identity:     s.id,
		DeviceName:   s.deviceNameFn,
		DownloadRoot: s.downloadRoot,
		Bus:          s.bus,
		Log:          logging.New("session"),
	}

	sup, err := transport.New(s.cfg.PortNumber, deps)
	if err != nil {
		rootCancel()
		return nil, err
	}

	var blePresence <-chan struct{}
	listener, err := ble.New(s.bus, logging.New("ble"))
	if err != nil {
		log.Errorf("ble: init failed, continuing without presence scanning: %v", err)
	} else {
		blePresence = listener.Forward()
	}

	tcpAddr, ok := sup.Addr().(*net.TCPAddr)
	if !ok {
		rootCancel()
		return nil, fmt.Errorf("service: unexpected listener address type %T", sup.Addr())
	}
	responder := mdns.NewResponder(s.id, tcpAddr.Port, s.deviceNameFn, s.bus, blePresence, logging.New("mdns"))

	browser, err := mdns.NewBrowser(s.bus, logging.New("mdns"))
	if err != nil {
		rootCancel()
		return nil, fmt.Errorf("service: mdns browser: %w", err)
	}

	h := &Handle{
		svc:        s,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		supervisor: sup,
		responder:  responder,
		browser:    browser,
		listener:   listener,
		log:        log,
	}

	responder.Start()
	if err := responder.SetVisibility(s.cfg.Visibility); err != nil {
		log.Errorf("mdns: initial visibility %v: %v", s.cfg.Visibility, err)
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		sup.Run(rootCtx)
	}()

	if listener != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if err := listener.Start(); err != nil {
				log.Errorf("ble: scan stopped: %v", err)
			}
		}()
	}

	return h, nil
}

// Subscribe returns the event channel a UI consumer drains (spec.md §4.8
// "subscribe() -> Receiver<Event>").
func (h *Handle) Subscribe() chan any {
	return h.svc.bus.Subscribe()
}

// StartDiscovery begins the mDNS browser under its own cancellation token,
// independent from the rest of the service (spec.md §5 "a separate token
// for the discovery session").
func (h *Handle) StartDiscovery() error {
	if h.discoveryCancel != nil {
		h.discoveryCancel()
	}
	h.discoveryCtx, h.discoveryCancel = context.WithCancel(h.rootCtx)
	return h.browser.Start(h.discoveryCtx)
}

// StopDiscovery tears down the browser (and, transitively, the BLE
// advertiser if one were attached to the same token) (spec.md §5 "Resource
// cleanup").
func (h *Handle) StopDiscovery() {
	if h.discoveryCancel != nil {
		h.discoveryCancel()
		h.discoveryCancel = nil
	}
	h.browser.Stop()
}

// ChangeVisibility drives the mDNS responder's visibility state machine
// (spec.md §4.8).
func (h *Handle) ChangeVisibility(v mdns.Visibility) error {
	return h.responder.SetVisibility(v)
}

// SetDownloadPath overrides (or, given "", clears) the destination root
// (spec.md §4.8 "set_download_path(p?)").
func (h *Handle) SetDownloadPath(path string) {
	h.svc.downloadRoot.Set(path)
}

// SetDeviceName updates the name used in endpoint info and re-registers
// mDNS under it (spec.md §4.8 "set_device_name(n)").
func (h *Handle) SetDeviceName(name string) error {
	h.svc.mu.Lock()
	h.svc.deviceName = name
	h.svc.mu.Unlock()
	return h.responder.SetDeviceName(name)
}

// Send enqueues an outbound transfer (spec.md §4.8 "send(SendInfo)").
func (h *Handle) Send(info session.SendInfo) {
	h.supervisor.Send(info)
}

// SendAction routes a consent/cancel action to the named session (spec.md
// §4.8 "send_action(session_id, action)").
func (h *Handle) SendAction(sessionID string, action session.Action) {
	h.supervisor.Command(session.Command{SessionID: sessionID, Action: action})
}

// Shutdown cancels every subsystem and waits for all spawned tasks to exit
// before returning (spec.md §5 "avoid orphan tasks by waiting on a tracker
// at shutdown").
func (h *Handle) Shutdown() {
	h.StopDiscovery()
	h.responder.Stop(h.rootCtx)
	if h.listener != nil {
		h.listener.Stop()
	}
	h.rootCancel()
	h.wg.Wait()
	h.svc.bus.Close()
}
