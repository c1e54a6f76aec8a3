package mdns

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/martichou/rquickshare-go/endpoint"
	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/logging"
)

// Browser maintains the fullname→EndpointInfo map described in spec.md
// §4.5 and emits DeviceDiscovered events on resolve/remove.
type Browser struct {
	bus *events.Bus
	log *logging.Logger

	mu      sync.Mutex
	entries map[string]endpoint.Info

	resolver *zeroconf.Resolver
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewBrowser builds a Browser ready to Start.
func NewBrowser(bus *events.Bus, log *logging.Logger) (*Browser, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns: new resolver: %w", err)
	}
	return &Browser{bus: bus, log: log, entries: make(map[string]endpoint.Info), resolver: resolver}, nil
}

// Start begins browsing until ctx is cancelled or Stop is called (spec.md
// §4.5). The discovery session's own cancellation token is what ctx should
// be derived from (spec.md §5 "a separate token for the discovery
// session").
func (b *Browser) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	results := make(chan *zeroconf.ServiceEntry, 16)
	if err := b.resolver.Browse(ctx, endpoint.ServiceType, "local.", results); err != nil {
		cancel()
		return fmt.Errorf("mdns: browse: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-results:
				if !ok {
					return
				}
				b.handleEntry(entry)
			}
		}
	}()
	return nil
}

func (b *Browser) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// handleEntry resolves or removes a fullname's record. zeroconf reports
// removal implicitly by TTL expiry, which this package surfaces as absent
// IPv4 addresses; any entry seen with no usable address is treated as
// Removed (spec.md §4.5 "On ServiceRemoved").
func (b *Browser) handleEntry(entry *zeroconf.ServiceEntry) {
	ip := firstNonLocalIPv4(entry.AddrIPv4)
	if ip == "" {
		b.mu.Lock()
		prior, ok := b.entries[entry.Instance]
		if ok {
			delete(b.entries, entry.Instance)
		}
		b.mu.Unlock()
		if ok {
			prior.Present = false
			b.bus.Publish(events.Event{Kind: events.KindDeviceDiscovered, Device: prior})
		}
		return
	}

	deviceType, name, err := decodeTXT(entry.Text)
	if err != nil {
		b.log.Errorf("mdns: decode TXT for %s: %v", entry.Instance, err)
		return
	}

	info := endpoint.Info{
		FullName:   entry.Instance,
		ID:         ip + ":" + strconv.Itoa(entry.Port),
		Name:       name,
		IP:         ip,
		Port:       entry.Port,
		DeviceType: deviceType,
		Present:    true,
	}

	b.mu.Lock()
	b.entries[entry.Instance] = info
	b.mu.Unlock()
	b.bus.Publish(events.Event{Kind: events.KindDeviceDiscovered, Device: info})
}

func decodeTXT(records []string) (endpoint.DeviceType, string, error) {
	for _, rec := range records {
		if !strings.HasPrefix(rec, "n=") {
			continue
		}
		raw, err := endpoint.DecodeTXT(strings.TrimPrefix(rec, "n="))
		if err != nil {
			return 0, "", err
		}
		return endpoint.ParseEndpointInfo(raw)
	}
	return 0, "", fmt.Errorf("mdns: no n= TXT record")
}

// firstNonLocalIPv4 filters out addresses bound to a local interface, so a
// device never discovers itself (spec.md §4.5 "self-IP filter").
func firstNonLocalIPv4(addrs []net.IP) string {
	local := localIPv4Set()
	for _, a := range addrs {
		if !local[a.String()] {
			return a.String()
		}
	}
	return ""
}

func localIPv4Set() map[string]bool {
	set := make(map[string]bool)
	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return set
	}
	for _, addr := range ifaces {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		set[ipNet.IP.String()] = true
	}
	return set
}
