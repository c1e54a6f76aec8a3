// Package transport owns the TCP accept loop and outbound dialer that spawn
// sessions (spec.md §4.7).
package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"

	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/logging"
	"github.com/martichou/rquickshare-go/session"
)

// Supervisor owns the listener and the outbound-send channel, spawning one
// session goroutine per accepted or dialed connection (spec.md §4.7).
type Supervisor struct {
	listener net.Listener
	deps     session.Deps
	log      *logging.Logger
	bus      *events.Bus
	limiter  *connLimiter

	sendCh chan session.SendInfo

	mu       sync.Mutex
	commands map[string]chan session.Command

	wg sync.WaitGroup
}

// New binds the listener to 0.0.0.0:port (0 for a random ephemeral port, per
// spec.md §4.7) and returns a Supervisor ready to Run.
func New(port int, deps session.Deps) (*Supervisor, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	return &Supervisor{
		listener: ln,
		deps:     deps,
		log:      deps.Log,
		bus:      deps.Bus,
		limiter:  newConnLimiter(),
		sendCh:   make(chan session.SendInfo, 8),
		commands: make(map[string]chan session.Command),
	}, nil
}

// Addr returns the bound listen address, so callers can discover the
// ephemeral port when 0 was requested.
func (s *Supervisor) Addr() net.Addr {
	return s.listener.Addr()
}

// Send enqueues an outbound transfer request (spec.md §4.7 "new SendInfo ->
// dial peer, spawn outbound session").
func (s *Supervisor) Send(info session.SendInfo) {
	s.sendCh <- info
}

// Command routes a consent/cancel action to the session with the given id,
// dropping it if no such session is active (spec.md §5 "each session
// filters by session id").
func (s *Supervisor) Command(cmd session.Command) {
	s.mu.Lock()
	ch, ok := s.commands[cmd.SessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- cmd:
	default:
	}
}

// Run drives the accept loop and outbound dialer until ctx is cancelled
// (spec.md §4.7 "Loop body selects on ... main cancellation ... new SendInfo
// ... accept"). It blocks; callers should run it in its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	accepted := make(chan net.Conn, 8)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				return
			}
			select {
			case accepted <- conn:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	defer s.listener.Close()
	defer s.limiter.Close()
	for {
		select {
		case <-ctx.Done():
			s.listener.Close() // unblocks the accept goroutine
			s.wg.Wait()
			return
		case conn := <-accepted:
			s.spawnInbound(conn)
		case info := <-s.sendCh:
			s.dialAndSpawn(info)
		}
	}
}

func (s *Supervisor) spawnInbound(conn net.Conn) {
	if addr, ok := netip.AddrFromSlice(connIP(conn)); ok && !s.limiter.allow(addr.Unmap()) {
		s.log.Infof("transport: rate-limiting inbound connection from %s", conn.RemoteAddr())
		conn.Close()
		return
	}

	cmdCh := make(chan session.Command, 4)
	sessionID := conn.RemoteAddr().String()
	s.registerCommands(sessionID, cmdCh)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unregisterCommands(sessionID)
		session.RunInbound(conn, s.deps, cmdCh)
	}()
}

func (s *Supervisor) dialAndSpawn(info session.SendInfo) {
	conn, err := net.Dial("tcp", info.PeerAddr)
	if err != nil {
		s.log.Errorf("transport: dial %s: %v", info.PeerAddr, err)
		return
	}

	cmdCh := make(chan session.Command, 4)
	s.registerCommands(info.SessionID, cmdCh)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unregisterCommands(info.SessionID)
		session.RunOutbound(conn, s.deps, info, cmdCh)
	}()
}

func (s *Supervisor) registerCommands(sessionID string, ch chan session.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[sessionID] = ch
}

func (s *Supervisor) unregisterCommands(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commands, sessionID)
}

// connIP extracts the remote IP from a connection's address, or nil if it
// isn't a *net.TCPAddr (e.g. in tests backed by net.Pipe).
func connIP(conn net.Conn) []byte {
	tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil
	}
	return tcpAddr.IP
}
