package transport

import (
	"net/netip"
	"sync"
	"time"
)

// Inbound connection attempts are token-bucketed per source IP so a single
// misbehaving peer can't spin up unbounded sessions (spec.md §4.7 governs
// one session per accepted connection; nothing upstream caps how often a
// peer may reconnect).
const (
	connsPerSecond     = 5
	connsBurstable     = 3
	garbageCollectTime = 10 * time.Second
	connCost           = int64(time.Second) / connsPerSecond
	maxConnTokens      = connCost * connsBurstable
)

type connBucket struct {
	mu       sync.Mutex
	lastTime time.Time
	tokens   int64
}

// connLimiter rate-limits inbound connection attempts per source IP.
type connLimiter struct {
	mu      sync.RWMutex
	timeNow func() time.Time

	stopReset chan struct{}
	table     map[netip.Addr]*connBucket
}

func newConnLimiter() *connLimiter {
	l := &connLimiter{
		timeNow:   time.Now,
		stopReset: make(chan struct{}),
		table:     make(map[netip.Addr]*connBucket),
	}
	go l.collectGarbage()
	return l
}

func (l *connLimiter) collectGarbage() {
	ticker := time.NewTicker(time.Second)
	ticker.Stop()
	for {
		select {
		case _, ok := <-l.stopReset:
			ticker.Stop()
			if !ok {
				return
			}
			ticker = time.NewTicker(time.Second)
		case <-ticker.C:
			if l.cleanup() {
				ticker.Stop()
			}
		}
	}
}

func (l *connLimiter) cleanup() (empty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.table {
		entry.mu.Lock()
		if l.timeNow().Sub(entry.lastTime) > garbageCollectTime {
			delete(l.table, key)
		}
		entry.mu.Unlock()
	}
	return len(l.table) == 0
}

// allow reports whether a new connection attempt from ip should be accepted,
// consuming one token from its bucket if so.
func (l *connLimiter) allow(ip netip.Addr) bool {
	l.mu.RLock()
	entry := l.table[ip]
	l.mu.RUnlock()

	if entry == nil {
		entry = &connBucket{tokens: maxConnTokens - connCost, lastTime: l.timeNow()}
		l.mu.Lock()
		l.table[ip] = entry
		if len(l.table) == 1 {
			l.stopReset <- struct{}{}
		}
		l.mu.Unlock()
		return true
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	now := l.timeNow()
	entry.tokens += now.Sub(entry.lastTime).Nanoseconds()
	entry.lastTime = now
	if entry.tokens > maxConnTokens {
		entry.tokens = maxConnTokens
	}

	if entry.tokens > connCost {
		entry.tokens -= connCost
		return true
	}
	return false
}

func (l *connLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopReset != nil {
		close(l.stopReset)
		l.stopReset = nil
	}
}
