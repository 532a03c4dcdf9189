package server

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lightldap/lightldap/pkg/config"
)

type failedBind struct {
	ts time.Time
}

type sourceInfo struct {
	lastSeen  time.Time
	failures  chan failedBind
	waitUntil time.Time
}

// bindLimiter refuses binds from a source address that failed too often.
type bindLimiter struct {
	mu          sync.Mutex
	behaviors   config.Behaviors
	sources     map[string]*sourceInfo
	nextPruning time.Time
	now         func() time.Time
}

func newBindLimiter(behaviors config.Behaviors) *bindLimiter {
	if behaviors.NumberOfFailedBinds < 1 {
		behaviors.NumberOfFailedBinds = 1
	}
	return &bindLimiter{
		behaviors:   behaviors,
		sources:     make(map[string]*sourceInfo),
		nextPruning: time.Now(),
		now:         time.Now,
	}
}

func (l *bindLimiter) source(addr string, now time.Time) *sourceInfo {
	info, ok := l.sources[addr]
	if !ok {
		info = &sourceInfo{
			lastSeen:  now,
			failures:  make(chan failedBind, l.behaviors.NumberOfFailedBinds),
			waitUntil: now,
		}
		l.sources[addr] = info
	}
	return info
}

// isInTimeout returns true if a bind from addr must not be processed.
func (l *bindLimiter) isInTimeout(addr net.Addr) bool {
	if !l.behaviors.LimitFailedBinds {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	info := l.source(sourceAddr(addr), now)
	// update so that this source does not get pruned
	info.lastSeen = now
	return info.waitUntil.After(now)
}

// noteBind records the outcome of a bind from addr and prunes sources that
// have been quiet for long enough.
func (l *bindLimiter) noteBind(addr net.Addr, failed bool) {
	if !l.behaviors.LimitFailedBinds {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	info := l.source(sourceAddr(addr), now)
	info.lastSeen = now

	if failed {
		info.failures <- failedBind{ts: now}
		if len(info.failures) == l.behaviors.NumberOfFailedBinds {
			oldest := <-info.failures
			if oldest.ts.Add(l.behaviors.PeriodOfFailedBinds * time.Second).After(now) {
				info.waitUntil = now.Add(l.behaviors.BlockFailedBindsFor * time.Second)
				// start counting again once the block is over
				for len(info.failures) > 0 {
					<-info.failures
				}
			}
		}
	}

	if l.nextPruning.Before(now) {
		for ip, info := range l.sources {
			if info.lastSeen.Add(l.behaviors.PruneSourcesOlderThan * time.Second).Before(now) {
				delete(l.sources, ip)
			}
		}
		l.nextPruning = now.Add(l.behaviors.PruneSourceTableEvery * time.Second)
	}
}

// sourceAddr strips the port from a remote address.
func sourceAddr(addr net.Addr) string {
	fullAddr := addr.String()
	sep := strings.LastIndex(fullAddr, ":")
	if sep == -1 {
		return fullAddr
	}
	return fullAddr[0:sep]
}
