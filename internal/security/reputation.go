package security

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultSuspiciousThreshold = 3

// suspiciousTTL is the tracking period for suspicious-activity counters.
// Counters idle for longer are dropped by the sweep.
const suspiciousTTL = time.Hour

type suspicion struct {
	count    int
	lastSeen time.Time
}

// ReputationStore tracks blocked IPs and suspicious-activity counters.
// Blocks expire lazily ("blockedUntil > now" checked on every lookup) with a
// periodic sweep for memory reclamation, instead of a timer per entry.
type ReputationStore struct {
	mu         sync.Mutex
	blocked    map[string]time.Time // ip -> blockedUntil
	suspicious map[string]suspicion
	threshold  int
	logger     *zap.Logger

	now func() time.Time
}

func NewReputationStore(threshold int, logger *zap.Logger) *ReputationStore {
	if threshold <= 0 {
		threshold = DefaultSuspiciousThreshold
	}
	return &ReputationStore{
		blocked:    make(map[string]time.Time),
		suspicious: make(map[string]suspicion),
		threshold:  threshold,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ReputationStore) IsBlocked(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocked[ip]
	if !ok {
		return false
	}
	if until.Before(s.now()) {
		delete(s.blocked, ip)
		delete(s.suspicious, ip)
		return false
	}
	return true
}

// Block blocks an IP for the given duration. Overlapping calls for the same
// IP reset the expiry (last writer wins).
func (s *ReputationStore) Block(ip string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocked[ip] = s.now().Add(duration)
	s.logger.Warn("ip blocked", zap.String(ipField, ip), zap.Duration("duration", duration))
}

// RecordSuspicious increments the per-IP counter and promotes to a one hour
// block at the threshold, clearing the counter. Returns whether it escalated.
func (s *ReputationStore) RecordSuspicious(ip string) bool {
	s.mu.Lock()
	entry := s.suspicious[ip]
	entry.count++
	entry.lastSeen = s.now()
	s.suspicious[ip] = entry
	if entry.count < s.threshold {
		s.mu.Unlock()
		return false
	}
	delete(s.suspicious, ip)
	s.mu.Unlock()

	s.Block(ip, time.Hour)
	return true
}

// BlockedIPs returns the currently blocked IPs (unexpired only).
func (s *ReputationStore) BlockedIPs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ips := make([]string, 0, len(s.blocked))
	for ip, until := range s.blocked {
		if until.After(now) {
			ips = append(ips, ip)
		}
	}
	return ips
}

// Sweep drops expired block entries and suspicious counters idle past their
// tracking period. Expiry is decided lazily in IsBlocked; this reclaims
// memory and keeps one-off probers from accumulating forever.
func (s *ReputationStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for ip, until := range s.blocked {
		if until.Before(now) {
			delete(s.blocked, ip)
			delete(s.suspicious, ip)
			removed++
		}
	}
	for ip, entry := range s.suspicious {
		if now.Sub(entry.lastSeen) > suspiciousTTL {
			delete(s.suspicious, ip)
			removed++
		}
	}
	return removed
}

func (s *ReputationStore) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

const ipField = "ip"
